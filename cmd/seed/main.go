// Command main runs the database seeder for ScholarHub.
package main

import (
	"flag"
	"log"

	"scholarhub/internal/config"
	"scholarhub/internal/database"
	"scholarhub/internal/seed"
)

func main() {
	numStudents := flag.Int("students", 25, "Number of students to create")
	numModerators := flag.Int("moderators", 3, "Number of moderators to create")
	numScholarships := flag.Int("scholarships", 20, "Generated listings on top of the built-in catalog")
	perStudent := flag.Int("applications", 3, "Applications per student")
	randomSeed := flag.Int64("random-seed", 0, "Fixed random seed for reproducible data (0 = time based)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	preset := flag.String("preset", "", "Apply a named preset (minimal, demo, load)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db)
	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	var sum *seed.Summary
	if *preset != "" {
		log.Printf("Applying preset: %s (ignoring other flags)\n", *preset)
		sum, err = s.ApplyPreset(*preset)
	} else {
		log.Printf("Target: %d students, %d moderators, %d extra listings, clean=%v\n",
			*numStudents, *numModerators, *numScholarships, *shouldClean)
		sum, err = s.Run(seed.Options{
			NumStudents:            *numStudents,
			NumModerators:          *numModerators,
			NumScholarships:        *numScholarships,
			ApplicationsPerStudent: *perStudent,
			MaxDays:                60,
			RandomSeed:             *randomSeed,
		})
	}
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %d users, %d scholarships, %d applications, %d reviews.\n",
		sum.Users, sum.Scholarships, sum.Applications, sum.Reviews)
	log.Printf("📧 All seeded accounts have the password: %s\n", seed.DefaultPassword)
}
