// Package main provides account and data maintenance utilities for ScholarHub.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"scholarhub/internal/config"
	"scholarhub/internal/database"
	"scholarhub/internal/models"
	"scholarhub/internal/repository"
	"scholarhub/internal/workflow"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  admin set-role <email> <student|moderator|admin>  - Change a user's role")
	fmt.Println("  admin list <student|moderator|admin>              - List users with a role")
	fmt.Println("  admin audit-timelines                             - Check every application's timeline against its state")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	users := repository.NewUserRepository(db)
	apps := repository.NewApplicationRepository(db)

	switch os.Args[1] {
	case "set-role":
		if len(os.Args) < 4 {
			usage()
			os.Exit(1)
		}
		err = setRole(ctx, os.Stdout, users, os.Args[2], os.Args[3])
	case "list":
		if len(os.Args) < 3 {
			usage()
			os.Exit(1)
		}
		err = listByRole(ctx, os.Stdout, users, os.Args[2])
	case "audit-timelines":
		var broken int
		broken, err = auditTimelines(ctx, os.Stdout, apps)
		if err == nil && broken > 0 {
			os.Exit(2)
		}
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

// setRole changes a role from the command line. The self-change rule does
// not apply here because the operator is not a portal user.
func setRole(ctx context.Context, out io.Writer, users repository.UserRepository, email, roleName string) error {
	role, ok := workflow.ParseRole(roleName)
	if !ok {
		return fmt.Errorf("invalid role %q", roleName)
	}
	user, err := users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("no user with email %q", email)
	}
	if user.Role == role {
		_, _ = fmt.Fprintf(out, "User %s (ID: %d) is already %s\n", user.Email, user.ID, role)
		return nil
	}
	if err := users.UpdateRole(ctx, user.ID, role); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "✅ %s (ID: %d) is now %s (was %s)\n", user.Email, user.ID, role, user.Role)
	return nil
}

func listByRole(ctx context.Context, out io.Writer, users repository.UserRepository, roleName string) error {
	role, ok := workflow.ParseRole(roleName)
	if !ok {
		return fmt.Errorf("invalid role %q", roleName)
	}
	list, total, err := users.List(ctx, repository.UserFilter{Role: role, Limit: 500})
	if err != nil {
		return err
	}
	if total == 0 {
		_, _ = fmt.Fprintf(out, "No %s accounts found\n", role)
		return nil
	}

	_, _ = fmt.Fprintf(out, "\n📋 %d %s account(s):\n", total, role)
	_, _ = fmt.Fprintln(out, "─────────────────────────────────────")
	for _, u := range list {
		_, _ = fmt.Fprintf(out, "ID: %d | Name: %s | Email: %s\n", u.ID, u.Name, u.Email)
	}
	_, _ = fmt.Fprintln(out, "─────────────────────────────────────")
	return nil
}

// auditTimelines reports applications whose stored state is invalid or whose
// latest tracking event disagrees with it, and returns how many it found.
func auditTimelines(ctx context.Context, out io.Writer, apps repository.ApplicationRepository) (int, error) {
	const page = 200
	broken := 0
	checked := 0
	for offset := 0; ; offset += page {
		batch, total, err := apps.List(ctx, repository.ApplicationFilter{Limit: page, Offset: offset})
		if err != nil {
			return broken, err
		}
		for i := range batch {
			if problem := auditOne(ctx, apps, &batch[i]); problem != nil {
				broken++
				_, _ = fmt.Fprintf(out, "❌ %s (ID: %d): %v\n", batch[i].TrackingID, batch[i].ID, problem)
			}
		}
		checked += len(batch)
		if len(batch) == 0 || int64(offset+page) >= total {
			break
		}
	}
	_, _ = fmt.Fprintf(out, "checked %d application(s), %d inconsistent\n", checked, broken)
	return broken, nil
}

func auditOne(ctx context.Context, apps repository.ApplicationRepository, app *models.Application) error {
	if err := app.State().Validate(); err != nil {
		return err
	}
	events, err := apps.ListEvents(ctx, app.TrackingID)
	if err != nil {
		return err
	}
	if err := workflow.ValidateTimeline(models.TimelineEntries(events), app.State()); err != nil {
		return err
	}
	if len(events) > 0 && events[0].ApplicationID != app.ID {
		return errors.New("timeline belongs to another application")
	}
	return nil
}
