package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix        = "user:%d"
	ScholarshipKeyPrefix = "scholarship:%d"
	// scholarshipListVersion is bumped on every listing write so cached
	// search pages expire together.
	scholarshipListVersion = "scholarships:version"
)

const (
	UserTTL        = 5 * time.Minute
	ScholarshipTTL = 10 * time.Minute
	ListTTL        = 1 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func ScholarshipKey(id uint) string {
	return fmt.Sprintf(ScholarshipKeyPrefix, id)
}

// ScholarshipListKey keys one search page under the current list version.
func ScholarshipListKey(ctx context.Context, query string) string {
	var version int64
	if c := GetClient(); c != nil {
		version, _ = c.Get(ctx, scholarshipListVersion).Int64()
	}
	return fmt.Sprintf("scholarships:v%d:%s", version, query)
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidateScholarship drops the listing and every cached search page.
func InvalidateScholarship(ctx context.Context, id uint) {
	Invalidate(ctx, ScholarshipKey(id))
	if c := GetClient(); c != nil {
		c.Incr(ctx, scholarshipListVersion)
	}
}
