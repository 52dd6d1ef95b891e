package workflow

import "time"

// IsApplicationOpen reports whether applications are still accepted.
// The deadline instant itself still counts as open.
func IsApplicationOpen(deadline, now time.Time) bool {
	return !deadline.Before(now)
}

// Remaining is a countdown broken into display units.
type Remaining struct {
	Days    int  `json:"days"`
	Hours   int  `json:"hours"`
	Minutes int  `json:"minutes"`
	Seconds int  `json:"seconds"`
	Expired bool `json:"expired"`
}

// Countdown derives the time left until deadline. It keeps no state, so it is
// recomputed on every tick or request.
func Countdown(deadline, now time.Time) Remaining {
	d := deadline.Sub(now)
	if d < 0 {
		return Remaining{Expired: true}
	}
	total := int(d / time.Second)
	return Remaining{
		Days:    total / 86400,
		Hours:   (total % 86400) / 3600,
		Minutes: (total % 3600) / 60,
		Seconds: total % 60,
	}
}
