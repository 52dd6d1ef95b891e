package workflow

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTimelineEmpty    = errors.New("workflow: timeline has no events")
	ErrTimelineOrder    = errors.New("workflow: timeline events out of order")
	ErrTimelineDiverged = errors.New("workflow: latest timeline event disagrees with application state")
)

// TimelineEntry is the part of a stored event the consistency check needs.
type TimelineEntry struct {
	Status    EventStatus
	CreatedAt time.Time
}

// ValidateTimeline checks that events are in non-decreasing time order and
// that the last one is the event state implies.
func ValidateTimeline(events []TimelineEntry, state State) error {
	if len(events) == 0 {
		return ErrTimelineEmpty
	}
	for i := 1; i < len(events); i++ {
		if events[i].CreatedAt.Before(events[i-1].CreatedAt) {
			return fmt.Errorf("%w: event %d at %s precedes event %d at %s", ErrTimelineOrder,
				i, events[i].CreatedAt.Format(time.RFC3339Nano), i-1, events[i-1].CreatedAt.Format(time.RFC3339Nano))
		}
	}
	if events[0].Status != EventApplyCreated {
		return fmt.Errorf("%w: first event is %q", ErrTimelineDiverged, events[0].Status)
	}
	want := EventFor(state)
	if got := events[len(events)-1].Status; got != want {
		return fmt.Errorf("%w: latest %q, state %s/%s wants %q", ErrTimelineDiverged, got, state.Application, state.Payment, want)
	}
	return nil
}
