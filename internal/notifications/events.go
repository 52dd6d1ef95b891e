package notifications

import (
	"encoding/json"
	"fmt"
	"time"

	"scholarhub/internal/workflow"
)

// Event types pushed over the websocket.
const (
	TypeApplicationStatus   = "application.status"
	TypeApplicationCreated  = "application.created"
	TypeApplicationFeedback = "application.feedback"
	// TypeMessagesDropped tells a slow client to refetch its applications.
	TypeMessagesDropped = "messages_dropped"
)

// Event is the envelope every websocket frame carries.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// StatusChange tells a student their application moved.
type StatusChange struct {
	ApplicationID   uint                 `json:"applicationId"`
	TrackingID      string               `json:"trackingId"`
	ScholarshipName string               `json:"scholarshipName,omitempty"`
	From            workflow.State       `json:"from"`
	To              workflow.State       `json:"to"`
	Event           workflow.EventStatus `json:"event,omitempty"`
	Feedback        string               `json:"feedback,omitempty"`
	At              time.Time            `json:"at"`
}

// Encode marshals e into a frame payload.
func (e Event) Encode() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	return string(b), nil
}

// UserChannel is the pub/sub channel for one user's notifications.
func UserChannel(userID uint) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// RoleChannel is the pub/sub channel every user holding role listens on.
func RoleChannel(role workflow.Role) string {
	return "notifications:role:" + string(role)
}
