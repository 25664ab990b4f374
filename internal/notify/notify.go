// Package notify sends a message when a probe's verdict changes between
// runs.
package notify

import (
	"context"
	"fmt"
)

// Channel is a notification channel.
type Channel interface {
	Send(ctx context.Context, msg *Message) error
	Type() string
}

// Message contains notification details.
type Message struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Priority Priority `json:"priority"`
	Tags     []string `json:"tags,omitempty"`
	Probe    string   `json:"probe"`
	Pass     bool     `json:"pass"`
	RunID    string   `json:"run_id,omitempty"`
}

// Priority levels for notifications.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// VerdictChange is a probe flipping between pass and fail. Previous is nil
// for a probe seen for the first time.
type VerdictChange struct {
	Probe    string
	RunID    string
	Previous *bool
	Pass     bool

	// Reason is the first failing stage's reason when Pass is false.
	Reason string
}

func verdict(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

// FormatVerdictChange creates a notification message for a verdict change.
func FormatVerdictChange(change *VerdictChange) *Message {
	msg := &Message{
		Title: fmt.Sprintf("[%s] %s", verdict(change.Pass), change.Probe),
		Probe: change.Probe,
		Pass:  change.Pass,
		RunID: change.RunID,
	}

	switch {
	case change.Pass:
		msg.Priority = PriorityNormal
		msg.Body = "probe passes all checks again"
		msg.Tags = []string{"pass", "recovery"}
	case change.Previous == nil:
		msg.Priority = PriorityHigh
		msg.Body = change.Reason
		msg.Tags = []string{"fail"}
	default:
		msg.Priority = PriorityUrgent
		msg.Body = change.Reason
		msg.Tags = []string{"fail", "regression"}
	}

	if change.Previous != nil {
		msg.Body = fmt.Sprintf("%s → %s: %s", verdict(*change.Previous), verdict(change.Pass), msg.Body)
	}
	return msg
}
