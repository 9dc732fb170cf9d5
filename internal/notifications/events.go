package notifications

import (
	"encoding/json"
	"time"
)

// Event types published on the admin stream and to user channels.
const (
	EventModerationDecision = "moderation_decision"
	EventReportFiled        = "report_filed"
	EventUserBlocked        = "user_blocked"
	EventUserUnblocked      = "user_unblocked"

	EventWarningIssued  = "warning_issued"
	EventContentRemoved = "content_removed"
	EventReportSettled  = "report_settled"
)

// Event is the JSON envelope every moderation notification uses.
type Event struct {
	Type        string      `json:"type"`
	SubjectKind string      `json:"subject_kind,omitempty"`
	SubjectID   uint        `json:"subject_id,omitempty"`
	ActorID     uint        `json:"actor_id,omitempty"`
	Payload     interface{} `json:"payload,omitempty"`
	At          time.Time   `json:"at"`
}

// Encode marshals the event, stamping At when unset.
func (e Event) Encode() (string, error) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
