package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationEvent string

const (
	EventCustodyCreated NotificationEvent = "custody.created"
	EventCustodyUpdated NotificationEvent = "custody.updated"
)

// PushPayload is the structured push fan-out message C9 hands to the
// device push port. Delivery is best-effort: transport failures are
// logged by the fanout service and never bubble back to the mutation
// that triggered them.
type PushPayload struct {
	RecipientUserID uuid.UUID         `json:"recipient_user_id"`
	DeviceID        string            `json:"device_id"`
	Event           NotificationEvent `json:"event"`
	Title           string            `json:"title"`
	Body            string            `json:"body"`
	Data            map[string]string `json:"data,omitempty"`
	SentAt          time.Time         `json:"sent_at"`
}
