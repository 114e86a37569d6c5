package broker

import (
	"time"

	"github.com/anonto42/connect-hub/backend/internal/models"
)

// Payload is what a live subscriber receives. It is a best-effort copy of a
// notification (or of an ephemeral event such as a chat message).
type Payload struct {
	Type              string            `json:"type"`
	Message           string            `json:"message"`
	SenderID          uint              `json:"senderId,omitempty"`
	SenderDisplayName string            `json:"senderDisplayName"`
	SenderAvatarURL   *string           `json:"senderAvatarUrl"`
	Timestamp         string            `json:"timestamp"`
	NotificationID    uint              `json:"notificationId,omitempty"`
	Data              map[string]string `json:"data,omitempty"`
}

// NewPayload builds a payload from the sender's profile. sender may be nil when
// the profile could not be loaded.
func NewPayload(typ, message string, sender *models.User, at time.Time) Payload {
	p := Payload{
		Type:      typ,
		Message:   message,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
	if sender != nil {
		p.SenderID = sender.ID
		p.SenderDisplayName = sender.Label()
		p.SenderAvatarURL = sender.AvatarURL
	}
	return p
}
