package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	InviteNotificationSubject = "notify.invites"
)

// InviteNotification is the message published when an organization owner
// invites a user. The mailer turns it into an activation email carrying
// the one-time secret. Delivery is best-effort; the inviting request has
// already committed by the time this is published.
type InviteNotification struct {
	InviteID         int64     `json:"invite_id"`
	OrganizationID   int64     `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	Email            string    `json:"email"`
	Secret           uuid.UUID `json:"secret"`
	CreatedAt        time.Time `json:"created_at"`
}
