package core

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/opsboard/opsboard/pkg/events"
)

// InviteSubscriber yields invite notifications from the bus.
type InviteSubscriber interface {
	SubscribeToInviteNotifications() (<-chan events.InviteNotification, error)
}

// Sender delivers a single email.
type Sender interface {
	Send(to, subject, body string) error
}

// Mailer consumes invite notifications and sends activation emails.
// Delivery is best effort: a failed send is logged and dropped, never
// retried or escalated.
type Mailer struct {
	Subscriber InviteSubscriber
	Sender     Sender
	BaseURL    string
	Log        *zap.Logger
}

func NewMailer(sub InviteSubscriber, sender Sender, baseURL string, log *zap.Logger) *Mailer {
	return &Mailer{
		Subscriber: sub,
		Sender:     sender,
		BaseURL:    baseURL,
		Log:        log,
	}
}

func (m *Mailer) Start() error {
	ch, err := m.Subscriber.SubscribeToInviteNotifications()
	if err != nil {
		return err
	}

	m.Log.Info("mailer started, waiting for notifications")

	for msg := range ch {
		if err := m.Process(msg); err != nil {
			m.Log.Error("failed to send invite email",
				zap.Int64("invite_id", msg.InviteID),
				zap.String("email", msg.Email),
				zap.Error(err))
			continue
		}
		m.Log.Info("invite email sent",
			zap.Int64("invite_id", msg.InviteID),
			zap.String("email", msg.Email))
	}
	return nil
}

// Process turns one notification into an activation email.
func (m *Mailer) Process(msg events.InviteNotification) error {
	link := fmt.Sprintf("%s/invites/accept?secret=%s&email=%s", m.BaseURL, msg.Secret, msg.Email)

	subject := fmt.Sprintf("You have been invited to join %s", msg.OrganizationName)
	body := fmt.Sprintf(
		"You have been invited to join the organization %q.\n\n"+
			"Follow this link to accept the invitation:\n%s\n\n"+
			"If you did not expect this invitation you can ignore this email.\n",
		msg.OrganizationName, link)

	return m.Sender.Send(msg.Email, subject, body)
}
