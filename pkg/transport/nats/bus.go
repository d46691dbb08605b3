package nats

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/opsboard/opsboard/pkg/events"
)

const (
	SubjectInviteNotification = "notify.invites"
	QueueGroupMailer          = "mailer-group"
)

type NatsBus struct {
	Conn *nats.Conn
	Enc  *nats.EncodedConn
}

func NewNatsBus(url string) (*NatsBus, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect failed: %w", err)
	}

	ec, err := nats.NewEncodedConn(nc, nats.JSON_ENCODER)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats encoded conn failed: %w", err)
	}

	return &NatsBus{
		Conn: nc,
		Enc:  ec,
	}, nil
}

func (b *NatsBus) Close() {
	b.Enc.Close()
	b.Conn.Close()
}

// -- Publisher Implementation --

func (b *NatsBus) PublishInviteNotification(msg *events.InviteNotification) error {
	return b.Enc.Publish(SubjectInviteNotification, msg)
}

// -- Subscriber Implementation --

func (b *NatsBus) SubscribeToInviteNotifications() (<-chan events.InviteNotification, error) {
	ch := make(chan events.InviteNotification, 100)
	// Queue subscribe so notifications are load balanced if we run
	// multiple mailer instances.
	_, err := b.Enc.QueueSubscribe(SubjectInviteNotification, QueueGroupMailer, func(msg *events.InviteNotification) {
		ch <- *msg
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}
