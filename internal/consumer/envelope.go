package consumer

import (
	"context"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

// Envelope carries a parsed activity event together with the queue message
// it came from. Ack removes the message, Nack hands it back for redelivery.
type Envelope struct {
	MessageID string
	Event     *domain.ActivityEvent

	ack  func(context.Context) error
	nack func(context.Context) error
}

func NewEnvelope(messageID string, event *domain.ActivityEvent, ack, nack func(context.Context) error) *Envelope {
	return &Envelope{
		MessageID: messageID,
		Event:     event,
		ack:       ack,
		nack:      nack,
	}
}

func (e *Envelope) Ack(ctx context.Context) error {
	if e.ack == nil {
		return nil
	}
	return e.ack(ctx)
}

func (e *Envelope) Nack(ctx context.Context) error {
	if e.nack == nil {
		return nil
	}
	return e.nack(ctx)
}
