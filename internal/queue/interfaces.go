package queue

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

// QueuePublisher sends activity events to the ingestion queue
type QueuePublisher interface {
	PublishEvent(ctx context.Context, event *domain.ActivityEvent) error

	// PublishEvents returns one error per event, nil where it was accepted
	PublishEvents(ctx context.Context, events []*domain.ActivityEvent) []error
}

// QueueConsumer receives and settles messages on the ingestion queue
type QueueConsumer interface {
	ReceiveMessages(ctx context.Context, input *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, input *sqs.ChangeMessageVisibilityInput) (*sqs.ChangeMessageVisibilityOutput, error)
	QueueURL() string
}
