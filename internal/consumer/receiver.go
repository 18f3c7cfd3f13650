package consumer

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/queue"
)

// ReceiverConfig configures long polling. RetryDelay doubles after every
// consecutive receive error up to MaxRetryDelay.
type ReceiverConfig struct {
	MaxMessages     int32
	WaitTimeSeconds int32
	BufferSize      int
	RetryDelay      time.Duration
	MaxRetryDelay   time.Duration
}

// Receiver long-polls the queue and feeds raw messages into the pipeline
type Receiver struct {
	consumer queue.QueueConsumer
	config   ReceiverConfig
	log      *zap.Logger
}

func NewReceiver(consumer queue.QueueConsumer, config ReceiverConfig, log *zap.Logger) *Receiver {
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.MaxRetryDelay < config.RetryDelay {
		config.MaxRetryDelay = 30 * config.RetryDelay
	}
	return &Receiver{
		consumer: consumer,
		config:   config,
		log:      log,
	}
}

// Start polls until ctx is cancelled, then closes out
func (r *Receiver) Start(ctx context.Context, out chan<- types.Message) {
	defer close(out)

	failures := 0
	for {
		if ctx.Err() != nil {
			r.log.Info("Receiver shutting down")
			return
		}

		result, err := r.consumer.ReceiveMessages(ctx, &awssqs.ReceiveMessageInput{
			QueueUrl:              aws.String(r.consumer.QueueURL()),
			MaxNumberOfMessages:   r.config.MaxMessages,
			WaitTimeSeconds:       r.config.WaitTimeSeconds,
			MessageAttributeNames: []string{"All"},
		})
		if err != nil {
			if ctx.Err() != nil {
				r.log.Info("Receiver shutting down")
				return
			}
			failures++
			delay := r.backoff(failures)
			r.log.Error("Error receiving messages from SQS",
				zap.Error(err),
				zap.Int("consecutive_failures", failures),
				zap.Duration("retry_in", delay))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		failures = 0

		if len(result.Messages) == 0 {
			continue
		}
		r.log.Debug("Received messages from SQS", zap.Int("message_count", len(result.Messages)))

		for _, msg := range result.Messages {
			select {
			case <-ctx.Done():
				r.log.Info("Receiver shutting down while sending messages")
				return
			case out <- msg:
			}
		}
	}
}

// backoff returns the wait before retry number n, starting at 1
func (r *Receiver) backoff(n int) time.Duration {
	delay := r.config.RetryDelay
	for i := 1; i < n && delay < r.config.MaxRetryDelay; i++ {
		delay *= 2
	}
	if delay > r.config.MaxRetryDelay {
		delay = r.config.MaxRetryDelay
	}
	return delay
}
