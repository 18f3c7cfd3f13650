package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	envConfig "github.com/maysaraadmin/moodle-analytics/internal/config"
	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

// maxBatchEntries is the SQS limit for SendMessageBatch
const maxBatchEntries = 10

// api is the subset of the SQS client used here
type api interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, opts ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, opts ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, in *sqs.ChangeMessageVisibilityInput, opts ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	SendMessageBatch(ctx context.Context, in *sqs.SendMessageBatchInput, opts ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
}

// Client publishes and consumes Moodle activity events on one queue
type Client struct {
	client api
	config envConfig.SQS
	log    *zap.Logger
}

// NewClient loads AWS credentials and binds the client to the configured
// queue. A custom endpoint selects static dummy credentials for ElasticMQ.
func NewClient(ctx context.Context, SQSConfig envConfig.SQS, log *zap.Logger) (*Client, error) {
	if SQSConfig.QueueURL == "" {
		return nil, fmt.Errorf("SQS queue URL is required")
	}

	configOpts := []func(*config.LoadOptions) error{
		config.WithRegion(SQSConfig.Region),
	}

	var clientOpts []func(*sqs.Options)

	if SQSConfig.Endpoint != "" {
		log.Info("Configuring SQS for local development",
			zap.String("endpoint", SQSConfig.Endpoint))
		configOpts = append(configOpts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "")))

		clientOpts = append(clientOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(SQSConfig.Endpoint)
		})
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info("SQS client created",
		zap.String("region", SQSConfig.Region),
		zap.String("queue_url", SQSConfig.QueueURL))

	return &Client{
		client: sqs.NewFromConfig(cfg, clientOpts...),
		config: SQSConfig,
		log:    log,
	}, nil
}

func (c *Client) ReceiveMessages(ctx context.Context, input *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error) {
	return c.client.ReceiveMessage(ctx, input)
}

func (c *Client) DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error) {
	return c.client.DeleteMessage(ctx, input)
}

func (c *Client) ChangeMessageVisibility(ctx context.Context, input *sqs.ChangeMessageVisibilityInput) (*sqs.ChangeMessageVisibilityOutput, error) {
	return c.client.ChangeMessageVisibility(ctx, input)
}

func (c *Client) QueueURL() string {
	return c.config.QueueURL
}

// PublishEvent sends one activity event
func (c *Client) PublishEvent(ctx context.Context, event *domain.ActivityEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = c.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(c.config.QueueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: eventAttributes(event),
	})
	if err != nil {
		c.log.Error("Failed to send message to SQS",
			zap.Int64("event_id", event.EventID),
			zap.String("event_name", event.EventName),
			zap.Error(err))
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	c.log.Debug("Event published to SQS",
		zap.Int64("event_id", event.EventID),
		zap.String("event_name", event.EventName),
		zap.String("course_id", event.CourseID))

	return nil
}

// PublishEvents sends events in batches of ten. The result holds one error
// per event, nil where the event was accepted.
func (c *Client) PublishEvents(ctx context.Context, events []*domain.ActivityEvent) []error {
	results := make([]error, len(events))

	for start := 0; start < len(events); start += maxBatchEntries {
		end := min(start+maxBatchEntries, len(events))
		c.publishChunk(ctx, events[start:end], results[start:end])
	}
	return results
}

// publishChunk sends at most maxBatchEntries events. Entry ids are the
// positions within the chunk.
func (c *Client) publishChunk(ctx context.Context, events []*domain.ActivityEvent, results []error) {
	entries := make([]types.SendMessageBatchRequestEntry, 0, len(events))
	for i, event := range events {
		body, err := json.Marshal(event)
		if err != nil {
			results[i] = fmt.Errorf("failed to marshal event: %w", err)
			continue
		}
		entries = append(entries, types.SendMessageBatchRequestEntry{
			Id:                aws.String(strconv.Itoa(i)),
			MessageBody:       aws.String(string(body)),
			MessageAttributes: eventAttributes(event),
		})
	}
	if len(entries) == 0 {
		return
	}

	out, err := c.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
		QueueUrl: aws.String(c.config.QueueURL),
		Entries:  entries,
	})
	if err != nil {
		c.log.Error("Failed to send message batch to SQS",
			zap.Int("entries", len(entries)),
			zap.Error(err))
		for _, e := range entries {
			i, _ := strconv.Atoi(aws.ToString(e.Id))
			results[i] = fmt.Errorf("failed to send message to SQS: %w", err)
		}
		return
	}

	for _, f := range out.Failed {
		i, convErr := strconv.Atoi(aws.ToString(f.Id))
		if convErr != nil || i < 0 || i >= len(results) {
			continue
		}
		results[i] = fmt.Errorf("failed to send message to SQS: %w",
			errors.New(aws.ToString(f.Code)+": "+aws.ToString(f.Message)))
	}
	if len(out.Failed) > 0 {
		c.log.Warn("SQS rejected batch entries",
			zap.Int("failed", len(out.Failed)),
			zap.Int("entries", len(entries)))
	}
}

func eventAttributes(event *domain.ActivityEvent) map[string]types.MessageAttributeValue {
	return map[string]types.MessageAttributeValue{
		"EventName": {
			DataType:    aws.String("String"),
			StringValue: aws.String(event.EventName),
		},
		"Component": {
			DataType:    aws.String("String"),
			StringValue: aws.String(event.Component),
		},
		"CourseID": {
			DataType:    aws.String("String"),
			StringValue: aws.String(event.CourseID),
		},
	}
}
