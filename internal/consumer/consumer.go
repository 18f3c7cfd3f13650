package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/config"
	"github.com/maysaraadmin/moodle-analytics/internal/queue"
	"github.com/maysaraadmin/moodle-analytics/internal/repository"
)

// Consumer orchestrates a pipeline of stages to process SQS messages
type Consumer struct {
	bufferSize  int
	receiver    *Receiver
	parser      *ParserStage
	batchWriter *BatchWriter
}

// NewConsumer builds the receive, parse and batch-write stages from cfg.
// Zero receive settings fall back to the SQS maximums.
func NewConsumer(cfg *config.Config, queueConsumer queue.QueueConsumer, repo repository.EventRepository, log *zap.Logger) *Consumer {
	receiverConfig := ReceiverConfig{
		MaxMessages:     cfg.Consumer.ReceiveMaxMessages,
		WaitTimeSeconds: cfg.Consumer.WaitTimeSec,
		BufferSize:      cfg.Consumer.BufferSize,
		RetryDelay:      cfg.Consumer.RetryDelay,
		MaxRetryDelay:   cfg.Consumer.MaxRetryDelay,
	}
	if receiverConfig.MaxMessages <= 0 {
		receiverConfig.MaxMessages = 10
	}
	if receiverConfig.WaitTimeSeconds <= 0 {
		receiverConfig.WaitTimeSeconds = 20
	}
	if receiverConfig.BufferSize <= 0 {
		receiverConfig.BufferSize = 100
	}
	receiver := NewReceiver(queueConsumer, receiverConfig, log)

	parser := NewParserStage(queueConsumer, NewJSONEventParser(), log)

	batchWriter := NewBatchWriter(repo, BatchWriterConfig{
		MaxBatchSize: cfg.Consumer.BatchSizeMax,
		FlushTimeout: time.Duration(cfg.Consumer.BatchTimeoutSec) * time.Second,
	}, log)

	return &Consumer{
		bufferSize:  receiverConfig.BufferSize,
		receiver:    receiver,
		parser:      parser,
		batchWriter: batchWriter,
	}
}

// Start begins the consumer pipeline
func (c *Consumer) Start(ctx context.Context) error {
	messageChan := make(chan types.Message, c.bufferSize)
	envelopeChan := make(chan *Envelope, c.bufferSize)

	var wg sync.WaitGroup

	// Start all pipeline stages
	wg.Add(3)

	// Stage 1: Receive messages from SQS
	go func() {
		defer wg.Done()
		c.receiver.Start(ctx, messageChan)
	}()

	// Stage 2: Parse messages into envelopes
	go func() {
		defer wg.Done()
		c.parser.Start(ctx, messageChan, envelopeChan)
	}()

	// Stage 3: Batch and write to the repository
	go func() {
		defer wg.Done()
		c.batchWriter.Start(ctx, envelopeChan)
	}()

	wg.Wait()
	return nil
}

// Stats reports the batch writer counters
func (c *Consumer) Stats() BatchStats {
	return c.batchWriter.Stats()
}
