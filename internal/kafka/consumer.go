package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubhsaxena/chat-search/internal/config"
	"github.com/shubhsaxena/chat-search/internal/models"
	"github.com/shubhsaxena/chat-search/internal/observability"
)

type MessageHandler func(ctx context.Context, event *models.ProductChangeEvent) error

// Consumer reads product change events from the changes topic. Events the
// handler keeps rejecting, and messages that do not decode, go to the DLQ.
type Consumer struct {
	reader     *kafka.Reader
	dlqWriter  *kafka.Writer
	handler    MessageHandler
	cfg        config.KafkaConfig
	logger     *zap.Logger
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
}

func NewConsumer(cfg config.KafkaConfig, handler MessageHandler, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.TopicChanges,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1e3,  // 1KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	dlqWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.TopicDLQ,
		Balancer: &kafka.Hash{},
	}

	logger.Info("kafka consumer created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.TopicChanges),
		zap.String("group", cfg.ConsumerGroup),
	)

	return &Consumer{
		reader:    reader,
		dlqWriter: dlqWriter,
		handler:   handler,
		cfg:       cfg,
		logger:    logger,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeLoop(ctx)
	}()

	c.logger.Info("kafka consumer started")
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("kafka consumer shutting down")
				return
			}
			c.logger.Error("fetching kafka message", zap.Error(err))
			if !sleep(ctx, time.Second) {
				return
			}
			continue
		}

		c.processMessage(ctx, msg)
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	start := time.Now()

	event, err := decodeEvent(msg.Value)
	if err != nil {
		c.logger.Error("decoding change event",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
			zap.Int("partition", msg.Partition),
		)
		observability.IndexingEventsTotal.WithLabelValues("unknown", "dlq").Inc()
		c.sendToDLQ(ctx, msg, fmt.Sprintf("decode error: %v", err))
		c.commitMessage(ctx, msg)
		return
	}

	attempts := c.cfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if lastErr = c.handler(ctx, event); lastErr == nil {
			break
		}
		c.logger.Warn("handler error, retrying",
			zap.Error(lastErr),
			zap.Int("attempt", attempt+1),
			zap.Int64("product_id", event.ProductID),
		)
		if attempt < attempts-1 && !sleep(ctx, retryBackoff(attempt)) {
			// shutting down; leave the message uncommitted for redelivery
			return
		}
	}

	if lastErr != nil {
		c.logger.Error("handler failed after retries, sending to DLQ",
			zap.Error(lastErr),
			zap.Int64("product_id", event.ProductID),
		)
		observability.IndexingEventsTotal.WithLabelValues(event.Type, "dlq").Inc()
		c.sendToDLQ(ctx, msg, fmt.Sprintf("handler error after retries: %v", lastErr))
	} else {
		observability.IndexingEventsTotal.WithLabelValues(event.Type, "success").Inc()
	}

	c.commitMessage(ctx, msg)

	c.logger.Debug("message processed",
		zap.Int64("product_id", event.ProductID),
		zap.String("type", event.Type),
		zap.Duration("duration", time.Since(start)),
	)
}

// decodeEvent parses and validates a change event payload. The type is
// normalized to upper case.
func decodeEvent(data []byte) (*models.ProductChangeEvent, error) {
	var event models.ProductChangeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	event.Type = strings.ToUpper(event.Type)
	switch event.Type {
	case "CREATE", "UPDATE":
		if event.Product == nil {
			return nil, fmt.Errorf("%s event without product", event.Type)
		}
		if event.ProductID == 0 {
			event.ProductID = event.Product.ID
		}
	case "DELETE":
		if event.ProductID == 0 {
			return nil, fmt.Errorf("delete event without product_id")
		}
	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return &event, nil
}

func retryBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func dlqMessage(msg kafka.Message, topic, reason string) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers)+4)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlq_reason", Value: []byte(reason)},
		kafka.Header{Key: "original_topic", Value: []byte(topic)},
		kafka.Header{Key: "original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: "original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
	)
	return kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}

func (c *Consumer) sendToDLQ(ctx context.Context, msg kafka.Message, reason string) {
	if err := c.dlqWriter.WriteMessages(ctx, dlqMessage(msg, c.cfg.TopicChanges, reason)); err != nil {
		c.logger.Error("failed to send to DLQ",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
		)
	}
}

func (c *Consumer) commitMessage(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("committing kafka message",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
		)
	}
}

func (c *Consumer) HealthCheck(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", c.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka health check dial: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Brokers(); err != nil {
		return fmt.Errorf("kafka health check brokers: %w", err)
	}
	return nil
}

func (c *Consumer) Stop() error {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()

	var errs []error
	if err := c.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing reader: %w", err))
	}
	if err := c.dlqWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing dlq writer: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("consumer close errors: %v", errs)
	}
	return nil
}
