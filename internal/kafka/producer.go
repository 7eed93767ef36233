package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubhsaxena/chat-search/internal/config"
	"github.com/shubhsaxena/chat-search/internal/models"
)

// Producer publishes product change events, keyed by product id so every
// change of one product lands on the same partition in order.
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewProducer(cfg config.KafkaConfig, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicChanges,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxRetries,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}

	logger.Info("kafka producer created", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.TopicChanges))

	return &Producer{
		writer: w,
		logger: logger,
	}
}

func eventMessage(event *models.ProductChangeEvent) (kafka.Message, error) {
	if event.ProductID == 0 && event.Product != nil {
		event.ProductID = event.Product.ID
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshaling change event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", event.ProductID)),
		Value: data,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(strings.ToUpper(event.Type))},
		},
	}, nil
}

func (p *Producer) PublishChangeEvent(ctx context.Context, event *models.ProductChangeEvent) error {
	msg, err := eventMessage(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing change event: %w", err)
	}

	return nil
}

func (p *Producer) PublishBatch(ctx context.Context, events []*models.ProductChangeEvent) error {
	msgs := make([]kafka.Message, len(events))
	for i, event := range events {
		msg, err := eventMessage(event)
		if err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		msgs[i] = msg
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publishing batch of %d events: %w", len(events), err)
	}

	p.logger.Debug("published change events", zap.Int("count", len(events)))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
