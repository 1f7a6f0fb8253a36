// Package events publishes analysis outcomes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/banking/batch-analysis/internal/config"
	"github.com/banking/batch-analysis/internal/domain"
	"github.com/banking/batch-analysis/internal/pkg/logger"
)

// Publisher sends analysis events and alerts through a sync producer
type Publisher struct {
	producer    sarama.SyncProducer
	eventsTopic string
	alertsTopic string
	log         *logger.Logger
}

// NewPublisher connects a sync producer to the configured brokers
func NewPublisher(cfg config.KafkaConfig, log *logger.Logger) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewProducerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewPublisherWithProducer(producer, cfg, log), nil
}

// NewProducerConfig returns the sarama settings used for publishing
func NewProducerConfig(cfg config.KafkaConfig) *sarama.Config {
	c := sarama.NewConfig()
	if cfg.ClientID != "" {
		c.ClientID = cfg.ClientID
	}
	c.Producer.RequiredAcks = sarama.WaitForAll
	c.Producer.Retry.Max = cfg.MaxRetries
	c.Producer.Return.Successes = true
	return c
}

// NewPublisherWithProducer wraps an existing producer
func NewPublisherWithProducer(producer sarama.SyncProducer, cfg config.KafkaConfig, log *logger.Logger) *Publisher {
	return &Publisher{
		producer:    producer,
		eventsTopic: cfg.AnalysisEventsTopic,
		alertsTopic: cfg.AlertsTopic,
		log:         log.Named("event_publisher"),
	}
}

// PublishAnalysisCompleted publishes a completed-run event keyed by analysis id
func (p *Publisher) PublishAnalysisCompleted(ctx context.Context, event *domain.AnalysisCompletedEvent) error {
	return p.send(ctx, p.eventsTopic, event.Summary.AnalysisID, event.EventType, event)
}

// PublishAlert publishes a high-risk alert keyed by analysis id
func (p *Publisher) PublishAlert(ctx context.Context, alert *domain.AnalysisAlert) error {
	return p.send(ctx, p.alertsTopic, alert.AnalysisID, string(alert.AlertType), alert)
}

func (p *Publisher) send(ctx context.Context, topic, key, eventType string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", eventType, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", eventType, topic, err)
	}

	p.log.Debug("event published",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// Close flushes and closes the producer
func (p *Publisher) Close() error {
	return p.producer.Close()
}
