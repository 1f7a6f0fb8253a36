package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banking/batch-analysis/internal/config"
	"github.com/banking/batch-analysis/internal/domain"
	"github.com/banking/batch-analysis/internal/pkg/logger"
)

var kafkaCfg = config.KafkaConfig{
	AnalysisEventsTopic: "banking.aml.analysis",
	AlertsTopic:         "banking.aml.alerts",
	MaxRetries:          1,
}

func sampleResult() *domain.AnalysisResult {
	return &domain.AnalysisResult{
		AnalysisID:   "batch_20240301_090000_1a2b3c4d",
		AnalysisType: domain.AnalysisSuspiciousPatterns,
		RiskScore:    0.733,
		PatternsDetected: []domain.PatternFinding{
			{Type: domain.PatternRapidSuccession, EntityID: "S1", Count: 4, RiskScore: 0.8},
		},
		Recommendations: []string{"Immediate investigation recommended for high-risk patterns"},
		CreatedAt:       time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestPublisher_PublishAnalysisCompleted(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig(kafkaCfg))
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != kafkaCfg.AnalysisEventsTopic {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "batch_20240301_090000_1a2b3c4d" {
			return errors.New("unexpected key " + string(key))
		}
		value, _ := msg.Value.Encode()
		var event domain.AnalysisCompletedEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return err
		}
		if event.EventType != domain.EventTypeAnalysisCompleted || event.Summary.RiskScore != 0.733 {
			return errors.New("unexpected payload")
		}
		return nil
	})

	p := NewPublisherWithProducer(producer, kafkaCfg, logger.NewNop())
	err := p.PublishAnalysisCompleted(context.Background(), domain.NewAnalysisCompletedEvent(sampleResult()))
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestPublisher_PublishAlert(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig(kafkaCfg))
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != kafkaCfg.AlertsTopic {
			return errors.New("unexpected topic " + msg.Topic)
		}
		return nil
	})

	p := NewPublisherWithProducer(producer, kafkaCfg, logger.NewNop())
	require.NoError(t, p.PublishAlert(context.Background(), domain.NewAnalysisAlert(sampleResult())))
	require.NoError(t, p.Close())
}

func TestPublisher_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig(kafkaCfg))
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewPublisherWithProducer(producer, kafkaCfg, logger.NewNop())
	err := p.PublishAnalysisCompleted(context.Background(), domain.NewAnalysisCompletedEvent(sampleResult()))
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestPublisher_CancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig(kafkaCfg))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPublisherWithProducer(producer, kafkaCfg, logger.NewNop())
	assert.ErrorIs(t, p.PublishAlert(ctx, domain.NewAnalysisAlert(sampleResult())), context.Canceled)
	require.NoError(t, p.Close())
}
