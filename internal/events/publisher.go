// Package events publishes detection and amnesty lifecycle events to Kafka.
// Publishing is best-effort: a failed publish is logged and never blocks or
// fails the originating request.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/aumos/shadow-ai-sentinel/internal/config"
	"github.com/aumos/shadow-ai-sentinel/internal/database"
)

// Publisher defines the event publishing surface.
type Publisher interface {
	DetectionCreated(ctx context.Context, detection *database.Detection)
	MigrationProposed(ctx context.Context, proposal *database.MigrationProposal)
	AmnestyLifecycle(ctx context.Context, program *database.AmnestyProgram, transition string)
	Close() error
}

// KafkaPublisher implements Publisher over per-topic kafka-go writers.
type KafkaPublisher struct {
	writers      map[string]*kafka.Writer
	topics       config.TopicsConfig
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewKafkaPublisher creates writers for each configured topic.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	topics := []string{
		cfg.Topics.DetectionCreated,
		cfg.Topics.MigrationProposed,
		cfg.Topics.AmnestyLifecycle,
	}

	writers := make(map[string]*kafka.Writer, len(topics))
	for _, topic := range topics {
		writers[topic] = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: time.Duration(cfg.BatchTimeoutMs) * time.Millisecond,
			WriteTimeout: time.Duration(cfg.WriteTimeoutMs) * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		}
	}

	return &KafkaPublisher{
		writers:      writers,
		topics:       cfg.Topics,
		writeTimeout: time.Duration(cfg.WriteTimeoutMs) * time.Millisecond,
		logger:       logger,
	}
}

// publish serializes and writes one event, logging rather than returning
// failures. Events carry data the database already holds, so a lost event
// is recoverable downstream.
func (p *KafkaPublisher) publish(ctx context.Context, topic, key string, event interface{}) {
	writer, ok := p.writers[topic]
	if !ok {
		p.logger.Error("no writer configured for topic", zap.String("topic", topic))
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to serialize event",
			zap.String("topic", topic), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "source-service", Value: []byte("shadow-ai-sentinel")},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("topic", topic), zap.String("key", key), zap.Error(err))
		return
	}

	p.logger.Debug("event published",
		zap.String("topic", topic), zap.String("key", key))
}

// DetectionCreated publishes a shadow AI detection event.
func (p *KafkaPublisher) DetectionCreated(ctx context.Context, detection *database.Detection) {
	event := map[string]interface{}{
		"event_id":           fmt.Sprintf("detection-%s", detection.ID),
		"event_type":         "shadow_ai_detected",
		"detection_id":       detection.ID.String(),
		"tenant_id":          detection.TenantID.String(),
		"provider":           detection.Provider,
		"destination_domain": detection.DestinationDomain,
		"data_sensitivity":   detection.EstimatedDataSensitivity,
		"risk_score":         detection.ComplianceRiskScore,
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	}
	p.publish(ctx, p.topics.DetectionCreated, detection.ID.String(), event)
}

// MigrationProposed publishes a migration proposal event.
func (p *KafkaPublisher) MigrationProposed(ctx context.Context, proposal *database.MigrationProposal) {
	event := map[string]interface{}{
		"event_id":        fmt.Sprintf("proposal-%s", proposal.ID),
		"event_type":      "migration_proposed",
		"proposal_id":     proposal.ID.String(),
		"detection_id":    proposal.DetectionID.String(),
		"tenant_id":       proposal.TenantID.String(),
		"proposed_module": proposal.ProposedModule,
		"complexity":      proposal.MigrationComplexity,
		"estimated_hours": proposal.EstimatedMigrationHours,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}
	p.publish(ctx, p.topics.MigrationProposed, proposal.ID.String(), event)
}

// AmnestyLifecycle publishes an amnesty program transition event.
func (p *KafkaPublisher) AmnestyLifecycle(ctx context.Context, program *database.AmnestyProgram, transition string) {
	event := map[string]interface{}{
		"event_id":   fmt.Sprintf("amnesty-%s-%s", program.ID, transition),
		"event_type": "amnesty_" + transition,
		"program_id": program.ID.String(),
		"tenant_id":  program.TenantID.String(),
		"status":     program.Status,
		"expires_at": program.GracePeriodExpiresAt.Format(time.RFC3339),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	p.publish(ctx, p.topics.AmnestyLifecycle, program.TenantID.String(), event)
}

// NopPublisher discards events. Used when Kafka is not configured.
type NopPublisher struct{}

func (NopPublisher) DetectionCreated(context.Context, *database.Detection)              {}
func (NopPublisher) MigrationProposed(context.Context, *database.MigrationProposal)     {}
func (NopPublisher) AmnestyLifecycle(context.Context, *database.AmnestyProgram, string) {}
func (NopPublisher) Close() error                                                       { return nil }

// Close closes all writers.
func (p *KafkaPublisher) Close() error {
	var lastErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil {
			p.logger.Error("failed to close writer",
				zap.String("topic", topic), zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}
