// Package events publishes plan lifecycle and PlanUpdate audit records
// onto Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/saan-system/routeplanner/internal/domain"
	"github.com/segmentio/kafka-go"
)

const serviceSource = "routeplanner-service"

// Publisher publishes routeplanner domain events to a single Kafka
// topic.
type Publisher struct {
	writer   *kafka.Writer
	topic    string
	clientID string
}

// NewPublisher constructs a Kafka-backed Publisher with LeastBytes
// balancing, RequireOne acks, and small batch windows so plan events
// surface promptly.
func NewPublisher(brokers []string, topic, clientID string) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}
	return &Publisher{writer: writer, topic: topic, clientID: clientID}
}

// Close flushes and closes the underlying Kafka writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Publish writes a single eventType/data envelope to Kafka.
func (p *Publisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	envelope := map[string]interface{}{
		"event_type": eventType,
		"data":       data,
		"timestamp":  time.Now().UTC(),
		"source":     serviceSource,
		"client_id":  p.clientID,
		"version":    "1.0",
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(eventType),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
			{Key: "source", Value: []byte(serviceSource)},
		},
	}
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to publish event to kafka: %w", err)
	}
	return nil
}

// PublishPlanCreated announces a new draft plan.
func (p *Publisher) PublishPlanCreated(ctx context.Context, plan *domain.RoutePlan) error {
	return p.Publish(ctx, "plan.created", plan)
}

// PublishPlanActivated announces that planID has become the driver's
// one active plan.
func (p *Publisher) PublishPlanActivated(ctx context.Context, planID, driverID string) error {
	return p.Publish(ctx, "plan.activated", map[string]string{"plan_id": planID, "driver_id": driverID})
}

// PublishPlanUpdate announces a PlanUpdate audit record, letting
// downstream consumers (dispatch UIs, ETA feeds) react to replans
// without polling the plan store.
func (p *Publisher) PublishPlanUpdate(ctx context.Context, update domain.PlanUpdate) error {
	return p.Publish(ctx, planUpdateEventType(update), update)
}

// planUpdateEventType picks the Kafka event type for a PlanUpdate
// record: replans get their own topic key so ETA-only consumers can
// filter them out cheaply.
func planUpdateEventType(update domain.PlanUpdate) string {
	if update.ReplanTriggered {
		return "plan.replanned"
	}
	return "plan.update_applied"
}
