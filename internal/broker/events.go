package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"food-marketplace/internal/models"
	"food-marketplace/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher is what EventPublisher needs from a producer
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID, event)
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID, event)
}

// PublishItemAdded publishes ItemAdded event
func (ep *EventPublisher) PublishItemAdded(ctx context.Context, event *models.ItemAddedEvent) error {
	return ep.producer.PublishEvent(ctx, "item-"+event.ItemID, event)
}

// PublishVendorPromoted publishes VendorPromoted event
func (ep *EventPublisher) PublishVendorPromoted(ctx context.Context, event *models.VendorPromotedEvent) error {
	return ep.producer.PublishEvent(ctx, "user-"+event.UserID, event)
}

// EventFunc handles one decoded event envelope; raw is the full message body
type EventFunc func(ctx context.Context, event models.BaseEvent, raw []byte) error

// EventHandler routes incoming messages by event type
type EventHandler struct {
	handlers map[string]EventFunc
	logger   *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{
		handlers: make(map[string]EventFunc),
		logger:   util.GetLogger(),
	}
}

// On registers fn for the given event types
func (eh *EventHandler) On(fn EventFunc, eventTypes ...string) {
	for _, t := range eventTypes {
		eh.handlers[t] = fn
	}
}

// HandleMessage routes messages to appropriate handlers. Unknown event types
// are skipped so they get committed.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	fn, ok := eh.handlers[baseEvent.EventType]
	if !ok {
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
		return nil
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))
	return fn(ctx, baseEvent, msg.Value)
}
