package worker

import (
	"context"

	"food-marketplace/internal/broker"
	"food-marketplace/internal/models"
	"food-marketplace/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Consumer is the part of broker.Consumer the worker drives
type Consumer interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// CatalogEvents reacts to events that change the catalog listings
type CatalogEvents interface {
	HandleCatalogEvent(ctx context.Context, event models.BaseEvent, raw []byte) error
}

// CatalogWorker drops the cached catalog listings whenever items, vendors
// or stock change.
type CatalogWorker struct {
	consumer     Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewCatalogWorker creates a new catalog worker
func NewCatalogWorker(consumer Consumer, catalog CatalogEvents) *CatalogWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.On(catalog.HandleCatalogEvent,
		models.EventTypeItemAdded,
		models.EventTypeOrderPlaced,
		models.EventTypeVendorPromoted,
	)

	return &CatalogWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start blocks until ctx is cancelled
func (w *CatalogWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting catalog worker")
	return w.consumer.StartConsuming(ctx, w.handle)
}

func (w *CatalogWorker) handle(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

// Stop stops the worker
func (w *CatalogWorker) Stop() error {
	w.logger.Info("Stopping catalog worker")
	return w.consumer.Close()
}
