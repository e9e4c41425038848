package service

import (
	"context"
	"time"

	"food-marketplace/internal/models"
	"food-marketplace/internal/store"
)

// UserRepository is the user part of the datastore
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUserLevel(ctx context.Context, id string, level int) (*models.User, error)
	GetUsersByLevel(ctx context.Context, level int) ([]models.User, error)
}

// ItemRepository is the catalog part of the datastore
type ItemRepository interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByLevel(ctx context.Context, level int) ([]models.User, error)
	CreateItem(ctx context.Context, item *models.Item) error
	GetItems(ctx context.Context) ([]models.Item, error)
	GetItemsByVendorIDs(ctx context.Context, vendorIDs []string) ([]models.Item, error)
}

// OrderRepository is the order part of the datastore. Mutations go through
// WithinTx so that each operation commits as one unit.
type OrderRepository interface {
	WithinTx(ctx context.Context, fn func(tx store.Tx) error) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error)
	GetOrders(ctx context.Context) ([]models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error)
}

var (
	_ UserRepository  = (*store.Store)(nil)
	_ ItemRepository  = (*store.Store)(nil)
	_ OrderRepository = (*store.Store)(nil)
)

// SessionStore keeps the logged-in user per session token
type SessionStore interface {
	CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error)
	GetSession(ctx context.Context, token string) (string, error)
	DeleteSession(ctx context.Context, token string) error
}

// IdempotencyStore remembers which order a client key produced
type IdempotencyStore interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, string, error)
	CompleteIdempotencyKey(ctx context.Context, key, orderID string, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// Cache stores JSON snapshots of catalog listings
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// EventPublisher publishes domain events after commit
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishItemAdded(ctx context.Context, event *models.ItemAddedEvent) error
	PublishVendorPromoted(ctx context.Context, event *models.VendorPromotedEvent) error
}
