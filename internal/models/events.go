package models

import "time"

// Event types
const (
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderPlaced    = "ORDER_PLACED"
	EventTypeItemAdded      = "ITEM_ADDED"
	EventTypeVendorPromoted = "VENDOR_PROMOTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order and its lines are committed
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	TotalAmount int64           `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderPlacedEvent published when stock has been decremented for an order
type OrderPlacedEvent struct {
	BaseEvent
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	Items   []OrderItemData `json:"items"`
}

// ItemAddedEvent published when a vendor lists a new item
type ItemAddedEvent struct {
	BaseEvent
	ItemID   string `json:"item_id"`
	VendorID string `json:"vendor_id"`
}

// VendorPromotedEvent published when a user becomes a vendor
type VendorPromotedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ItemID    string `json:"item_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price,omitempty"`
}
