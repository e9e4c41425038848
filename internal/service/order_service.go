package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"food-marketplace/config"
	"food-marketplace/internal/models"
	"food-marketplace/internal/store"
	"food-marketplace/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderScope selects whose orders ListOrders returns
type OrderScope int

const (
	ScopeOwn OrderScope = iota
	ScopeAll
)

// OrderService handles order business logic
type OrderService struct {
	repo   OrderRepository
	idem   IdempotencyStore
	events EventPublisher
	cfg    config.BusinessConfig
	logger *zap.Logger
}

// NewOrderService creates a new order service. idem may be nil, in which case
// idempotency keys are ignored.
func NewOrderService(
	repo OrderRepository,
	idem IdempotencyStore,
	events EventPublisher,
	cfg config.BusinessConfig,
) *OrderService {
	return &OrderService{
		repo:   repo,
		idem:   idem,
		events: events,
		cfg:    cfg,
		logger: util.GetLogger(),
	}
}

// CreateOrderRequest maps item ids to requested quantities
type CreateOrderRequest struct {
	Items          map[string]int `json:"items" binding:"required,min=1"`
	IdempotencyKey string         `json:"-"`
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	OrderID     string `json:"order_id"`
	TotalAmount int64  `json:"total_amount"`
	Status      string `json:"status"`
}

// OrderSummary is one entry of an order listing
type OrderSummary struct {
	OrderID     string    `json:"order_id"`
	TotalAmount int64     `json:"total_amount"`
	CreatedTS   time.Time `json:"created_ts"`
	UpdatedTS   time.Time `json:"updated_ts"`
	Status      string    `json:"status"`
}

// OrderDetails is an order together with its lines
type OrderDetails struct {
	OrderSummary
	UserID string             `json:"user_id"`
	Items  []models.OrderItem `json:"items"`
}

// CreateOrder validates the requested items against current stock and
// persists an unplaced order with its lines. Stock is not reserved.
func (s *OrderService) CreateOrder(ctx context.Context, callerID string, req *CreateOrderRequest) (resp *CreateOrderResponse, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder", attribute.String("user.id", callerID))
	defer func() { util.EndSpan(span, err) }()

	if callerID == "" {
		return nil, ErrNotAuthenticated
	}
	if req == nil || len(req.Items) == 0 {
		util.OrdersFailedTotal.WithLabelValues("create", "invalid_request").Inc()
		return nil, invalid("no items given")
	}
	for itemID, qty := range req.Items {
		if qty <= 0 {
			util.OrdersFailedTotal.WithLabelValues("create", "invalid_request").Inc()
			return nil, invalid("quantity for item %s must be positive", itemID)
		}
	}

	idemKey := ""
	if req.IdempotencyKey != "" && s.idem != nil {
		idemKey = callerID + ":" + req.IdempotencyKey
		existing, err := s.claimKey(ctx, idemKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	order, lines, err := s.createOrderTx(ctx, callerID, req.Items)
	if err != nil {
		if idemKey != "" {
			if relErr := s.idem.ReleaseIdempotencyKey(ctx, idemKey); relErr != nil {
				s.logger.Warn("Failed to release idempotency key", zap.String("key", idemKey), zap.Error(relErr))
			}
		}
		util.OrdersFailedTotal.WithLabelValues("create", failureReason(err)).Inc()
		return nil, err
	}

	if idemKey != "" {
		if err := s.idem.CompleteIdempotencyKey(ctx, idemKey, order.OrderID, s.cfg.IdempotencyTTL); err != nil {
			s.logger.Warn("Failed to record idempotency key", zap.String("key", idemKey), zap.Error(err))
		}
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.OrderID),
		zap.String("user_id", callerID),
		zap.Int64("total_amount", order.TotalAmount))

	event := &models.OrderCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCreated),
		OrderID:     order.OrderID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       lines,
	}
	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeOrderCreated).Inc()
		s.logger.Error("Failed to publish OrderCreated event", zap.String("order_id", order.OrderID), zap.Error(err))
	}

	return &CreateOrderResponse{
		OrderID:     order.OrderID,
		TotalAmount: order.TotalAmount,
		Status:      order.Status(),
	}, nil
}

// claimKey returns the earlier response when the key already produced an
// order. A nil response with a nil error means the caller owns the key now.
func (s *OrderService) claimKey(ctx context.Context, key string) (*CreateOrderResponse, error) {
	claimed, orderID, err := s.idem.ClaimIdempotencyKey(ctx, key, s.cfg.IdempotencyTTL)
	if err != nil {
		return nil, &PersistenceError{Op: "claim idempotency key", Err: err}
	}
	if claimed {
		return nil, nil
	}
	if orderID == "" {
		return nil, ErrDuplicateRequest
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, classify("get order", mapNotFound(err, ErrOrderNotFound))
	}
	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.String("order_id", orderID))
	return &CreateOrderResponse{
		OrderID:     order.OrderID,
		TotalAmount: order.TotalAmount,
		Status:      order.Status(),
	}, nil
}

func (s *OrderService) createOrderTx(ctx context.Context, callerID string, items map[string]int) (*models.Order, []models.OrderItemData, error) {
	itemIDs := make([]string, 0, len(items))
	for id := range items {
		itemIDs = append(itemIDs, id)
	}
	sort.Strings(itemIDs)

	order := &models.Order{
		OrderID: uuid.New().String(),
		UserID:  callerID,
	}
	lines := make([]models.OrderItemData, 0, len(itemIDs))

	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		var total int64
		for _, id := range itemIDs {
			qty := items[id]
			item, err := tx.GetItemByID(ctx, id)
			if err != nil {
				return mapNotFound(err, ErrItemNotFound)
			}
			if qty > item.AvailableQuantity {
				return &InsufficientStockError{
					ItemID:    item.ItemID,
					ItemName:  item.ItemName,
					Available: item.AvailableQuantity,
					Requested: qty,
				}
			}
			if item.UnitPrice > 0 && int64(qty) > (math.MaxInt64-total)/item.UnitPrice {
				return invalid("order total overflows")
			}
			total += item.UnitPrice * int64(qty)
			lines = append(lines, models.OrderItemData{ItemID: id, Quantity: qty, UnitPrice: item.UnitPrice})
		}

		order.TotalAmount = total
		if err := tx.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for _, line := range lines {
			orderItem := &models.OrderItem{
				ID:       uuid.New().String(),
				OrderID:  order.OrderID,
				ItemID:   line.ItemID,
				Quantity: line.Quantity,
			}
			if err := tx.CreateOrderItem(ctx, orderItem); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, classify("create order", err)
	}
	return order, lines, nil
}

// PlaceOrder marks an order placed and decrements stock for every line. The
// order row stays locked for the whole transaction, so an order is placed
// at most once.
func (s *OrderService) PlaceOrder(ctx context.Context, callerID, orderID string) (placed *models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder",
		attribute.String("user.id", callerID),
		attribute.String("order.id", orderID))
	defer func() { util.EndSpan(span, err) }()

	if callerID == "" {
		return nil, ErrNotAuthenticated
	}
	if orderID == "" {
		return nil, invalid("order_id is required")
	}

	start := time.Now()
	var lines []models.OrderItemData
	var units int

	err = s.repo.WithinTx(ctx, func(tx store.Tx) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return mapNotFound(err, ErrOrderNotFound)
		}
		if order.IsPlaced {
			return ErrAlreadyPlaced
		}
		if order.UserID != callerID {
			return ErrNotOwner
		}

		if err := tx.MarkOrderPlaced(ctx, order); err != nil {
			return mapNotFound(err, ErrAlreadyPlaced)
		}

		orderItems, err := tx.GetOrderItemsByOrderID(ctx, order.OrderID)
		if err != nil {
			return fmt.Errorf("failed to load order items: %w", err)
		}

		for _, oi := range orderItems {
			item, err := tx.DecrementItemQuantity(ctx, oi.ItemID, oi.Quantity)
			if err != nil {
				return mapNotFound(err, ErrItemNotFound)
			}
			if item.AvailableQuantity < 0 {
				if !s.cfg.AllowNegativeStock {
					return &InsufficientStockError{
						ItemID:    item.ItemID,
						ItemName:  item.ItemName,
						Available: item.AvailableQuantity + oi.Quantity,
						Requested: oi.Quantity,
					}
				}
				util.NegativeStockTotal.Inc()
				s.logger.Warn("Item stock went negative",
					zap.String("item_id", item.ItemID),
					zap.Int("available_quantity", item.AvailableQuantity))
			}
			units += oi.Quantity
			lines = append(lines, models.OrderItemData{ItemID: oi.ItemID, Quantity: oi.Quantity})
		}

		placed = order
		return nil
	})
	if err != nil {
		err = classify("place order", err)
		util.OrdersFailedTotal.WithLabelValues("place", failureReason(err)).Inc()
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	util.StockUnitsDecrementedTotal.Add(float64(units))
	util.OrderPlaceLatency.Observe(time.Since(start).Seconds())
	s.logger.Info("Order placed", zap.String("order_id", orderID), zap.String("user_id", callerID))

	event := &models.OrderPlacedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:   placed.OrderID,
		UserID:    placed.UserID,
		Items:     lines,
	}
	if err := s.events.PublishOrderPlaced(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeOrderPlaced).Inc()
		s.logger.Error("Failed to publish OrderPlaced event", zap.String("order_id", orderID), zap.Error(err))
	}

	return placed, nil
}

// ListOrders returns the caller's orders, or every order for ScopeAll
// (admins only). Newest first.
func (s *OrderService) ListOrders(ctx context.Context, callerID string, scope OrderScope) ([]OrderSummary, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	if callerID == "" {
		return nil, ErrNotAuthenticated
	}

	var orders []models.Order
	var err error
	switch scope {
	case ScopeAll:
		if err := s.requireAdmin(ctx, callerID); err != nil {
			return nil, err
		}
		orders, err = s.repo.GetOrders(ctx)
	default:
		orders, err = s.repo.GetOrdersByUserID(ctx, callerID)
	}
	if err != nil {
		return nil, classify("list orders", err)
	}

	summaries := make([]OrderSummary, 0, len(orders))
	for i := range orders {
		summaries = append(summaries, summarize(&orders[i]))
	}
	return summaries, nil
}

// GetOrder returns an order with its lines to its owner or an admin
func (s *OrderService) GetOrder(ctx context.Context, callerID, orderID string) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	if callerID == "" {
		return nil, ErrNotAuthenticated
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, classify("get order", mapNotFound(err, ErrOrderNotFound))
	}
	if order.UserID != callerID {
		if err := s.requireAdmin(ctx, callerID); err != nil {
			if errors.Is(err, ErrNotAuthorized) {
				return nil, ErrNotOwner
			}
			return nil, err
		}
	}

	items, err := s.repo.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, classify("get order items", err)
	}
	if items == nil {
		items = []models.OrderItem{}
	}

	return &OrderDetails{
		OrderSummary: summarize(order),
		UserID:       order.UserID,
		Items:        items,
	}, nil
}

func (s *OrderService) requireAdmin(ctx context.Context, callerID string) error {
	caller, err := s.repo.GetUserByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotAuthenticated
		}
		return classify("get user", err)
	}
	if !caller.IsAdmin() {
		return ErrAdminOnly
	}
	return nil
}

func summarize(o *models.Order) OrderSummary {
	return OrderSummary{
		OrderID:     o.OrderID,
		TotalAmount: o.TotalAmount,
		CreatedTS:   o.CreatedTS,
		UpdatedTS:   o.UpdatedTS,
		Status:      o.Status(),
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// mapNotFound turns store.ErrNotFound into target, keeping the store message.
func mapNotFound(err, target error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w (%v)", target, err)
	}
	return err
}

// failureReason is the metrics label for a failed order operation.
func failureReason(err error) string {
	var stockErr *InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.Is(err, ErrAlreadyPlaced):
		return "already_placed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate_request"
	default:
		return "db_error"
	}
}
