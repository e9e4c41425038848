package store

import (
	"context"

	"food-marketplace/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateOrder creates a new unplaced order
func (q *Queries) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (order_id, user_id, total_amount, is_placed)
		VALUES ($1, $2, $3, FALSE)
		RETURNING is_placed, created_ts, updated_ts`

	return sqlx.GetContext(ctx, q.ext, order, query,
		order.OrderID, order.UserID, order.TotalAmount)
}

// GetOrderByID retrieves an order by ID
func (q *Queries) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, q.ext, &order, "SELECT * FROM orders WHERE order_id = $1", id)
	if err != nil {
		return nil, notFound(err, "order", id)
	}
	return &order, nil
}

// GetOrderForUpdate retrieves an order and locks its row until the
// surrounding transaction ends.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, q.ext, &order, "SELECT * FROM orders WHERE order_id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, notFound(err, "order", id)
	}
	return &order, nil
}

// MarkOrderPlaced flips is_placed. The guard on is_placed keeps the
// transition one-way even without the row lock.
func (q *Queries) MarkOrderPlaced(ctx context.Context, order *models.Order) error {
	err := sqlx.GetContext(ctx, q.ext, order,
		`UPDATE orders SET is_placed = TRUE, updated_ts = NOW()
		 WHERE order_id = $1 AND is_placed = FALSE
		 RETURNING is_placed, updated_ts`,
		order.OrderID)
	if err != nil {
		return notFound(err, "unplaced order", order.OrderID)
	}
	return nil
}

// GetOrdersByUserID retrieves orders for a user
func (q *Queries) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := sqlx.SelectContext(ctx, q.ext, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_ts DESC", userID)
	return orders, err
}

// GetOrders retrieves every order
func (q *Queries) GetOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := sqlx.SelectContext(ctx, q.ext, &orders, "SELECT * FROM orders ORDER BY created_ts DESC")
	return orders, err
}

// CreateOrderItem creates a new order item
func (q *Queries) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	_, err := q.ext.ExecContext(ctx,
		"INSERT INTO order_items (id, order_id, item_id, quantity) VALUES ($1, $2, $3, $4)",
		item.ID, item.OrderID, item.ItemID, item.Quantity)
	return err
}

// GetOrderItemsByOrderID retrieves all items for an order
func (q *Queries) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := sqlx.SelectContext(ctx, q.ext, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY item_id", orderID)
	return items, err
}
