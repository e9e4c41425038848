package store

import (
	"context"

	"food-marketplace/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateItem inserts a new menu item
func (q *Queries) CreateItem(ctx context.Context, item *models.Item) error {
	query := `
		INSERT INTO items (item_id, vendor_id, item_name, calories_per_gm,
			available_quantity, restaurant_name, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING is_active, created_ts, updated_ts`

	return sqlx.GetContext(ctx, q.ext, item, query,
		item.ItemID, item.VendorID, item.ItemName, item.CaloriesPerGm,
		item.AvailableQuantity, item.RestaurantName, item.UnitPrice)
}

// GetItemByID retrieves an item by ID
func (q *Queries) GetItemByID(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	err := sqlx.GetContext(ctx, q.ext, &item, "SELECT * FROM items WHERE item_id = $1", id)
	if err != nil {
		return nil, notFound(err, "item", id)
	}
	return &item, nil
}

// GetItems retrieves all items
func (q *Queries) GetItems(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	err := sqlx.SelectContext(ctx, q.ext, &items, "SELECT * FROM items ORDER BY created_ts")
	return items, err
}

// GetItemsByVendorIDs retrieves the items of several vendors, oldest first
func (q *Queries) GetItemsByVendorIDs(ctx context.Context, vendorIDs []string) ([]models.Item, error) {
	if len(vendorIDs) == 0 {
		return []models.Item{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM items WHERE vendor_id IN (?) ORDER BY created_ts", vendorIDs)
	if err != nil {
		return nil, err
	}
	query = q.ext.Rebind(query)

	var items []models.Item
	err = sqlx.SelectContext(ctx, q.ext, &items, query, args...)
	return items, err
}

// DecrementItemQuantity subtracts quantity from the item's stock and returns
// the updated row. There is no floor: callers decide what a negative result means.
func (q *Queries) DecrementItemQuantity(ctx context.Context, itemID string, quantity int) (*models.Item, error) {
	var item models.Item
	err := sqlx.GetContext(ctx, q.ext, &item,
		`UPDATE items SET available_quantity = available_quantity - $1, updated_ts = NOW()
		 WHERE item_id = $2 RETURNING *`,
		quantity, itemID)
	if err != nil {
		return nil, notFound(err, "item", itemID)
	}
	return &item, nil
}
