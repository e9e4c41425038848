package models

import "time"

// User levels
const (
	LevelCustomer = 0
	LevelVendor   = 1
	LevelAdmin    = 2
)

// Display strings derived from flags
const (
	OrderStatusPlaced    = "Placed"
	OrderStatusNotPlaced = "Not Placed"
	VendorStatusActive   = "Active"
	VendorStatusInactive = "Inactive"
)

// User is a marketplace account. Password holds a bcrypt hash.
type User struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Username  string    `db:"username" json:"username"`
	Password  string    `db:"password" json:"-"`
	Level     int       `db:"level" json:"level"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedTS time.Time `db:"created_ts" json:"created_ts"`
	UpdatedTS time.Time `db:"updated_ts" json:"updated_ts"`
}

func (u *User) IsVendor() bool { return u.Level == LevelVendor }

func (u *User) IsAdmin() bool { return u.Level == LevelAdmin }

// Item is a menu entry owned by a vendor
type Item struct {
	ItemID            string    `db:"item_id" json:"item_id"`
	VendorID          string    `db:"vendor_id" json:"vendor_id"`
	ItemName          string    `db:"item_name" json:"item_name"`
	CaloriesPerGm     int       `db:"calories_per_gm" json:"calories_per_gm"`
	AvailableQuantity int       `db:"available_quantity" json:"available_quantity"`
	RestaurantName    string    `db:"restaurant_name" json:"restaurant_name"`
	UnitPrice         int64     `db:"unit_price" json:"unit_price"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	CreatedTS         time.Time `db:"created_ts" json:"created_ts"`
	UpdatedTS         time.Time `db:"updated_ts" json:"updated_ts"`
}

// Order represents a customer order
type Order struct {
	OrderID     string    `db:"order_id" json:"order_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	TotalAmount int64     `db:"total_amount" json:"total_amount"`
	IsPlaced    bool      `db:"is_placed" json:"is_placed"`
	CreatedTS   time.Time `db:"created_ts" json:"created_ts"`
	UpdatedTS   time.Time `db:"updated_ts" json:"updated_ts"`
}

// Status returns the display status of the order.
func (o *Order) Status() string {
	if o.IsPlaced {
		return OrderStatusPlaced
	}
	return OrderStatusNotPlaced
}

// OrderItem is one line of an order. Rows are never updated.
type OrderItem struct {
	ID       string `db:"id" json:"id"`
	OrderID  string `db:"order_id" json:"order_id"`
	ItemID   string `db:"item_id" json:"item_id"`
	Quantity int    `db:"quantity" json:"quantity"`
}
