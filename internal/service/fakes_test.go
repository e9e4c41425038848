package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"food-marketplace/internal/models"
	"food-marketplace/internal/redisclient"
	"food-marketplace/internal/store"
)

// fakeRepo is an in-memory datastore. WithinTx snapshots every table and
// restores it when fn fails, so rollbacks behave like the real store.
type fakeRepo struct {
	mu         sync.Mutex
	users      map[string]models.User
	items      map[string]models.Item
	orders     map[string]models.Order
	orderItems map[string][]models.OrderItem

	clock   time.Time
	failOn  string
	failErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:      map[string]models.User{},
		items:      map[string]models.Item{},
		orders:     map[string]models.Order{},
		orderItems: map[string][]models.OrderItem{},
		clock:      time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (r *fakeRepo) now() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *fakeRepo) fail(op string) error {
	if r.failOn == op {
		if r.failErr != nil {
			return r.failErr
		}
		return errors.New("connection reset")
	}
	return nil
}

func (r *fakeRepo) addUser(id, name string, level int) models.User {
	u := models.User{UserID: id, Name: name, Username: id, Level: level, IsActive: true, CreatedTS: r.now()}
	u.UpdatedTS = u.CreatedTS
	r.users[id] = u
	return u
}

func (r *fakeRepo) addItem(id, vendorID, name string, qty int, price int64) models.Item {
	it := models.Item{
		ItemID: id, VendorID: vendorID, ItemName: name, AvailableQuantity: qty,
		RestaurantName: "Kitchen " + vendorID, UnitPrice: price, IsActive: true, CreatedTS: r.now(),
	}
	r.items[id] = it
	return it
}

func (r *fakeRepo) itemQty(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id].AvailableQuantity
}

func (r *fakeRepo) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := copyMap(r.users)
	items := copyMap(r.items)
	orders := copyMap(r.orders)
	orderItems := make(map[string][]models.OrderItem, len(r.orderItems))
	for k, v := range r.orderItems {
		orderItems[k] = append([]models.OrderItem(nil), v...)
	}

	if err := fn(fakeTx{r}); err != nil {
		r.users, r.items, r.orders, r.orderItems = users, items, orders, orderItems
		return err
	}
	if err := r.fail("commit"); err != nil {
		r.users, r.items, r.orders, r.orderItems = users, items, orders, orderItems
		return err
	}
	return nil
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// fakeTx runs with the repo lock held by WithinTx.
type fakeTx struct{ r *fakeRepo }

func (t fakeTx) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return t.r.getUser(id)
}

func (t fakeTx) GetItemByID(ctx context.Context, id string) (*models.Item, error) {
	it, ok := t.r.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	return &it, nil
}

func (t fakeTx) DecrementItemQuantity(ctx context.Context, itemID string, quantity int) (*models.Item, error) {
	it, ok := t.r.items[itemID]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", itemID, store.ErrNotFound)
	}
	it.AvailableQuantity -= quantity
	it.UpdatedTS = t.r.now()
	t.r.items[itemID] = it
	return &it, nil
}

func (t fakeTx) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := t.r.fail("create_order"); err != nil {
		return err
	}
	order.IsPlaced = false
	order.CreatedTS = t.r.now()
	order.UpdatedTS = order.CreatedTS
	t.r.orders[order.OrderID] = *order
	return nil
}

func (t fakeTx) GetOrderForUpdate(ctx context.Context, id string) (*models.Order, error) {
	o, ok := t.r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	return &o, nil
}

func (t fakeTx) MarkOrderPlaced(ctx context.Context, order *models.Order) error {
	o, ok := t.r.orders[order.OrderID]
	if !ok || o.IsPlaced {
		return fmt.Errorf("unplaced order %s: %w", order.OrderID, store.ErrNotFound)
	}
	o.IsPlaced = true
	o.UpdatedTS = t.r.now()
	t.r.orders[o.OrderID] = o
	order.IsPlaced, order.UpdatedTS = o.IsPlaced, o.UpdatedTS
	return nil
}

func (t fakeTx) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	if err := t.r.fail("create_order_item"); err != nil {
		return err
	}
	t.r.orderItems[item.OrderID] = append(t.r.orderItems[item.OrderID], *item)
	return nil
}

func (t fakeTx) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	return t.r.lines(orderID), nil
}

func (r *fakeRepo) lines(orderID string) []models.OrderItem {
	out := append([]models.OrderItem(nil), r.orderItems[orderID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

func (r *fakeRepo) getUser(id string) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	return &u, nil
}

func (r *fakeRepo) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return fmt.Errorf("username %s: %w", user.Username, store.ErrConflict)
		}
	}
	user.IsActive = true
	user.CreatedTS = r.now()
	user.UpdatedTS = user.CreatedTS
	r.users[user.UserID] = *user
	return nil
}

func (r *fakeRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("get_user"); err != nil {
		return nil, err
	}
	return r.getUser(id)
}

func (r *fakeRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", username, store.ErrNotFound)
}

func (r *fakeRepo) UpdateUserLevel(ctx context.Context, id string, level int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	u.Level = level
	u.UpdatedTS = r.now()
	r.users[id] = u
	return &u, nil
}

func (r *fakeRepo) GetUsersByLevel(ctx context.Context, level int) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.users {
		if u.Level == level {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedTS.Before(out[j].CreatedTS) })
	return out, nil
}

func (r *fakeRepo) CreateItem(ctx context.Context, item *models.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("create_item"); err != nil {
		return err
	}
	item.IsActive = true
	item.CreatedTS = r.now()
	item.UpdatedTS = item.CreatedTS
	r.items[item.ItemID] = *item
	return nil
}

func (r *fakeRepo) sortedItems(keep func(models.Item) bool) []models.Item {
	var out []models.Item
	for _, it := range r.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedTS.Before(out[j].CreatedTS) })
	return out
}

func (r *fakeRepo) GetItems(ctx context.Context) ([]models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("get_items"); err != nil {
		return nil, err
	}
	return r.sortedItems(func(models.Item) bool { return true }), nil
}

func (r *fakeRepo) GetItemsByVendorIDs(ctx context.Context, vendorIDs []string) ([]models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[string]bool{}
	for _, id := range vendorIDs {
		want[id] = true
	}
	return r.sortedItems(func(it models.Item) bool { return want[it.VendorID] }), nil
}

func (r *fakeRepo) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	return &o, nil
}

func (r *fakeRepo) sortedOrders(keep func(models.Order) bool) []models.Order {
	var out []models.Order
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedTS.After(out[j].CreatedTS) })
	return out
}

func (r *fakeRepo) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedOrders(func(o models.Order) bool { return o.UserID == userID }), nil
}

func (r *fakeRepo) GetOrders(ctx context.Context) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedOrders(func(models.Order) bool { return true }), nil
}

func (r *fakeRepo) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lines(orderID), nil
}

type fakeSessions struct {
	tokens map[string]string
	next   int
	err    error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{tokens: map[string]string{}}
}

func (s *fakeSessions) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.next++
	token := fmt.Sprintf("token-%d", s.next)
	s.tokens[token] = userID
	return token, nil
}

func (s *fakeSessions) GetSession(ctx context.Context, token string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	id, ok := s.tokens[token]
	if !ok {
		return "", redisclient.ErrSessionNotFound
	}
	return id, nil
}

func (s *fakeSessions) DeleteSession(ctx context.Context, token string) error {
	if _, ok := s.tokens[token]; !ok {
		return redisclient.ErrSessionNotFound
	}
	delete(s.tokens, token)
	return nil
}

type fakeIdempotency struct {
	keys map[string]string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: map[string]string{}}
}

func (f *fakeIdempotency) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, string, error) {
	val, ok := f.keys[key]
	if !ok {
		f.keys[key] = "pending"
		return true, "", nil
	}
	if val == "pending" {
		return false, "", nil
	}
	return false, val, nil
}

func (f *fakeIdempotency) CompleteIdempotencyKey(ctx context.Context, key, orderID string, ttl time.Duration) error {
	f.keys[key] = orderID
	return nil
}

func (f *fakeIdempotency) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	delete(f.keys, key)
	return nil
}

type fakeCache struct {
	data    map[string][]byte
	gets    int
	readErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (c *fakeCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.gets++
	if c.readErr != nil {
		return false, c.readErr
	}
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

type fakePublisher struct {
	types []string
	err   error
}

func (p *fakePublisher) record(t string) error {
	p.types = append(p.types, t)
	return p.err
}

func (p *fakePublisher) PublishOrderCreated(ctx context.Context, e *models.OrderCreatedEvent) error {
	return p.record(e.EventType)
}

func (p *fakePublisher) PublishOrderPlaced(ctx context.Context, e *models.OrderPlacedEvent) error {
	return p.record(e.EventType)
}

func (p *fakePublisher) PublishItemAdded(ctx context.Context, e *models.ItemAddedEvent) error {
	return p.record(e.EventType)
}

func (p *fakePublisher) PublishVendorPromoted(ctx context.Context, e *models.VendorPromotedEvent) error {
	return p.record(e.EventType)
}
