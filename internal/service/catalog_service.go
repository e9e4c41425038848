package service

import (
	"context"
	"errors"
	"strings"

	"food-marketplace/config"
	"food-marketplace/internal/models"
	"food-marketplace/internal/store"
	"food-marketplace/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxUnitPrice bounds unit_price, in minor currency units
const MaxUnitPrice int64 = 1_000_000_000

// Cache keys of the catalog listings
const (
	ItemsCacheKey   = "items"
	VendorsCacheKey = "vendors"
)

// CatalogService handles menu items and the vendor directory
type CatalogService struct {
	repo   ItemRepository
	cache  Cache
	events EventPublisher
	cfg    config.BusinessConfig
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service. cache may be nil.
func NewCatalogService(repo ItemRepository, cache Cache, events EventPublisher, cfg config.BusinessConfig) *CatalogService {
	return &CatalogService{
		repo:   repo,
		cache:  cache,
		events: events,
		cfg:    cfg,
		logger: util.GetLogger(),
	}
}

type AddItemRequest struct {
	ItemName          string `json:"item_name" binding:"required"`
	CaloriesPerGm     int    `json:"calories_per_gm"`
	AvailableQuantity int    `json:"available_quantity"`
	RestaurantName    string `json:"restaurant_name" binding:"required"`
	UnitPrice         int64  `json:"unit_price"`
}

// VendorSummary is one entry of the vendor directory
type VendorSummary struct {
	UserID     string   `json:"user_id"`
	Name       string   `json:"name"`
	IsActive   string   `json:"is_active"`
	Items      []string `json:"items"`
	Restaurant string   `json:"restaurant"`
}

// AddItem lists a new item for the calling vendor
func (s *CatalogService) AddItem(ctx context.Context, callerID string, req *AddItemRequest) (item *models.Item, err error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.AddItem")
	defer func() { util.EndSpan(span, err) }()

	if callerID == "" {
		return nil, ErrNotAuthenticated
	}
	caller, err := s.repo.GetUserByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, classify("get user", err)
	}
	if !caller.IsVendor() {
		return nil, ErrVendorOnly
	}

	if strings.TrimSpace(req.ItemName) == "" || strings.TrimSpace(req.RestaurantName) == "" {
		return nil, invalid("item_name and restaurant_name are required")
	}
	if req.AvailableQuantity < 0 || req.UnitPrice < 0 || req.CaloriesPerGm < 0 {
		return nil, invalid("quantity, price and calories must not be negative")
	}
	if req.UnitPrice > MaxUnitPrice {
		return nil, invalid("unit_price must not exceed %d", MaxUnitPrice)
	}

	item = &models.Item{
		ItemID:            uuid.New().String(),
		VendorID:          callerID,
		ItemName:          strings.TrimSpace(req.ItemName),
		CaloriesPerGm:     req.CaloriesPerGm,
		AvailableQuantity: req.AvailableQuantity,
		RestaurantName:    strings.TrimSpace(req.RestaurantName),
		UnitPrice:         req.UnitPrice,
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, classify("create item", err)
	}

	util.ItemsAddedTotal.Inc()
	s.logger.Info("Item added", zap.String("item_id", item.ItemID), zap.String("vendor_id", callerID))

	event := &models.ItemAddedEvent{
		BaseEvent: newBaseEvent(models.EventTypeItemAdded),
		ItemID:    item.ItemID,
		VendorID:  item.VendorID,
	}
	if err := s.events.PublishItemAdded(ctx, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(models.EventTypeItemAdded).Inc()
		s.logger.Error("Failed to publish ItemAdded event", zap.String("item_id", item.ItemID), zap.Error(err))
	}
	return item, nil
}

// ListItems returns every item, oldest first
func (s *CatalogService) ListItems(ctx context.Context) ([]models.Item, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListItems")
	defer span.End()

	var items []models.Item
	if s.fromCache(ctx, ItemsCacheKey, &items) {
		return items, nil
	}

	items, err := s.repo.GetItems(ctx)
	if err != nil {
		return nil, classify("list items", err)
	}
	if items == nil {
		items = []models.Item{}
	}

	s.toCache(ctx, ItemsCacheKey, items)
	return items, nil
}

// ListVendors returns the vendor directory. Requires a logged-in caller.
func (s *CatalogService) ListVendors(ctx context.Context, callerID string) ([]VendorSummary, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListVendors")
	defer span.End()

	if callerID == "" {
		return nil, ErrNotAuthenticated
	}

	var vendors []VendorSummary
	if s.fromCache(ctx, VendorsCacheKey, &vendors) {
		return vendors, nil
	}

	users, err := s.repo.GetUsersByLevel(ctx, models.LevelVendor)
	if err != nil {
		return nil, classify("list vendors", err)
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.UserID)
	}
	items, err := s.repo.GetItemsByVendorIDs(ctx, ids)
	if err != nil {
		return nil, classify("list vendor items", err)
	}

	byVendor := make(map[string][]models.Item, len(users))
	for _, it := range items {
		byVendor[it.VendorID] = append(byVendor[it.VendorID], it)
	}

	vendors = make([]VendorSummary, 0, len(users))
	for _, u := range users {
		v := VendorSummary{
			UserID:   u.UserID,
			Name:     u.Name,
			IsActive: models.VendorStatusInactive,
			Items:    []string{},
		}
		if u.IsActive {
			v.IsActive = models.VendorStatusActive
		}
		// items are oldest first, so the last one wins
		for _, it := range byVendor[u.UserID] {
			v.Items = append(v.Items, it.ItemName)
			v.Restaurant = it.RestaurantName
		}
		vendors = append(vendors, v)
	}

	s.toCache(ctx, VendorsCacheKey, vendors)
	return vendors, nil
}

// InvalidateCache drops both listing snapshots
func (s *CatalogService) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, ItemsCacheKey, VendorsCacheKey)
}

// HandleCatalogEvent drops the listing snapshots after any event that
// changes items or vendors.
func (s *CatalogService) HandleCatalogEvent(ctx context.Context, event models.BaseEvent, raw []byte) error {
	if err := s.InvalidateCache(ctx); err != nil {
		return err
	}
	s.logger.Debug("Catalog cache invalidated",
		zap.String("event_type", event.EventType),
		zap.String("event_id", event.EventID))
	return nil
}

func (s *CatalogService) cacheEnabled() bool {
	return s.cache != nil && s.cfg.CatalogCacheTTL > 0
}

func (s *CatalogService) fromCache(ctx context.Context, key string, dest interface{}) bool {
	if !s.cacheEnabled() {
		return false
	}
	found, err := s.cache.GetJSON(ctx, key, dest)
	if err != nil {
		util.CatalogCacheRequests.WithLabelValues(key, "error").Inc()
		s.logger.Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !found {
		util.CatalogCacheRequests.WithLabelValues(key, "miss").Inc()
		return false
	}
	util.CatalogCacheRequests.WithLabelValues(key, "hit").Inc()
	return true
}

func (s *CatalogService) toCache(ctx context.Context, key string, v interface{}) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.SetJSON(ctx, key, v, s.cfg.CatalogCacheTTL); err != nil {
		s.logger.Warn("Catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}
