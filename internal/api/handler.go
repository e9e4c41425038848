package api

import (
	"context"
	"net/http"
	"time"

	"food-marketplace/internal/models"
	"food-marketplace/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UserAPI is what the handlers need from the user service
type UserAPI interface {
	SignUp(ctx context.Context, req *service.SignUpRequest) (*models.User, error)
	Login(ctx context.Context, req *service.LoginRequest) (string, *models.User, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (string, error)
	PromoteVendor(ctx context.Context, callerID, userID string) (*models.User, error)
	SessionTTL() int
}

// CatalogAPI is what the handlers need from the catalog service
type CatalogAPI interface {
	AddItem(ctx context.Context, callerID string, req *service.AddItemRequest) (*models.Item, error)
	ListItems(ctx context.Context) ([]models.Item, error)
	ListVendors(ctx context.Context, callerID string) ([]service.VendorSummary, error)
}

// OrderAPI is what the handlers need from the order service
type OrderAPI interface {
	CreateOrder(ctx context.Context, callerID string, req *service.CreateOrderRequest) (*service.CreateOrderResponse, error)
	PlaceOrder(ctx context.Context, callerID, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, callerID string, scope service.OrderScope) ([]service.OrderSummary, error)
	GetOrder(ctx context.Context, callerID, orderID string) (*service.OrderDetails, error)
}

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	users        UserAPI
	catalog      CatalogAPI
	orders       OrderAPI
	checks       map[string]Pinger
	cookieSecure bool
}

// NewHandler creates a new HTTP handler
func NewHandler(users UserAPI, catalog CatalogAPI, orders OrderAPI, checks map[string]Pinger, cookieSecure bool) *Handler {
	return &Handler{
		users:        users,
		catalog:      catalog,
		orders:       orders,
		checks:       checks,
		cookieSecure: cookieSecure,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(sessionMiddleware(h.users))
	{
		v1.POST("/signup", h.signUp)
		v1.POST("/login", h.login)
		v1.POST("/logout", h.logout)
		v1.POST("/add_vendor", h.addVendor)
		v1.GET("/list_vendors", h.listVendors)

		v1.POST("/add_item", h.addItem)
		v1.GET("/list_items", h.listItems)

		v1.POST("/create_items_order", h.createOrder)
		v1.PUT("/place_order", h.placeOrder)
		v1.GET("/list_orders", h.listOrders)
		v1.GET("/list_all_orders", h.listAllOrders)
		v1.GET("/orders/:id", h.getOrder)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, APIResponse{Error: "Invalid request body: " + err.Error()})
}

func (h *Handler) signUp(c *gin.Context) {
	var req service.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.SignUp(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Not able to register", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User successfully registered",
		"user_id": user.UserID,
	})
}

func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	token, user, err := h.users.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Login failed", err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, h.users.SessionTTL(), "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{
		"message": "User logged in successfully",
		"token":   token,
		"user_id": user.UserID,
	})
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.users.Logout(c.Request.Context(), c.GetString(ctxToken)); err != nil {
		respondError(c, "Logout failed", err)
		return
	}

	c.SetCookie(SessionCookie, "", -1, "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, APIResponse{Message: "User logged out successfully"})
}

type addVendorRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *Handler) addVendor(c *gin.Context) {
	var req addVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.users.PromoteVendor(c.Request.Context(), callerID(c), req.UserID)
	if err != nil {
		respondError(c, "Updating to Vendor failed", err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Message: user.Name + " updated to Vendor Successfully"})
}

func (h *Handler) listVendors(c *gin.Context) {
	vendors, err := h.catalog.ListVendors(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, "Fetching vendors failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vendors": vendors})
}

func (h *Handler) addItem(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	item, err := h.catalog.AddItem(c.Request.Context(), callerID(c), &req)
	if err != nil {
		respondError(c, "Failed adding item", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item added Successfully",
		"item_id": item.ItemID,
	})
}

func (h *Handler) listItems(c *gin.Context) {
	items, err := h.catalog.ListItems(c.Request.Context())
	if err != nil {
		respondError(c, "Could not fetch items", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	resp, err := h.orders.CreateOrder(c.Request.Context(), callerID(c), &req)
	if err != nil {
		respondError(c, "Failed creating order", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Successfully added items and Quantities",
		"order_id":     resp.OrderID,
		"total_amount": resp.TotalAmount,
		"status":       resp.Status,
	})
}

type placeOrderRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

func (h *Handler) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if _, err := h.orders.PlaceOrder(c.Request.Context(), callerID(c), req.OrderID); err != nil {
		respondError(c, "Failed to place order", err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Message: "Order placed Successfully"})
}

func (h *Handler) listOrders(c *gin.Context) {
	h.respondOrders(c, service.ScopeOwn)
}

func (h *Handler) listAllOrders(c *gin.Context) {
	h.respondOrders(c, service.ScopeAll)
}

func (h *Handler) respondOrders(c *gin.Context, scope service.OrderScope) {
	orders, err := h.orders.ListOrders(c.Request.Context(), callerID(c), scope)
	if err != nil {
		respondError(c, "Failed to fetch orders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to fetch order", err)
		return
	}
	c.JSON(http.StatusOK, order)
}
