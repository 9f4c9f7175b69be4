// internal/web/handlers.go
package web

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"freshtrack/internal/common/logger"
	"freshtrack/internal/engine"
	"freshtrack/internal/models"
	"freshtrack/internal/notify"
	"freshtrack/internal/policy"
	"freshtrack/internal/store"
)

// LifecycleEngine is the slice of the engine the API depends on.
type LifecycleEngine interface {
	EvaluateAndApply(ctx context.Context, productID int64) (*models.Product, error)
	SweepAllExpiring(ctx context.Context) (*engine.SweepSummary, error)
	DisposeAllExpired(ctx context.Context) (*engine.DisposalSummary, error)
	OrderForDisposalPriority(ctx context.Context) (map[string][]models.Product, error)
	DispatchPendingNotifications(ctx context.Context) (*notify.DispatchResult, error)
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Handlers holds the API dependencies.
type Handlers struct {
	engine        LifecycleEngine
	products      store.ProductStore
	customers     store.CustomerStore
	purchases     store.PurchaseStore
	notifications store.NotificationStore
	waste         store.WasteStore
	policies      policy.Store
	logger        logger.Logger
}

func NewHandlers(
	eng LifecycleEngine,
	products store.ProductStore,
	customers store.CustomerStore,
	purchases store.PurchaseStore,
	notifications store.NotificationStore,
	waste store.WasteStore,
	policies policy.Store,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		engine:        eng,
		products:      products,
		customers:     customers,
		purchases:     purchases,
		notifications: notifications,
		waste:         waste,
		policies:      policies,
		logger:        log,
	}
}

// Health handles GET /health.
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "freshtrack",
	})
}

// ==========================
// Products
// ==========================

// CreateProductRequest is the POST /products payload.
type CreateProductRequest struct {
	Name            string  `json:"name"`
	Barcode         string  `json:"barcode"`
	Category        string  `json:"category"`
	ExpiryDate      string  `json:"expiry_date"`
	ManufactureDate string  `json:"manufacture_date"`
	Quantity        int     `json:"quantity"`
	Unit            string  `json:"unit"`
	Price           float64 `json:"price"`
	Location        string  `json:"location"`
}

// ListProducts handles GET /products with optional status, category and
// expiring_within_days query filters.
func (h *Handlers) ListProducts(c *fiber.Ctx) error {
	filter := store.ProductFilter{
		Category: c.Query("category"),
	}
	if v := c.Query("status"); v != "" {
		status := models.ProductStatus(v)
		if !status.Valid() {
			return badRequest(c, "status must be active, discounted, expired or disposed")
		}
		filter.Status = status
	}
	if v := c.Query("expiring_within_days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return badRequest(c, "expiring_within_days must be a positive integer")
		}
		filter.ExpiringWithinDays = days
	}

	products, err := h.products.List(c.Context(), filter)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"products": products, "count": len(products)})
}

func (h *Handlers) GetProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	p, err := h.products.GetByID(c.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Product not found",
		})
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(p)
}

func (h *Handlers) CreateProduct(c *fiber.Ctx) error {
	var req CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Name == "" || req.Category == "" {
		return badRequest(c, "Name and category are required")
	}
	if req.Price <= 0 {
		return badRequest(c, "Price must be positive")
	}

	expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		return badRequest(c, "expiry_date must be YYYY-MM-DD")
	}
	manufacture := expiry
	if req.ManufactureDate != "" {
		manufacture, err = time.Parse("2006-01-02", req.ManufactureDate)
		if err != nil {
			return badRequest(c, "manufacture_date must be YYYY-MM-DD")
		}
	}

	p := &models.Product{
		Name:            req.Name,
		Barcode:         req.Barcode,
		Category:        req.Category,
		ExpiryDate:      expiry,
		ManufactureDate: manufacture,
		Quantity:        req.Quantity,
		Unit:            req.Unit,
		Price:           req.Price,
		Location:        req.Location,
		Status:          models.StatusActive,
	}
	if err := h.products.Create(c.Context(), p); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// UpdateProductRequest is the PUT /products/:id payload. Nil fields are
// left unchanged.
type UpdateProductRequest struct {
	Name       *string  `json:"name"`
	Barcode    *string  `json:"barcode"`
	Category   *string  `json:"category"`
	ExpiryDate *string  `json:"expiry_date"`
	Quantity   *int     `json:"quantity"`
	Unit       *string  `json:"unit"`
	Price      *float64 `json:"price"`
	Location   *string  `json:"location"`
}

// UpdateProduct applies the changes and immediately re-evaluates the
// product, so an edited expiry date takes effect without waiting for the
// next sweep.
func (h *Handlers) UpdateProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req UpdateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	p, err := h.products.GetByID(c.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Product not found",
		})
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Barcode != nil {
		p.Barcode = *req.Barcode
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.ExpiryDate != nil {
		expiry, err := time.Parse("2006-01-02", *req.ExpiryDate)
		if err != nil {
			return badRequest(c, "expiry_date must be YYYY-MM-DD")
		}
		p.ExpiryDate = expiry
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return badRequest(c, "Quantity must not be negative")
		}
		p.Quantity = *req.Quantity
	}
	if req.Unit != nil {
		p.Unit = *req.Unit
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return badRequest(c, "Price must be positive")
		}
		p.Price = *req.Price
	}
	if req.Location != nil {
		p.Location = *req.Location
	}

	if err := h.products.Update(c.Context(), p); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	updated, err := h.engine.EvaluateAndApply(c.Context(), id)
	if err != nil {
		h.logger.Warn("Post-update evaluation failed", map[string]interface{}{
			"productId": id,
			"error":     err.Error(),
		})
		return c.JSON(p)
	}
	return c.JSON(updated)
}

func (h *Handlers) DeleteProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	err = h.products.Delete(c.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Product not found",
		})
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// EvaluateProduct handles POST /products/:id/evaluate: a one-off
// re-evaluation outside the scheduled sweep.
func (h *Handlers) EvaluateProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	p, err := h.engine.EvaluateAndApply(c.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Product not found",
		})
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(p)
}

// ==========================
// Categories
// ==========================

func (h *Handlers) ListCategories(c *fiber.Ctx) error {
	policies, err := h.policies.List(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"categories": policies, "count": len(policies)})
}

func (h *Handlers) GetCategory(c *fiber.Ctx) error {
	name := c.Params("name")

	p, err := h.policies.GetByName(c.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Category not found",
		})
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(p)
}

// CreateCategoryRequest is the POST /categories payload.
type CreateCategoryRequest struct {
	Name              string `json:"name"`
	WasteType         string `json:"waste_type"`
	Recyclable        bool   `json:"recyclable"`
	DiscountThreshold int    `json:"discount_threshold"`
}

func (h *Handlers) CreateCategory(c *fiber.Ctx) error {
	var req CreateCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Name == "" {
		return badRequest(c, "Name is required")
	}
	wasteType := models.WasteType(req.WasteType)
	if !wasteType.Valid() {
		return badRequest(c, "waste_type must be Organic, Recyclable, Non-recyclable or Mixed")
	}
	if req.DiscountThreshold <= 0 {
		req.DiscountThreshold = models.DefaultDiscountThreshold
	}

	p := &models.CategoryPolicy{
		Name:              req.Name,
		WasteType:         wasteType,
		Recyclable:        req.Recyclable,
		DiscountThreshold: req.DiscountThreshold,
	}
	if err := h.policies.Upsert(c.Context(), p); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// ==========================
// Customers
// ==========================

// CreateCustomerRequest is the POST /customers payload.
type CreateCustomerRequest struct {
	Name                   string `json:"name"`
	Email                  string `json:"email"`
	Phone                  string `json:"phone"`
	NotificationPreference string `json:"notification_preference"`
}

func (h *Handlers) ListCustomers(c *fiber.Ctx) error {
	customers, err := h.customers.List(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"customers": customers, "count": len(customers)})
}

func (h *Handlers) CreateCustomer(c *fiber.Ctx) error {
	var req CreateCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Name == "" || req.Email == "" {
		return badRequest(c, "Name and email are required")
	}

	channel := models.NotificationChannel(req.NotificationPreference)
	if req.NotificationPreference == "" {
		channel = models.ChannelEmail
	}
	if !channel.Valid() {
		return badRequest(c, "notification_preference must be email, sms or both")
	}
	if (channel == models.ChannelSMS || channel == models.ChannelBoth) && req.Phone == "" {
		return badRequest(c, "Phone is required for SMS notifications")
	}

	customer := &models.Customer{
		Name:                   req.Name,
		Email:                  req.Email,
		Phone:                  req.Phone,
		NotificationPreference: channel,
	}
	if err := h.customers.Create(c.Context(), customer); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(customer)
}

func (h *Handlers) GetCustomer(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	customer, err := h.customers.GetByID(c.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Customer not found",
		})
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(customer)
}

// UpdateCustomerRequest is the PUT /customers/:id payload. Nil fields are
// left unchanged.
type UpdateCustomerRequest struct {
	Name                   *string `json:"name"`
	Email                  *string `json:"email"`
	Phone                  *string `json:"phone"`
	NotificationPreference *string `json:"notification_preference"`
}

func (h *Handlers) UpdateCustomer(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req UpdateCustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	customer, err := h.customers.GetByID(c.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Customer not found",
		})
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	if req.Name != nil {
		customer.Name = *req.Name
	}
	if req.Email != nil {
		customer.Email = *req.Email
	}
	if req.Phone != nil {
		customer.Phone = *req.Phone
	}
	if req.NotificationPreference != nil {
		channel := models.NotificationChannel(*req.NotificationPreference)
		if !channel.Valid() {
			return badRequest(c, "notification_preference must be email, sms or both")
		}
		customer.NotificationPreference = channel
	}
	if (customer.NotificationPreference == models.ChannelSMS ||
		customer.NotificationPreference == models.ChannelBoth) && customer.Phone == "" {
		return badRequest(c, "Phone is required for SMS notifications")
	}

	if err := h.customers.Update(c.Context(), customer); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(customer)
}

func (h *Handlers) DeleteCustomer(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	err = h.customers.Delete(c.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Customer not found",
		})
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ==========================
// Purchases
// ==========================

// CreatePurchaseRequest is the POST /purchases payload.
type CreatePurchaseRequest struct {
	CustomerID int64 `json:"customer_id"`
	ProductID  int64 `json:"product_id"`
	Quantity   int   `json:"quantity"`
}

func (h *Handlers) ListPurchases(c *fiber.Ctx) error {
	purchases, err := h.purchases.List(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"purchases": purchases, "count": len(purchases)})
}

// CreatePurchase records a purchase, reduces stock and re-evaluates the
// product, so a buyer of an already-discounted item is picked up by the
// next fan-out.
func (h *Handlers) CreatePurchase(c *fiber.Ctx) error {
	var req CreatePurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.CustomerID == 0 || req.ProductID == 0 {
		return badRequest(c, "customer_id and product_id are required")
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	if _, err := h.customers.GetByID(c.Context(), req.CustomerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return badRequest(c, "Unknown customer")
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if _, err := h.products.GetByID(c.Context(), req.ProductID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return badRequest(c, "Unknown product")
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	sold, err := h.products.DecrementQuantity(c.Context(), req.ProductID, req.Quantity)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if !sold {
		return badRequest(c, "Insufficient stock")
	}

	purchase := &models.PurchaseHistory{
		CustomerID:   req.CustomerID,
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
		PurchaseDate: time.Now(),
	}
	if err := h.purchases.Create(c.Context(), purchase); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	if _, err := h.engine.EvaluateAndApply(c.Context(), req.ProductID); err != nil {
		h.logger.Warn("Post-purchase evaluation failed", map[string]interface{}{
			"productId": req.ProductID,
			"error":     err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(purchase)
}

// ==========================
// Inventory operations
// ==========================

func (h *Handlers) CheckExpiry(c *fiber.Ctx) error {
	summary, err := h.engine.SweepAllExpiring(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(summary)
}

func (h *Handlers) ProcessExpired(c *fiber.Ctx) error {
	summary, err := h.engine.DisposeAllExpired(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(summary)
}

func (h *Handlers) FEFOOrdering(c *fiber.Ctx) error {
	grouped, err := h.engine.OrderForDisposalPriority(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"categories": grouped})
}

// ==========================
// Notifications
// ==========================

// ListNotifications handles GET /notifications with an optional status
// query filter.
func (h *Handlers) ListNotifications(c *fiber.Ctx) error {
	var notifications []models.DiscountNotification
	var err error

	if v := c.Query("status"); v != "" {
		status := models.NotificationStatus(v)
		if !status.Valid() {
			return badRequest(c, "status must be pending, sent or failed")
		}
		notifications, err = h.notifications.ListByStatus(c.Context(), status)
	} else {
		notifications, err = h.notifications.List(c.Context())
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"notifications": notifications, "count": len(notifications)})
}

func (h *Handlers) ProcessNotifications(c *fiber.Ctx) error {
	result, err := h.engine.DispatchPendingNotifications(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(result)
}

// ==========================
// Waste
// ==========================

// ListWasteRecords handles GET /waste-records with optional
// start_date/end_date filters.
func (h *Handlers) ListWasteRecords(c *fiber.Ctx) error {
	startStr, endStr := c.Query("start_date"), c.Query("end_date")

	var records []models.WasteRecord
	var err error
	if startStr != "" || endStr != "" {
		start, end, rangeErr := parseDateRange(startStr, endStr)
		if rangeErr != nil {
			return rangeErr
		}
		records, err = h.waste.ListRange(c.Context(), start, end)
	} else {
		records, err = h.waste.List(c.Context())
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"waste_records": records, "count": len(records)})
}

// WasteStatistics handles GET /waste-statistics?start_date=&end_date=.
// Defaults to the last 30 days.
func (h *Handlers) WasteStatistics(c *fiber.Ctx) error {
	start, end, rangeErr := parseDateRange(c.Query("start_date"), c.Query("end_date"))
	if rangeErr != nil {
		return rangeErr
	}

	stats, err := h.waste.Statistics(c.Context(), start, end)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(stats)
}

// ==========================
// Helpers
// ==========================

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// parseDateRange resolves optional YYYY-MM-DD bounds, defaulting to the
// last 30 days. The end date is inclusive.
func parseDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -30)

	if startStr != "" {
		parsed, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return start, end, fiber.NewError(fiber.StatusBadRequest, "start_date must be YYYY-MM-DD")
		}
		start = parsed
	}
	if endStr != "" {
		parsed, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return start, end, fiber.NewError(fiber.StatusBadRequest, "end_date must be YYYY-MM-DD")
		}
		end = parsed.AddDate(0, 0, 1)
	}
	if !start.Before(end) {
		return start, end, fiber.NewError(fiber.StatusBadRequest, "start_date must be before end_date")
	}
	return start, end, nil
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "validation_error",
		Message: message,
	})
}
