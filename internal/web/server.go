// Package web exposes the lifecycle engine over HTTP: inventory CRUD,
// manual sweep triggers and waste reporting.
package web

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"freshtrack/internal/common/logger"
)

// Server wraps the Fiber app serving the inventory API.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	port     int
	logger   logger.Logger
}

func NewServer(port int, handlers *Handlers, log logger.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "freshtrack",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	s := &Server{
		app:      app,
		handlers: handlers,
		port:     port,
		logger:   log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.handlers.Health)

	api := s.app.Group("/api/v1")

	products := api.Group("/products")
	products.Get("/", s.handlers.ListProducts)
	products.Post("/", s.handlers.CreateProduct)
	products.Get("/:id", s.handlers.GetProduct)
	products.Put("/:id", s.handlers.UpdateProduct)
	products.Delete("/:id", s.handlers.DeleteProduct)
	products.Post("/:id/evaluate", s.handlers.EvaluateProduct)

	categories := api.Group("/categories")
	categories.Get("/", s.handlers.ListCategories)
	categories.Post("/", s.handlers.CreateCategory)
	categories.Get("/:name", s.handlers.GetCategory)

	customers := api.Group("/customers")
	customers.Get("/", s.handlers.ListCustomers)
	customers.Post("/", s.handlers.CreateCustomer)
	customers.Get("/:id", s.handlers.GetCustomer)
	customers.Put("/:id", s.handlers.UpdateCustomer)
	customers.Delete("/:id", s.handlers.DeleteCustomer)

	api.Get("/purchases", s.handlers.ListPurchases)
	api.Post("/purchases", s.handlers.CreatePurchase)

	inventory := api.Group("/inventory")
	inventory.Post("/check-expiry", s.handlers.CheckExpiry)
	inventory.Post("/process-expired", s.handlers.ProcessExpired)
	inventory.Get("/fefo", s.handlers.FEFOOrdering)

	notifications := api.Group("/notifications")
	notifications.Get("/", s.handlers.ListNotifications)
	notifications.Post("/process", s.handlers.ProcessNotifications)

	api.Get("/waste-records", s.handlers.ListWasteRecords)
	api.Get("/waste-statistics", s.handlers.WasteStatistics)
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("HTTP API listening", map[string]interface{}{"addr": addr})
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "request_failed",
		Message: message,
	})
}
