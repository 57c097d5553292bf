package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/consumers"
	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/events"
	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/handler"
	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/repository"
	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/service"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/config"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/database"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/httputil"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/logger"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewInventoryEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Repositories
	productRepo := repository.NewProductRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	userCacheRepo := repository.NewUserCacheRepository(db)

	// Service
	inventoryService := service.NewInventoryService(db, productRepo, movementRepo, userCacheRepo, publisher, log)

	// Handlers
	productHandler := handler.NewProductHandler(inventoryService, log)
	movementHandler := handler.NewMovementHandler(inventoryService, log)
	batchHandler := handler.NewBatchHandler(inventoryService, log)
	alertHandler := handler.NewAlertHandler(inventoryService, log)
	dashboardHandler := handler.NewDashboardHandler(inventoryService, log)

	// User event consumer keeps the per-tenant user cache in sync
	userConsumer, err := consumers.NewUserEventConsumer(rmq, userCacheRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create user event consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := userConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start user event consumer")
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.TenantMiddleware) // Extract tenant context from headers
	r.Use(httputil.UserMiddleware)   // Extract acting user from headers

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Post("/", productHandler.Create)
			r.Get("/{id}", productHandler.Get)
			r.Put("/{id}", productHandler.Update)
			r.Delete("/{id}", productHandler.Delete)
			r.Get("/{id}/batches", batchHandler.ListByProduct)
			r.Get("/{id}/movements", movementHandler.ListByProduct)
		})

		r.Post("/movements", movementHandler.Record)

		r.Get("/alerts/low-stock", alertHandler.LowStock)
		r.Get("/alerts/expiring", alertHandler.Expiring)

		r.Get("/dashboard/stats", dashboardHandler.GetStats)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop consumers before closing connections
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
