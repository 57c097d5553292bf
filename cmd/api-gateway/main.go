package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nenempneuscom-star/syscli-sub000/internal/gateway"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/config"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/httputil"
	"github.com/nenempneuscom-star/syscli-sub000/pkg/logger"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("api-gateway")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("api-gateway", cfg.Server.Environment)
	log.Info().Msg("starting API Gateway")

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS - supports subdomain-based multi-tenancy
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			// Localhost variations for development, including tenant
			// subdomains like http://demo-clinic.localhost:3000
			if origin == "http://localhost:3000" || origin == "http://localhost:5173" {
				return true
			}
			if strings.HasSuffix(origin, ".localhost:3000") {
				return true
			}
			return false
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	proxy := gateway.NewProxy(cfg, log)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "api-gateway",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(proxy.AuthMiddleware)

			r.Route("/inventory", func(r chi.Router) {
				r.Route("/products", func(r chi.Router) {
					r.Get("/", proxy.ForwardToInventory)
					r.Post("/", proxy.ForwardToInventory)
					r.Get("/{id}", proxy.ForwardToInventory)
					r.Put("/{id}", proxy.ForwardToInventory)
					r.Delete("/{id}", proxy.ForwardToInventory)
					r.Get("/{id}/batches", proxy.ForwardToInventory)
					r.Get("/{id}/movements", proxy.ForwardToInventory)
				})

				r.Post("/movements", proxy.ForwardToInventory)

				r.Get("/alerts/low-stock", proxy.ForwardToInventory)
				r.Get("/alerts/expiring", proxy.ForwardToInventory)

				r.Get("/dashboard/stats", proxy.ForwardToInventory)
			})
		})
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
