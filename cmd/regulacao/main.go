package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	admissionapi "github.com/saude-gov/regulacao/internal/admission/api"
	admissioninfra "github.com/saude-gov/regulacao/internal/admission/infrastructure"
	"github.com/saude-gov/regulacao/internal/admission/workflow"
	"github.com/saude-gov/regulacao/internal/reference"
	"github.com/saude-gov/regulacao/internal/reference/sigtap"
	"github.com/saude-gov/regulacao/internal/shared/auth"
	"github.com/saude-gov/regulacao/internal/shared/config"
	"github.com/saude-gov/regulacao/internal/shared/database"
	"github.com/saude-gov/regulacao/internal/shared/events"
	"github.com/saude-gov/regulacao/internal/shared/metrics"
	secmiddleware "github.com/saude-gov/regulacao/internal/shared/middleware"
	"github.com/saude-gov/regulacao/internal/worklist"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    *events.Bus
	Sigtap *sigtap.Adapter
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database not available: %v\n", err)
		os.Exit(1)
	}
	app.DB = db
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	// Event bus is optional: the workflow degrades to local-only operation
	// when EventStoreDB is unreachable.
	bus, err := events.NewBus(ctx, cfg.EventStore)
	if err != nil {
		fmt.Printf("Warning: EventStoreDB not available: %v\n", err)
		fmt.Println("Running without event streaming...")
	} else {
		app.Bus = bus
		defer bus.Close()
		fmt.Println("EventStoreDB event bus initialized")
	}

	// SIGTAP reference lookup: the legacy SQL Server when configured, a
	// static table otherwise. Code enrichment is best-effort either way.
	var lookup reference.Lookup
	if cfg.Sigtap.Enabled {
		adapter := sigtap.New(cfg.Sigtap)
		if err := adapter.Start(ctx); err != nil {
			fmt.Printf("Warning: SIGTAP database not available: %v\n", err)
		} else {
			app.Sigtap = adapter
			lookup = adapter
			defer adapter.Stop()
			fmt.Println("SIGTAP reference adapter connected")
		}
	}
	if lookup == nil {
		lookup = reference.NewStaticLookup(nil, nil)
	}

	repo := admissioninfra.NewPostgresRepository(db.Pool)

	var busIface events.EventBus
	if app.Bus != nil {
		busIface = app.Bus
	}

	workflowSvc := workflow.NewService(repo, busIface, lookup)
	worklistSvc := worklist.NewService(repo, busIface)

	admissionHandler := admissionapi.NewHandler(workflowSvc)
	worklistHandler := worklist.NewHandler(worklistSvc)

	rateLimiter := secmiddleware.NewIPRateLimiter(50, 100)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.InputSanitizer)
	r.Use(secmiddleware.CORS(secmiddleware.DefaultCORSConfig()))
	r.Use(rateLimiter.Middleware)
	r.Use(metrics.Middleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", infoHandler)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.Env == "production" {
			r.Use(auth.Middleware(cfg.Auth))
		}

		r.Mount("/records", admissionHandler.Routes())
		r.Mount("/worklists", worklistHandler.Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("Regulacao - Hospital Admission Workflow")
	fmt.Println("============================================")
	fmt.Printf("Environment: %s\n", cfg.Server.Env)
	fmt.Printf("Server:      http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:         http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:      http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("SIGTAP:      %v\n", cfg.Sigtap.Enabled)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Regulacao - Hospital Admission Workflow",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if err := app.DB.Health(r.Context()); err != nil {
			checks["database"] = "not ready: " + err.Error()
		} else {
			checks["database"] = "ready"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["eventstore"] = "not ready: " + err.Error()
			} else {
				checks["eventstore"] = "ready"
			}
		} else {
			checks["eventstore"] = "not configured"
		}

		if app.Sigtap != nil {
			if err := app.Sigtap.Health(r.Context()); err != nil {
				checks["sigtap"] = "not ready: " + err.Error()
			} else {
				checks["sigtap"] = "ready"
			}
		} else {
			checks["sigtap"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
