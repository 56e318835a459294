package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/coldrent/rental-engine/internal/config"
	"github.com/coldrent/rental-engine/internal/handler"
	"github.com/coldrent/rental-engine/internal/repository"
	"github.com/coldrent/rental-engine/internal/service"
	"github.com/coldrent/rental-engine/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	// Initialize repositories
	rentalRepo := repository.NewRentalRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	equipmentRepo := repository.NewEquipmentRepository(db)
	companyRepo := repository.NewCompanyRepository(db)

	// Initialize services
	clock := service.SystemClock()
	rentalService := service.NewRentalService(rentalRepo, equipmentRepo, companyRepo, redisClient, cfg, clock)
	invoiceService := service.NewInvoiceService(invoiceRepo, rentalRepo, companyRepo, cfg, clock)

	rentalHandler := handler.NewRentalHandler(rentalService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	// Setup routes
	router := setupRoutes(rentalHandler, invoiceHandler, healthHandler, logger)

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(rentalHandler *handler.RentalHandler, invoiceHandler *handler.InvoiceHandler, healthHandler *handler.HealthHandler, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(logger))
	router.Use(response.CORSMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/rentals", rentalHandler.Create).Methods("POST")
	api.HandleFunc("/rentals/{rentalId}", rentalHandler.Get).Methods("GET")
	api.HandleFunc("/rentals/{rentalId}/payments", rentalHandler.GetPayments).Methods("GET")
	api.HandleFunc("/rentals/{rentalId}/payments/{paymentId}/settle", rentalHandler.SettlePayment).Methods("POST")
	api.HandleFunc("/rentals/{rentalId}/extend", rentalHandler.Extend).Methods("POST")
	api.HandleFunc("/rentals/{rentalId}/terminate", rentalHandler.Terminate).Methods("POST")
	api.HandleFunc("/rentals/{rentalId}/complete", rentalHandler.Complete).Methods("POST")
	api.HandleFunc("/equipment/{equipmentId}/occupancy", rentalHandler.Occupancy).Methods("GET")

	api.HandleFunc("/invoices", invoiceHandler.Create).Methods("POST")
	api.HandleFunc("/invoices", invoiceHandler.List).Methods("GET")
	api.HandleFunc("/invoices/{invoiceId}", invoiceHandler.Get).Methods("GET")
	api.HandleFunc("/invoices/{invoiceId}/payments", invoiceHandler.RecordPayment).Methods("POST")
	api.HandleFunc("/invoices/{invoiceId}/overdue", invoiceHandler.MarkOverdue).Methods("POST")
	api.HandleFunc("/invoices/{invoiceId}/cancel", invoiceHandler.Cancel).Methods("POST")
	api.HandleFunc("/invoices/{invoiceId}/corrections", invoiceHandler.CreateCorrection).Methods("POST")

	return router
}
