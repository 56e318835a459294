package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/coldrent/rental-engine/internal/config"
	"github.com/coldrent/rental-engine/internal/repository"
	"github.com/coldrent/rental-engine/internal/service"
)

const sweepTimeout = 5 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	rentalRepo := repository.NewRentalRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	equipmentRepo := repository.NewEquipmentRepository(db)
	companyRepo := repository.NewCompanyRepository(db)

	clock := service.SystemClock()
	rentalService := service.NewRentalService(rentalRepo, equipmentRepo, companyRepo, redisClient, cfg, clock)
	invoiceService := service.NewInvoiceService(invoiceRepo, rentalRepo, companyRepo, cfg, clock)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Fatal("invalid scheduler timezone", zap.Error(err))
	}

	c := cron.New(cron.WithSeconds(), cron.WithLocation(location))

	// Daily sweep flipping PENDING invoices past their due date to OVERDUE.
	if _, err := c.AddFunc(cfg.Scheduler.OverdueSweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		flipped, err := invoiceService.MarkOverdueInvoices(ctx)
		if err != nil {
			logger.Error("overdue sweep failed", zap.Error(err))
			return
		}
		logger.Info("overdue sweep finished", zap.Int64("invoices_flipped", flipped))
	}); err != nil {
		logger.Fatal("failed to schedule overdue sweep", zap.Error(err))
	}

	// Daily sweep completing ACTIVE rentals whose end date has passed.
	if _, err := c.AddFunc(cfg.Scheduler.CompletionSweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		closed, err := rentalService.CompleteExpired(ctx)
		if err != nil {
			logger.Error("completion sweep failed", zap.Error(err), zap.Int("rentals_closed", closed))
			return
		}
		logger.Info("completion sweep finished", zap.Int("rentals_closed", closed))
	}); err != nil {
		logger.Fatal("failed to schedule completion sweep", zap.Error(err))
	}

	c.Start()
	logger.Info("scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	logger.Info("scheduler stopped")
}
