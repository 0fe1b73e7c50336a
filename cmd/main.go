package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"hact-service/internal/config"
	"hact-service/internal/database/postgres"
	"hact-service/internal/database/redis"
	"hact-service/internal/event"
	"hact-service/internal/handlers"
	"hact-service/internal/repository"
	"hact-service/internal/services"

	"github.com/gofiber/fiber/v3"
	"github.com/joho/godotenv"
)

func setupLogging() (*os.File, error) {
	logDir := filepath.Join("/hact", "log", "hact_service")
	err := os.MkdirAll(logDir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(file, nil)))
	return file, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	logFile, err := setupLogging()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	cfg := config.New()

	slog.Info("Connecting to PostgreSQL",
		"host", cfg.PostgresCfg.Host, "port", cfg.PostgresCfg.Port, "dbname", cfg.PostgresCfg.DBname)
	db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		slog.Error("error connecting to database, retrying in background", "error", err)
		go postgres.RetryConnectOnFailed(30*time.Second, &db, cfg.PostgresCfg)
	}

	redisClient, err := redis.NewRedisClient(cfg.RedisCfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	locker := redis.NewLocker(redisClient)

	rabbit, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer rabbit.Close()

	partnerRepo := repository.NewPartnerRepository(db)
	agreementRepo := repository.NewAgreementRepository(db)
	interventionRepo := repository.NewInterventionRepository(db)
	budgetRepo := repository.NewBudgetRepository(db)
	amendmentRepo := repository.NewAmendmentRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	publisher := event.NewLifecyclePublisher(rabbit)

	policy := services.NewAssurancePolicy(cfg.Hact)
	accounting := services.NewActivityAccounting()
	ledger := services.NewPartnerLedgerService(
		partnerRepo, activityRepo, interventionRepo, policy, accounting, locker, redisClient)
	rollup := services.NewBudgetRollup(budgetRepo, interventionRepo, locker, cfg.Hact)
	agreementService := services.NewAgreementService(agreementRepo, interventionRepo, locker, publisher, cfg.Hact)
	interventionService := services.NewInterventionService(
		interventionRepo, agreementRepo, partnerRepo, locker, publisher, cfg.Hact)
	amendmentService := services.NewAmendmentService(
		amendmentRepo, interventionRepo, agreementRepo, budgetRepo, rollup, locker, publisher, cfg.Hact)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	completionHandler := event.NewDefaultCompletionEventHandler(partnerRepo, ledger)
	completionConsumer := event.NewCompletionConsumer(rabbit, completionHandler)
	if err := completionConsumer.Start(ctx); err != nil {
		log.Fatalf("Failed to start completion consumer: %v", err)
	}

	recomputeConsumer := event.NewRecomputeConsumer(rabbit, partnerRepo, ledger)
	if err := recomputeConsumer.Start(ctx); err != nil {
		log.Fatalf("Failed to start recompute consumer: %v", err)
	}

	// Nightly sweep moves documents whose dates have passed.
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := interventionService.RunAutoTransitions(ctx); err != nil {
					slog.Error("auto transition sweep failed", "error", err)
				}
			}
		}
	}()

	app := fiber.New()
	app.Get("/checkhealth", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("HACT service is healthy")
	})

	handlers.NewPartnerHandler(partnerRepo, ledger, policy).Register(app)
	handlers.NewAgreementHandler(agreementService, agreementRepo).Register(app)
	handlers.NewInterventionHandler(
		interventionService, amendmentService, rollup, interventionRepo, amendmentRepo).Register(app)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := app.Listen(fmt.Sprintf("0.0.0.0:%s", cfg.Port)); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
	}()

	<-shutdownChan
	slog.Info("Shutting down server")
}
