package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/example/pharma-exchange/internal/api"
	"github.com/example/pharma-exchange/internal/auth"
	"github.com/example/pharma-exchange/internal/config"
	"github.com/example/pharma-exchange/internal/domain/exchange"
	"github.com/example/pharma-exchange/internal/domain/stock"
	"github.com/example/pharma-exchange/internal/infrastructure/kafka"
	"github.com/example/pharma-exchange/internal/infrastructure/store"
	"github.com/example/pharma-exchange/internal/scheduler"
	"github.com/example/pharma-exchange/pkg/logger"
)

func main() {
	log := logger.Must(logger.New())
	defer log.Sync()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL holds the ledger state.
	db, err := store.ConnectPostgres(cfg.Database.URL)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	pg := store.NewPostgres(db)
	if err := pg.InitSchema(ctx); err != nil {
		log.Fatal("failed to initialize schema", zap.Error(err))
	}
	log.Info("connected to postgres")

	// Kafka carries movement records for the journal process.
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer producer.Close()

	ledger := stock.NewLedger(pg, producer, logger.Named(log, "ledger"))
	market := exchange.NewMarket(pg, producer, logger.Named(log, "market"))

	jwtService := auth.NewJWTService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	handlers := api.NewHandlers(ledger, market, pg)
	authHandlers := api.NewAuthHandlers(pg, jwtService)
	router := api.NewRouter(handlers, authHandlers, jwtService, logger.Named(log, "api"))

	expiryScheduler := scheduler.NewScheduler(
		cfg.Expiry.CronSchedule,
		cfg.Expiry.Window,
		pg,
		logger.Named(log, "scheduler"),
	)
	expiryScheduler.Start()
	defer expiryScheduler.Stop()

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("server started", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}
