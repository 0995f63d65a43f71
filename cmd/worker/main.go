package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/staybooking/config"
	"github.com/Domenick1991/staybooking/internal/bootstrap"
	"github.com/Domenick1991/staybooking/internal/email"
	"github.com/Domenick1991/staybooking/internal/kafka"
	"github.com/Domenick1991/staybooking/internal/obs"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := obs.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services, err := bootstrap.NewServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("init services", "error", err)
		os.Exit(1)
	}
	defer services.Close()

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.NotificationsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logger)
		defer consumer.Close()

		sender := email.NewSender(logger)
		go func() {
			if err := consumer.ConsumeBookingEvents(ctx, sender.Send); err != nil {
				logger.Error("consumer stopped", "error", err)
			}
		}()
	}

	sweep := time.NewTicker(time.Duration(cfg.Worker.ReconcileSweepMinutes) * time.Minute)
	defer sweep.Stop()

	logger.Info("worker started", "reconcile_every_minutes", cfg.Worker.ReconcileSweepMinutes)
	for {
		select {
		case <-sweep.C:
			recovered, err := services.Payments.ReconcileFailed(ctx, cfg.Worker.ReconcileBatchSize)
			if err != nil {
				logger.Error("reconcile sweep failed", "error", err)
				continue
			}
			if recovered > 0 {
				logger.Info("reconciled payments", "count", recovered)
			}
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		}
	}
}
