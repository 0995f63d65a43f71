package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Domenick1991/staybooking/config"
	"github.com/Domenick1991/staybooking/internal/cache"
	"github.com/Domenick1991/staybooking/internal/gateway/sandbox"
	"github.com/Domenick1991/staybooking/internal/gateway/stripegw"
	"github.com/Domenick1991/staybooking/internal/kafka"
	"github.com/Domenick1991/staybooking/internal/pricing"
	"github.com/Domenick1991/staybooking/internal/repository"
	"github.com/Domenick1991/staybooking/internal/service/booking"
	"github.com/Domenick1991/staybooking/internal/service/payment"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Services is the wired core shared by the API server and the worker.
type Services struct {
	Bookings *booking.BookingService
	Payments *payment.Orchestrator
	closers  []func()
}

// Close releases connections in reverse order of creation.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func NewServices(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Services, error) {
	s := &Services{}

	repo, err := s.openRepository(ctx, cfg, log)
	if err != nil {
		s.Close()
		return nil, err
	}

	opts := []booking.BookingServiceOption{}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.BookingEventsTopic != "" {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		if err := producer.CheckConnection(ctx); err != nil {
			log.Warn("kafka unavailable, booking events will be dropped until it recovers", "error", err)
		}
		s.closers = append(s.closers, func() { _ = producer.Close() })
		opts = append(opts,
			booking.WithProducer(producer, cfg.Kafka.BookingEventsTopic),
			booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		)
	}
	s.Bookings = booking.NewBookingService(repo, pricing.NewEngine(cfg.Pricing.BasePrice), log, opts...)

	var gateway payment.Gateway
	switch cfg.Payments.Provider {
	case "stripe":
		gateway = stripegw.New(cfg.Payments.StripeSecretKey)
	default:
		log.Warn("using sandbox payment gateway, no real charges are made")
		gateway = sandbox.New()
	}

	payOpts := []payment.Option{
		payment.WithCurrency(cfg.Payments.Currency),
		payment.WithLockTTL(time.Duration(cfg.Payments.LockTTLSeconds) * time.Second),
		payment.WithGatewayTimeout(time.Duration(cfg.Payments.GatewayTimeoutSecs) * time.Second),
	}
	if cfg.Redis.Addr != "" {
		locker := cache.NewRedisLocker(cfg.Redis)
		if err := locker.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.closers = append(s.closers, func() { _ = locker.Close() })
		payOpts = append(payOpts, payment.WithLocker(locker))
	}
	s.Payments = payment.NewOrchestrator(s.Bookings, gateway, log, payOpts...)

	return s, nil
}

func (s *Services) openRepository(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository.BookingRepository, error) {
	switch cfg.Storage.Driver {
	case "mongo":
		db, err := repository.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		s.closers = append(s.closers, func() { _ = db.Client().Disconnect(context.Background()) })
		repo := repository.NewMongoBookingRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return repo, nil
	case "memory":
		log.Warn("using in-memory booking store, data is lost on restart")
		return repository.NewMemoryBookingRepository(), nil
	default:
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return repository.NewBookingRepository(pool), nil
	}
}
