package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/Maharab24/Bottle-Collection/internal/config"
	"github.com/Maharab24/Bottle-Collection/internal/notify"
	"github.com/Maharab24/Bottle-Collection/internal/notify/filewatch"
	"github.com/Maharab24/Bottle-Collection/internal/notify/kafkabus"
	"github.com/Maharab24/Bottle-Collection/internal/notify/pgnotify"
	"github.com/Maharab24/Bottle-Collection/internal/notify/redisbus"
	"github.com/Maharab24/Bottle-Collection/internal/repository"
	"github.com/Maharab24/Bottle-Collection/internal/repository/file"
	"github.com/Maharab24/Bottle-Collection/internal/repository/memory"
	pgrepo "github.com/Maharab24/Bottle-Collection/internal/repository/postgres"
	redisrepo "github.com/Maharab24/Bottle-Collection/internal/repository/redis"
	"github.com/Maharab24/Bottle-Collection/internal/store"
	"github.com/Maharab24/Bottle-Collection/pkg/database"
	"github.com/Maharab24/Bottle-Collection/pkg/health"
	"github.com/Maharab24/Bottle-Collection/pkg/kafka"
)

// Backend is an opened cart store together with the connections behind it.
// The server and cartctl both open one; each is a separate browsing context.
type Backend struct {
	Store *store.Store

	cfg    *config.Config
	rdb    *redis.Client
	pool   *pgxpool.Pool
	ready  <-chan struct{}
	reg    prometheus.Registerer
	logger *slog.Logger
}

// OpenBackend connects the configured slot backend and sync transport and
// builds a store stamped with origin. reg may be nil.
func OpenBackend(ctx context.Context, cfg *config.Config, origin string, reg prometheus.Registerer, logger *slog.Logger) (*Backend, error) {
	b := &Backend{cfg: cfg, reg: reg, logger: logger}

	if cfg.NeedsRedis() {
		rdb, err := database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		b.rdb = rdb
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
	}

	if cfg.NeedsPostgres() {
		pgCfg := cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, pgCfg, logger)
		if err != nil {
			b.closeClients()
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		b.pool = pool
		logger.Info("connected to PostgreSQL",
			slog.String("host", pgCfg.Host),
			slog.Int("port", pgCfg.Port),
			slog.String("database", pgCfg.DBName),
		)
		if reg != nil {
			if err := database.RegisterPoolMetrics(reg, pool, "storefront"); err != nil {
				logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
			}
		}
	}

	if cfg.SlowQueryThresholdMS > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), logger)
	}

	slot, err := b.openSlot(ctx)
	if err != nil {
		b.closeClients()
		return nil, err
	}

	transport, err := b.openTransport(slot, origin)
	if err != nil {
		_ = slot.Close()
		b.closeClients()
		return nil, err
	}

	opts := []store.Option{store.WithTransport(transport)}
	if reg != nil {
		opts = append(opts, store.WithMetrics(store.NewMetrics(reg)))
	}
	b.Store = store.New(slot, notify.NewBus(logger), origin, logger, opts...)

	logger.Info("cart store opened",
		slog.String("slot", cfg.SlotKey),
		slog.String("backend", cfg.SlotBackend),
		slog.String("transport", cfg.Transport()),
	)
	return b, nil
}

func (b *Backend) openSlot(ctx context.Context) (repository.Slot, error) {
	switch b.cfg.SlotBackend {
	case config.BackendFile:
		slot, err := file.NewSlot(b.cfg.SlotKey, b.cfg.SlotPath)
		if err != nil {
			return nil, fmt.Errorf("open file slot: %w", err)
		}
		return slot, nil
	case config.BackendRedis:
		return redisrepo.NewSlot(b.rdb, b.cfg.SlotKey), nil
	case config.BackendPostgres:
		if err := database.RunMigrations(ctx, b.pool, pgrepo.Migrations(), b.logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		return pgrepo.NewSlot(b.pool, b.cfg.SlotKey, nil), nil
	case config.BackendMemory:
		return memory.NewSlot(b.cfg.SlotKey), nil
	default:
		return nil, fmt.Errorf("unknown slot backend %q", b.cfg.SlotBackend)
	}
}

func (b *Backend) openTransport(slot repository.Slot, origin string) (notify.Transport, error) {
	switch b.cfg.Transport() {
	case config.TransportNone:
		return notify.Nop{}, nil
	case config.TransportFile:
		fileSlot, ok := slot.(*file.Slot)
		if !ok {
			return nil, errors.New("file transport needs the file slot backend")
		}
		t := filewatch.New(fileSlot, b.logger)
		b.ready = t.Ready()
		return t, nil
	case config.TransportRedis:
		t := redisbus.New(b.rdb, b.cfg.SlotKey, origin, b.logger)
		b.ready = t.Ready()
		return b.guard(t), nil
	case config.TransportPostgres:
		t := pgnotify.New(b.pool, b.cfg.SlotKey, origin, b.logger)
		b.ready = t.Ready()
		return b.guard(t), nil
	case config.TransportKafka:
		kcfg := kafkabus.Config{
			Brokers: b.cfg.KafkaBrokers,
			Topic:   b.cfg.KafkaTopic,
			Key:     b.cfg.SlotKey,
			Origin:  origin,
		}
		if b.reg != nil {
			kcfg.Metrics = kafka.NewMetrics(b.reg)
		}
		return b.guard(kafkabus.New(kcfg, b.logger)), nil
	default:
		return nil, fmt.Errorf("unknown sync transport %q", b.cfg.Transport())
	}
}

// guard puts a breaker in front of network transports.
func (b *Backend) guard(t notify.Transport) notify.Transport {
	return notify.Guard(t, notify.DefaultBreakerConfig(b.cfg.Transport()), b.logger)
}

// Ready is closed once the transport is listening. It is nil for transports
// that have no subscription step.
func (b *Backend) Ready() <-chan struct{} { return b.ready }

// RegisterChecks adds readiness checks for the slot and the transport.
func (b *Backend) RegisterChecks(h *health.Handler) {
	h.RegisterCritical("cart_slot", b.Store.Ping)
	switch {
	case b.cfg.Transport() == config.TransportKafka:
		brokers := b.cfg.KafkaBrokers
		h.RegisterNonCritical("sync_transport", func(ctx context.Context) error {
			return kafka.PingBrokers(ctx, brokers)
		})
	case b.rdb != nil && b.cfg.Transport() == config.TransportRedis && b.cfg.SlotBackend != config.BackendRedis:
		h.RegisterNonCritical("sync_transport", func(ctx context.Context) error {
			return b.rdb.Ping(ctx).Err()
		})
	case b.pool != nil && b.cfg.Transport() == config.TransportPostgres && b.cfg.SlotBackend != config.BackendPostgres:
		h.RegisterNonCritical("sync_transport", b.pool.Ping)
	}
}

// Close releases the store and its connections.
func (b *Backend) Close() error {
	err := b.Store.Close()
	b.closeClients()
	return err
}

func (b *Backend) closeClients() {
	if b.rdb != nil {
		if err := b.rdb.Close(); err != nil {
			b.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if b.pool != nil {
		b.pool.Close()
	}
}
