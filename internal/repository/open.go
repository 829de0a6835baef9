// Package repository selects the storage backends named in the configuration.
package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/oneonone-bot/internal/config"
	"github.com/Rrens/oneonone-bot/internal/domain"
	"github.com/Rrens/oneonone-bot/internal/repository/memory"
	"github.com/Rrens/oneonone-bot/internal/repository/mongo"
	"github.com/Rrens/oneonone-bot/internal/repository/postgres"
	"github.com/Rrens/oneonone-bot/internal/repository/redis"
	"github.com/Rrens/oneonone-bot/internal/repository/sqldb"
	"github.com/Rrens/oneonone-bot/internal/security"
)

// ReportStore is a report repository together with its connection
type ReportStore interface {
	domain.ReportRepository
	Ping(ctx context.Context) error
	Close() error
}

type connection interface {
	Ping(ctx context.Context) error
	Close() error
}

type reportStore struct {
	domain.ReportRepository
	connection
}

// OpenReportStore connects the report backend chosen by cfg.Driver
func OpenReportStore(ctx context.Context, cfg config.DatabaseConfig) (ReportStore, error) {
	switch cfg.Driver {
	case "", "postgres":
		if cfg.AutoMigrate {
			if err := postgres.RunMigrations(cfg.DSN(), cfg.Migrations); err != nil {
				return nil, err
			}
		}
		db, err := postgres.NewDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return reportStore{postgres.NewReportRepository(db.Pool), db}, nil

	case sqldb.DriverMySQL:
		db, err := sqldb.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		return prepareSQL(ctx, db)

	case sqldb.DriverSQLite:
		db, err := sqldb.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return prepareSQL(ctx, db)

	case "mongo":
		store, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return reportStore{mongo.NewReportRepository(store), store}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func prepareSQL(ctx context.Context, db *sqldb.DB) (ReportStore, error) {
	if err := db.EnsureReportSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("driver", db.Driver()).Msg("Report store ready")
	return reportStore{sqldb.NewReportRepository(db), db}, nil
}

// OpenJournal opens the local report journal, or returns nil when it is disabled
func OpenJournal(ctx context.Context, cfg config.JournalConfig) (*sqldb.Journal, func() error, error) {
	if !cfg.Enabled {
		return nil, func() error { return nil }, nil
	}

	db, err := sqldb.OpenSQLite(ctx, cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open journal: %w", err)
	}
	journal, err := sqldb.NewJournal(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	log.Info().Str("driver", db.Driver()).Str("path", cfg.Path).Msg("Report journal enabled")
	return journal, db.Close, nil
}

// NewSessionStore returns the session backend chosen by cfg.Backend.
// redisClient may be nil unless the backend is redis.
func NewSessionStore(cfg config.SessionConfig, redisClient *redis.Client) (domain.SessionStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return memory.NewSessionStore(), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("redis session backend requires a redis client")
		}
		store := redis.NewSessionStore(redisClient, cfg.TTL)
		if cfg.EncryptionKey != "" {
			sealer, err := security.NewSealerFromBase64(cfg.EncryptionKey)
			if err != nil {
				return nil, fmt.Errorf("invalid session encryption key: %w", err)
			}
			store.WithSealer(sealer)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Backend)
	}
}
