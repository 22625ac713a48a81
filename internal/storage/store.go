package storage

import (
	"context"
	"fmt"

	"github.com/your-org/emotion/internal/config"
	"github.com/your-org/emotion/internal/models"
)

// Store is the record store backend selected by configuration.
type Store interface {
	GetRecord(ctx context.Context, deviceID, personID string) (*models.EmotionRecord, error)
	InsertRecord(ctx context.Context, rec *models.EmotionRecord) error
	UpdateRecord(ctx context.Context, rec *models.EmotionRecord) error
	ListRecords(ctx context.Context, deviceID string) ([]models.EmotionRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// Open connects to the configured backend and provisions the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return OpenSQLite(ctx, cfg.Path)
	case "postgres":
		pg, err := NewPostgresStore(cfg)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
