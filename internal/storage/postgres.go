package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/emotion/internal/config"
	"github.com/your-org/emotion/internal/models"
)

const pgUniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS person_emotions (
			id BIGSERIAL PRIMARY KEY,
			device_id TEXT NOT NULL,
			person_id TEXT NOT NULL,
			time_happy DOUBLE PRECISION NOT NULL DEFAULT 0,
			time_sad DOUBLE PRECISION NOT NULL DEFAULT 0,
			time_angry DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_seen TIMESTAMPTZ NOT NULL,
			UNIQUE (device_id, person_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_person_emotions_device ON person_emotions (device_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, deviceID, personID string) (*models.EmotionRecord, error) {
	rec := &models.EmotionRecord{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, device_id, person_id, time_happy, time_sad, time_angry, last_seen
		 FROM person_emotions WHERE device_id = $1 AND person_id = $2`, deviceID, personID,
	).Scan(&rec.ID, &rec.DeviceID, &rec.PersonID, &rec.TimeHappy, &rec.TimeSad, &rec.TimeAngry, &rec.LastSeen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	rec.LastSeen = rec.LastSeen.UTC()
	return rec, nil
}

func (s *PostgresStore) InsertRecord(ctx context.Context, rec *models.EmotionRecord) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO person_emotions (device_id, person_id, time_happy, time_sad, time_angry, last_seen)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		rec.DeviceID, rec.PersonID, rec.TimeHappy, rec.TimeSad, rec.TimeAngry, rec.LastSeen,
	).Scan(&rec.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("insert record %s/%s: %w", rec.DeviceID, rec.PersonID, ErrConflict)
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateRecord(ctx context.Context, rec *models.EmotionRecord) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE person_emotions SET time_happy = $1, time_sad = $2, time_angry = $3, last_seen = $4
		 WHERE device_id = $5 AND person_id = $6`,
		rec.TimeHappy, rec.TimeSad, rec.TimeAngry, rec.LastSeen, rec.DeviceID, rec.PersonID)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update record %s/%s: not found", rec.DeviceID, rec.PersonID)
	}
	return nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, deviceID string) ([]models.EmotionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, device_id, person_id, time_happy, time_sad, time_angry, last_seen
		 FROM person_emotions WHERE device_id = $1 ORDER BY id`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []models.EmotionRecord
	for rows.Next() {
		var rec models.EmotionRecord
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &rec.PersonID,
			&rec.TimeHappy, &rec.TimeSad, &rec.TimeAngry, &rec.LastSeen); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.LastSeen = rec.LastSeen.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}
