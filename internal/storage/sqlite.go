package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/your-org/emotion/internal/models"
)

// SQLiteStore keeps emotion records in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database file and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s := &SQLiteStore{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS person_emotions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			person_id TEXT NOT NULL,
			time_happy REAL NOT NULL DEFAULT 0,
			time_sad REAL NOT NULL DEFAULT 0,
			time_angry REAL NOT NULL DEFAULT 0,
			last_seen TEXT NOT NULL,
			UNIQUE (device_id, person_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_person_emotions_device ON person_emotions(device_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, deviceID, personID string) (*models.EmotionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, device_id, person_id, time_happy, time_sad, time_angry, last_seen
		 FROM person_emotions WHERE device_id = ? AND person_id = ?`,
		deviceID, personID)

	rec, err := scanSQLiteRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) InsertRecord(ctx context.Context, rec *models.EmotionRecord) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO person_emotions (device_id, person_id, time_happy, time_sad, time_angry, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.DeviceID, rec.PersonID, rec.TimeHappy, rec.TimeSad, rec.TimeAngry,
		rec.LastSeen.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return fmt.Errorf("insert record %s/%s: %w", rec.DeviceID, rec.PersonID, ErrConflict)
		}
		return fmt.Errorf("insert record: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

func (s *SQLiteStore) UpdateRecord(ctx context.Context, rec *models.EmotionRecord) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE person_emotions SET time_happy = ?, time_sad = ?, time_angry = ?, last_seen = ?
		 WHERE device_id = ? AND person_id = ?`,
		rec.TimeHappy, rec.TimeSad, rec.TimeAngry, rec.LastSeen.UTC().Format(time.RFC3339Nano),
		rec.DeviceID, rec.PersonID)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update record %s/%s: not found", rec.DeviceID, rec.PersonID)
	}
	return nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, deviceID string) ([]models.EmotionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device_id, person_id, time_happy, time_sad, time_angry, last_seen
		 FROM person_emotions WHERE device_id = ? ORDER BY id`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []models.EmotionRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (*models.EmotionRecord, error) {
	var (
		rec         models.EmotionRecord
		lastSeenStr string
	)
	if err := row.Scan(&rec.ID, &rec.DeviceID, &rec.PersonID,
		&rec.TimeHappy, &rec.TimeSad, &rec.TimeAngry, &lastSeenStr); err != nil {
		return nil, err
	}
	lastSeen, err := time.Parse(time.RFC3339Nano, lastSeenStr)
	if err != nil {
		return nil, fmt.Errorf("parse last_seen %q: %w", lastSeenStr, err)
	}
	rec.LastSeen = lastSeen.UTC()
	return &rec, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT:
			return true
		}
	}
	return false
}
