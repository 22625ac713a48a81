package emotion

import (
	"context"
	"fmt"
	"sync"

	"github.com/your-org/emotion/internal/models"
	"github.com/your-org/emotion/internal/storage"
)

// memStore is an in-memory RecordStore with hooks for failure injection.
type memStore struct {
	mu      sync.Mutex
	records []models.EmotionRecord
	nextID  int64

	failUpdate   map[string]error
	beforeInsert func(rec *models.EmotionRecord)
	failList     error
	duringList   func()
	lists        int
}

func newMemStore() *memStore {
	return &memStore{failUpdate: map[string]error{}}
}

func (m *memStore) find(deviceID, personID string) int {
	for i, r := range m.records {
		if r.DeviceID == deviceID && r.PersonID == personID {
			return i
		}
	}
	return -1
}

func (m *memStore) GetRecord(_ context.Context, deviceID, personID string) (*models.EmotionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(deviceID, personID)
	if i < 0 {
		return nil, nil
	}
	rec := m.records[i]
	return &rec, nil
}

func (m *memStore) InsertRecord(_ context.Context, rec *models.EmotionRecord) error {
	if m.beforeInsert != nil {
		m.beforeInsert(rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(rec.DeviceID, rec.PersonID) >= 0 {
		return fmt.Errorf("insert record: %w", storage.ErrConflict)
	}
	m.nextID++
	rec.ID = m.nextID
	m.records = append(m.records, *rec)
	return nil
}

func (m *memStore) UpdateRecord(_ context.Context, rec *models.EmotionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failUpdate[rec.PersonID]; err != nil {
		return err
	}
	i := m.find(rec.DeviceID, rec.PersonID)
	if i < 0 {
		return fmt.Errorf("update record %s/%s: not found", rec.DeviceID, rec.PersonID)
	}
	m.records[i] = *rec
	return nil
}

func (m *memStore) ListRecords(_ context.Context, deviceID string) ([]models.EmotionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.failList != nil {
		return nil, m.failList
	}
	var out []models.EmotionRecord
	for _, r := range m.records {
		if r.DeviceID == deviceID {
			out = append(out, r)
		}
	}
	if m.duringList != nil {
		// runs after the snapshot, like a write committing while the read is in flight
		hook := m.duringList
		m.duringList = nil
		m.mu.Unlock()
		hook()
		m.mu.Lock()
	}
	return out, nil
}
