package emotion

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/emotion/internal/models"
	"github.com/your-org/emotion/internal/observability"
	"github.com/your-org/emotion/internal/storage"
)

const lockStripes = 64

// StateManager applies device batches to the record store.
// Upserts for the same (device, person) are serialized within the process;
// across processes the store's unique constraint plus a re-read keeps records whole.
type StateManager struct {
	store RecordStore
	cache *SummaryCache
	now   func() time.Time

	locks [lockStripes]sync.Mutex
}

func NewStateManager(store RecordStore, cache *SummaryCache) *StateManager {
	return &StateManager{store: store, cache: cache, now: time.Now}
}

// ApplyBatch upserts every person in the batch and returns how many entries were processed.
// Entries commit one by one: when the store fails at entry k, entries before k stay written
// and the count of those entries is returned together with the error.
func (m *StateManager) ApplyBatch(ctx context.Context, batch models.EmotionBatch) (int, error) {
	if len(batch.People) == 0 {
		return 0, nil
	}

	seenAt, ok := ResolveTimestamp(batch.Timestamp, m.now)
	if !ok {
		observability.TimestampFallbacks.Inc()
		slog.Debug("unparseable batch timestamp, using current time",
			"device_id", batch.DeviceID, "timestamp", batch.Timestamp)
	}

	updated := 0
	defer func() {
		if updated > 0 {
			m.cache.Invalidate(batch.DeviceID)
		}
	}()

	for _, p := range batch.People {
		if err := m.upsert(ctx, batch.DeviceID, p, seenAt); err != nil {
			return updated, fmt.Errorf("upsert person %s: %w", p.PersonID, err)
		}
		updated++
	}

	observability.BatchesApplied.WithLabelValues(batch.DeviceID).Inc()
	return updated, nil
}

func (m *StateManager) upsert(ctx context.Context, deviceID string, p models.PersonCumulative, seenAt time.Time) error {
	mu := m.lockFor(deviceID, p.PersonID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := m.store.GetRecord(ctx, deviceID, p.PersonID)
	if err != nil {
		return err
	}
	if existing == nil {
		rec := &models.EmotionRecord{
			DeviceID:  deviceID,
			PersonID:  p.PersonID,
			TimeHappy: p.Cumulative.Happy,
			TimeSad:   p.Cumulative.Sad,
			TimeAngry: p.Cumulative.Angry,
			LastSeen:  seenAt,
		}
		err = m.store.InsertRecord(ctx, rec)
		if err == nil {
			observability.PersonUpserts.WithLabelValues("insert").Inc()
			return nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return err
		}
		// Another process inserted the identity first.
		existing, err = m.store.GetRecord(ctx, deviceID, p.PersonID)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("record %s/%s vanished after insert conflict", deviceID, p.PersonID)
		}
	}

	existing.TimeHappy = p.Cumulative.Happy
	existing.TimeSad = p.Cumulative.Sad
	existing.TimeAngry = p.Cumulative.Angry
	existing.LastSeen = seenAt
	if err := m.store.UpdateRecord(ctx, existing); err != nil {
		return err
	}
	observability.PersonUpserts.WithLabelValues("update").Inc()
	return nil
}

func (m *StateManager) lockFor(deviceID, personID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(deviceID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(personID))
	return &m.locks[h.Sum32()%lockStripes]
}
