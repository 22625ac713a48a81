package emotion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/emotion/internal/models"
)

func person(id string, happy, sad, angry float64) models.PersonCumulative {
	return models.PersonCumulative{PersonID: id, Cumulative: models.Cumulative{Happy: happy, Sad: sad, Angry: angry}}
}

func TestApplyBatch_InsertThenOverwrite(t *testing.T) {
	store := newMemStore()
	m := NewStateManager(store, nil)
	ctx := context.Background()

	n, err := m.ApplyBatch(ctx, models.EmotionBatch{
		DeviceID:  "jetson_1",
		Timestamp: "2024-05-01T10:00:00Z",
		People:    []models.PersonCumulative{person("p1", 5, 1, 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = m.ApplyBatch(ctx, models.EmotionBatch{
		DeviceID:  "jetson_1",
		Timestamp: "2024-05-01T10:00:10Z",
		People:    []models.PersonCumulative{person("p1", 2, 0, 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, store.records, 1)
	rec := store.records[0]
	// later batch wins even with smaller values
	assert.Equal(t, 2.0, rec.TimeHappy)
	assert.Equal(t, 0.0, rec.TimeSad)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 10, 0, time.UTC), rec.LastSeen)
}

func TestApplyBatch_EmptyPeople(t *testing.T) {
	store := newMemStore()
	n, err := NewStateManager(store, nil).ApplyBatch(context.Background(), models.EmotionBatch{
		DeviceID: "jetson_1", Timestamp: "garbage",
	})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.records)
}

func TestApplyBatch_DuplicatePersonLaterWins(t *testing.T) {
	store := newMemStore()
	n, err := NewStateManager(store, nil).ApplyBatch(context.Background(), models.EmotionBatch{
		DeviceID:  "jetson_1",
		Timestamp: "2024-05-01T10:00:00Z",
		People:    []models.PersonCumulative{person("p1", 1, 0, 0), person("p1", 0, 3, 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, store.records, 1)
	assert.Equal(t, models.EmotionRecord{
		ID: 1, DeviceID: "jetson_1", PersonID: "p1", TimeSad: 3,
		LastSeen: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}, store.records[0])
}

func TestApplyBatch_SamePersonOnDifferentDevices(t *testing.T) {
	store := newMemStore()
	m := NewStateManager(store, nil)
	ctx := context.Background()

	_, err := m.ApplyBatch(ctx, models.EmotionBatch{DeviceID: "a", Timestamp: "2024-05-01T10:00:00Z",
		People: []models.PersonCumulative{person("p1", 1, 0, 0)}})
	require.NoError(t, err)
	_, err = m.ApplyBatch(ctx, models.EmotionBatch{DeviceID: "b", Timestamp: "2024-05-01T10:00:00Z",
		People: []models.PersonCumulative{person("p1", 0, 1, 0)}})
	require.NoError(t, err)

	assert.Len(t, store.records, 2)
}

func TestApplyBatch_UnparseableTimestampFallsBackToNow(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 30, 0, 0, time.FixedZone("X", 3600))
	store := newMemStore()
	m := NewStateManager(store, nil)
	m.now = func() time.Time { return now }

	for _, ts := range []string{"not-a-date", "", "01/05/2024"} {
		_, err := m.ApplyBatch(context.Background(), models.EmotionBatch{
			DeviceID: "jetson_1", Timestamp: ts,
			People: []models.PersonCumulative{person("p-"+ts, 1, 0, 0)},
		})
		require.NoError(t, err, ts)
	}

	require.Len(t, store.records, 3)
	for _, rec := range store.records {
		assert.Equal(t, now.UTC(), rec.LastSeen)
		assert.Equal(t, time.UTC, rec.LastSeen.Location())
	}
}

func TestApplyBatch_PartialFailure(t *testing.T) {
	store := newMemStore()
	m := NewStateManager(store, nil)
	ctx := context.Background()

	_, err := m.ApplyBatch(ctx, models.EmotionBatch{DeviceID: "d", Timestamp: "2024-05-01T10:00:00Z",
		People: []models.PersonCumulative{person("p2", 1, 1, 1)}})
	require.NoError(t, err)

	boom := errors.New("disk full")
	store.failUpdate["p2"] = boom

	n, err := m.ApplyBatch(ctx, models.EmotionBatch{DeviceID: "d", Timestamp: "2024-05-01T10:01:00Z",
		People: []models.PersonCumulative{person("p1", 4, 0, 0), person("p2", 9, 9, 9), person("p3", 1, 0, 0)}})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "p2")
	assert.Equal(t, 1, n)

	got, _ := store.GetRecord(ctx, "d", "p1")
	require.NotNil(t, got)
	assert.Equal(t, 4.0, got.TimeHappy)
	got, _ = store.GetRecord(ctx, "d", "p2")
	assert.Equal(t, 1.0, got.TimeHappy)
	got, _ = store.GetRecord(ctx, "d", "p3")
	assert.Nil(t, got)
}

func TestApplyBatch_InsertConflictFallsBackToUpdate(t *testing.T) {
	store := newMemStore()
	raced := false
	store.beforeInsert = func(rec *models.EmotionRecord) {
		if raced {
			return
		}
		raced = true
		// another process wins the insert race with stale values
		store.mu.Lock()
		store.nextID++
		store.records = append(store.records, models.EmotionRecord{
			ID: store.nextID, DeviceID: rec.DeviceID, PersonID: rec.PersonID, TimeHappy: 100,
		})
		store.mu.Unlock()
	}

	n, err := NewStateManager(store, nil).ApplyBatch(context.Background(), models.EmotionBatch{
		DeviceID: "d", Timestamp: "2024-05-01T10:00:00Z",
		People: []models.PersonCumulative{person("p1", 1, 2, 3)},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, store.records, 1)
	assert.Equal(t, 1.0, store.records[0].TimeHappy)
	assert.Equal(t, 3.0, store.records[0].TimeAngry)
}

func TestApplyBatch_ConcurrentBatchesKeepOneRecordPerIdentity(t *testing.T) {
	store := newMemStore()
	m := NewStateManager(store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			people := make([]models.PersonCumulative, 0, 5)
			for p := 0; p < 5; p++ {
				people = append(people, person(fmt.Sprintf("p%d", p), float64(i), 0, 0))
			}
			_, err := m.ApplyBatch(context.Background(), models.EmotionBatch{
				DeviceID: "d", Timestamp: "2024-05-01T10:00:00Z", People: people,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.records, 5)
}

func TestApplyBatch_InvalidatesSummaryCache(t *testing.T) {
	store := newMemStore()
	cache := NewSummaryCache(1, time.Minute)
	m := NewStateManager(store, cache)
	agg := NewAggregator(store, cache, "Entrance Camera")
	ctx := context.Background()

	first, err := agg.Summarize(ctx, "d")
	require.NoError(t, err)
	assert.Empty(t, first.CurrentPeople)

	_, err = m.ApplyBatch(ctx, models.EmotionBatch{DeviceID: "d", Timestamp: "2024-05-01T10:00:00Z",
		People: []models.PersonCumulative{person("p1", 1, 0, 0)}})
	require.NoError(t, err)

	second, err := agg.Summarize(ctx, "d")
	require.NoError(t, err)
	assert.Len(t, second.CurrentPeople, 1)
	assert.Equal(t, 2, store.lists)
}
