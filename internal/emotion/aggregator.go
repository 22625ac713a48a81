package emotion

import (
	"context"
	"fmt"
	"time"

	"github.com/your-org/emotion/internal/models"
)

// Aggregator builds dashboard summaries from the stored records of a device.
type Aggregator struct {
	store      RecordStore
	cache      *SummaryCache
	deviceName string
	now        func() time.Time
}

func NewAggregator(store RecordStore, cache *SummaryCache, deviceName string) *Aggregator {
	return &Aggregator{store: store, cache: cache, deviceName: deviceName, now: time.Now}
}

// Summarize never fails for an unknown device; it returns an empty summary.
func (a *Aggregator) Summarize(ctx context.Context, deviceID string) (models.DashboardSummary, error) {
	if cached, ok := a.cache.Get(deviceID); ok {
		return cached, nil
	}

	gen := a.cache.Generation(deviceID)
	records, err := a.store.ListRecords(ctx, deviceID)
	if err != nil {
		return models.DashboardSummary{}, fmt.Errorf("list records: %w", err)
	}

	summary := Summarize(deviceID, a.deviceName, records, a.now().UTC())
	a.cache.Set(summary, gen)
	return summary, nil
}

// Summarize aggregates records in the order given. Neutral time is not tracked and stays 0.
func Summarize(deviceID, deviceName string, records []models.EmotionRecord, at time.Time) models.DashboardSummary {
	summary := models.DashboardSummary{
		DeviceID:      deviceID,
		DeviceName:    deviceName,
		UpdatedAt:     at,
		CurrentPeople: make([]models.PersonState, 0, len(records)),
	}

	for _, r := range records {
		summary.EmotionTotals.Happy += r.TimeHappy
		summary.EmotionTotals.Sad += r.TimeSad
		summary.EmotionTotals.Angry += r.TimeAngry

		summary.CurrentPeople = append(summary.CurrentPeople, models.PersonState{
			PersonID:       r.PersonID,
			CurrentEmotion: DominantEmotion(r.TimeHappy, r.TimeSad, r.TimeAngry),
			TimeHappy:      r.TimeHappy,
			TimeSad:        r.TimeSad,
			TimeAngry:      r.TimeAngry,
			LastSeen:       r.LastSeen,
		})
	}

	return summary
}

// Invalidate drops any cached summary for the device, e.g. after a write seen on another replica.
func (a *Aggregator) Invalidate(deviceID string) {
	a.cache.Invalidate(deviceID)
}
