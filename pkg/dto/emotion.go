package dto

import "github.com/your-org/emotion/internal/models"

// Id fields are pointers: "required" checks presence, and an empty id is valid.
type PersonCumulativeRequest struct {
	PersonID   *string            `json:"person_id" binding:"required"`
	Cumulative map[string]float64 `json:"cumulative" binding:"required"`
}

type EmotionsBatchRequest struct {
	DeviceID  *string                   `json:"device_id" binding:"required"`
	Timestamp *string                   `json:"timestamp" binding:"required"`
	People    []PersonCumulativeRequest `json:"people" binding:"required,dive"`
}

// Batch converts the request into the core batch. Unknown emotion keys are dropped.
func (r EmotionsBatchRequest) Batch() models.EmotionBatch {
	batch := models.EmotionBatch{
		DeviceID: deref(r.DeviceID),
		People:   make([]models.PersonCumulative, 0, len(r.People)),
	}
	if r.Timestamp != nil {
		batch.Timestamp = *r.Timestamp
	}
	for _, p := range r.People {
		batch.People = append(batch.People, models.PersonCumulative{
			PersonID:   deref(p.PersonID),
			Cumulative: models.CumulativeFromMap(p.Cumulative),
		})
	}
	return batch
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type EmotionsBatchResponse struct {
	Status       string `json:"status"`
	UpdatedCount int    `json:"updated_count"`
}

type EmotionTotalsResponse struct {
	Happy   float64 `json:"happy"`
	Sad     float64 `json:"sad"`
	Angry   float64 `json:"angry"`
	Neutral float64 `json:"neutral"`
}

type PersonStateResponse struct {
	PersonID       string  `json:"person_id"`
	CurrentEmotion string  `json:"current_emotion"`
	TimeHappy      float64 `json:"time_happy"`
	TimeSad        float64 `json:"time_sad"`
	TimeAngry      float64 `json:"time_angry"`
	LastSeen       string  `json:"last_seen"`
}

type DashboardSummaryResponse struct {
	DeviceID      string                `json:"device_id"`
	DeviceName    string                `json:"device_name"`
	UpdatedAt     string                `json:"updated_at"`
	EmotionTotals EmotionTotalsResponse `json:"emotion_totals"`
	CurrentPeople []PersonStateResponse `json:"current_people"`
}

// DashboardEvent is pushed to dashboard websocket clients and shared between replicas.
type DashboardEvent struct {
	Type         string `json:"type"` // emotions_updated
	Origin       string `json:"origin,omitempty"`
	DeviceID     string `json:"device_id"`
	UpdatedCount int    `json:"updated_count"`
	Timestamp    string `json:"timestamp"`
}
