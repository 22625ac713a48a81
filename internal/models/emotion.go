package models

import "time"

// Emotion is the categorical label shown on the dashboard.
type Emotion string

const (
	EmotionHappy   Emotion = "happy"
	EmotionSad     Emotion = "sad"
	EmotionAngry   Emotion = "angry"
	EmotionNeutral Emotion = "neutral"
)

// EmotionRecord is the latest cumulative state of one person seen by one device.
// (DeviceID, PersonID) is unique.
type EmotionRecord struct {
	ID        int64     `json:"id" db:"id"`
	DeviceID  string    `json:"device_id" db:"device_id"`
	PersonID  string    `json:"person_id" db:"person_id"`
	TimeHappy float64   `json:"time_happy" db:"time_happy"`
	TimeSad   float64   `json:"time_sad" db:"time_sad"`
	TimeAngry float64   `json:"time_angry" db:"time_angry"`
	LastSeen  time.Time `json:"last_seen" db:"last_seen"`
}

// Cumulative holds the running emotion totals a device reports for one person.
// New emotions need a new field here and a schema change.
type Cumulative struct {
	Happy float64
	Sad   float64
	Angry float64
}

// CumulativeFromMap keeps the known emotions and drops everything else.
func CumulativeFromMap(m map[string]float64) Cumulative {
	return Cumulative{
		Happy: m[string(EmotionHappy)],
		Sad:   m[string(EmotionSad)],
		Angry: m[string(EmotionAngry)],
	}
}

type PersonCumulative struct {
	PersonID   string
	Cumulative Cumulative
}

// EmotionBatch is one upload from a device.
type EmotionBatch struct {
	DeviceID  string
	Timestamp string
	People    []PersonCumulative
}

type EmotionTotals struct {
	Happy   float64
	Sad     float64
	Angry   float64
	Neutral float64
}

type PersonState struct {
	PersonID       string
	CurrentEmotion Emotion
	TimeHappy      float64
	TimeSad        float64
	TimeAngry      float64
	LastSeen       time.Time
}

type DashboardSummary struct {
	DeviceID      string
	DeviceName    string
	UpdatedAt     time.Time
	EmotionTotals EmotionTotals
	CurrentPeople []PersonState
}
