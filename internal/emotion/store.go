package emotion

import (
	"context"

	"github.com/your-org/emotion/internal/models"
)

// RecordStore is the durable storage the emotion core needs.
// GetRecord returns (nil, nil) when no record exists for the identity.
// InsertRecord returns an error wrapping storage.ErrConflict when the identity already exists.
// ListRecords returns records in insertion order.
type RecordStore interface {
	GetRecord(ctx context.Context, deviceID, personID string) (*models.EmotionRecord, error)
	InsertRecord(ctx context.Context, rec *models.EmotionRecord) error
	UpdateRecord(ctx context.Context, rec *models.EmotionRecord) error
	ListRecords(ctx context.Context, deviceID string) ([]models.EmotionRecord, error)
}
