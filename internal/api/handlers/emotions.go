package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/emotion/internal/emotion"
	"github.com/your-org/emotion/internal/models"
	"github.com/your-org/emotion/pkg/dto"
)

type BatchApplier interface {
	ApplyBatch(ctx context.Context, batch models.EmotionBatch) (int, error)
}

type SummaryReader interface {
	Summarize(ctx context.Context, deviceID string) (models.DashboardSummary, error)
}

// EventBroadcaster pushes dashboard events to locally connected dashboards.
type EventBroadcaster interface {
	BroadcastEvent(evt dto.DashboardEvent)
}

// EventPublisher shares dashboard events with other replicas.
type EventPublisher interface {
	PublishEvent(ctx context.Context, evt dto.DashboardEvent) error
}

type EmotionHandler struct {
	manager       BatchApplier
	summaries     SummaryReader
	defaultDevice string

	// Optional; nil disables the corresponding notification.
	Broadcaster EventBroadcaster
	Publisher   EventPublisher
}

func NewEmotionHandler(manager BatchApplier, summaries SummaryReader, defaultDevice string) *EmotionHandler {
	return &EmotionHandler{manager: manager, summaries: summaries, defaultDevice: defaultDevice}
}

// IngestBatch upserts the cumulative emotion times reported by a device.
func (h *EmotionHandler) IngestBatch(c *gin.Context) {
	var req dto.EmotionsBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch := req.Batch()
	updated, err := h.manager.ApplyBatch(c.Request.Context(), batch)
	if updated > 0 {
		h.notify(c.Request.Context(), batch.DeviceID, updated)
	}
	if err != nil {
		slog.Error("apply emotion batch", "device_id", batch.DeviceID, "applied", updated, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.EmotionsBatchResponse{Status: "ok", UpdatedCount: updated})
}

func (h *EmotionHandler) notify(ctx context.Context, deviceID string, updated int) {
	evt := dto.DashboardEvent{
		Type:         "emotions_updated",
		DeviceID:     deviceID,
		UpdatedCount: updated,
		Timestamp:    emotion.FormatTimestamp(time.Now()),
	}
	if h.Broadcaster != nil {
		h.Broadcaster.BroadcastEvent(evt)
	}
	if h.Publisher != nil {
		if err := h.Publisher.PublishEvent(ctx, evt); err != nil {
			slog.Warn("publish dashboard event", "device_id", deviceID, "error", err)
		}
	}
}

// Summary returns the aggregated dashboard view of one device.
func (h *EmotionHandler) Summary(c *gin.Context) {
	deviceID := c.DefaultQuery("device_id", h.defaultDevice)

	summary, err := h.summaries.Summarize(c.Request.Context(), deviceID)
	if err != nil {
		slog.Error("summarize device", "device_id", deviceID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summaryToResponse(summary))
}

func summaryToResponse(s models.DashboardSummary) dto.DashboardSummaryResponse {
	people := make([]dto.PersonStateResponse, 0, len(s.CurrentPeople))
	for _, p := range s.CurrentPeople {
		people = append(people, dto.PersonStateResponse{
			PersonID:       p.PersonID,
			CurrentEmotion: string(p.CurrentEmotion),
			TimeHappy:      p.TimeHappy,
			TimeSad:        p.TimeSad,
			TimeAngry:      p.TimeAngry,
			LastSeen:       emotion.FormatTimestamp(p.LastSeen),
		})
	}

	return dto.DashboardSummaryResponse{
		DeviceID:   s.DeviceID,
		DeviceName: s.DeviceName,
		UpdatedAt:  emotion.FormatTimestamp(s.UpdatedAt),
		EmotionTotals: dto.EmotionTotalsResponse{
			Happy:   s.EmotionTotals.Happy,
			Sad:     s.EmotionTotals.Sad,
			Angry:   s.EmotionTotals.Angry,
			Neutral: s.EmotionTotals.Neutral,
		},
		CurrentPeople: people,
	}
}
