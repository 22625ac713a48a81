package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/emotion/internal/emotion"
	"github.com/your-org/emotion/internal/models"
	"github.com/your-org/emotion/internal/relay"
	"github.com/your-org/emotion/pkg/dto"
)

type FrameRelay interface {
	Publish(deviceID, frameB64 string, capturedAt time.Time) (models.LatestFrame, error)
	Latest(deviceID string) (models.LatestFrame, bool)
	Subscribe(ctx context.Context, deviceID string) <-chan []byte
	Stats() relay.Stats
}

// FramePublisher shares accepted frames with other replicas.
type FramePublisher interface {
	PublishFrame(ctx context.Context, deviceID string, data []byte, capturedAt time.Time) error
}

type StreamHandler struct {
	relay FrameRelay

	// Optional.
	Publisher FramePublisher
}

func NewStreamHandler(r FrameRelay) *StreamHandler {
	return &StreamHandler{relay: r}
}

// UploadFrame replaces the device's latest frame.
func (h *StreamHandler) UploadFrame(c *gin.Context) {
	var req dto.FrameUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deviceID := req.Device()
	capturedAt := frameTime(req.Timestamp)

	frame, err := h.relay.Publish(deviceID, req.FrameB64, capturedAt)
	if err != nil {
		if errors.Is(err, relay.ErrInvalidFrame) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid base64 frame"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.Publisher != nil {
		if err := h.Publisher.PublishFrame(c.Request.Context(), deviceID, frame.Data, frame.CapturedAt); err != nil {
			slog.Warn("fan out frame", "device_id", deviceID, "error", err)
		}
	}

	c.JSON(http.StatusOK, dto.StatusResponse{Status: "ok"})
}

// frameTime resolves an optional frame timestamp. A missing or unparseable one means now.
func frameTime(ts *string) time.Time {
	if ts == nil {
		return time.Now().UTC()
	}
	t, _ := emotion.ResolveTimestamp(*ts, time.Now)
	return t
}

// Stream serves the device's latest frame as an endless multipart/x-mixed-replace response.
// The response ends only when the viewer disconnects.
func (h *StreamHandler) Stream(c *gin.Context) {
	deviceID := c.Param("device_id")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	c.Header("Content-Type", relay.ContentType)
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	slog.Debug("viewer connected", "device_id", deviceID, "ip", c.ClientIP())

	for chunk := range h.relay.Subscribe(ctx, deviceID) {
		if _, err := c.Writer.Write(chunk); err != nil {
			slog.Debug("viewer write failed", "device_id", deviceID, "error", err)
			return
		}
		c.Writer.Flush()
	}

	slog.Debug("viewer disconnected", "device_id", deviceID)
}

// Latest returns the device's latest frame as a single JPEG.
func (h *StreamHandler) Latest(c *gin.Context) {
	frame, ok := h.relay.Latest(c.Param("device_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no frame for device"})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Last-Modified", frame.CapturedAt.UTC().Format(http.TimeFormat))
	c.Data(http.StatusOK, "image/jpeg", frame.Data)
}

func (h *StreamHandler) Stats(c *gin.Context) {
	s := h.relay.Stats()
	c.JSON(http.StatusOK, dto.RelayStatsResponse{
		Devices:     s.Devices,
		Published:   s.Published,
		Superseded:  s.Superseded,
		Subscribers: s.Subscribers,
	})
}
