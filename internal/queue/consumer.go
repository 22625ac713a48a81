package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/your-org/emotion/internal/models"
	"github.com/your-org/emotion/pkg/dto"
)

type (
	FrameHandler func(msg models.FrameMessage)
	EventHandler func(evt dto.DashboardEvent)
)

// Consumer receives frames and dashboard events published by other replicas.
type Consumer struct {
	nc     *nats.Conn
	origin string
}

func NewConsumer(natsURL, origin string) (*Consumer, error) {
	nc, err := connect(natsURL, "emotion-consumer-"+origin)
	if err != nil {
		return nil, err
	}
	return &Consumer{nc: nc, origin: origin}, nil
}

// ConsumeFrames calls handler for every frame published by another process.
func (c *Consumer) ConsumeFrames(handler FrameHandler) error {
	_, err := c.nc.Subscribe(FramesSubjectBase+".>", func(m *nats.Msg) {
		var msg models.FrameMessage
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			slog.Warn("decode frame message", "subject", m.Subject, "error", err)
			return
		}
		if msg.Origin == c.origin {
			return
		}
		handler(msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe frames: %w", err)
	}
	slog.Info("frame consumer started", "subject", FramesSubjectBase+".>")
	return nil
}

// ConsumeEvents calls handler for every dashboard event published by another process.
func (c *Consumer) ConsumeEvents(handler EventHandler) error {
	_, err := c.nc.Subscribe(EventsSubjectBase+".>", func(m *nats.Msg) {
		var evt dto.DashboardEvent
		if err := json.Unmarshal(m.Data, &evt); err != nil {
			slog.Warn("decode dashboard event", "subject", m.Subject, "error", err)
			return
		}
		if evt.Origin == c.origin {
			return
		}
		handler(evt)
	})
	if err != nil {
		return fmt.Errorf("subscribe events: %w", err)
	}
	slog.Info("event consumer started", "subject", EventsSubjectBase+".>")
	return nil
}

func (c *Consumer) Close() {
	_ = c.nc.Drain()
}
