package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/your-org/emotion/internal/models"
	"github.com/your-org/emotion/pkg/dto"
)

const (
	FramesSubjectBase = "emotion.frames"
	EventsSubjectBase = "emotion.events"
)

// Producer shares frames and dashboard events with the other replicas over core NATS.
// Delivery is best effort, like the relay itself.
type Producer struct {
	nc     *nats.Conn
	origin string
}

func connect(natsURL, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

// NewProducer connects to NATS. origin identifies this process so its own messages can be skipped.
func NewProducer(natsURL, origin string) (*Producer, error) {
	nc, err := connect(natsURL, "emotion-producer-"+origin)
	if err != nil {
		return nil, err
	}
	return &Producer{nc: nc, origin: origin}, nil
}

// subjectToken makes a device ID safe to use as a single NATS subject token.
func subjectToken(deviceID string) string {
	if deviceID == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, deviceID)
}

// PublishFrame sends a raw frame to the other replicas.
func (p *Producer) PublishFrame(ctx context.Context, deviceID string, data []byte, capturedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(models.FrameMessage{
		Origin:     p.origin,
		DeviceID:   deviceID,
		CapturedAt: capturedAt,
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", FramesSubjectBase, subjectToken(deviceID))
	if err := p.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish frame: %w", err)
	}
	return nil
}

// PublishEvent sends a dashboard event to the other replicas.
func (p *Producer) PublishEvent(ctx context.Context, evt dto.DashboardEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	evt.Origin = p.origin
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", EventsSubjectBase, subjectToken(evt.DeviceID))
	if err := p.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	_ = p.nc.Drain()
}
