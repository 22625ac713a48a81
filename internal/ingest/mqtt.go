package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin/binding"
	"github.com/goccy/go-json"

	"github.com/your-org/emotion/internal/config"
	"github.com/your-org/emotion/internal/emotion"
	"github.com/your-org/emotion/internal/models"
	"github.com/your-org/emotion/internal/observability"
	"github.com/your-org/emotion/internal/relay"
	"github.com/your-org/emotion/pkg/dto"
)

const (
	kindBatch = "batch"
	kindFrame = "frame"
)

const connectTimeout = 30 * time.Second

var errUnknownTopic = errors.New("unknown topic")

type BatchApplier interface {
	ApplyBatch(ctx context.Context, batch models.EmotionBatch) (int, error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, evt dto.DashboardEvent) error
}

type FramePublisher interface {
	PublishFrame(ctx context.Context, deviceID string, data []byte, capturedAt time.Time) error
}

// Bridge consumes device uploads from MQTT.
//
// Topics are <prefix>/<device_id>/batch and <prefix>/<device_id>/frame and carry the
// same JSON bodies as the HTTP endpoints. Batches are written to the record store;
// frames and dashboard events are forwarded to the API replicas over NATS.
type Bridge struct {
	cfg     config.MQTTConfig
	manager BatchApplier
	events  EventPublisher
	frames  FramePublisher

	client mqtt.Client
	ctx    context.Context
}

// NewBridge wires the bridge. events and frames may be nil.
func NewBridge(cfg config.MQTTConfig, manager BatchApplier, events EventPublisher, frames FramePublisher) *Bridge {
	return &Bridge{
		cfg:     cfg,
		manager: manager,
		events:  events,
		frames:  frames,
		ctx:     context.Background(),
	}
}

func (b *Bridge) topics() map[string]byte {
	return map[string]byte{
		b.cfg.TopicPrefix + "/+/" + kindBatch: 0,
		b.cfg.TopicPrefix + "/+/" + kindFrame: 0,
	}
}

// Start connects to the broker and subscribes. Subscriptions are renewed on every reconnect.
// ctx scopes message handling and must stay alive for as long as the bridge runs.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx = ctx

	opts := mqtt.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetClientID(b.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(b.subscribe).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			slog.Warn("mqtt connection lost", "error", err)
		})
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username).SetPassword(b.cfg.Password)
	}

	b.client = mqtt.NewClient(opts)
	token := b.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(connectTimeout):
		return fmt.Errorf("connect to mqtt broker %s: timed out after %s", b.cfg.Broker, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to mqtt broker: %w", err)
	}
	return nil
}

func (b *Bridge) subscribe(c mqtt.Client) {
	topics := b.topics()
	token := c.SubscribeMultiple(topics, b.onMessage)
	if !token.WaitTimeout(5 * time.Second) {
		slog.Error("mqtt subscription timeout")
		return
	}
	if err := token.Error(); err != nil {
		slog.Error("mqtt subscription failed", "error", err)
		return
	}
	slog.Info("mqtt subscribed", "broker", b.cfg.Broker, "prefix", b.cfg.TopicPrefix)
}

// Stop disconnects from the broker, giving in-flight work a short grace period.
func (b *Bridge) Stop() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
	}
}

func (b *Bridge) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if err := b.handleMessage(b.ctx, msg.Topic(), msg.Payload()); err != nil {
		slog.Warn("drop mqtt message", "topic", msg.Topic(), "error", err)
	}
}

// parseTopic splits <prefix>/<device_id>/<kind>.
func (b *Bridge) parseTopic(topic string) (deviceID, kind string, err error) {
	rest, ok := strings.CutPrefix(topic, b.cfg.TopicPrefix+"/")
	if !ok {
		return "", "", fmt.Errorf("%w: %s", errUnknownTopic, topic)
	}
	deviceID, kind, ok = strings.Cut(rest, "/")
	if !ok || deviceID == "" || (kind != kindBatch && kind != kindFrame) {
		return "", "", fmt.Errorf("%w: %s", errUnknownTopic, topic)
	}
	return deviceID, kind, nil
}

func (b *Bridge) handleMessage(ctx context.Context, topic string, payload []byte) error {
	deviceID, kind, err := b.parseTopic(topic)
	if err != nil {
		observability.IngestErrors.WithLabelValues("topic").Inc()
		return err
	}

	switch kind {
	case kindBatch:
		err = b.handleBatch(ctx, deviceID, payload)
	case kindFrame:
		err = b.handleFrame(ctx, deviceID, payload)
	}
	if err != nil {
		observability.IngestErrors.WithLabelValues(kind).Inc()
	}
	return err
}

func (b *Bridge) handleBatch(ctx context.Context, deviceID string, payload []byte) error {
	var req dto.EmotionsBatchRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("decode batch: %w", err)
	}
	if req.DeviceID == nil {
		req.DeviceID = &deviceID
	}
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		return fmt.Errorf("validate batch: %w", err)
	}

	batch := req.Batch()
	updated, err := b.manager.ApplyBatch(ctx, batch)
	if updated > 0 && b.events != nil {
		evt := dto.DashboardEvent{
			Type:         "emotions_updated",
			DeviceID:     batch.DeviceID,
			UpdatedCount: updated,
			Timestamp:    emotion.FormatTimestamp(time.Now()),
		}
		if perr := b.events.PublishEvent(ctx, evt); perr != nil {
			slog.Warn("publish dashboard event", "device_id", batch.DeviceID, "error", perr)
		}
	}
	if err != nil {
		return fmt.Errorf("apply batch: %w", err)
	}

	slog.Debug("mqtt batch applied", "device_id", batch.DeviceID, "updated", updated)
	return nil
}

func (b *Bridge) handleFrame(ctx context.Context, deviceID string, payload []byte) error {
	var req dto.FrameUploadRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	if req.DeviceID == nil {
		req.DeviceID = &deviceID
	}
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		return fmt.Errorf("validate frame: %w", err)
	}

	data, err := relay.DecodeFrame(req.FrameB64)
	if err != nil {
		return err
	}
	if b.frames == nil {
		return nil
	}

	capturedAt := time.Now().UTC()
	if req.Timestamp != nil {
		capturedAt, _ = emotion.ResolveTimestamp(*req.Timestamp, time.Now)
	}
	return b.frames.PublishFrame(ctx, req.Device(), data, capturedAt)
}
