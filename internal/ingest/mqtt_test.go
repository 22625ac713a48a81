package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/emotion/internal/config"
	"github.com/your-org/emotion/internal/models"
	"github.com/your-org/emotion/internal/relay"
	"github.com/your-org/emotion/pkg/dto"
)

type fakeApplier struct {
	batches []models.EmotionBatch
	err     error
}

func (f *fakeApplier) ApplyBatch(_ context.Context, batch models.EmotionBatch) (int, error) {
	f.batches = append(f.batches, batch)
	if f.err != nil {
		return 0, f.err
	}
	return len(batch.People), nil
}

type sink struct {
	events []dto.DashboardEvent
	frames []models.FrameMessage
}

func (s *sink) PublishEvent(_ context.Context, evt dto.DashboardEvent) error {
	s.events = append(s.events, evt)
	return nil
}

func (s *sink) PublishFrame(_ context.Context, deviceID string, data []byte, capturedAt time.Time) error {
	s.frames = append(s.frames, models.FrameMessage{DeviceID: deviceID, Data: data, CapturedAt: capturedAt})
	return nil
}

func newTestBridge() (*Bridge, *fakeApplier, *sink) {
	applier := &fakeApplier{}
	out := &sink{}
	cfg := config.MQTTConfig{TopicPrefix: "emotion"}
	return NewBridge(cfg, applier, out, out), applier, out
}

func TestHandleMessage_Batch(t *testing.T) {
	b, applier, out := newTestBridge()

	err := b.handleMessage(context.Background(), "emotion/jetson_1/batch", []byte(`{
		"timestamp": "2024-05-01T10:00:00Z",
		"people": [{"person_id": "p1", "cumulative": {"happy": 3, "bored": 1}}]
	}`))

	require.NoError(t, err)
	require.Len(t, applier.batches, 1)
	batch := applier.batches[0]
	assert.Equal(t, "jetson_1", batch.DeviceID, "device id is taken from the topic")
	assert.Equal(t, models.Cumulative{Happy: 3}, batch.People[0].Cumulative)
	require.Len(t, out.events, 1)
	assert.Equal(t, 1, out.events[0].UpdatedCount)
	assert.Equal(t, "jetson_1", out.events[0].DeviceID)
}

func TestHandleMessage_BatchPayloadDeviceWins(t *testing.T) {
	b, applier, _ := newTestBridge()

	err := b.handleMessage(context.Background(), "emotion/topic-device/batch",
		[]byte(`{"device_id":"body-device","timestamp":"","people":[]}`))

	require.NoError(t, err)
	assert.Equal(t, "body-device", applier.batches[0].DeviceID)
}

func TestHandleMessage_BatchApplyError(t *testing.T) {
	b, applier, out := newTestBridge()
	applier.err = errors.New("database is locked")

	err := b.handleMessage(context.Background(), "emotion/jetson_1/batch",
		[]byte(`{"timestamp":"2024-05-01T10:00:00Z","people":[{"person_id":"p1","cumulative":{}}]}`))

	assert.ErrorIs(t, err, applier.err)
	assert.Empty(t, out.events)
}

func TestHandleMessage_Frame(t *testing.T) {
	b, _, out := newTestBridge()
	payload := `{"frame_b64":"` + base64.StdEncoding.EncodeToString([]byte("jpeg")) + `","timestamp":"2024-05-01T12:00:00+02:00"}`

	err := b.handleMessage(context.Background(), "emotion/cam/frame", []byte(payload))

	require.NoError(t, err)
	require.Len(t, out.frames, 1)
	assert.Equal(t, "cam", out.frames[0].DeviceID)
	assert.Equal(t, []byte("jpeg"), out.frames[0].Data)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), out.frames[0].CapturedAt)
}

func TestHandleMessage_FrameTimestamps(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte("jpeg"))
	tests := []struct {
		name string
		ts   string
		want time.Time // zero means the receive time
	}{
		{"zone-less", `"2025-11-14T12:34:56"`, time.Date(2025, 11, 14, 12, 34, 56, 0, time.UTC)},
		{"zone-less with micros", `"2025-11-14T12:34:56.250000"`, time.Date(2025, 11, 14, 12, 34, 56, 250000000, time.UTC)},
		{"unparseable", `"later"`, time.Time{}},
		{"null", `null`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, out := newTestBridge()
			before := time.Now()

			err := b.handleMessage(context.Background(), "emotion/cam/frame",
				[]byte(`{"frame_b64":"`+data+`","timestamp":`+tt.ts+`}`))

			require.NoError(t, err)
			require.Len(t, out.frames, 1)
			if tt.want.IsZero() {
				assert.WithinDuration(t, before, out.frames[0].CapturedAt, 5*time.Second)
			} else {
				assert.Equal(t, tt.want, out.frames[0].CapturedAt)
			}
		})
	}
}

func TestHandleMessage_EmptyPayloadIDsKept(t *testing.T) {
	b, applier, out := newTestBridge()

	err := b.handleMessage(context.Background(), "emotion/cam/batch",
		[]byte(`{"device_id":"","timestamp":"","people":[{"person_id":"","cumulative":{"angry":1}}]}`))
	require.NoError(t, err)
	require.Len(t, applier.batches, 1)
	assert.Equal(t, "", applier.batches[0].DeviceID)
	assert.Equal(t, "", applier.batches[0].People[0].PersonID)

	err = b.handleMessage(context.Background(), "emotion/cam/frame",
		[]byte(`{"device_id":"","frame_b64":"`+base64.StdEncoding.EncodeToString([]byte("jpeg"))+`"}`))
	require.NoError(t, err)
	require.Len(t, out.frames, 1)
	assert.Equal(t, "", out.frames[0].DeviceID)
}

func TestHandleMessage_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		wantErr error
	}{
		{"other prefix", "beacons/cam/frame", `{}`, errUnknownTopic},
		{"unknown kind", "emotion/cam/status", `{}`, errUnknownTopic},
		{"missing device", "emotion//batch", `{}`, errUnknownTopic},
		{"nested topic", "emotion/cam/extra/frame", `{}`, errUnknownTopic},
		{"invalid base64", "emotion/cam/frame", `{"frame_b64":"@@@"}`, relay.ErrInvalidFrame},
		{"frame without data", "emotion/cam/frame", `{}`, nil},
		{"batch not json", "emotion/cam/batch", `not json`, nil},
		{"batch without people", "emotion/cam/batch", `{"timestamp":"2024-05-01T10:00:00Z"}`, nil},
		{"batch without timestamp", "emotion/cam/batch", `{"people":[]}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, applier, out := newTestBridge()

			err := b.handleMessage(context.Background(), tt.topic, []byte(tt.payload))

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Empty(t, applier.batches)
			assert.Empty(t, out.frames)
		})
	}
}

func TestHandleMessage_FrameWithoutFanOut(t *testing.T) {
	b := NewBridge(config.MQTTConfig{TopicPrefix: "emotion"}, &fakeApplier{}, nil, nil)
	payload := `{"frame_b64":"` + base64.StdEncoding.EncodeToString([]byte("jpeg")) + `"}`

	assert.NoError(t, b.handleMessage(context.Background(), "emotion/cam/frame", []byte(payload)))
}

func TestTopics(t *testing.T) {
	b, _, _ := newTestBridge()
	assert.Equal(t, map[string]byte{"emotion/+/batch": 0, "emotion/+/frame": 0}, b.topics())
}
