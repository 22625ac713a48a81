package relay

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/your-org/emotion/internal/models"
	"github.com/your-org/emotion/internal/observability"
)

// DefaultPollInterval is how often a subscriber checks the latest-frame register.
const DefaultPollInterval = 100 * time.Millisecond

// ErrInvalidFrame is returned when a frame payload is not valid base64.
var ErrInvalidFrame = errors.New("invalid base64 frame")

type slot struct {
	frame models.LatestFrame
	// polled is set once any subscriber tick has read the current frame.
	polled bool
}

// Relay holds the latest frame of every device and streams it to viewers.
//
// Each device has a single overwrite-only slot. Writers never wait for readers:
// a subscriber that polls slowly simply sees the newest frame on its next tick.
type Relay struct {
	mu    sync.RWMutex
	slots map[string]*slot

	interval time.Duration
	seq      atomic.Uint64

	published   atomic.Uint64
	superseded  atomic.Uint64
	subscribers atomic.Int64
}

func New(pollInterval time.Duration) *Relay {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Relay{
		slots:    make(map[string]*slot),
		interval: pollInterval,
	}
}

// DecodeFrame decodes a standard base64 frame payload.
func DecodeFrame(frameB64 string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(frameB64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return data, nil
}

// Publish decodes frameB64 and makes it the device's latest frame.
// On a decode error the previous frame is left in place.
func (r *Relay) Publish(deviceID, frameB64 string, capturedAt time.Time) (models.LatestFrame, error) {
	data, err := DecodeFrame(frameB64)
	if err != nil {
		observability.FramesRejected.Inc()
		return models.LatestFrame{}, err
	}
	return r.Store(deviceID, data, capturedAt), nil
}

// Store replaces the device's latest frame with data. A zero capturedAt means now.
func (r *Relay) Store(deviceID string, data []byte, capturedAt time.Time) models.LatestFrame {
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}
	frame := models.LatestFrame{
		Data:       data,
		CapturedAt: capturedAt.UTC(),
		Seq:        r.seq.Add(1),
	}

	r.mu.Lock()
	s, ok := r.slots[deviceID]
	if !ok {
		s = &slot{}
		r.slots[deviceID] = s
	} else if !s.polled {
		r.superseded.Add(1)
		observability.FramesSuperseded.WithLabelValues(deviceID).Inc()
	}
	s.frame = frame
	s.polled = false
	r.mu.Unlock()

	r.published.Add(1)
	observability.FramesPublished.WithLabelValues(deviceID).Inc()
	return frame
}

// Latest returns the device's current frame, if any.
func (r *Relay) Latest(deviceID string) (models.LatestFrame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slots[deviceID]
	if !ok {
		return models.LatestFrame{}, false
	}
	return s.frame, true
}

// poll reads the slot on behalf of a subscriber tick.
func (r *Relay) poll(deviceID string) (models.LatestFrame, bool) {
	r.mu.RLock()
	s, ok := r.slots[deviceID]
	if !ok {
		r.mu.RUnlock()
		return models.LatestFrame{}, false
	}
	frame, polled := s.frame, s.polled
	r.mu.RUnlock()

	if !polled {
		r.mu.Lock()
		if s.frame.Seq == frame.Seq {
			s.polled = true
		}
		r.mu.Unlock()
	}
	return frame, true
}

// Snapshot returns a copy of every device's latest frame.
func (r *Relay) Snapshot() map[string]models.LatestFrame {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]models.LatestFrame, len(r.slots))
	for id, s := range r.slots {
		out[id] = s.frame
	}
	return out
}

// Subscribe starts a polling loop for deviceID and returns its multipart chunks.
// The first check happens immediately, then once per poll interval; each check that
// finds a frame yields one chunk wrapping it, even when it has not changed.
// The channel is closed once ctx is done.
func (r *Relay) Subscribe(ctx context.Context, deviceID string) <-chan []byte {
	out := make(chan []byte)

	r.subscribers.Add(1)
	observability.StreamSubscribers.Inc()

	go func() {
		defer func() {
			close(out)
			r.subscribers.Add(-1)
			observability.StreamSubscribers.Dec()
		}()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			if frame, ok := r.poll(deviceID); ok {
				select {
				case out <- Chunk(frame.Data):
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return out
}

// Stats is a point-in-time view of relay activity.
type Stats struct {
	Devices     int
	Published   uint64
	Superseded  uint64
	Subscribers int64
}

func (r *Relay) Stats() Stats {
	r.mu.RLock()
	devices := len(r.slots)
	r.mu.RUnlock()
	return Stats{
		Devices:     devices,
		Published:   r.published.Load(),
		Superseded:  r.superseded.Load(),
		Subscribers: r.subscribers.Load(),
	}
}
