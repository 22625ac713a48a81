package relay

import (
	"context"
	"log/slog"
	"time"
)

// FrameStore keeps one persisted frame per device.
type FrameStore interface {
	PutFrame(ctx context.Context, deviceID string, data []byte, capturedAt time.Time) error
	GetFrame(ctx context.Context, deviceID string) ([]byte, time.Time, error)
	ListFrameDevices(ctx context.Context) ([]string, error)
}

// Persister copies changed latest frames to a FrameStore so a restarted
// process can serve the last known image before devices publish again.
type Persister struct {
	relay    *Relay
	store    FrameStore
	interval time.Duration

	// last persisted seq per device, only touched by the Run goroutine
	saved map[string]uint64
}

func NewPersister(r *Relay, store FrameStore, interval time.Duration) *Persister {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Persister{
		relay:    r,
		store:    store,
		interval: interval,
		saved:    make(map[string]uint64),
	}
}

// Warm loads persisted frames into the relay for devices that have no frame yet.
func (p *Persister) Warm(ctx context.Context) (int, error) {
	devices, err := p.store.ListFrameDevices(ctx)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, id := range devices {
		if _, ok := p.relay.Latest(id); ok {
			continue
		}
		data, capturedAt, err := p.store.GetFrame(ctx, id)
		if err != nil {
			slog.Warn("load persisted frame", "device_id", id, "error", err)
			continue
		}
		frame := p.relay.Store(id, data, capturedAt)
		p.saved[id] = frame.Seq
		loaded++
	}
	return loaded, nil
}

// Run persists changed frames every interval until ctx is done, then flushes once more.
func (p *Persister) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			p.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			p.Flush(ctx)
		}
	}
}

// Flush writes every frame whose seq changed since it was last persisted.
func (p *Persister) Flush(ctx context.Context) int {
	written := 0
	for id, frame := range p.relay.Snapshot() {
		if p.saved[id] == frame.Seq {
			continue
		}
		if err := p.store.PutFrame(ctx, id, frame.Data, frame.CapturedAt); err != nil {
			slog.Warn("persist frame", "device_id", id, "error", err)
			continue
		}
		p.saved[id] = frame.Seq
		written++
	}
	return written
}
