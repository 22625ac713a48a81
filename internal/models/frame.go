package models

import "time"

// LatestFrame is the content of a device's latest-frame register.
// Seq increases on every write to the relay and is used to detect changes.
type LatestFrame struct {
	Data       []byte
	CapturedAt time.Time
	Seq        uint64
}

// FrameMessage is the NATS payload used to share frames between replicas.
type FrameMessage struct {
	Origin     string    `json:"origin"`
	DeviceID   string    `json:"device_id"`
	CapturedAt time.Time `json:"captured_at"`
	Data       []byte    `json:"data"`
}
