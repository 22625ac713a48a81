package dto

// FrameUploadRequest carries one base64 JPEG. Timestamp accepts the same ISO-8601 forms as batches.
type FrameUploadRequest struct {
	DeviceID  *string `json:"device_id" binding:"required"`
	FrameB64  string  `json:"frame_b64" binding:"required"`
	Timestamp *string `json:"timestamp,omitempty"`
}

// Device returns the device id, or "" when it was not sent.
func (r FrameUploadRequest) Device() string {
	return deref(r.DeviceID)
}

type StatusResponse struct {
	Status string `json:"status"`
}

type RelayStatsResponse struct {
	Devices     int    `json:"devices"`
	Published   uint64 `json:"published"`
	Superseded  uint64 `json:"superseded"`
	Subscribers int64  `json:"subscribers"`
}
