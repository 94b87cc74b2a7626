package models

// Landmark is one facial keypoint in normalized [0,1] image coordinates,
// as produced by the face-landmark sidecar.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LandmarkSet is the sidecar response for one frame.
type LandmarkSet struct {
	FaceDetected    bool       `json:"face_detected"`
	Landmarks       []Landmark `json:"landmarks"`
	InferenceTimeMs float64    `json:"inference_time_ms"`
}

// VideoFrame is a client-submitted frame: base64-encoded JPEG plus client
// bookkeeping.
type VideoFrame struct {
	Frame          string `json:"frame"`
	Timestamp      int64  `json:"timestamp"`
	SequenceNumber int32  `json:"sequence_number,omitempty"`
}

// Vigilance status values, ordered by severity.
const (
	StatusAwake     = "AWAKE"
	StatusDrowsy    = "DROWSY"
	StatusDeepSleep = "DEEP_SLEEP"
)

// FrameAssessment is the per-frame detection outcome sent back to the
// submitting client and broadcast to dashboard watchers.
type FrameAssessment struct {
	EAR             float64 `json:"ear_value"`
	MAR             float64 `json:"mar_value"`
	EyesClosed      bool    `json:"eyes_closed"`
	MouthOpen       bool    `json:"mouth_open"`
	Alert           bool    `json:"alert"`
	Status          string  `json:"status"`
	Vigilance       int     `json:"vigilance"`
	FaceDetected    bool    `json:"face_detected"`
	InferenceTimeMs float64 `json:"inference_time_ms,omitempty"`
	SequenceNumber  int32   `json:"sequence_number,omitempty"`
	Timestamp       int64   `json:"timestamp"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
	Code      string `json:"code,omitempty"`
}

type HealthStatus struct {
	Status          string `json:"status"`
	LandmarkService bool   `json:"landmark_service"`
	ActiveClients   int    `json:"active_clients"`
	Timestamp       string `json:"timestamp"`
}
