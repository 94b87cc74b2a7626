// Package pipeline runs the per-frame processing chain: decode the frame,
// fetch landmarks from the sidecar, compute the aspect-ratio metrics,
// update the alert counters and fan the outcome out to storage, the CSV
// session log and dashboard subscribers.
package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	"time"

	"drowsydetect/internal/csvlog"
	"drowsydetect/internal/detection"
	"drowsydetect/internal/models"
	"drowsydetect/internal/services"
	"drowsydetect/internal/ws"
	"drowsydetect/pkg/log"
)

// Landmarker is the sidecar bridge the pipeline calls per frame.
type Landmarker interface {
	Detect(frame []byte) (*models.LandmarkSet, error)
	Connected() bool
}

// EventStore persists frame assessments for a session.
type EventStore interface {
	InsertEvent(ctx context.Context, e *models.Event) error
}

type Pipeline struct {
	thresholds detection.Thresholds
	landmarker Landmarker
	store      EventStore
	metrics    *services.Metrics
	hub        *ws.Hub

	csvDir     string
	csvEnabled bool
}

func New(thresholds detection.Thresholds, landmarker Landmarker, store EventStore, metrics *services.Metrics, hub *ws.Hub, csvDir string, csvEnabled bool) *Pipeline {
	return &Pipeline{
		thresholds: thresholds,
		landmarker: landmarker,
		store:      store,
		metrics:    metrics,
		hub:        hub,
		csvDir:     csvDir,
		csvEnabled: csvEnabled,
	}
}

func (p *Pipeline) SidecarConnected() bool {
	return p.landmarker.Connected()
}

// Session is the per-client detection state. One Session per websocket
// client; frames for a session are processed sequentially by its read loop.
type Session struct {
	p          *Pipeline
	dbID       int
	detector   *detection.Detector
	csv        *csvlog.Writer
	alertState bool
}

// StartSession builds fresh detection state. dbID links processed frames
// to a stored monitoring session; 0 means unsaved (dashboard preview).
func (p *Pipeline) StartSession(dbID int) (*Session, error) {
	s := &Session{
		p:        p,
		dbID:     dbID,
		detector: detection.NewDetector(p.thresholds),
	}

	if p.csvEnabled && dbID != 0 {
		w, err := csvlog.NewWriter(p.csvDir, dbID)
		if err != nil {
			return nil, fmt.Errorf("failed to open session csv log: %w", err)
		}
		s.csv = w
		log.Info(log.Fields{"session_id": dbID, "path": w.Path()}, "session csv log opened")
	}

	return s, nil
}

func (s *Session) Close() {
	if s.csv != nil {
		if err := s.csv.Close(); err != nil {
			log.Warn(log.Fields{"session_id": s.dbID, "error": err.Error()}, "failed to close session csv log")
		}
	}
}

// Process runs one frame through the full chain and returns the
// assessment. Persistence and broadcast failures are logged, not
// propagated: a lost event row must not break the monitoring stream.
func (s *Session) Process(ctx context.Context, frame models.VideoFrame) (models.FrameAssessment, error) {
	start := time.Now()

	raw, err := base64.StdEncoding.DecodeString(frame.Frame)
	if err != nil {
		s.p.metrics.IncrementErrors()
		return models.FrameAssessment{}, fmt.Errorf("invalid frame encoding: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		s.p.metrics.IncrementErrors()
		return models.FrameAssessment{}, fmt.Errorf("failed to decode frame: %w", err)
	}

	set, err := s.p.landmarker.Detect(raw)
	if err != nil {
		s.p.metrics.IncrementErrors()
		return models.FrameAssessment{}, fmt.Errorf("landmark detection failed: %w", err)
	}

	assessment, err := s.detector.Assess(set, cfg.Width, cfg.Height)
	if err != nil {
		s.p.metrics.IncrementErrors()
		return models.FrameAssessment{}, err
	}
	assessment.SequenceNumber = frame.SequenceNumber

	s.p.metrics.IncrementFrames()
	s.p.metrics.RecordLatency(time.Since(start))

	if !assessment.FaceDetected {
		log.Debug(log.Fields{"session_id": s.dbID, "sequence": frame.SequenceNumber}, "no face detected in frame")
		return assessment, nil
	}

	s.announce(assessment)
	s.record(ctx, assessment)

	return assessment, nil
}

// announce handles alert edge detection: logging and dashboard broadcast
// fire on the transition into the alert state, not on every alert frame.
func (s *Session) announce(a models.FrameAssessment) {
	if a.Alert && !s.alertState {
		s.p.metrics.IncrementDrowsyDetections()

		switch a.Status {
		case models.StatusDeepSleep:
			log.Error(log.Fields{"session_id": s.dbID, "ear": a.EAR}, "drowsiness alert: eyes detected as closed")
		case models.StatusDrowsy:
			log.Warn(log.Fields{"session_id": s.dbID, "mar": a.MAR}, "drowsiness sign detected (mouth open)")
		}

		s.p.hub.Broadcast(ws.Message{
			Type:      ws.TypeAlert,
			Timestamp: time.Now().Unix(),
			Payload:   a,
		})
	}
	s.alertState = a.Alert
}

func (s *Session) record(ctx context.Context, a models.FrameAssessment) {
	if s.dbID != 0 && s.p.store != nil {
		event := &models.Event{
			SessionID:  s.dbID,
			EAR:        a.EAR,
			MAR:        a.MAR,
			EyesClosed: a.EyesClosed,
			MouthOpen:  a.MouthOpen,
			Alert:      a.Alert,
			Timestamp:  time.UnixMilli(a.Timestamp),
		}
		if err := s.p.store.InsertEvent(ctx, event); err != nil {
			log.Warn(log.Fields{"session_id": s.dbID, "error": err.Error()}, "failed to persist event")
		}
	}

	if s.csv != nil {
		if err := s.csv.Append(a); err != nil {
			log.Warn(log.Fields{"session_id": s.dbID, "error": err.Error()}, "failed to append csv record")
		}
	}
}
