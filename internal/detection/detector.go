package detection

import (
	"time"

	"drowsydetect/internal/config"
	"drowsydetect/internal/models"
)

type Thresholds struct {
	EyeAR       float64
	MouthAR     float64
	EyeFrames   int
	MouthFrames int
}

func ThresholdsFromConfig(cfg *config.Config) Thresholds {
	return Thresholds{
		EyeAR:       cfg.EyeARThresh,
		MouthAR:     cfg.MouthARThresh,
		EyeFrames:   cfg.EyeFrames,
		MouthFrames: cfg.MouthFrames,
	}
}

const startVigilance = 100

// Detector holds the per-session alert state: one debounce monitor per
// metric plus the running vigilance score. Not safe for concurrent use;
// each client session owns its own Detector.
type Detector struct {
	t         Thresholds
	eyes      *ConditionMonitor
	mouth     *ConditionMonitor
	vigilance int
}

func NewDetector(t Thresholds) *Detector {
	return &Detector{
		t:         t,
		eyes:      NewConditionMonitor(t.EyeFrames),
		mouth:     NewConditionMonitor(t.MouthFrames),
		vigilance: startVigilance,
	}
}

// Reset clears both counters and restores the vigilance score. Called at
// session start.
func (d *Detector) Reset() {
	d.eyes.Reset()
	d.mouth.Reset()
	d.vigilance = startVigilance
}

func (d *Detector) Vigilance() int {
	return d.vigilance
}

// Assess runs the full per-frame pipeline over one landmark set: subset
// extraction, ratio computation, counter update, alert decision.
//
// A frame without a face leaves the counters untouched, matching the
// single-pass detector this replaces: a missed detection does not break an
// unbroken run of closed-eye frames.
func (d *Detector) Assess(set *models.LandmarkSet, width, height int) (models.FrameAssessment, error) {
	now := time.Now().UnixMilli()

	if set == nil || !set.FaceDetected || len(set.Landmarks) == 0 {
		return models.FrameAssessment{
			EAR:          1.0,
			MAR:          0.0,
			Status:       models.StatusAwake,
			Vigilance:    d.vigilance,
			FaceDetected: false,
			Timestamp:    now,
		}, nil
	}

	leftEye, err := ExtractPoints(set.Landmarks, config.LeftEyeIndices, width, height)
	if err != nil {
		return models.FrameAssessment{}, err
	}
	rightEye, err := ExtractPoints(set.Landmarks, config.RightEyeIndices, width, height)
	if err != nil {
		return models.FrameAssessment{}, err
	}
	mouth, err := ExtractPoints(set.Landmarks, config.MouthIndices, width, height)
	if err != nil {
		return models.FrameAssessment{}, err
	}

	ear := (EyeAspectRatio(leftEye) + EyeAspectRatio(rightEye)) / 2
	mar := MouthAspectRatio(mouth)

	eyesClosed := ear < d.t.EyeAR
	mouthOpen := mar > d.t.MouthAR

	eyeAlert := d.eyes.Observe(eyesClosed)
	mouthAlert := d.mouth.Observe(mouthOpen)

	status := models.StatusAwake
	if mouthAlert {
		status = models.StatusDrowsy
		d.vigilance = max(d.vigilance-10, 0)
	}
	if eyeAlert {
		// Closed eyes outrank an open mouth.
		status = models.StatusDeepSleep
		d.vigilance = max(d.vigilance-20, 0)
	}

	return models.FrameAssessment{
		EAR:             ear,
		MAR:             mar,
		EyesClosed:      eyesClosed,
		MouthOpen:       mouthOpen,
		Alert:           eyeAlert || mouthAlert,
		Status:          status,
		Vigilance:       d.vigilance,
		FaceDetected:    true,
		InferenceTimeMs: set.InferenceTimeMs,
		Timestamp:       now,
	}, nil
}
