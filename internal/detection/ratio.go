// Package detection implements the per-frame landmark-to-metric pipeline:
// eye/mouth aspect ratios over fixed landmark subsets and the
// consecutive-frame alert counters built on top of them.
package detection

import (
	"errors"

	"gonum.org/v1/gonum/floats"

	"drowsydetect/internal/models"
)

// Point is a 2D landmark in pixel space.
type Point [2]float64

var ErrTooFewLandmarks = errors.New("landmark set too small for configured indices")

func dist(a, b Point) float64 {
	return floats.Distance(a[:], b[:], 2)
}

// EyeAspectRatio computes EAR = (|p1-p5| + |p2-p4|) / (2*|p0-p3|) over the
// six-point eye contour. Returns 0 for short input or a degenerate
// horizontal axis.
func EyeAspectRatio(eye []Point) float64 {
	if len(eye) < 6 {
		return 0
	}
	a := dist(eye[1], eye[5])
	b := dist(eye[2], eye[4])
	c := dist(eye[0], eye[3])
	if c == 0 {
		return 0
	}
	return (a + b) / (2 * c)
}

// MouthAspectRatio computes MAR = (|p2-p10| + |p4-p8|) / (2*|p0-p6|) over
// the mouth contour. Returns 0 for short input or a degenerate horizontal
// axis.
func MouthAspectRatio(mouth []Point) float64 {
	if len(mouth) < 11 {
		return 0
	}
	a := dist(mouth[2], mouth[10])
	b := dist(mouth[4], mouth[8])
	c := dist(mouth[0], mouth[6])
	if c == 0 {
		return 0
	}
	return (a + b) / (2 * c)
}

// ExtractPoints maps normalized landmarks at the given mesh indices to
// pixel coordinates, truncating to whole pixels the way the detector
// consumes them.
func ExtractPoints(landmarks []models.Landmark, indices []int, width, height int) ([]Point, error) {
	pts := make([]Point, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(landmarks) {
			return nil, ErrTooFewLandmarks
		}
		lm := landmarks[idx]
		pts[i] = Point{
			float64(int(lm.X * float64(width))),
			float64(int(lm.Y * float64(height))),
		}
	}
	return pts, nil
}
