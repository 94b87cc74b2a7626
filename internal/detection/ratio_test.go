package detection

import (
	"math"
	"testing"

	"drowsydetect/internal/config"
	"drowsydetect/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEyeAspectRatio(t *testing.T) {
	tests := []struct {
		name string
		eye  []Point
		want float64
	}{
		{
			name: "open eye",
			eye: []Point{
				{0, 0}, {1, 1}, {3, 1}, {4, 0}, {3, -1}, {1, -1},
			},
			// A = 2, B = 2, C = 4 -> (2+2)/(2*4)
			want: 0.5,
		},
		{
			name: "narrow eye at threshold",
			eye: []Point{
				{0, 0}, {1, 0.5}, {3, 0.5}, {4, 0}, {3, -0.5}, {1, -0.5},
			},
			// A = 1, B = 1, C = 4
			want: 0.25,
		},
		{
			name: "rotated eye",
			eye: []Point{
				{0, 0}, {0, 3}, {2, 2}, {3, 4}, {2, 2}, {4, 0},
			},
			// A = |(0,3)-(4,0)| = 5, B = 0, C = |(0,0)-(3,4)| = 5
			want: 0.5,
		},
		{
			name: "degenerate horizontal axis",
			eye: []Point{
				{2, 0}, {1, 1}, {3, 1}, {2, 0}, {3, -1}, {1, -1},
			},
			want: 0,
		},
		{
			name: "too few points",
			eye:  []Point{{0, 0}, {1, 1}, {2, 2}},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EyeAspectRatio(tt.eye)
			if !almostEqual(got, tt.want) {
				t.Errorf("EyeAspectRatio() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMouthAspectRatio(t *testing.T) {
	// Only positions 0, 2, 4, 6, 8 and 10 enter the formula; the rest are
	// filler contour points.
	mouth := []Point{
		{0, 0},   // 0: left corner
		{2, 1},   // 1
		{4, 3},   // 2: upper
		{5, 3},   // 3
		{6, 2},   // 4: upper inner
		{8, 1},   // 5
		{10, 0},  // 6: right corner
		{8, -1},  // 7
		{6, -2},  // 8: lower inner
		{5, -3},  // 9
		{4, -3},  // 10: lower
		{2, -1},  // 11
	}
	// A = |(4,3)-(4,-3)| = 6, B = |(6,2)-(6,-2)| = 4, C = 10
	if got := MouthAspectRatio(mouth); !almostEqual(got, 0.5) {
		t.Errorf("MouthAspectRatio() = %v, want 0.5", got)
	}

	if got := MouthAspectRatio(mouth[:10]); got != 0 {
		t.Errorf("MouthAspectRatio() short input = %v, want 0", got)
	}

	degenerate := make([]Point, 12)
	copy(degenerate, mouth)
	degenerate[6] = degenerate[0]
	if got := MouthAspectRatio(degenerate); got != 0 {
		t.Errorf("MouthAspectRatio() degenerate = %v, want 0", got)
	}
}

func TestExtractPoints(t *testing.T) {
	landmarks := make([]models.Landmark, 468)
	landmarks[33] = models.Landmark{X: 0.105, Y: 0.509}
	landmarks[133] = models.Landmark{X: 0.300, Y: 0.500}

	pts, err := ExtractPoints(landmarks, []int{33, 133}, 100, 100)
	if err != nil {
		t.Fatalf("ExtractPoints() error = %v", err)
	}
	// Pixel coordinates truncate, they do not round.
	if pts[0] != (Point{10, 50}) {
		t.Errorf("pts[0] = %v, want {10 50}", pts[0])
	}
	if pts[1] != (Point{30, 50}) {
		t.Errorf("pts[1] = %v, want {30 50}", pts[1])
	}

	if _, err := ExtractPoints(landmarks[:100], config.MouthIndices, 100, 100); err != ErrTooFewLandmarks {
		t.Errorf("ExtractPoints() short set error = %v, want ErrTooFewLandmarks", err)
	}
}
