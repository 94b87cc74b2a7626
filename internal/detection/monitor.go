package detection

// ConditionMonitor is a consecutive-frame debounce counter. The counter
// increments while the observed condition holds, resets to zero the frame
// the condition clears, and the monitor is active from the frame the
// counter reaches the threshold.
type ConditionMonitor struct {
	threshold int
	count     int
}

func NewConditionMonitor(threshold int) *ConditionMonitor {
	return &ConditionMonitor{threshold: threshold}
}

// Observe feeds one frame's condition and reports whether the monitor is
// active after this frame.
func (m *ConditionMonitor) Observe(hit bool) bool {
	if hit {
		m.count++
	} else {
		m.count = 0
	}
	return m.Active()
}

func (m *ConditionMonitor) Active() bool {
	return m.count >= m.threshold
}

func (m *ConditionMonitor) Count() int {
	return m.count
}

func (m *ConditionMonitor) Reset() {
	m.count = 0
}
