package presence

import "math"

// MoveThreshold is the distance in pixels, on either axis, a pointer must travel before the
// new position is sent.
const MoveThreshold = 5

// MoveThrottle decides which pointer positions are worth emitting.
type MoveThrottle struct {
	lastX, lastY float64
}

// Allow reports whether (x, y) differs from the last emitted position by more than the
// threshold and, if so, records it as emitted.
func (m *MoveThrottle) Allow(x, y float64) bool {
	if math.Abs(x-m.lastX) <= MoveThreshold && math.Abs(y-m.lastY) <= MoveThreshold {
		return false
	}
	m.lastX, m.lastY = x, y
	return true
}
