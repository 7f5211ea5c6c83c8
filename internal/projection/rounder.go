package projection

import "math"

// PercentRounder rounds a stream of shares so that the integers handed out
// always add up to the rounded running total. A group of shares summing to
// 100 therefore yields integers summing to exactly 100.
type PercentRounder struct {
	sum float64
}

// Round returns the integer share for value.
func (r *PercentRounder) Round(value float64) int {
	previous := r.sum
	r.sum += value
	return int(math.Round(r.sum) - math.Round(previous))
}

// Reset starts a new independent group.
func (r *PercentRounder) Reset() {
	r.sum = 0
}
