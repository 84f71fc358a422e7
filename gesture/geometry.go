package gesture

import (
	"math"

	"github.com/camden-git/photowall/models"
)

// Distance is the Euclidean distance between a and b.
func Distance(a, b models.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Angle is the direction from center to p in radians.
func Angle(center, p models.Point) float64 {
	return math.Atan2(p.Y-center.Y, p.X-center.X)
}

// ResizeScale scales startScale by the ratio of the current to the starting
// pointer distance from the card center, clamped to the model bounds. A zero
// starting distance has no ratio and leaves startScale unchanged.
func ResizeScale(startScale, startDistance, currentDistance float64) float64 {
	if startDistance <= 0 || math.IsNaN(startDistance) || math.IsNaN(currentDistance) {
		return models.ClampScale(startScale)
	}
	return models.ClampScale(startScale * currentDistance / startDistance)
}

// RotationDelta is the signed angle in degrees swept around center by a pointer
// moving from start to current. The raw atan2 difference is used; no unwrapping
// is applied, so a pass across the negative x axis shows up as a ±360 jump
// that renders identically.
func RotationDelta(center, start, current models.Point) float64 {
	return (Angle(center, current) - Angle(center, start)) * 180 / math.Pi
}
