// internal/game/scoring.go
//
// Needle scoring. Pure, no state: the distance between needle and target falls
// into one of three inclusive bands (4/3/2 points) or scores nothing.

package game

import "math"

// ZoneSize is the angular width in degrees of each scoring band.
// The bands are fixed for every game; clients draw them from the same constant.
const ZoneSize = 6.0

// Inclusive distance thresholds for each score tier.
const (
	BullseyeThreshold = ZoneSize     // 4 points
	InnerThreshold    = ZoneSize * 2 // 3 points
	OuterThreshold    = ZoneSize * 3 // 2 points
)

// Angular ranges, in degrees either side of centre.
const (
	NeedleRange = 90.0
	TargetRange = 80.0
)

// Score maps the distance between the needle and the target to a tier of 4, 3, 2 or 0.
func Score(needleAngle, targetAngle float64) int {
	diff := math.Abs(needleAngle - targetAngle)
	switch {
	case diff <= BullseyeThreshold:
		return 4
	case diff <= InnerThreshold:
		return 3
	case diff <= OuterThreshold:
		return 2
	default:
		return 0
	}
}
