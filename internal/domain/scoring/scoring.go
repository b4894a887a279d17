// Package scoring turns a pixel accuracy and the player's effort into the
// integer score shown on the leaderboards.
package scoring

import "math"

// Score formula constants.
const (
	// DefaultTargetChars applies when a challenge sets no target length.
	DefaultTargetChars = 200
	// BonusThreshold is the accuracy a render must reach to earn any
	// length bonus.
	BonusThreshold = 99.5

	maxBase         = 600
	maxBonus        = 400
	penaltyPerHint  = 50
	percent         = 100
	noAccuracyScore = 0
)

// Input carries everything the formula needs for one submission.
type Input struct {
	// Accuracy is a percentage, normally in [0, 100].
	Accuracy     float64
	CharsWritten int
	HintsUsed    int
	// TargetChars is the CSS length that earns the full bonus. Values <= 0
	// fall back to DefaultTargetChars.
	TargetChars int
}

// Calculate returns the score for in. The result is never negative.
//
// A render with zero accuracy scores zero no matter what else is true.
// Otherwise the score is a linear base of 600 points at full accuracy,
// plus a bonus of up to 400 points for short CSS that only applies at
// BonusThreshold accuracy or above, minus 50 points per hint. The total is
// rounded half away from zero and floored at zero. Inputs are taken as
// given: accuracy above 100 or negative hint counts flow straight through
// the formula.
func Calculate(in Input) int {
	if in.Accuracy == 0 || math.IsNaN(in.Accuracy) {
		return noAccuracyScore
	}

	// Multiply before dividing so that values like 99.75 stay exact.
	base := maxBase * in.Accuracy / percent
	total := base + float64(Bonus(in.Accuracy, in.CharsWritten, in.TargetChars)) - float64(Penalty(in.HintsUsed))

	return max(0, int(math.Round(total)))
}

// Bonus returns the length bonus for a render of the given accuracy.
// Every character over target costs one bonus point.
func Bonus(accuracy float64, chars, targetChars int) int {
	if accuracy < BonusThreshold {
		return 0
	}
	if targetChars <= 0 {
		targetChars = DefaultTargetChars
	}
	if chars <= targetChars {
		return maxBonus
	}
	return max(0, maxBonus-(chars-targetChars))
}

// Penalty returns the points deducted for the hints a player revealed.
func Penalty(hints int) int {
	return hints * penaltyPerHint
}
