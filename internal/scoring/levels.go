package scoring

import "github.com/terra-clan/maturity-engine/internal/models"

// Thresholds are the exclusive lower bounds of levels 2 through 5
var Thresholds = [4]float64{20, 40, 60, 80}

var levels = [5]models.MaturityLevel{
	{Level: 1, Name: "Initial", Description: "Ad-hoc, manual processes"},
	{Level: 2, Name: "Developing", Description: "Some automation, inconsistent"},
	{Level: 3, Name: "Defined", Description: "Standardized, documented"},
	{Level: 4, Name: "Managed", Description: "Metrics-driven, comprehensive automation"},
	{Level: 5, Name: "Optimizing", Description: "Industry-leading, continuous improvement"},
}

// LevelFor classifies a 0-100 score. Each threshold must be strictly
// exceeded, so 20.00 is level 1 and 20.01 is level 2.
func LevelFor(score float64) int {
	level := 1
	for i, t := range Thresholds {
		if score > t {
			level = i + 2
		}
	}
	return level
}

// Level returns the definition of a maturity level, clamping out-of-range values
func Level(n int) models.MaturityLevel {
	if n < 1 {
		n = 1
	}
	if n > len(levels) {
		n = len(levels)
	}
	return levels[n-1]
}

// Levels returns all maturity levels in ascending order
func Levels() []models.MaturityLevel {
	out := make([]models.MaturityLevel, len(levels))
	copy(out, levels[:])
	return out
}
