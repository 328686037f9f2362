package estimator

import (
	"time"

	"github.com/theluke/petsafe-smartfeed/internal/model"
)

const (
	analysisWindow = 7 * 24 * time.Hour
	safetyMargin   = 0.9
)

// dailyConsumption computes grams/day over the trailing analysis window.
// The span is the actual coverage of observed feeds, floored at one day so a
// single fresh feed does not explode the rate.
func (e *Engine) dailyConsumption(sorted []model.Event, now time.Time) float64 {
	cutoff := now.Add(-analysisWindow)

	var grams float64
	var first time.Time
	for _, ev := range sorted {
		if !ev.IsFeed() || !ev.Time.After(cutoff) {
			continue
		}
		grams += ev.Portions * e.params.PortionWeightGrams
		if first.IsZero() || ev.Time.Before(first) {
			first = ev.Time
		}
	}
	if first.IsZero() {
		return 0
	}

	days := now.Sub(first).Hours() / 24
	if days < 1 {
		days = 1
	}
	if days > analysisWindow.Hours()/24 {
		days = analysisWindow.Hours() / 24
	}
	return grams / days
}

// projectDaysLeft converts a remaining mass and daily rate into projected
// days of food, with a safety margin. A zero rate yields the unbounded
// sentinel instead of a division.
func projectDaysLeft(remainingGrams, dailyRate float64) (days float64, unbounded bool) {
	if dailyRate <= 0 {
		return 0, true
	}
	return remainingGrams / dailyRate * safetyMargin, false
}
