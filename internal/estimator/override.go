package estimator

import (
	"log"
	"math"
	"time"

	"github.com/theluke/petsafe-smartfeed/internal/model"
)

// overrideRemaining re-derives a conservative remaining estimate when the
// feeder itself currently reports low food. It anchors on the first low-food
// alert within the lookback window and counts consumption dispensed since
// then against a fixed baseline. The result is for reporting only and never
// reaches persisted state.
func (e *Engine) overrideRemaining(sorted []model.Event, now time.Time) float64 {
	cutoff := now.Add(-e.params.LowFoodLookback)

	alertTime := now
	found := false
	for _, ev := range sorted {
		if ev.Time.Before(cutoff) {
			continue
		}
		if ev.ReportsLow != nil && *ev.ReportsLow {
			alertTime = ev.Time
			found = true
			log.Printf("[INFO] first low-food alert in history at %s", ev.Time.Format(time.RFC3339))
			break
		}
	}
	if !found {
		// Conservative: the alert may be newer than the history we have.
		log.Printf("[WARN] feeder reports low food but no alert found within %.0fh lookback, assuming it just fired",
			e.params.LowFoodLookback.Hours())
	}

	var consumed float64
	for _, ev := range sorted {
		if ev.Time.After(alertTime) && ev.IsFeed() {
			consumed += ev.Portions * e.params.PortionWeightGrams
		}
	}

	remaining := math.Max(0, e.params.LowFoodBaselineGrams-consumed)
	log.Printf("[INFO] low-food override: %.1fg consumed since alert, reporting %.1fg (baseline %.1fg)",
		consumed, remaining, e.params.LowFoodBaselineGrams)
	return remaining
}
