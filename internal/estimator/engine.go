// Package estimator tracks the remaining food mass in the feeder reservoir
// from sparse telemetry: dispense events count down, sensor transitions
// detect refills, and the device's own coarse low-food flag reconciles the
// running estimate.
package estimator

import (
	"log"
	"math"
	"sort"
	"time"

	"github.com/theluke/petsafe-smartfeed/internal/model"
	"github.com/theluke/petsafe-smartfeed/internal/state"
)

// Params are the tunables for one feeder.
type Params struct {
	PortionWeightGrams   float64
	CapacityGrams        float64
	RefillThresholdA     float64
	RefillThresholdB     float64
	LowFoodBaselineGrams float64
	LowFoodLookback      time.Duration
}

// Engine runs one estimation pass over a batch of events. All I/O goes
// through the injected Store; the clock is injectable for tests.
type Engine struct {
	params Params
	store  state.Store
	now    func() time.Time
}

// New creates an Engine backed by the given store.
func New(params Params, store state.Store) *Engine {
	return &Engine{params: params, store: store, now: time.Now}
}

// RunResult carries the report plus the events actually applied this run.
type RunResult struct {
	Report    model.StatusReport
	Processed []model.Event // chronological, only events newer than the prior watermark
}

// Run ingests a batch of normalized events (any order), reconciles them
// against persisted state, persists the calculated result, and assembles the
// status report. deviceLow is the feeder's live low-food flag; nil means it
// could not be obtained and the override path is skipped.
func (e *Engine) Run(events []model.Event, deviceLow *bool) *RunResult {
	now := e.now().UTC()

	sorted := make([]model.Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	prev := e.store.Load()
	acc := e.accumulate(sorted, prev)

	// Persist the calculated value before any override logic so a reporting
	// correction can never leak into the running total.
	if err := e.store.Save(acc.state); err != nil {
		log.Printf("[ERROR] save estimator state: %v", err)
	}

	final := acc.calculated
	overrideApplied := false
	if deviceLow != nil && *deviceLow {
		final = e.overrideRemaining(sorted, now)
		overrideApplied = true
	}

	daily := e.dailyConsumption(sorted, now)
	daysLeft, unbounded := projectDaysLeft(final, daily)

	reported := math.Min(final, e.params.CapacityGrams)
	percent := 0.0
	if e.params.CapacityGrams > 0 {
		percent = reported / e.params.CapacityGrams * 100
	}
	percent = math.Max(0, math.Min(100, percent))

	return &RunResult{
		Report: model.StatusReport{
			PercentRemaining: percent,
			RemainingGrams:   reported,
			CalculatedGrams:  acc.calculated,
			DailyConsumption: daily,
			DaysLeft:         daysLeft,
			DaysUnbounded:    unbounded,
			LastRefill:       acc.state.LastRefill,
			RefillDetected:   acc.refillDetected,
			OverrideApplied:  overrideApplied,
			EventsProcessed:  len(acc.processed),
			GeneratedAt:      now,
		},
		Processed: acc.processed,
	}
}

// ResetFull marks the reservoir as physically refilled right now. Used by
// the manual reset command after topping the feeder up by hand.
func (e *Engine) ResetFull() error {
	now := e.now().UTC()
	return e.store.Save(&model.EstimatorState{
		RemainingGrams: e.params.CapacityGrams,
		LastProcessed:  now,
		LastRefill:     now,
	})
}

type accumulation struct {
	state          *model.EstimatorState
	calculated     float64 // post-pass value clamped to >= 0
	refillDetected bool
	processed      []model.Event
}

// accumulate walks events chronologically, applying refills and dispenses to
// the running total. Only events after the persisted watermark are applied,
// except when the state was never established: then every event is scanned
// so the bootstrap heuristic can anchor somewhere.
func (e *Engine) accumulate(sorted []model.Event, prev *model.EstimatorState) accumulation {
	remaining := prev.RemainingGrams
	lastProcessed := prev.LastProcessed
	lastRefill := prev.LastRefill
	prevA, prevB := prev.LastSensorA, prev.LastSensorB
	bootstrap := !prev.Known()

	acc := accumulation{}

	for _, ev := range sorted {
		if !bootstrap && !ev.Time.After(lastProcessed) {
			continue
		}

		if prevA != nil && prevB != nil && ev.HasSensors() {
			if e.isRefill(*prevA, *prevB, *ev.SensorA, *ev.SensorB) {
				log.Printf("[INFO] refill detected at %s, resetting to capacity %.0fg",
					ev.Time.Format(time.RFC3339), e.params.CapacityGrams)
				remaining = e.params.CapacityGrams
				lastRefill = ev.Time
				acc.refillDetected = true
				bootstrap = false
			}
		}
		if ev.SensorA != nil {
			prevA = ev.SensorA
		}
		if ev.SensorB != nil {
			prevB = ev.SensorB
		}

		if bootstrap {
			// Heuristic, not a measurement: with no baseline at all, assume
			// the reservoir was full at the first observed event.
			log.Printf("[WARN] no prior state, assuming full reservoir at %s", ev.Time.Format(time.RFC3339))
			remaining = e.params.CapacityGrams
			bootstrap = false
		}

		if ev.IsFeed() {
			dispensed := ev.Portions * e.params.PortionWeightGrams
			remaining -= dispensed
			log.Printf("[INFO] feed at %s: %.1f portions (%.1fg), level now %.1fg",
				ev.Time.Format(time.RFC3339), ev.Portions, dispensed, remaining)
		}

		lastProcessed = ev.Time
		acc.processed = append(acc.processed, ev)
	}

	if remaining < 0 && bootstrap {
		log.Printf("[WARN] could not establish a food baseline, reporting empty")
	}
	acc.calculated = math.Max(0, remaining)

	acc.state = &model.EstimatorState{
		RemainingGrams: acc.calculated,
		LastProcessed:  lastProcessed,
		LastRefill:     lastRefill,
		LastSensorA:    prevA,
		LastSensorB:    prevB,
	}
	return acc
}

// isRefill recognizes the reservoir being filled from near-empty: both
// sensors previously well below threshold and both now above it.
func (e *Engine) isRefill(prevA, prevB, curA, curB float64) bool {
	return prevA < 0.7*e.params.RefillThresholdA &&
		prevB < 0.7*e.params.RefillThresholdB &&
		curA > e.params.RefillThresholdA &&
		curB > e.params.RefillThresholdB
}
