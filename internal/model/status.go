package model

import "time"

// StatusReport is the ephemeral output of one estimation run.
type StatusReport struct {
	PercentRemaining float64 // clamped to [0, 100]
	RemainingGrams   float64 // reported value, override-adjusted when applied
	CalculatedGrams  float64 // accumulator value before any override
	DailyConsumption float64 // grams/day over the trailing analysis window
	DaysLeft         float64 // projected, with safety margin
	DaysUnbounded    bool    // true when no consumption was observed
	LastRefill       time.Time
	RefillDetected   bool // a refill fired during this run
	OverrideApplied  bool
	EventsProcessed  int
	GeneratedAt      time.Time
}
