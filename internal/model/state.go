package model

import "time"

// UnknownGrams is the sentinel for "remaining mass never established".
const UnknownGrams = -1.0

// EstimatorState is the persisted record carried between runs. A zero
// LastRefill means "never". LastSensorA/B carry the most recent infrared
// pair across runs so refill detection has continuity without re-scanning
// history.
type EstimatorState struct {
	RemainingGrams float64   `json:"remaining_grams"`
	LastProcessed  time.Time `json:"last_processed_ts"`
	LastRefill     time.Time `json:"last_refill_ts"`
	LastSensorA    *float64  `json:"last_sensor_a,omitempty"`
	LastSensorB    *float64  `json:"last_sensor_b,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Known reports whether the remaining mass has ever been established.
func (s *EstimatorState) Known() bool {
	return s.RemainingGrams >= 0
}

// DefaultEstimatorState returns the state used when nothing has been
// persisted yet (or the state file is unreadable).
func DefaultEstimatorState() *EstimatorState {
	return &EstimatorState{RemainingGrams: UnknownGrams}
}
