package model

import "time"

// MessageKind classifies a normalized telemetry message.
type MessageKind string

const (
	KindFeedDone MessageKind = "FEED_DONE"
	KindOther    MessageKind = "OTHER"
)

// FeedSource indicates what triggered a dispense.
type FeedSource string

const (
	SourceScheduled FeedSource = "SCHEDULED"
	SourceManual    FeedSource = "MANUAL"
	SourceUnknown   FeedSource = "UNKNOWN"
)

// Event is one normalized telemetry message. Immutable once built by the
// normalizer. Sensor readings and the low-food flag are optional; nil means
// the payload did not carry them.
type Event struct {
	Time       time.Time
	Kind       MessageKind
	Portions   float64 // dispensed portions, 0 when absent or non-positive
	Source     FeedSource
	SensorA    *float64 // raw infrared reading 1
	SensorB    *float64 // raw infrared reading 2
	ReportsLow *bool    // payload's own is_food_low flag
}

// IsFeed reports whether the event is a completed dispense with a positive
// portion count.
func (e Event) IsFeed() bool {
	return e.Kind == KindFeedDone && e.Portions > 0
}

// HasSensors reports whether both infrared readings are present.
func (e Event) HasSensors() bool {
	return e.SensorA != nil && e.SensorB != nil
}
