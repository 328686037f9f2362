package recorder

import (
	"time"

	"github.com/theluke/petsafe-smartfeed/internal/model"
)

// RunSnapshot holds the outcome of one estimation run.
type RunSnapshot struct {
	RunID  string
	Report *model.StatusReport
}

// FeedEvent records one dispensed portion batch.
type FeedEvent struct {
	Time     time.Time
	Portions float64
	Grams    float64
	Source   string
}

// RefillEvent records a detected reservoir refill.
type RefillEvent struct {
	Time       time.Time
	DetectedAt time.Time
}

// Recorder persists run history for later analysis.
type Recorder interface {
	RecordRun(snap *RunSnapshot) error
	RecordFeed(evt *FeedEvent) error
	RecordRefill(evt *RefillEvent) error
	Close() error
}
