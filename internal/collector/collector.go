package collector

import (
	"fmt"
	"log"
	"time"

	"github.com/theluke/petsafe-smartfeed/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Feeders     []model.Feeder
	Messages    []RawMessage
	Err         error // returned by both calls
	MessagesErr error // fails only the history fetch
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchFeeders() ([]model.Feeder, error) {
	return m.Feeders, m.Err
}

func (m *MockFetcher) FetchMessages(_ string, _ int) ([]RawMessage, error) {
	if m.MessagesErr != nil {
		return nil, m.MessagesErr
	}
	return m.Messages, m.Err
}

// Snapshot is one collection pass: the normalized event batch plus whatever
// live device status was obtainable.
type Snapshot struct {
	Events    []model.Event
	Raw       []RawMessage
	Feeder    *model.Feeder
	FoodLow   *bool // nil when live status was unavailable
	FromCache bool
}

// Collector orchestrates fetching feeder status and message history and
// normalizing the result. A tripped call gate or fetch failure degrades to
// the local cache rather than failing the run.
type Collector struct {
	Fetcher   Fetcher
	Gate      *CallGate
	CachePath string
	ThingName string
	Days      int
}

// NewCollector creates a new Collector. gate may be nil to disable rate
// limiting (dry runs).
func NewCollector(fetcher Fetcher, gate *CallGate, cachePath, thingName string, days int) *Collector {
	return &Collector{
		Fetcher:   fetcher,
		Gate:      gate,
		CachePath: cachePath,
		ThingName: thingName,
		Days:      days,
	}
}

// Collect gathers one snapshot. The returned snapshot may carry zero events
// (that is a valid estimator input); an error means not even the cache was
// usable for a live fetcher.
func (c *Collector) Collect() (*Snapshot, error) {
	snap := &Snapshot{}

	live := true
	if c.Gate != nil {
		if ok, wait := c.Gate.Allow(); !ok {
			log.Printf("[WARN] API call gate tripped, next call in %s, using cache", wait.Round(time.Second))
			live = false
		}
	}

	if live {
		feeders, err := c.Fetcher.FetchFeeders()
		if err != nil {
			log.Printf("[ERROR] fetch feeders: %v, falling back to cache", err)
			live = false
		} else {
			// The feeders call already hit the rate-sensitive API, so the
			// gate is stamped even if the history fetch fails below.
			if c.Gate != nil {
				c.Gate.Record()
			}
			if f := c.pickFeeder(feeders); f != nil {
				snap.Feeder = f
				low := f.IsFoodLow
				snap.FoodLow = &low
				log.Printf("[INFO] live feeder status: %s, connected=%v, food_low=%v", f.Name(), f.Connected(), low)
			}
		}
	}

	if live {
		raws, err := c.Fetcher.FetchMessages(c.ThingName, c.Days)
		if err != nil {
			log.Printf("[ERROR] fetch message history: %v, falling back to cache", err)
			live = false
		} else {
			snap.Raw = raws
			if c.Gate != nil {
				c.Gate.Record()
			}
			if c.Fetcher.Name() != "cache" && c.CachePath != "" {
				if err := SaveRaw(c.CachePath, raws); err != nil {
					log.Printf("[WARN] save raw cache: %v", err)
				}
			}
		}
	}

	if !live {
		snap.Raw = LoadRaw(c.CachePath)
		snap.FromCache = true
		if snap.Raw == nil && c.Fetcher.Name() != "cache" {
			return nil, fmt.Errorf("live fetch failed and no usable message cache at %s", c.CachePath)
		}
	}

	snap.Events = Normalize(snap.Raw)
	log.Printf("[INFO] collected %d events (%d raw, cache=%v)", len(snap.Events), len(snap.Raw), snap.FromCache)
	return snap, nil
}

func (c *Collector) pickFeeder(feeders []model.Feeder) *model.Feeder {
	if len(feeders) == 0 {
		return nil
	}
	for i := range feeders {
		if feeders[i].ThingName == c.ThingName {
			return &feeders[i]
		}
	}
	log.Printf("[WARN] feeder %s not found in account, using first of %d", c.ThingName, len(feeders))
	return &feeders[0]
}
