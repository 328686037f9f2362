package collector

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// CallGate enforces a minimum interval between live API calls by persisting
// the last call time to a file. The vendor API tolerates very little
// traffic; gated runs fall back to the message cache.
type CallGate struct {
	Path     string
	Interval time.Duration

	now func() time.Time
}

// NewCallGate creates a gate backed by the given timestamp file.
func NewCallGate(path string, interval time.Duration) *CallGate {
	return &CallGate{Path: path, Interval: interval, now: time.Now}
}

// Allow reports whether a live call may be made now, and if not, how long
// until the next one is permitted. An unreadable gate file allows the call.
func (g *CallGate) Allow() (bool, time.Duration) {
	data, err := os.ReadFile(g.Path)
	if err != nil {
		return true, 0
	}
	last, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		log.Printf("[WARN] unreadable call gate file %s: %v", g.Path, err)
		return true, 0
	}
	elapsed := g.now().Sub(time.Unix(int64(last), 0))
	if elapsed < g.Interval {
		return false, g.Interval - elapsed
	}
	return true, 0
}

// Record stamps the gate file with the current time.
func (g *CallGate) Record() {
	ts := fmt.Sprintf("%d", g.now().Unix())
	if err := os.WriteFile(g.Path, []byte(ts), 0644); err != nil {
		log.Printf("[WARN] write call gate file %s: %v", g.Path, err)
	}
}
