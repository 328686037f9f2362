package collector

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/theluke/petsafe-smartfeed/internal/model"
)

// SaveRaw writes fetched messages to the local cache so rate-limited and
// dry runs can work offline.
func SaveRaw(path string, msgs []RawMessage) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal raw messages: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadRaw reads the message cache. Missing or malformed content yields an
// empty slice, never an error: an empty batch is a valid estimator input.
func LoadRaw(path string) []RawMessage {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[WARN] read raw cache %s: %v", path, err)
		}
		return nil
	}
	var msgs []RawMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		log.Printf("[WARN] raw cache %s malformed: %v, ignoring", path, err)
		return nil
	}
	return msgs
}

// CacheFetcher serves the local message cache instead of the live API.
// Used by dry runs; there is no live feeder status, so the low-food
// override path stays off.
type CacheFetcher struct {
	Path string
}

func (c *CacheFetcher) Name() string { return "cache" }

func (c *CacheFetcher) FetchFeeders() ([]model.Feeder, error) {
	log.Printf("[INFO] dry run: no live feeder status available")
	return nil, nil
}

func (c *CacheFetcher) FetchMessages(_ string, _ int) ([]RawMessage, error) {
	return LoadRaw(c.Path), nil
}
