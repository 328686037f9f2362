package collector

import (
	"encoding/json"

	"github.com/theluke/petsafe-smartfeed/internal/model"
)

// RawMessage is one telemetry record as the vendor API returns it. The
// payload shape varies: sometimes a nested object, sometimes a JSON-encoded
// string, so it stays raw until the normalizer decodes it.
type RawMessage struct {
	CreatedAt   string          `json:"created_at"`
	MessageType string          `json:"message_type"`
	Payload     json.RawMessage `json:"payload"`
}

// Fetcher defines the interface for fetching feeder telemetry.
type Fetcher interface {
	FetchFeeders() ([]model.Feeder, error)
	FetchMessages(thingName string, days int) ([]RawMessage, error)
	Name() string
}
