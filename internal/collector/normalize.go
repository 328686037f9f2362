package collector

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/theluke/petsafe-smartfeed/internal/model"
)

// The vendor API reports created_at as a naive UTC timestamp.
const timestampLayout = "2006-01-02 15:04:05"

// Normalize converts raw API messages into canonical events. Records with a
// missing or unparsable timestamp are dropped and logged; a bad record never
// fails the batch.
func Normalize(raws []RawMessage) []model.Event {
	events := make([]model.Event, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		ev, ok := normalizeOne(raw)
		if !ok {
			dropped++
			continue
		}
		events = append(events, ev)
	}
	if dropped > 0 {
		log.Printf("[WARN] dropped %d of %d messages with unparsable timestamps", dropped, len(raws))
	}
	return events
}

func normalizeOne(raw RawMessage) (model.Event, bool) {
	if raw.CreatedAt == "" {
		log.Printf("[WARN] skipping message without created_at")
		return model.Event{}, false
	}
	ts, err := time.ParseInLocation(timestampLayout, raw.CreatedAt, time.UTC)
	if err != nil {
		log.Printf("[WARN] skipping message with invalid created_at %q: %v", raw.CreatedAt, err)
		return model.Event{}, false
	}

	payload := decodePayload(raw.Payload)

	kind := model.KindOther
	if raw.MessageType == "FEED_DONE" {
		kind = model.KindFeedDone
	}

	ev := model.Event{
		Time:       ts,
		Kind:       kind,
		Source:     feedSource(payload),
		SensorA:    floatField(payload, "sensorReading1Infrared"),
		SensorB:    floatField(payload, "sensorReading2Infrared"),
		ReportsLow: boolField(payload, "is_food_low"),
	}
	if amount := floatField(payload, "amount"); amount != nil && *amount > 0 {
		ev.Portions = *amount
	}
	return ev, true
}

// decodePayload handles both payload shapes: a nested object, or a string
// containing JSON. Anything else decodes to an empty map.
func decodePayload(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "{") {
			if err := json.Unmarshal([]byte(s), &obj); err == nil {
				return obj
			}
		}
	}
	return nil
}

func feedSource(payload map[string]interface{}) model.FeedSource {
	src, ok := payload["source"].(string)
	if !ok || src == "" {
		return model.SourceUnknown
	}
	if src == "schedule" {
		return model.SourceScheduled
	}
	return model.SourceManual
}

func floatField(payload map[string]interface{}, key string) *float64 {
	v, ok := payload[key]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	}
	return nil
}

func boolField(payload map[string]interface{}, key string) *bool {
	v, ok := payload[key].(bool)
	if !ok {
		return nil
	}
	return &v
}
