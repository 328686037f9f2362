package collector

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theluke/petsafe-smartfeed/internal/model"
)

func rawMsg(createdAt, msgType, payload string) RawMessage {
	return RawMessage{
		CreatedAt:   createdAt,
		MessageType: msgType,
		Payload:     json.RawMessage(payload),
	}
}

func TestNormalize_FeedDoneObjectPayload(t *testing.T) {
	events := Normalize([]RawMessage{
		rawMsg("2025-06-15 08:30:00", "FEED_DONE", `{"amount": 2, "source": "schedule"}`),
	})
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, model.KindFeedDone, ev.Kind)
	assert.Equal(t, 2.0, ev.Portions)
	assert.Equal(t, model.SourceScheduled, ev.Source)
	assert.Equal(t, time.Date(2025, 6, 15, 8, 30, 0, 0, time.UTC), ev.Time)
	assert.Nil(t, ev.SensorA)
	assert.Nil(t, ev.ReportsLow)
}

func TestNormalize_StringPayload(t *testing.T) {
	// The API sometimes double-encodes the payload as a JSON string.
	events := Normalize([]RawMessage{
		rawMsg("2025-06-15 08:30:00", "FEED_DONE",
			`"{\"amount\": 1, \"source\": \"manual_feed\", \"sensorReading1Infrared\": 24000, \"sensorReading2Infrared\": 23000}"`),
	})
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, 1.0, ev.Portions)
	assert.Equal(t, model.SourceManual, ev.Source)
	require.NotNil(t, ev.SensorA)
	require.NotNil(t, ev.SensorB)
	assert.Equal(t, 24000.0, *ev.SensorA)
	assert.Equal(t, 23000.0, *ev.SensorB)
}

func TestNormalize_DropsBadTimestamps(t *testing.T) {
	events := Normalize([]RawMessage{
		rawMsg("not-a-date", "FEED_DONE", `{"amount": 1}`),
		rawMsg("", "FEED_DONE", `{"amount": 1}`),
		rawMsg("2025-06-15 08:30:00", "FEED_DONE", `{"amount": 1}`),
	})
	// Bad records are dropped, the batch survives.
	require.Len(t, events, 1)
	assert.Equal(t, 1.0, events[0].Portions)
}

func TestNormalize_GarbagePayloadIsEmpty(t *testing.T) {
	events := Normalize([]RawMessage{
		rawMsg("2025-06-15 08:30:00", "FEED_DONE", `"plain text, not JSON"`),
		rawMsg("2025-06-15 09:00:00", "LOW_FOOD", `{"is_food_low": true}`),
		rawMsg("2025-06-15 10:00:00", "FEED_DONE", `42`),
	})
	require.Len(t, events, 3)

	assert.Equal(t, 0.0, events[0].Portions)
	assert.Equal(t, model.SourceUnknown, events[0].Source)

	assert.Equal(t, model.KindOther, events[1].Kind)
	require.NotNil(t, events[1].ReportsLow)
	assert.True(t, *events[1].ReportsLow)

	assert.Equal(t, 0.0, events[2].Portions)
}

func TestNormalize_NegativeAmountIgnored(t *testing.T) {
	events := Normalize([]RawMessage{
		rawMsg("2025-06-15 08:30:00", "FEED_DONE", `{"amount": -3}`),
	})
	require.Len(t, events, 1)
	assert.Equal(t, 0.0, events[0].Portions)
	assert.False(t, events[0].IsFeed())
}

func TestNormalize_SensorPairPresence(t *testing.T) {
	events := Normalize([]RawMessage{
		rawMsg("2025-06-15 08:30:00", "OTHER", `{"sensorReading1Infrared": 3000}`),
	})
	require.Len(t, events, 1)
	assert.False(t, events[0].HasSensors())
	require.NotNil(t, events[0].SensorA)
	assert.Nil(t, events[0].SensorB)
}
