package collector

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theluke/petsafe-smartfeed/internal/model"
)

func testFeeder(thing string, low bool) model.Feeder {
	var f model.Feeder
	f.ThingName = thing
	f.IsFoodLow = low
	f.ConnectionStatus = 2
	return f
}

func TestCollect_LiveFetch(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "raw.json")
	mock := &MockFetcher{
		Feeders: []model.Feeder{testFeeder("feeder-1", true)},
		Messages: []RawMessage{
			{CreatedAt: "2025-06-15 08:30:00", MessageType: "FEED_DONE", Payload: json.RawMessage(`{"amount": 1}`)},
		},
	}
	col := NewCollector(mock, nil, cache, "feeder-1", 7)

	snap, err := col.Collect()
	require.NoError(t, err)
	require.NotNil(t, snap.Feeder)
	assert.Equal(t, "feeder-1", snap.Feeder.ThingName)
	require.NotNil(t, snap.FoodLow)
	assert.True(t, *snap.FoodLow)
	assert.Len(t, snap.Events, 1)
	assert.False(t, snap.FromCache)

	// A live fetch refreshes the cache.
	assert.NotNil(t, LoadRaw(cache))
}

func TestCollect_FallsBackToCache(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "raw.json")
	require.NoError(t, SaveRaw(cache, []RawMessage{
		{CreatedAt: "2025-06-15 08:30:00", MessageType: "FEED_DONE", Payload: json.RawMessage(`{"amount": 2}`)},
	}))

	mock := &MockFetcher{Err: errors.New("api down")}
	col := NewCollector(mock, nil, cache, "feeder-1", 7)

	snap, err := col.Collect()
	require.NoError(t, err)
	assert.True(t, snap.FromCache)
	assert.Nil(t, snap.FoodLow, "no live status when falling back")
	require.Len(t, snap.Events, 1)
	assert.Equal(t, 2.0, snap.Events[0].Portions)
}

func TestCollect_NoCacheNoLive(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "raw.json")
	mock := &MockFetcher{Err: errors.New("api down")}
	col := NewCollector(mock, nil, cache, "feeder-1", 7)

	_, err := col.Collect()
	assert.Error(t, err)
}

func TestCollect_GateTripsToCache(t *testing.T) {
	dir := t.TempDir()
	cache := filepath.Join(dir, "raw.json")
	require.NoError(t, SaveRaw(cache, []RawMessage{
		{CreatedAt: "2025-06-15 08:30:00", MessageType: "FEED_DONE", Payload: json.RawMessage(`{"amount": 1}`)},
	}))

	gate := NewCallGate(filepath.Join(dir, "last_call"), time.Minute)
	gate.Record()

	mock := &MockFetcher{Feeders: []model.Feeder{testFeeder("feeder-1", false)}}
	col := NewCollector(mock, gate, cache, "feeder-1", 7)

	snap, err := col.Collect()
	require.NoError(t, err)
	assert.True(t, snap.FromCache)
	assert.Len(t, snap.Events, 1)
}

func TestCollect_PicksConfiguredFeeder(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "raw.json")
	mock := &MockFetcher{
		Feeders: []model.Feeder{testFeeder("other", false), testFeeder("feeder-1", true)},
	}
	col := NewCollector(mock, nil, cache, "feeder-1", 7)

	snap, err := col.Collect()
	require.NoError(t, err)
	require.NotNil(t, snap.Feeder)
	assert.Equal(t, "feeder-1", snap.Feeder.ThingName)
}

func TestCollect_GateStampedAfterFeederFetch(t *testing.T) {
	dir := t.TempDir()
	cache := filepath.Join(dir, "raw.json")
	require.NoError(t, SaveRaw(cache, []RawMessage{
		{CreatedAt: "2025-06-15 08:30:00", MessageType: "FEED_DONE", Payload: json.RawMessage(`{"amount": 1}`)},
	}))

	gate := NewCallGate(filepath.Join(dir, "last_call"), time.Minute)
	mock := &MockFetcher{
		Feeders:     []model.Feeder{testFeeder("feeder-1", false)},
		MessagesErr: errors.New("history endpoint down"),
	}
	col := NewCollector(mock, gate, cache, "feeder-1", 7)

	snap, err := col.Collect()
	require.NoError(t, err)
	assert.True(t, snap.FromCache)

	// The feeders fetch hit the live API, so the next run must be gated
	// even though the history fetch failed.
	ok, _ := gate.Allow()
	assert.False(t, ok)
}

func TestCallGate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_call")
	gate := NewCallGate(path, time.Minute)

	ok, _ := gate.Allow()
	assert.True(t, ok, "fresh gate allows")

	gate.Record()
	ok, wait := gate.Allow()
	assert.False(t, ok, "immediate retry is gated")
	assert.Greater(t, wait, time.Duration(0))

	// An hour later the gate opens again.
	gate.now = func() time.Time { return time.Now().Add(time.Hour) }
	ok, _ = gate.Allow()
	assert.True(t, ok)
}

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "raw.json")
	msgs := make([]RawMessage, 3)
	for i := range msgs {
		msgs[i] = RawMessage{
			CreatedAt:   fmt.Sprintf("2025-06-15 08:3%d:00", i),
			MessageType: "FEED_DONE",
			Payload:     json.RawMessage(`{"amount": 1}`),
		}
	}
	require.NoError(t, SaveRaw(path, msgs))

	got := LoadRaw(path)
	require.Len(t, got, 3)
	assert.Equal(t, msgs[0].CreatedAt, got[0].CreatedAt)
}
