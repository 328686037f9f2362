package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theluke/petsafe-smartfeed/internal/model"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "data", "state.json"))
	require.NoError(t, err)
	return s
}

func TestLoad_MissingFile(t *testing.T) {
	s := newTestStore(t)
	st := s.Load()
	assert.False(t, st.Known())
	assert.True(t, st.LastProcessed.IsZero())
	assert.True(t, st.LastRefill.IsZero())
}

func TestLoad_CorruptFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path, []byte("{not json"), 0644))

	st := s.Load()
	assert.False(t, st.Known(), "corrupt state degrades to defaults")
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	sensorA := 3000.0
	sensorB := 2000.0
	in := &model.EstimatorState{
		RemainingGrams: 1234.5,
		LastProcessed:  time.Date(2025, 6, 15, 8, 30, 0, 0, time.UTC),
		LastRefill:     time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
		LastSensorA:    &sensorA,
		LastSensorB:    &sensorB,
	}
	require.NoError(t, s.Save(in))

	out := s.Load()
	assert.Equal(t, 1234.5, out.RemainingGrams)
	assert.True(t, out.LastProcessed.Equal(in.LastProcessed))
	assert.True(t, out.LastRefill.Equal(in.LastRefill))
	require.NotNil(t, out.LastSensorA)
	assert.Equal(t, 3000.0, *out.LastSensorA)
	require.NotNil(t, out.LastSensorB)
	assert.Equal(t, 2000.0, *out.LastSensorB)
	assert.False(t, out.UpdatedAt.IsZero())
}

func TestLoad_NegativeRemainingIsUnknown(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path, []byte(`{"remaining_grams": -42}`), 0644))

	st := s.Load()
	assert.Equal(t, model.UnknownGrams, st.RemainingGrams)
	assert.False(t, st.Known())
}

func TestReset(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(&model.EstimatorState{RemainingGrams: 100}))
	require.NoError(t, s.Reset())

	st := s.Load()
	assert.False(t, st.Known())

	// Resetting again is fine.
	require.NoError(t, s.Reset())
}
