package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marsel23xxx/api-heartbeat/internal/models"
)

func TestWaveformSamplesEveryTenthBeat(t *testing.T) {
	w := NewWaveformSampler()
	now := time.Now().UTC()

	for beat := 1; beat <= 25; beat++ {
		w.Observe(beat, 72.345, 51000, 128, now)
	}

	require.Equal(t, 2, w.Count())

	exported, err := w.Export()
	require.NoError(t, err)

	var points []models.WaveformPoint
	require.NoError(t, json.Unmarshal([]byte(exported), &points))
	require.Len(t, points, 2)
	assert.Equal(t, 10, points[0].BeatNumber)
	assert.Equal(t, 20, points[1].BeatNumber)
	assert.Equal(t, 72.35, points[0].BPM) // округление до 2 знаков
	assert.Equal(t, 51000, points[0].IR)
	assert.Equal(t, 128, points[0].AC)
}

func TestWaveformCapacityKeepsMostRecent(t *testing.T) {
	w := NewWaveformSampler()
	now := time.Now().UTC()

	// 6000 ударов дают 600 точек, удерживаются последние 500
	for beat := 1; beat <= 6000; beat++ {
		w.Observe(beat, 70, 50000, 0, now)
	}

	require.Equal(t, 500, w.Count())

	exported, err := w.Export()
	require.NoError(t, err)

	var points []models.WaveformPoint
	require.NoError(t, json.Unmarshal([]byte(exported), &points))
	require.Len(t, points, 500)
	assert.Equal(t, 1010, points[0].BeatNumber)
	assert.Equal(t, 6000, points[499].BeatNumber)
}

func TestWaveformEmptyExport(t *testing.T) {
	w := NewWaveformSampler()

	exported, err := w.Export()
	require.NoError(t, err)
	assert.Equal(t, "[]", exported)
}
