package handlers

import (
	"encoding/json"
	"time"

	"github.com/marsel23xxx/api-heartbeat/internal/models"
	"github.com/marsel23xxx/api-heartbeat/internal/stats"
)

const (
	// Точка формы сигнала снимается каждый waveformEveryBeats удар
	waveformEveryBeats = 10
	// Удерживается не более waveformCapacity точек (~5000 последних ударов)
	waveformCapacity = 500
)

// WaveformSampler снимает децимированную форму сигнала сессии:
// каждая десятая точка, скользящее окно по хвосту сессии
type WaveformSampler struct {
	samples *stats.Ring[models.WaveformPoint]
}

func NewWaveformSampler() *WaveformSampler {
	return &WaveformSampler{
		samples: stats.NewRing[models.WaveformPoint](waveformCapacity),
	}
}

// Observe вызывается на каждый удар, точка снимается только на кратных 10
func (w *WaveformSampler) Observe(beatNumber int, bpm float64, ir, ac int, ts time.Time) {
	if beatNumber%waveformEveryBeats != 0 {
		return
	}

	w.samples.Push(models.WaveformPoint{
		BeatNumber: beatNumber,
		BPM:        round2(bpm),
		IR:         ir,
		AC:         ac,
		Timestamp:  ts,
	})
}

// Count возвращает количество удерживаемых точек
func (w *WaveformSampler) Count() int {
	return w.samples.Len()
}

// Export сериализует удержанные точки в порядке снятия
func (w *WaveformSampler) Export() (string, error) {
	data, err := json.Marshal(w.samples.Values())
	if err != nil {
		return "", err
	}
	return string(data), nil
}
