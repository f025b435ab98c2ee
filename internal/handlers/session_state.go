package handlers

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marsel23xxx/api-heartbeat/internal/models"
	"github.com/marsel23xxx/api-heartbeat/internal/stats"
)

// SessionState состояние одной активной сессии устройства:
// счётчик ударов, скользящая статистика и форма сигнала
type SessionState struct {
	deviceID  string
	startTime time.Time

	mu        sync.Mutex
	beatCount int
	acc       *stats.Accumulator
	waveform  *WaveformSampler
}

// NewSessionState создает свежую сессию, startTime = сейчас
func NewSessionState(deviceID string) *SessionState {
	return &SessionState{
		deviceID:  deviceID,
		startTime: time.Now().UTC(),
		acc:       stats.NewAccumulator(),
		waveform:  NewWaveformSampler(),
	}
}

// RecordBeat учитывает один удар. Невалидный (неположительный) BPM
// увеличивает счётчик ударов, но не попадает в статистику.
func (s *SessionState) RecordBeat(bpm float64, ir, ac int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.beatCount++
	s.acc.ObserveRate(bpm)
	s.acc.ObserveAmplitude(ir)
	s.waveform.Observe(s.beatCount, bpm, ir, ac, time.Now().UTC())
}

// Info возвращает текущее состояние сессии, не изменяя его
func (s *SessionState) Info() *models.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := &models.SessionInfo{
		Active:   true,
		Duration: int(time.Since(s.startTime).Seconds()),
		Beats:    s.beatCount,
	}

	if snap, ok := s.acc.Snapshot(); ok {
		info.AvgBPM = round1(snap.Avg)
		info.MinBPM = round1(snap.Min)
		info.MaxBPM = round1(snap.Max)
	}

	return info
}

// Finalize подводит итог сессии. Сессия без единого удара или без
// валидных BPM итога не имеет — возвращается nil, чтобы в БД никогда
// не попадали записи с неопределённой статистикой.
func (s *SessionState) Finalize() *models.HeartbeatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.acc.Snapshot()
	if !ok || s.beatCount == 0 {
		return nil
	}

	waveformJSON, err := s.waveform.Export()
	if err != nil {
		// Marshal фиксированных структур не падает; на всякий случай
		// сохраняем сессию без формы сигнала
		waveformJSON = ""
	}

	now := time.Now().UTC()
	return &models.HeartbeatSession{
		ID:              uuid.New(),
		DeviceID:        s.deviceID,
		SessionStart:    s.startTime,
		SessionEnd:      &now,
		DurationSeconds: int(now.Sub(s.startTime).Seconds()),
		TotalBeats:      s.beatCount,
		AvgBPM:          round2(snap.Avg),
		MinBPM:          round2(snap.Min),
		MaxBPM:          round2(snap.Max),
		AvgIRValue:      round2(s.acc.AmplitudeMean()),
		SignalQuality:   round2(s.acc.QualityRatio(stats.QualityThreshold)),
		WaveformSample:  waveformJSON,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
