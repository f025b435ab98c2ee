package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// HeartbeatSession итоговая запись завершённой сессии мониторинга
type HeartbeatSession struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	DeviceID string    `json:"device_id" gorm:"type:varchar(100);not null;index;default:'ESP32_001'"`

	// Метаданные сессии
	SessionStart time.Time  `json:"session_start" gorm:"not null;index"`
	SessionEnd   *time.Time `json:"session_end" gorm:"index"`

	// Статистика BPM
	AvgBPM float64 `json:"avg_bpm" gorm:"column:avg_bpm"`
	MinBPM float64 `json:"min_bpm" gorm:"column:min_bpm"`
	MaxBPM float64 `json:"max_bpm" gorm:"column:max_bpm"`

	TotalBeats      int `json:"total_beats" gorm:"default:0"`
	DurationSeconds int `json:"duration_seconds"`

	// Качество сигнала
	AvgIRValue    float64 `json:"avg_ir_value" gorm:"column:avg_ir_value"`
	SignalQuality float64 `json:"signal_quality"` // 0-100%

	// Децимированная форма сигнала (JSON, точка каждые 10 ударов)
	WaveformSample string `json:"waveform_sample,omitempty" gorm:"type:text"`

	// Аудиозапись, прикрепляется отдельным запросом после сохранения
	AudioData []byte `json:"-" gorm:"type:bytea"`
}

func (HeartbeatSession) TableName() string {
	return "heartbeat_sessions"
}

// WaveformPoints разбирает сохранённую форму сигнала
func (s *HeartbeatSession) WaveformPoints() ([]WaveformPoint, error) {
	if s.WaveformSample == "" {
		return []WaveformPoint{}, nil
	}
	var points []WaveformPoint
	if err := json.Unmarshal([]byte(s.WaveformSample), &points); err != nil {
		return nil, err
	}
	return points, nil
}

// WaveformPoint одна децимированная точка формы сигнала
type WaveformPoint struct {
	BeatNumber int       `json:"beat_number"`
	BPM        float64   `json:"bpm"`
	IR         int       `json:"ir"`
	AC         int       `json:"ac"`
	Timestamp  time.Time `json:"timestamp"`
}
