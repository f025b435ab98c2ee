package models

import "time"

// DefaultDeviceID подставляется, если устройство не указало device_id
const DefaultDeviceID = "ESP32_001"

// Типы входящих сообщений потока
const (
	MsgSessionStart   = "session_start"
	MsgHeartbeat      = "heartbeat"
	MsgSessionEnd     = "session_end"
	MsgGetSessionInfo = "get_session_info"
)

// StreamMessage входящее сообщение от устройства или клиента
type StreamMessage struct {
	Type     string  `json:"type"`
	DeviceID string  `json:"device_id"`
	BPM      float64 `json:"bpm"`
	IR       int     `json:"ir"` // амплитуда ИК-сигнала
	AC       int     `json:"ac"` // сырое значение AC
}

// Device возвращает device_id сообщения с учётом значения по умолчанию
func (m *StreamMessage) Device() string {
	if m.DeviceID == "" {
		return DefaultDeviceID
	}
	return m.DeviceID
}

// SessionInfo текущее состояние активной сессии (для мониторинга)
type SessionInfo struct {
	Active   bool    `json:"active"`
	Duration int     `json:"duration"`
	Beats    int     `json:"beats"`
	AvgBPM   float64 `json:"avg_bpm"`
	MinBPM   float64 `json:"min_bpm,omitempty"`
	MaxBPM   float64 `json:"max_bpm,omitempty"`
}

// SessionStartedResponse подтверждение начала сессии
type SessionStartedResponse struct {
	Type      string    `json:"type"`
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SavedSummary краткая сводка сохранённой сессии
type SavedSummary struct {
	TotalBeats int     `json:"total_beats"`
	AvgBPM     float64 `json:"avg_bpm"`
	Duration   int     `json:"duration"`
}

// SessionSavedResponse подтверждение сохранения сессии
type SessionSavedResponse struct {
	Type      string       `json:"type"`
	SessionID string       `json:"session_id"`
	Summary   SavedSummary `json:"summary"`
}

// SessionInfoResponse ответ на запрос состояния сессии
type SessionInfoResponse struct {
	Type string       `json:"type"`
	Data *SessionInfo `json:"data"`
}
