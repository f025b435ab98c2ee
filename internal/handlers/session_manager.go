// internal/handlers/session_manager.go
package handlers

import (
	"log"
	"sync"

	"github.com/marsel23xxx/api-heartbeat/internal/models"
)

// SessionManager управляет жизненным циклом сессий мониторинга:
// не более одной активной сессии на устройство
type SessionManager struct {
	sessions     map[string]*SessionState
	sessionsLock sync.RWMutex
}

// NewSessionManager создает новый менеджер сессий
func NewSessionManager() *SessionManager {
	log.Println("Session Manager инициализирован")
	return &SessionManager{
		sessions: make(map[string]*SessionState),
	}
}

// StartSession запускает новую сессию для устройства. Существующая
// незавершённая сессия молча заменяется — в лог пишется предупреждение,
// чтобы потеря данных была видна в эксплуатации.
func (sm *SessionManager) StartSession(deviceID string) *SessionState {
	sm.sessionsLock.Lock()
	defer sm.sessionsLock.Unlock()

	if prev := sm.sessions[deviceID]; prev != nil {
		log.Printf("⚠️ Перезапуск сессии для %s: несохранённая сессия (%d ударов) отброшена",
			deviceID, prev.Info().Beats)
	}

	session := NewSessionState(deviceID)
	sm.sessions[deviceID] = session

	log.Printf("🟢 Запущена сессия для устройства %s", deviceID)
	return session
}

// AddBeat учитывает удар в сессии устройства. Если сессии нет,
// она создаётся автоматически — удар никогда не отбрасывается
// из-за отсутствия явного session_start.
func (sm *SessionManager) AddBeat(deviceID string, bpm float64, ir, ac int) {
	sm.sessionsLock.RLock()
	session := sm.sessions[deviceID]
	sm.sessionsLock.RUnlock()

	if session == nil {
		sm.sessionsLock.Lock()
		if session = sm.sessions[deviceID]; session == nil {
			session = NewSessionState(deviceID)
			sm.sessions[deviceID] = session
			log.Printf("✅ Автоматически создана сессия для устройства %s", deviceID)
		}
		sm.sessionsLock.Unlock()
	}

	session.RecordBeat(bpm, ir, ac)
}

// GetSessionInfo возвращает состояние активной сессии, nil если её нет
func (sm *SessionManager) GetSessionInfo(deviceID string) *models.SessionInfo {
	sm.sessionsLock.RLock()
	session := sm.sessions[deviceID]
	sm.sessionsLock.RUnlock()

	if session == nil {
		return nil
	}
	return session.Info()
}

// EndSession завершает сессию устройства и возвращает итог.
// nil означает "нечего сохранять": сессии не было либо в ней нет
// валидных данных. После вызова устройство отсутствует в реестре.
func (sm *SessionManager) EndSession(deviceID string) *models.HeartbeatSession {
	sm.sessionsLock.Lock()
	session := sm.sessions[deviceID]
	delete(sm.sessions, deviceID)
	sm.sessionsLock.Unlock()

	if session == nil {
		log.Printf("⚠️ Нет активной сессии для %s", deviceID)
		return nil
	}

	summary := session.Finalize()
	if summary == nil {
		log.Printf("⚠️ Сессия %s без валидных данных, не сохраняем", deviceID)
		return nil
	}

	log.Printf("🔴 Завершена сессия %s: %d ударов, %dс, средний BPM %.2f",
		deviceID, summary.TotalBeats, summary.DurationSeconds, summary.AvgBPM)
	return summary
}

// ActiveSessionCount возвращает количество активных сессий
func (sm *SessionManager) ActiveSessionCount() int {
	sm.sessionsLock.RLock()
	defer sm.sessionsLock.RUnlock()
	return len(sm.sessions)
}
