package handlers

import (
	"log"
	"sync"
)

// Observer получатель живого потока данных. Возврат ошибки из
// WriteMessage трактуется как обрыв соединения.
type Observer interface {
	WriteMessage(data []byte) error
}

// ConnectionManager ведёт множество подключённых наблюдателей и
// рассылает им каждое живое событие. Рассылка глобальная и не зависит
// от состояния сессий.
type ConnectionManager struct {
	mu        sync.RWMutex
	observers map[Observer]struct{}
}

// NewConnectionManager создает новый менеджер подключений
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		observers: make(map[Observer]struct{}),
	}
}

// Register добавляет наблюдателя, повторная регистрация безвредна
func (cm *ConnectionManager) Register(obs Observer) {
	cm.mu.Lock()
	cm.observers[obs] = struct{}{}
	total := len(cm.observers)
	cm.mu.Unlock()

	log.Printf("📱 Клиент подключен. Всего: %d", total)
}

// Unregister удаляет наблюдателя, отсутствующий игнорируется
func (cm *ConnectionManager) Unregister(obs Observer) {
	cm.mu.Lock()
	if _, ok := cm.observers[obs]; ok {
		delete(cm.observers, obs)
	}
	total := len(cm.observers)
	cm.mu.Unlock()

	log.Printf("📱 Клиент отключен. Всего: %d", total)
}

// ClientCount возвращает количество подключённых наблюдателей
func (cm *ConnectionManager) ClientCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.observers)
}

// Broadcast доставляет сообщение всем наблюдателям. Отправка идёт по
// снимку множества вне блокировки; наблюдатели с ошибкой отправки
// снимаются с регистрации после обхода — неудачная доставка одному
// не мешает остальным.
func (cm *ConnectionManager) Broadcast(message []byte) {
	cm.mu.RLock()
	snapshot := make([]Observer, 0, len(cm.observers))
	for obs := range cm.observers {
		snapshot = append(snapshot, obs)
	}
	cm.mu.RUnlock()

	var broken []Observer
	for _, obs := range snapshot {
		if err := obs.WriteMessage(message); err != nil {
			broken = append(broken, obs)
		}
	}

	for _, obs := range broken {
		cm.Unregister(obs)
	}
}
