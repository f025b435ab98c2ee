// internal/handlers/ws.go - диспетчер потока сообщений устройства
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/marsel23xxx/api-heartbeat/internal/models"
)

// SessionStore внешнее хранилище итогов сессий
type SessionStore interface {
	SaveSummary(summary *models.HeartbeatSession) (uuid.UUID, error)
	AttachAudio(sessionID uuid.UUID, audio []byte) error
}

// StreamConn транспорт одного подключения: чтение блокирует до
// следующего сообщения, ошибка чтения или записи означает обрыв
type StreamConn interface {
	Observer
	ReadMessage() ([]byte, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Клиенты — Android приложение и ESP32, Origin не проверяем
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn обёртка над gorilla-соединением с сериализацией записи:
// в сокет пишут и цикл диспетчера, и рассылка из других соединений
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// StreamDispatcher читает события с соединения устройства, направляет
// их в реестр сессий и рассылку и отвечает подтверждениями
type StreamDispatcher struct {
	sessionManager *SessionManager
	connections    *ConnectionManager
	store          SessionStore
}

// NewStreamDispatcher создает новый диспетчер потока
func NewStreamDispatcher(sessionManager *SessionManager, connections *ConnectionManager, store SessionStore) *StreamDispatcher {
	return &StreamDispatcher{
		sessionManager: sessionManager,
		connections:    connections,
		store:          store,
	}
}

// HandleWebSocket обработчик WebSocket-подключения для gin
func (d *StreamDispatcher) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ Ошибка апгрейда WebSocket: %v", err)
		return
	}
	defer conn.Close()

	d.Serve(&wsConn{conn: conn})
}

// Serve обслуживает соединение до обрыва: каждое входящее сообщение
// разбирается и маршрутизируется, битые сообщения отбрасываются без
// разрыва соединения
func (d *StreamDispatcher) Serve(conn StreamConn) {
	d.connections.Register(conn)

	// Привязка устройства к соединению: последний device_id,
	// встреченный в сообщениях, для автосохранения при обрыве
	boundDevice := ""

	defer func() {
		d.connections.Unregister(conn)
		d.autoSave(boundDevice)
	}()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg models.StreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Println("❌ Получен невалидный JSON")
			continue
		}

		switch msg.Type {
		case models.MsgSessionStart:
			boundDevice = msg.Device()
			d.sessionManager.StartSession(boundDevice)
			d.reply(conn, models.SessionStartedResponse{
				Type:      "session_started",
				DeviceID:  boundDevice,
				Timestamp: time.Now().UTC(),
			})

		case models.MsgHeartbeat:
			boundDevice = msg.Device()
			// Сначала учёт, потом рассылка: наблюдатель, увидевший
			// событие, при запросе состояния увидит и этот удар
			d.sessionManager.AddBeat(boundDevice, msg.BPM, msg.IR, msg.AC)
			d.connections.Broadcast(data)

		case models.MsgSessionEnd:
			boundDevice = ""
			d.endSession(conn, msg.Device())

		case models.MsgGetSessionInfo:
			if info := d.sessionManager.GetSessionInfo(msg.Device()); info != nil {
				d.reply(conn, models.SessionInfoResponse{
					Type: "session_info",
					Data: info,
				})
			}

		default:
			log.Printf("⚠️ Неизвестный тип сообщения: %q", msg.Type)
		}
	}
}

// endSession завершает сессию, сохраняет итог и подтверждает клиенту
func (d *StreamDispatcher) endSession(conn StreamConn, deviceID string) {
	summary := d.sessionManager.EndSession(deviceID)
	if summary == nil {
		return
	}

	sessionID, err := d.store.SaveSummary(summary)
	if err != nil {
		log.Printf("❌ Ошибка сохранения сессии %s: %v", deviceID, err)
		return
	}

	log.Printf("✅ Сессия сохранена в БД: %s", sessionID)
	d.reply(conn, models.SessionSavedResponse{
		Type:      "session_saved",
		SessionID: sessionID.String(),
		Summary: models.SavedSummary{
			TotalBeats: summary.TotalBeats,
			AvgBPM:     summary.AvgBPM,
			Duration:   summary.DurationSeconds,
		},
	})
}

// autoSave добросохраняет сессию устройства при обрыве соединения.
// Ошибка записи логируется, итог теряется — повторов нет.
func (d *StreamDispatcher) autoSave(deviceID string) {
	if deviceID == "" {
		return
	}

	summary := d.sessionManager.EndSession(deviceID)
	if summary == nil {
		return
	}

	log.Printf("💾 Автосохранение сессии для %s", deviceID)
	sessionID, err := d.store.SaveSummary(summary)
	if err != nil {
		log.Printf("❌ Автосохранение не удалось: %v", err)
		return
	}
	log.Printf("✅ Автосохранена сессия %s", sessionID)
}

// reply отправляет ответ в соединение; ошибка отправки означает, что
// клиент ушёл, и проявится на следующем чтении
func (d *StreamDispatcher) reply(conn StreamConn, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("❌ Ошибка сериализации ответа: %v", err)
		return
	}
	if err := conn.WriteMessage(data); err != nil {
		log.Printf("⚠️ Не удалось отправить ответ клиенту: %v", err)
	}
}
