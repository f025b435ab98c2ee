package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marsel23xxx/api-heartbeat/internal/models"
)

// scriptedConn отдаёт заранее заданные сообщения, затем имитирует обрыв
type scriptedConn struct {
	script [][]byte
	next   int
	sent   [][]byte
}

func (c *scriptedConn) ReadMessage() ([]byte, error) {
	if c.next >= len(c.script) {
		return nil, errors.New("соединение закрыто")
	}
	msg := c.script[c.next]
	c.next++
	return msg, nil
}

func (c *scriptedConn) WriteMessage(data []byte) error {
	c.sent = append(c.sent, data)
	return nil
}

// sentOfType возвращает отправленные сообщения данного типа
func (c *scriptedConn) sentOfType(t *testing.T, msgType string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, raw := range c.sent {
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		if m["type"] == msgType {
			out = append(out, m)
		}
	}
	return out
}

type fakeStore struct {
	saved   []*models.HeartbeatSession
	audio   map[uuid.UUID][]byte
	failure error
}

func newFakeStore() *fakeStore {
	return &fakeStore{audio: make(map[uuid.UUID][]byte)}
}

func (s *fakeStore) SaveSummary(summary *models.HeartbeatSession) (uuid.UUID, error) {
	if s.failure != nil {
		return uuid.Nil, s.failure
	}
	s.saved = append(s.saved, summary)
	return summary.ID, nil
}

func (s *fakeStore) AttachAudio(sessionID uuid.UUID, audio []byte) error {
	s.audio[sessionID] = audio
	return nil
}

func newTestDispatcher(store SessionStore) (*StreamDispatcher, *SessionManager, *ConnectionManager) {
	sm := NewSessionManager()
	cm := NewConnectionManager()
	return NewStreamDispatcher(sm, cm, store), sm, cm
}

func scriptJSON(msgs ...string) [][]byte {
	script := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		script = append(script, []byte(m))
	}
	return script
}

func TestDispatcherSessionFlow(t *testing.T) {
	store := newFakeStore()
	d, _, _ := newTestDispatcher(store)

	script := []string{`{"type":"session_start","device_id":"ESP32_007"}`}
	for i := 0; i < 25; i++ {
		script = append(script,
			fmt.Sprintf(`{"type":"heartbeat","device_id":"ESP32_007","bpm":%d,"ir":60000,"ac":5}`, 60+i%5))
	}
	script = append(script, `{"type":"session_end","device_id":"ESP32_007"}`)

	conn := &scriptedConn{script: scriptJSON(script...)}
	d.Serve(conn)

	started := conn.sentOfType(t, "session_started")
	require.Len(t, started, 1)
	assert.Equal(t, "ESP32_007", started[0]["device_id"])

	// Каждый heartbeat ретранслирован наблюдателям (в том числе отправителю)
	echoed := conn.sentOfType(t, "heartbeat")
	assert.Len(t, echoed, 25)

	saved := conn.sentOfType(t, "session_saved")
	require.Len(t, saved, 1)

	require.Len(t, store.saved, 1)
	summary := store.saved[0]
	assert.Equal(t, "ESP32_007", summary.DeviceID)
	assert.Equal(t, 25, summary.TotalBeats)
	assert.Equal(t, summary.ID.String(), saved[0]["session_id"])

	condensed := saved[0]["summary"].(map[string]any)
	assert.Equal(t, float64(25), condensed["total_beats"])
}

func TestDispatcherDefaultDeviceID(t *testing.T) {
	store := newFakeStore()
	d, sm, _ := newTestDispatcher(store)

	conn := &scriptedConn{script: scriptJSON(
		`{"type":"heartbeat","bpm":72,"ir":52000,"ac":1}`,
		`{"type":"get_session_info"}`,
	)}
	d.Serve(conn)

	infos := conn.sentOfType(t, "session_info")
	require.Len(t, infos, 1)

	// Отсутствующий device_id означает устройство по умолчанию;
	// сессия автосохранена при обрыве
	require.Len(t, store.saved, 1)
	assert.Equal(t, models.DefaultDeviceID, store.saved[0].DeviceID)
	assert.Nil(t, sm.GetSessionInfo(models.DefaultDeviceID))
}

func TestDispatcherMalformedMessageDropped(t *testing.T) {
	store := newFakeStore()
	d, sm, _ := newTestDispatcher(store)

	conn := &scriptedConn{script: scriptJSON(
		`{не json`,
		`{"type":"heartbeat","device_id":"ESP32_001","bpm":70,"ir":52000,"ac":1}`,
	)}
	d.Serve(conn)

	// Битое сообщение не разорвало цикл: следующий удар учтён
	require.Len(t, store.saved, 1)
	assert.Equal(t, 1, store.saved[0].TotalBeats)
	assert.Nil(t, sm.GetSessionInfo("ESP32_001"))
}

func TestDispatcherUnknownTypeDropped(t *testing.T) {
	store := newFakeStore()
	d, _, _ := newTestDispatcher(store)

	conn := &scriptedConn{script: scriptJSON(
		`{"type":"telemetry","device_id":"ESP32_001"}`,
		`{"type":"heartbeat","device_id":"ESP32_001","bpm":70,"ir":52000,"ac":1}`,
	)}
	d.Serve(conn)

	require.Len(t, store.saved, 1)
	assert.Equal(t, 1, store.saved[0].TotalBeats)
}

func TestDispatcherInfoForUnknownDeviceSilent(t *testing.T) {
	store := newFakeStore()
	d, _, _ := newTestDispatcher(store)

	conn := &scriptedConn{script: scriptJSON(
		`{"type":"get_session_info","device_id":"ESP32_404"}`,
	)}
	d.Serve(conn)

	assert.Empty(t, conn.sentOfType(t, "session_info"))
	assert.Empty(t, store.saved)
}

func TestDispatcherEndWithoutDataSilent(t *testing.T) {
	store := newFakeStore()
	d, _, _ := newTestDispatcher(store)

	conn := &scriptedConn{script: scriptJSON(
		`{"type":"session_start","device_id":"ESP32_001"}`,
		`{"type":"session_end","device_id":"ESP32_001"}`,
	)}
	d.Serve(conn)

	// Нечего сохранять — подтверждения нет, ошибки тоже
	assert.Empty(t, conn.sentOfType(t, "session_saved"))
	assert.Empty(t, store.saved)
}

func TestDispatcherAutoSaveOnDisconnect(t *testing.T) {
	store := newFakeStore()
	d, sm, _ := newTestDispatcher(store)

	conn := &scriptedConn{script: scriptJSON(
		`{"type":"session_start","device_id":"ESP32_001"}`,
		`{"type":"heartbeat","device_id":"ESP32_001","bpm":70,"ir":52000,"ac":1}`,
		`{"type":"heartbeat","device_id":"ESP32_001","bpm":71,"ir":52000,"ac":1}`,
	)}
	d.Serve(conn)

	require.Len(t, store.saved, 1)
	assert.Equal(t, 2, store.saved[0].TotalBeats)
	assert.Nil(t, sm.GetSessionInfo("ESP32_001"))
}

func TestDispatcherNoDoubleSaveAfterExplicitEnd(t *testing.T) {
	store := newFakeStore()
	d, _, _ := newTestDispatcher(store)

	conn := &scriptedConn{script: scriptJSON(
		`{"type":"heartbeat","device_id":"ESP32_001","bpm":70,"ir":52000,"ac":1}`,
		`{"type":"session_end","device_id":"ESP32_001"}`,
	)}
	d.Serve(conn)

	// Явное завершение уже сохранило итог, автосохранение не дублирует
	assert.Len(t, store.saved, 1)
}

func TestDispatcherPersistFailureKeepsConnection(t *testing.T) {
	store := newFakeStore()
	store.failure = errors.New("БД недоступна")
	d, _, _ := newTestDispatcher(store)

	conn := &scriptedConn{script: scriptJSON(
		`{"type":"heartbeat","device_id":"ESP32_001","bpm":70,"ir":52000,"ac":1}`,
		`{"type":"session_end","device_id":"ESP32_001"}`,
		`{"type":"get_session_info","device_id":"ESP32_001"}`,
	)}
	d.Serve(conn)

	// Итог потерян, подтверждения нет, но цикл продолжил работу
	assert.Empty(t, conn.sentOfType(t, "session_saved"))
	assert.Empty(t, store.saved)
}

func TestDispatcherUnregistersOnClose(t *testing.T) {
	store := newFakeStore()
	d, _, cm := newTestDispatcher(store)

	conn := &scriptedConn{}
	d.Serve(conn)

	assert.Equal(t, 0, cm.ClientCount())
}
