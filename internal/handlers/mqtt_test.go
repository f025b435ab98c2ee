package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMQTTProcessor(store SessionStore) (*MQTTStreamProcessor, *SessionManager, *ConnectionManager) {
	sm := NewSessionManager()
	cm := NewConnectionManager()
	p := NewMQTTStreamProcessor(sm, cm, store)
	return p, sm, cm
}

func TestMQTTEventRouting(t *testing.T) {
	store := newFakeStore()
	p, sm, cm := newTestMQTTProcessor(store)
	defer p.Stop()

	obs := &fakeObserver{}
	cm.Register(obs)

	p.processEvent(&deviceEvent{deviceID: "ESP32_003", kind: "start"})
	p.processEvent(&deviceEvent{
		deviceID: "ESP32_003",
		kind:     "data",
		payload:  []byte(`{"bpm":68,"ir":61000,"ac":7}`),
	})

	info := sm.GetSessionInfo("ESP32_003")
	require.NotNil(t, info)
	assert.Equal(t, 1, info.Beats)

	// Удар ретранслирован наблюдателям живого потока
	require.Len(t, obs.received, 1)
	assert.Contains(t, string(obs.received[0]), `"type":"heartbeat"`)
	assert.Contains(t, string(obs.received[0]), `"device_id":"ESP32_003"`)

	p.processEvent(&deviceEvent{deviceID: "ESP32_003", kind: "stop"})
	require.Len(t, store.saved, 1)
	assert.Equal(t, "ESP32_003", store.saved[0].DeviceID)
	assert.Nil(t, sm.GetSessionInfo("ESP32_003"))
}

func TestMQTTMalformedPayloadDropped(t *testing.T) {
	store := newFakeStore()
	p, sm, _ := newTestMQTTProcessor(store)
	defer p.Stop()

	p.processEvent(&deviceEvent{deviceID: "ESP32_001", kind: "data", payload: []byte(`{битый`)})

	assert.Nil(t, sm.GetSessionInfo("ESP32_001"))
}

func TestMQTTTopicParsing(t *testing.T) {
	store := newFakeStore()
	p, _, _ := newTestMQTTProcessor(store)
	defer p.Stop()

	// Неверный формат топика отбрасывается без паники
	p.HandleIncomingMQTT("heartbeat/слишком/много/частей", []byte(`{}`))
	p.HandleIncomingMQTT("heartbeat", []byte(`{}`))

	assert.Empty(t, store.saved)
}
