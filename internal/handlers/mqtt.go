// internal/handlers/mqtt.go - вторичный канал приёма данных с устройств
package handlers

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/marsel23xxx/api-heartbeat/internal/models"
)

// MQTTTopicFilter подписка на все устройства и виды сообщений:
// heartbeat/{device_id}/{data|start|stop}
const MQTTTopicFilter = "heartbeat/+/+"

// MQTTStreamProcessor принимает события устройств из MQTT и направляет
// их в тот же реестр сессий и рассылку, что и WebSocket-диспетчер
type MQTTStreamProcessor struct {
	sessionManager *SessionManager
	connections    *ConnectionManager
	store          SessionStore

	dataChannel chan *deviceEvent

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type deviceEvent struct {
	deviceID string
	kind     string // data | start | stop
	payload  []byte
}

// NewMQTTStreamProcessor создает и запускает процессор MQTT-потока
func NewMQTTStreamProcessor(sessionManager *SessionManager, connections *ConnectionManager, store SessionStore) *MQTTStreamProcessor {
	ctx, cancel := context.WithCancel(context.Background())

	processor := &MQTTStreamProcessor{
		sessionManager: sessionManager,
		connections:    connections,
		store:          store,
		dataChannel:    make(chan *deviceEvent, 1000),
		ctx:            ctx,
		cancel:         cancel,
	}

	processor.wg.Add(1)
	go processor.dataWorker()

	log.Println("🚀 MQTT Stream Processor запущен")
	return processor
}

// HandleIncomingMQTT главный обработчик MQTT сообщений
func (p *MQTTStreamProcessor) HandleIncomingMQTT(topic string, payload []byte) {
	// Парсинг топика: heartbeat/{device_id}/{kind}
	parts := strings.Split(topic, "/")
	if len(parts) != 3 {
		log.Printf("⚠️ Неверный формат топика: %s", topic)
		return
	}

	event := &deviceEvent{
		deviceID: parts[1],
		kind:     parts[2],
		payload:  payload,
	}
	if event.deviceID == "" || event.deviceID == "+" {
		event.deviceID = models.DefaultDeviceID
	}

	select {
	case p.dataChannel <- event:
	default:
		log.Printf("⚠️ Канал данных переполнен, пропускаем сообщение от %s", event.deviceID)
	}
}

// dataWorker обрабатывает входящие события
func (p *MQTTStreamProcessor) dataWorker() {
	defer p.wg.Done()

	for {
		select {
		case event := <-p.dataChannel:
			p.processEvent(event)
		case <-p.ctx.Done():
			log.Println("🛑 MQTT data worker остановлен")
			return
		}
	}
}

// processEvent направляет одно событие устройства
func (p *MQTTStreamProcessor) processEvent(event *deviceEvent) {
	switch event.kind {
	case "start":
		p.sessionManager.StartSession(event.deviceID)

	case "data":
		var msg models.StreamMessage
		if err := json.Unmarshal(event.payload, &msg); err != nil {
			log.Printf("❌ Ошибка парсинга MQTT payload: %v", err)
			return
		}

		p.sessionManager.AddBeat(event.deviceID, msg.BPM, msg.IR, msg.AC)

		// Ретрансляция наблюдателям в формате WebSocket-канала
		msg.Type = models.MsgHeartbeat
		msg.DeviceID = event.deviceID
		if data, err := json.Marshal(&msg); err == nil {
			p.connections.Broadcast(data)
		}

	case "stop":
		summary := p.sessionManager.EndSession(event.deviceID)
		if summary == nil {
			return
		}
		sessionID, err := p.store.SaveSummary(summary)
		if err != nil {
			log.Printf("❌ Ошибка сохранения сессии %s: %v", event.deviceID, err)
			return
		}
		log.Printf("✅ Сессия сохранена в БД: %s", sessionID)

	default:
		log.Printf("⚠️ Неизвестный вид MQTT сообщения: %s", event.kind)
	}
}

// Subscribe подписывает процессор на топики устройств
func (p *MQTTStreamProcessor) Subscribe(client mqtt.Client, qos byte) error {
	handler := func(client mqtt.Client, msg mqtt.Message) {
		p.HandleIncomingMQTT(msg.Topic(), msg.Payload())
	}

	token := client.Subscribe(MQTTTopicFilter, qos, handler)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}

	log.Printf("MQTT подписка оформлена: %s", MQTTTopicFilter)
	return nil
}

// Stop останавливает процессор
func (p *MQTTStreamProcessor) Stop() {
	log.Println("🛑 Остановка MQTT Stream Processor...")
	p.cancel()
	p.wg.Wait()
	log.Println("✅ MQTT Stream Processor остановлен")
}
