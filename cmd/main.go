// main.go - Heartbeat Monitor (session-based)
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/marsel23xxx/api-heartbeat/configs"
	"github.com/marsel23xxx/api-heartbeat/internal/database"
	"github.com/marsel23xxx/api-heartbeat/internal/handlers"
)

func main() {
	log.Println(" === HEARTBEAT MONITOR v2.0 (Session-Based) ===")

	// 1. Загрузка конфигурации
	cfg := configs.LoadConfig()
	log.Printf("Конфигурация загружена: DB=%s:%s, HTTP=:%s",
		cfg.Database.Host, cfg.Database.Port, cfg.App.Port)

	// 2. Инициализация базы данных
	db, err := database.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Ошибка инициализации БД: %v", err)
	}
	defer database.CloseDatabase(db)

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Ошибка миграций: %v", err)
	}

	// 3. Создание основных компонентов
	store := database.NewSessionStore(db)
	sessionManager := handlers.NewSessionManager()
	connections := handlers.NewConnectionManager()
	dispatcher := handlers.NewStreamDispatcher(sessionManager, connections, store)

	// 4. Вторичный канал приёма: MQTT (опционально)
	var mqttProcessor *handlers.MQTTStreamProcessor
	var mqttClient mqtt.Client
	if cfg.MQTT.Enabled {
		mqttProcessor = handlers.NewMQTTStreamProcessor(sessionManager, connections, store)

		mqttClient, err = initMQTTWithAuth(cfg.MQTT)
		if err != nil {
			log.Fatalf("Ошибка MQTT: %v", err)
		}
		defer mqttClient.Disconnect(250)

		if err := mqttProcessor.Subscribe(mqttClient, byte(cfg.MQTT.QoS)); err != nil {
			log.Fatalf("Ошибка подписки MQTT: %v", err)
		}
		log.Printf("MQTT клиент подключён к %s", cfg.MQTT.Broker)
	}

	// 5. Запуск HTTP сервера: REST API + WebSocket поток
	restAPI := handlers.NewRESTAPIServer(db, sessionManager, connections, dispatcher, store)
	router := restAPI.SetupRoutes()

	server := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	go func() {
		log.Printf("🚀 HTTP сервер запущен на :%s (WebSocket: /ws)", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Ошибка HTTP сервера: %v", err)
		}
	}()

	log.Println("Сервис запущен → Ctrl+C для остановки")
	log.Println("Поток данных: устройство → диспетчер → реестр сессий + рассылка")
	log.Println("Итоги сессий: реестр → PostgreSQL")

	// 6. Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ Ошибка остановки HTTP сервера: %v", err)
	}

	if mqttProcessor != nil {
		mqttProcessor.Stop()
	}

	log.Println("Сервис полностью остановлен")
}

// initMQTTWithAuth инициализирует MQTT клиент с аутентификацией
func initMQTTWithAuth(mqttCfg configs.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(mqttCfg.Broker)
	opts.SetClientID(mqttCfg.ClientID)

	if mqttCfg.Username != "" && mqttCfg.Password != "" {
		opts.SetUsername(mqttCfg.Username)
		opts.SetPassword(mqttCfg.Password)
		log.Printf("MQTT аутентификация: пользователь %s", mqttCfg.Username)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.OnConnect = func(c mqtt.Client) {
		log.Println("MQTT подключен")
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.Printf("MQTT соединение потеряно: %v", err)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT подключение не удалось: %w", token.Error())
	}

	return client, nil
}
