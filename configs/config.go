// configs/config.go
package configs

import (
	"os"
	"strconv"
)

type Config struct {
	Database DatabaseConfig
	App      AppConfig
	MQTT     MQTTConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	TimeZone string
}

type AppConfig struct {
	Port     string // HTTP_PORT из .env
	LogLevel string
}

type MQTTConfig struct {
	Enabled  bool // MQTT_ENABLED — вторичный канал приёма с устройств
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      int
}

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() *Config {

	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "heartbeat_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			TimeZone: getEnv("DB_TIMEZONE", "UTC"),
		},
		App: AppConfig{
			Port:     getEnv("HTTP_PORT", "8001"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		MQTT: MQTTConfig{
			Enabled:  getEnvAsBool("MQTT_ENABLED", false),
			Broker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
			ClientID: getEnv("MQTT_CLIENT_ID", "heartbeat_monitor_service"),
			Username: getEnv("MQTT_USERNAME", ""),
			Password: getEnv("MQTT_PASSWORD", ""),
			QoS:      getEnvAsInt("MQTT_QOS", 1),
		},
	}
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает переменную окружения как int
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool получает переменную окружения как bool
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
