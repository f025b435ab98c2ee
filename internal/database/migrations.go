// internal/database/migrations.go
package database

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/marsel23xxx/api-heartbeat/internal/models"
)

// RunMigrations выполняет миграции базы данных
func RunMigrations(db *gorm.DB) error {
	log.Println("🔄 Запуск миграций базы данных...")

	err := db.AutoMigrate(
		&models.HeartbeatSession{},
	)
	if err != nil {
		return fmt.Errorf("ошибка миграции: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("ошибка создания индексов: %w", err)
	}

	log.Println("✅ Миграции выполнены успешно")
	return nil
}

// createIndexes создает дополнительные индексы
func createIndexes(db *gorm.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_heartbeat_sessions_start_desc ON heartbeat_sessions(session_start DESC)",
		"CREATE INDEX IF NOT EXISTS idx_heartbeat_sessions_device_start ON heartbeat_sessions(device_id, session_start DESC)",
		"CREATE INDEX IF NOT EXISTS idx_heartbeat_sessions_with_audio ON heartbeat_sessions(device_id) WHERE audio_data IS NOT NULL",
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			log.Printf("⚠️ Не удалось создать индекс: %s, ошибка: %v", indexSQL, err)
		}
	}

	return nil
}
