package database

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marsel23xxx/api-heartbeat/internal/models"
)

// SessionStore хранит итоги сессий в PostgreSQL
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore создает хранилище поверх подключения к БД
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

// SaveSummary сохраняет итог сессии и возвращает его идентификатор
func (s *SessionStore) SaveSummary(summary *models.HeartbeatSession) (uuid.UUID, error) {
	if summary.ID == uuid.Nil {
		summary.ID = uuid.New()
	}

	if err := s.db.Create(summary).Error; err != nil {
		return uuid.Nil, fmt.Errorf("не удалось сохранить сессию в БД: %w", err)
	}
	return summary.ID, nil
}

// AttachAudio прикрепляет аудиозапись к уже сохранённой сессии
func (s *SessionStore) AttachAudio(sessionID uuid.UUID, audio []byte) error {
	result := s.db.Model(&models.HeartbeatSession{}).
		Where("id = ?", sessionID).
		Update("audio_data", audio)

	if result.Error != nil {
		return fmt.Errorf("не удалось сохранить аудио: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
