package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marsel23xxx/api-heartbeat/internal/models"
)

// RESTAPIServer обрабатывает REST API запросы
type RESTAPIServer struct {
	db             *gorm.DB
	sessionManager *SessionManager
	connections    *ConnectionManager
	dispatcher     *StreamDispatcher
	store          SessionStore
}

// SessionListItem сессия в списке, без формы сигнала и аудио
type SessionListItem struct {
	ID            string     `json:"id"`
	DeviceID      string     `json:"device_id"`
	Start         time.Time  `json:"start"`
	End           *time.Time `json:"end"`
	Duration      int        `json:"duration"`
	TotalBeats    int        `json:"total_beats"`
	AvgBPM        float64    `json:"avg_bpm"`
	MinBPM        float64    `json:"min_bpm"`
	MaxBPM        float64    `json:"max_bpm"`
	SignalQuality float64    `json:"signal_quality"`
	HasAudio      bool       `json:"has_audio"`
}

// SessionDetailResponse полная информация о сессии, включая форму сигнала
type SessionDetailResponse struct {
	ID              string                 `json:"id"`
	DeviceID        string                 `json:"device_id"`
	Start           time.Time              `json:"start"`
	End             *time.Time             `json:"end"`
	Duration        int                    `json:"duration"`
	TotalBeats      int                    `json:"total_beats"`
	AvgBPM          float64                `json:"avg_bpm"`
	MinBPM          float64                `json:"min_bpm"`
	MaxBPM          float64                `json:"max_bpm"`
	AvgIRValue      float64                `json:"avg_ir_value"`
	SignalQuality   float64                `json:"signal_quality"`
	WaveformSamples []models.WaveformPoint `json:"waveform_samples"`
	HasAudio        bool                   `json:"has_audio"`
}

// ErrorResponse стандартный ответ об ошибке
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NewRESTAPIServer создает новый REST API сервер
func NewRESTAPIServer(
	db *gorm.DB,
	sessionManager *SessionManager,
	connections *ConnectionManager,
	dispatcher *StreamDispatcher,
	store SessionStore,
) *RESTAPIServer {
	return &RESTAPIServer{
		db:             db,
		sessionManager: sessionManager,
		connections:    connections,
		dispatcher:     dispatcher,
		store:          store,
	}
}

// SetupRoutes настраивает маршруты REST API
func (api *RESTAPIServer) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Middleware
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	// CORS для Android-клиента
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	// Поток устройств и наблюдателей
	r.GET("/ws", api.dispatcher.HandleWebSocket)

	r.GET("/", api.Root)
	r.GET("/health", api.HealthCheck)
	r.GET("/stats", api.GetStats)

	sessions := r.Group("/sessions")
	{
		sessions.GET("", api.GetSessions)
		sessions.GET("/:session_id", api.GetSessionDetail)
		sessions.POST("/:session_id/audio", api.UploadAudio)
		sessions.DELETE("", api.DeleteAllSessions)
	}

	return r
}

// Root сводка о сервисе и его маршрутах
func (api *RESTAPIServer) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Heartbeat Monitor API - Session Based",
		"version": "2.0",
		"endpoints": gin.H{
			"websocket":      "/ws",
			"sessions":       "/sessions",
			"session_detail": "/sessions/{session_id}",
			"upload_audio":   "/sessions/{session_id}/audio",
			"health":         "/health",
			"stats":          "/stats",
		},
	})
}

// HealthCheck состояние сервиса и базы данных
func (api *RESTAPIServer) HealthCheck(c *gin.Context) {
	dbStatus := "OK"
	if sqlDB, err := api.db.DB(); err != nil {
		dbStatus = "Error: " + err.Error()
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "Error: " + err.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":             "OK",
		"database":           dbStatus,
		"active_connections": api.connections.ClientCount(),
		"active_sessions":    api.sessionManager.ActiveSessionCount(),
	})
}

// GetSessions список последних сессий
func (api *RESTAPIServer) GetSessions(c *gin.Context) {
	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}

	query := api.db.Model(&models.HeartbeatSession{})
	if deviceID := c.Query("device_id"); deviceID != "" {
		query = query.Where("device_id = ?", deviceID)
	}

	var sessions []models.HeartbeatSession
	if err := query.Order("session_start DESC").Limit(limit).Find(&sessions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Не удалось получить сессии",
			Details: err.Error(),
		})
		return
	}

	items := make([]SessionListItem, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, SessionListItem{
			ID:            s.ID.String(),
			DeviceID:      s.DeviceID,
			Start:         s.SessionStart,
			End:           s.SessionEnd,
			Duration:      s.DurationSeconds,
			TotalBeats:    s.TotalBeats,
			AvgBPM:        s.AvgBPM,
			MinBPM:        s.MinBPM,
			MaxBPM:        s.MaxBPM,
			SignalQuality: s.SignalQuality,
			HasAudio:      len(s.AudioData) > 0,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"total":    len(items),
		"sessions": items,
	})
}

// GetSessionDetail полная информация о сессии, включая форму сигнала
func (api *RESTAPIServer) GetSessionDetail(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Неверный ID сессии"})
		return
	}

	var session models.HeartbeatSession
	if err := api.db.First(&session, "id = ?", sessionID).Error; err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Сессия не найдена"})
		return
	}

	waveform, err := session.WaveformPoints()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Не удалось разобрать форму сигнала",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SessionDetailResponse{
		ID:              session.ID.String(),
		DeviceID:        session.DeviceID,
		Start:           session.SessionStart,
		End:             session.SessionEnd,
		Duration:        session.DurationSeconds,
		TotalBeats:      session.TotalBeats,
		AvgBPM:          session.AvgBPM,
		MinBPM:          session.MinBPM,
		MaxBPM:          session.MaxBPM,
		AvgIRValue:      session.AvgIRValue,
		SignalQuality:   session.SignalQuality,
		WaveformSamples: waveform,
		HasAudio:        len(session.AudioData) > 0,
	})
}

// UploadAudio прикрепляет аудиозапись к сохранённой сессии
func (api *RESTAPIServer) UploadAudio(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Неверный ID сессии"})
		return
	}

	fileHeader, err := c.FormFile("audio_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Файл audio_file не найден в запросе",
			Details: err.Error(),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Не удалось открыть файл",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	audioBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Не удалось прочитать файл",
			Details: err.Error(),
		})
		return
	}

	if err := api.store.AttachAudio(sessionID, audioBytes); err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Сессия не найдена"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Не удалось сохранить аудио",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"session_id": sessionID.String(),
		"audio_size": len(audioBytes),
		"filename":   fileHeader.Filename,
	})
}

// GetStats общая статистика по всем сессиям
func (api *RESTAPIServer) GetStats(c *gin.Context) {
	var totalSessions int64
	api.db.Model(&models.HeartbeatSession{}).Count(&totalSessions)

	type aggregate struct {
		TotalBeats int64
		AvgBPM     float64
	}
	var agg aggregate
	api.db.Model(&models.HeartbeatSession{}).
		Select("COALESCE(SUM(total_beats),0) AS total_beats, COALESCE(AVG(avg_bpm),0) AS avg_bpm").
		Scan(&agg)

	c.JSON(http.StatusOK, gin.H{
		"total_sessions":       totalSessions,
		"total_beats_recorded": agg.TotalBeats,
		"average_bpm_overall":  round2(agg.AvgBPM),
		"active_sessions":      api.sessionManager.ActiveSessionCount(),
		"active_connections":   api.connections.ClientCount(),
	})
}

// DeleteAllSessions удаляет все сессии (только для тестирования)
func (api *RESTAPIServer) DeleteAllSessions(c *gin.Context) {
	result := api.db.Where("1 = 1").Delete(&models.HeartbeatSession{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Не удалось удалить сессии",
			Details: result.Error.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"deleted": result.RowsAffected,
	})
}
