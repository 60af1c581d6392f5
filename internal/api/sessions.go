package api

import (
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/annel0/growdoro/internal/rewards"
	"github.com/annel0/growdoro/internal/session"
)

// SessionJSON — представление фокус-сессии в API.
type SessionJSON struct {
	ID               string     `json:"id"`
	DurationSec      int        `json:"duration_sec"`
	StartedAt        time.Time  `json:"started_at"`
	PausedAt         *time.Time `json:"paused_at,omitempty"`
	TotalPausedSec   int        `json:"total_paused_sec,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	RewardsClaimedAt *time.Time `json:"rewards_claimed_at,omitempty"`
}

func sessionToJSON(s *session.Session) SessionJSON {
	return SessionJSON{
		ID:               s.ID,
		DurationSec:      s.DurationSec,
		StartedAt:        s.StartedAt,
		PausedAt:         s.PausedAt,
		TotalPausedSec:   s.TotalPausedSec,
		CompletedAt:      s.CompletedAt,
		CancelledAt:      s.CancelledAt,
		RewardsClaimedAt: s.RewardsClaimedAt,
	}
}

// StartSessionRequest представляет запрос на старт фокус-сессии
type StartSessionRequest struct {
	DurationSec int `json:"duration_sec" binding:"required,min=60"`
}

// ClaimPackRequest представляет запрос на выдачу пака.
// SessionDuration используется, когда таймер считал клиент и сессия
// не была зарегистрирована на сервере.
type ClaimPackRequest struct {
	SessionID       string `json:"session_id" binding:"required"`
	SessionDuration int    `json:"session_duration"`
}

// handleStartSession регистрирует новую фокус-сессию
func (rs *RestServer) handleStartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	s := &session.Session{
		ID:          uuid.New().String(),
		Owner:       currentOwner(c),
		DurationSec: req.DurationSec,
		StartedAt:   time.Now(),
	}
	if err := rs.sessions.Create(c.Request.Context(), s); err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка создания сессии"})
		return
	}

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Сессия начата",
		Data:    sessionToJSON(s),
	})
}

// handleSessionTransition обрабатывает pause/resume/cancel/complete.
// Действие берётся из последнего сегмента пути.
func (rs *RestServer) handleSessionTransition(c *gin.Context) {
	owner := currentOwner(c)
	ctx := c.Request.Context()

	s, err := rs.sessions.GetByID(ctx, c.Param("id"))
	if err == session.ErrSessionNotFound || (err == nil && s.Owner != owner) {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Сессия не найдена"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка чтения сессии"})
		return
	}

	now := time.Now()
	switch path.Base(c.Request.URL.Path) {
	case "pause":
		err = s.Pause(now)
	case "resume":
		err = s.Resume(now)
	case "cancel":
		err = s.Cancel(now)
	case "complete":
		err = s.Complete(now)
	default:
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Неизвестное действие"})
		return
	}
	if err != nil {
		c.JSON(http.StatusConflict, GenericResponse{Success: false, Message: err.Error()})
		return
	}

	if err := rs.sessions.Save(ctx, s); err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка сохранения сессии"})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Состояние сессии обновлено",
		Data:    sessionToJSON(s),
	})
}

// handleListSessions возвращает последние сессии владельца
func (rs *RestServer) handleListSessions(c *gin.Context) {
	list, err := rs.sessions.ListByOwner(c.Request.Context(), currentOwner(c), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка чтения сессий"})
		return
	}

	out := make([]SessionJSON, 0, len(list))
	for _, s := range list {
		out = append(out, sessionToJSON(s))
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Сессии получены",
		Data:    out,
	})
}

// handleClaimPack выдаёт пак блоков за завершённую сессию
func (rs *RestServer) handleClaimPack(c *gin.Context) {
	var req ClaimPackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	owner := currentOwner(c)
	granted, err := rs.claims.Claim(c.Request.Context(), owner, req.SessionID, req.SessionDuration)
	switch err {
	case nil:
	case session.ErrSessionNotFound:
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Сессия не найдена"})
		return
	case session.ErrAlreadyClaimed:
		c.JSON(http.StatusConflict, GenericResponse{Success: false, Message: "Награды уже забраны"})
		return
	case session.ErrNotCompleted:
		c.JSON(http.StatusConflict, GenericResponse{Success: false, Message: "Сессия не завершена"})
		return
	case rewards.ErrOwnerMismatch:
		c.JSON(http.StatusForbidden, GenericResponse{Success: false, Message: "Чужая сессия"})
		return
	default:
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка выдачи пака"})
		return
	}

	now := time.Now()
	out := make([]BlockJSON, 0, len(granted))
	for _, b := range granted {
		out = append(out, blockToJSON(b, now))
	}

	rs.outboundWebhooks.SendEvent("pack.claimed", map[string]interface{}{
		"owner":      owner.Key(),
		"session_id": req.SessionID,
		"blocks":     len(out),
	})

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Пак выдан",
		Data: map[string]interface{}{
			"blocks": out,
		},
	})
}
