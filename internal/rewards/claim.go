package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/growdoro/internal/catalog"
	"github.com/annel0/growdoro/internal/eventbus"
	"github.com/annel0/growdoro/internal/garden"
	"github.com/annel0/growdoro/internal/logging"
	"github.com/annel0/growdoro/internal/session"
	"github.com/annel0/growdoro/internal/storage"
)

// ErrOwnerMismatch возвращается при попытке забрать чужую сессию.
var ErrOwnerMismatch = errors.New("session belongs to another owner")

// ClaimService выдаёт пак блоков за завершённую фокус-сессию.
// Отметка о выдаче ставится ДО создания блоков: при гонке двух
// запросов второй получает ErrAlreadyClaimed и блоки не дублируются.
type ClaimService struct {
	sessions session.Repo
	blocks   storage.BlockRepo
	drawer   *Drawer
	bus      eventbus.EventBus
	metrics  *Metrics
	now      func() time.Time
}

// NewClaimService собирает сервис выдачи. bus и metrics могут быть nil.
func NewClaimService(sessions session.Repo, blocks storage.BlockRepo, drawer *Drawer, bus eventbus.EventBus, metrics *Metrics) *ClaimService {
	return &ClaimService{
		sessions: sessions,
		blocks:   blocks,
		drawer:   drawer,
		bus:      bus,
		metrics:  metrics,
		now:      time.Now,
	}
}

// blockGrantedPayload — полезная нагрузка события block.granted.
type blockGrantedPayload struct {
	Owner     string   `json:"owner"`
	SessionID string   `json:"session_id"`
	BlockIDs  []string `json:"block_ids"`
	Types     []string `json:"types"`
}

// Claim проверяет сессию и выдаёт блоки. fallbackDurationSec
// используется, когда клиент считал таймер сам и сессия не была
// зарегистрирована на сервере: по нему создаётся завершённая запись.
func (c *ClaimService) Claim(ctx context.Context, owner garden.Owner, sessionID string, fallbackDurationSec int) ([]*garden.Block, error) {
	s, err := c.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, session.ErrSessionNotFound) && fallbackDurationSec > 0 {
		s, err = c.registerFallback(ctx, owner, sessionID, fallbackDurationSec)
	}
	if err != nil {
		c.metrics.observeRejection("not_found")
		return nil, err
	}
	if s.Owner != owner {
		c.metrics.observeRejection("owner_mismatch")
		return nil, ErrOwnerMismatch
	}
	if err := s.Claimable(); err != nil {
		c.metrics.observeRejection(rejectReason(err))
		return nil, err
	}

	duration := s.DurationSec
	if duration <= 0 {
		duration = fallbackDurationSec
	}
	types := c.drawer.Draw(PackSize(duration))

	// Сначала отметка, потом блоки: повторный запрос проигрывает здесь
	now := c.now()
	if err := c.sessions.ClaimRewards(ctx, sessionID, now); err != nil {
		c.metrics.observeRejection(rejectReason(err))
		return nil, err
	}

	blocks := make([]*garden.Block, 0, len(types))
	for _, t := range types {
		blocks = append(blocks, &garden.Block{
			ID:        uuid.New().String(),
			Owner:     owner,
			Type:      t.Key,
			CreatedAt: now,
		})
	}
	if err := c.blocks.CreateMany(ctx, blocks); err != nil {
		logging.Error("❌ Выдача пака: отметка поставлена, блоки не созданы (session=%s): %v", sessionID, err)
		return nil, err
	}

	c.metrics.observeGrant(types)
	c.publishGranted(ctx, owner, sessionID, blocks, types)
	logging.Info("🎁 Выдан пак из %d блоков (owner=%s, session=%s)", len(blocks), owner.Key(), sessionID)
	return blocks, nil
}

// registerFallback создаёт завершённую сессию по клиентскому таймеру.
func (c *ClaimService) registerFallback(ctx context.Context, owner garden.Owner, sessionID string, durationSec int) (*session.Session, error) {
	now := c.now()
	s := &session.Session{
		ID:          sessionID,
		Owner:       owner,
		DurationSec: durationSec,
		StartedAt:   now.Add(-time.Duration(durationSec) * time.Second),
	}
	if err := s.Complete(now); err != nil {
		return nil, err
	}
	if err := c.sessions.Create(ctx, s); err != nil {
		return nil, err
	}
	logging.Debug("Сессия %s зарегистрирована задним числом (%d сек)", sessionID, durationSec)
	return s, nil
}

func (c *ClaimService) publishGranted(ctx context.Context, owner garden.Owner, sessionID string, blocks []*garden.Block, types []*catalog.BlockType) {
	if c.bus == nil {
		return
	}
	payload := blockGrantedPayload{
		Owner:     owner.Key(),
		SessionID: sessionID,
		BlockIDs:  make([]string, 0, len(blocks)),
		Types:     make([]string, 0, len(types)),
	}
	for _, b := range blocks {
		payload.BlockIDs = append(payload.BlockIDs, b.ID)
	}
	for _, t := range types {
		payload.Types = append(payload.Types, t.Key)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	ev := &eventbus.Envelope{
		ID:        uuid.New().String(),
		Timestamp: c.now().UTC(),
		Source:    "rewards",
		EventType: eventbus.EventBlockGranted,
		Version:   1,
		Payload:   data,
	}
	if err := c.bus.Publish(ctx, ev); err != nil {
		logging.Warn("⚠️ Событие block.granted не опубликовано: %v", err)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, session.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, session.ErrNotCompleted):
		return "not_completed"
	default:
		return "error"
	}
}
