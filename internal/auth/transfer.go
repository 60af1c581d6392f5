package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/growdoro/internal/eventbus"
	"github.com/annel0/growdoro/internal/garden"
	"github.com/annel0/growdoro/internal/logging"
	"github.com/annel0/growdoro/internal/session"
	"github.com/annel0/growdoro/internal/storage"
	"github.com/annel0/growdoro/internal/vec"
)

// TransferService переносит сад анонимной browser-сессии на аккаунт
// после регистрации или входа. Повторный вызов безопасен: у сессии
// уже ничего нет, перенос завершается с нулевыми счётчиками.
type TransferService struct {
	blocks   storage.BlockRepo
	sessions session.Repo
	bus      eventbus.EventBus
}

// TransferReport — итог переноса.
type TransferReport struct {
	BlocksMoved    int // Всего перепривязанных блоков
	BlocksUnplaced int // Снятых с поля из-за коллизии координат
	SessionsMoved  int64
}

func NewTransferService(blocks storage.BlockRepo, sessions session.Repo, bus eventbus.EventBus) *TransferService {
	return &TransferService{blocks: blocks, sessions: sessions, bus: bus}
}

// Transfer перепривязывает блоки и фокус-сессии анонима к аккаунту.
// Блок, чья координата уже занята в саду аккаунта, снимается в
// инвентарь, а не теряется.
func (t *TransferService) Transfer(ctx context.Context, sessionID string, accountID uint64) (*TransferReport, error) {
	from := garden.SessionOwner(sessionID)
	to := garden.AccountOwner(accountID)
	report := &TransferReport{}

	// Занятые координаты целевого сада
	placed, err := t.blocks.ListPlacedByOwner(ctx, to)
	if err != nil {
		return nil, err
	}
	occupied := make(map[vec.Vec3]bool, len(placed))
	for _, b := range placed {
		occupied[*b.Pos] = true
	}

	src, err := t.blocks.ListByOwner(ctx, from)
	if err != nil {
		return nil, err
	}
	for _, b := range src {
		if b.Placed() {
			if occupied[*b.Pos] {
				// Коллизия: блок уходит в инвентарь аккаунта
				if err := t.blocks.Unplace(ctx, b.ID); err != nil {
					return report, err
				}
				report.BlocksUnplaced++
			} else {
				occupied[*b.Pos] = true
			}
		}
		if err := t.blocks.SetOwner(ctx, b.ID, to); err != nil {
			return report, err
		}
		report.BlocksMoved++
	}

	report.SessionsMoved, err = t.sessions.SetOwner(ctx, from, to)
	if err != nil {
		return report, err
	}

	if report.BlocksMoved > 0 || report.SessionsMoved > 0 {
		logging.Info("🔗 Перенос сессии %s → аккаунт %d: %d блоков (%d снято), %d сессий",
			sessionID, accountID, report.BlocksMoved, report.BlocksUnplaced, report.SessionsMoved)
	}
	t.publishProfileUpdated(ctx, sessionID, accountID, report)
	return report, nil
}

func (t *TransferService) publishProfileUpdated(ctx context.Context, sessionID string, accountID uint64, report *TransferReport) {
	if t.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"session_id":   sessionID,
		"account_id":   accountID,
		"blocks_moved": report.BlocksMoved,
	})
	if err != nil {
		return
	}
	ev := &eventbus.Envelope{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Source:    "auth",
		EventType: eventbus.EventProfileUpdated,
		Version:   1,
		Payload:   payload,
	}
	if err := t.bus.Publish(ctx, ev); err != nil {
		logging.Warn("⚠️ Событие profile.updated не опубликовано: %v", err)
	}
}
