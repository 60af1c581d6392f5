package session

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/growdoro/internal/garden"
)

// ErrSessionNotFound возвращается, когда сессии нет в хранилище.
var ErrSessionNotFound = errors.New("session not found")

// Repo — интерфейс хранилища фокус-сессий.
type Repo interface {
	// Create сохраняет новую сессию
	Create(ctx context.Context, s *Session) error

	// GetByID возвращает сессию по идентификатору
	GetByID(ctx context.Context, id string) (*Session, error)

	// Save перезаписывает состояние сессии (пауза, завершение и т.д.)
	Save(ctx context.Context, s *Session) error

	// ListByOwner возвращает сессии владельца, новые первыми
	ListByOwner(ctx context.Context, owner garden.Owner, limit int) ([]*Session, error)

	// ClaimRewards атомарно помечает награды выданными.
	// Возвращает ErrAlreadyClaimed, если они уже были забраны.
	ClaimRewards(ctx context.Context, id string, now time.Time) error

	// SetOwner переназначает владельца всех сессий (перенос
	// анонимной сессии на аккаунт)
	SetOwner(ctx context.Context, from, to garden.Owner) (int64, error)
}
