package storage

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/growdoro/internal/garden"
	"github.com/annel0/growdoro/internal/vec"
)

// Доменные ошибки репозитория блоков.
var (
	ErrBlockNotFound   = errors.New("block not found")
	ErrTileOccupied    = errors.New("tile already occupied")
	ErrNoUnplacedBlock = errors.New("no unplaced block of this type")
)

// BlockRepo определяет интерфейс для сохранения и загрузки блоков сада.
// Блоки привязаны к владельцу (аккаунт или анонимная сессия).
// Инвариант хранилища: не более одного размещённого блока владельца
// на координату (x, y, z). Проверка best-effort (check-then-act);
// гонки добивает maintenance-джоб дедупликации.
type BlockRepo interface {
	// GetByID возвращает блок по идентификатору.
	GetByID(ctx context.Context, id string) (*garden.Block, error)

	// ListByOwner возвращает все блоки владельца (включая инвентарь).
	ListByOwner(ctx context.Context, owner garden.Owner) ([]*garden.Block, error)

	// ListPlacedByOwner возвращает только размещённые блоки владельца.
	ListPlacedByOwner(ctx context.Context, owner garden.Owner) ([]*garden.Block, error)

	// CreateMany создаёт блоки (выдача пака, стартовый участок, dev-инструменты).
	CreateMany(ctx context.Context, blocks []*garden.Block) error

	// Place размещает блок на позицию. plantedAt передаётся сервисом
	// для первого размещения растения; если у блока уже есть plantedAt,
	// он не перезаписывается. Возвращает ErrTileOccupied при коллизии.
	Place(ctx context.Context, id string, pos vec.Vec3, plantedAt *time.Time) error

	// Move переносит размещённый блок на новую позицию.
	// Возвращает ErrTileOccupied, если позиция занята другим блоком.
	Move(ctx context.Context, id string, pos vec.Vec3) error

	// ClaimUnplaced атомарно забирает один неразмещённый блок типа typeKey
	// и размещает его на pos. Возвращает ErrNoUnplacedBlock, если в
	// инвентаре не осталось блоков типа.
	ClaimUnplaced(ctx context.Context, owner garden.Owner, typeKey string, pos vec.Vec3, plantedAt *time.Time) (*garden.Block, error)

	// Unplace снимает блок с поля обратно в инвентарь. plantedAt
	// при этом сохраняется: растение не «пересаживается».
	Unplace(ctx context.Context, id string) error

	// SetOwner перепривязывает блок к новому владельцу (перенос сессии в аккаунт).
	SetOwner(ctx context.Context, id string, owner garden.Owner) error

	// Delete удаляет блок (только debug-инструменты и дедупликация).
	Delete(ctx context.Context, id string) error

	// FindDuplicates возвращает блоки владельца, нарушающие инвариант
	// занятости: для каждой координаты с несколькими блоками — все,
	// кроме самого старого.
	FindDuplicates(ctx context.Context, owner garden.Owner) ([]*garden.Block, error)

	// ListOwners возвращает всех владельцев, имеющих блоки (для maintenance).
	ListOwners(ctx context.Context) ([]garden.Owner, error)
}
