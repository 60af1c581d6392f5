package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/annel0/growdoro/internal/garden"
	"github.com/annel0/growdoro/internal/vec"
)

// MemoryBlockRepo — потокобезопасное in-memory хранилище блоков.
// Используется в тестах и для локальной разработки без MongoDB.
type MemoryBlockRepo struct {
	mu     sync.RWMutex
	blocks map[string]*garden.Block // id -> блок
}

// NewMemoryBlockRepo создает пустой in-memory репозиторий.
func NewMemoryBlockRepo() *MemoryBlockRepo {
	return &MemoryBlockRepo{
		blocks: make(map[string]*garden.Block),
	}
}

// clone возвращает копию блока, чтобы вызывающие не делили память с репозиторием.
func clone(b *garden.Block) *garden.Block {
	cp := *b
	if b.Pos != nil {
		pos := *b.Pos
		cp.Pos = &pos
	}
	if b.PlantedAt != nil {
		ts := *b.PlantedAt
		cp.PlantedAt = &ts
	}
	return &cp
}

// occupiedBy ищет блок владельца на позиции (кроме исключаемого id).
func (r *MemoryBlockRepo) occupiedBy(owner garden.Owner, pos vec.Vec3, excludeID string) *garden.Block {
	for _, b := range r.blocks {
		if b.ID == excludeID || b.Owner != owner || b.Pos == nil {
			continue
		}
		if b.Pos.Equals(pos) {
			return b
		}
	}
	return nil
}

// GetByID возвращает блок по идентификатору.
func (r *MemoryBlockRepo) GetByID(ctx context.Context, id string) (*garden.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blocks[id]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return clone(b), nil
}

// ListByOwner возвращает все блоки владельца.
func (r *MemoryBlockRepo) ListByOwner(ctx context.Context, owner garden.Owner) ([]*garden.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*garden.Block
	for _, b := range r.blocks {
		if b.Owner == owner {
			out = append(out, clone(b))
		}
	}
	return out, nil
}

// ListPlacedByOwner возвращает размещённые блоки владельца.
func (r *MemoryBlockRepo) ListPlacedByOwner(ctx context.Context, owner garden.Owner) ([]*garden.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*garden.Block
	for _, b := range r.blocks {
		if b.Owner == owner && b.Pos != nil {
			out = append(out, clone(b))
		}
	}
	return out, nil
}

// CreateMany добавляет блоки в хранилище.
func (r *MemoryBlockRepo) CreateMany(ctx context.Context, blocks []*garden.Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range blocks {
		r.blocks[b.ID] = clone(b)
	}
	return nil
}

// Place размещает блок на позицию с проверкой занятости.
func (r *MemoryBlockRepo) Place(ctx context.Context, id string, pos vec.Vec3, plantedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blocks[id]
	if !ok {
		return ErrBlockNotFound
	}
	if r.occupiedBy(b.Owner, pos, id) != nil {
		return ErrTileOccupied
	}

	p := pos
	b.Pos = &p
	// plantedAt ставится один раз и никогда не перезаписывается
	if plantedAt != nil && b.PlantedAt == nil {
		ts := *plantedAt
		b.PlantedAt = &ts
	}
	return nil
}

// Move переносит размещённый блок.
func (r *MemoryBlockRepo) Move(ctx context.Context, id string, pos vec.Vec3) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blocks[id]
	if !ok {
		return ErrBlockNotFound
	}
	if r.occupiedBy(b.Owner, pos, id) != nil {
		return ErrTileOccupied
	}

	p := pos
	b.Pos = &p
	return nil
}

// ClaimUnplaced атомарно забирает неразмещённый блок типа и ставит его на позицию.
func (r *MemoryBlockRepo) ClaimUnplaced(ctx context.Context, owner garden.Owner, typeKey string, pos vec.Vec3, plantedAt *time.Time) (*garden.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.occupiedBy(owner, pos, "") != nil {
		return nil, ErrTileOccupied
	}

	// Детерминированный выбор: самый старый из неразмещённых
	var candidate *garden.Block
	for _, b := range r.blocks {
		if b.Owner != owner || b.Type != typeKey || b.Pos != nil {
			continue
		}
		if candidate == nil || b.CreatedAt.Before(candidate.CreatedAt) {
			candidate = b
		}
	}
	if candidate == nil {
		return nil, ErrNoUnplacedBlock
	}

	p := pos
	candidate.Pos = &p
	if plantedAt != nil && candidate.PlantedAt == nil {
		ts := *plantedAt
		candidate.PlantedAt = &ts
	}
	return clone(candidate), nil
}

// Unplace снимает блок с поля обратно в инвентарь.
func (r *MemoryBlockRepo) Unplace(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blocks[id]
	if !ok {
		return ErrBlockNotFound
	}
	b.Pos = nil
	return nil
}

// SetOwner перепривязывает блок к новому владельцу.
func (r *MemoryBlockRepo) SetOwner(ctx context.Context, id string, owner garden.Owner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blocks[id]
	if !ok {
		return ErrBlockNotFound
	}
	b.Owner = owner
	return nil
}

// Delete удаляет блок из хранилища.
func (r *MemoryBlockRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.blocks[id]; !ok {
		return ErrBlockNotFound
	}
	delete(r.blocks, id)
	return nil
}

// FindDuplicates возвращает блоки, делящие координату с более старым блоком.
func (r *MemoryBlockRepo) FindDuplicates(ctx context.Context, owner garden.Owner) ([]*garden.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var placed []*garden.Block
	for _, b := range r.blocks {
		if b.Owner == owner && b.Pos != nil {
			placed = append(placed, b)
		}
	}
	// Старые блоки первыми: они выживают при дедупликации
	sort.Slice(placed, func(i, j int) bool {
		return placed[i].CreatedAt.Before(placed[j].CreatedAt)
	})

	seen := make(map[vec.Vec3]bool)
	var dups []*garden.Block
	for _, b := range placed {
		if seen[*b.Pos] {
			dups = append(dups, clone(b))
			continue
		}
		seen[*b.Pos] = true
	}
	return dups, nil
}

// ListOwners возвращает всех владельцев блоков.
func (r *MemoryBlockRepo) ListOwners(ctx context.Context) ([]garden.Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[garden.Owner]bool)
	var owners []garden.Owner
	for _, b := range r.blocks {
		if !seen[b.Owner] {
			seen[b.Owner] = true
			owners = append(owners, b.Owner)
		}
	}
	return owners, nil
}
