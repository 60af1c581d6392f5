package garden

import (
	"sort"
	"time"

	"github.com/annel0/growdoro/internal/catalog"
	"github.com/annel0/growdoro/internal/vec"
)

// Block — размещаемая сущность сада. Блок без позиции лежит в инвентаре.
type Block struct {
	ID    string // UUID, выдаётся при создании
	Owner Owner  // Аккаунт или анонимная сессия
	Type  string // Ключ типа в каталоге

	// Pos == nil пока блок не размещён. Z хранится в Pos.
	Pos *vec.Vec3

	// PlantedAt ставится один раз — при первом размещении растения.
	// Никогда не очищается и не обновляется.
	PlantedAt *time.Time

	// PlacedAt — клиентская метка времени последнего размещения,
	// используется только для анимации. Не персистится.
	PlacedAt time.Time

	CreatedAt time.Time
}

// Placed сообщает, размещён ли блок на сетке.
func (b *Block) Placed() bool {
	return b.Pos != nil
}

// Catalog возвращает запись каталога для типа блока (тотально).
func (b *Block) Catalog() *catalog.BlockType {
	return catalog.Get(b.Type)
}

// DepthKey возвращает ключ сортировки для отрисовки.
// Для неразмещённого блока ключ не определён и равен 0.
func (b *Block) DepthKey() int {
	if b.Pos == nil {
		return 0
	}
	return b.Pos.DepthKey()
}

// Growing сообщает, отображается ли растение заглушкой роста в момент now.
func (b *Block) Growing(now time.Time) bool {
	bt := b.Catalog()
	if !bt.IsPlant() || bt.GrowthDays == 0 || b.PlantedAt == nil {
		return false
	}
	matureAt := b.PlantedAt.Add(time.Duration(bt.GrowthDays) * 24 * time.Hour)
	return now.Before(matureAt)
}

// SortByDepth сортирует блоки по возрастанию depth key (painter's algorithm).
// Сортировка стабильна: порядок блоков с равным ключом сохраняется между кадрами.
func SortByDepth(blocks []*Block) {
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].DepthKey() < blocks[j].DepthKey()
	})
}

// CountUnplacedByType группирует неразмещённые блоки в счётчики инвентаря.
func CountUnplacedByType(blocks []*Block) map[string]int {
	counts := make(map[string]int)
	for _, b := range blocks {
		if !b.Placed() {
			counts[b.Type]++
		}
	}
	return counts
}

// SeedPatch — детерминированный стартовый участок нового владельца:
// четыре тайла базового террейна 2x2 на слое 0.
func SeedPatch() []vec.Vec3 {
	return []vec.Vec3{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 1, Y: 1, Z: 0},
	}
}
