package garden

import (
	"github.com/annel0/growdoro/internal/vec"
)

// Occupancy — индекс занятых координат сада одного владельца.
// Инвариант: не более одного размещённого блока на (x, y, z).
type Occupancy struct {
	byPos map[vec.Vec3]string // позиция -> ID блока
}

// NewOccupancy строит индекс по списку блоков (неразмещённые игнорируются).
func NewOccupancy(blocks []*Block) *Occupancy {
	occ := &Occupancy{byPos: make(map[vec.Vec3]string)}
	for _, b := range blocks {
		if b.Placed() {
			occ.byPos[*b.Pos] = b.ID
		}
	}
	return occ
}

// Occupied проверяет, занята ли позиция.
func (o *Occupancy) Occupied(pos vec.Vec3) bool {
	_, ok := o.byPos[pos]
	return ok
}

// BlockAt возвращает ID блока на позиции.
func (o *Occupancy) BlockAt(pos vec.Vec3) (string, bool) {
	id, ok := o.byPos[pos]
	return id, ok
}

// BlockAtTile возвращает ID верхнего блока на тайле (x, y):
// блок с максимальным Z среди всех слоёв тайла.
func (o *Occupancy) BlockAtTile(tile vec.Vec2) (string, bool) {
	var bestID string
	bestZ := -1
	for pos, id := range o.byPos {
		if pos.X == tile.X && pos.Y == tile.Y && pos.Z > bestZ {
			bestZ = pos.Z
			bestID = id
		}
	}
	return bestID, bestZ >= 0
}

// Place заносит блок в индекс. Возвращает false, если позиция занята
// другим блоком (инвариант не нарушается, запись не меняется).
func (o *Occupancy) Place(id string, pos vec.Vec3) bool {
	if existing, ok := o.byPos[pos]; ok && existing != id {
		return false
	}
	o.byPos[pos] = id
	return true
}

// Remove убирает позицию из индекса.
func (o *Occupancy) Remove(pos vec.Vec3) {
	delete(o.byPos, pos)
}

// Move переносит блок с from на to. При занятом to возвращает false
// и не меняет индекс.
func (o *Occupancy) Move(id string, from, to vec.Vec3) bool {
	if existing, ok := o.byPos[to]; ok && existing != id {
		return false
	}
	if existing, ok := o.byPos[from]; ok && existing == id {
		delete(o.byPos, from)
	}
	o.byPos[to] = id
	return true
}

// Len возвращает число занятых позиций.
func (o *Occupancy) Len() int {
	return len(o.byPos)
}
