package vec

import "math"

// Vec2 представляет 2D координаты тайла на сетке сада
type Vec2 struct {
	X, Y int
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub вычитает вектор
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// ToVec3 поднимает координату тайла на слой z
func (v Vec2) ToVec3(z int) Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: z}
}

// Neighbors возвращает четырёх соседей по сторонам света
func (v Vec2) Neighbors() [4]Vec2 {
	return [4]Vec2{
		{X: v.X, Y: v.Y - 1},
		{X: v.X, Y: v.Y + 1},
		{X: v.X - 1, Y: v.Y},
		{X: v.X + 1, Y: v.Y},
	}
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
