package iso

import (
	"math"

	"github.com/annel0/growdoro/internal/vec"
)

// TileGeometry — геометрия изометрического тайла в пикселях (до зума).
type TileGeometry struct {
	TileWidth  float64 // Ширина ромба
	TileHeight float64 // Высота ромба (классическая изометрия 2:1)
	TileDepth  float64 // Видимая высота одного слоя Z
}

// DefaultGeometry — стандартный тайл 64x32 с глубиной слоя 16.
func DefaultGeometry() TileGeometry {
	return TileGeometry{TileWidth: 64, TileHeight: 32, TileDepth: 16}
}

// Projector преобразует мировые координаты сетки в экранные и обратно.
// Чистая функция камеры и геометрии: никаких побочных эффектов.
type Projector struct {
	Geom  TileGeometry
	ViewW float64 // Ширина вьюпорта в логических пикселях
	ViewH float64 // Высота вьюпорта в логических пикселях
}

// NewProjector создаёт проектор для вьюпорта указанного размера.
func NewProjector(geom TileGeometry, viewW, viewH float64) *Projector {
	return &Projector{Geom: geom, ViewW: viewW, ViewH: viewH}
}

// SetViewport обновляет размер вьюпорта (на resize окна).
func (p *Projector) SetViewport(w, h float64) {
	p.ViewW = w
	p.ViewH = h
}

// WorldToScreen проецирует мировую позицию (x, y, z) в экранные координаты.
// Размеры тайла домножаются на зум; пан и центр вьюпорта добавляются как есть.
func (p *Projector) WorldToScreen(cam *Camera, pos vec.Vec3) (float64, float64) {
	tw := p.Geom.TileWidth * cam.Zoom
	th := p.Geom.TileHeight * cam.Zoom
	td := p.Geom.TileDepth * cam.Zoom

	sx := float64(pos.X-pos.Y)*(tw/2) + cam.PanX + p.ViewW/2
	sy := float64(pos.X+pos.Y)*(th/2) - float64(pos.Z)*td + cam.PanY + p.ViewH/2
	return sx, sy
}

// ScreenToWorldF решает обратную задачу для z = 0 без привязки к сетке.
func (p *Projector) ScreenToWorldF(cam *Camera, sx, sy float64) (float64, float64) {
	tw := p.Geom.TileWidth * cam.Zoom
	th := p.Geom.TileHeight * cam.Zoom

	dx := sx - cam.PanX - p.ViewW/2
	dy := sy - cam.PanY - p.ViewH/2

	// Система: dx = (x - y) * tw/2; dy = (x + y) * th/2
	a := dx / (tw / 2)
	b := dy / (th / 2)
	return (a + b) / 2, (b - a) / 2
}

// ScreenToWorld возвращает тайл под экранной точкой (z = 0)
// с привязкой к сетке: floor(v + 0.5).
func (p *Projector) ScreenToWorld(cam *Camera, sx, sy float64) vec.Vec2 {
	x, y := p.ScreenToWorldF(cam, sx, sy)
	return vec.Vec2{
		X: int(math.Floor(x + 0.5)),
		Y: int(math.Floor(y + 0.5)),
	}
}

// VisibleRange возвращает диапазон тайлов [minX..maxX] x [minY..maxY],
// покрывающий вьюпорт с запасом margin тайлов. Фоновая сетка рисуется
// по этому диапазону, чтобы пан и зум не открывали пустоту.
func (p *Projector) VisibleRange(cam *Camera, margin int) (minX, maxX, minY, maxY int) {
	corners := [4][2]float64{
		{0, 0},
		{p.ViewW, 0},
		{0, p.ViewH},
		{p.ViewW, p.ViewH},
	}

	first := true
	var fMinX, fMaxX, fMinY, fMaxY float64
	for _, c := range corners {
		x, y := p.ScreenToWorldF(cam, c[0], c[1])
		if first {
			fMinX, fMaxX, fMinY, fMaxY = x, x, y, y
			first = false
			continue
		}
		fMinX = math.Min(fMinX, x)
		fMaxX = math.Max(fMaxX, x)
		fMinY = math.Min(fMinY, y)
		fMaxY = math.Max(fMaxY, y)
	}

	m := float64(margin)
	return int(math.Floor(fMinX - m)), int(math.Ceil(fMaxX + m)),
		int(math.Floor(fMinY - m)), int(math.Ceil(fMaxY + m))
}
