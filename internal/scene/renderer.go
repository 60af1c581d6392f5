package scene

import (
	"image/color"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/annel0/growdoro/internal/catalog"
	"github.com/annel0/growdoro/internal/garden"
	"github.com/annel0/growdoro/internal/iso"
	"github.com/annel0/growdoro/internal/logging"
	"github.com/annel0/growdoro/internal/vec"
)

// Frame — вход одного кадра: список блоков и состояние наведения.
// Рендерер ничего из этого не мутирует.
type Frame struct {
	Blocks       []*garden.Block
	HoverTile    *vec.Vec2 // Тайл под указателем (пустой — рисуем ромб)
	HoverBlockID string    // Блок под указателем (рисуем полупрозрачным)

	// Превью перетаскивания: тип и тайл, над которым держат блок.
	DragType string
	DragTile *vec.Vec2
}

// Цвета оверлеев.
var (
	gridColor      = color.RGBA{255, 255, 255, 28}
	hoverFillColor = color.RGBA{255, 255, 255, 40}
	hoverLineColor = color.RGBA{255, 255, 255, 160}
)

const (
	hoverDimAlpha   = 0.5 // Прозрачность блока под указателем
	dragAlpha       = 0.7 // Прозрачность превью перетаскивания
	gridMarginTiles = 2   // Запас видимого диапазона сетки
	dashLen         = 6.0 // Длина штриха рамки наведения
)

// whitePixel — текстура 1x1 для заливки треугольников цветом вершин.
var whitePixel = func() *ebiten.Image {
	img := ebiten.NewImage(1, 1)
	img.Fill(color.White)
	return img
}()

// Renderer рисует изометрическую сцену сада. Перерисовка покадровая:
// анимации выводятся из времени, а не из хранимого состояния.
type Renderer struct {
	proj    *iso.Projector
	cam     *iso.Camera
	sprites *SpriteStore
	clock   func() time.Time

	// Нераспознанные типы логируются один раз, тайл пропускается
	loggedUnknown map[string]bool
}

// NewRenderer создает рендерер сцены. clock == nil берёт time.Now.
func NewRenderer(proj *iso.Projector, cam *iso.Camera, sprites *SpriteStore, clock func() time.Time) *Renderer {
	if clock == nil {
		clock = time.Now
	}
	return &Renderer{
		proj:          proj,
		cam:           cam,
		sprites:       sprites,
		clock:         clock,
		loggedUnknown: make(map[string]bool),
	}
}

// Resize обновляет логический размер вьюпорта (device-pixel-ratio
// учитывает ebiten-слой в Layout, сюда приходят логические пиксели).
func (r *Renderer) Resize(w, h float64) {
	r.proj.SetViewport(w, h)
}

// Draw рисует один кадр сцены.
func (r *Renderer) Draw(screen *ebiten.Image, f Frame) {
	now := r.clock()

	r.drawGrid(screen)
	if f.HoverTile != nil {
		if _, occupied := blockAtTile(f.Blocks, *f.HoverTile); !occupied {
			r.drawHoverDiamond(screen, *f.HoverTile)
		}
	}

	// Painter's algorithm: копия, чтобы не переставлять блоки у вызывающего
	ordered := make([]*garden.Block, len(f.Blocks))
	copy(ordered, f.Blocks)
	garden.SortByDepth(ordered)

	for _, b := range ordered {
		dim := b.ID == f.HoverBlockID
		r.drawBlock(screen, b, now, dim)
	}

	if f.DragType != "" && f.DragTile != nil {
		r.drawDragPreview(screen, f.DragType, *f.DragTile)
	}
}

// spriteFor выбирает спрайт блока: растущее растение рисуется заглушкой
// до конца периода роста, дальше — зрелым спрайтом типа.
func spriteFor(b *garden.Block, now time.Time) string {
	if b.Growing(now) {
		return catalog.GrowingSprite
	}
	return b.Catalog().Sprite
}

func (r *Renderer) drawBlock(screen *ebiten.Image, b *garden.Block, now time.Time, dim bool) {
	if b.Pos == nil {
		return
	}

	bt := b.Catalog()
	if bt.IsUnknown() {
		if !r.loggedUnknown[b.Type] {
			r.loggedUnknown[b.Type] = true
			logging.Warn("⚠️ Неизвестный тип блока %q: тайл пропущен", b.Type)
		}
		return
	}

	img, ok := r.sprites.Get(spriteFor(b, now))
	if !ok {
		// Спрайт ещё грузится: пропускаем без шума
		return
	}

	animScale, animOffset := 1.0, 0.0
	if !b.PlacedAt.IsZero() {
		animScale, animOffset = PlacementTransform(now.Sub(b.PlacedAt), PlacementDuration)
	}

	alpha := 1.0
	if dim {
		alpha = hoverDimAlpha
	}
	r.drawSprite(screen, img, bt, *b.Pos, animScale, animOffset, alpha)
}

func (r *Renderer) drawDragPreview(screen *ebiten.Image, typeKey string, tile vec.Vec2) {
	bt := catalog.Get(typeKey)
	if bt.IsUnknown() {
		return
	}
	img, ok := r.sprites.Get(bt.Sprite)
	if !ok {
		return
	}
	r.drawSprite(screen, img, bt, vec.Vec3{X: tile.X, Y: tile.Y}, 1, 0, dragAlpha)
}

// drawSprite рисует спрайт нижней гранью в центр тайла.
func (r *Renderer) drawSprite(screen *ebiten.Image, img *ebiten.Image, bt *catalog.BlockType, pos vec.Vec3, animScale, animOffset, alpha float64) {
	sx, sy := r.proj.WorldToScreen(r.cam, pos)
	zoom := r.cam.Zoom

	w := float64(img.Bounds().Dx())
	h := float64(img.Bounds().Dy())

	// Масштаб подгоняет спрайт под ширину ромба с поправкой типа
	scale := r.proj.Geom.TileWidth * zoom / w * bt.ImageScale * animScale

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(
		sx-w*scale/2,
		sy-h*scale+r.proj.Geom.TileHeight*zoom/2+(bt.OffsetY+animOffset)*zoom,
	)
	op.ColorScale.ScaleAlpha(float32(alpha))
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(img, op)
}

// drawGrid рисует фоновую сетку по видимому диапазону: пан и зум
// никогда не открывают пустоту.
func (r *Renderer) drawGrid(screen *ebiten.Image) {
	minX, maxX, minY, maxY := r.proj.VisibleRange(r.cam, gridMarginTiles)

	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			r.strokeDiamond(screen, vec.Vec2{X: x, Y: y}, 1, gridColor, false)
		}
	}
}

// drawHoverDiamond рисует подсветку пустого тайла под указателем:
// полупрозрачная заливка и штриховая рамка.
func (r *Renderer) drawHoverDiamond(screen *ebiten.Image, tile vec.Vec2) {
	top, right, bottom, left := r.diamondCorners(tile)

	var path vector.Path
	path.MoveTo(float32(top[0]), float32(top[1]))
	path.LineTo(float32(right[0]), float32(right[1]))
	path.LineTo(float32(bottom[0]), float32(bottom[1]))
	path.LineTo(float32(left[0]), float32(left[1]))
	path.Close()

	vs, is := path.AppendVerticesAndIndicesForFilling(nil, nil)
	for i := range vs {
		vs[i].ColorR = float32(hoverFillColor.R) / 255
		vs[i].ColorG = float32(hoverFillColor.G) / 255
		vs[i].ColorB = float32(hoverFillColor.B) / 255
		vs[i].ColorA = float32(hoverFillColor.A) / 255
	}
	screen.DrawTriangles(vs, is, whitePixel, &ebiten.DrawTrianglesOptions{})

	r.strokeDiamond(screen, tile, 2, hoverLineColor, true)
}

// strokeDiamond обводит ромб тайла. dashed включает штриховку.
func (r *Renderer) strokeDiamond(screen *ebiten.Image, tile vec.Vec2, width float32, clr color.Color, dashed bool) {
	top, right, bottom, left := r.diamondCorners(tile)
	edges := [4][2][2]float64{
		{top, right},
		{right, bottom},
		{bottom, left},
		{left, top},
	}
	for _, e := range edges {
		if dashed {
			strokeDashed(screen, e[0][0], e[0][1], e[1][0], e[1][1], width, clr)
		} else {
			vector.StrokeLine(screen,
				float32(e[0][0]), float32(e[0][1]),
				float32(e[1][0]), float32(e[1][1]),
				width, clr, true)
		}
	}
}

// diamondCorners возвращает четыре угла ромба тайла в экранных координатах.
func (r *Renderer) diamondCorners(tile vec.Vec2) (top, right, bottom, left [2]float64) {
	zoom := r.cam.Zoom
	hw := r.proj.Geom.TileWidth * zoom / 2
	hh := r.proj.Geom.TileHeight * zoom / 2

	cx, cy := r.proj.WorldToScreen(r.cam, vec.Vec3{X: tile.X, Y: tile.Y})
	return [2]float64{cx, cy - hh},
		[2]float64{cx + hw, cy},
		[2]float64{cx, cy + hh},
		[2]float64{cx - hw, cy}
}

// strokeDashed рисует штриховой отрезок сегментами фиксированной длины.
func strokeDashed(screen *ebiten.Image, x0, y0, x1, y1 float64, width float32, clr color.Color) {
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	ux, uy := dx/length, dy/length

	for dist := 0.0; dist < length; dist += dashLen * 2 {
		end := dist + dashLen
		if end > length {
			end = length
		}
		vector.StrokeLine(screen,
			float32(x0+ux*dist), float32(y0+uy*dist),
			float32(x0+ux*end), float32(y0+uy*end),
			width, clr, true)
	}
}

// blockAtTile ищет размещённый блок на тайле (любой слой z).
func blockAtTile(blocks []*garden.Block, tile vec.Vec2) (*garden.Block, bool) {
	for _, b := range blocks {
		if b.Pos != nil && b.Pos.X == tile.X && b.Pos.Y == tile.Y {
			return b, true
		}
	}
	return nil, false
}
