package iso

// Пределы зума камеры.
const (
	MinZoom = 0.5
	MaxZoom = 3.0
)

// Camera — эфемерное состояние вида: смещение пана в пикселях и зум.
// Не персистится, сбрасывается при перезапуске клиента.
type Camera struct {
	PanX, PanY float64
	Zoom       float64
}

// NewCamera создаёт камеру с нейтральным паном и зумом 1.0.
func NewCamera() *Camera {
	return &Camera{Zoom: 1.0}
}

// PanBy сдвигает камеру на дельту указателя 1:1.
func (c *Camera) PanBy(dx, dy float64) {
	c.PanX += dx
	c.PanY += dy
}

// SetZoom устанавливает зум с клампом в [MinZoom, MaxZoom].
func (c *Camera) SetZoom(z float64) {
	if z < MinZoom {
		z = MinZoom
	}
	if z > MaxZoom {
		z = MaxZoom
	}
	c.Zoom = z
}

// ZoomBy умножает текущий зум на factor (с клампом).
func (c *Camera) ZoomBy(factor float64) {
	c.SetZoom(c.Zoom * factor)
}

// Reset возвращает камеру в исходное состояние.
func (c *Camera) Reset() {
	c.PanX = 0
	c.PanY = 0
	c.Zoom = 1.0
}
