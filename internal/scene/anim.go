package scene

import (
	"time"

	"github.com/tanema/gween/ease"
)

// PlacementDuration — длительность анимации приземления блока.
const PlacementDuration = 400 * time.Millisecond

// Начальные значения кривой приземления: блок появляется уменьшенным
// и чуть выше тайла, с перелётом оседает в steady state.
const (
	placementStartScale   = 0.3
	placementStartOffsetY = -12.0
)

// PlacementTransform возвращает масштаб и вертикальное смещение спрайта
// в момент elapsed после размещения. Состояние не хранится: кривая —
// чистая функция от now - placedAt, пересчитывается каждый кадр.
// При elapsed >= duration возвращается ровно (1, 0) без остаточного
// трансформа.
func PlacementTransform(elapsed, duration time.Duration) (scale, offsetY float64) {
	if elapsed >= duration {
		return 1, 0
	}
	if elapsed < 0 {
		elapsed = 0
	}

	t := float32(elapsed.Seconds())
	d := float32(duration.Seconds())
	scale = float64(ease.OutBack(t, placementStartScale, 1-placementStartScale, d))
	offsetY = float64(ease.OutBack(t, placementStartOffsetY, -placementStartOffsetY, d))
	return scale, offsetY
}
