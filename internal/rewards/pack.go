package rewards

// Пороговая таблица размера пака. Длина фокуса измеряется в секундах;
// сессии короче 45 минут дают малый пак, от 45 минут — большой.
const (
	smallPackSize  = 3
	largePackSize  = 5
	largePackFloor = 45 * 60
)

// PackSize возвращает количество блоков в паке за сессию данной длины.
func PackSize(durationSec int) int {
	if durationSec >= largePackFloor {
		return largePackSize
	}
	return smallPackSize
}
