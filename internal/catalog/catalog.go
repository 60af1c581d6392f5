package catalog

import "sync"

// Rarity определяет редкость типа блока при выпадении из пака.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityLegendary Rarity = "legendary"
)

// Веса редкостей для случайного выбора (из 100).
var RarityWeights = map[Rarity]int{
	RarityCommon:    60,
	RarityUncommon:  30,
	RarityRare:      8,
	RarityLegendary: 2,
}

// Category определяет игровую категорию типа блока.
type Category string

const (
	CategoryTerrain    Category = "terrain"
	CategoryPlant      Category = "plant"
	CategoryDecoration Category = "decoration"
)

// BlockType описывает метаданные типа блока: отображение и геймплей.
// Каталог статичен и только читается после инициализации.
type BlockType struct {
	Key         string   // Уникальный ключ ("grass", "sunflower", ...)
	DisplayName string   // Имя для UI
	Sprite      string   // Путь к спрайту относительно каталога ассетов
	Rarity      Rarity   // Редкость при выпадении из пака
	Category    Category // terrain / plant / decoration
	GrowthDays  int      // Дни роста растения (0 = растёт мгновенно)
	DecayDays   int      // Дни до увядания (0 = не вянет)
	ImageScale  float64  // Масштаб спрайта для выравнивания (1.0 по умолчанию)
	OffsetY     float64  // Вертикальное смещение спрайта в пикселях тайла
}

// IsPlant сообщает, относится ли тип к категории растений.
func (t *BlockType) IsPlant() bool {
	return t.Category == CategoryPlant
}

// IsUnknown сообщает, что ключ не был найден в каталоге.
func (t *BlockType) IsUnknown() bool {
	return t.Key == UnknownKey
}

// UnknownKey — ключ fallback-типа для нераспознанных блоков.
const UnknownKey = "__unknown__"

// BaseTerrainKey — тип, из которого сеется стартовый участок 2x2.
const BaseTerrainKey = "grass"

// GrowingSprite — спрайт-заглушка для ещё не выросших растений.
const GrowingSprite = "blocks/growing.png"

// unknownType возвращается для любого ключа, которого нет в реестре.
// Рендерер пропускает такие блоки, никогда не падает.
var unknownType = &BlockType{
	Key:         UnknownKey,
	DisplayName: "Unknown",
	Rarity:      RarityCommon,
	Category:    CategoryDecoration,
	ImageScale:  1.0,
}

var (
	mu       sync.RWMutex
	registry = make(map[string]*BlockType)
)

// Register добавляет тип блока в реестр. Повторная регистрация
// того же ключа перезаписывает запись (используется JSON-оверлеем).
func Register(t *BlockType) {
	if t.ImageScale == 0 {
		t.ImageScale = 1.0
	}
	mu.Lock()
	registry[t.Key] = t
	mu.Unlock()
}

// Get возвращает тип блока по ключу. Функция тотальна: для
// неизвестного ключа возвращается fallback-тип Unknown.
func Get(key string) *BlockType {
	mu.RLock()
	t, ok := registry[key]
	mu.RUnlock()
	if !ok {
		return unknownType
	}
	return t
}

// Exists проверяет наличие ключа в реестре.
func Exists(key string) bool {
	mu.RLock()
	_, ok := registry[key]
	mu.RUnlock()
	return ok
}

// All возвращает копию списка всех зарегистрированных типов.
func All() []*BlockType {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]*BlockType, 0, len(registry))
	for _, t := range registry {
		out = append(out, t)
	}
	return out
}

// ByRarity возвращает все типы указанной редкости.
func ByRarity(r Rarity) []*BlockType {
	mu.RLock()
	defer mu.RUnlock()
	var out []*BlockType
	for _, t := range registry {
		if t.Rarity == r {
			out = append(out, t)
		}
	}
	return out
}

// Plants возвращает все типы категории plant.
func Plants() []*BlockType {
	mu.RLock()
	defer mu.RUnlock()
	var out []*BlockType
	for _, t := range registry {
		if t.Category == CategoryPlant {
			out = append(out, t)
		}
	}
	return out
}
