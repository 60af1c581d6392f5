package rewards

import (
	"math/rand"
	"sort"

	"github.com/annel0/growdoro/internal/catalog"
)

// Drawer разыгрывает содержимое пака. Источник случайности
// инжектируется, чтобы тесты были детерминированными.
type Drawer struct {
	rng *rand.Rand
}

// NewDrawer создаёт Drawer с указанным источником случайности.
func NewDrawer(src rand.Source) *Drawer {
	return &Drawer{rng: rand.New(src)}
}

// rarityOrder фиксирует порядок обхода весов: map в Go итерируется
// в случайном порядке, а розыгрыш должен быть воспроизводимым.
var rarityOrder = []catalog.Rarity{
	catalog.RarityCommon,
	catalog.RarityUncommon,
	catalog.RarityRare,
	catalog.RarityLegendary,
}

// drawRarity выбирает редкость по таблице весов.
func (d *Drawer) drawRarity() catalog.Rarity {
	total := 0
	for _, r := range rarityOrder {
		total += catalog.RarityWeights[r]
	}
	roll := d.rng.Intn(total)
	for _, r := range rarityOrder {
		roll -= catalog.RarityWeights[r]
		if roll < 0 {
			return r
		}
	}
	return catalog.RarityCommon
}

// pick выбирает равновероятно один тип из списка, отбрасывая базовый
// террейн: трава раздаётся стартовым участком, а не из паков.
func (d *Drawer) pick(types []*catalog.BlockType) *catalog.BlockType {
	filtered := types[:0:0]
	for _, t := range types {
		if t.Key != catalog.BaseTerrainKey {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	// Стабильный порядок кандидатов для воспроизводимости
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Key < filtered[j].Key })
	return filtered[d.rng.Intn(len(filtered))]
}

// Draw разыгрывает n типов блоков. Каждый слот получает редкость по
// весам и равновероятный тип внутри редкости. Пак гарантированно
// содержит хотя бы одно растение: если его не выпало, последний слот
// заменяется случайным растением.
func (d *Drawer) Draw(n int) []*catalog.BlockType {
	out := make([]*catalog.BlockType, 0, n)
	hasPlant := false
	for i := 0; i < n; i++ {
		var t *catalog.BlockType
		for t == nil {
			t = d.pick(catalog.ByRarity(d.drawRarity()))
		}
		if t.IsPlant() {
			hasPlant = true
		}
		out = append(out, t)
	}
	if !hasPlant && n > 0 {
		if p := d.pick(catalog.Plants()); p != nil {
			out[n-1] = p
		}
	}
	return out
}
