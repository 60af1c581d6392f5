package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

// TestGetTotal проверяет, что Get тотальна: неизвестный ключ
// возвращает fallback-тип, а не nil.
func TestGetTotal(t *testing.T) {
	t.Run("Known Key", func(t *testing.T) {
		bt := Get("grass")
		if bt.IsUnknown() {
			t.Fatal("grass должен присутствовать во встроенном каталоге")
		}
		if bt.Category != CategoryTerrain {
			t.Errorf("grass: ожидалась категория terrain, получена %s", bt.Category)
		}
	})

	t.Run("Unknown Key", func(t *testing.T) {
		bt := Get("no-such-type")
		if bt == nil {
			t.Fatal("Get вернула nil для неизвестного ключа")
		}
		if !bt.IsUnknown() {
			t.Error("для неизвестного ключа ожидался fallback-тип")
		}
	})

	t.Run("Empty Key", func(t *testing.T) {
		if !Get("").IsUnknown() {
			t.Error("пустой ключ должен давать fallback-тип")
		}
	})
}

func TestRarityWeightsComplete(t *testing.T) {
	total := 0
	for _, w := range RarityWeights {
		total += w
	}
	if total != 100 {
		t.Errorf("сумма весов редкостей должна быть 100, получено %d", total)
	}

	// Каждая редкость должна иметь хотя бы один тип в каталоге
	for r := range RarityWeights {
		if len(ByRarity(r)) == 0 {
			t.Errorf("каталог не содержит ни одного типа редкости %s", r)
		}
	}
}

func TestPlantsHaveGrowth(t *testing.T) {
	plants := Plants()
	if len(plants) == 0 {
		t.Fatal("каталог не содержит растений")
	}
	for _, p := range plants {
		if !p.IsPlant() {
			t.Errorf("%s: Plants вернула не-растение", p.Key)
		}
	}
}

func TestBaseTerrainRegistered(t *testing.T) {
	bt := Get(BaseTerrainKey)
	if bt.IsUnknown() {
		t.Fatal("базовый террейн отсутствует в каталоге")
	}
	if bt.Category != CategoryTerrain {
		t.Errorf("базовый террейн должен быть категории terrain, получено %s", bt.Category)
	}
}

func TestLoadJSONTypes(t *testing.T) {
	dir := t.TempDir()
	payload := `[
		{"key": "moss", "display_name": "Moss", "sprite": "blocks/moss.png", "rarity": "rare", "category": "terrain"},
		{"key": "grass", "display_name": "Lush Grass", "sprite": "blocks/grass2.png", "rarity": "common", "category": "terrain"}
	]`
	if err := os.WriteFile(filepath.Join(dir, "types.json"), []byte(payload), 0644); err != nil {
		t.Fatalf("подготовка файла: %v", err)
	}

	if err := LoadJSONTypes(dir); err != nil {
		t.Fatalf("LoadJSONTypes: %v", err)
	}

	if Get("moss").IsUnknown() {
		t.Error("новый тип из JSON не зарегистрирован")
	}
	if Get("grass").DisplayName != "Lush Grass" {
		t.Error("JSON-оверлей должен переопределять встроенный тип")
	}
	if Get("moss").ImageScale != 1.0 {
		t.Error("ImageScale по умолчанию должен быть 1.0")
	}

	// Восстанавливаем встроенный grass для остальных тестов
	Register(&BlockType{Key: "grass", DisplayName: "Grass", Sprite: "blocks/grass.png", Rarity: RarityCommon, Category: CategoryTerrain})
}
