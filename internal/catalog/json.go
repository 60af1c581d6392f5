package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// jsonType — JSON-представление типа блока для оверлея из каталога ассетов.
type jsonType struct {
	Key         string  `json:"key"`
	DisplayName string  `json:"display_name"`
	Sprite      string  `json:"sprite"`
	Rarity      string  `json:"rarity"`
	Category    string  `json:"category"`
	GrowthDays  int     `json:"growth_days,omitempty"`
	DecayDays   int     `json:"decay_days,omitempty"`
	ImageScale  float64 `json:"image_scale,omitempty"`
	OffsetY     float64 `json:"offset_y,omitempty"`
}

// LoadJSONTypes загружает *.json описания типов блоков из каталога dir
// и регистрирует их поверх встроенного набора. Отсутствующий каталог
// не является ошибкой на стороне вызывающего (вернётся os.ErrNotExist).
func LoadJSONTypes(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("чтение %s: %w", entry.Name(), err)
		}

		var types []jsonType
		if err := json.Unmarshal(data, &types); err != nil {
			return fmt.Errorf("разбор %s: %w", entry.Name(), err)
		}

		for _, jt := range types {
			if jt.Key == "" {
				return fmt.Errorf("%s: тип блока без ключа", entry.Name())
			}
			Register(&BlockType{
				Key:         jt.Key,
				DisplayName: jt.DisplayName,
				Sprite:      jt.Sprite,
				Rarity:      Rarity(jt.Rarity),
				Category:    Category(jt.Category),
				GrowthDays:  jt.GrowthDays,
				DecayDays:   jt.DecayDays,
				ImageScale:  jt.ImageScale,
				OffsetY:     jt.OffsetY,
			})
		}
	}

	return nil
}
