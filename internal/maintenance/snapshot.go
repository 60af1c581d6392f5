package maintenance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/annel0/growdoro/internal/garden"
	"github.com/annel0/growdoro/internal/storage"
	"github.com/annel0/growdoro/internal/vec"
)

// snapshotVersion — версия формата снапшота. Импорт отклоняет
// снапшоты с незнакомой версией вместо молчаливой порчи данных.
const snapshotVersion = 1

// Snapshot — переносимый дамп сада одного владельца.
type Snapshot struct {
	Version    int             `json:"version"`
	Owner      string          `json:"owner"`
	ExportedAt time.Time       `json:"exported_at"`
	Blocks     []SnapshotBlock `json:"blocks"`
}

// SnapshotBlock — блок в снапшоте. PlacedAt не сериализуется:
// это клиентская анимационная метка.
type SnapshotBlock struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Pos       *vec.Vec3  `json:"pos,omitempty"`
	PlantedAt *time.Time `json:"planted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ExportGarden пишет gzip-сжатый JSON-снапшот всех блоков владельца
// (включая инвентарь) в w.
func ExportGarden(ctx context.Context, blocks storage.BlockRepo, owner garden.Owner, w io.Writer) error {
	all, err := blocks.ListByOwner(ctx, owner)
	if err != nil {
		return fmt.Errorf("чтение блоков: %w", err)
	}

	snap := Snapshot{
		Version:    snapshotVersion,
		Owner:      owner.Key(),
		ExportedAt: time.Now().UTC(),
		Blocks:     make([]SnapshotBlock, 0, len(all)),
	}
	for _, b := range all {
		snap.Blocks = append(snap.Blocks, SnapshotBlock{
			ID:        b.ID,
			Type:      b.Type,
			Pos:       b.Pos,
			PlantedAt: b.PlantedAt,
			CreatedAt: b.CreatedAt,
		})
	}

	gz := gzip.NewWriter(w)
	if err := json.NewEncoder(gz).Encode(&snap); err != nil {
		gz.Close()
		return fmt.Errorf("сериализация снапшота: %w", err)
	}
	return gz.Close()
}

// ImportGarden читает снапшот из r и создаёт его блоки для owner.
// Владелец из снапшота игнорируется: импортировать можно в любой сад.
// Существующие блоки не трогаются; конфликт по координате оставляем
// дедупликации.
func ImportGarden(ctx context.Context, blocks storage.BlockRepo, owner garden.Owner, r io.Reader) (int, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("чтение gzip: %w", err)
	}
	defer gz.Close()

	var snap Snapshot
	if err := json.NewDecoder(gz).Decode(&snap); err != nil {
		return 0, fmt.Errorf("разбор снапшота: %w", err)
	}
	if snap.Version != snapshotVersion {
		return 0, fmt.Errorf("неподдерживаемая версия снапшота: %d", snap.Version)
	}

	restored := make([]*garden.Block, 0, len(snap.Blocks))
	for _, sb := range snap.Blocks {
		restored = append(restored, &garden.Block{
			ID:        sb.ID,
			Owner:     owner,
			Type:      sb.Type,
			Pos:       sb.Pos,
			PlantedAt: sb.PlantedAt,
			CreatedAt: sb.CreatedAt,
		})
	}
	if len(restored) == 0 {
		return 0, nil
	}
	if err := blocks.CreateMany(ctx, restored); err != nil {
		return 0, fmt.Errorf("запись блоков: %w", err)
	}
	return len(restored), nil
}
