package maintenance

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/annel0/growdoro/internal/garden"
	"github.com/annel0/growdoro/internal/storage"
	"github.com/annel0/growdoro/internal/vec"
)

func placedBlock(id string, owner garden.Owner, pos vec.Vec3, createdAt time.Time) *garden.Block {
	p := pos
	return &garden.Block{
		ID:        id,
		Owner:     owner,
		Type:      "grass",
		Pos:       &p,
		CreatedAt: createdAt,
	}
}

func TestDeduper(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("УдаляетДубликатыОставляяСтарейший", func(t *testing.T) {
		repo := storage.NewMemoryBlockRepo()
		alice := garden.AccountOwner(1)
		bob := garden.SessionOwner("sess-b")

		err := repo.CreateMany(ctx, []*garden.Block{
			placedBlock("a1", alice, vec.Vec3{X: 0, Y: 0}, base),
			placedBlock("a2", alice, vec.Vec3{X: 0, Y: 0}, base.Add(time.Minute)),
			placedBlock("a3", alice, vec.Vec3{X: 0, Y: 0}, base.Add(2*time.Minute)),
			placedBlock("a4", alice, vec.Vec3{X: 1, Y: 0}, base),
			placedBlock("b1", bob, vec.Vec3{X: 0, Y: 0}, base),
			placedBlock("b2", bob, vec.Vec3{X: 0, Y: 0}, base.Add(time.Minute)),
		})
		if err != nil {
			t.Fatalf("подготовка блоков: %v", err)
		}

		report, err := NewDeduper(repo, 0).RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
		if report.OwnersScanned != 2 {
			t.Errorf("ожидали 2 владельцев, получили %d", report.OwnersScanned)
		}
		if report.BlocksDeleted != 3 {
			t.Errorf("ожидали 3 удалённых блока, получили %d", report.BlocksDeleted)
		}

		// Выжили самые старые на каждой координате
		for _, id := range []string{"a1", "a4", "b1"} {
			if _, err := repo.GetByID(ctx, id); err != nil {
				t.Errorf("блок %s должен был выжить: %v", id, err)
			}
		}
		for _, id := range []string{"a2", "a3", "b2"} {
			if _, err := repo.GetByID(ctx, id); err != storage.ErrBlockNotFound {
				t.Errorf("блок %s должен был удалиться, err=%v", id, err)
			}
		}
	})

	t.Run("ПовторныйПроходНичегоНеТрогает", func(t *testing.T) {
		repo := storage.NewMemoryBlockRepo()
		owner := garden.AccountOwner(2)
		_ = repo.CreateMany(ctx, []*garden.Block{
			placedBlock("x1", owner, vec.Vec3{X: 0, Y: 0}, base),
			placedBlock("x2", owner, vec.Vec3{X: 0, Y: 0}, base.Add(time.Minute)),
		})

		d := NewDeduper(repo, 0)
		if _, err := d.RunOnce(ctx); err != nil {
			t.Fatalf("первый проход: %v", err)
		}
		report, err := d.RunOnce(ctx)
		if err != nil {
			t.Fatalf("второй проход: %v", err)
		}
		if report.BlocksDeleted != 0 {
			t.Errorf("второй проход удалил %d блоков", report.BlocksDeleted)
		}
	})

	t.Run("ОтменаКонтекстаПрерываетПроход", func(t *testing.T) {
		repo := storage.NewMemoryBlockRepo()
		_ = repo.CreateMany(ctx, []*garden.Block{
			placedBlock("y1", garden.AccountOwner(3), vec.Vec3{X: 0, Y: 0}, base),
		})

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := NewDeduper(repo, 0).RunOnce(cancelled); err != context.Canceled {
			t.Errorf("ожидали context.Canceled, получили %v", err)
		}
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	planted := base.Add(-48 * time.Hour)

	source := storage.NewMemoryBlockRepo()
	owner := garden.AccountOwner(7)

	inventory := &garden.Block{ID: "inv1", Owner: owner, Type: "sunflower", CreatedAt: base}
	tree := placedBlock("t1", owner, vec.Vec3{X: 2, Y: 3, Z: 1}, base)
	tree.Type = "oak-tree"
	tree.PlantedAt = &planted
	_ = source.CreateMany(ctx, []*garden.Block{
		placedBlock("g1", owner, vec.Vec3{X: 0, Y: 0}, base),
		tree,
		inventory,
	})

	var buf bytes.Buffer
	if err := ExportGarden(ctx, source, owner, &buf); err != nil {
		t.Fatalf("экспорт: %v", err)
	}

	// Импортируем в пустой репозиторий под другого владельца
	target := storage.NewMemoryBlockRepo()
	newOwner := garden.AccountOwner(8)
	n, err := ImportGarden(ctx, target, newOwner, &buf)
	if err != nil {
		t.Fatalf("импорт: %v", err)
	}
	if n != 3 {
		t.Fatalf("ожидали 3 восстановленных блока, получили %d", n)
	}

	restored, _ := target.GetByID(ctx, "t1")
	if restored == nil || restored.Owner != newOwner {
		t.Fatalf("блок t1 не перепривязан к новому владельцу: %+v", restored)
	}
	if restored.Pos == nil || !restored.Pos.Equals(vec.Vec3{X: 2, Y: 3, Z: 1}) {
		t.Errorf("позиция не восстановлена: %+v", restored.Pos)
	}
	if restored.PlantedAt == nil || !restored.PlantedAt.Equal(planted) {
		t.Errorf("plantedAt не восстановлен: %+v", restored.PlantedAt)
	}

	inv, _ := target.GetByID(ctx, "inv1")
	if inv == nil || inv.Pos != nil {
		t.Errorf("инвентарный блок должен остаться без позиции: %+v", inv)
	}
}

func TestSnapshotImportErrors(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryBlockRepo()
	owner := garden.AccountOwner(9)

	t.Run("НеGzipПоток", func(t *testing.T) {
		if _, err := ImportGarden(ctx, repo, owner, bytes.NewReader([]byte("plain text"))); err == nil {
			t.Error("ожидали ошибку на не-gzip входе")
		}
	})

	t.Run("ПустойСад", func(t *testing.T) {
		var buf bytes.Buffer
		if err := ExportGarden(ctx, storage.NewMemoryBlockRepo(), owner, &buf); err != nil {
			t.Fatalf("экспорт пустого сада: %v", err)
		}
		n, err := ImportGarden(ctx, repo, owner, &buf)
		if err != nil {
			t.Fatalf("импорт пустого сада: %v", err)
		}
		if n != 0 {
			t.Errorf("ожидали 0 блоков, получили %d", n)
		}
	})
}
