package auth

import (
	"context"
	"testing"
	"time"

	"github.com/annel0/growdoro/internal/garden"
	"github.com/annel0/growdoro/internal/session"
	"github.com/annel0/growdoro/internal/storage"
	"github.com/annel0/growdoro/internal/vec"
)

func TestTransferService(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	newEnv := func() (*TransferService, *storage.MemoryBlockRepo, *session.MemoryRepo) {
		blocks := storage.NewMemoryBlockRepo()
		sessions := session.NewMemoryRepo()
		return NewTransferService(blocks, sessions, nil), blocks, sessions
	}

	t.Run("ПереносБлоковИСессий", func(t *testing.T) {
		svc, blocks, sessions := newEnv()
		anon := garden.SessionOwner("browser-1")

		placed := &garden.Block{ID: "b1", Owner: anon, Type: "daisy", CreatedAt: t0}
		inv := &garden.Block{ID: "b2", Owner: anon, Type: "fence", CreatedAt: t0}
		_ = blocks.CreateMany(ctx, []*garden.Block{placed, inv})
		_ = blocks.Place(ctx, "b1", vec.Vec3{X: 1, Y: 2}, &t0)
		_ = sessions.Create(ctx, &session.Session{ID: "s1", Owner: anon, StartedAt: t0})

		report, err := svc.Transfer(ctx, "browser-1", 7)
		if err != nil {
			t.Fatalf("Transfer: %v", err)
		}
		if report.BlocksMoved != 2 || report.BlocksUnplaced != 0 || report.SessionsMoved != 1 {
			t.Errorf("Неожиданный отчет: %+v", report)
		}

		acct := garden.AccountOwner(7)
		got, _ := blocks.GetByID(ctx, "b1")
		if got.Owner != acct {
			t.Errorf("Блок b1 не перепривязан: %+v", got.Owner)
		}
		if !got.Placed() || got.Pos.X != 1 {
			t.Error("Размещение блока должно сохраниться при переносе")
		}
		if got.PlantedAt == nil {
			t.Error("PlantedAt должен пережить перенос")
		}

		left, _ := blocks.ListByOwner(ctx, anon)
		if len(left) != 0 {
			t.Errorf("У сессии остались блоки: %d", len(left))
		}
	})

	t.Run("КоллизияКоординатСнимаетБлок", func(t *testing.T) {
		svc, blocks, _ := newEnv()
		anon := garden.SessionOwner("browser-2")
		acct := garden.AccountOwner(9)

		mine := &garden.Block{ID: "a1", Owner: acct, Type: "grass", CreatedAt: t0}
		theirs := &garden.Block{ID: "a2", Owner: anon, Type: "daisy", CreatedAt: t0}
		_ = blocks.CreateMany(ctx, []*garden.Block{mine, theirs})
		_ = blocks.Place(ctx, "a1", vec.Vec3{X: 0, Y: 0}, nil)
		_ = blocks.Place(ctx, "a2", vec.Vec3{X: 0, Y: 0}, &t0) // та же координата, другой владелец

		report, err := svc.Transfer(ctx, "browser-2", 9)
		if err != nil {
			t.Fatalf("Transfer: %v", err)
		}
		if report.BlocksUnplaced != 1 {
			t.Errorf("Ожидался 1 снятый блок, получено %d", report.BlocksUnplaced)
		}

		got, _ := blocks.GetByID(ctx, "a2")
		if got.Placed() {
			t.Error("Конфликтующий блок должен уйти в инвентарь")
		}
		if got.Owner != acct {
			t.Error("Конфликтующий блок все равно переносится на аккаунт")
		}
		if got.PlantedAt == nil {
			t.Error("PlantedAt сохраняется при снятии")
		}
	})

	t.Run("ПовторныйПереносИдемпотентен", func(t *testing.T) {
		svc, blocks, _ := newEnv()
		anon := garden.SessionOwner("browser-3")
		_ = blocks.CreateMany(ctx, []*garden.Block{{ID: "c1", Owner: anon, Type: "daisy", CreatedAt: t0}})

		if _, err := svc.Transfer(ctx, "browser-3", 11); err != nil {
			t.Fatalf("Первый Transfer: %v", err)
		}
		report, err := svc.Transfer(ctx, "browser-3", 11)
		if err != nil {
			t.Fatalf("Повторный Transfer: %v", err)
		}
		if report.BlocksMoved != 0 || report.SessionsMoved != 0 {
			t.Errorf("Повторный перенос должен быть пустым: %+v", report)
		}
	})
}
