package session

import (
	"context"
	"testing"
	"time"

	"github.com/annel0/growdoro/internal/garden"
)

func TestSessionLifecycle(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("ПаузаИВозобновление", func(t *testing.T) {
		s := &Session{ID: "s1", Owner: garden.SessionOwner("anon"), DurationSec: 1500, StartedAt: t0}

		if err := s.Pause(t0.Add(5 * time.Minute)); err != nil {
			t.Fatalf("Pause: %v", err)
		}
		if err := s.Pause(t0.Add(6 * time.Minute)); err != ErrAlreadyPaused {
			t.Errorf("Повторная пауза должна вернуть ErrAlreadyPaused, получено %v", err)
		}
		if err := s.Resume(t0.Add(8 * time.Minute)); err != nil {
			t.Fatalf("Resume: %v", err)
		}
		if s.TotalPausedSec != 180 {
			t.Errorf("Ожидалось 180 секунд паузы, получено %d", s.TotalPausedSec)
		}
		if err := s.Resume(t0.Add(9 * time.Minute)); err != ErrNotPaused {
			t.Errorf("Resume без паузы должен вернуть ErrNotPaused, получено %v", err)
		}
	})

	t.Run("ЗавершениеСПаузы", func(t *testing.T) {
		s := &Session{ID: "s2", Owner: garden.SessionOwner("anon"), StartedAt: t0}
		_ = s.Pause(t0.Add(time.Minute))
		if err := s.Complete(t0.Add(2 * time.Minute)); err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if s.Paused() {
			t.Error("После завершения сессия не должна оставаться на паузе")
		}
		if s.TotalPausedSec != 60 {
			t.Errorf("Пауза должна закрыться при завершении, получено %d сек", s.TotalPausedSec)
		}
	})

	t.Run("ОтменаФинальна", func(t *testing.T) {
		s := &Session{ID: "s3", Owner: garden.AccountOwner(7), StartedAt: t0}
		if err := s.Cancel(t0.Add(time.Minute)); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if err := s.Complete(t0.Add(2 * time.Minute)); err != ErrSessionFinished {
			t.Errorf("Complete после отмены должен вернуть ErrSessionFinished, получено %v", err)
		}
		if err := s.Pause(t0.Add(2 * time.Minute)); err != ErrSessionFinished {
			t.Errorf("Pause после отмены должен вернуть ErrSessionFinished, получено %v", err)
		}
	})

	t.Run("Claimable", func(t *testing.T) {
		s := &Session{ID: "s4", Owner: garden.AccountOwner(7), StartedAt: t0}
		if err := s.Claimable(); err != ErrNotCompleted {
			t.Errorf("Незавершённая сессия: ожидался ErrNotCompleted, получено %v", err)
		}
		_ = s.Complete(t0.Add(25 * time.Minute))
		if err := s.Claimable(); err != nil {
			t.Errorf("Завершённая неразыгранная сессия должна быть claimable: %v", err)
		}
		ts := t0.Add(26 * time.Minute)
		s.RewardsClaimedAt = &ts
		if err := s.Claimable(); err != ErrAlreadyClaimed {
			t.Errorf("Ожидался ErrAlreadyClaimed, получено %v", err)
		}
	})
}

func TestMemoryRepo(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	owner := garden.SessionOwner("browser-1")

	t.Run("CreateGetSave", func(t *testing.T) {
		s := &Session{ID: "a", Owner: owner, DurationSec: 1500, StartedAt: t0}
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
		got, err := repo.GetByID(ctx, "a")
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.DurationSec != 1500 {
			t.Errorf("DurationSec = %d", got.DurationSec)
		}

		_ = got.Complete(t0.Add(25 * time.Minute))
		if err := repo.Save(ctx, got); err != nil {
			t.Fatalf("Save: %v", err)
		}
		again, _ := repo.GetByID(ctx, "a")
		if again.CompletedAt == nil {
			t.Error("CompletedAt не сохранился")
		}
	})

	t.Run("ClaimRewardsОдинРаз", func(t *testing.T) {
		s := &Session{ID: "b", Owner: owner, StartedAt: t0}
		_ = s.Complete(t0.Add(time.Hour))
		_ = repo.Create(ctx, s)

		if err := repo.ClaimRewards(ctx, "b", t0.Add(61*time.Minute)); err != nil {
			t.Fatalf("Первый ClaimRewards: %v", err)
		}
		if err := repo.ClaimRewards(ctx, "b", t0.Add(62*time.Minute)); err != ErrAlreadyClaimed {
			t.Errorf("Второй ClaimRewards: ожидался ErrAlreadyClaimed, получено %v", err)
		}
	})

	t.Run("ListByOwnerНовыеПервыми", func(t *testing.T) {
		other := garden.AccountOwner(42)
		_ = repo.Create(ctx, &Session{ID: "c1", Owner: other, StartedAt: t0})
		_ = repo.Create(ctx, &Session{ID: "c2", Owner: other, StartedAt: t0.Add(time.Hour)})

		list, err := repo.ListByOwner(ctx, other, 0)
		if err != nil {
			t.Fatalf("ListByOwner: %v", err)
		}
		if len(list) != 2 || list[0].ID != "c2" {
			t.Errorf("Ожидался порядок [c2 c1], получено %+v", list)
		}
	})

	t.Run("SetOwnerПереносит", func(t *testing.T) {
		from := garden.SessionOwner("old-browser")
		to := garden.AccountOwner(99)
		_ = repo.Create(ctx, &Session{ID: "d1", Owner: from, StartedAt: t0})
		_ = repo.Create(ctx, &Session{ID: "d2", Owner: from, StartedAt: t0})

		n, err := repo.SetOwner(ctx, from, to)
		if err != nil {
			t.Fatalf("SetOwner: %v", err)
		}
		if n != 2 {
			t.Errorf("Ожидалось 2 перенесённых сессии, получено %d", n)
		}
		list, _ := repo.ListByOwner(ctx, to, 0)
		if len(list) != 2 {
			t.Errorf("После переноса у аккаунта должно быть 2 сессии, найдено %d", len(list))
		}
	})
}
