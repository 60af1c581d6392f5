package session

import (
	"errors"
	"time"

	"github.com/annel0/growdoro/internal/garden"
)

// Ошибки жизненного цикла сессии.
var (
	ErrSessionFinished = errors.New("session already finished")
	ErrNotPaused       = errors.New("session is not paused")
	ErrAlreadyPaused   = errors.New("session is already paused")
	ErrAlreadyClaimed  = errors.New("rewards already claimed")
	ErrNotCompleted    = errors.New("session is not completed")
)

// Session — одна фокус-сессия таймера. Владелец — аккаунт или
// анонимная сессия браузера, как у блоков.
type Session struct {
	ID          string
	Owner       garden.Owner
	DurationSec int // Запланированная длительность фокуса

	StartedAt        time.Time
	PausedAt         *time.Time // Текущая пауза (nil, если не на паузе)
	TotalPausedSec   int        // Накопленное время пауз
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	RewardsClaimedAt *time.Time
}

// Finished сообщает, что сессия завершена или отменена.
func (s *Session) Finished() bool {
	return s.CompletedAt != nil || s.CancelledAt != nil
}

// Paused сообщает, что сессия на паузе.
func (s *Session) Paused() bool {
	return s.PausedAt != nil
}

// Pause ставит сессию на паузу.
func (s *Session) Pause(now time.Time) error {
	if s.Finished() {
		return ErrSessionFinished
	}
	if s.Paused() {
		return ErrAlreadyPaused
	}
	ts := now
	s.PausedAt = &ts
	return nil
}

// Resume снимает сессию с паузы, накапливая время паузы.
func (s *Session) Resume(now time.Time) error {
	if s.Finished() {
		return ErrSessionFinished
	}
	if !s.Paused() {
		return ErrNotPaused
	}
	s.TotalPausedSec += int(now.Sub(*s.PausedAt).Seconds())
	s.PausedAt = nil
	return nil
}

// Cancel отменяет сессию. Отменённая сессия не даёт наград.
func (s *Session) Cancel(now time.Time) error {
	if s.Finished() {
		return ErrSessionFinished
	}
	ts := now
	s.CancelledAt = &ts
	s.PausedAt = nil
	return nil
}

// Complete завершает сессию успешно.
func (s *Session) Complete(now time.Time) error {
	if s.Finished() {
		return ErrSessionFinished
	}
	if s.Paused() {
		// Завершение с паузы допустимо: пауза закрывается
		s.TotalPausedSec += int(now.Sub(*s.PausedAt).Seconds())
		s.PausedAt = nil
	}
	ts := now
	s.CompletedAt = &ts
	return nil
}

// Claimable проверяет, можно ли забрать награды за сессию.
func (s *Session) Claimable() error {
	if s.CompletedAt == nil {
		return ErrNotCompleted
	}
	if s.RewardsClaimedAt != nil {
		return ErrAlreadyClaimed
	}
	return nil
}
