package bridge

import (
	"errors"
	"time"

	"github.com/annel0/growdoro/internal/vec"
)

// CommandKind — вид отложенной мутации сада.
type CommandKind string

const (
	CommandPlace CommandKind = "place"
	CommandMove  CommandKind = "move"
)

// Command — одна мутация, поставленная в очередь. Локальное состояние
// уже обновлено оптимистично; команда несёт всё нужное для отката.
type Command struct {
	ID   string      `json:"id"`
	Seq  uint64      `json:"seq"` // Порядок в журнале
	Kind CommandKind `json:"kind"`

	// place: тип из инвентаря и временный локальный id блока
	Type    string `json:"type,omitempty"`
	LocalID string `json:"local_id,omitempty"`

	// move: id блока и предыдущая позиция для отката
	BlockID string    `json:"block_id,omitempty"`
	PrevPos *vec.Vec3 `json:"prev_pos,omitempty"`

	Pos        vec.Vec3  `json:"pos"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// permanentError помечает ошибку, по которой повторы бессмысленны
// (конфликт координаты, несуществующий блок).
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent оборачивает ошибку как неповторяемую.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent сообщает, что повторы по ошибке не нужны.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
