package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/growdoro/internal/logging"
)

// Политика повторов очереди команд.
const (
	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
	queueDepth   = 64
)

// Executor исполняет команду против внешнего хранилища.
type Executor interface {
	Execute(ctx context.Context, cmd Command) error
}

// Result — итог исполнения команды. Err == nil — успех;
// иначе все попытки исчерпаны и локальное состояние пора откатывать.
type Result struct {
	Cmd      Command
	Err      error
	Attempts int
}

// Queue — явная очередь мутаций place/move. Рендерер не ждёт сервер:
// команда ставится в очередь, UI обновляется оптимистично, а провал
// всех попыток приходит обратно колбэком результата.
type Queue struct {
	exec     Executor
	journal  *Journal // nil — без персистентности
	onResult func(Result)
	cmds     chan Command
	backoff  time.Duration
}

// NewQueue создает очередь команд. journal может быть nil.
func NewQueue(exec Executor, journal *Journal, onResult func(Result)) *Queue {
	if onResult == nil {
		onResult = func(Result) {}
	}
	return &Queue{
		exec:     exec,
		journal:  journal,
		onResult: onResult,
		cmds:     make(chan Command, queueDepth),
		backoff:  retryBackoff,
	}
}

// Start воспроизводит журнал и запускает воркер до отмены контекста.
func (q *Queue) Start(ctx context.Context) error {
	if q.journal != nil {
		pending, err := q.journal.Pending()
		if err != nil {
			return fmt.Errorf("чтение журнала: %w", err)
		}
		for _, cmd := range pending {
			select {
			case q.cmds <- cmd:
			default:
				logging.Warn("⚠️ Очередь переполнена при replay, команда %s отброшена", cmd.ID)
			}
		}
		if len(pending) > 0 {
			logging.Info("🔁 Воспроизведено %d незавершённых команд из журнала", len(pending))
		}
	}

	go q.run(ctx)
	return nil
}

// Enqueue ставит команду в очередь, предварительно журналируя её.
func (q *Queue) Enqueue(cmd Command) error {
	if cmd.EnqueuedAt.IsZero() {
		cmd.EnqueuedAt = time.Now()
	}
	if q.journal != nil {
		if err := q.journal.Append(&cmd); err != nil {
			return fmt.Errorf("журналирование команды: %w", err)
		}
	}

	select {
	case q.cmds <- cmd:
		return nil
	default:
		return fmt.Errorf("очередь команд переполнена")
	}
}

func (q *Queue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-q.cmds:
			q.process(ctx, cmd)
		}
	}
}

// process исполняет команду с повторами и сообщает итог.
func (q *Queue) process(ctx context.Context, cmd Command) {
	var err error
	attempts := 0

	for attempts < maxAttempts {
		attempts++
		err = q.exec.Execute(ctx, cmd)
		if err == nil || IsPermanent(err) || ctx.Err() != nil {
			break
		}

		logging.Warn("⚠️ Команда %s (%s) не прошла, попытка %d/%d: %v",
			cmd.ID, cmd.Kind, attempts, maxAttempts, err)

		select {
		case <-ctx.Done():
			q.onResult(Result{Cmd: cmd, Err: ctx.Err(), Attempts: attempts})
			return
		case <-time.After(q.backoff * time.Duration(attempts)):
		}
	}

	if q.journal != nil {
		if jerr := q.journal.Remove(cmd); jerr != nil {
			logging.Warn("⚠️ Команда %s не удалена из журнала: %v", cmd.ID, jerr)
		}
	}
	q.onResult(Result{Cmd: cmd, Err: err, Attempts: attempts})
}
