package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/annel0/growdoro/internal/eventbus"
	"github.com/annel0/growdoro/internal/interact"
	"github.com/annel0/growdoro/internal/logging"
)

// Bridge связывает локальное состояние сада с внешним хранилищем:
// мутации уходят через очередь команд с повторами, события шины
// примиряются обратно, провал всех попыток откатывает оптимистичное
// состояние и всплывает пользователю.
type Bridge struct {
	client *Client
	state  *State
	queue  *Queue
	bus    eventbus.EventBus // nil — без живых обновлений

	// OnError вызывается после отката по окончательному провалу команды.
	OnError func(cmd Command, err error)

	sub eventbus.Subscription
}

// New создает мост. journal и bus могут быть nil.
func New(client *Client, state *State, journal *Journal, bus eventbus.EventBus) *Bridge {
	b := &Bridge{
		client: client,
		state:  state,
		bus:    bus,
	}
	b.queue = NewQueue(b, journal, b.handleResult)
	return b
}

// State возвращает локальное состояние (мир для машины ввода и сцены).
func (b *Bridge) State() *State { return b.state }

// Start синхронизирует сад с сервером, при необходимости сеет стартовый
// участок, подписывается на события и запускает очередь команд.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.resync(ctx); err != nil {
		return fmt.Errorf("начальная синхронизация: %w", err)
	}

	// Первый владелец без единого блока получает участок 2x2.
	// Флаг гасит повторные попытки; гонку вкладок чистит сервер.
	if b.state.Empty() && !b.state.SeedAttempted() {
		if err := b.client.SeedGarden(ctx); err != nil {
			logging.Warn("⚠️ Засев стартового участка не удался: %v", err)
		} else if err := b.resync(ctx); err != nil {
			return fmt.Errorf("синхронизация после засева: %w", err)
		}
	}

	if b.bus != nil {
		sub, err := b.bus.Subscribe(ctx, eventbus.Filter{
			Types: []string{
				eventbus.EventBlockPlaced,
				eventbus.EventBlockMoved,
				eventbus.EventBlockGranted,
			},
		}, func(ctx context.Context, ev *eventbus.Envelope) {
			b.state.ApplyRemote(ev)
		})
		if err != nil {
			logging.Warn("⚠️ Подписка на события не удалась, живых обновлений не будет: %v", err)
		} else {
			b.sub = sub
		}
	}

	return b.queue.Start(ctx)
}

// Stop отписывается от шины событий.
func (b *Bridge) Stop() {
	if b.sub != nil {
		b.sub.Unsubscribe()
	}
}

func (b *Bridge) resync(ctx context.Context) error {
	placed, inventory, err := b.client.ListBlocks(ctx)
	if err != nil {
		return err
	}
	b.state.Resync(placed, inventory)
	return nil
}

// Apply исполняет действие машины ввода: оптимистичное локальное
// изменение плюс команда в очередь. Возвращает false, если действие
// не привело к изменению состояния.
func (b *Bridge) Apply(action interact.Action) bool {
	switch a := action.(type) {
	case interact.PlaceAction:
		localID := "local-" + uuid.New().String()
		pos := a.Tile.ToVec3(0)
		if !b.state.PlaceOptimistic(localID, a.Type, pos) {
			return false
		}
		b.enqueue(Command{
			ID:      uuid.New().String(),
			Kind:    CommandPlace,
			Type:    a.Type,
			LocalID: localID,
			Pos:     pos,
		})
		return true

	case interact.PickUpAction:
		return b.state.Hold(a.BlockID)

	case interact.RevertDragAction:
		b.state.Release(a.BlockID)
		return true

	case interact.DropAction:
		pos := a.To.ToVec3(0)
		prev, ok := b.state.ReleaseTo(a.BlockID, pos)
		if !ok {
			return false
		}
		b.enqueue(Command{
			ID:      uuid.New().String(),
			Kind:    CommandMove,
			BlockID: a.BlockID,
			PrevPos: prev,
			Pos:     pos,
		})
		return true
	}
	return false
}

func (b *Bridge) enqueue(cmd Command) {
	if err := b.queue.Enqueue(cmd); err != nil {
		logging.Error("❌ Команда %s не поставлена в очередь: %v", cmd.Kind, err)
		b.revert(cmd, err)
	}
}

// Execute исполняет команду против API (вызывается воркером очереди).
func (b *Bridge) Execute(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CommandPlace:
		confirmed, err := b.client.PlaceBlock(ctx, cmd.Type, cmd.Pos)
		if err != nil {
			return classify(err)
		}
		b.state.ConfirmPlace(cmd.LocalID, confirmed)
		return nil

	case CommandMove:
		if err := b.client.MoveBlock(ctx, cmd.BlockID, cmd.Pos); err != nil {
			return classify(err)
		}
		return nil
	}
	return Permanent(fmt.Errorf("неизвестный вид команды %q", cmd.Kind))
}

// classify помечает ошибки, по которым повторы бессмысленны.
func classify(err error) error {
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized) {
		return Permanent(err)
	}
	return err
}

// handleResult откатывает локальное состояние по окончательному провалу.
func (b *Bridge) handleResult(res Result) {
	if res.Err == nil {
		return
	}
	logging.Error("❌ Команда %s (%s) провалена после %d попыток: %v",
		res.Cmd.ID, res.Cmd.Kind, res.Attempts, res.Err)
	b.revert(res.Cmd, res.Err)
}

func (b *Bridge) revert(cmd Command, err error) {
	switch cmd.Kind {
	case CommandPlace:
		b.state.RevertPlace(cmd.LocalID, cmd.Type)
	case CommandMove:
		b.state.RevertMove(cmd.BlockID, cmd.PrevPos)
	}
	if b.OnError != nil {
		b.OnError(cmd, err)
	}
}
