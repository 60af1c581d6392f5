package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/annel0/growdoro/internal/eventbus"
	"github.com/annel0/growdoro/internal/garden"
	"github.com/annel0/growdoro/internal/interact"
	"github.com/annel0/growdoro/internal/vec"
)

// stubExecutor — управляемый исполнитель для тестов очереди.
type stubExecutor struct {
	mu    sync.Mutex
	calls int
	errs  []error // Ответы по порядку вызовов; после конца — nil
}

func (s *stubExecutor) Execute(ctx context.Context, cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= len(s.errs) {
		return s.errs[s.calls-1]
	}
	return nil
}

func (s *stubExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("результат команды не пришёл")
		return Result{}
	}
}

func TestQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("УспехСПервойПопытки", func(t *testing.T) {
		exec := &stubExecutor{}
		results := make(chan Result, 1)
		q := NewQueue(exec, nil, func(r Result) { results <- r })
		q.backoff = time.Millisecond
		if err := q.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}

		_ = q.Enqueue(Command{ID: "c1", Kind: CommandMove})
		res := waitResult(t, results)
		if res.Err != nil || res.Attempts != 1 {
			t.Errorf("ожидали успех с 1 попытки, получили err=%v attempts=%d", res.Err, res.Attempts)
		}
	})

	t.Run("ПовторПослеВременнойОшибки", func(t *testing.T) {
		exec := &stubExecutor{errs: []error{errors.New("сеть"), errors.New("сеть")}}
		results := make(chan Result, 1)
		q := NewQueue(exec, nil, func(r Result) { results <- r })
		q.backoff = time.Millisecond
		_ = q.Start(ctx)

		_ = q.Enqueue(Command{ID: "c2", Kind: CommandMove})
		res := waitResult(t, results)
		if res.Err != nil || res.Attempts != 3 {
			t.Errorf("ожидали успех с 3 попытки, получили err=%v attempts=%d", res.Err, res.Attempts)
		}
	})

	t.Run("ИсчерпаниеПопытокВозвращаетОшибку", func(t *testing.T) {
		netErr := errors.New("сеть")
		exec := &stubExecutor{errs: []error{netErr, netErr, netErr, netErr}}
		results := make(chan Result, 1)
		q := NewQueue(exec, nil, func(r Result) { results <- r })
		q.backoff = time.Millisecond
		_ = q.Start(ctx)

		_ = q.Enqueue(Command{ID: "c3", Kind: CommandMove})
		res := waitResult(t, results)
		if res.Err == nil || res.Attempts != maxAttempts {
			t.Errorf("ожидали провал после %d попыток, получили err=%v attempts=%d", maxAttempts, res.Err, res.Attempts)
		}
		if exec.callCount() != maxAttempts {
			t.Errorf("исполнитель вызван %d раз", exec.callCount())
		}
	})

	t.Run("ПостояннаяОшибкаБезПовторов", func(t *testing.T) {
		exec := &stubExecutor{errs: []error{Permanent(errors.New("занято")), nil, nil}}
		results := make(chan Result, 1)
		q := NewQueue(exec, nil, func(r Result) { results <- r })
		q.backoff = time.Millisecond
		_ = q.Start(ctx)

		_ = q.Enqueue(Command{ID: "c4", Kind: CommandPlace})
		res := waitResult(t, results)
		if res.Err == nil || res.Attempts != 1 {
			t.Errorf("постоянная ошибка не должна повторяться: err=%v attempts=%d", res.Err, res.Attempts)
		}
	})
}

func TestJournal(t *testing.T) {
	dir := t.TempDir()

	j, err := OpenJournal(dir)
	if err != nil {
		t.Fatalf("открытие журнала: %v", err)
	}

	first := Command{ID: "m1", Kind: CommandMove, BlockID: "b1", Pos: vec.Vec3{X: 1, Y: 2}}
	second := Command{ID: "p1", Kind: CommandPlace, Type: "sunflower", Pos: vec.Vec3{X: 3, Y: 4}}
	if err := j.Append(&first); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Append(&second); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Журнал переживает перезапуск клиента
	j, err = OpenJournal(dir)
	if err != nil {
		t.Fatalf("повторное открытие: %v", err)
	}
	defer j.Close()

	pending, err := j.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("ожидали 2 команды, получили %d", len(pending))
	}
	if pending[0].ID != "m1" || pending[1].ID != "p1" {
		t.Errorf("порядок журнала нарушен: %s, %s", pending[0].ID, pending[1].ID)
	}

	if err := j.Remove(pending[0]); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	pending, _ = j.Pending()
	if len(pending) != 1 || pending[0].ID != "p1" {
		t.Errorf("после удаления ожидали только p1: %+v", pending)
	}
}

func TestStateOptimistic(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("РазмещениеСнимаетИнвентарьИОткатывается", func(t *testing.T) {
		s := NewState(clock)
		s.Resync(nil, map[string]int{"sunflower": 1})

		if !s.PlaceOptimistic("tmp-1", "sunflower", vec.Vec3{X: 2, Y: 2}) {
			t.Fatal("размещение из непустого инвентаря должно пройти")
		}
		if s.HasUnplaced("sunflower") {
			t.Error("инвентарь должен опустеть")
		}
		if _, ok := s.BlockAt(vec.Vec2{X: 2, Y: 2}); !ok {
			t.Error("блок должен появиться локально")
		}

		// Второго блока нет
		if s.PlaceOptimistic("tmp-2", "sunflower", vec.Vec3{X: 3, Y: 3}) {
			t.Error("размещение из пустого инвентаря должно отказать")
		}

		s.RevertPlace("tmp-1", "sunflower")
		if _, ok := s.BlockAt(vec.Vec2{X: 2, Y: 2}); ok {
			t.Error("откат должен убрать блок")
		}
		if !s.HasUnplaced("sunflower") {
			t.Error("откат должен вернуть инвентарь")
		}
	})

	t.Run("ПодтверждениеМеняетIdСохраняяАнимацию", func(t *testing.T) {
		s := NewState(clock)
		s.Resync(nil, map[string]int{"grass": 1})
		s.PlaceOptimistic("tmp-1", "grass", vec.Vec3{X: 0, Y: 0})

		s.ConfirmPlace("tmp-1", &garden.Block{ID: "srv-9", Type: "grass", Pos: &vec.Vec3{X: 0, Y: 0}})

		id, ok := s.BlockAt(vec.Vec2{X: 0, Y: 0})
		if !ok || id != "srv-9" {
			t.Fatalf("ожидали серверный id, получили %q", id)
		}
		for _, b := range s.Blocks() {
			if b.ID == "srv-9" && !b.PlacedAt.Equal(now) {
				t.Error("PlacedAt должен сохраниться от оптимистичного размещения")
			}
		}
	})

	t.Run("ПереносПоднятиеИОткат", func(t *testing.T) {
		s := NewState(clock)
		pos := vec.Vec3{X: 1, Y: 1}
		s.Resync([]*garden.Block{{ID: "b1", Type: "grass", Pos: &pos}}, nil)

		if !s.Hold("b1") {
			t.Fatal("поднятие размещённого блока должно пройти")
		}
		if _, ok := s.BlockAt(vec.Vec2{X: 1, Y: 1}); ok {
			t.Error("поднятый блок не должен рисоваться")
		}

		prev, ok := s.ReleaseTo("b1", vec.Vec3{X: 5, Y: 5})
		if !ok || prev == nil || !prev.Equals(pos) {
			t.Fatalf("ReleaseTo должен вернуть прежнюю позицию: %+v", prev)
		}
		if _, ok := s.BlockAt(vec.Vec2{X: 5, Y: 5}); !ok {
			t.Error("блок должен оказаться на новой позиции")
		}

		s.RevertMove("b1", prev)
		if _, ok := s.BlockAt(vec.Vec2{X: 1, Y: 1}); !ok {
			t.Error("откат должен вернуть блок на исходную позицию")
		}
	})

	t.Run("СобытияШиныПримиряются", func(t *testing.T) {
		s := NewState(clock)
		s.SetOwner("sess:tab-a")
		payload, _ := json.Marshal(map[string]interface{}{
			"owner":    "sess:tab-a",
			"block_id": "remote-1", "type": "oak-tree",
			"pos": map[string]int{"x": 7, "y": 8, "z": 0},
		})
		s.ApplyRemote(&eventbus.Envelope{EventType: eventbus.EventBlockPlaced, Payload: payload})
		if _, ok := s.BlockAt(vec.Vec2{X: 7, Y: 8}); !ok {
			t.Error("блок из другой вкладки должен появиться")
		}

		grant, _ := json.Marshal(map[string]interface{}{"owner": "sess:tab-a", "type": "fern"})
		s.ApplyRemote(&eventbus.Envelope{EventType: eventbus.EventBlockGranted, Payload: grant})
		if !s.HasUnplaced("fern") {
			t.Error("выдача должна пополнить инвентарь")
		}
	})

	t.Run("ЧужиеСобытияОтбрасываются", func(t *testing.T) {
		s := NewState(clock)
		s.SetOwner("sess:tab-a")

		placed, _ := json.Marshal(map[string]interface{}{
			"owner":    "acct:999",
			"block_id": "foreign-1", "type": "grass",
			"pos": map[string]int{"x": 3, "y": 4, "z": 0},
		})
		s.ApplyRemote(&eventbus.Envelope{EventType: eventbus.EventBlockPlaced, Payload: placed})
		if _, ok := s.BlockAt(vec.Vec2{X: 3, Y: 4}); ok {
			t.Error("блок чужого владельца не должен отображаться в нашем саду")
		}

		grant, _ := json.Marshal(map[string]interface{}{"owner": "acct:999", "type": "bonsai"})
		s.ApplyRemote(&eventbus.Envelope{EventType: eventbus.EventBlockGranted, Payload: grant})
		if s.HasUnplaced("bonsai") {
			t.Error("чужая выдача не должна пополнять наш инвентарь")
		}

		// Без известного владельца примирять нечего: всё в корзину.
		blank := NewState(clock)
		blank.ApplyRemote(&eventbus.Envelope{EventType: eventbus.EventBlockPlaced, Payload: placed})
		if len(blank.Blocks()) != 0 {
			t.Error("состояние без владельца не должно принимать события")
		}
	})

	t.Run("ФлагЗасеваОдинРаз", func(t *testing.T) {
		s := NewState(clock)
		if s.SeedAttempted() {
			t.Error("первый вызов должен вернуть false")
		}
		if !s.SeedAttempted() {
			t.Error("повторный вызов должен вернуть true")
		}
	})
}

// fakeAPI — минимальный сервер для теста моста целиком.
type fakeAPI struct {
	mu        sync.Mutex
	seeded    bool
	moveFails int // Сколько раз move отвечает 500 до успеха
	moved     []vec.Vec3
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, status int, data interface{}) {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": status < 400, "message": "", "data": data,
		})
	}

	mux.HandleFunc("/api/blocks", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		placed := []map[string]interface{}{}
		inventory := map[string]int{}
		if f.seeded {
			placed = append(placed, map[string]interface{}{
				"id": "g1", "type": "grass",
				"pos": map[string]int{"x": 0, "y": 0, "z": 0},
			})
			inventory["sunflower"] = 1
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"placed": placed, "inventory": inventory,
		})
	})

	mux.HandleFunc("/api/blocks/seed", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.seeded = true
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, nil)
	})

	mux.HandleFunc("/api/blocks/place", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Type    string `json:"type"`
			X, Y, Z int
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": "srv-42", "type": req.Type,
			"pos": map[string]int{"x": req.X, "y": req.Y, "z": req.Z},
		})
	})

	mux.HandleFunc("/api/blocks/move", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.moveFails > 0 {
			f.moveFails--
			writeJSON(w, http.StatusInternalServerError, nil)
			return
		}
		var req struct {
			ID      string `json:"id"`
			X, Y, Z int
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.moved = append(f.moved, vec.Vec3{X: req.X, Y: req.Y, Z: req.Z})
		writeJSON(w, http.StatusOK, nil)
	})

	return mux
}

func TestBridgeFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := &fakeAPI{moveFails: 1}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	state := NewState(nil)
	b := New(NewClient(srv.URL), state, nil, nil)
	b.queue.backoff = time.Millisecond

	var failedCmds []Command
	var failMu sync.Mutex
	b.OnError = func(cmd Command, err error) {
		failMu.Lock()
		failedCmds = append(failedCmds, cmd)
		failMu.Unlock()
	}

	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Пустой сад при старте засевается и пересинхронизируется
	if _, ok := state.BlockAt(vec.Vec2{X: 0, Y: 0}); !ok {
		t.Fatal("после засева стартовый блок должен быть в состоянии")
	}

	// Размещение из инвентаря: оптимистично + подтверждение сервером
	if !b.Apply(interact.PlaceAction{Type: "sunflower", Tile: vec.Vec2{X: 4, Y: 4}}) {
		t.Fatal("размещение должно примениться")
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if id, ok := state.BlockAt(vec.Vec2{X: 4, Y: 4}); ok && id == "srv-42" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("подтверждение размещения не пришло")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Перенос: первая попытка падает 500, повтор проходит, откат не нужен
	if !b.Apply(interact.PickUpAction{BlockID: "g1", From: vec.Vec2{X: 0, Y: 0}}) {
		t.Fatal("поднятие блока должно примениться")
	}
	if !b.Apply(interact.DropAction{BlockID: "g1", From: vec.Vec2{X: 0, Y: 0}, To: vec.Vec2{X: 2, Y: 2}}) {
		t.Fatal("сброс блока должен примениться")
	}
	deadline = time.Now().Add(2 * time.Second)
	for {
		api.mu.Lock()
		done := len(api.moved) == 1
		api.mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("мутация переноса не дошла до сервера")
		}
		time.Sleep(5 * time.Millisecond)
	}

	failMu.Lock()
	nFailed := len(failedCmds)
	failMu.Unlock()
	if nFailed != 0 {
		t.Errorf("успешный повтор не должен давать откатов: %+v", failedCmds)
	}
	if _, ok := state.BlockAt(vec.Vec2{X: 2, Y: 2}); !ok {
		t.Error("блок должен остаться на новой позиции")
	}
}
