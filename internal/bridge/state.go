package bridge

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/annel0/growdoro/internal/catalog"
	"github.com/annel0/growdoro/internal/eventbus"
	"github.com/annel0/growdoro/internal/garden"
	"github.com/annel0/growdoro/internal/logging"
	"github.com/annel0/growdoro/internal/vec"
)

// State — локальное зеркало сада владельца: размещённые блоки для
// отрисовки, поднятые (перетаскиваемые) блоки и счётчики инвентаря.
// Единственный владелец — активный вид; конкурентный доступ только
// между кадровым циклом и горутинами очереди/шины, отсюда мьютекс.
type State struct {
	mu    sync.RWMutex
	clock func() time.Time

	ownerKey string // Ключ владельца в формате garden.Owner.Key()

	placed    map[string]*garden.Block
	held      map[string]*garden.Block // Поднятые перетаскиванием
	inventory map[string]int

	seedAttempted bool
}

// NewState создает пустое локальное состояние. clock == nil берёт time.Now.
func NewState(clock func() time.Time) *State {
	if clock == nil {
		clock = time.Now
	}
	return &State{
		clock:     clock,
		placed:    make(map[string]*garden.Block),
		held:      make(map[string]*garden.Block),
		inventory: make(map[string]int),
	}
}

// SetOwner задаёт ключ владельца, чьи события шины примиряются с
// локальным состоянием. Известен с момента входа или создания
// анонимной сессии.
func (s *State) SetOwner(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownerKey = key
}

// OwnerKey возвращает ключ локального владельца.
func (s *State) OwnerKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownerKey
}

// Resync полностью замещает локальное состояние данными сервера.
func (s *State) Resync(placed []*garden.Block, inventory map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.placed = make(map[string]*garden.Block, len(placed))
	for _, b := range placed {
		s.placed[b.ID] = b
	}
	s.held = make(map[string]*garden.Block)
	s.inventory = make(map[string]int, len(inventory))
	for k, v := range inventory {
		s.inventory[k] = v
	}
}

// Blocks возвращает снимок размещённых блоков для отрисовки.
func (s *State) Blocks() []*garden.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*garden.Block, 0, len(s.placed))
	for _, b := range s.placed {
		out = append(out, b)
	}
	return out
}

// Inventory возвращает копию счётчиков инвентаря.
func (s *State) Inventory() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.inventory))
	for k, v := range s.inventory {
		out[k] = v
	}
	return out
}

// BlockAt возвращает id размещённого блока на тайле.
func (s *State) BlockAt(tile vec.Vec2) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.placed {
		if b.Pos != nil && b.Pos.X == tile.X && b.Pos.Y == tile.Y {
			return b.ID, true
		}
	}
	return "", false
}

// HasUnplaced сообщает, остались ли в инвентаре блоки типа.
func (s *State) HasUnplaced(typeKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inventory[typeKey] > 0
}

// PlaceOptimistic снимает один блок типа с инвентаря и размещает его
// локально под временным id. Сервер выберет собственный блок;
// ConfirmPlace заменит временный id на настоящий.
func (s *State) PlaceOptimistic(localID, typeKey string, pos vec.Vec3) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inventory[typeKey] <= 0 {
		return false
	}
	s.inventory[typeKey]--

	now := s.clock()
	p := pos
	b := &garden.Block{
		ID:        localID,
		Type:      typeKey,
		Pos:       &p,
		PlacedAt:  now,
		CreatedAt: now,
	}
	if catalog.Get(typeKey).IsPlant() {
		ts := now
		b.PlantedAt = &ts
	}
	s.placed[localID] = b
	return true
}

// ConfirmPlace заменяет временный локальный блок серверным.
func (s *State) ConfirmPlace(localID string, confirmed *garden.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()

	local, ok := s.placed[localID]
	if !ok {
		return
	}
	delete(s.placed, localID)
	// PlacedAt локальный: анимация уже идёт, не перезапускаем
	confirmed.PlacedAt = local.PlacedAt
	s.placed[confirmed.ID] = confirmed
}

// RevertPlace откатывает оптимистичное размещение обратно в инвентарь.
func (s *State) RevertPlace(localID, typeKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.placed[localID]; !ok {
		return
	}
	delete(s.placed, localID)
	s.inventory[typeKey]++
}

// Hold поднимает блок для перетаскивания: из списка отрисовки он
// исчезает до Release/ReleaseTo.
func (s *State) Hold(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.placed[id]
	if !ok {
		return false
	}
	delete(s.placed, id)
	s.held[id] = b
	return true
}

// Release возвращает поднятый блок на исходную позицию (жест отменён).
func (s *State) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.held[id]
	if !ok {
		return
	}
	delete(s.held, id)
	s.placed[id] = b
}

// ReleaseTo опускает поднятый блок на новую позицию с перезапуском
// анимации приземления. Возвращает прежнюю позицию для отката.
func (s *State) ReleaseTo(id string, pos vec.Vec3) (*vec.Vec3, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.held[id]
	if !ok {
		return nil, false
	}
	delete(s.held, id)

	prev := b.Pos
	p := pos
	b.Pos = &p
	b.PlacedAt = s.clock()
	s.placed[id] = b
	return prev, true
}

// RevertMove возвращает блок на прежнюю позицию после провала мутации.
func (s *State) RevertMove(id string, prev *vec.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.placed[id]
	if !ok {
		return
	}
	b.Pos = prev
}

// HeldType возвращает тип поднятого блока (для превью перетаскивания).
func (s *State) HeldType(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.held[id]; ok {
		return b.Type
	}
	return ""
}

// Empty сообщает, что у владельца нет ни блоков, ни инвентаря.
func (s *State) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.placed) == 0 && len(s.held) == 0 && len(s.inventory) == 0
}

// SeedAttempted выставляет и возвращает прежнее значение флага засева.
// Флаг локальный: гарантирует не exactly-once, а отсутствие повторных
// попыток из этого клиента; гонки вкладок добивает дедупликация.
func (s *State) SeedAttempted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.seedAttempted
	s.seedAttempted = true
	return prev
}

// blockEventPayload — полезная нагрузка событий block.* из шины.
type blockEventPayload struct {
	Owner   string    `json:"owner"`
	BlockID string    `json:"block_id"`
	Type    string    `json:"type"`
	Pos     *vec.Vec3 `json:"pos"`
}

// ApplyRemote примиряет событие шины с локальным состоянием по правилу
// last-write-observed: позиция из события побеждает локальную.
func (s *State) ApplyRemote(ev *eventbus.Envelope) {
	var payload blockEventPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		logging.Warn("⚠️ Событие %s не разобрано: %v", ev.EventType, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Сабжекты шины общие для всех садов: чужие события отбрасываем,
	// иначе блоки соседей прорастут в локальном состоянии.
	if s.ownerKey == "" || payload.Owner != s.ownerKey {
		return
	}

	switch ev.EventType {
	case eventbus.EventBlockPlaced, eventbus.EventBlockMoved:
		if payload.Pos == nil {
			return
		}
		if b, ok := s.placed[payload.BlockID]; ok {
			b.Pos = payload.Pos
			return
		}
		// Блок размещён из другой вкладки
		s.placed[payload.BlockID] = &garden.Block{
			ID:   payload.BlockID,
			Type: payload.Type,
			Pos:  payload.Pos,
		}

	case eventbus.EventBlockGranted:
		s.inventory[payload.Type]++
	}
}
