package interact

import (
	"math"
	"time"

	"github.com/annel0/growdoro/internal/iso"
	"github.com/annel0/growdoro/internal/vec"
)

// Состояния машины ввода.
type State int

const (
	StateIdle State = iota
	StatePanning
	StateDragging
)

// Пороги жестов.
const (
	// PanThresholdPx — движение одиночного касания сверх этого порога
	// начинает пан (а не тап).
	PanThresholdPx = 10.0

	// TapMaxDuration — отпускание без движения быстрее этого — тап.
	TapMaxDuration = 300 * time.Millisecond

	// LongPressDuration — удержание касания на занятом тайле дольше
	// этого начинает перетаскивание блока.
	LongPressDuration = 500 * time.Millisecond

	// WheelZoomStep — множитель зума на один щелчок колеса.
	WheelZoomStep = 1.1
)

// PointerKind различает мышь и касание: у них разные правила пана.
type PointerKind int

const (
	PointerMouse PointerKind = iota
	PointerTouch
)

// Button — кнопка мыши.
type Button int

const (
	ButtonLeft Button = iota
	ButtonMiddle
	ButtonRight
)

// Modifiers — клавиатурные модификаторы в момент события.
type Modifiers struct {
	Shift bool
	Ctrl  bool
}

// World — то, что машина спрашивает у внешнего состояния сада.
type World interface {
	// BlockAt возвращает id размещённого блока на тайле (z = 0 слой выбора).
	BlockAt(tile vec.Vec2) (string, bool)

	// HasUnplaced сообщает, остались ли в инвентаре блоки типа.
	HasUnplaced(typeKey string) bool
}

// Machine интерпретирует события указателя в действия над камерой и садом.
// Источник событий не важен: ebiten-адаптер и тесты подают одни и те же
// вызовы. Камера мутируется напрямую (пан и зум), остальные намерения
// отдаются наружу списком Action.
type Machine struct {
	proj  *iso.Projector
	cam   *iso.Camera
	world World
	clock func() time.Time

	state     State
	selection string // Выбранный тип инвентаря; переживает тапы

	touches map[int]*pointerState
	primary *pointerState

	dragID     string
	dragOrigin vec.Vec2

	pinching  bool
	pinchDist float64
}

type pointerState struct {
	id     int
	kind   PointerKind
	button Button
	mods   Modifiers

	startX, startY float64
	x, y           float64
	downAt         time.Time
	moved          bool // Превышен порог пана: тап уже невозможен
}

// NewMachine создает машину ввода. clock == nil берёт time.Now.
func NewMachine(proj *iso.Projector, cam *iso.Camera, world World, clock func() time.Time) *Machine {
	if clock == nil {
		clock = time.Now
	}
	return &Machine{
		proj:    proj,
		cam:     cam,
		world:   world,
		clock:   clock,
		touches: make(map[int]*pointerState),
	}
}

// State возвращает текущее состояние машины.
func (m *Machine) State() State { return m.state }

// Selection возвращает выбранный тип инвентаря ("" — ничего).
func (m *Machine) Selection() string { return m.selection }

// SetSelection выставляет выбранный тип инвентаря. Выбор персистентен:
// он не сбрасывается тапами и панами, только размещением последнего
// блока типа или явным вызовом с "".
func (m *Machine) SetSelection(typeKey string) { m.selection = typeKey }

// tileAt возвращает тайл сетки под экранной точкой.
func (m *Machine) tileAt(x, y float64) vec.Vec2 {
	return m.proj.ScreenToWorld(m.cam, x, y)
}

// PointerDown обрабатывает нажатие кнопки мыши или начало касания.
func (m *Machine) PointerDown(id int, kind PointerKind, button Button, mods Modifiers, x, y float64) []Action {
	// Контекстного меню и удаления с канваса нет
	if button == ButtonRight {
		return nil
	}

	p := &pointerState{
		id: id, kind: kind, button: button, mods: mods,
		startX: x, startY: y, x: x, y: y,
		downAt: m.clock(),
	}

	if kind == PointerTouch {
		m.touches[id] = p
		if len(m.touches) == 2 {
			// Второе касание: любой незавершённый жест превращается в пинч
			m.cancelPending()
			m.pinching = true
			m.pinchDist = m.touchDistance()
			return nil
		}
		if len(m.touches) > 2 {
			return nil
		}
		m.primary = p
		return nil
	}

	// Мышь
	m.primary = p

	// Пан: средняя кнопка или shift+левая
	if button == ButtonMiddle || (button == ButtonLeft && mods.Shift) {
		m.state = StatePanning
		return nil
	}

	// Ctrl+левая на занятом тайле поднимает блок сразу
	if button == ButtonLeft && mods.Ctrl {
		tile := m.tileAt(x, y)
		if blockID, ok := m.world.BlockAt(tile); ok {
			m.beginDrag(blockID, tile)
			return []Action{PickUpAction{BlockID: blockID, From: tile}}
		}
	}
	return nil
}

// PointerMove обрабатывает движение указателя.
func (m *Machine) PointerMove(id int, x, y float64) []Action {
	if m.pinching {
		if p, ok := m.touches[id]; ok {
			p.x, p.y = x, y
		}
		return m.pinchZoom()
	}

	p := m.pointerByID(id)
	if p == nil {
		return nil
	}
	dx, dy := x-p.x, y-p.y
	p.x, p.y = x, y

	switch m.state {
	case StatePanning:
		m.cam.PanBy(dx, dy)
		return nil

	case StateDragging:
		return []Action{DragMoveAction{Tile: m.tileAt(x, y)}}
	}

	// Idle с зажатым указателем: следим за порогом пана
	if !p.moved && p.distanceFromStart() > PanThresholdPx {
		p.moved = true
		if p.kind == PointerTouch {
			// Одиночное касание сверх порога — пан
			m.state = StatePanning
			m.cam.PanBy(x-p.startX, y-p.startY)
		}
	}
	return nil
}

// PointerUp обрабатывает отпускание кнопки или конец касания.
func (m *Machine) PointerUp(id int, x, y float64) []Action {
	if p, ok := m.touches[id]; ok {
		delete(m.touches, id)
		if m.pinching {
			if len(m.touches) < 2 {
				m.pinching = false
				// Оставшееся касание становится основным без жеста
				for _, rest := range m.touches {
					rest.startX, rest.startY = rest.x, rest.y
					rest.moved = true
					m.primary = rest
				}
				if len(m.touches) == 0 {
					m.primary = nil
				}
			}
			return nil
		}
		if m.primary == p {
			m.primary = nil
		}
		return m.finishPointer(p, x, y)
	}

	p := m.primary
	if p == nil || p.id != id {
		return nil
	}
	m.primary = nil
	return m.finishPointer(p, x, y)
}

// PointerLeave завершает активные жесты при уходе указателя с канваса.
func (m *Machine) PointerLeave() []Action {
	var actions []Action
	if m.state == StateDragging {
		actions = append(actions, RevertDragAction{BlockID: m.dragID, To: m.dragOrigin})
	}
	m.state = StateIdle
	m.dragID = ""
	m.primary = nil
	m.touches = make(map[int]*pointerState)
	m.pinching = false
	return actions
}

// Wheel зумирует камеру колесом. deltaY > 0 — от себя (отдаление).
func (m *Machine) Wheel(deltaY float64) []Action {
	if deltaY < 0 {
		m.cam.ZoomBy(WheelZoomStep)
	} else if deltaY > 0 {
		m.cam.ZoomBy(1 / WheelZoomStep)
	}
	return nil
}

// Tick продвигает таймер долгого нажатия; вызывается каждый кадр.
func (m *Machine) Tick() []Action {
	if m.state != StateIdle || m.primary == nil || m.primary.kind != PointerTouch {
		return nil
	}
	p := m.primary
	if p.moved || m.clock().Sub(p.downAt) < LongPressDuration {
		return nil
	}

	tile := m.tileAt(p.x, p.y)
	blockID, ok := m.world.BlockAt(tile)
	if !ok {
		// Долгое нажатие на пустом тайле ничего не значит,
		// но тапом оно уже не станет
		p.moved = true
		return nil
	}
	m.beginDrag(blockID, tile)
	return []Action{PickUpAction{BlockID: blockID, From: tile}}
}

// finishPointer разбирает отпускание основного указателя.
func (m *Machine) finishPointer(p *pointerState, x, y float64) []Action {
	switch m.state {
	case StatePanning:
		m.state = StateIdle
		return nil

	case StateDragging:
		m.state = StateIdle
		blockID, origin := m.dragID, m.dragOrigin
		m.dragID = ""

		target := m.tileAt(x, y)
		if _, occupied := m.world.BlockAt(target); occupied {
			// Занято: блок возвращается, мутация не отправляется
			return []Action{RevertDragAction{BlockID: blockID, To: origin}}
		}
		return []Action{DropAction{BlockID: blockID, From: origin, To: target}}
	}

	// Тап: быстрое отпускание без движения
	if p.moved || m.clock().Sub(p.downAt) >= TapMaxDuration {
		return nil
	}
	return m.tap(m.tileAt(x, y))
}

// tap обрабатывает короткий клик/тап по тайлу.
func (m *Machine) tap(tile vec.Vec2) []Action {
	if blockID, ok := m.world.BlockAt(tile); ok {
		// Открытие деталей никогда не совмещается с размещением
		return []Action{OpenDetailAction{BlockID: blockID}}
	}

	if m.selection == "" {
		return nil
	}
	if !m.world.HasUnplaced(m.selection) {
		// Пустой инвентарь: мутации нет, выбор сбрасывается
		typeKey := m.selection
		m.selection = ""
		return []Action{ClearSelectionAction{Type: typeKey}}
	}
	return []Action{PlaceAction{Type: m.selection, Tile: tile}}
}

func (m *Machine) beginDrag(blockID string, origin vec.Vec2) {
	m.state = StateDragging
	m.dragID = blockID
	m.dragOrigin = origin
	if m.primary != nil {
		m.primary.moved = true
	}
}

// cancelPending сбрасывает незавершённый одиночный жест (начало пинча).
func (m *Machine) cancelPending() {
	if m.state == StatePanning {
		m.state = StateIdle
	}
	for _, p := range m.touches {
		p.moved = true
	}
}

// pinchZoom пересчитывает зум по отношению текущей дистанции к базовой.
// База перебазируется каждый кадр, чтобы жест не накапливал ошибку.
func (m *Machine) pinchZoom() []Action {
	dist := m.touchDistance()
	if m.pinchDist > 0 && dist > 0 {
		m.cam.ZoomBy(dist / m.pinchDist)
	}
	m.pinchDist = dist
	return nil
}

func (m *Machine) touchDistance() float64 {
	pts := make([]*pointerState, 0, 2)
	for _, p := range m.touches {
		pts = append(pts, p)
		if len(pts) == 2 {
			break
		}
	}
	if len(pts) < 2 {
		return 0
	}
	return math.Hypot(pts[0].x-pts[1].x, pts[0].y-pts[1].y)
}

func (m *Machine) pointerByID(id int) *pointerState {
	if p, ok := m.touches[id]; ok {
		return p
	}
	if m.primary != nil && m.primary.id == id {
		return m.primary
	}
	return nil
}

func (p *pointerState) distanceFromStart() float64 {
	return math.Hypot(p.x-p.startX, p.y-p.startY)
}
