package interact

import (
	"math"
	"testing"
	"time"

	"github.com/annel0/growdoro/internal/iso"
	"github.com/annel0/growdoro/internal/vec"
)

// fakeWorld — синтетический сад для тестов машины ввода.
type fakeWorld struct {
	blocks    map[vec.Vec2]string
	inventory map[string]int
}

func (w *fakeWorld) BlockAt(tile vec.Vec2) (string, bool) {
	id, ok := w.blocks[tile]
	return id, ok
}

func (w *fakeWorld) HasUnplaced(typeKey string) bool {
	return w.inventory[typeKey] > 0
}

type fixture struct {
	m     *Machine
	cam   *iso.Camera
	proj  *iso.Projector
	world *fakeWorld
	now   time.Time
}

func newFixture() *fixture {
	f := &fixture{
		cam:  iso.NewCamera(),
		proj: iso.NewProjector(iso.DefaultGeometry(), 800, 600),
		world: &fakeWorld{
			blocks:    map[vec.Vec2]string{{X: 0, Y: 0}: "blk-origin", {X: 3, Y: 2}: "blk-far"},
			inventory: map[string]int{"sunflower": 2},
		},
		now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	f.m = NewMachine(f.proj, f.cam, f.world, func() time.Time { return f.now })
	return f
}

// screenAt возвращает экранную точку центра тайла.
func (f *fixture) screenAt(tile vec.Vec2) (float64, float64) {
	return f.proj.WorldToScreen(f.cam, vec.Vec3{X: tile.X, Y: tile.Y})
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestTapGestures(t *testing.T) {
	t.Run("ТапПоЗанятомуТайлуОткрываетДетали", func(t *testing.T) {
		f := newFixture()
		x, y := f.screenAt(vec.Vec2{X: 0, Y: 0})

		f.m.PointerDown(1, PointerMouse, ButtonLeft, Modifiers{}, x, y)
		f.advance(100 * time.Millisecond)
		actions := f.m.PointerUp(1, x, y)

		if len(actions) != 1 {
			t.Fatalf("ожидали 1 действие, получили %d", len(actions))
		}
		open, ok := actions[0].(OpenDetailAction)
		if !ok || open.BlockID != "blk-origin" {
			t.Errorf("ожидали OpenDetail(blk-origin), получили %+v", actions[0])
		}
	})

	t.Run("ТапПоПустомуТайлуРазмещаетВыбранныйТип", func(t *testing.T) {
		f := newFixture()
		f.m.SetSelection("sunflower")
		tile := vec.Vec2{X: 5, Y: 5}
		x, y := f.screenAt(tile)

		f.m.PointerDown(1, PointerMouse, ButtonLeft, Modifiers{}, x, y)
		actions := f.m.PointerUp(1, x, y)

		if len(actions) != 1 {
			t.Fatalf("ожидали 1 действие, получили %d", len(actions))
		}
		place, ok := actions[0].(PlaceAction)
		if !ok || place.Type != "sunflower" || place.Tile != tile {
			t.Errorf("ожидали Place(sunflower, %v), получили %+v", tile, actions[0])
		}
		if f.m.Selection() != "sunflower" {
			t.Error("выбор должен переживать размещение, пока инвентарь не пуст")
		}
	})

	t.Run("ПустойИнвентарьСбрасываетВыбор", func(t *testing.T) {
		f := newFixture()
		f.m.SetSelection("oak-tree") // в инвентаре нет
		x, y := f.screenAt(vec.Vec2{X: 7, Y: 7})

		f.m.PointerDown(1, PointerMouse, ButtonLeft, Modifiers{}, x, y)
		actions := f.m.PointerUp(1, x, y)

		if len(actions) != 1 {
			t.Fatalf("ожидали 1 действие, получили %d", len(actions))
		}
		if _, ok := actions[0].(ClearSelectionAction); !ok {
			t.Errorf("ожидали ClearSelection, получили %+v", actions[0])
		}
		if f.m.Selection() != "" {
			t.Error("выбор не сброшен")
		}
	})

	t.Run("МедленноеОтпусканиеНеТап", func(t *testing.T) {
		f := newFixture()
		x, y := f.screenAt(vec.Vec2{X: 0, Y: 0})

		f.m.PointerDown(1, PointerMouse, ButtonLeft, Modifiers{}, x, y)
		f.advance(400 * time.Millisecond)
		if actions := f.m.PointerUp(1, x, y); len(actions) != 0 {
			t.Errorf("отпускание через 400мс не должно быть тапом: %+v", actions)
		}
	})

	t.Run("ПраваяКнопкаПодавлена", func(t *testing.T) {
		f := newFixture()
		x, y := f.screenAt(vec.Vec2{X: 0, Y: 0})

		if actions := f.m.PointerDown(1, PointerMouse, ButtonRight, Modifiers{}, x, y); len(actions) != 0 {
			t.Errorf("правая кнопка не должна давать действий: %+v", actions)
		}
		if actions := f.m.PointerUp(1, x, y); len(actions) != 0 {
			t.Errorf("отпускание правой кнопки не должно давать действий: %+v", actions)
		}
	})
}

func TestPanGestures(t *testing.T) {
	t.Run("ShiftЛеваяПанитКамеру", func(t *testing.T) {
		f := newFixture()
		f.m.PointerDown(1, PointerMouse, ButtonLeft, Modifiers{Shift: true}, 100, 100)
		if f.m.State() != StatePanning {
			t.Fatal("shift+левая должна сразу начинать пан")
		}

		f.m.PointerMove(1, 130, 120)
		if f.cam.PanX != 30 || f.cam.PanY != 20 {
			t.Errorf("камера должна следовать 1:1, pan=(%v,%v)", f.cam.PanX, f.cam.PanY)
		}

		actions := f.m.PointerUp(1, 130, 120)
		if len(actions) != 0 || f.m.State() != StateIdle {
			t.Errorf("завершение пана не даёт действий, state=%v actions=%+v", f.m.State(), actions)
		}
	})

	t.Run("СредняяКнопкаПанитКамеру", func(t *testing.T) {
		f := newFixture()
		f.m.PointerDown(1, PointerMouse, ButtonMiddle, Modifiers{}, 0, 0)
		if f.m.State() != StatePanning {
			t.Fatal("средняя кнопка должна начинать пан")
		}
	})

	t.Run("КасаниеПанитПослеПорога", func(t *testing.T) {
		f := newFixture()
		f.m.PointerDown(1, PointerTouch, ButtonLeft, Modifiers{}, 100, 100)

		// Дрожание под порогом пан не начинает
		f.m.PointerMove(1, 104, 103)
		if f.m.State() != StateIdle {
			t.Fatal("движение под порогом не должно начинать пан")
		}

		f.m.PointerMove(1, 115, 100)
		if f.m.State() != StatePanning {
			t.Fatal("движение сверх 10px должно начинать пан")
		}
		if f.cam.PanX != 15 {
			t.Errorf("камера должна догнать полный сдвиг от старта, PanX=%v", f.cam.PanX)
		}

		// Пан не превращается в тап при отпускании
		f.advance(50 * time.Millisecond)
		if actions := f.m.PointerUp(1, 115, 100); len(actions) != 0 {
			t.Errorf("после пана тап невозможен: %+v", actions)
		}
	})
}

func TestZoom(t *testing.T) {
	t.Run("КолесоЗумируетСКлампом", func(t *testing.T) {
		f := newFixture()
		f.m.Wheel(-120)
		if math.Abs(f.cam.Zoom-WheelZoomStep) > 1e-9 {
			t.Errorf("зум после одного щелчка: %v", f.cam.Zoom)
		}

		for i := 0; i < 50; i++ {
			f.m.Wheel(-120)
		}
		if f.cam.Zoom != iso.MaxZoom {
			t.Errorf("зум должен упереться в %v, получили %v", iso.MaxZoom, f.cam.Zoom)
		}

		for i := 0; i < 100; i++ {
			f.m.Wheel(120)
		}
		if f.cam.Zoom != iso.MinZoom {
			t.Errorf("зум должен упереться в %v, получили %v", iso.MinZoom, f.cam.Zoom)
		}
	})

	t.Run("ПинчЗумируетПоОтношениюДистанций", func(t *testing.T) {
		f := newFixture()
		f.m.PointerDown(1, PointerTouch, ButtonLeft, Modifiers{}, 100, 300)
		f.m.PointerDown(2, PointerTouch, ButtonLeft, Modifiers{}, 200, 300)

		// Разводим пальцы вдвое: зум x2
		f.m.PointerMove(2, 300, 300)
		if math.Abs(f.cam.Zoom-2.0) > 1e-9 {
			t.Errorf("ожидали зум 2.0, получили %v", f.cam.Zoom)
		}

		// База перебазировалась: ещё одно движение считает от новой дистанции
		f.m.PointerMove(2, 400, 300)
		if math.Abs(f.cam.Zoom-3.0) > 1e-9 {
			t.Errorf("ожидали зум 3.0, получили %v", f.cam.Zoom)
		}

		// Отпускание одного пальца завершает пинч без жестов
		f.m.PointerUp(2, 400, 300)
		f.advance(10 * time.Millisecond)
		if actions := f.m.PointerUp(1, 100, 300); len(actions) != 0 {
			t.Errorf("конец пинча не должен давать тап: %+v", actions)
		}
	})
}

func TestDragGestures(t *testing.T) {
	t.Run("CtrlЛеваяПоднимаетИПереноситБлок", func(t *testing.T) {
		f := newFixture()
		from := vec.Vec2{X: 3, Y: 2}
		x, y := f.screenAt(from)

		actions := f.m.PointerDown(1, PointerMouse, ButtonLeft, Modifiers{Ctrl: true}, x, y)
		if len(actions) != 1 {
			t.Fatalf("ожидали PickUp, получили %+v", actions)
		}
		pick := actions[0].(PickUpAction)
		if pick.BlockID != "blk-far" || pick.From != from {
			t.Errorf("PickUp не совпал: %+v", pick)
		}

		// Превью следует за указателем
		to := vec.Vec2{X: 6, Y: 6}
		tx, ty := f.screenAt(to)
		moveActions := f.m.PointerMove(1, tx, ty)
		if len(moveActions) != 1 {
			t.Fatalf("ожидали DragMove, получили %+v", moveActions)
		}
		if dm := moveActions[0].(DragMoveAction); dm.Tile != to {
			t.Errorf("DragMove тайл: %+v", dm)
		}

		upActions := f.m.PointerUp(1, tx, ty)
		if len(upActions) != 1 {
			t.Fatalf("ожидали Drop, получили %+v", upActions)
		}
		drop := upActions[0].(DropAction)
		if drop.BlockID != "blk-far" || drop.From != from || drop.To != to {
			t.Errorf("Drop не совпал: %+v", drop)
		}
	})

	t.Run("СбросНаЗанятыйТайлВозвращаетБлок", func(t *testing.T) {
		f := newFixture()
		from := vec.Vec2{X: 3, Y: 2}
		x, y := f.screenAt(from)
		f.m.PointerDown(1, PointerMouse, ButtonLeft, Modifiers{Ctrl: true}, x, y)

		// Отпускаем над другим занятым тайлом
		ox, oy := f.screenAt(vec.Vec2{X: 0, Y: 0})
		actions := f.m.PointerUp(1, ox, oy)
		if len(actions) != 1 {
			t.Fatalf("ожидали Revert, получили %+v", actions)
		}
		revert := actions[0].(RevertDragAction)
		if revert.BlockID != "blk-far" || revert.To != from {
			t.Errorf("Revert не совпал: %+v", revert)
		}
	})

	t.Run("ДолгоеНажатиеНачинаетПеренос", func(t *testing.T) {
		f := newFixture()
		x, y := f.screenAt(vec.Vec2{X: 0, Y: 0})
		f.m.PointerDown(1, PointerTouch, ButtonLeft, Modifiers{}, x, y)

		// До 500мс перенос не начинается
		f.advance(300 * time.Millisecond)
		if actions := f.m.Tick(); len(actions) != 0 {
			t.Fatalf("перенос начался раньше времени: %+v", actions)
		}

		f.advance(250 * time.Millisecond)
		actions := f.m.Tick()
		if len(actions) != 1 {
			t.Fatalf("ожидали PickUp, получили %+v", actions)
		}
		if pick := actions[0].(PickUpAction); pick.BlockID != "blk-origin" {
			t.Errorf("PickUp не совпал: %+v", pick)
		}
		if f.m.State() != StateDragging {
			t.Error("машина должна перейти в dragging")
		}
	})

	t.Run("ДолгоеНажатиеНаПустомТайлеГаситТап", func(t *testing.T) {
		f := newFixture()
		f.m.SetSelection("sunflower")
		x, y := f.screenAt(vec.Vec2{X: 9, Y: 9})
		f.m.PointerDown(1, PointerTouch, ButtonLeft, Modifiers{}, x, y)

		f.advance(600 * time.Millisecond)
		f.m.Tick()
		if actions := f.m.PointerUp(1, x, y); len(actions) != 0 {
			t.Errorf("после долгого нажатия тап невозможен: %+v", actions)
		}
	})

	t.Run("УходУказателяВозвращаетБлок", func(t *testing.T) {
		f := newFixture()
		x, y := f.screenAt(vec.Vec2{X: 3, Y: 2})
		f.m.PointerDown(1, PointerMouse, ButtonLeft, Modifiers{Ctrl: true}, x, y)

		actions := f.m.PointerLeave()
		if len(actions) != 1 {
			t.Fatalf("ожидали Revert, получили %+v", actions)
		}
		if _, ok := actions[0].(RevertDragAction); !ok {
			t.Errorf("ожидали RevertDragAction, получили %+v", actions[0])
		}
		if f.m.State() != StateIdle {
			t.Error("машина должна вернуться в idle")
		}
	})
}
