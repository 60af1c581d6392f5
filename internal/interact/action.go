package interact

import "github.com/annel0/growdoro/internal/vec"

// Action — намерение пользователя, извлечённое из жеста. Камера
// мутируется машиной напрямую; всё, что касается сада, отдаётся
// наружу и исполняется мостом.
type Action interface {
	isAction()
}

// OpenDetailAction — клик по занятому тайлу: открыть детали блока.
type OpenDetailAction struct {
	BlockID string
}

// PickUpAction — блок поднят для перетаскивания и убран
// из локального списка отрисовки.
type PickUpAction struct {
	BlockID string
	From    vec.Vec2
}

// DragMoveAction — перетаскиваемый блок следует за указателем (превью).
type DragMoveAction struct {
	Tile vec.Vec2
}

// DropAction — блок отпущен на свободный тайл: локальное размещение
// плюс мутация позиции во внешнем хранилище.
type DropAction struct {
	BlockID  string
	From, To vec.Vec2
}

// RevertDragAction — цель занята или жест прерван: блок возвращается
// на исходную позицию, мутация не отправляется.
type RevertDragAction struct {
	BlockID string
	To      vec.Vec2
}

// PlaceAction — размещение выбранного типа из инвентаря на пустой тайл.
type PlaceAction struct {
	Type string
	Tile vec.Vec2
}

// ClearSelectionAction — в инвентаре не осталось блоков выбранного типа.
type ClearSelectionAction struct {
	Type string
}

func (OpenDetailAction) isAction()     {}
func (PickUpAction) isAction()         {}
func (DragMoveAction) isAction()       {}
func (DropAction) isAction()           {}
func (RevertDragAction) isAction()     {}
func (PlaceAction) isAction()          {}
func (ClearSelectionAction) isAction() {}
