package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/annel0/growdoro/internal/bridge"
	"github.com/annel0/growdoro/internal/catalog"
	"github.com/annel0/growdoro/internal/config"
	"github.com/annel0/growdoro/internal/eventbus"
	"github.com/annel0/growdoro/internal/garden"
	"github.com/annel0/growdoro/internal/interact"
	"github.com/annel0/growdoro/internal/iso"
	"github.com/annel0/growdoro/internal/logging"
	"github.com/annel0/growdoro/internal/scene"
	"github.com/annel0/growdoro/internal/vec"
)

const (
	defaultWindowW = 1280
	defaultWindowH = 720

	// Мышь всегда указатель 0; касания сдвигаем на +1.
	mousePointerID = 0
)

// Game — ebiten-адаптер: опрос ввода -> машина жестов -> мост -> рендерер.
type Game struct {
	machine  *interact.Machine
	bridge   *bridge.Bridge
	state    *bridge.State
	renderer *scene.Renderer
	proj     *iso.Projector
	cam      *iso.Camera

	mouseDown   bool
	mouseButton ebiten.MouseButton

	touchIDs  []ebiten.TouchID
	touchLast map[ebiten.TouchID][2]float64

	// Отслеживание перетаскивания для превью в кадре.
	dragID   string
	dragTile *vec.Vec2

	detailID string
}

func newGame(m *interact.Machine, br *bridge.Bridge, r *scene.Renderer, proj *iso.Projector, cam *iso.Camera) *Game {
	return &Game{
		machine:   m,
		bridge:    br,
		state:     br.State(),
		renderer:  r,
		proj:      proj,
		cam:       cam,
		touchLast: make(map[ebiten.TouchID][2]float64),
	}
}

func (g *Game) Update() error {
	g.handleKeyboard()

	var actions []interact.Action
	actions = append(actions, g.pollMouse()...)
	actions = append(actions, g.pollTouches()...)
	actions = append(actions, g.machine.Tick()...)

	for _, a := range actions {
		g.apply(a)
	}
	return nil
}

// apply обновляет локальный UI-трекинг и отдаёт действие мосту.
func (g *Game) apply(a interact.Action) {
	switch act := a.(type) {
	case interact.PickUpAction:
		g.dragID = act.BlockID
		tile := act.From
		g.dragTile = &tile
	case interact.DragMoveAction:
		tile := act.Tile
		g.dragTile = &tile
	case interact.DropAction, interact.RevertDragAction:
		g.dragID = ""
		g.dragTile = nil
	case interact.OpenDetailAction:
		g.detailID = act.BlockID
	}

	g.bridge.Apply(a)
}

func (g *Game) handleKeyboard() {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.machine.SetSelection("")
		g.detailID = ""
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		g.machine.SetSelection(g.nextInventoryType(g.machine.Selection()))
	}
}

// nextInventoryType циклически перебирает типы инвентаря по алфавиту.
func (g *Game) nextInventoryType(current string) string {
	inv := g.state.Inventory()
	keys := make([]string, 0, len(inv))
	for k, n := range inv {
		if n > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	for i, k := range keys {
		if k == current {
			return keys[(i+1)%len(keys)]
		}
	}
	return keys[0]
}

func (g *Game) mods() interact.Modifiers {
	return interact.Modifiers{
		Shift: ebiten.IsKeyPressed(ebiten.KeyShift),
		Ctrl:  ebiten.IsKeyPressed(ebiten.KeyControl),
	}
}

func (g *Game) pollMouse() []interact.Action {
	mx, my := ebiten.CursorPosition()
	x, y := float64(mx), float64(my)

	var actions []interact.Action

	if !g.mouseDown {
		for _, b := range []struct {
			eb  ebiten.MouseButton
			btn interact.Button
		}{
			{ebiten.MouseButtonLeft, interact.ButtonLeft},
			{ebiten.MouseButtonMiddle, interact.ButtonMiddle},
			{ebiten.MouseButtonRight, interact.ButtonRight},
		} {
			if inpututil.IsMouseButtonJustPressed(b.eb) {
				actions = append(actions, g.machine.PointerDown(mousePointerID, interact.PointerMouse, b.btn, g.mods(), x, y)...)
				g.mouseDown = true
				g.mouseButton = b.eb
				break
			}
		}
	} else {
		actions = append(actions, g.machine.PointerMove(mousePointerID, x, y)...)
		if inpututil.IsMouseButtonJustReleased(g.mouseButton) {
			actions = append(actions, g.machine.PointerUp(mousePointerID, x, y)...)
			g.mouseDown = false
		}
	}

	if _, wy := ebiten.Wheel(); wy != 0 {
		// У ebiten колесо вверх — положительный Y, у машины — отрицательный
		actions = append(actions, g.machine.Wheel(-wy)...)
	}

	return actions
}

func (g *Game) pollTouches() []interact.Action {
	g.touchIDs = ebiten.AppendTouchIDs(g.touchIDs[:0])

	var actions []interact.Action
	seen := make(map[ebiten.TouchID]bool, len(g.touchIDs))

	for _, tid := range g.touchIDs {
		seen[tid] = true
		tx, ty := ebiten.TouchPosition(tid)
		x, y := float64(tx), float64(ty)
		pid := int(tid) + 1

		if _, known := g.touchLast[tid]; !known {
			actions = append(actions, g.machine.PointerDown(pid, interact.PointerTouch, interact.ButtonLeft, interact.Modifiers{}, x, y)...)
		} else {
			actions = append(actions, g.machine.PointerMove(pid, x, y)...)
		}
		g.touchLast[tid] = [2]float64{x, y}
	}

	for tid, last := range g.touchLast {
		if seen[tid] {
			continue
		}
		actions = append(actions, g.machine.PointerUp(int(tid)+1, last[0], last[1])...)
		delete(g.touchLast, tid)
	}

	return actions
}

func (g *Game) Draw(screen *ebiten.Image) {
	frame := scene.Frame{Blocks: g.state.Blocks()}

	if g.dragID != "" {
		frame.DragType = g.state.HeldType(g.dragID)
		if g.dragTile != nil {
			tile := *g.dragTile
			frame.DragTile = &tile
		}
	} else {
		mx, my := ebiten.CursorPosition()
		tile := g.proj.ScreenToWorld(g.cam, float64(mx), float64(my))
		if id, ok := g.state.BlockAt(tile); ok {
			frame.HoverBlockID = id
		} else {
			frame.HoverTile = &tile
		}
	}

	g.renderer.Draw(screen, frame)
	g.drawHUD(screen)
}

// drawHUD печатает инвентарь и выбор; отладочная строка, не UI.
func (g *Game) drawHUD(screen *ebiten.Image) {
	inv := g.state.Inventory()
	keys := make([]string, 0, len(inv))
	for k := range inv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s x%d", catalog.Get(k).DisplayName, inv[k]))
	}

	line := "Инвентарь: пусто"
	if len(parts) > 0 {
		line = "Инвентарь: " + strings.Join(parts, ", ")
	}
	if sel := g.machine.Selection(); sel != "" {
		line += "  |  выбран: " + sel
	}
	if g.detailID != "" {
		line += "  |  блок: " + g.detailID
	}
	ebitenutil.DebugPrintAt(screen, line, 8, 8)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.renderer.Resize(float64(outsideWidth), float64(outsideHeight))
	return outsideWidth, outsideHeight
}

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или GROWDORO_CONFIG)")
	flag.Parse()

	if err := logging.InitDefaultLogger("garden"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("🌱 Запуск Growdoro Garden...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка чтения конфигурации: %v", err)
	}
	if cfg == nil {
		cfg = &config.Config{}
	}

	assetsDir := cfg.Client.AssetsDir
	if assetsDir == "" {
		assetsDir = "assets"
	}

	if err := catalog.LoadJSONTypes(filepath.Join(assetsDir, "blocks")); err != nil && !os.IsNotExist(err) {
		logging.Error("Ошибка загрузки JSON-типов блоков: %v", err)
	}

	dataDir := cfg.Client.QueueDir
	if dataDir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			cacheDir = "."
		}
		dataDir = filepath.Join(cacheDir, "growdoro")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("❌ Не удалось создать каталог данных %s: %v", dataDir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === ИДЕНТИЧНОСТЬ ===
	client := bridge.NewClient(cfg.Client.GetAPIBaseURL())
	tokenPath := filepath.Join(dataDir, "token")
	ownerPath := filepath.Join(dataDir, "owner")
	var ownerKey string
	if data, err := os.ReadFile(tokenPath); err == nil && len(data) > 0 {
		client.SetToken(strings.TrimSpace(string(data)))
		if raw, err := os.ReadFile(ownerPath); err == nil {
			ownerKey = strings.TrimSpace(string(raw))
		} else {
			logging.Warn("⚠️ Ключ владельца не найден, события шины будут отброшены: %v", err)
		}
		logging.Info("🔑 Используется сохранённый токен")
	} else {
		sessionID, err := client.Anonymous(ctx)
		if err != nil {
			log.Fatalf("❌ Не удалось создать анонимную сессию: %v", err)
		}
		ownerKey = garden.SessionOwner(sessionID).Key()
		if err := os.WriteFile(tokenPath, []byte(client.Token()), 0o600); err != nil {
			logging.Error("Токен не сохранён: %v", err)
		}
		if err := os.WriteFile(ownerPath, []byte(ownerKey), 0o600); err != nil {
			logging.Error("Ключ владельца не сохранён: %v", err)
		}
		logging.Info("👤 Создана анонимная сессия %s", sessionID)
	}

	// === МОСТ ===
	journal, err := bridge.OpenJournal(dataDir)
	if err != nil {
		log.Fatalf("❌ Не удалось открыть журнал команд: %v", err)
	}
	defer journal.Close()

	var bus eventbus.EventBus
	if cfg.EventBus.URL != "" {
		retention := time.Duration(cfg.EventBus.Retention) * time.Hour
		jsBus, err := eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream, retention)
		if err != nil {
			logging.Error("⚠️  NATS недоступен, изменения приедут только через resync: %v", err)
		} else {
			bus = jsBus
		}
	}

	state := bridge.NewState(time.Now)
	state.SetOwner(ownerKey)
	br := bridge.New(client, state, journal, bus)
	br.OnError = func(cmd bridge.Command, err error) {
		logging.Error("❌ Команда %s не применена: %v", cmd.Kind, err)
	}

	if err := br.Start(ctx); err != nil {
		log.Fatalf("❌ Не удалось синхронизировать сад: %v", err)
	}
	defer br.Stop()

	// === СЦЕНА ===
	sprites := scene.NewSpriteStore(assetsDir)
	paths := []string{catalog.GrowingSprite}
	for _, bt := range catalog.All() {
		paths = append(paths, bt.Sprite)
	}
	sprites.LoadAll(paths)

	proj := iso.NewProjector(iso.DefaultGeometry(), defaultWindowW, defaultWindowH)
	cam := iso.NewCamera()
	machine := interact.NewMachine(proj, cam, state, nil)
	renderer := scene.NewRenderer(proj, cam, sprites, nil)

	game := newGame(machine, br, renderer, proj, cam)

	ebiten.SetWindowSize(defaultWindowW, defaultWindowH)
	ebiten.SetWindowTitle("Growdoro")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	logging.Info("✅ Сад синхронизирован, запуск рендера")
	if err := ebiten.RunGame(game); err != nil {
		log.Fatalf("❌ Рендер завершился с ошибкой: %v", err)
	}
}
