package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/annel0/growdoro/internal/catalog"
	"github.com/annel0/growdoro/internal/eventbus"
	"github.com/annel0/growdoro/internal/garden"
	"github.com/annel0/growdoro/internal/logging"
	"github.com/annel0/growdoro/internal/storage"
	"github.com/annel0/growdoro/internal/vec"
)

// BlockJSON — представление блока в API.
type BlockJSON struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Pos       *vec.Vec3  `json:"pos,omitempty"`
	PlantedAt *time.Time `json:"planted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Growing   bool       `json:"growing"`
}

func blockToJSON(b *garden.Block, now time.Time) BlockJSON {
	return BlockJSON{
		ID:        b.ID,
		Type:      b.Type,
		Pos:       b.Pos,
		PlantedAt: b.PlantedAt,
		CreatedAt: b.CreatedAt,
		Growing:   b.Growing(now),
	}
}

// PlaceRequest представляет запрос на размещение блока из инвентаря
type PlaceRequest struct {
	Type string `json:"type" binding:"required"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Z    int    `json:"z"`
}

// MoveRequest представляет запрос на перенос размещённого блока
type MoveRequest struct {
	ID string `json:"id" binding:"required"`
	X  int    `json:"x"`
	Y  int    `json:"y"`
	Z  int    `json:"z"`
}

// handleListBlocks возвращает сад владельца: размещённые блоки и
// инвентарь, сгруппированный по типам
func (rs *RestServer) handleListBlocks(c *gin.Context) {
	owner := currentOwner(c)
	now := time.Now()

	all, err := rs.blocks.ListByOwner(c.Request.Context(), owner)
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка чтения блоков"})
		return
	}

	placed := make([]BlockJSON, 0)
	for _, b := range all {
		if b.Placed() {
			placed = append(placed, blockToJSON(b, now))
		}
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Блоки получены",
		Data: map[string]interface{}{
			"placed":    placed,
			"inventory": garden.CountUnplacedByType(all),
		},
	})
}

// handlePlaceBlock размещает блок из инвентаря на свободную координату
func (rs *RestServer) handlePlaceBlock(c *gin.Context) {
	var req PlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}
	if !catalog.Exists(req.Type) {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неизвестный тип блока"})
		return
	}

	owner := currentOwner(c)
	pos := vec.Vec3{X: req.X, Y: req.Y, Z: req.Z}
	now := time.Now()

	// Первое размещение растения фиксирует посадку
	var plantedAt *time.Time
	if catalog.Get(req.Type).IsPlant() {
		plantedAt = &now
	}

	b, err := rs.blocks.ClaimUnplaced(c.Request.Context(), owner, req.Type, pos, plantedAt)
	switch err {
	case nil:
	case storage.ErrTileOccupied:
		c.JSON(http.StatusConflict, GenericResponse{Success: false, Message: "Координата уже занята"})
		return
	case storage.ErrNoUnplacedBlock:
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "В инвентаре нет блоков этого типа"})
		return
	default:
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка размещения"})
		return
	}

	rs.invalidateGarden(c, owner)
	rs.publishBlockEvent(c, eventbus.EventBlockPlaced, owner, b)

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Блок размещён",
		Data:    blockToJSON(b, now),
	})
}

// handleMoveBlock переносит размещённый блок владельца
func (rs *RestServer) handleMoveBlock(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	owner := currentOwner(c)
	ctx := c.Request.Context()

	b, err := rs.blocks.GetByID(ctx, req.ID)
	if err == storage.ErrBlockNotFound || (err == nil && b.Owner != owner) {
		// Чужие блоки неотличимы от несуществующих
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Блок не найден"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка чтения блока"})
		return
	}
	if !b.Placed() {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Блок не размещён"})
		return
	}

	pos := vec.Vec3{X: req.X, Y: req.Y, Z: req.Z}
	if err := rs.blocks.Move(ctx, req.ID, pos); err != nil {
		if err == storage.ErrTileOccupied {
			c.JSON(http.StatusConflict, GenericResponse{Success: false, Message: "Координата уже занята"})
			return
		}
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка переноса"})
		return
	}
	b.Pos = &pos

	rs.invalidateGarden(c, owner)
	rs.publishBlockEvent(c, eventbus.EventBlockMoved, owner, b)

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Блок перенесён",
		Data:    blockToJSON(b, time.Now()),
	})
}

// handleSeedGarden выдаёт и размещает стартовый участок 2×2 травы.
// Повторный вызов для непустого сада — no-op.
func (rs *RestServer) handleSeedGarden(c *gin.Context) {
	owner := currentOwner(c)
	ctx := c.Request.Context()

	existing, err := rs.blocks.ListByOwner(ctx, owner)
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка чтения блоков"})
		return
	}
	if len(existing) > 0 {
		c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Сад уже засеян"})
		return
	}

	now := time.Now()
	patch := garden.SeedPatch()
	seeded := make([]*garden.Block, 0, len(patch))
	for _, pos := range patch {
		p := pos
		seeded = append(seeded, &garden.Block{
			ID:        uuid.New().String(),
			Owner:     owner,
			Type:      catalog.BaseTerrainKey,
			Pos:       &p,
			CreatedAt: now,
		})
	}
	if err := rs.blocks.CreateMany(ctx, seeded); err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка засева"})
		return
	}

	rs.invalidateGarden(c, owner)
	logging.Info("🌱 Засеян стартовый участок (owner=%s)", owner.Key())

	out := make([]BlockJSON, 0, len(seeded))
	for _, b := range seeded {
		out = append(out, blockToJSON(b, now))
	}
	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Стартовый участок засеян",
		Data:    out,
	})
}

// invalidateGarden сбрасывает Redis-кеш публичного сада владельца.
func (rs *RestServer) invalidateGarden(c *gin.Context, owner garden.Owner) {
	if rs.gardenCache == nil {
		return
	}
	rs.gardenCache.Invalidate(c.Request.Context(), owner)
}

// publishBlockEvent публикует доменное событие блока в шину.
func (rs *RestServer) publishBlockEvent(c *gin.Context, eventType string, owner garden.Owner, b *garden.Block) {
	if rs.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"owner":    owner.Key(),
		"block_id": b.ID,
		"type":     b.Type,
		"pos":      b.Pos,
	})
	if err != nil {
		return
	}
	ev := &eventbus.Envelope{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Source:    "garden_api",
		EventType: eventType,
		Version:   1,
		Payload:   payload,
	}
	if err := rs.bus.Publish(c.Request.Context(), ev); err != nil {
		logging.Warn("⚠️ Событие %s не опубликовано: %v", eventType, err)
	}
}
