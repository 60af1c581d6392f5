package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/annel0/growdoro/internal/auth"
	"github.com/annel0/growdoro/internal/garden"
)

// handlePublicGarden отдаёт read-only сад по имени аккаунта.
// Горячий путь страницы /u/:username, поэтому читаем через Redis.
func (rs *RestServer) handlePublicGarden(c *gin.Context) {
	acc, err := rs.accounts.GetByUsername(c.Param("username"))
	if err == auth.ErrAccountNotFound {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Сад не найден"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка чтения аккаунта"})
		return
	}

	owner := garden.AccountOwner(acc.ID)
	ctx := c.Request.Context()

	var placed []*garden.Block
	cached := false
	if rs.gardenCache != nil {
		placed, cached = rs.gardenCache.Get(ctx, owner)
	}
	if !cached {
		placed, err = rs.blocks.ListPlacedByOwner(ctx, owner)
		if err != nil {
			c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка чтения блоков"})
			return
		}
		if rs.gardenCache != nil {
			_ = rs.gardenCache.Set(ctx, owner, placed)
		}
	}

	now := time.Now()
	out := make([]BlockJSON, 0, len(placed))
	for _, b := range placed {
		out = append(out, blockToJSON(b, now))
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Сад получен",
		Data: map[string]interface{}{
			"username":  acc.Username,
			"supporter": acc.Supporter,
			"blocks":    out,
			"cached":    cached,
		},
	})
}
