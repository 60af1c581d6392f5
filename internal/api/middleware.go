package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/annel0/growdoro/internal/auth"
	"github.com/annel0/growdoro/internal/garden"
)

// jwtMiddleware проверяет JWT токен в заголовке Authorization.
// Токен может принадлежать аккаунту или анонимной browser-сессии;
// владелец сада кладётся в контекст под ключом "owner".
func (rs *RestServer) jwtMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Отсутствует токен авторизации",
			})
			c.Abort()
			return
		}

		// Проверяем формат "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Неверный формат токена",
			})
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Недействительный токен",
			})
			c.Abort()
			return
		}

		c.Set("owner", claims.Owner())
		c.Set("claims", claims)

		c.Next()
	}
}

// accountOnlyMiddleware отклоняет анонимные сессии.
func (rs *RestServer) accountOnlyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := currentOwner(c)
		if !owner.IsAccount() {
			c.JSON(http.StatusForbidden, GenericResponse{
				Success: false,
				Message: "Требуется аккаунт",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// currentOwner достаёт владельца из контекста (установлен в jwtMiddleware).
func currentOwner(c *gin.Context) garden.Owner {
	v, exists := c.Get("owner")
	if !exists {
		return garden.Owner{}
	}
	owner, ok := v.(garden.Owner)
	if !ok {
		return garden.Owner{}
	}
	return owner
}

func parseID(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
