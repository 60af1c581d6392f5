package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/growdoro/internal/auth"
	"github.com/annel0/growdoro/internal/config"
	"github.com/annel0/growdoro/internal/eventbus"
	"github.com/annel0/growdoro/internal/middleware"
	"github.com/annel0/growdoro/internal/rewards"
	"github.com/annel0/growdoro/internal/session"
	"github.com/annel0/growdoro/internal/storage"
)

// RestServer представляет REST API сервер сада
type RestServer struct {
	router           *gin.Engine
	accounts         auth.AccountRepository
	blocks           storage.BlockRepo
	sessions         session.Repo
	claims           *rewards.ClaimService
	transfer         *auth.TransferService
	gardenCache      *storage.RedisGardenCache
	bus              eventbus.EventBus
	port             string
	metrics          *ServerMetrics
	billing          config.BillingConfig
	outboundWebhooks *OutboundWebhookManager
}

// Config содержит зависимости REST сервера. GardenCache и Bus
// опциональны: без Redis публичные сады читаются из репозитория,
// без NATS события просто не публикуются.
type Config struct {
	Port        string
	Accounts    auth.AccountRepository
	Blocks      storage.BlockRepo
	Sessions    session.Repo
	Claims      *rewards.ClaimService
	Transfer    *auth.TransferService
	GardenCache *storage.RedisGardenCache
	Bus         eventbus.EventBus
	Billing     config.BillingConfig
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) *RestServer {
	if cfg.Port == "" {
		cfg.Port = ":8090"
	}

	// Устанавливаем режим релиза для gin
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	loggerMw := middleware.NewRequestLogger()
	router.Use(loggerMw.Handler())

	router.Use(otelgin.Middleware("garden_api"))

	promMw := middleware.NewPrometheusMiddleware("garden_api")
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	server := &RestServer{
		router:           router,
		accounts:         cfg.Accounts,
		blocks:           cfg.Blocks,
		sessions:         cfg.Sessions,
		claims:           cfg.Claims,
		transfer:         cfg.Transfer,
		gardenCache:      cfg.GardenCache,
		bus:              cfg.Bus,
		port:             cfg.Port,
		metrics:          NewServerMetrics(),
		billing:          cfg.Billing,
		outboundWebhooks: NewOutboundWebhookManager("growdoro_01", "development"),
	}

	server.setupRoutes()
	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS: клиент живет на другом origin
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api := rs.router.Group("/api")

	// Аутентификация (без JWT защиты)
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", rs.handleRegister)
		authGroup.POST("/login", rs.handleLogin)
		authGroup.POST("/anonymous", rs.handleAnonymous)
	}

	// Публичный сад (read-only, без токена)
	api.GET("/gardens/:username", rs.handlePublicGarden)

	// Webhook биллинга (подпись вместо токена)
	api.POST("/webhook/stripe", rs.HandleBillingWebhook)

	// Защищенные эндпоинты (требуют JWT, анонимный или аккаунтный)
	protected := api.Group("/")
	protected.Use(rs.jwtMiddleware())
	{
		protected.GET("/blocks", rs.handleListBlocks)
		protected.POST("/blocks/place", rs.handlePlaceBlock)
		protected.POST("/blocks/move", rs.handleMoveBlock)
		protected.POST("/blocks/seed", rs.handleSeedGarden)

		protected.POST("/sessions", rs.handleStartSession)
		protected.POST("/sessions/:id/pause", rs.handleSessionTransition)
		protected.POST("/sessions/:id/resume", rs.handleSessionTransition)
		protected.POST("/sessions/:id/cancel", rs.handleSessionTransition)
		protected.POST("/sessions/:id/complete", rs.handleSessionTransition)
		protected.GET("/sessions", rs.handleListSessions)

		protected.POST("/packs/claim", rs.handleClaimPack)

		protected.GET("/stats", rs.handleStats)

		// Управление исходящими webhook'ами — только для аккаунтов
		hooks := protected.Group("/webhooks")
		hooks.Use(rs.accountOnlyMiddleware())
		{
			hooks.GET("", rs.handleGetOutboundWebhooks)
			hooks.POST("", rs.handleCreateOutboundWebhook)
			hooks.DELETE("/:id", rs.handleDeleteOutboundWebhook)
		}
	}

	// Health check
	rs.router.GET("/health", rs.handleHealth)
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AuthRequest представляет запрос на вход или регистрацию
type AuthRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Email     string `json:"email"`
	SessionID string `json:"session_id"` // Анонимная сессия для переноса сада
}

// AuthResponse представляет ответ на вход
type AuthResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token,omitempty"`
	Message   string `json:"message"`
	AccountID uint64 `json:"account_id,omitempty"`
	Supporter bool   `json:"supporter,omitempty"`
}

// handleRegister обрабатывает регистрацию аккаунта
func (rs *RestServer) handleRegister(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, AuthResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	if len(req.Username) < 3 || len(req.Username) > 30 {
		c.JSON(http.StatusBadRequest, AuthResponse{Success: false, Message: "Имя пользователя должно быть от 3 до 30 символов"})
		return
	}
	if len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, AuthResponse{Success: false, Message: "Пароль должен быть минимум 6 символов"})
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, AuthResponse{Success: false, Message: "Ошибка обработки пароля"})
		return
	}

	acc, err := rs.accounts.Create(req.Username, req.Email, passwordHash)
	if err == auth.ErrAccountExists {
		c.JSON(http.StatusConflict, AuthResponse{Success: false, Message: "Аккаунт уже существует"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, AuthResponse{Success: false, Message: "Ошибка создания аккаунта"})
		return
	}

	rs.relinkAnonymousGarden(c, req.SessionID, acc.ID)
	rs.outboundWebhooks.SendEvent("account.created", map[string]interface{}{
		"account_id": acc.ID,
		"username":   acc.Username,
	})

	token, err := auth.GenerateAccountToken(acc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, AuthResponse{Success: false, Message: "Ошибка генерации токена"})
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{
		Success:   true,
		Token:     token,
		Message:   "Аккаунт создан",
		AccountID: acc.ID,
	})
}

// handleLogin обрабатывает запрос на вход
func (rs *RestServer) handleLogin(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, AuthResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	acc, err := rs.accounts.ValidateCredentials(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, AuthResponse{Success: false, Message: "Неверное имя пользователя или пароль"})
		return
	}

	_ = rs.accounts.UpdateLastLogin(acc.ID)
	rs.relinkAnonymousGarden(c, req.SessionID, acc.ID)

	token, err := auth.GenerateAccountToken(acc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, AuthResponse{Success: false, Message: "Ошибка генерации токена"})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		Success:   true,
		Token:     token,
		Message:   "Успешная авторизация",
		AccountID: acc.ID,
		Supporter: acc.Supporter,
	})
}

// handleAnonymous выдает токен анонимной browser-сессии
func (rs *RestServer) handleAnonymous(c *gin.Context) {
	sessionID, token, err := auth.NewAnonymousSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, AuthResponse{Success: false, Message: "Ошибка генерации токена"})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Анонимная сессия создана",
		Data: map[string]interface{}{
			"session_id": sessionID,
			"token":      token,
		},
	})
}

// relinkAnonymousGarden переносит сад анонимной сессии на аккаунт.
// Ошибка переноса не заваливает вход: сад останется у сессии.
func (rs *RestServer) relinkAnonymousGarden(c *gin.Context, sessionID string, accountID uint64) {
	if sessionID == "" || rs.transfer == nil {
		return
	}
	if _, err := rs.transfer.Transfer(c.Request.Context(), sessionID, accountID); err != nil {
		c.Header("X-Garden-Transfer", "failed")
	}
}

// handleStats возвращает статистику процесса сервера
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := make(map[string]interface{})

	memoryMB, _ := rs.metrics.GetMemoryUsage()
	cpuPercent, _ := rs.metrics.GetCPUUsage()
	systemCPU, _ := rs.metrics.GetSystemCPUUsage()

	stats["server"] = map[string]interface{}{
		"uptime":      rs.metrics.GetUptime(),
		"memory_mb":   memoryMB,
		"cpu_percent": cpuPercent,
		"system_cpu":  systemCPU,
		"server_time": time.Now().Unix(),
	}
	stats["memory_details"] = rs.metrics.GetDetailedMemoryStats()

	if rs.bus != nil {
		busStats := rs.bus.Metrics()
		stats["eventbus"] = map[string]interface{}{
			"published": busStats.Published,
			"consumed":  busStats.Consumed,
			"dropped":   busStats.Dropped,
		}
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// Router отдаёт внутренний gin.Engine (для httptest)
func (rs *RestServer) Router() http.Handler {
	return rs.router
}

// Start запускает REST сервер
func (rs *RestServer) Start() error {
	return rs.router.Run(rs.port)
}

// Stop останавливает REST сервер
func (rs *RestServer) Stop() error {
	rs.outboundWebhooks.Stop()
	return nil
}

// === ОБРАБОТЧИКИ ИСХОДЯЩИХ WEBHOOK'ОВ ===

// handleGetOutboundWebhooks возвращает список исходящих webhook'ов
func (rs *RestServer) handleGetOutboundWebhooks(c *gin.Context) {
	webhooks := rs.outboundWebhooks.GetWebhooks()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список webhook'ов получен",
		Data: map[string]interface{}{
			"webhooks": webhooks,
			"total":    len(webhooks),
		},
	})
}

// handleCreateOutboundWebhook создает новый исходящий webhook
func (rs *RestServer) handleCreateOutboundWebhook(c *gin.Context) {
	var webhook OutboundWebhook
	if err := c.ShouldBindJSON(&webhook); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат webhook'а: " + err.Error(),
		})
		return
	}

	if webhook.Name == "" || webhook.URL == "" || len(webhook.Events) == 0 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Обязательные поля: name, url, events",
		})
		return
	}

	created := rs.outboundWebhooks.AddWebhook(webhook)

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Webhook создан успешно",
		Data:    created,
	})
}

// handleDeleteOutboundWebhook удаляет webhook
func (rs *RestServer) handleDeleteOutboundWebhook(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный ID webhook'а",
		})
		return
	}

	if !rs.outboundWebhooks.DeleteWebhook(id) {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Webhook не найден",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Webhook удален успешно",
	})
}
