package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/growdoro/internal/api"
	"github.com/annel0/growdoro/internal/auth"
	"github.com/annel0/growdoro/internal/catalog"
	"github.com/annel0/growdoro/internal/config"
	"github.com/annel0/growdoro/internal/eventbus"
	"github.com/annel0/growdoro/internal/logging"
	"github.com/annel0/growdoro/internal/maintenance"
	"github.com/annel0/growdoro/internal/observability"
	"github.com/annel0/growdoro/internal/rewards"
	"github.com/annel0/growdoro/internal/session"
	"github.com/annel0/growdoro/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или GROWDORO_CONFIG)")
	flag.Parse()

	// Инициализируем систему логирования
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("🌱 Запуск Growdoro Garden Server...")

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("❌ Ошибка чтения конфигурации: %v", err)
		log.Fatalf("❌ Ошибка чтения конфигурации: %v", err)
	}
	if cfg == nil {
		cfg = &config.Config{}
		logging.Info("⚙️  Конфигурация не задана, используются значения по умолчанию")
	}

	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	logging.Info("📡 Конфигурация сервера: REST API=%s", restPort)

	// JWT секрет: из конфига или случайный на время процесса
	secret := cfg.Server.JWTSecret
	if secret == "" {
		secret = auth.GenerateSecureSecret()
		logging.Info("🔑 JWT секрет не задан, сгенерирован случайный (сессии не переживут рестарт)")
	}
	if err := auth.SetJWTSecret(secret); err != nil {
		log.Fatalf("❌ Некорректный JWT секрет: %v", err)
	}

	// OTLP трейсинг; без коллектора экспортер просто молчит
	shutdownTelemetry, err := observability.InitTelemetry(context.Background(), "growdoro-server")
	if err != nil {
		logging.Error("⚠️  Телеметрия не инициализирована: %v", err)
		shutdownTelemetry = nil
	}

	// Загружаем JSON-описания типов блоков (если каталог существует)
	if err := catalog.LoadJSONTypes("assets/blocks"); err != nil && !os.IsNotExist(err) {
		logging.Error("Ошибка загрузки JSON-типов блоков: %v", err)
	}

	// === ХРАНИЛИЩА ===
	var accounts auth.AccountRepository
	var blocks storage.BlockRepo
	var sessions session.Repo

	closers := make([]func() error, 0, 4)

	if cfg.Mongo.URI != "" {
		logging.Debug("Подключение к MongoDB: %s", cfg.Mongo.URI)

		blockRepo, err := storage.NewMongoBlockRepo(storage.MongoConfig{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		})
		if err != nil {
			log.Fatalf("❌ Ошибка подключения репозитория блоков к MongoDB: %v", err)
		}
		blocks = blockRepo
		closers = append(closers, blockRepo.Close)

		sessionRepo, err := session.NewMongoRepo(blockRepo.Database(), "focus_sessions")
		if err != nil {
			log.Fatalf("❌ Ошибка инициализации репозитория сессий: %v", err)
		}
		sessions = sessionRepo

		mongoAccounts, err := auth.NewMongoAccountRepo(auth.MongoConfig{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		})
		if err != nil {
			log.Fatalf("❌ Ошибка подключения репозитория аккаунтов к MongoDB: %v", err)
		}
		accounts = mongoAccounts
		closers = append(closers, mongoAccounts.Close)

		logging.Info("✅ MongoDB хранилище инициализировано (%s)", cfg.Mongo.Database)
	} else {
		blocks = storage.NewMemoryBlockRepo()
		sessions = session.NewMemoryRepo()
		accounts = auth.NewMemoryAccountRepo()
		logging.Info("⚠️  MongoDB не настроена, данные хранятся в памяти процесса")
	}

	// MariaDB может заменить хранилище аккаунтов (жильцы с уже развёрнутой SQL базой)
	if cfg.Maria.Enabled {
		logging.Debug("Подключение к MariaDB: %s:%d", cfg.Maria.Host, cfg.Maria.Port)
		mariaAccounts, err := auth.NewMariaAccountRepo(auth.MariaConfig{
			Host:     cfg.Maria.Host,
			Port:     cfg.Maria.Port,
			Database: cfg.Maria.Database,
			Username: cfg.Maria.Username,
			Password: cfg.Maria.Password,
		})
		if err != nil {
			log.Fatalf("❌ Ошибка подключения к MariaDB: %v", err)
		}
		accounts = mariaAccounts
		closers = append(closers, mariaAccounts.Close)
		logging.Info("✅ Аккаунты хранятся в MariaDB (%s)", cfg.Maria.Database)
	}

	// Redis кэш публичных садов — опционален
	var gardenCache *storage.RedisGardenCache
	if cfg.Redis.Addr != "" {
		cacheCfg := storage.DefaultRedisCacheConfig()
		cacheCfg.Addr = cfg.Redis.Addr
		cacheCfg.Password = cfg.Redis.Password
		cacheCfg.DB = cfg.Redis.DB
		if cfg.Redis.TTLSec > 0 {
			cacheCfg.TTL = time.Duration(cfg.Redis.TTLSec) * time.Second
		}

		gardenCache, err = storage.NewRedisGardenCache(cacheCfg)
		if err != nil {
			logging.Error("⚠️  Redis недоступен, публичные сады читаются из репозитория: %v", err)
			gardenCache = nil
		} else {
			closers = append(closers, gardenCache.Close)
			logging.Info("✅ Redis кэш публичных садов подключен (%s)", cfg.Redis.Addr)
		}
	}

	// NATS JetStream шина событий — опциональна
	var bus eventbus.EventBus
	var busMetrics *eventbus.MetricsExporter
	if cfg.EventBus.URL != "" {
		retention := time.Duration(cfg.EventBus.Retention) * time.Hour
		jsBus, err := eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream, retention)
		if err != nil {
			logging.Error("⚠️  NATS недоступен, события не публикуются: %v", err)
		} else {
			bus = jsBus
			eventbus.Init(bus)
			logging.Info("✅ JetStream шина событий подключена (%s)", cfg.EventBus.URL)

			if err := eventbus.StartLoggingListener(bus); err != nil {
				logging.Warn("⚠️ LoggingListener не запущен: %v", err)
			}

			busMetrics = eventbus.NewMetricsExporter(bus)
			busMetrics.StartHTTP(fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()))
		}
	}

	// Кросс-инстансная инвалидация кеша садов через шину событий
	var invalidator *storage.CacheInvalidator
	if gardenCache != nil && bus != nil {
		invalidator = storage.NewCacheInvalidator(gardenCache, bus)
		if err := invalidator.Start(context.Background()); err != nil {
			logging.Error("⚠️  Инвалидация кеша по событиям не запущена: %v", err)
			invalidator = nil
		}
	}

	// === СЕРВИСЫ ===
	drawer := rewards.NewDrawer(rand.NewSource(time.Now().UnixNano()))
	claimMetrics := rewards.NewMetrics(prometheus.DefaultRegisterer)
	claims := rewards.NewClaimService(sessions, blocks, drawer, bus, claimMetrics)

	transfer := auth.NewTransferService(blocks, sessions, bus)

	// Фоновая дедупликация блоков с совпадающими координатами
	maintCtx, stopMaint := context.WithCancel(context.Background())
	defer stopMaint()

	dedupeInterval := time.Duration(cfg.Maintenance.DedupeIntervalMin) * time.Minute
	if dedupeInterval <= 0 {
		dedupeInterval = 6 * time.Hour
	}
	deduper := maintenance.NewDeduper(blocks, dedupeInterval)
	go deduper.Start(maintCtx)

	// === REST API ===
	restServer := api.NewRestServer(api.Config{
		Port:        restPort,
		Accounts:    accounts,
		Blocks:      blocks,
		Sessions:    sessions,
		Claims:      claims,
		Transfer:    transfer,
		GardenCache: gardenCache,
		Bus:         bus,
		Billing:     cfg.Billing,
	})

	go func() {
		if err := restServer.Start(); err != nil {
			logging.Error("❌ REST сервер завершился с ошибкой: %v", err)
			log.Fatalf("❌ REST сервер завершился с ошибкой: %v", err)
		}
	}()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost%s", restPort)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restPort)
	logging.Info("   📊 Метрики: http://localhost%s/metrics", restPort)

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	stopMaint()

	if invalidator != nil {
		invalidator.Stop()
	}
	if busMetrics != nil {
		busMetrics.Stop()
	}

	if err := restServer.Stop(); err != nil {
		logging.Error("Ошибка остановки REST сервера: %v", err)
	}

	if shutdownTelemetry != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logging.Error("Ошибка остановки телеметрии: %v", err)
		}
		cancelShutdown()
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logging.Error("Ошибка закрытия ресурса: %v", err)
		}
	}

	logging.Info("✅ Сервер остановлен")
}
