package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/growdoro/internal/catalog"
	"github.com/annel0/growdoro/internal/config"
	"github.com/annel0/growdoro/internal/garden"
	"github.com/annel0/growdoro/internal/maintenance"
	"github.com/annel0/growdoro/internal/storage"
)

// garden-cli — debug-инструменты над хранилищем блоков: выдача и
// удаление блоков, ручной запуск дедупликации, экспорт/импорт
// снапшотов сада. Работает напрямую с MongoDB, минуя REST API.
func main() {
	var (
		configPath = flag.String("config", "", "путь к YAML конфигурации (или GROWDORO_CONFIG)")
		command    = flag.String("cmd", "", "Команда: grant, delete, list, dedupe, export, import")
		accountID  = flag.Uint64("account", 0, "ID аккаунта-владельца")
		sessionID  = flag.String("session", "", "ID анонимной сессии-владельца")
		blockType  = flag.String("type", "", "Тип блока для grant")
		count      = flag.Int("count", 1, "Количество блоков для grant")
		blockID    = flag.String("id", "", "ID блока для delete")
		file       = flag.String("file", "", "Файл снапшота для export/import")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка чтения конфигурации: %v", err)
	}
	if cfg == nil || cfg.Mongo.URI == "" {
		log.Fatalf("❌ Требуется конфигурация с mongo.uri (инструменты работают напрямую с БД)")
	}

	if err := catalog.LoadJSONTypes("assets/blocks"); err != nil && !os.IsNotExist(err) {
		log.Fatalf("❌ Ошибка загрузки JSON-типов блоков: %v", err)
	}

	blocks, err := storage.NewMongoBlockRepo(storage.MongoConfig{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatalf("❌ Ошибка подключения к MongoDB: %v", err)
	}
	defer blocks.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch *command {
	case "grant":
		owner := ownerFromFlags(*accountID, *sessionID)
		if err := grantBlocks(ctx, blocks, owner, *blockType, *count); err != nil {
			log.Fatalf("❌ Grant failed: %v", err)
		}

	case "delete":
		if *blockID == "" {
			log.Fatalf("❌ Требуется -id блока")
		}
		if err := blocks.Delete(ctx, *blockID); err != nil {
			log.Fatalf("❌ Delete failed: %v", err)
		}
		fmt.Printf("🗑️  Блок %s удалён\n", *blockID)

	case "list":
		owner := ownerFromFlags(*accountID, *sessionID)
		if err := listBlocks(ctx, blocks, owner); err != nil {
			log.Fatalf("❌ List failed: %v", err)
		}

	case "dedupe":
		deduper := maintenance.NewDeduper(blocks, 0)
		report, err := deduper.RunOnce(ctx)
		if err != nil {
			log.Fatalf("❌ Dedupe failed: %v", err)
		}
		fmt.Printf("🧹 Владельцев: %d, удалено дублей: %d, ошибок: %d (за %v)\n",
			report.OwnersScanned, report.BlocksDeleted, report.Errors, report.Elapsed)

	case "export":
		owner := ownerFromFlags(*accountID, *sessionID)
		if err := exportSnapshot(ctx, blocks, owner, *file); err != nil {
			log.Fatalf("❌ Export failed: %v", err)
		}

	case "import":
		owner := ownerFromFlags(*accountID, *sessionID)
		if err := importSnapshot(ctx, blocks, owner, *file); err != nil {
			log.Fatalf("❌ Import failed: %v", err)
		}

	default:
		fmt.Println("Команды: grant, delete, list, dedupe, export, import")
		os.Exit(1)
	}
}

func ownerFromFlags(accountID uint64, sessionID string) garden.Owner {
	if accountID > 0 {
		return garden.Owner{AccountID: accountID}
	}
	if sessionID != "" {
		return garden.Owner{SessionID: sessionID}
	}
	log.Fatalf("❌ Требуется -account или -session")
	return garden.Owner{}
}

func grantBlocks(ctx context.Context, blocks storage.BlockRepo, owner garden.Owner, typeKey string, count int) error {
	if typeKey == "" {
		return fmt.Errorf("требуется -type")
	}
	if !catalog.Exists(typeKey) {
		return fmt.Errorf("неизвестный тип блока %q", typeKey)
	}
	if count < 1 {
		return fmt.Errorf("некорректный -count %d", count)
	}

	now := time.Now().UTC()
	granted := make([]*garden.Block, 0, count)
	for i := 0; i < count; i++ {
		granted = append(granted, &garden.Block{
			ID:        uuid.New().String(),
			Owner:     owner,
			Type:      typeKey,
			CreatedAt: now,
		})
	}
	if err := blocks.CreateMany(ctx, granted); err != nil {
		return err
	}

	fmt.Printf("🎁 Выдано %d x %s владельцу %s\n", count, typeKey, owner.Key())
	return nil
}

func listBlocks(ctx context.Context, blocks storage.BlockRepo, owner garden.Owner) error {
	all, err := blocks.ListByOwner(ctx, owner)
	if err != nil {
		return err
	}

	fmt.Printf("🌱 Блоки владельца %s (%d):\n", owner.Key(), len(all))
	for _, b := range all {
		if b.Pos != nil {
			fmt.Printf("  %s  %-16s (%d,%d,%d)\n", b.ID, b.Type, b.Pos.X, b.Pos.Y, b.Pos.Z)
		} else {
			fmt.Printf("  %s  %-16s инвентарь\n", b.ID, b.Type)
		}
	}
	return nil
}

func exportSnapshot(ctx context.Context, blocks storage.BlockRepo, owner garden.Owner, path string) error {
	if path == "" {
		return fmt.Errorf("требуется -file")
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := maintenance.ExportGarden(ctx, blocks, owner, f); err != nil {
		return err
	}
	fmt.Printf("📦 Снапшот сада %s записан в %s\n", owner.Key(), path)
	return nil
}

func importSnapshot(ctx context.Context, blocks storage.BlockRepo, owner garden.Owner, path string) error {
	if path == "" {
		return fmt.Errorf("требуется -file")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := maintenance.ImportGarden(ctx, blocks, owner, f)
	if err != nil {
		return err
	}
	fmt.Printf("📦 Импортировано %d блоков владельцу %s\n", n, owner.Key())
	return nil
}
