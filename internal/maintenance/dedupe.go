package maintenance

import (
	"context"
	"time"

	"github.com/annel0/growdoro/internal/logging"
	"github.com/annel0/growdoro/internal/storage"
)

// DedupeReport — итог одного прохода дедупликации.
type DedupeReport struct {
	OwnersScanned int
	BlocksDeleted int
	Errors        int
	Elapsed       time.Duration
}

// Deduper удаляет блоки, нарушающие инвариант занятости: на каждой
// координате (x, y, z) владельца остаётся самый старый блок, остальные
// удаляются. Размещение проверяет занятость до записи, но гонки двух
// конкурентных запросов всё же оставляют дубликаты — джоб их добирает.
type Deduper struct {
	blocks   storage.BlockRepo
	interval time.Duration
}

// NewDeduper создает джоб дедупликации. interval <= 0 отключает
// периодический запуск (останется только ручной RunOnce).
func NewDeduper(blocks storage.BlockRepo, interval time.Duration) *Deduper {
	return &Deduper{blocks: blocks, interval: interval}
}

// RunOnce выполняет один полный проход по всем владельцам.
// Ошибки отдельных владельцев логируются и не прерывают проход.
func (d *Deduper) RunOnce(ctx context.Context) (*DedupeReport, error) {
	start := time.Now()
	report := &DedupeReport{}

	owners, err := d.blocks.ListOwners(ctx)
	if err != nil {
		return nil, err
	}

	for _, owner := range owners {
		select {
		case <-ctx.Done():
			report.Elapsed = time.Since(start)
			return report, ctx.Err()
		default:
		}

		report.OwnersScanned++

		dups, err := d.blocks.FindDuplicates(ctx, owner)
		if err != nil {
			logging.Warn("⚠️ Дедупликация: ошибка скана владельца %s: %v", owner.Key(), err)
			report.Errors++
			continue
		}

		for _, b := range dups {
			if err := d.blocks.Delete(ctx, b.ID); err != nil {
				// Блок мог удалить параллельный проход
				if err != storage.ErrBlockNotFound {
					logging.Warn("⚠️ Дедупликация: блок %s не удалён: %v", b.ID, err)
					report.Errors++
				}
				continue
			}
			report.BlocksDeleted++
		}
	}

	report.Elapsed = time.Since(start)
	if report.BlocksDeleted > 0 {
		logging.Info("🧹 Дедупликация: удалено %d блоков у %d владельцев за %v",
			report.BlocksDeleted, report.OwnersScanned, report.Elapsed)
	}
	return report, nil
}

// Start запускает периодические проходы до отмены контекста.
// Блокируется; вызывать в отдельной горутине.
func (d *Deduper) Start(ctx context.Context) {
	if d.interval <= 0 {
		return
	}

	logging.Info("🧹 Джоб дедупликации запущен (интервал %v)", d.interval)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("🧹 Джоб дедупликации остановлен")
			return
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil && err != context.Canceled {
				logging.Error("❌ Проход дедупликации не завершён: %v", err)
			}
		}
	}
}
