package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/annel0/growdoro/internal/eventbus"
	"github.com/annel0/growdoro/internal/garden"
	"github.com/annel0/growdoro/internal/logging"
)

// CacheInvalidator сбрасывает Redis-кеш публичных садов по событиям
// шины. Инстанс, принявший мутацию, инвалидирует кеш сам; остальные
// инстансы узнают об изменении через block.placed / block.moved.
//
// Окно дедупликации гасит повторные сбросы одного владельца: пачка
// размещений порождает событие на каждый блок.
type CacheInvalidator struct {
	cache *RedisGardenCache
	bus   eventbus.EventBus

	sub eventbus.Subscription

	mu           sync.Mutex
	recentOwners map[string]time.Time
	dedupeWindow time.Duration
}

// NewCacheInvalidator создаёт невключённый инвалидатор; Start подписывает его на шину.
func NewCacheInvalidator(cache *RedisGardenCache, bus eventbus.EventBus) *CacheInvalidator {
	return &CacheInvalidator{
		cache:        cache,
		bus:          bus,
		recentOwners: make(map[string]time.Time),
		dedupeWindow: 2 * time.Second,
	}
}

// Start подписывается на события изменения блоков.
func (ci *CacheInvalidator) Start(ctx context.Context) error {
	sub, err := ci.bus.Subscribe(ctx, eventbus.Filter{
		Types: []string{eventbus.EventBlockPlaced, eventbus.EventBlockMoved},
	}, ci.handle)
	if err != nil {
		return err
	}
	ci.sub = sub
	logging.Info("🔄 Инвалидация кеша садов по событиям шины включена")
	return nil
}

// Stop отписывается от шины.
func (ci *CacheInvalidator) Stop() {
	if ci.sub != nil {
		ci.sub.Unsubscribe()
		ci.sub = nil
	}
}

func (ci *CacheInvalidator) handle(ctx context.Context, ev *eventbus.Envelope) {
	var payload struct {
		Owner string `json:"owner"`
	}
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		logging.Warn("⚠️ Событие %s без владельца: %v", ev.EventType, err)
		return
	}

	owner, err := garden.ParseOwnerKey(payload.Owner)
	if err != nil {
		logging.Warn("⚠️ Событие %s: %v", ev.EventType, err)
		return
	}

	if ci.isDuplicate(payload.Owner) {
		return
	}
	ci.cache.Invalidate(ctx, owner)
}

func (ci *CacheInvalidator) isDuplicate(key string) bool {
	now := time.Now()

	ci.mu.Lock()
	defer ci.mu.Unlock()

	if last, ok := ci.recentOwners[key]; ok && now.Sub(last) < ci.dedupeWindow {
		return true
	}
	ci.recentOwners[key] = now

	// Попутная чистка устаревших записей
	for k, t := range ci.recentOwners {
		if now.Sub(t) > ci.dedupeWindow {
			delete(ci.recentOwners, k)
		}
	}
	return false
}
