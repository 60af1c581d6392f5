package scene

import (
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/annel0/growdoro/internal/logging"
)

// SpriteStore — потокобезопасное хранилище спрайтов. Загрузка
// асинхронная: рендерер пропускает ещё не загруженные спрайты,
// кадр никогда не блокируется на I/O.
type SpriteStore struct {
	mu     sync.RWMutex
	dir    string
	images map[string]*ebiten.Image
	failed map[string]bool
}

// NewSpriteStore создает хранилище спрайтов с корнем dir.
func NewSpriteStore(dir string) *SpriteStore {
	return &SpriteStore{
		dir:    dir,
		images: make(map[string]*ebiten.Image),
		failed: make(map[string]bool),
	}
}

// LoadAll запускает фоновую загрузку спрайтов по списку путей.
// Ошибки логируются по разу на путь и не останавливают остальные.
func (s *SpriteStore) LoadAll(paths []string) {
	go func() {
		for _, p := range paths {
			s.load(p)
		}
	}()
}

func (s *SpriteStore) load(path string) {
	s.mu.RLock()
	_, loaded := s.images[path]
	failed := s.failed[path]
	s.mu.RUnlock()
	if loaded || failed {
		return
	}

	f, err := os.Open(filepath.Join(s.dir, path))
	if err != nil {
		s.markFailed(path, err)
		return
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		s.markFailed(path, err)
		return
	}

	s.mu.Lock()
	s.images[path] = ebiten.NewImageFromImage(img)
	s.mu.Unlock()
}

func (s *SpriteStore) markFailed(path string, err error) {
	s.mu.Lock()
	already := s.failed[path]
	s.failed[path] = true
	s.mu.Unlock()
	if !already {
		logging.Warn("⚠️ Спрайт %s не загружен: %v", path, err)
	}
}

// Get возвращает спрайт по пути. ok == false пока спрайт не загружен
// или загрузка провалилась.
func (s *SpriteStore) Get(path string) (*ebiten.Image, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[path]
	return img, ok
}
