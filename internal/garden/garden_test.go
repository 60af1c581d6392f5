package garden

import (
	"testing"
	"time"

	"github.com/annel0/growdoro/internal/vec"
)

func placed(id string, x, y, z int) *Block {
	return &Block{ID: id, Type: "grass", Pos: &vec.Vec3{X: x, Y: y, Z: z}}
}

// TestSortByDepth проверяет порядок painter's algorithm: x + y + 100*z.
func TestSortByDepth(t *testing.T) {
	blocks := []*Block{
		placed("c", 0, 0, 1), // depth 100
		placed("a", 2, 1, 0), // depth 3
		placed("b", 0, 1, 0), // depth 1
	}

	SortByDepth(blocks)

	got := []string{blocks[0].ID, blocks[1].ID, blocks[2].ID}
	want := []string{"b", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("неверный порядок отрисовки: получено %v, ожидалось %v", got, want)
		}
	}
}

// TestSortByDepthStable: блоки с равным ключом сохраняют взаимный порядок.
func TestSortByDepthStable(t *testing.T) {
	blocks := []*Block{
		placed("first", 1, 2, 0),  // depth 3
		placed("second", 2, 1, 0), // depth 3
		placed("third", 3, 0, 0),  // depth 3
	}

	for i := 0; i < 5; i++ {
		SortByDepth(blocks)
		if blocks[0].ID != "first" || blocks[1].ID != "second" || blocks[2].ID != "third" {
			t.Fatalf("сортировка нестабильна на итерации %d: %s %s %s",
				i, blocks[0].ID, blocks[1].ID, blocks[2].ID)
		}
	}
}

func TestGrowing(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := &Block{ID: "p", Type: "sunflower", Pos: &vec.Vec3{}, PlantedAt: &t0}
	// sunflower: GrowthDays = 3

	t.Run("Before Maturity", func(t *testing.T) {
		if !b.Growing(t0.Add(1 * time.Hour)) {
			t.Error("растение должно расти сразу после посадки")
		}
		if !b.Growing(t0.Add(3*24*time.Hour - time.Second)) {
			t.Error("растение должно расти за секунду до созревания")
		}
	})

	t.Run("At And After Maturity", func(t *testing.T) {
		if b.Growing(t0.Add(3 * 24 * time.Hour)) {
			t.Error("растение должно быть зрелым ровно в момент созревания")
		}
		if b.Growing(t0.Add(30 * 24 * time.Hour)) {
			t.Error("растение должно оставаться зрелым")
		}
	})

	t.Run("Non Plant", func(t *testing.T) {
		fence := &Block{ID: "f", Type: "fence", Pos: &vec.Vec3{}, PlantedAt: &t0}
		if fence.Growing(t0) {
			t.Error("декорация не может расти")
		}
	})

	t.Run("No PlantedAt", func(t *testing.T) {
		fresh := &Block{ID: "n", Type: "sunflower", Pos: &vec.Vec3{}}
		if fresh.Growing(t0) {
			t.Error("без plantedAt заглушка роста не показывается")
		}
	})
}

func TestOwnerInvariant(t *testing.T) {
	cases := []struct {
		name  string
		owner Owner
		valid bool
	}{
		{"Account", AccountOwner(42), true},
		{"Session", SessionOwner("ab-cd"), true},
		{"Empty", Owner{}, false},
		{"Both", Owner{AccountID: 1, SessionID: "x"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.owner.Valid() != tc.valid {
				t.Errorf("Valid() = %v, ожидалось %v", !tc.valid, tc.valid)
			}
		})
	}

	if AccountOwner(7).Key() == SessionOwner("7").Key() {
		t.Error("ключи аккаунта и сессии не должны совпадать")
	}
}

func TestParseOwnerKey(t *testing.T) {
	t.Run("КруговойОбход", func(t *testing.T) {
		for _, owner := range []Owner{AccountOwner(42), SessionOwner("ab-cd")} {
			parsed, err := ParseOwnerKey(owner.Key())
			if err != nil {
				t.Fatalf("ParseOwnerKey(%q): %v", owner.Key(), err)
			}
			if parsed != owner {
				t.Errorf("ParseOwnerKey(%q) = %+v, ожидалось %+v", owner.Key(), parsed, owner)
			}
		}
	})

	t.Run("НекорректныеКлючи", func(t *testing.T) {
		for _, key := range []string{"", "acct:", "acct:0", "acct:abc", "sess:", "user:7"} {
			if _, err := ParseOwnerKey(key); err == nil {
				t.Errorf("ParseOwnerKey(%q): ожидалась ошибка", key)
			}
		}
	})
}

func TestOccupancy(t *testing.T) {
	occ := NewOccupancy([]*Block{
		placed("a", 0, 0, 0),
		placed("b", 1, 0, 0),
		{ID: "inv", Type: "rose"}, // в инвентаре, не индексируется
	})

	t.Run("Initial", func(t *testing.T) {
		if occ.Len() != 2 {
			t.Fatalf("ожидались 2 занятых позиции, получено %d", occ.Len())
		}
		if !occ.Occupied(vec.Vec3{X: 0, Y: 0, Z: 0}) {
			t.Error("позиция (0,0,0) должна быть занята")
		}
	})

	t.Run("Place Collision", func(t *testing.T) {
		if occ.Place("c", vec.Vec3{X: 1, Y: 0, Z: 0}) {
			t.Error("размещение на занятую позицию должно отклоняться")
		}
		if occ.Place("c", vec.Vec3{X: 2, Y: 0, Z: 0}) != true {
			t.Error("размещение на свободную позицию должно проходить")
		}
	})

	t.Run("Move", func(t *testing.T) {
		from := vec.Vec3{X: 0, Y: 0, Z: 0}
		busy := vec.Vec3{X: 1, Y: 0, Z: 0}
		free := vec.Vec3{X: 5, Y: 5, Z: 0}

		if occ.Move("a", from, busy) {
			t.Error("перенос на занятую позицию должен отклоняться")
		}
		if !occ.Occupied(from) {
			t.Error("после отклонённого переноса блок остаётся на месте")
		}

		if !occ.Move("a", from, free) {
			t.Error("перенос на свободную позицию должен проходить")
		}
		if occ.Occupied(from) {
			t.Error("исходная позиция должна освободиться")
		}
	})

	t.Run("Top Of Tile", func(t *testing.T) {
		occ.Place("low", vec.Vec3{X: 9, Y: 9, Z: 0})
		occ.Place("high", vec.Vec3{X: 9, Y: 9, Z: 2})
		id, ok := occ.BlockAtTile(vec.Vec2{X: 9, Y: 9})
		if !ok || id != "high" {
			t.Errorf("ожидался верхний блок high, получено %q", id)
		}
	})
}

func TestSeedPatch(t *testing.T) {
	patch := SeedPatch()
	if len(patch) != 4 {
		t.Fatalf("стартовый участок должен содержать 4 тайла, получено %d", len(patch))
	}
	seen := make(map[vec.Vec3]bool)
	for _, p := range patch {
		if p.Z != 0 {
			t.Errorf("тайл %v: стартовый участок лежит на слое 0", p)
		}
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			t.Errorf("тайл %v выходит за пределы участка 2x2", p)
		}
		if seen[p] {
			t.Errorf("тайл %v повторяется", p)
		}
		seen[p] = true
	}
}

func TestCountUnplacedByType(t *testing.T) {
	blocks := []*Block{
		{ID: "1", Type: "rose"},
		{ID: "2", Type: "rose"},
		{ID: "3", Type: "fence"},
		placed("4", 0, 0, 0),
	}
	counts := CountUnplacedByType(blocks)
	if counts["rose"] != 2 || counts["fence"] != 1 {
		t.Errorf("неверные счётчики инвентаря: %v", counts)
	}
	if _, ok := counts["grass"]; ok {
		t.Error("размещённые блоки не должны попадать в инвентарь")
	}
}
