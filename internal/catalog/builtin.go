package catalog

// Встроенный каталог. JSON-оверлей (LoadJSONTypes) может дополнять
// или переопределять записи, но базовый набор всегда доступен.
func init() {
	builtin := []*BlockType{
		// Террейн
		{Key: "grass", DisplayName: "Grass", Sprite: "blocks/grass.png", Rarity: RarityCommon, Category: CategoryTerrain},
		{Key: "dirt", DisplayName: "Dirt", Sprite: "blocks/dirt.png", Rarity: RarityCommon, Category: CategoryTerrain},
		{Key: "sand", DisplayName: "Sand", Sprite: "blocks/sand.png", Rarity: RarityCommon, Category: CategoryTerrain},
		{Key: "stone", DisplayName: "Stone", Sprite: "blocks/stone.png", Rarity: RarityUncommon, Category: CategoryTerrain},
		{Key: "water", DisplayName: "Water", Sprite: "blocks/water.png", Rarity: RarityUncommon, Category: CategoryTerrain, OffsetY: 4},

		// Растения
		{Key: "daisy", DisplayName: "Daisy", Sprite: "blocks/daisy.png", Rarity: RarityCommon, Category: CategoryPlant, GrowthDays: 1, ImageScale: 0.8},
		{Key: "tulip", DisplayName: "Tulip", Sprite: "blocks/tulip.png", Rarity: RarityCommon, Category: CategoryPlant, GrowthDays: 1, ImageScale: 0.8},
		{Key: "carrot", DisplayName: "Carrot", Sprite: "blocks/carrot.png", Rarity: RarityCommon, Category: CategoryPlant, GrowthDays: 2, ImageScale: 0.75},
		{Key: "sunflower", DisplayName: "Sunflower", Sprite: "blocks/sunflower.png", Rarity: RarityUncommon, Category: CategoryPlant, GrowthDays: 3, ImageScale: 0.9},
		{Key: "rose", DisplayName: "Rose", Sprite: "blocks/rose.png", Rarity: RarityUncommon, Category: CategoryPlant, GrowthDays: 3, DecayDays: 14, ImageScale: 0.8},
		{Key: "cactus", DisplayName: "Cactus", Sprite: "blocks/cactus.png", Rarity: RarityRare, Category: CategoryPlant, GrowthDays: 5},
		{Key: "bonsai", DisplayName: "Bonsai", Sprite: "blocks/bonsai.png", Rarity: RarityLegendary, Category: CategoryPlant, GrowthDays: 7, ImageScale: 1.1, OffsetY: -6},

		// Декорации
		{Key: "fence", DisplayName: "Fence", Sprite: "blocks/fence.png", Rarity: RarityCommon, Category: CategoryDecoration},
		{Key: "bench", DisplayName: "Bench", Sprite: "blocks/bench.png", Rarity: RarityUncommon, Category: CategoryDecoration},
		{Key: "lantern", DisplayName: "Lantern", Sprite: "blocks/lantern.png", Rarity: RarityUncommon, Category: CategoryDecoration, ImageScale: 0.7, OffsetY: -10},
		{Key: "gnome", DisplayName: "Garden Gnome", Sprite: "blocks/gnome.png", Rarity: RarityRare, Category: CategoryDecoration, ImageScale: 0.7},
		{Key: "fountain", DisplayName: "Fountain", Sprite: "blocks/fountain.png", Rarity: RarityLegendary, Category: CategoryDecoration, ImageScale: 1.2, OffsetY: -8},
	}

	for _, t := range builtin {
		Register(t)
	}
}
