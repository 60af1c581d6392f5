package eventbus

// Типы доменных событий сада. Подписчики фильтруют по этим строкам,
// JetStream раскладывает их по subject'ам garden.<type>.
const (
	EventBlockPlaced    = "block.placed"
	EventBlockMoved     = "block.moved"
	EventBlockGranted   = "block.granted"
	EventProfileUpdated = "profile.updated"
)
