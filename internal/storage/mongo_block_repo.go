package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/annel0/growdoro/internal/garden"
	"github.com/annel0/growdoro/internal/vec"
)

// MongoConfig содержит настройки подключения MongoDB репозитория блоков.
type MongoConfig struct {
	URI        string // например mongodb://localhost:27017
	Database   string // например growdoro
	Collection string // например blocks
}

// MongoBlockRepo реализует BlockRepo поверх MongoDB.
// Частично-уникальный индекс по (владелец, x, y, z) для размещённых
// документов превращает гонку check-then-act в duplicate key error.
type MongoBlockRepo struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
}

// blockDoc — схема документа блока.
type blockDoc struct {
	ID        string     `bson:"_id"`
	AccountID uint64     `bson:"account_id,omitempty"`
	SessionID string     `bson:"session_id,omitempty"`
	Type      string     `bson:"type"`
	Placed    bool       `bson:"placed"`
	X         int        `bson:"x,omitempty"`
	Y         int        `bson:"y,omitempty"`
	Z         int        `bson:"z,omitempty"`
	PlantedAt *time.Time `bson:"planted_at,omitempty"`
	CreatedAt time.Time  `bson:"created_at"`
}

func docFromBlock(b *garden.Block) blockDoc {
	doc := blockDoc{
		ID:        b.ID,
		AccountID: b.Owner.AccountID,
		SessionID: b.Owner.SessionID,
		Type:      b.Type,
		PlantedAt: b.PlantedAt,
		CreatedAt: b.CreatedAt,
	}
	if b.Pos != nil {
		doc.Placed = true
		doc.X, doc.Y, doc.Z = b.Pos.X, b.Pos.Y, b.Pos.Z
	}
	return doc
}

func (d blockDoc) toBlock() *garden.Block {
	b := &garden.Block{
		ID:        d.ID,
		Owner:     garden.Owner{AccountID: d.AccountID, SessionID: d.SessionID},
		Type:      d.Type,
		PlantedAt: d.PlantedAt,
		CreatedAt: d.CreatedAt,
	}
	if d.Placed {
		b.Pos = &vec.Vec3{X: d.X, Y: d.Y, Z: d.Z}
	}
	return b
}

// ownerFilter строит bson-фильтр по владельцу.
func ownerFilter(owner garden.Owner) bson.M {
	if owner.IsAccount() {
		return bson.M{"account_id": owner.AccountID}
	}
	return bson.M{"session_id": owner.SessionID}
}

// NewMongoBlockRepo устанавливает соединение и возвращает репозиторий.
func NewMongoBlockRepo(cfg MongoConfig) (*MongoBlockRepo, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "growdoro"
	}
	if cfg.Collection == "" {
		cfg.Collection = "blocks"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	repo := &MongoBlockRepo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		ctxTimeout: 5 * time.Second,
	}

	if err := repo.ensureIndexes(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (m *MongoBlockRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()

	ownerIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "account_id", Value: 1}, {Key: "session_id", Value: 1}},
		Options: options.Index().SetName("owner"),
	}
	// Уникальность координаты среди размещённых блоков владельца
	posIdx := mongo.IndexModel{
		Keys: bson.D{
			{Key: "account_id", Value: 1},
			{Key: "session_id", Value: 1},
			{Key: "x", Value: 1},
			{Key: "y", Value: 1},
			{Key: "z", Value: 1},
		},
		Options: options.Index().
			SetUnique(true).
			SetName("owner_pos_unique").
			SetPartialFilterExpression(bson.M{"placed": true}),
	}
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{ownerIdx, posIdx})
	return err
}

// GetByID реализует BlockRepo.
func (m *MongoBlockRepo) GetByID(ctx context.Context, id string) (*garden.Block, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	var doc blockDoc
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toBlock(), nil
}

func (m *MongoBlockRepo) list(ctx context.Context, filter bson.M) ([]*garden.Block, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	cur, err := m.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*garden.Block
	for cur.Next(ctx) {
		var doc blockDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toBlock())
	}
	return out, cur.Err()
}

// ListByOwner реализует BlockRepo.
func (m *MongoBlockRepo) ListByOwner(ctx context.Context, owner garden.Owner) ([]*garden.Block, error) {
	return m.list(ctx, ownerFilter(owner))
}

// ListPlacedByOwner реализует BlockRepo.
func (m *MongoBlockRepo) ListPlacedByOwner(ctx context.Context, owner garden.Owner) ([]*garden.Block, error) {
	filter := ownerFilter(owner)
	filter["placed"] = true
	return m.list(ctx, filter)
}

// CreateMany реализует BlockRepo.
func (m *MongoBlockRepo) CreateMany(ctx context.Context, blocks []*garden.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	docs := make([]interface{}, 0, len(blocks))
	for _, b := range blocks {
		docs = append(docs, docFromBlock(b))
	}
	_, err := m.collection.InsertMany(ctx, docs)
	if mongo.IsDuplicateKeyError(err) {
		return ErrTileOccupied
	}
	return err
}

// Place реализует BlockRepo.
func (m *MongoBlockRepo) Place(ctx context.Context, id string, pos vec.Vec3, plantedAt *time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"placed": true, "x": pos.X, "y": pos.Y, "z": pos.Z}}
	res, err := m.collection.UpdateByID(ctx, id, update)
	if mongo.IsDuplicateKeyError(err) {
		return ErrTileOccupied
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrBlockNotFound
	}

	// plantedAt ставим отдельным шагом и только если его ещё нет
	if plantedAt != nil {
		_, err = m.collection.UpdateOne(ctx,
			bson.M{"_id": id, "planted_at": bson.M{"$exists": false}},
			bson.M{"$set": bson.M{"planted_at": *plantedAt}},
		)
	}
	return err
}

// Move реализует BlockRepo.
func (m *MongoBlockRepo) Move(ctx context.Context, id string, pos vec.Vec3) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	res, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": id, "placed": true},
		bson.M{"$set": bson.M{"x": pos.X, "y": pos.Y, "z": pos.Z}},
	)
	if mongo.IsDuplicateKeyError(err) {
		return ErrTileOccupied
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrBlockNotFound
	}
	return nil
}

// ClaimUnplaced реализует BlockRepo.
func (m *MongoBlockRepo) ClaimUnplaced(ctx context.Context, owner garden.Owner, typeKey string, pos vec.Vec3, plantedAt *time.Time) (*garden.Block, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	// Проверяем занятость позиции (индекс добьёт гонку)
	occFilter := ownerFilter(owner)
	occFilter["placed"] = true
	occFilter["x"] = pos.X
	occFilter["y"] = pos.Y
	occFilter["z"] = pos.Z
	n, err := m.collection.CountDocuments(ctx, occFilter)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrTileOccupied
	}

	filter := ownerFilter(owner)
	filter["type"] = typeKey
	filter["placed"] = false

	update := bson.M{"$set": bson.M{"placed": true, "x": pos.X, "y": pos.Y, "z": pos.Z}}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetReturnDocument(options.After)

	var doc blockDoc
	err = m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNoUnplacedBlock
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrTileOccupied
	}
	if err != nil {
		return nil, err
	}

	if plantedAt != nil && doc.PlantedAt == nil {
		_, err = m.collection.UpdateOne(ctx,
			bson.M{"_id": doc.ID, "planted_at": bson.M{"$exists": false}},
			bson.M{"$set": bson.M{"planted_at": *plantedAt}},
		)
		if err != nil {
			return nil, err
		}
		doc.PlantedAt = plantedAt
	}
	return doc.toBlock(), nil
}

// Unplace реализует BlockRepo: блок возвращается в инвентарь,
// planted_at остаётся нетронутым.
func (m *MongoBlockRepo) Unplace(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	update := bson.M{
		"$set":   bson.M{"placed": false},
		"$unset": bson.M{"x": "", "y": "", "z": ""},
	}
	res, err := m.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrBlockNotFound
	}
	return nil
}

// SetOwner реализует BlockRepo.
func (m *MongoBlockRepo) SetOwner(ctx context.Context, id string, owner garden.Owner) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	update := bson.M{
		"$set":   bson.M{"account_id": owner.AccountID},
		"$unset": bson.M{"session_id": ""},
	}
	if !owner.IsAccount() {
		update = bson.M{
			"$set":   bson.M{"session_id": owner.SessionID},
			"$unset": bson.M{"account_id": ""},
		}
	}

	res, err := m.collection.UpdateByID(ctx, id, update)
	if mongo.IsDuplicateKeyError(err) {
		return ErrTileOccupied
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrBlockNotFound
	}
	return nil
}

// Delete реализует BlockRepo.
func (m *MongoBlockRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	res, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrBlockNotFound
	}
	return nil
}

// FindDuplicates реализует BlockRepo.
func (m *MongoBlockRepo) FindDuplicates(ctx context.Context, owner garden.Owner) ([]*garden.Block, error) {
	placed, err := m.ListPlacedByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	// Группируем по координате, первым выживает самый старый
	byPos := make(map[vec.Vec3][]*garden.Block)
	for _, b := range placed {
		byPos[*b.Pos] = append(byPos[*b.Pos], b)
	}

	var dups []*garden.Block
	for _, group := range byPos {
		if len(group) < 2 {
			continue
		}
		oldest := 0
		for i, b := range group {
			if b.CreatedAt.Before(group[oldest].CreatedAt) {
				oldest = i
			}
		}
		for i, b := range group {
			if i != oldest {
				dups = append(dups, b)
			}
		}
	}
	return dups, nil
}

// ListOwners реализует BlockRepo.
func (m *MongoBlockRepo) ListOwners(ctx context.Context) ([]garden.Owner, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	accounts, err := m.collection.Distinct(ctx, "account_id", bson.M{"account_id": bson.M{"$gt": 0}})
	if err != nil {
		return nil, err
	}
	sessions, err := m.collection.Distinct(ctx, "session_id", bson.M{"session_id": bson.M{"$ne": ""}})
	if err != nil {
		return nil, err
	}

	var owners []garden.Owner
	for _, a := range accounts {
		switch v := a.(type) {
		case int64:
			owners = append(owners, garden.AccountOwner(uint64(v)))
		case int32:
			owners = append(owners, garden.AccountOwner(uint64(v)))
		}
	}
	for _, s := range sessions {
		if sid, ok := s.(string); ok && sid != "" {
			owners = append(owners, garden.SessionOwner(sid))
		}
	}
	return owners, nil
}

// Close закрывает соединение с MongoDB.
// Database отдаёт хэндл базы для соседних Mongo-репозиториев.
func (m *MongoBlockRepo) Database() *mongo.Database {
	return m.collection.Database()
}

func (m *MongoBlockRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
