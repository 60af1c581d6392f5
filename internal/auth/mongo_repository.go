package auth

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig contains connection settings for MongoDB account repository.
type MongoConfig struct {
	URI        string // e.g. mongodb://localhost:27017
	Database   string // e.g. growdoro
	Collection string // e.g. accounts
	Counters   string // e.g. counters (for auto-increment)
}

// MongoAccountRepo implements AccountRepository on MongoDB backend.
type MongoAccountRepo struct {
	client      *mongo.Client
	collection  *mongo.Collection
	counterColl *mongo.Collection
	ctxTimeout  time.Duration
}

type accountDoc struct {
	AccountID        uint64     `bson:"account_id"`
	Username         string     `bson:"username"`
	Email            string     `bson:"email,omitempty"`
	PasswordHash     string     `bson:"password_hash"`
	CreatedAt        time.Time  `bson:"created_at"`
	LastLogin        time.Time  `bson:"last_login"`
	Supporter        bool       `bson:"supporter,omitempty"`
	SupporterSince   *time.Time `bson:"supporter_since,omitempty"`
	StripeCustomerID string     `bson:"stripe_customer_id,omitempty"`
}

func (d accountDoc) toAccount() *Account {
	return &Account{
		ID:               d.AccountID,
		Username:         d.Username,
		Email:            d.Email,
		PasswordHash:     d.PasswordHash,
		CreatedAt:        d.CreatedAt,
		LastLogin:        d.LastLogin,
		Supporter:        d.Supporter,
		SupporterSince:   d.SupporterSince,
		StripeCustomerID: d.StripeCustomerID,
	}
}

// NewMongoAccountRepo establishes connection and returns repository.
func NewMongoAccountRepo(cfg MongoConfig) (*MongoAccountRepo, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "growdoro"
	}
	if cfg.Collection == "" {
		cfg.Collection = "accounts"
	}
	if cfg.Counters == "" {
		cfg.Counters = "counters"
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
	db := client.Database(cfg.Database)
	repo := &MongoAccountRepo{
		client:      client,
		collection:  db.Collection(cfg.Collection),
		counterColl: db.Collection(cfg.Counters),
		ctxTimeout:  5 * time.Second,
	}

	if err := repo.ensureIndexes(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (m *MongoAccountRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	usernameIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_unique"),
	}
	accountIDIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "account_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("accountid_unique"),
	}
	// Обратный поиск аккаунта из биллинговых вебхуков
	customerIdx := mongo.IndexModel{
		Keys: bson.D{{Key: "stripe_customer_id", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetName("stripe_customer_unique").
			SetPartialFilterExpression(bson.M{"stripe_customer_id": bson.M{"$exists": true}}),
	}
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{usernameIdx, accountIDIdx, customerIdx})
	return err
}

func (m *MongoAccountRepo) findOne(filter bson.M) (*Account, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()

	var doc accountDoc
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toAccount(), nil
}

// GetByUsername implements AccountRepository.
func (m *MongoAccountRepo) GetByUsername(username string) (*Account, error) {
	return m.findOne(bson.M{"username": strings.ToLower(username)})
}

// GetByID implements AccountRepository.
func (m *MongoAccountRepo) GetByID(id uint64) (*Account, error) {
	return m.findOne(bson.M{"account_id": id})
}

// GetByStripeCustomerID implements AccountRepository.
func (m *MongoAccountRepo) GetByStripeCustomerID(customerID string) (*Account, error) {
	return m.findOne(bson.M{"stripe_customer_id": customerID})
}

// Create inserts a new document and returns created account.
func (m *MongoAccountRepo) Create(username, email, passwordHash string) (*Account, error) {
	lower := strings.ToLower(username)

	nextID, err := m.nextSequence("accountid")
	if err != nil {
		return nil, err
	}
	acc := &Account{
		ID:           nextID,
		Username:     lower,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		LastLogin:    time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	_, err = m.collection.InsertOne(ctx, accountDoc{
		AccountID:    acc.ID,
		Username:     acc.Username,
		Email:        acc.Email,
		PasswordHash: acc.PasswordHash,
		CreatedAt:    acc.CreatedAt,
		LastLogin:    acc.LastLogin,
	})
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrAccountExists
	}
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// ValidateCredentials implements AccountRepository.
func (m *MongoAccountRepo) ValidateCredentials(username, password string) (*Account, error) {
	acc, err := m.GetByUsername(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !CheckPassword(acc.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

// SetSupporter implements AccountRepository.
func (m *MongoAccountRepo) SetSupporter(id uint64, supporter bool, customerID string, since time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()

	set := bson.M{"supporter": supporter}
	unset := bson.M{}
	if customerID != "" {
		set["stripe_customer_id"] = customerID
	}
	if supporter {
		set["supporter_since"] = since
	} else {
		unset["supporter_since"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	res, err := m.collection.UpdateOne(ctx, bson.M{"account_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// UpdateLastLogin implements AccountRepository.
func (m *MongoAccountRepo) UpdateLastLogin(id uint64) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	_, err := m.collection.UpdateOne(ctx,
		bson.M{"account_id": id},
		bson.M{"$set": bson.M{"last_login": time.Now()}},
	)
	return err
}

// nextSequence atomically increments a counter and returns new value.
func (m *MongoAccountRepo) nextSequence(name string) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	res := m.counterColl.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := res.Decode(&doc); err != nil {
		return 0, err
	}
	return uint64(doc.Seq), nil
}

// Close terminates connection.
func (m *MongoAccountRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
