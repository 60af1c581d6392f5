package session

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/annel0/growdoro/internal/garden"
)

// MongoRepo реализует Repo поверх MongoDB. Отметка о выдаче наград
// делается одним FindOneAndUpdate, чтобы повторный запрос выдачи
// проигрывал гонку и получал ErrAlreadyClaimed.
type MongoRepo struct {
	collection *mongo.Collection
	ctxTimeout time.Duration
}

type sessionDoc struct {
	ID               string     `bson:"_id"`
	AccountID        uint64     `bson:"account_id,omitempty"`
	SessionID        string     `bson:"session_id,omitempty"`
	DurationSec      int        `bson:"duration_sec"`
	StartedAt        time.Time  `bson:"started_at"`
	PausedAt         *time.Time `bson:"paused_at,omitempty"`
	TotalPausedSec   int        `bson:"total_paused_sec,omitempty"`
	CompletedAt      *time.Time `bson:"completed_at,omitempty"`
	CancelledAt      *time.Time `bson:"cancelled_at,omitempty"`
	RewardsClaimedAt *time.Time `bson:"rewards_claimed_at,omitempty"`
}

func docFromSession(s *Session) sessionDoc {
	return sessionDoc{
		ID:               s.ID,
		AccountID:        s.Owner.AccountID,
		SessionID:        s.Owner.SessionID,
		DurationSec:      s.DurationSec,
		StartedAt:        s.StartedAt,
		PausedAt:         s.PausedAt,
		TotalPausedSec:   s.TotalPausedSec,
		CompletedAt:      s.CompletedAt,
		CancelledAt:      s.CancelledAt,
		RewardsClaimedAt: s.RewardsClaimedAt,
	}
}

func (d sessionDoc) toSession() *Session {
	return &Session{
		ID:               d.ID,
		Owner:            garden.Owner{AccountID: d.AccountID, SessionID: d.SessionID},
		DurationSec:      d.DurationSec,
		StartedAt:        d.StartedAt,
		PausedAt:         d.PausedAt,
		TotalPausedSec:   d.TotalPausedSec,
		CompletedAt:      d.CompletedAt,
		CancelledAt:      d.CancelledAt,
		RewardsClaimedAt: d.RewardsClaimedAt,
	}
}

func ownerFilter(owner garden.Owner) bson.M {
	if owner.IsAccount() {
		return bson.M{"account_id": owner.AccountID}
	}
	return bson.M{"session_id": owner.SessionID}
}

// NewMongoRepo создаёт репозиторий сессий поверх готового подключения.
func NewMongoRepo(db *mongo.Database, collection string) (*MongoRepo, error) {
	if collection == "" {
		collection = "sessions"
	}
	repo := &MongoRepo{
		collection: db.Collection(collection),
		ctxTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), repo.ctxTimeout)
	defer cancel()
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "account_id", Value: 1}, {Key: "session_id", Value: 1}, {Key: "started_at", Value: -1}},
		Options: options.Index().SetName("owner_started"),
	}
	if _, err := repo.collection.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (m *MongoRepo) Create(ctx context.Context, s *Session) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	_, err := m.collection.InsertOne(ctx, docFromSession(s))
	return err
}

func (m *MongoRepo) GetByID(ctx context.Context, id string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	var doc sessionDoc
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toSession(), nil
}

func (m *MongoRepo) Save(ctx context.Context, s *Session) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	res, err := m.collection.ReplaceOne(ctx, bson.M{"_id": s.ID}, docFromSession(s))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (m *MongoRepo) ListByOwner(ctx context.Context, owner garden.Owner, limit int) ([]*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := m.collection.Find(ctx, ownerFilter(owner), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*Session
	for cur.Next(ctx) {
		var doc sessionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toSession())
	}
	return out, cur.Err()
}

func (m *MongoRepo) ClaimRewards(ctx context.Context, id string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	// Атомарная отметка: совпадёт только для ещё не выданных наград
	filter := bson.M{"_id": id, "rewards_claimed_at": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"rewards_claimed_at": now}}
	err := m.collection.FindOneAndUpdate(ctx, filter, update).Err()
	if err == mongo.ErrNoDocuments {
		// Либо сессии нет, либо награды уже забрали
		if _, getErr := m.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrAlreadyClaimed
	}
	return err
}

func (m *MongoRepo) SetOwner(ctx context.Context, from, to garden.Owner) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"account_id": to.AccountID}, "$unset": bson.M{"session_id": ""}}
	if !to.IsAccount() {
		update = bson.M{"$set": bson.M{"session_id": to.SessionID}, "$unset": bson.M{"account_id": ""}}
	}
	res, err := m.collection.UpdateMany(ctx, ownerFilter(from), update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
