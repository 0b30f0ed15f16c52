package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/formexa/formexa/pkg/plans"
)

// mongoStore keeps the ledger embedded in the user document, the same shape
// the rest of the application reads. All mutations are single conditional
// updates so concurrent requests for one user serialize on the document.
type mongoStore struct {
	users *mongo.Collection
}

// NewMongoStore returns a Store backed by the given users collection.
func NewMongoStore(db *mongo.Database) Store {
	return &mongoStore{users: db.Collection("users")}
}

type ledgerDoc struct {
	ID          string           `bson:"_id"`
	Usage       map[string]int64 `bson:"usage"`
	ResetAnchor time.Time        `bson:"usage_reset_at"`
}

func (d ledgerDoc) toLedger() (*Ledger, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger id %q: %w", d.ID, err)
	}
	counts := make(map[plans.Feature]int64, len(d.Usage))
	for f, n := range d.Usage {
		counts[plans.Feature(f)] = n
	}
	return &Ledger{UserID: id, Counts: counts, ResetAnchor: d.ResetAnchor}, nil
}

func zeroUsage() bson.M {
	usage := bson.M{}
	for _, f := range plans.Features() {
		usage[string(f)] = int64(0)
	}
	return usage
}

func (s *mongoStore) Get(ctx context.Context, userID uuid.UUID) (*Ledger, error) {
	var doc ledgerDoc
	err := s.users.FindOne(ctx, bson.M{"_id": userID.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrLedgerNotFound
		}
		return nil, fmt.Errorf("get ledger: %w", err)
	}
	return doc.toLedger()
}

func (s *mongoStore) Create(ctx context.Context, ledger *Ledger) error {
	usage := bson.M{}
	for f, n := range ledger.Counts {
		usage[string(f)] = n
	}

	_, err := s.users.UpdateOne(ctx,
		bson.M{"_id": ledger.UserID.String()},
		bson.M{"$set": bson.M{
			"usage":          usage,
			"usage_reset_at": ledger.ResetAnchor,
		}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}
	return nil
}

// ResetIfDue filters on the stored anchor so a concurrent reset for the same
// period matches at most once; losing the race is indistinguishable from the
// no-op path and equally correct.
func (s *mongoStore) ResetIfDue(ctx context.Context, userID uuid.UUID, periodStart time.Time) error {
	_, err := s.users.UpdateOne(ctx,
		bson.M{
			"_id":            userID.String(),
			"usage_reset_at": bson.M{"$lt": periodStart},
		},
		bson.M{"$set": bson.M{
			"usage":          zeroUsage(),
			"usage_reset_at": periodStart,
		}},
	)
	if err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	return nil
}

func (s *mongoStore) IncrementWithin(ctx context.Context, userID uuid.UUID, feature plans.Feature, limit plans.Limit) (int64, error) {
	field := "usage." + string(feature)

	filter := bson.M{"_id": userID.String()}
	if !limit.IsUnlimited() {
		filter[field] = bson.M{"$lt": int64(limit)}
	}

	var doc ledgerDoc
	err := s.users.FindOneAndUpdate(ctx,
		filter,
		bson.M{"$inc": bson.M{field: int64(1)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return doc.Usage[string(feature)], nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("increment usage: %w", err)
	}

	// No match: either the user is missing or the precondition failed.
	// Re-read to tell the two apart and report the current count.
	ledger, getErr := s.Get(ctx, userID)
	if getErr != nil {
		return 0, getErr
	}
	return ledger.Count(feature), ErrLimitExceeded
}
