package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/formexa/formexa/pkg/plans"
)

const (
	subscriptionsCollection = "subscriptions"
	usersCollection         = "users"
)

type subscriptionDoc struct {
	ID             string     `bson:"_id"`
	UserID         string     `bson:"user_id"`
	Plan           string     `bson:"plan"`
	BillingCycle   string     `bson:"billing_cycle"`
	PriceAmount    int64      `bson:"price_amount"`
	PriceCurrency  string     `bson:"price_currency"`
	ProviderSubID  string     `bson:"provider_sub_id,omitempty"`
	Status         string     `bson:"status"`
	StartDate      *time.Time `bson:"start_date,omitempty"`
	RenewalDate    *time.Time `bson:"renewal_date,omitempty"`
	EndDate        *time.Time `bson:"end_date,omitempty"`
	CancelledAt    *time.Time `bson:"cancelled_at,omitempty"`
	FailedPayments int        `bson:"failed_payments"`
	Events         []Event    `bson:"events"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
	Version        int64      `bson:"version"`
}

func toDoc(s *Subscription) *subscriptionDoc {
	return &subscriptionDoc{
		ID:             s.ID.String(),
		UserID:         s.UserID.String(),
		Plan:           string(s.Plan),
		BillingCycle:   string(s.BillingCycle),
		PriceAmount:    s.Price.Amount,
		PriceCurrency:  s.Price.Currency,
		ProviderSubID:  s.ProviderSubID,
		Status:         string(s.Status),
		StartDate:      s.StartDate,
		RenewalDate:    s.RenewalDate,
		EndDate:        s.EndDate,
		CancelledAt:    s.CancelledAt,
		FailedPayments: s.FailedPayments,
		Events:         s.Events,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		Version:        s.Version,
	}
}

func fromDoc(doc *subscriptionDoc) (*Subscription, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("billing: malformed subscription id %q: %w", doc.ID, err)
	}
	userID, err := uuid.Parse(doc.UserID)
	if err != nil {
		return nil, fmt.Errorf("billing: malformed user id %q: %w", doc.UserID, err)
	}
	return &Subscription{
		ID:             id,
		UserID:         userID,
		Plan:           plans.PlanID(doc.Plan),
		BillingCycle:   plans.BillingCycle(doc.BillingCycle),
		Price:          plans.Money{Amount: doc.PriceAmount, Currency: doc.PriceCurrency},
		ProviderSubID:  doc.ProviderSubID,
		Status:         Status(doc.Status),
		StartDate:      doc.StartDate,
		RenewalDate:    doc.RenewalDate,
		EndDate:        doc.EndDate,
		CancelledAt:    doc.CancelledAt,
		FailedPayments: doc.FailedPayments,
		Events:         doc.Events,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
		Version:        doc.Version,
	}, nil
}

// mongoStore is a MongoDB-backed SubscriptionStore.
type mongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a subscription store on the given database.
func NewMongoStore(db *mongo.Database) SubscriptionStore {
	return &mongoStore{coll: db.Collection(subscriptionsCollection)}
}

// EnsureSubscriptionIndexes creates the indexes the store relies on. The
// partial unique index enforces that a provider subscription id, once
// assigned, belongs to exactly one record.
func EnsureSubscriptionIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(subscriptionsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "provider_sub_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"provider_sub_id": bson.M{"$type": "string", "$gt": ""}},
			),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("billing: failed to create subscription indexes: %w", err)
	}
	return nil
}

func (s *mongoStore) findOne(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOneOptions]) (*Subscription, error) {
	var doc subscriptionDoc
	if err := s.coll.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("billing: failed to load subscription: %w", err)
	}
	return fromDoc(&doc)
}

func (s *mongoStore) Get(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return s.findOne(ctx, bson.M{"_id": id.String()})
}

func (s *mongoStore) GetByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	filter := bson.M{
		"user_id": userID.String(),
		"status":  bson.M{"$nin": bson.A{string(StatusInactive), string(StatusCancelled)}},
	}
	return s.findOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (s *mongoStore) GetByProviderSubID(ctx context.Context, providerSubID string) (*Subscription, error) {
	if providerSubID == "" {
		return nil, ErrSubscriptionNotFound
	}
	return s.findOne(ctx, bson.M{"provider_sub_id": providerSubID})
}

func (s *mongoStore) GetPendingByUser(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	filter := bson.M{
		"user_id": userID.String(),
		"status":  string(StatusPending),
	}
	return s.findOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (s *mongoStore) Create(ctx context.Context, sub *Subscription) error {
	if _, err := s.coll.InsertOne(ctx, toDoc(sub)); err != nil {
		return fmt.Errorf("billing: failed to insert subscription: %w", err)
	}
	return nil
}

func (s *mongoStore) Update(ctx context.Context, sub *Subscription) error {
	doc := toDoc(sub)
	doc.Version = sub.Version + 1

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": sub.Version}, doc)
	if err != nil {
		return fmt.Errorf("billing: failed to update subscription: %w", err)
	}
	if res.MatchedCount == 0 {
		// Either the record is gone or another writer bumped the version
		// first; callers re-read and re-apply in both cases.
		return ErrVersionConflict
	}
	sub.Version = doc.Version
	return nil
}

// mongoDirectory is a MongoDB-backed UserDirectory over the users collection.
type mongoDirectory struct {
	coll *mongo.Collection
}

// NewMongoDirectory creates a user directory on the given database.
func NewMongoDirectory(db *mongo.Database) UserDirectory {
	return &mongoDirectory{coll: db.Collection(usersCollection)}
}

func (d *mongoDirectory) FindByEmail(ctx context.Context, email string) (*Account, error) {
	var doc struct {
		ID     string `bson:"_id"`
		Email  string `bson:"email"`
		Plan   string `bson:"plan"`
		Status string `bson:"subscription_status"`
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if err := d.coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("billing: failed to load user: %w", err)
	}
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("billing: malformed user id %q: %w", doc.ID, err)
	}
	return &Account{
		ID:     id,
		Email:  doc.Email,
		Plan:   plans.PlanID(doc.Plan),
		Status: Status(doc.Status),
	}, nil
}

func (d *mongoDirectory) SetPlanStatus(ctx context.Context, userID uuid.UUID, plan plans.PlanID, status Status) error {
	res, err := d.coll.UpdateOne(ctx,
		bson.M{"_id": userID.String()},
		bson.M{"$set": bson.M{
			"plan":                string(plan),
			"subscription_status": string(status),
			"updated_at":          time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("billing: failed to update user plan: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}
