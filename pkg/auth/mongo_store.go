package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/formexa/formexa/pkg/billing"
	"github.com/formexa/formexa/pkg/plans"
)

// userDoc is the users collection shape. The usage fields on the same
// document belong to the entitlement layer and are never touched here.
type userDoc struct {
	ID                 string     `bson:"_id"`
	Email              string     `bson:"email"`
	EmailVerified      bool       `bson:"email_verified"`
	PasswordHash       []byte     `bson:"password_hash,omitempty"`
	VerificationToken  string     `bson:"verification_token,omitempty"`
	ResetToken         string     `bson:"reset_token,omitempty"`
	ResetTokenExpires  *time.Time `bson:"reset_token_expires,omitempty"`
	Plan               string     `bson:"plan"`
	SubscriptionStatus string     `bson:"subscription_status"`
	CreatedAt          time.Time  `bson:"created_at"`
	UpdatedAt          time.Time  `bson:"updated_at"`
}

func (d *userDoc) toUser() (*User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("auth: malformed user id %q: %w", d.ID, err)
	}
	return &User{
		ID:                 id,
		Email:              d.Email,
		EmailVerified:      d.EmailVerified,
		Plan:               plans.PlanID(d.Plan),
		SubscriptionStatus: billing.Status(d.SubscriptionStatus),
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}, nil
}

// mongoStorage is a MongoDB-backed Storage over the users collection.
type mongoStorage struct {
	users *mongo.Collection
}

// NewMongoStorage creates user storage on the given database.
func NewMongoStorage(db *mongo.Database) Storage {
	return &mongoStorage{users: db.Collection("users")}
}

// EnsureUserIndexes creates the unique email index and sparse indexes for
// the token lookups.
func EnsureUserIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("users").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "verification_token", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "reset_token", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("auth: failed to create user indexes: %w", err)
	}
	return nil
}

func (s *mongoStorage) CreateUser(ctx context.Context, user *User) error {
	doc := userDoc{
		ID:                 user.ID.String(),
		Email:              user.Email,
		Plan:               string(user.Plan),
		SubscriptionStatus: string(user.SubscriptionStatus),
		CreatedAt:          user.CreatedAt,
		UpdatedAt:          user.UpdatedAt,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailAlreadyExists
		}
		return fmt.Errorf("auth: failed to insert user: %w", err)
	}
	return nil
}

func (s *mongoStorage) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth: failed to load user: %w", err)
	}
	return doc.toUser()
}

func (s *mongoStorage) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.findOne(ctx, bson.M{"_id": id.String()})
}

func (s *mongoStorage) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (s *mongoStorage) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := s.users.DeleteOne(ctx, bson.M{"_id": id.String()}); err != nil {
		return fmt.Errorf("auth: failed to delete user: %w", err)
	}
	return nil
}

func (s *mongoStorage) StorePasswordHash(ctx context.Context, userID uuid.UUID, hash []byte) error {
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID.String()},
		bson.M{"$set": bson.M{"password_hash": hash, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("auth: failed to store password hash: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *mongoStorage) GetPasswordHash(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"_id": userID.String()},
		options.FindOne().SetProjection(bson.M{"password_hash": 1}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth: failed to load password hash: %w", err)
	}
	return doc.PasswordHash, nil
}

func (s *mongoStorage) StoreVerificationToken(ctx context.Context, userID uuid.UUID, tokenHash string) error {
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID.String()},
		bson.M{"$set": bson.M{"verification_token": tokenHash, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("auth: failed to store verification token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *mongoStorage) ConsumeVerificationToken(ctx context.Context, tokenHash string) (*User, error) {
	var doc userDoc
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"verification_token": tokenHash},
		bson.M{
			"$set":   bson.M{"email_verified": true, "updated_at": time.Now().UTC()},
			"$unset": bson.M{"verification_token": ""},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("auth: failed to consume verification token: %w", err)
	}
	return doc.toUser()
}

func (s *mongoStorage) StoreResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expires time.Time) error {
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID.String()},
		bson.M{"$set": bson.M{
			"reset_token":         tokenHash,
			"reset_token_expires": expires,
			"updated_at":          time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("auth: failed to store reset token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *mongoStorage) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*User, error) {
	// Expiry is part of the filter so an expired token cannot match; the
	// token is cleared in the same operation so it is single-use.
	var doc userDoc
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{
			"reset_token":         tokenHash,
			"reset_token_expires": bson.M{"$gt": now},
		},
		bson.M{
			"$set":   bson.M{"updated_at": now},
			"$unset": bson.M{"reset_token": "", "reset_token_expires": ""},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("auth: failed to consume reset token: %w", err)
	}
	return doc.toUser()
}
