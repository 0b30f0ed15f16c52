package projects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/formexa/formexa/pkg/generate"
)

const projectsCollection = "projects"

type projectDoc struct {
	ID          string            `bson:"_id"`
	UserID      string            `bson:"user_id"`
	Title       string            `bson:"title"`
	Description string            `bson:"description,omitempty"`
	Kind        string            `bson:"type"`
	Input       string            `bson:"input"`
	Output      string            `bson:"output,omitempty"`
	Meta        map[string]string `bson:"meta,omitempty"`
	Tags        []string          `bson:"tags,omitempty"`
	IsPublic    bool              `bson:"is_public"`
	CreatedAt   time.Time         `bson:"created_at"`
	UpdatedAt   time.Time         `bson:"updated_at"`
}

func toProjectDoc(p *Project) *projectDoc {
	return &projectDoc{
		ID:          p.ID.String(),
		UserID:      p.UserID.String(),
		Title:       p.Title,
		Description: p.Description,
		Kind:        string(p.Kind),
		Input:       p.Input,
		Output:      p.Output,
		Meta:        p.Meta,
		Tags:        p.Tags,
		IsPublic:    p.IsPublic,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromProjectDoc(doc *projectDoc) (*Project, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("projects: malformed project id %q: %w", doc.ID, err)
	}
	userID, err := uuid.Parse(doc.UserID)
	if err != nil {
		return nil, fmt.Errorf("projects: malformed user id %q: %w", doc.UserID, err)
	}
	return &Project{
		ID:          id,
		UserID:      userID,
		Title:       doc.Title,
		Description: doc.Description,
		Kind:        generate.Kind(doc.Kind),
		Input:       doc.Input,
		Output:      doc.Output,
		Meta:        doc.Meta,
		Tags:        doc.Tags,
		IsPublic:    doc.IsPublic,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}

// mongoStore is a MongoDB-backed Store.
type mongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a project store on the given database.
func NewMongoStore(db *mongo.Database) Store {
	return &mongoStore{coll: db.Collection(projectsCollection)}
}

// EnsureProjectIndexes creates the indexes listing relies on.
func EnsureProjectIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(projectsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "type", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("projects: failed to create project indexes: %w", err)
	}
	return nil
}

func (s *mongoStore) Create(ctx context.Context, p *Project) error {
	if _, err := s.coll.InsertOne(ctx, toProjectDoc(p)); err != nil {
		return fmt.Errorf("projects: failed to insert project: %w", err)
	}
	return nil
}

func (s *mongoStore) List(ctx context.Context, userID uuid.UUID, f Filter) ([]*Project, int64, error) {
	filter := bson.M{"user_id": userID.String()}
	if f.Kind != "" {
		filter["type"] = string(f.Kind)
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("projects: failed to count projects: %w", err)
	}

	cur, err := s.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(f.Offset)).
		SetLimit(int64(f.Limit)),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("projects: failed to list projects: %w", err)
	}
	defer cur.Close(ctx)

	var page []*Project
	for cur.Next(ctx) {
		var doc projectDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("projects: failed to decode project: %w", err)
		}
		p, err := fromProjectDoc(&doc)
		if err != nil {
			return nil, 0, err
		}
		page = append(page, p)
	}
	if err := cur.Err(); err != nil {
		return nil, 0, fmt.Errorf("projects: failed to list projects: %w", err)
	}
	return page, total, nil
}

func (s *mongoStore) Get(ctx context.Context, userID, id uuid.UUID) (*Project, error) {
	var doc projectDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id.String(), "user_id": userID.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("projects: failed to load project: %w", err)
	}
	return fromProjectDoc(&doc)
}

func (s *mongoStore) Update(ctx context.Context, userID, id uuid.UUID, patch Patch) (*Project, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Tags != nil {
		set["tags"] = *patch.Tags
	}
	if patch.IsPublic != nil {
		set["is_public"] = *patch.IsPublic
	}

	var doc projectDoc
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id.String(), "user_id": userID.String()},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("projects: failed to update project: %w", err)
	}
	return fromProjectDoc(&doc)
}

func (s *mongoStore) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id.String(), "user_id": userID.String()})
	if err != nil {
		return fmt.Errorf("projects: failed to delete project: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrProjectNotFound
	}
	return nil
}
