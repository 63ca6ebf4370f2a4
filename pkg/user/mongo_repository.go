package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// userDoc is the MongoDB document shape. Field names match the original
// DevBook users collection so both backends can share one database.
type userDoc struct {
	ID               string    `bson:"_id"`
	Name             string    `bson:"name"`
	Email            string    `bson:"email"`
	Password         string    `bson:"password"`
	TwoFactorSecret  string    `bson:"twoFactorSecret,omitempty"`
	TwoFactorEnabled bool      `bson:"twoFactorEnabled"`
	Date             time.Time `bson:"date"`
}

func (d userDoc) toUser() (User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return User{}, fmt.Errorf("malformed user id %q: %w", d.ID, err)
	}
	return User{
		ID:               id,
		Name:             d.Name,
		Email:            d.Email,
		PasswordHash:     d.Password,
		TwoFactorSecret:  d.TwoFactorSecret,
		TwoFactorEnabled: d.TwoFactorEnabled,
		CreatedAt:        d.Date,
	}, nil
}

// MongoRepository implements Repository over a MongoDB users collection.
// All mutations are single-document updates by _id, which gives the
// atomicity the login flow relies on.
type MongoRepository struct {
	users *mongo.Collection
}

// NewMongoRepository creates a repository over the given database and
// ensures the unique email index exists.
func NewMongoRepository(ctx context.Context, db *mongo.Database) (*MongoRepository, error) {
	users := db.Collection("users")
	_, err := users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure email index: %w", err)
	}
	return &MongoRepository{users: users}, nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id uuid.UUID) (User, error) {
	var doc userDoc
	err := r.users.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to find user by id: %w", err)
	}
	return doc.toUser()
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	var doc userDoc
	err := r.users.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to find user by email: %w", err)
	}
	return doc.toUser()
}

func (r *MongoRepository) Create(ctx context.Context, u User) error {
	doc := userDoc{
		ID:               u.ID.String(),
		Name:             u.Name,
		Email:            NormalizeEmail(u.Email),
		Password:         u.PasswordHash,
		TwoFactorSecret:  u.TwoFactorSecret,
		TwoFactorEnabled: u.TwoFactorEnabled,
		Date:             u.CreatedAt,
	}
	_, err := r.users.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *MongoRepository) SetTwoFactorSecret(ctx context.Context, id uuid.UUID, secret string) error {
	res, err := r.users.UpdateByID(ctx, id.String(), bson.M{
		"$set": bson.M{"twoFactorSecret": secret},
	})
	if err != nil {
		return fmt.Errorf("failed to set 2FA secret: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) EnableTwoFactor(ctx context.Context, id uuid.UUID) error {
	res, err := r.users.UpdateByID(ctx, id.String(), bson.M{
		"$set": bson.M{"twoFactorEnabled": true},
	})
	if err != nil {
		return fmt.Errorf("failed to enable 2FA: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DisableTwoFactor clears the enabled flag and removes the secret in a
// single update, so no reader ever observes enabled-without-secret.
func (r *MongoRepository) DisableTwoFactor(ctx context.Context, id uuid.UUID) error {
	res, err := r.users.UpdateByID(ctx, id.String(), bson.M{
		"$set":   bson.M{"twoFactorEnabled": false},
		"$unset": bson.M{"twoFactorSecret": ""},
	})
	if err != nil {
		return fmt.Errorf("failed to disable 2FA: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
