package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/feresegna/bus-portal/internal/models"
)

// ErrDuplicateEmail is returned when an account with the email already exists.
var ErrDuplicateEmail = errors.New("email already exists")

// AccountCollection defines the interface for account database operations
type AccountCollection interface {
	InsertAccount(ctx context.Context, account *models.Account) error
	FindAccountByID(ctx context.Context, id string) (*models.Account, error)
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdateLastLogin(ctx context.Context, id string) error
	ListAccounts(ctx context.Context, filter AccountFilter) ([]models.Account, error)
	UpdateStatus(ctx context.Context, id string, status models.AccountStatus) (*models.Account, error)
}

// AccountFilter narrows ListAccounts. Empty fields match everything.
type AccountFilter struct {
	Role   models.Role
	Status models.AccountStatus
}

// MongoAccountCollection implements AccountCollection for MongoDB
type MongoAccountCollection struct {
	Collection *mongo.Collection
}

// EnsureIndexes creates the unique email index.
func (c *MongoAccountCollection) EnsureIndexes(ctx context.Context) error {
	_, err := c.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create email index: %w", err)
	}
	return nil
}

// InsertAccount inserts a new account. The account's ID and timestamps are
// filled in when unset.
func (c *MongoAccountCollection) InsertAccount(ctx context.Context, account *models.Account) error {
	now := time.Now()
	if account.ID.IsZero() {
		account.ID = primitive.NewObjectID()
	}
	account.Email = normalizeEmail(account.Email)
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := c.Collection.InsertOne(ctx, account)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	return err
}

// FindAccountByID finds an account by its ID
func (c *MongoAccountCollection) FindAccountByID(ctx context.Context, id string) (*models.Account, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return c.findOne(ctx, bson.M{"_id": objectID})
}

// FindAccountByEmail finds an account by its email
func (c *MongoAccountCollection) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return c.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

func (c *MongoAccountCollection) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var account models.Account
	err := c.Collection.FindOne(ctx, filter).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateLastLogin updates the last login time for an account
func (c *MongoAccountCollection) UpdateLastLogin(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	now := time.Now()
	_, err = c.Collection.UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"last_login": now, "updated_at": now}},
	)
	return err
}

// ListAccounts returns the accounts matching filter, oldest first.
func (c *MongoAccountCollection) ListAccounts(ctx context.Context, filter AccountFilter) ([]models.Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := c.Collection.Find(ctx, accountFilter(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	accounts := []models.Account{}
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// UpdateStatus sets the status of an account and returns the updated account.
func (c *MongoAccountCollection) UpdateStatus(ctx context.Context, id string, status models.AccountStatus) (*models.Account, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var account models.Account
	err = c.Collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func accountFilter(filter AccountFilter) bson.M {
	m := bson.M{}
	if filter.Role != "" {
		m["role"] = filter.Role
	}
	if filter.Status != "" {
		m["status"] = filter.Status
	}
	return m
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
