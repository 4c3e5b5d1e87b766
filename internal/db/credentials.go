package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const credentialTimeout = 5 * time.Second

// CredentialStore persists one portal client's session token and cached user
// profile in a single document keyed by the client ID.
type CredentialStore struct {
	Collection *mongo.Collection
	ClientID   string
}

type credentialDoc struct {
	ID        string            `bson:"_id"`
	Values    map[string]string `bson:"values"`
	UpdatedAt time.Time         `bson:"updated_at"`
}

// Get returns the value stored under key.
func (s *CredentialStore) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), credentialTimeout)
	defer cancel()

	var doc credentialDoc
	err := s.Collection.FindOne(ctx, bson.M{"_id": s.ClientID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	v, ok := doc.Values[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *CredentialStore) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), credentialTimeout)
	defer cancel()

	_, err := s.Collection.UpdateOne(ctx,
		bson.M{"_id": s.ClientID},
		bson.M{"$set": bson.M{"values." + key: value, "updated_at": time.Now()}},
		options.Update().SetUpsert(true),
	)
	return err
}

// Delete removes key.
func (s *CredentialStore) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), credentialTimeout)
	defer cancel()

	_, err := s.Collection.UpdateOne(ctx,
		bson.M{"_id": s.ClientID},
		bson.M{
			"$unset": bson.M{"values." + key: ""},
			"$set":   bson.M{"updated_at": time.Now()},
		},
	)
	return err
}
