package db

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/feresegna/bus-portal/internal/models"
)

// TripCatalog holds the scheduled trips passengers search and operators
// maintain.
type TripCatalog interface {
	SearchTrips(ctx context.Context, params models.SearchParams) ([]models.Trip, error)
	FindTripByID(ctx context.Context, id string) (*models.Trip, error)
	InsertTrip(ctx context.Context, trip models.Trip) error
	DeleteTrip(ctx context.Context, id string) error
}

// MongoTripCollection implements TripCatalog for MongoDB
type MongoTripCollection struct {
	Collection *mongo.Collection
}

// InsertTrip inserts or replaces a trip by ID.
func (c *MongoTripCollection) InsertTrip(ctx context.Context, trip models.Trip) error {
	_, err := c.Collection.ReplaceOne(ctx, bson.M{"_id": trip.ID}, trip, options.Replace().SetUpsert(true))
	return err
}

// DeleteTrip removes a trip. ErrNotFound is returned when no trip has id.
func (c *MongoTripCollection) DeleteTrip(ctx context.Context, id string) error {
	res, err := c.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchTrips returns trips between the two cities departing on the search
// date with room for all passengers, earliest first.
func (c *MongoTripCollection) SearchTrips(ctx context.Context, params models.SearchParams) ([]models.Trip, error) {
	opts := options.Find().SetSort(bson.D{{Key: "departure_time", Value: 1}})
	cursor, err := c.Collection.Find(ctx, searchFilter(params), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	trips := []models.Trip{}
	if err := cursor.All(ctx, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

// FindTripByID finds a trip by its ID.
func (c *MongoTripCollection) FindTripByID(ctx context.Context, id string) (*models.Trip, error) {
	var trip models.Trip
	err := c.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&trip)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

func searchFilter(params models.SearchParams) bson.M {
	filter := bson.M{
		"origin":          cityPattern(params.Origin),
		"destination":     cityPattern(params.Destination),
		"available_seats": bson.M{"$gte": params.Passengers},
	}
	if !params.Date.IsZero() {
		y, m, d := params.Date.Date()
		start := time.Date(y, m, d, 0, 0, 0, 0, params.Date.Location())
		filter["departure_time"] = bson.M{"$gte": start, "$lt": start.AddDate(0, 0, 1)}
	}
	return filter
}

// cityPattern matches a city name exactly, ignoring case.
func cityPattern(city string) bson.M {
	return bson.M{"$regex": "^" + regexp.QuoteMeta(strings.TrimSpace(city)) + "$", "$options": "i"}
}
