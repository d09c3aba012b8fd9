package usage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoDBStore implements Store for MongoDB.
// One document per provider, keyed by provider id.
type MongoDBStore struct {
	collection *mongo.Collection
}

// mongoRecord is the stored document shape.
type mongoRecord struct {
	ID             string `bson:"_id"`
	ProviderRecord `bson:",inline"`
}

// NewMongoDBStore creates a new MongoDB usage store.
func NewMongoDBStore(database *mongo.Database) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &MongoDBStore{collection: database.Collection("api_usage")}, nil
}

// Increment applies one outcome with a single upserting update ($inc + $max).
func (s *MongoDBStore) Increment(ctx context.Context, providerID string, success bool, at time.Time) error {
	ok, failed := outcomeDeltas(success)
	update := bson.D{
		{Key: "$inc", Value: bson.D{
			{Key: "totalCalls", Value: int64(1)},
			{Key: "successCalls", Value: ok},
			{Key: "failedCalls", Value: failed},
			{Key: "dailyStats." + DayKey(at), Value: int64(1)},
		}},
		{Key: "$max", Value: bson.D{
			{Key: "lastCallAt", Value: at.UTC()},
		}},
	}

	_, err := s.collection.UpdateOne(ctx, bson.D{{Key: "_id", Value: providerID}}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to increment usage for %s: %w", providerID, err)
	}
	return nil
}

// Get returns all records.
func (s *MongoDBStore) Get(ctx context.Context) (map[string]*ProviderRecord, error) {
	cursor, err := s.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	out := make(map[string]*ProviderRecord)
	for cursor.Next(ctx) {
		var doc mongoRecord
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode usage document: %w", err)
		}
		rec := doc.ProviderRecord
		if rec.LastCallAt != nil {
			ts := rec.LastCallAt.UTC()
			rec.LastCallAt = &ts
		}
		if rec.DailyStats == nil {
			rec.DailyStats = map[string]int64{}
		}
		out[doc.ID] = &rec
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage documents: %w", err)
	}
	return out, nil
}

// Reset deletes all records.
func (s *MongoDBStore) Reset(ctx context.Context) error {
	if _, err := s.collection.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by storage.
func (s *MongoDBStore) Close() error {
	return nil
}
