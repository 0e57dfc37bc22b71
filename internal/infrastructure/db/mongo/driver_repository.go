package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bantudelice/tracking-service/internal/core/domain"
)

const collectionDrivers = "drivers"

type DriverRepository struct {
	col *mongo.Collection
}

func NewDriverRepository(db *mongo.Database) *DriverRepository {
	return &DriverRepository{col: db.Collection(collectionDrivers)}
}

// UpsertPosition records the driver's latest position. A driver who reports
// a position for the first time is created as available.
func (r *DriverRepository) UpsertPosition(ctx context.Context, driverID string, pos domain.Position) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"current_position": pos,
			"updated_at":       time.Now().UTC(),
		},
		"$setOnInsert": bson.M{"available": true},
	}

	_, err := r.col.UpdateByID(ctx, driverID, update, options.Update().SetUpsert(true))
	return err
}

// FindAvailable returns every driver currently marked available.
func (r *DriverRepository) FindAvailable(ctx context.Context) ([]domain.Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cursor, err := r.col.Find(ctx, bson.M{"available": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var drivers []domain.Driver
	if err := cursor.All(ctx, &drivers); err != nil {
		return nil, err
	}
	return drivers, nil
}

// EnsureIndexes creates necessary indexes on the drivers collection.
func (r *DriverRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "available", Value: 1}}},
		{Keys: bson.D{{Key: "updated_at", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
