package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bantudelice/tracking-service/internal/core/domain"
)

const collectionParcels = "parcels"

type ParcelRepository struct {
	col *mongo.Collection
}

func NewParcelRepository(db *mongo.Database) *ParcelRepository {
	return &ParcelRepository{col: db.Collection(collectionParcels)}
}

// Create inserts a new parcel document.
func (r *ParcelRepository) Create(ctx context.Context, p *domain.TrackedParcel) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, p)
	return err
}

// FindByTrackingNumber retrieves a parcel by tracking number.
// When clientID is non-empty, an additional filter by client_id is applied.
func (r *ParcelRepository) FindByTrackingNumber(ctx context.Context, trackingNumber string, clientID string) (*domain.TrackedParcel, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"tracking_number": trackingNumber}
	if clientID != "" {
		filter["client_id"] = clientID
	}

	var p domain.TrackedParcel
	err := r.col.FindOne(ctx, filter).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrParcelNotFound
		}
		return nil, err
	}
	return &p, nil
}

// FindByIdempotencyKey retrieves an existing parcel that was created with the given key.
func (r *ParcelRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.TrackedParcel, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var p domain.TrackedParcel
	err := r.col.FindOne(ctx, bson.M{"idempotency_key": key}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrParcelNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpdatePosition atomically sets current_position and appends the event to the
// history. The filter re-asserts that no newer position exists, so a losing
// writer matches zero documents instead of clobbering a fresher fix.
func (r *ParcelRepository) UpdatePosition(ctx context.Context, trackingNumber string, pos domain.Position, event domain.TrackingEvent) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"tracking_number": trackingNumber,
		"$or": bson.A{
			bson.M{"current_position": bson.M{"$exists": false}},
			bson.M{"current_position.captured_at": bson.M{"$lt": pos.CapturedAt}},
		},
	}
	update := bson.M{
		"$set":  bson.M{"current_position": pos},
		"$push": bson.M{"history": event},
	}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// UpdateStatus atomically sets the parcel status and appends a history entry.
func (r *ParcelRepository) UpdateStatus(ctx context.Context, trackingNumber string, status domain.ParcelStatus, event domain.TrackingEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"tracking_number": trackingNumber}
	update := bson.M{
		"$set":  bson.M{"status": string(status)},
		"$push": bson.M{"history": event},
	}

	_, err := r.col.UpdateOne(ctx, filter, update)
	return err
}

// AssignDriver records the courier responsible for the parcel.
func (r *ParcelRepository) AssignDriver(ctx context.Context, trackingNumber string, driverID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.UpdateOne(ctx,
		bson.M{"tracking_number": trackingNumber},
		bson.M{"$set": bson.M{"driver_id": driverID}},
	)
	return err
}

// EnsureIndexes creates necessary indexes on the parcels collection.
func (r *ParcelRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "tracking_number", Value: 1}}},
		{Keys: bson.D{{Key: "client_id", Value: 1}}},
		{Keys: bson.D{{Key: "idempotency_key", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
