package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bantudelice/tracking-service/internal/core/domain"
)

const collectionEvents = "location_events"

// EventRepository implements ports.EventRepository using MongoDB.
type EventRepository struct {
	col *mongo.Collection
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *mongo.Database) *EventRepository {
	return &EventRepository{col: db.Collection(collectionEvents)}
}

type eventDoc struct {
	TrackingNumber string           `bson:"tracking_number"`
	Timestamp      time.Time        `bson:"timestamp"`
	Status         string           `bson:"status,omitempty"`
	Position       *domain.Position `bson:"position,omitempty"`
	ActorID        string           `bson:"actor_id,omitempty"`
	Description    string           `bson:"description,omitempty"`
	RecordedAt     time.Time        `bson:"recorded_at"`
}

func (d *eventDoc) toDomain() domain.TrackingEvent {
	return domain.TrackingEvent{
		Timestamp:   d.Timestamp,
		Status:      domain.ParcelStatus(d.Status),
		Position:    d.Position,
		ActorID:     d.ActorID,
		Description: d.Description,
	}
}

// InsertEvent appends an event to the audit collection.
func (r *EventRepository) InsertEvent(ctx context.Context, trackingNumber string, event *domain.TrackingEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := eventDoc{
		TrackingNumber: trackingNumber,
		Timestamp:      event.Timestamp.UTC(),
		Status:         string(event.Status),
		Position:       event.Position,
		ActorID:        event.ActorID,
		Description:    event.Description,
		RecordedAt:     time.Now().UTC(),
	}

	_, err := r.col.InsertOne(ctx, doc)
	return err
}

// History returns up to limit events, most recent first, skipping offset.
func (r *EventRepository) History(ctx context.Context, trackingNumber string, limit, offset int) ([]domain.TrackingEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cur, err := r.col.Find(ctx, bson.M{"tracking_number": trackingNumber}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []domain.TrackingEvent
	for cur.Next(ctx) {
		var doc eventDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		events = append(events, doc.toDomain())
	}
	return events, cur.Err()
}

// Stats returns the total event count plus the oldest and newest event.
func (r *EventRepository) Stats(ctx context.Context, trackingNumber string) (int64, *domain.TrackingEvent, *domain.TrackingEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"tracking_number": trackingNumber}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return 0, nil, nil, err
	}
	if total == 0 {
		return 0, nil, nil, nil
	}

	first, err := r.findOneSorted(ctx, filter, 1)
	if err != nil {
		return 0, nil, nil, err
	}
	last, err := r.findOneSorted(ctx, filter, -1)
	if err != nil {
		return 0, nil, nil, err
	}
	return total, first, last, nil
}

func (r *EventRepository) findOneSorted(ctx context.Context, filter bson.M, order int) (*domain.TrackingEvent, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: order}})

	var doc eventDoc
	if err := r.col.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	event := doc.toDomain()
	return &event, nil
}

// EnsureIndexes creates necessary indexes on the location_events collection.
func (r *EventRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "tracking_number", Value: 1}, {Key: "timestamp", Value: -1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
