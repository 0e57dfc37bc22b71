package domain

import "time"

// TrackingEvent is one entry in a parcel's append-only history. Either
// Status or Position is set depending on what the event records. Events
// are immutable once appended and are never reordered.
type TrackingEvent struct {
	Timestamp   time.Time    `json:"timestamp" bson:"timestamp"`
	Status      ParcelStatus `json:"status,omitempty" bson:"status,omitempty"`
	Position    *Position    `json:"position,omitempty" bson:"position,omitempty"`
	ActorID     string       `json:"actor_id,omitempty" bson:"actor_id,omitempty"`
	Description string       `json:"description,omitempty" bson:"description,omitempty"`
}
