package domain

import "time"

// DefaultDriverSearchRadiusKm is the search radius used when a nearby-driver
// lookup does not specify one.
const DefaultDriverSearchRadiusKm = 10.0

// Driver is a courier known to the fleet, with the last position they
// reported while carrying a parcel.
type Driver struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	Name            string    `bson:"name" json:"name"`
	Phone           string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Rating          float64   `bson:"rating,omitempty" json:"rating,omitempty"`
	Available       bool      `bson:"available" json:"available"`
	CurrentPosition *Position `bson:"current_position,omitempty" json:"current_position,omitempty"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}
