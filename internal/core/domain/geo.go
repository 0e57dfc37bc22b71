package domain

import (
	"math"
	"time"
)

const earthRadiusKm = 6371

// averageCourierSpeedKmh is the city-traffic speed used for arrival estimates.
const averageCourierSpeedKmh = 30

// DeliveryProximityKm is the distance to the destination below which a parcel
// in transit is considered out for delivery.
const DeliveryProximityKm = 0.5

// Distance returns the haversine distance in kilometres between two points.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := deg2rad(lat2 - lat1)
	dLng := deg2rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(lat1))*math.Cos(deg2rad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// EstimatedArrival projects an arrival time from a position to a destination
// assuming the average courier speed.
func EstimatedArrival(from Position, dest Coordinates, now time.Time) time.Time {
	km := Distance(from.Latitude, from.Longitude, dest.Lat, dest.Lng)
	return now.Add(time.Duration(km / averageCourierSpeedKmh * float64(time.Hour)))
}

func deg2rad(deg float64) float64 {
	return deg * (math.Pi / 180)
}
