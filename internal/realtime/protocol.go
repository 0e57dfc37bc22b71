// Package realtime implements the live parcel tracking gateway: a WebSocket
// message protocol, per-connection sessions, a subscription registry mapping
// tracking numbers to live connections, and a dispatcher that fans events out
// to subscribers in per-tracking-number FIFO order.
package realtime

import (
	"encoding/json"
	"time"
)

// MessageType identifies a protocol message on either direction of the wire.
type MessageType string

// Client → server.
const (
	TypeSubscribe   MessageType = "subscribeToTracking"
	TypeUnsubscribe MessageType = "unsubscribeFromTracking"
	TypeGetInfo     MessageType = "getTrackingInfo"
	TypeGetHistory    MessageType = "getTrackingHistory"
	TypeUpdate        MessageType = "updateLocation"
	TypeStartTracking MessageType = "startTracking"
	TypeStopTracking  MessageType = "stopTracking"
	TypePing          MessageType = "ping"
)

// Server → client.
const (
	TypeConnected              MessageType = "connected"
	TypeSubscriptionConfirmed  MessageType = "subscriptionConfirmed"
	TypeSubscriptionError      MessageType = "subscriptionError"
	TypeUnsubscribeConfirmed   MessageType = "unsubscriptionConfirmed"
	TypeUnsubscribeError       MessageType = "unsubscriptionError"
	TypeTrackingInfo           MessageType = "trackingInfo"
	TypeTrackingInfoError      MessageType = "trackingInfoError"
	TypeTrackingHistory        MessageType = "trackingHistory"
	TypeTrackingHistoryError   MessageType = "trackingHistoryError"
	TypeLocationUpdate         MessageType = "locationUpdate"
	TypeLocationUpdateAccepted MessageType = "locationUpdateConfirmed"
	TypeLocationUpdateError    MessageType = "locationUpdateError"
	TypeStatusChanged          MessageType = "statusChanged"
	TypeTrackingStarted        MessageType = "trackingStarted"
	TypeStartConfirmed         MessageType = "trackingStartConfirmed"
	TypeStartError             MessageType = "trackingStartError"
	TypeTrackingStopped        MessageType = "trackingStopped"
	TypeStopConfirmed          MessageType = "trackingStopConfirmed"
	TypeStopError              MessageType = "trackingStopError"
	TypePong                   MessageType = "pong"
	TypeError                  MessageType = "error"
)

// Inbound is the envelope for client → server messages. Data is decoded
// lazily once the type is known.
type Inbound struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is the envelope for server → client messages.
type Outbound struct {
	Type MessageType `json:"type"`
	Data any         `json:"data,omitempty"`
}

// --- Inbound payloads ---

type subscribeRequest struct {
	TrackingNumber string `json:"trackingNumber" validate:"required"`
	UserID         string `json:"userId"`
}

type trackingInfoRequest struct {
	TrackingNumber string `json:"trackingNumber" validate:"required"`
}

type trackingHistoryRequest struct {
	TrackingNumber string `json:"trackingNumber" validate:"required"`
	Limit          int    `json:"limit" validate:"gte=0,lte=200"`
	Offset         int    `json:"offset" validate:"gte=0"`
}

type startTrackingRequest struct {
	TrackingNumber string `json:"trackingNumber" validate:"required"`
	DriverID       string `json:"driverId"`
}

type stopTrackingRequest struct {
	TrackingNumber string `json:"trackingNumber" validate:"required"`
}

type locationUpdateRequest struct {
	TrackingNumber string    `json:"trackingNumber" validate:"required"`
	Latitude       float64   `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude      float64   `json:"longitude" validate:"gte=-180,lte=180"`
	Accuracy       float64   `json:"accuracy" validate:"gte=0"`
	Speed          float64   `json:"speed" validate:"gte=0"`
	Heading        float64   `json:"heading" validate:"gte=0,lte=360"`
	Timestamp      time.Time `json:"timestamp"`
	DriverID       string    `json:"driverId"`
}

// --- Outbound payloads ---

type connectedPayload struct {
	Message   string    `json:"message"`
	ClientID  string    `json:"clientId"`
	Timestamp time.Time `json:"timestamp"`
}

type confirmationPayload struct {
	TrackingNumber string    `json:"trackingNumber"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

type errorPayload struct {
	TrackingNumber string    `json:"trackingNumber,omitempty"`
	Error          string    `json:"error"`
	Timestamp      time.Time `json:"timestamp"`
}

type pongPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

type locationBroadcast struct {
	TrackingNumber string    `json:"trackingNumber"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Accuracy       float64   `json:"accuracy"`
	Speed          float64   `json:"speed"`
	Heading        float64   `json:"heading"`
	Timestamp      time.Time `json:"timestamp"`
	DriverID       string    `json:"driverId,omitempty"`
}

type statusBroadcast struct {
	TrackingNumber string    `json:"trackingNumber"`
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
}
