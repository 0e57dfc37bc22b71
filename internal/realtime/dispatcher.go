package realtime

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/rs/zerolog"

	"github.com/bantudelice/tracking-service/internal/api/metrics"
	"github.com/bantudelice/tracking-service/internal/core/domain"
	"github.com/bantudelice/tracking-service/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// Pusher is the send capability the dispatcher needs from a live session.
type Pusher interface {
	ID() string
	Send(msg Outbound) error
}

// SessionResolver resolves a registry connection id to its live session.
type SessionResolver interface {
	Lookup(connID string) (Pusher, bool)
}

type broadcastJob struct {
	trackingNumber string
	msg            Outbound
}

// Dispatcher fans events out to the subscribers of their tracking number.
// Jobs are routed to a fixed set of workers by consistent hashing on the
// tracking number, so events for one tracking number reach each subscriber
// in ingest order (FIFO per key). No ordering holds across tracking numbers.
type Dispatcher struct {
	workers  []chan broadcastJob
	registry *Registry
	resolver SessionResolver
	log      zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, registry *Registry, resolver SessionResolver, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:  make([]chan broadcastJob, numWorkers),
		registry: registry,
		resolver: resolver,
		log:      log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan broadcastJob, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Publish enqueues one event for fan-out to the current subscribers of
// trackingNumber. The call never blocks: when the shard's buffer is full
// (workers overloaded or already stopped during shutdown) the event is
// dropped, matching the best-effort delivery contract. Clients that missed
// a push resynchronise via getTrackingInfo.
func (d *Dispatcher) Publish(trackingNumber string, typ MessageType, data any) {
	metrics.BroadcastsTotal.WithLabelValues(string(typ)).Inc()
	select {
	case d.workers[d.shardIndex(trackingNumber)] <- broadcastJob{
		trackingNumber: trackingNumber,
		msg:            Outbound{Type: typ, Data: data},
	}:
	default:
		metrics.BroadcastsDroppedTotal.Inc()
		d.log.Warn().
			Str("tracking_number", trackingNumber).
			Str("type", string(typ)).
			Msg("broadcast queue full, event dropped")
	}
}

// BroadcastLocation implements the tracking service's Broadcaster interface.
func (d *Dispatcher) BroadcastLocation(in ports.LocationUpdateInput) {
	d.Publish(in.TrackingNumber, TypeLocationUpdate, locationBroadcast{
		TrackingNumber: in.TrackingNumber,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		Accuracy:       in.Accuracy,
		Speed:          in.Speed,
		Heading:        in.Heading,
		Timestamp:      in.Timestamp.UTC(),
		DriverID:       in.DriverID,
	})
}

// BroadcastStatus implements the tracking service's Broadcaster interface.
func (d *Dispatcher) BroadcastStatus(trackingNumber string, status domain.ParcelStatus, at time.Time) {
	d.Publish(trackingNumber, TypeStatusChanged, statusBroadcast{
		TrackingNumber: trackingNumber,
		Status:         string(status),
		Timestamp:      at.UTC(),
	})
}

// shardIndex maps a tracking number deterministically to a worker index.
func (d *Dispatcher) shardIndex(trackingNumber string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(trackingNumber))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan broadcastJob) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-ch:
			if !ok {
				return
			}
			d.deliver(id, job)
		}
	}
}

// deliver pushes one event to every current subscriber. A failed push to one
// connection (closed socket, full buffer) is logged and skipped; it never
// aborts delivery to the others.
func (d *Dispatcher) deliver(workerID int, job broadcastJob) {
	for _, connID := range d.registry.SubscribersOf(job.trackingNumber) {
		sess, ok := d.resolver.Lookup(connID)
		if !ok {
			continue
		}
		if err := sess.Send(job.msg); err != nil {
			metrics.PushFailuresTotal.Inc()
			d.log.Warn().Err(err).
				Str("tracking_number", job.trackingNumber).
				Str("conn", connID).
				Int("worker_id", workerID).
				Msg("push to subscriber failed")
		}
	}
}
