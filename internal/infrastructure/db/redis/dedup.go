package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupTTL = time.Hour

// LocationDedup provides idempotency checks for position reports backed by
// Redis. Key format: locdedup:<tracking_number>:<unix_timestamp>
type LocationDedup struct {
	client *redis.Client
}

// NewLocationDedup creates a LocationDedup wrapping the given Redis client.
func NewLocationDedup(client *redis.Client) *LocationDedup {
	return &LocationDedup{client: client}
}

// IsDuplicate reports whether this exact position report has already been processed.
func (d *LocationDedup) IsDuplicate(ctx context.Context, trackingNumber string, ts time.Time) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(trackingNumber, ts)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return n > 0, nil
}

// Mark records that this report has been processed (expires after dedupTTL).
func (d *LocationDedup) Mark(ctx context.Context, trackingNumber string, ts time.Time) error {
	return d.client.Set(ctx, d.key(trackingNumber, ts), "1", dedupTTL).Err()
}

func (d *LocationDedup) key(trackingNumber string, ts time.Time) string {
	return fmt.Sprintf("locdedup:%s:%d", trackingNumber, ts.Unix())
}
