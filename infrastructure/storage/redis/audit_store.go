package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/toolgate/infrastructure/security/audit"
)

// AuditStore is a Redis-backed implementation of audit.Logger. Events live
// in one sorted set scored by timestamp, so several toolgate processes can
// share a trail.
type AuditStore struct {
	client    *redis.Client
	keyPrefix string
	owned     bool
}

var _ audit.Logger = (*AuditStore)(nil)

// record is the stored member. ID keeps identical events distinct.
type record struct {
	ID    string      `json:"id"`
	Event audit.Event `json:"event"`
}

// NewAuditStore connects with the given configuration.
func NewAuditStore(cfg Config, opts ...ConfigOption) (*AuditStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	client := redis.NewClient(cfg.options())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	s := NewAuditStoreFromClient(client, cfg.KeyPrefix)
	s.owned = true
	return s, nil
}

// NewAuditStoreFromClient creates an audit store on an existing client.
// Close leaves the client open.
func NewAuditStoreFromClient(client *redis.Client, keyPrefix string) *AuditStore {
	return &AuditStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *AuditStore) key() string {
	return s.keyPrefix + "audit:events"
}

// Log persists one event.
func (s *AuditStore) Log(ctx context.Context, event audit.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(record{ID: uuid.New().String(), Event: event})
	if err != nil {
		return err
	}

	err = s.client.ZAdd(ctx, s.key(), redis.Z{
		Score:  float64(event.Timestamp.UnixNano()),
		Member: data,
	}).Err()
	if err != nil {
		return errors.Join(ErrConnectionFailed, err)
	}
	return nil
}

// Query retrieves events matching the filter in timestamp order. The time
// bounds are applied by Redis; the other criteria are applied here.
func (s *AuditStore) Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	members, err := s.client.ZRangeByScore(ctx, s.key(), scoreRange(filter)).Result()
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	var events []audit.Event
	for _, m := range members {
		var r record
		if err := json.Unmarshal([]byte(m), &r); err != nil {
			continue // Skip malformed entries
		}
		if !audit.Matches(r.Event, filter) {
			continue
		}
		events = append(events, r.Event)
		if filter.Limit > 0 && len(events) >= filter.Limit {
			break
		}
	}
	return events, nil
}

// scoreRange converts the filter's time bounds to sorted-set scores.
func scoreRange(filter audit.Filter) *redis.ZRangeBy {
	by := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if !filter.StartTime.IsZero() {
		by.Min = strconv.FormatInt(filter.StartTime.UnixNano(), 10)
	}
	if !filter.EndTime.IsZero() {
		by.Max = strconv.FormatInt(filter.EndTime.UnixNano(), 10)
	}
	return by
}

// Close closes the client when the store opened it.
func (s *AuditStore) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
