package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/toolgate/infrastructure/security/audit"
)

// AuditStore is a BadgerDB-backed implementation of audit.Logger.
type AuditStore struct {
	db        *badger.DB
	keyPrefix string
	gcStop    chan struct{}
	gcWg      sync.WaitGroup
	closeOnce sync.Once
}

var _ audit.Logger = (*AuditStore)(nil)

// NewAuditStore opens the database with the given configuration.
func NewAuditStore(cfg Config, opts ...Option) (*AuditStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &AuditStore{
		db:        db,
		keyPrefix: cfg.KeyPrefix,
		gcStop:    make(chan struct{}),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.startGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// NewAuditStoreFromDB creates an audit store on an existing database.
func NewAuditStoreFromDB(db *badger.DB, keyPrefix string) *AuditStore {
	return &AuditStore{
		db:        db,
		keyPrefix: keyPrefix,
		gcStop:    make(chan struct{}),
	}
}

func (s *AuditStore) startGC(interval time.Duration, discardRatio float64) {
	s.gcWg.Add(1)
	go func() {
		defer s.gcWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.gcStop:
				return
			case <-ticker.C:
				for s.db.RunValueLogGC(discardRatio) == nil {
				}
			}
		}
	}()
}

func (s *AuditStore) prefix() []byte {
	return []byte(s.keyPrefix + "audit:")
}

// Key format: prefix:audit:timestamp (8 bytes, big-endian):id. Keys sort
// in timestamp order.
func (s *AuditStore) eventKey(ts time.Time, id string) []byte {
	key := s.prefix()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(ts.UnixNano()))
	key = append(key, buf[:]...)
	return append(key, ":"+id...)
}

// Log persists one event.
func (s *AuditStore) Log(ctx context.Context, event audit.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.eventKey(event.Timestamp, uuid.New().String()), data)
	})
}

// Query retrieves events matching the filter in timestamp order.
func (s *AuditStore) Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var events []audit.Event
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix()

		it := txn.NewIterator(opts)
		defer it.Close()

		start := opts.Prefix
		if !filter.StartTime.IsZero() {
			start = s.eventKey(filter.StartTime, "")
		}
		for it.Seek(start); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var e audit.Event
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				continue // Skip malformed entries
			}
			if !filter.EndTime.IsZero() && e.Timestamp.After(filter.EndTime) {
				break
			}
			if !audit.Matches(e, filter) {
				continue
			}

			events = append(events, e)
			if filter.Limit > 0 && len(events) >= filter.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Close stops garbage collection and closes the database.
func (s *AuditStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.gcStop)
		s.gcWg.Wait()
		err = s.db.Close()
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return nil
	}
	return err
}
