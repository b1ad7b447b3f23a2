// Package archive keeps finished builds on disk after the in-memory job
// store has evicted them: the status snapshot and the resolved document,
// msgpack-encoded in a badger database.
package archive

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrNotFound = errors.New("build not archived")
	ErrClosed   = errors.New("archive is closed")
)

const keyPrefix = "build/"

// Record is one archived build.
type Record struct {
	BuildID    string    `msgpack:"build_id"`
	Status     string    `msgpack:"status"`
	Snapshot   []byte    `msgpack:"snapshot"`
	Document   []byte    `msgpack:"document"`
	ArchivedAt time.Time `msgpack:"archived_at"`
}

// Store is a badger-backed build archive. A nil *Store is a disabled
// archive: writes are dropped and reads miss.
type Store struct {
	db  *badger.DB
	ttl time.Duration

	mu     sync.RWMutex
	closed bool
}

// Open opens or creates the archive in dir. Records expire after ttl; zero
// keeps them forever.
func Open(dir string, ttl time.Duration, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	opts := badger.DefaultOptions(dir).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log: log})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return &Store{db: db, ttl: ttl}, nil
}

func key(buildID string) []byte {
	return []byte(keyPrefix + buildID)
}

// Put archives a build, replacing any earlier record for it.
func (s *Store) Put(rec Record) error {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = time.Now().UTC()
	}
	data, err := msgpack.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key(rec.BuildID), data)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Get returns the archived record for buildID or ErrNotFound.
func (s *Store) Get(buildID string) (Record, error) {
	var rec Record
	if s == nil {
		return rec, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return rec, ErrClosed
	}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(buildID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("read record: %w", err)
	}
	return rec, nil
}

// Delete removes a build's record. Deleting a missing build is not an error.
func (s *Store) Delete(buildID string) error {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(buildID))
	})
}

// Count returns the number of live records.
func (s *Store) Count() (int, error) {
	if s == nil {
		return 0, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// badgerLogger routes badger's own logging into slog at debug level,
// except errors and warnings.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) logger() *slog.Logger {
	if l.log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.log
}

func (l badgerLogger) Errorf(f string, v ...any) {
	l.logger().Error("badger", "msg", fmt.Sprintf(f, v...))
}

func (l badgerLogger) Warningf(f string, v ...any) {
	l.logger().Warn("badger", "msg", fmt.Sprintf(f, v...))
}

func (l badgerLogger) Infof(f string, v ...any) {
	l.logger().Debug("badger", "msg", fmt.Sprintf(f, v...))
}

func (l badgerLogger) Debugf(f string, v ...any) {
	l.logger().Debug("badger", "msg", fmt.Sprintf(f, v...))
}
