// Package store provides the ordered byte-string key-value adapter (C1)
// backing every counter, module-set, and summary key in the engine. It
// wraps BadgerDB behind a small Get/Put/Delete/Sync/Compact contract so
// callers never see the underlying engine's error types or buffer
// conventions.
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Kind classifies a Store error for callers that need to decide whether
// to retry, log, or treat a fact as absent.
type Kind int

const (
	// KindNotFound means the key does not exist. Not an error condition
	// for callers — surfaced only so Get can return it alongside found=false.
	KindNotFound Kind = iota
	// KindRetryable covers transient engine contention (conflicting
	// transactions, lock-not-granted style conditions). The caller's next
	// tick should simply try again.
	KindRetryable
	// KindFatal covers anything the adapter cannot recover from locally.
	// Once the store is open, no component stops the process on it: the
	// background workers log the error and try again on their next tick.
	KindFatal
)

// Error wraps an underlying engine error with a Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return &Error{Kind: KindNotFound, Err: err}
	}
	if errors.Is(err, badger.ErrConflict) {
		return &Error{Kind: KindRetryable, Err: err}
	}
	return &Error{Kind: KindFatal, Err: err}
}

// Config configures the BadgerDB-backed store.
type Config struct {
	// Dir is the directory holding the store's files.
	Dir string
	// Compression enables Snappy block compression (mirrors the
	// configuration record's COMPRESSION flag).
	Compression bool
	// InMemory runs BadgerDB with no on-disk files, for tests.
	InMemory bool
}

// Store is the process-wide singleton KV adapter.
type Store struct {
	db *badger.DB
}

// Open creates or opens the store at cfg.Dir.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Dir).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithMemTableSize(16 << 20).
		WithNumMemtables(3).
		WithBlockCacheSize(8 << 20).
		WithIndexCacheSize(4 << 20).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueLogFileSize(64 << 20)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}
	if cfg.Compression {
		opts = opts.WithCompression(options.Snappy)
	} else {
		opts = opts.WithCompression(options.None)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening store at %q: %w", cfg.Dir, err)
	}
	return &Store{db: db}, nil
}

// Get looks up key. found is false, err is nil when the key is absent —
// absence is not an error condition (spec §7: "Missing-key: never an
// error").
func (s *Store) Get(key string) (value string, found bool, err error) {
	var out string
	txnErr := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = string(val)
			return nil
		})
	})
	if txnErr != nil {
		if errors.Is(txnErr, badger.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, classify(txnErr)
	}
	return out, true, nil
}

// Put writes key=value, overwriting any prior value.
func (s *Store) Put(key, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	return classify(err)
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return classify(err)
}

// Keys returns every stored key with the given prefix. Used by C8 and C9
// to enumerate buckets without needing the caller to know the full key
// space up front.
func (s *Store) Keys(prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return keys, nil
}

// Sync flushes pending writes to stable storage.
func (s *Store) Sync() error {
	return classify(s.db.Sync())
}

// Compact runs the underlying engine's value-log garbage collection.
// discardRatio follows BadgerDB's convention: reclaim when at least this
// fraction of a value-log file is garbage. ErrNoRewrite is not an error
// here — it means nothing needed compacting.
func (s *Store) Compact(discardRatio float64) error {
	err := s.db.RunValueLogGC(discardRatio)
	if err != nil && errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return classify(err)
}

// Close shuts the store down. The supervisor calls this once, after all
// writers have stopped.
func (s *Store) Close() error {
	return classify(s.db.Close())
}
