package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Cache is a badger backed key value store for JSON encoded values.
type Cache struct {
	db *badger.DB
}

// Options configures Open.
type Options struct {
	// Path is the badger directory. It is ignored when InMemory is set.
	Path string
	// InMemory keeps every entry in memory, nothing is written to disk.
	InMemory bool
	// Logger receives badger logs. Nil disables them.
	Logger *slog.Logger
}

// Open opens the cache DB.
func Open(opts Options) (*Cache, error) {
	badgerOpts := badger.DefaultOptions(opts.Path).
		WithNumVersionsToKeep(0).
		WithLogger(nil)

	if opts.InMemory || opts.Path == "" {
		badgerOpts = badgerOpts.WithDir("").WithValueDir("").WithInMemory(true)
	} else {
		badgerOpts = badgerOpts.WithValueLogFileSize(1024 * 1024 * 100)
	}

	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(&logger{l: opts.Logger.With("component", "badger")})
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to badger.Open: %w", err)
	}

	return &Cache{db: db}, nil
}

// Memoize retrieves a cached value for the specified cacheKey.
// If the value is present and its type matches, it is returned. Otherwise, the provided function fn
// is called to compute the value, which is then stored in the cache
// with the specified expiration and returned. If the cached value has an unexpected type or if fn returns an error,
// Memoize returns the corresponding error.
func Memoize[V any](c *Cache, cacheKey string, ttl time.Duration, fn func() (*V, error)) (*V, error) {

	value := new(V)

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKey))
		if err != nil {
			return err
		}

		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, value)
		})
		if err != nil {
			return fmt.Errorf("failed to json.Unmarshal: %w", err)
		}

		return nil
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	} else if err == nil {
		return value, nil
	}

	value, err = fn()
	if err != nil {
		return nil, err
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		valueJSONBytes, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to json.Marshal: %w", err)
		}
		entry := badger.NewEntry([]byte(cacheKey), valueJSONBytes).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store on cache: %w", err)
	}

	return value, nil
}

// Delete removes cacheKey from the cache. Deleting a missing key is not an error.
func (c *Cache) Delete(cacheKey string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(cacheKey))
	})
	if err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

// Close closes the cache DB. It's crucial to call it to ensure all the pending updates make their way to disk. Calling Close multiple times would still only close the DB once.
func (c *Cache) Close() error {
	return c.db.Close()
}

// logger adapts badger logs to slog.
type logger struct {
	l *slog.Logger
}

func (l *logger) Errorf(s string, i ...interface{}) {
	l.l.Error(strings.TrimSpace(fmt.Sprintf(s, i...)))
}

func (l *logger) Warningf(s string, i ...interface{}) {
	l.l.Warn(strings.TrimSpace(fmt.Sprintf(s, i...)))
}

func (l *logger) Infof(s string, i ...interface{}) {
	l.l.Info(strings.TrimSpace(fmt.Sprintf(s, i...)))
}

func (l *logger) Debugf(s string, i ...interface{}) {
	l.l.Debug(strings.TrimSpace(fmt.Sprintf(s, i...)))
}
