// Package badger persists the model repository in an embedded BadgerDB
// key-value store, one key per snapshot bucket.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"modelcore/internal/infra/persistence/buckets"
	"modelcore/internal/infra/persistence/memory"
	"modelcore/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

const keyPrefix = "model/"

// Config controls how the database is opened.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string
	// InMemory keeps all data in memory; useful for tests.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// Logger receives badger's internal log lines. Nil silences them.
	Logger *slog.Logger
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func open(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// Store keeps the model in memory and writes every bucket to badger after
// each successful transaction.
type Store struct {
	*memory.Store
	db *badger.DB
	mu sync.Mutex
}

// NewStore opens the database and hydrates the in-memory model from it.
func NewStore(cfg Config, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{Store: memory.NewStore(engine, opts...), db: db}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	payloads := make(map[string][]byte)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			payloads[strings.TrimPrefix(string(item.Key()), keyPrefix)] = value
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	if len(payloads) == 0 {
		return nil
	}
	snapshot, err := buckets.Decode(payloads)
	if err != nil {
		return err
	}
	return s.Store.ImportState(snapshot)
}

func (s *Store) persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payloads, err := buckets.Encode(s.ExportState())
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, bucket := range buckets.Names {
			if err := txn.Set([]byte(keyPrefix+bucket), payloads[bucket]); err != nil {
				return fmt.Errorf("set %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// RunInTransaction applies fn and writes the state through on success.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	return res, s.persist()
}

// ImportState replaces the model and writes it through.
func (s *Store) ImportState(snapshot domain.Snapshot) error {
	if err := s.Store.ImportState(snapshot); err != nil {
		return err
	}
	return s.persist()
}

// RenamePhase renames a lifecycle phase and writes the result through.
func (s *Store) RenamePhase(ctx context.Context, old, renamed string) (domain.Result, error) {
	res, err := s.Store.RenamePhase(ctx, old, renamed)
	if err != nil {
		return res, err
	}
	return res, s.persist()
}

// Close flushes and closes the database.
func (s *Store) Close() error { return s.db.Close() }
