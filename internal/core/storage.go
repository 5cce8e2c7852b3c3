package core

import (
	"context"
	"fmt"
	"io"

	"modelcore/internal/infra/persistence/badger"
	"modelcore/internal/infra/persistence/memory"
	"modelcore/internal/infra/persistence/postgres"
	"modelcore/internal/infra/persistence/sqlite"
	"modelcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageBadger   StorageDriver = "badger"   // embedded badger directory
)

// Store is the model repository driven by the service. memory.Store and the
// durable backends embedding it satisfy it.
type Store interface {
	domain.PersistentStore
	RenamePhase(ctx context.Context, old, renamed string) (domain.Result, error)
	SetActivePhase(phase string)
	SetAuthor(author string)
	RootPackage() string
	QualifiedName(id string) (string, error)
	ListElementsOfType(t domain.ElementType) []domain.Element
	GetRelationship(id string) (domain.Relationship, bool)
	LinkedDiagram(elementID string) (string, bool)
	Stats() memory.Stats
	RulesEngine() *RulesEngine
}

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
	_ Store = (*postgres.Store)(nil)
	_ Store = (*badger.Store)(nil)
)

// OpenPersistentStore opens the backend selected by cfg.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, engine *RulesEngine, opts ...memory.Option) (Store, error) {
	switch cfg.Driver {
	case StorageMemory:
		return memory.NewStore(engine, opts...), nil
	case StorageSQLite, "":
		return sqlite.NewStore(cfg.SQLitePath, engine, opts...)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN, engine, opts...)
	case StorageBadger:
		return badger.NewStore(badger.Config{Path: cfg.BadgerPath, SyncWrites: true}, engine, opts...)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

// CloseStore releases backend resources when the store holds any.
func CloseStore(store Store) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
