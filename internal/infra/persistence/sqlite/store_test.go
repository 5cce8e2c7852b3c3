package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"modelcore/pkg/domain"
)

func createBlock(t *testing.T, store *Store, name string) domain.Element {
	t.Helper()
	var out domain.Element
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		out, err = tx.CreateElement(domain.Element{Type: domain.ElementBlock, Name: name})
		return err
	}); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return out
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	pump := createBlock(t, store, "Pump")
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		d, err := tx.CreateDiagram(domain.Diagram{Type: domain.DiagramInternalBlock, Name: "Pump IBD"})
		if err != nil {
			return err
		}
		return tx.LinkDiagram(pump.ID, d.ID)
	}); err != nil {
		t.Fatalf("link: %v", err)
	}
	root := store.RootPackage()
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	got, ok := reloaded.GetElement(pump.ID)
	if !ok || got.Name != "Pump" {
		t.Fatalf("expected Pump after reload, got %+v", got)
	}
	if reloaded.RootPackage() != root {
		t.Fatalf("root package changed across reload: %s != %s", reloaded.RootPackage(), root)
	}
	if _, ok := reloaded.LinkedDiagram(pump.ID); !ok {
		t.Fatalf("diagram link lost on reload")
	}
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
}

func TestSQLiteStoreFailedTransactionIsNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	createBlock(t, store, "Kept")
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateElement(domain.Element{Type: domain.ElementBlock, Name: "Dropped"}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatalf("expected abort error")
	}
	_ = store.Close()

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	for _, e := range reloaded.ListElements() {
		if e.Name == "Dropped" {
			t.Fatalf("aborted element persisted")
		}
	}
}

func TestSQLiteStoreImportAndRenamePhaseWriteThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	snap := store.ExportState()
	snap.Elements = append(snap.Elements, domain.Element{ID: "imported", Type: domain.ElementRequirement, Name: "REQ-1", Owner: store.RootPackage(), Phase: "concept"})
	if err := store.ImportState(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := store.RenamePhase(context.Background(), "concept", "design"); err != nil {
		t.Fatalf("rename phase: %v", err)
	}
	_ = store.Close()

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	got, ok := reloaded.GetElement("imported")
	if !ok {
		t.Fatalf("imported element not persisted")
	}
	if got.Phase != "design" {
		t.Fatalf("expected renamed phase, got %q", got.Phase)
	}
}

func TestSQLiteStoreRejectsCorruptState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.DB().Exec(`INSERT INTO state(bucket,payload) VALUES('elements', '{')`); err != nil {
		t.Fatalf("seed corrupt payload: %v", err)
	}
	_ = store.Close()
	if _, err := NewStore(path, domain.NewRulesEngine()); err == nil {
		t.Fatalf("expected decode error for corrupt payload")
	}
}
