package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"modelcore/internal/blob/core"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	meta := map[string]string{"k": "v"}
	info, err := s.Put(ctx, "projects/a/1.json", strings.NewReader("{}"), core.PutOptions{ContentType: "application/json", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["k"] = "mutated"
	if info.Size != 2 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "projects/a/1.json", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, rc, err := s.Get(ctx, "projects/a/1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "{}" || got.Metadata["k"] != "v" {
		t.Fatalf("unexpected get %+v %q", got, body)
	}
	got.Metadata["k"] = "changed"
	if head, _ := s.Head(ctx, "projects/a/1.json"); head.Metadata["k"] != "v" {
		t.Fatalf("metadata must be copied, got %+v", head.Metadata)
	}

	if _, err := s.Put(ctx, "projects/b/1.json", strings.NewReader("{}"), core.PutOptions{}); err != nil {
		t.Fatalf("put b: %v", err)
	}
	list, _ := s.List(ctx, "projects/a/")
	if len(list) != 1 {
		t.Fatalf("expected one blob under prefix, got %+v", list)
	}

	if ok, _ := s.Delete(ctx, "projects/a/1.json"); !ok {
		t.Fatalf("expected delete to report existing blob")
	}
	if ok, _ := s.Delete(ctx, "projects/a/1.json"); ok {
		t.Fatalf("expected second delete to report missing blob")
	}
	if _, err := s.Head(ctx, "projects/a/1.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
	if _, err := s.PresignURL(ctx, "projects/b/1.json", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported presign, got %v", err)
	}
	if _, err := s.Put(ctx, "../x", strings.NewReader(""), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected invalid key, got %v", err)
	}
}
