// Package document stores model snapshots as JSON revisions in blob storage.
//
// Each save creates a new object under projects/<name>/; keys sort by save
// time so the newest revision is the last one listed.
package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"modelcore/internal/blob"
	"modelcore/pkg/domain"
)

const (
	// ContentType is set on every stored revision.
	ContentType = "application/json"

	keyPrefix   = "projects/"
	stampLayout = "20060102T150405.000000000Z"
	maxAttempts = 1000
)

// ErrNoRevisions is returned by Load when a project has never been saved.
var ErrNoRevisions = errors.New("document: no revisions")

// Revision describes one saved snapshot.
type Revision struct {
	Project string    `json:"project"`
	Key     string    `json:"key"`
	Size    int64     `json:"size_bytes"`
	SavedAt time.Time `json:"saved_at"`
}

// Option configures Save.
type Option func(*saveOptions)

type saveOptions struct {
	now    func() time.Time
	author string
}

// WithClock overrides the revision timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *saveOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithAuthor records author in the revision metadata.
func WithAuthor(author string) Option {
	return func(o *saveOptions) { o.author = author }
}

func projectPrefix(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid project name %q", name)
	}
	return keyPrefix + name + "/", nil
}

// Save validates snap and writes it as a new revision of project name.
func Save(ctx context.Context, store blob.Store, name string, snap domain.Snapshot, opts ...Option) (Revision, error) {
	prefix, err := projectPrefix(name)
	if err != nil {
		return Revision{}, err
	}
	if err := snap.Validate(); err != nil {
		return Revision{}, fmt.Errorf("save %s: %w", name, err)
	}
	o := saveOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Revision{}, fmt.Errorf("encode snapshot: %w", err)
	}
	meta := map[string]string{"project": name}
	if o.author != "" {
		meta["author"] = o.author
	}

	stamp := o.now().UTC()
	// Keys are create-only; a clash within the same instant takes the next
	// sequence number.
	for seq := 0; seq < maxAttempts; seq++ {
		key := fmt.Sprintf("%s%s-%03d.json", prefix, stamp.Format(stampLayout), seq)
		info, err := store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: ContentType, Metadata: meta})
		if errors.Is(err, blob.ErrExists) {
			continue
		}
		if err != nil {
			return Revision{}, fmt.Errorf("store revision: %w", err)
		}
		return Revision{Project: name, Key: key, Size: info.Size, SavedAt: stamp}, nil
	}
	return Revision{}, fmt.Errorf("store revision: too many revisions at %s", stamp.Format(time.RFC3339Nano))
}

// Revisions lists the saved revisions of project name, oldest first.
func Revisions(ctx context.Context, store blob.Store, name string) ([]Revision, error) {
	prefix, err := projectPrefix(name)
	if err != nil {
		return nil, err
	}
	items, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]Revision, 0, len(items))
	for _, it := range items {
		base := strings.TrimPrefix(it.Key, prefix)
		if strings.Contains(base, "/") || !strings.HasSuffix(base, ".json") {
			continue
		}
		stamp, _, ok := strings.Cut(base, "-")
		if !ok {
			continue
		}
		saved, err := time.Parse(stampLayout, stamp)
		if err != nil {
			continue
		}
		out = append(out, Revision{Project: name, Key: it.Key, Size: it.Size, SavedAt: saved})
	}
	return out, nil
}

// Load decodes the newest revision of project name.
func Load(ctx context.Context, store blob.Store, name string) (domain.Snapshot, Revision, error) {
	revs, err := Revisions(ctx, store, name)
	if err != nil {
		return domain.Snapshot{}, Revision{}, err
	}
	if len(revs) == 0 {
		return domain.Snapshot{}, Revision{}, fmt.Errorf("%w: %s", ErrNoRevisions, name)
	}
	rev := revs[len(revs)-1]
	snap, err := LoadRevision(ctx, store, rev.Key)
	return snap, rev, err
}

// LoadRevision decodes the revision stored at key.
func LoadRevision(ctx context.Context, store blob.Store, key string) (domain.Snapshot, error) {
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer func() { _ = rc.Close() }()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read %s: %w", key, err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode %s: %w", key, err)
	}
	if snap.ElementDiagrams == nil {
		snap.ElementDiagrams = map[string]string{}
	}
	return snap, nil
}

// Link returns a time-limited download URL for rev when the backend can sign
// one.
func Link(ctx context.Context, store blob.Store, rev Revision, expiry time.Duration) (string, error) {
	return store.PresignURL(ctx, rev.Key, blob.SignedURLOptions{Method: "GET", Expiry: expiry})
}
