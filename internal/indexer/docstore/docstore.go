// Package docstore persists one hash per indexed catalog document and
// hydrates search hits back into full records.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kvstore"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
)

const (
	fieldTitle     = "title"
	fieldContent   = "content"
	fieldTags      = "tags"
	fieldMetadata  = "metadata"
	fieldIndexedAt = "indexed_at"

	tagSeparator = ","
	hydrateLimit = 8
)

// promoted metadata keys are copied to top-level hash fields so they can be
// read with HGET without decoding the metadata blob.
var promoted = []string{"sku", "names", "image"}

// Document is a stored catalog record.
type Document struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Tags      []string          `json:"tags"`
	Metadata  map[string]string `json:"metadata"`
	IndexedAt time.Time         `json:"indexed_at"`
}

type Store struct {
	kv     kvstore.Store
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

func New(kv kvstore.Store, prefix string) *Store {
	return &Store{
		kv:     kv,
		prefix: prefix,
		now:    time.Now,
		logger: slog.Default().With("component", "docstore"),
	}
}

// WithClock replaces the timestamp source; used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) key(id string) string {
	return s.prefix + ":documents:" + id
}

// Pattern matches every document key.
func (s *Store) Pattern() string {
	return s.prefix + ":documents:*"
}

// Put writes doc under its id, stamping IndexedAt. Every field is written on
// each call, so a re-index replaces the previous version rather than merging.
func (s *Store) Put(ctx context.Context, doc Document) (time.Time, error) {
	if doc.ID == "" {
		return time.Time{}, apperrors.Invalid("document id is required")
	}
	meta := doc.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	blob, err := msgpack.Marshal(meta)
	if err != nil {
		return time.Time{}, fmt.Errorf("encoding metadata for %s: %w", doc.ID, err)
	}
	indexedAt := s.now().UTC()

	fields := map[string]string{
		fieldTitle:     doc.Title,
		fieldContent:   doc.Content,
		fieldTags:      strings.Join(doc.Tags, tagSeparator),
		fieldMetadata:  string(blob),
		fieldIndexedAt: indexedAt.Format(time.RFC3339Nano),
	}
	for _, k := range promoted {
		fields[k] = meta[k]
	}
	if err := s.kv.HSet(ctx, s.key(doc.ID), fields); err != nil {
		return time.Time{}, fmt.Errorf("storing document %s: %w", doc.ID, err)
	}
	return indexedAt, nil
}

// Get loads one document.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	raw, err := s.kv.HGetAll(ctx, s.key(id))
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", id, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("document %s: %w", id, apperrors.ErrDocumentNotFound)
	}
	return decode(id, raw)
}

// GetMany hydrates ids concurrently. Missing ids are omitted from the result.
// Load failures are joined into the returned error; the documents that did
// load are still returned.
func (s *Store) GetMany(ctx context.Context, ids []string) (map[string]*Document, error) {
	var (
		mu   sync.Mutex
		out  = make(map[string]*Document, len(ids))
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hydrateLimit)
	for _, id := range ids {
		g.Go(func() error {
			doc, err := s.Get(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				out[id] = doc
			case errors.Is(err, apperrors.ErrDocumentNotFound):
			default:
				errs = append(errs, err)
			}
			return nil
		})
	}
	g.Wait()
	return out, errors.Join(errs...)
}

// Count enumerates document keys; cost grows with the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	return kvstore.CountKeys(ctx, s.kv, s.Pattern())
}

// ClearAll deletes every document. Partial failures are reported, and keys
// already deleted stay deleted.
func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	n, err := kvstore.DeleteByPattern(ctx, s.kv, s.Pattern())
	if err != nil {
		s.logger.Warn("document clear incomplete", "deleted", n, "error", err)
	}
	return n, err
}

func decode(id string, raw map[string]string) (*Document, error) {
	doc := &Document{
		ID:       id,
		Title:    raw[fieldTitle],
		Content:  raw[fieldContent],
		Tags:     splitTags(raw[fieldTags]),
		Metadata: map[string]string{},
	}
	if blob := raw[fieldMetadata]; blob != "" {
		if err := msgpack.Unmarshal([]byte(blob), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", id, err)
		}
	}
	if ts := raw[fieldIndexedAt]; ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing indexed_at for %s: %w", id, err)
		}
		doc.IndexedAt = t
	}
	return doc, nil
}

func splitTags(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, tagSeparator)
	tags := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
