// Package docstore implements a durable, collection-scoped JSON document
// store. One file per collection; the store is the crash-consistency and
// concurrency boundary of the system.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/internal/errs"
	"github.com/parley-ai/parley/pkg/logger"
	"github.com/parley-ai/parley/pkg/metrics"
)

// Document is an associative record. The store manages the reserved fields
// FieldID, FieldCreatedAt and FieldUpdatedAt; they are stripped from every
// document returned to callers.
type Document map[string]any

// Reserved field names managed by the store.
const (
	FieldID        = "_id"
	FieldCreatedAt = "_created_at"
	FieldUpdatedAt = "_updated_at"
)

// collection holds one named group of documents plus their insertion order.
type collection struct {
	docs  map[string]Document
	order []string
}

// Store is a file-backed document store. Every mutating operation holds the
// write lock across both the in-memory mutation and the durability flush, so
// concurrent writers never interleave partial writes and readers observe
// either the pre- or post-mutation state.
type Store struct {
	mu          sync.RWMutex
	root        string
	collections map[string]*collection
	closed      bool
	log         *logger.Logger
}

// CollectionStats summarizes one collection.
type CollectionStats struct {
	Exists bool `json:"exists"`
	Count  int  `json:"count"`
}

// Open creates the root directory if absent, verifies it is writable and
// eagerly loads every existing collection file.
func Open(root string, log *logger.Logger) (*Store, error) {
	const op = "docstore.Open"

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errs.Storage(op, err)
	}

	probe, err := os.CreateTemp(root, ".probe-*")
	if err != nil {
		return nil, errs.Storage(op, fmt.Errorf("root path not writable: %w", err))
	}
	probe.Close()
	os.Remove(probe.Name())

	s := &Store{
		root:        root,
		collections: make(map[string]*collection),
		log:         log,
	}

	if err := s.loadAll(); err != nil {
		return nil, err
	}

	log.Info("document store opened",
		zap.String("root", root),
		zap.Int("collections", len(s.collections)),
	)
	return s, nil
}

// Store inserts a document. When key is omitted a fresh id is generated.
// Returns the id of the stored document.
func (s *Store) Store(ctx context.Context, name string, doc Document, key ...string) (string, error) {
	const op = "docstore.Store"
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", errs.Storagef(op, "store is closed")
	}

	id := ""
	if len(key) > 0 && key[0] != "" {
		id = key[0]
	} else {
		id = uuid.New().String()
	}

	col := s.collection(name)
	prev, existed := col.docs[id]

	now := timestamp()
	stored := cloneDoc(doc)
	stored[FieldID] = id
	stored[FieldUpdatedAt] = now
	if existed {
		stored[FieldCreatedAt] = prev[FieldCreatedAt]
	} else {
		stored[FieldCreatedAt] = now
		col.order = append(col.order, id)
	}
	col.docs[id] = stored

	if err := s.flushLocked(name); err != nil {
		// Roll back so the in-memory state matches disk.
		if existed {
			col.docs[id] = prev
		} else {
			delete(col.docs, id)
			col.order = col.order[:len(col.order)-1]
		}
		metrics.RecordStoreWrite(name, "store", "error")
		return "", errs.Storage(op, err)
	}

	metrics.RecordStoreWrite(name, "store", "ok")
	return id, nil
}

// Retrieve returns the document stored under key, reserved fields stripped.
func (s *Store) Retrieve(ctx context.Context, name, key string) (Document, error) {
	const op = "docstore.Retrieve"
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errs.Storagef(op, "store is closed")
	}

	col, ok := s.collections[name]
	if !ok {
		return nil, errs.NotFound(op, fmt.Sprintf("collection %q not found", name))
	}
	doc, ok := col.docs[key]
	if !ok {
		return nil, errs.NotFound(op, fmt.Sprintf("%s/%s not found", name, key))
	}
	return stripReserved(doc), nil
}

// Update modifies the document under key. With merge the given fields are
// shallow-merged into the existing document; without it the document is
// replaced entirely except for the reserved fields. Returns false when the
// document does not exist.
func (s *Store) Update(ctx context.Context, name, key string, partial Document, merge bool) (bool, error) {
	const op = "docstore.Update"
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, errs.Storagef(op, "store is closed")
	}

	col, ok := s.collections[name]
	if !ok {
		return false, nil
	}
	prev, ok := col.docs[key]
	if !ok {
		return false, nil
	}

	var updated Document
	if merge {
		updated = cloneDoc(prev)
		for k, v := range partial {
			if isReserved(k) {
				continue
			}
			updated[k] = v
		}
	} else {
		updated = cloneDoc(partial)
		for k := range updated {
			if isReserved(k) {
				delete(updated, k)
			}
		}
		updated[FieldID] = prev[FieldID]
		updated[FieldCreatedAt] = prev[FieldCreatedAt]
	}
	updated[FieldUpdatedAt] = timestamp()
	col.docs[key] = updated

	if err := s.flushLocked(name); err != nil {
		col.docs[key] = prev
		metrics.RecordStoreWrite(name, "update", "error")
		return false, errs.Storage(op, err)
	}

	metrics.RecordStoreWrite(name, "update", "ok")
	return true, nil
}

// Delete physically removes the document under key. Returns false when it
// does not exist.
func (s *Store) Delete(ctx context.Context, name, key string) (bool, error) {
	const op = "docstore.Delete"
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, errs.Storagef(op, "store is closed")
	}

	col, ok := s.collections[name]
	if !ok {
		return false, nil
	}
	prev, ok := col.docs[key]
	if !ok {
		return false, nil
	}

	idx := indexOf(col.order, key)
	delete(col.docs, key)
	if idx >= 0 {
		col.order = append(col.order[:idx], col.order[idx+1:]...)
	}

	if err := s.flushLocked(name); err != nil {
		col.docs[key] = prev
		if idx >= 0 {
			col.order = append(col.order[:idx], append([]string{key}, col.order[idx:]...)...)
		}
		metrics.RecordStoreWrite(name, "delete", "error")
		return false, errs.Storage(op, err)
	}

	metrics.RecordStoreWrite(name, "delete", "ok")
	return true, nil
}

// BulkInsert stores a batch of documents under generated ids with a single
// durability flush. On flush failure none of the batch is kept.
func (s *Store) BulkInsert(ctx context.Context, name string, docs []Document) ([]string, error) {
	const op = "docstore.BulkInsert"
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errs.Storagef(op, "store is closed")
	}

	col := s.collection(name)
	now := timestamp()
	ids := make([]string, 0, len(docs))

	for _, doc := range docs {
		id := uuid.New().String()
		stored := cloneDoc(doc)
		stored[FieldID] = id
		stored[FieldCreatedAt] = now
		stored[FieldUpdatedAt] = now
		col.docs[id] = stored
		col.order = append(col.order, id)
		ids = append(ids, id)
	}

	if err := s.flushLocked(name); err != nil {
		for _, id := range ids {
			delete(col.docs, id)
		}
		col.order = col.order[:len(col.order)-len(ids)]
		metrics.RecordStoreWrite(name, "bulk_insert", "error")
		return nil, errs.Storage(op, err)
	}

	metrics.RecordStoreWrite(name, "bulk_insert", "ok")
	return ids, nil
}

// Backup copies the durable files of the selected collections (or all of
// them) into dir.
func (s *Store) Backup(ctx context.Context, dir string, names ...string) error {
	const op = "docstore.Backup"
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errs.Storagef(op, "store is closed")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Storage(op, err)
	}

	if len(names) == 0 {
		names = s.collectionNames()
	}
	for _, name := range names {
		if _, ok := s.collections[name]; !ok {
			continue
		}
		src := filepath.Join(s.root, name+".json")
		dst := filepath.Join(dir, name+".json")
		if err := copyFile(src, dst); err != nil {
			return errs.Storage(op, err)
		}
	}

	s.log.Info("backup completed", zap.String("dir", dir), zap.Int("collections", len(names)))
	return nil
}

// Restore replaces the selected collections (or every collection found in
// dir) from a backup and reloads them.
func (s *Store) Restore(ctx context.Context, dir string, names ...string) error {
	const op = "docstore.Restore"
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errs.Storagef(op, "store is closed")
	}

	if len(names) == 0 {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return errs.Storage(op, err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
				names = append(names, strings.TrimSuffix(e.Name(), ".json"))
			}
		}
	}

	for _, name := range names {
		src := filepath.Join(dir, name+".json")
		dst := filepath.Join(s.root, name+".json")
		if _, err := os.Stat(src); err != nil {
			return errs.Storage(op, fmt.Errorf("backup for collection %q: %w", name, err))
		}
		if err := copyFile(src, dst); err != nil {
			return errs.Storage(op, err)
		}
		if err := s.loadCollection(name, dst); err != nil {
			return err
		}
	}

	s.log.Info("restore completed", zap.String("dir", dir), zap.Int("collections", len(names)))
	return nil
}

// Stats returns summary information for a collection.
func (s *Store) Stats(name string) CollectionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return CollectionStats{}
	}
	return CollectionStats{Exists: true, Count: len(col.docs)}
}

// Collections returns the names of all loaded collections.
func (s *Store) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectionNames()
}

// Close marks the store closed. All state is already on disk after every
// mutation, so there is nothing to flush. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.log.Info("document store closed", zap.String("root", s.root))
	return nil
}

// collection returns the named collection, creating it when absent. Caller
// must hold the write lock.
func (s *Store) collection(name string) *collection {
	col, ok := s.collections[name]
	if !ok {
		col = &collection{docs: make(map[string]Document)}
		s.collections[name] = col
	}
	return col
}

func (s *Store) collectionNames() []string {
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// flushLocked rewrites the collection file. The new content is written to a
// temp file and renamed over the old one, so readers of the file never see a
// truncated collection. Caller must hold the write lock.
func (s *Store) flushLocked(name string) error {
	start := time.Now()
	col := s.collections[name]

	data, err := json.MarshalIndent(col.docs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal collection %q: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.root, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write collection %q: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync collection %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file for %q: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.root, name+".json")); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace collection %q: %w", name, err)
	}

	metrics.StoreFlushDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	metrics.CollectionDocuments.WithLabelValues(name).Set(float64(len(col.docs)))
	return nil
}

func (s *Store) loadAll() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return errs.Storage("docstore.loadAll", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		if err := s.loadCollection(name, filepath.Join(s.root, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadCollection(name, path string) error {
	const op = "docstore.loadCollection"

	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Storage(op, err)
	}

	docs := make(map[string]Document)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &docs); err != nil {
			return errs.Storage(op, fmt.Errorf("collection %q is corrupt: %w", name, err))
		}
	}

	// Rebuild insertion order from creation timestamps, id tie-break.
	order := make([]string, 0, len(docs))
	for id := range docs {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		a, _ := docs[order[i]][FieldCreatedAt].(string)
		b, _ := docs[order[j]][FieldCreatedAt].(string)
		if c := compareTimestamps(a, b); c != 0 {
			return c < 0
		}
		return order[i] < order[j]
	})

	s.collections[name] = &collection{docs: docs, order: order}
	metrics.CollectionDocuments.WithLabelValues(name).Set(float64(len(docs)))
	s.log.Debug("collection loaded", zap.String("collection", name), zap.Int("documents", len(docs)))
	return nil
}

func isReserved(field string) bool {
	return strings.HasPrefix(field, "_")
}

func stripReserved(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		if isReserved(k) {
			continue
		}
		out[k] = v
	}
	return out
}

func cloneDoc(doc Document) Document {
	out := make(Document, len(doc)+3)
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func indexOf(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".copy-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, dst)
}
