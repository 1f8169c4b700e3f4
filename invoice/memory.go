package invoice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore stores artifacts in memory (test/dev only).
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data []byte
	meta ArtifactMeta
}

// NewMemoryStore creates an in-memory artifact store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// Put stores an artifact.
func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error) {
	_ = ctx
	if key == "" {
		return ArtifactRef{}, NewError(KindValidation, "artifact key is required", nil)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ArtifactRef{}, err
	}
	meta.Size = int64(len(data))
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	s.mu.Lock()
	s.objects[key] = memoryObject{data: data, meta: meta}
	s.mu.Unlock()

	return ArtifactRef{Key: key, Meta: meta}, nil
}

// Open reads an artifact.
func (s *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error) {
	_ = ctx
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ArtifactMeta{}, NewError(KindNotFound, fmt.Sprintf("artifact %q not found", key), nil)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.meta, nil
}

// Delete removes an artifact.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Prune removes artifacts created before the cutoff.
func (s *MemoryStore) Prune(ctx context.Context, before time.Time) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, obj := range s.objects {
		if obj.meta.CreatedAt.Before(before) {
			delete(s.objects, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored artifacts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// MemoryTracker keeps export history in memory (test/dev only).
type MemoryTracker struct {
	mu      sync.RWMutex
	records []ExportRecord
	counter uint64
}

// NewMemoryTracker creates an in-memory tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{}
}

// Record appends a history entry.
func (t *MemoryTracker) Record(ctx context.Context, record ExportRecord) (string, error) {
	_ = ctx
	if record.Invoice == "" {
		return "", NewError(KindValidation, "invoice number is required", nil)
	}
	if record.ID == "" {
		record.ID = fmt.Sprintf("inv-exp-%d", atomic.AddUint64(&t.counter, 1))
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	t.mu.Lock()
	t.records = append(t.records, record)
	t.mu.Unlock()
	return record.ID, nil
}

// List returns matching records, newest first.
func (t *MemoryTracker) List(ctx context.Context, filter HistoryFilter) ([]ExportRecord, error) {
	_ = ctx
	t.mu.RLock()
	out := make([]ExportRecord, 0, len(t.records))
	for _, record := range t.records {
		if matchesFilter(record, filter) {
			out = append(out, record)
		}
	}
	t.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Get returns a record by ID.
func (t *MemoryTracker) Get(ctx context.Context, id string) (ExportRecord, error) {
	_ = ctx
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, record := range t.records {
		if record.ID == id {
			return record, nil
		}
	}
	return ExportRecord{}, NewError(KindNotFound, fmt.Sprintf("export %q not found", id), nil)
}

// DeleteBefore drops records created before the cutoff.
func (t *MemoryTracker) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	_ = ctx
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.records[:0]
	var removed int64
	for _, record := range t.records {
		if record.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, record)
	}
	t.records = kept
	return removed, nil
}

func matchesFilter(record ExportRecord, filter HistoryFilter) bool {
	if filter.Invoice != "" && record.Invoice != filter.Invoice {
		return false
	}
	if filter.Format != "" && record.Format != filter.Format {
		return false
	}
	if !filter.Since.IsZero() && record.CreatedAt.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && record.CreatedAt.After(filter.Until) {
		return false
	}
	return true
}
