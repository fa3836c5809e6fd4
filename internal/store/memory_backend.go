package store

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"
)

// MemoryBackend keeps encoded documents in process memory. It is the backend
// for local development and the fake collaborator in tests.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string]map[string][]byte)}
}

func (m *MemoryBackend) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	raw, ok := m.collections[collection][id]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decodificación %s/%s: %w", collection, id, err)
	}
	return true, nil
}

func (m *MemoryBackend) Put(ctx context.Context, collection, id string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("codificación %s/%s: %w", collection, id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string][]byte)
		m.collections[collection] = docs
	}
	docs[id] = raw
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.collections[collection], id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Query(ctx context.Context, collection, field, value string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var matched [][]byte
	for _, raw := range m.snapshot(collection) {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return fmt.Errorf("decodificación %s: %w", collection, err)
		}
		if v, ok := fields[field]; ok && fmt.Sprint(v) == value {
			matched = append(matched, raw)
		}
	}
	return decodeList(matched, out)
}

func (m *MemoryBackend) All(ctx context.Context, collection string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return decodeList(m.snapshot(collection), out)
}

func (m *MemoryBackend) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryBackend) Close(context.Context) error { return nil }

// snapshot returns the raw documents of a collection ordered by id.
func (m *MemoryBackend) snapshot(collection string) [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := m.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, docs[id])
	}
	return out
}

func decodeList(raws [][]byte, out any) error {
	buf := make([]byte, 0, 2+len(raws)*256)
	buf = append(buf, '[')
	buf = append(buf, bytes.Join(raws, []byte(","))...)
	buf = append(buf, ']')
	if err := json.Unmarshal(buf, out); err != nil {
		return fmt.Errorf("decodificación de lista: %w", err)
	}
	return nil
}
