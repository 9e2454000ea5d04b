package journal

import (
	"bytes"
	"context"
	"iter"
	"sort"
	"sync"
)

// Memory is an in-memory Journal, for tests and hosts without a data
// directory.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory journal.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Append implements Journal.
func (m *Memory) Append(_ context.Context, rec *Record) error {
	val, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[string(recordKey(rec))] = val
	m.mu.Unlock()
	return nil
}

// ByBook implements Journal.
func (m *Memory) ByBook(_ context.Context, bookID string) iter.Seq2[*Record, error] {
	return m.scan(bookPrefix(bookID))
}

// All implements Journal.
func (m *Memory) All(_ context.Context) iter.Seq2[*Record, error] {
	return m.scan(bookPrefix(""))
}

func (m *Memory) scan(prefix []byte) iter.Seq2[*Record, error] {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	vals := make([][]byte, len(keys))
	for i, k := range keys {
		vals[i] = m.data[k]
	}
	m.mu.RUnlock()

	return func(yield func(*Record, error) bool) {
		for _, val := range vals {
			rec, err := decodeRecord(val)
			if !yield(rec, err) {
				return
			}
		}
	}
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *Memory) Close() error { return nil }
