package store

import (
	"bytes"
	"io"
	"sort"
	"strings"
	"sync"
)

// Memory implements a simple in-memory version of a store. It is intended
// mainly for testing.
type Memory struct {
	m     sync.RWMutex
	store map[string][]byte
	open  map[string]bool // keys created but not closed yet
}

var (
	// ensure Memory satisfies the Store interface
	_ Store = &Memory{}
)

// NewMemory returns a new, empty memory store.
func NewMemory() *Memory {
	return &Memory{
		store: make(map[string][]byte),
		open:  make(map[string]bool),
	}
}

// ListPrefix returns all the keys which begin with the given prefix, in
// sorted order.
func (ms *Memory) ListPrefix(prefix string) ([]string, error) {
	var result []string
	ms.m.RLock()
	for k := range ms.store {
		if strings.HasPrefix(k, prefix) {
			result = append(result, k)
		}
	}
	ms.m.RUnlock()
	sort.Strings(result)
	return result, nil
}

// Open returns a ReadAtCloser and the size of the given value.
func (ms *Memory) Open(key string) (ReadAtCloser, int64, error) {
	ms.m.RLock()
	v, ok := ms.store[key]
	ms.m.RUnlock()
	if !ok {
		return nil, 0, ErrNotExist
	}
	return nopCloser{bytes.NewReader(v)}, int64(len(v)), nil
}

type nopCloser struct {
	io.ReaderAt
}

func (nopCloser) Close() error { return nil }

// Create makes a new entry in the store, and returns a writer to save data
// into it. The entry appears when the writer is closed.
func (ms *Memory) Create(key string) (io.WriteCloser, error) {
	ms.m.Lock()
	defer ms.m.Unlock()
	if _, ok := ms.store[key]; ok || ms.open[key] {
		return nil, ErrKeyExists
	}
	ms.open[key] = true
	return &memWriter{ms: ms, key: key}, nil
}

type memWriter struct {
	ms  *Memory
	key string
	b   []byte
}

func (w *memWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

func (w *memWriter) Close() error {
	w.ms.m.Lock()
	if w.ms.open[w.key] {
		delete(w.ms.open, w.key)
		w.ms.store[w.key] = w.b
	}
	w.ms.m.Unlock()
	return nil
}

// Delete the given key from the store. It is not an error if the item does
// not exist in the store. A key still being written is abandoned.
func (ms *Memory) Delete(key string) error {
	ms.m.Lock()
	delete(ms.store, key)
	delete(ms.open, key)
	ms.m.Unlock()
	return nil
}
