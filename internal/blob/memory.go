package blob

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process store. Locators are "mem://" plus the path.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte

	// FailPut and FailDelete, when set, fail every Put or Delete.
	FailPut    error
	FailDelete error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, path string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPut != nil {
		return "", m.FailPut
	}
	locator := "mem://" + path
	m.objects[locator] = append([]byte(nil), data...)
	return locator, nil
}

func (m *Memory) Delete(ctx context.Context, locator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete != nil {
		return m.FailDelete
	}
	if _, ok := m.objects[locator]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	delete(m.objects, locator)
	return nil
}

func (m *Memory) Exists(ctx context.Context, locator string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[locator]
	return ok, nil
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Bytes returns the stored bytes for locator.
func (m *Memory) Bytes(locator string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[locator]
	return b, ok
}
