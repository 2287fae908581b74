package preview

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

type memObject struct {
	data []byte
	meta Object
}

type Memory struct {
	mu   sync.RWMutex
	objs map[Ref]memObject
}

func NewMemory() *Memory {
	return &Memory{objs: make(map[Ref]memObject)}
}

func (m *Memory) Put(_ context.Context, contentType string, r io.Reader, _ int64) (Object, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Object{}, fmt.Errorf("preview: read: %w", err)
	}
	obj := Object{Ref: newRef(), ContentType: contentType, Size: int64(len(b))}
	m.mu.Lock()
	m.objs[obj.Ref] = memObject{data: b, meta: obj}
	m.mu.Unlock()
	return obj, nil
}

func (m *Memory) Open(_ context.Context, ref Ref) (io.ReadCloser, Object, error) {
	m.mu.RLock()
	o, ok := m.objs[ref]
	m.mu.RUnlock()
	if !ok {
		return nil, Object{}, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(o.data)), o.meta, nil
}

// Revoke is idempotent.
func (m *Memory) Revoke(_ context.Context, ref Ref) error {
	m.mu.Lock()
	delete(m.objs, ref)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Check(context.Context) error { return nil }

// Len is the number of live previews.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objs)
}
