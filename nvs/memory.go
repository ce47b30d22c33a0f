package nvs

import (
	"sync"

	"github.com/juju/errors"
)

// Memory is an in-process Store. The zero value is not usable; call
// NewMemory.
type Memory struct {
	mu         sync.Mutex
	namespaces map[string]map[string]entry
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{namespaces: make(map[string]map[string]entry)}
}

// Open opens namespace.
func (m *Memory) Open(namespace string, readOnly bool) (Namespace, error) {
	if err := ValidateName(namespace); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.namespaces[namespace]; !ok {
		if readOnly {
			return nil, errors.Annotatef(ErrNotFound, "open %q", namespace)
		}
		m.namespaces[namespace] = make(map[string]entry)
	}
	return newHandle(namespace, readOnly, m), nil
}

func (m *Memory) get(namespace, key string) (entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.namespaces[namespace][key]
	return e, ok, nil
}

func (m *Memory) commit(namespace string, writes map[string]entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]entry)
		m.namespaces[namespace] = ns
	}
	for k, e := range writes {
		ns[k] = e
	}
	return nil
}
