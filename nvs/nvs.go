package nvs

import (
	"encoding/binary"

	"github.com/juju/errors"
)

// MaxNameLen is the longest namespace or key name accepted.
const MaxNameLen = 15

const (
	// ErrNotFound is returned when a read-only open names a namespace that
	// does not exist.
	ErrNotFound = errors.ConstError("namespace not found")

	// ErrReadOnly is returned by writes through a read-only handle.
	ErrReadOnly = errors.ConstError("namespace opened read-only")

	// ErrInvalidName is returned for empty or over-long names.
	ErrInvalidName = errors.ConstError("invalid name")

	// ErrClosed is returned by operations on a closed handle.
	ErrClosed = errors.ConstError("namespace handle closed")
)

// Store opens namespaces.
type Store interface {
	// Open opens namespace. A read-write open creates it if missing.
	Open(namespace string, readOnly bool) (Namespace, error)
}

// Namespace is an open handle on one namespace.
type Namespace interface {
	// GetInt returns the integer stored under key, or def when the key is
	// missing or holds a different type.
	GetInt(key string, def int32) int32

	// PutInt stores an integer under key.
	PutInt(key string, value int32) error

	// GetBytes copies the blob stored under key into buf and returns its
	// length. It returns 0 when the key is missing, holds a different type
	// or does not fit buf.
	GetBytes(key string, buf []byte) int

	// PutBytes stores a copy of value under key.
	PutBytes(key string, value []byte) error

	// Close releases the handle and commits buffered writes.
	Close() error

	// Abort releases the handle and drops buffered writes.
	Abort() error
}

// Kind is the type of a stored value.
type Kind uint8

const (
	// KindInt32 is a 32-bit signed integer
	KindInt32 Kind = 1

	// KindBlob is an opaque byte string
	KindBlob Kind = 2
)

type entry struct {
	kind  Kind
	value []byte
}

// backend is the storage behind a handle.
type backend interface {
	get(namespace, key string) (entry, bool, error)
	commit(namespace string, writes map[string]entry) error
}

// handle implements Namespace on top of a backend, buffering writes until
// Close.
type handle struct {
	namespace string
	readOnly  bool
	backend   backend
	pending   map[string]entry
	closed    bool
}

func newHandle(namespace string, readOnly bool, b backend) *handle {
	return &handle{
		namespace: namespace,
		readOnly:  readOnly,
		backend:   b,
		pending:   make(map[string]entry),
	}
}

func (h *handle) lookup(key string) (entry, bool) {
	if h.closed || ValidateName(key) != nil {
		return entry{}, false
	}
	if e, ok := h.pending[key]; ok {
		return e, true
	}
	e, ok, err := h.backend.get(h.namespace, key)
	if err != nil {
		return entry{}, false
	}
	return e, ok
}

func (h *handle) put(key string, e entry) error {
	if h.closed {
		return ErrClosed
	}
	if h.readOnly {
		return errors.Annotatef(ErrReadOnly, "put %q in %q", key, h.namespace)
	}
	if err := ValidateName(key); err != nil {
		return err
	}
	h.pending[key] = e
	return nil
}

func (h *handle) GetInt(key string, def int32) int32 {
	e, ok := h.lookup(key)
	if !ok || e.kind != KindInt32 || len(e.value) != 4 {
		return def
	}
	return int32(binary.LittleEndian.Uint32(e.value))
}

func (h *handle) PutInt(key string, value int32) error {
	return h.put(key, entry{kind: KindInt32, value: binary.LittleEndian.AppendUint32(nil, uint32(value))})
}

func (h *handle) GetBytes(key string, buf []byte) int {
	e, ok := h.lookup(key)
	if !ok || e.kind != KindBlob || len(e.value) > len(buf) {
		return 0
	}
	return copy(buf, e.value)
}

func (h *handle) PutBytes(key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	return h.put(key, entry{kind: KindBlob, value: v})
}

func (h *handle) Close() error {
	if h.closed {
		return ErrClosed
	}
	h.closed = true
	if h.readOnly || len(h.pending) == 0 {
		return nil
	}
	err := h.backend.commit(h.namespace, h.pending)
	h.pending = nil
	return errors.Annotatef(err, "commit namespace %q", h.namespace)
}

func (h *handle) Abort() error {
	if h.closed {
		return ErrClosed
	}
	h.closed = true
	h.pending = nil
	return nil
}

// ValidateName checks a namespace or key name.
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLen {
		return errors.Annotatef(ErrInvalidName, "%q must be 1 to %d characters", name, MaxNameLen)
	}
	return nil
}
