// Package refstore persists the size and digest of the last accepted
// privileged image so a later boot can recognise it in the other slot.
package refstore

import (
	"github.com/juju/errors"

	"github.com/moffa90/go-sdupdater/espimage"
	"github.com/moffa90/go-sdupdater/nvs"
)

// Record layout in the namespace store.
const (
	// Namespace holds the reference record
	Namespace = "sd-menu"

	// KeySize stores the image length as an int32
	KeySize = "menusize"

	// KeyDigest stores the 32 raw digest bytes
	KeyDigest = "digest"
)

// Record is the stored reference. A Size of 0 means no reference.
type Record struct {
	Size   uint32
	Digest espimage.Digest
}

// IsZero reports whether r holds no reference.
func (r Record) IsZero() bool {
	return r.Size == 0
}

// Store reads and writes the reference record.
type Store struct {
	nvs nvs.Store
}

// New returns a Store backed by s.
func New(s nvs.Store) *Store {
	return &Store{nvs: s}
}

// Save replaces the record with size and digest. Both fields are committed
// together when the namespace is closed.
func (s *Store) Save(size uint32, digest espimage.Digest) (err error) {
	ns, err := s.nvs.Open(Namespace, false)
	if err != nil {
		return errors.Annotatef(err, "open %q", Namespace)
	}
	defer func() {
		// a half-written record must not reach storage
		if err != nil {
			_ = ns.Abort()
			return
		}
		err = ns.Close()
	}()

	if err := ns.PutInt(KeySize, int32(size)); err != nil {
		return errors.Annotatef(err, "put %q", KeySize)
	}
	if err := ns.PutBytes(KeyDigest, digest[:]); err != nil {
		return errors.Annotatef(err, "put %q", KeyDigest)
	}
	return nil
}

// Load returns the stored record. A missing namespace or a failed open
// yields the zero Record; a stored digest that is not 32 bytes long reads
// as all-zero.
func (s *Store) Load() Record {
	ns, err := s.nvs.Open(Namespace, true)
	if err != nil {
		return Record{}
	}
	defer ns.Close()

	var r Record
	r.Size = uint32(ns.GetInt(KeySize, 0))

	var buf [espimage.DigestSize]byte
	if n := ns.GetBytes(KeyDigest, buf[:]); n == espimage.DigestSize {
		r.Digest = espimage.Digest(buf)
	}
	return r
}
