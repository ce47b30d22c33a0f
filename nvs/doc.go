// Package nvs is a small namespaced key/value store modelled on ESP-IDF
// non-volatile storage.
//
// A namespace is opened read-write or read-only. Integers and byte blobs
// are stored under keys of at most 15 characters. Writes made through a
// read-write handle are buffered and become visible together when the
// handle is closed:
//
//	ns, err := store.Open("sd-menu", false)
//	if err != nil {
//	    return err
//	}
//	defer ns.Close()
//	ns.PutInt("menusize", 1024)
//	ns.PutBytes("digest", digest[:])
//
// Opening a namespace that was never written read-only fails with
// ErrNotFound. Two backends are provided: Memory and SQLite.
package nvs
