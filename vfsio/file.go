// Package vfsio implements the random-access, chunk-aligned encrypted
// stream: a cleartext read/write/seek view over a seekable ciphertext
// backing file, built on a cryptor.FileCryptor.
package vfsio

import (
	"io"
	"os"
)

// File is the backing-store contract EncryptedStream needs: positioned
// reads/writes, size query, truncate, flush, and an advisory non-blocking
// reader-writer lock. *os.File satisfies this via OpenFile below.
type File interface {
	io.ReaderAt
	io.WriterAt
	Size() (int64, error)
	Truncate(size int64) error
	Sync() error
	Close() error

	// Lock acquires the advisory lock non-blockingly: shared if exclusive
	// is false, exclusive otherwise. Returns an *errs.Error with Kind
	// KindBusy if the lock is already held elsewhere.
	Lock(exclusive bool) error
	// Unlock releases a previously-acquired lock.
	Unlock() error
}

// osFile adapts *os.File to File.
type osFile struct {
	*os.File
}

// OpenFile opens (creating if necessary) the ciphertext file at path for
// random-access read/write use by an EncryptedStream. A freshly created
// (empty) file gets a new FileHeader on the subsequent Open call.
func OpenFile(path string) (File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, wrapHostError(err, path)
	}
	return &osFile{File: f}, nil
}

// OpenExisting opens the ciphertext file at path, failing with KindNotFound
// if it does not already exist. Use this for reading or editing an entry
// that must already exist, as opposed to OpenFile's create-if-missing
// semantics used when materializing a brand new entry. An existing but
// empty file still gets its FileHeader from the subsequent Open call.
func OpenExisting(path string) (File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, wrapHostError(err, path)
	}
	return &osFile{File: f}, nil
}

func (f *osFile) Size() (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, wrapHostError(err, f.Name())
	}
	return info.Size(), nil
}
