package vfsio

import (
	"errors"
	"os"

	"github.com/ag0st/cryptovault/errs"
)

var (
	errBusy          = errs.NewKind(errs.KindBusy, "advisory lock is held by another session")
	errClosed        = errs.NewKind(errs.KindIo, "stream is closed")
	errShortWrite    = errs.NewKind(errs.KindIo, "short write to backing file")
	errInvalidWhence = errs.NewKind(errs.KindIo, "invalid seek whence or negative truncate size")
)

// wrapHostError classifies a host filesystem error into the vault's error
// kinds, preserving the original error as the cause.
func wrapHostError(err error, path string) error {
	if err == nil {
		return nil
	}
	kind := errs.KindIo
	switch {
	case errors.Is(err, os.ErrNotExist):
		kind = errs.KindNotFound
	case errors.Is(err, os.ErrExist):
		kind = errs.KindAlreadyExists
	}
	return errs.WrapPath(errs.WrapKind(err, kind, err.Error()), path)
}
