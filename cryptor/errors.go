package cryptor

import (
	"fmt"

	"github.com/ag0st/cryptovault/errs"
)

func errUnsupportedCombo(combo CipherCombo) error {
	return errs.NewKind(errs.KindUnsupportedVersion, fmt.Sprintf("unsupported cipher combo %q", combo))
}

var (
	errMacMismatch      = errs.NewKind(errs.KindMacMismatch, "authentication failed")
	errInvalidName      = errs.NewKind(errs.KindInvalidName, "invalid encrypted name")
	errInvalidHeaderLen = errs.NewKind(errs.KindIo, "encrypted header has the wrong length")
)

func errChunkSize(msg string) error {
	return errs.NewKind(errs.KindInvalidChunkSize, msg)
}
