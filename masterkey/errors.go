package masterkey

import "github.com/ag0st/cryptovault/errs"

var errInvalidKeySize = errs.NewKind(errs.KindIo, "master key subkeys must each be 32 bytes")
