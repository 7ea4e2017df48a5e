package vaultfs

import "github.com/ag0st/cryptovault/errs"

var (
	errNotEmpty           = errs.NewKind(errs.KindNotEmpty, "directory is not empty")
	errNotFound           = errs.NewKind(errs.KindNotFound, "no such entry")
	errAlreadyExists      = errs.NewKind(errs.KindAlreadyExists, "entry already exists")
	errNotADirectory      = errs.NewKind(errs.KindIo, "entry is not a directory")
	errNotASymlink        = errs.NewKind(errs.KindIo, "entry is not a symlink")
	errInvalidThreshold   = errs.NewKind(errs.KindIo, "shortening_threshold must be a positive integer")
	errUnsupportedVersion = errs.NewKind(errs.KindUnsupportedVersion, "unsupported vault format or cipher combo")
)
