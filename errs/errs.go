// Package errs provides a chainable error type used across the vault
// packages, plus a fixed set of error kinds a caller can switch on instead
// of matching error strings.
package errs

import (
	"strings"
	"time"
)

// Kind classifies an Error into one of the classes the vault surfaces to
// callers. The zero value, KindNone, means "unclassified" and is used for
// glue-level wraps (e.g. adding a path) that don't themselves carry meaning.
type Kind int

const (
	KindNone Kind = iota
	// KindMacMismatch: authentication failed on a header or chunk. Never
	// recovered; always surfaced.
	KindMacMismatch
	// KindInvalidName: base64 decode or SIV authentication failed on a
	// filename.
	KindInvalidName
	// KindUnsupportedVersion: vault format is not 8, or the cipher combo is
	// unknown.
	KindUnsupportedVersion
	// KindNotEmpty: rmdir attempted on a non-empty directory.
	KindNotEmpty
	// KindNotFound: host filesystem surface, no such entry.
	KindNotFound
	// KindAlreadyExists: host filesystem surface, entry already present.
	KindAlreadyExists
	// KindBusy: advisory lock could not be acquired non-blockingly.
	KindBusy
	// KindIo: catch-all for underlying I/O failures.
	KindIo
	// KindInvalidChunkSize: chunk length outside the bounds for its
	// operation (encrypt: [1, 32768]; decrypt: [nonce+mac+1, max]).
	KindInvalidChunkSize
)

func (k Kind) String() string {
	switch k {
	case KindMacMismatch:
		return "mac_mismatch"
	case KindInvalidName:
		return "invalid_name"
	case KindUnsupportedVersion:
		return "unsupported_version"
	case KindNotEmpty:
		return "not_empty"
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindBusy:
		return "busy"
	case KindIo:
		return "io"
	case KindInvalidChunkSize:
		return "invalid_chunk_size"
	default:
		return "none"
	}
}

// Error is a chainable error usable as both a leaf error and a wrapper. It
// carries the original error, a human message, a path (when relevant), and
// a classification Kind.
type Error struct {
	Err        error     `json:"-"`
	Kind       Kind      `json:"kind,omitempty"`
	StatusCode int       `json:"_"`
	Message    string    `json:"message,omitempty"`
	Path       string    `json:"path,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

// Error implements the error interface, printing the full chain.
func (e *Error) Error() string {
	res := ""
	var ce error = e
	cnt := 0
	for ce != nil {
		if cnt > 0 {
			res += strings.Repeat("\t", cnt)
			res += "| "
		}
		if cee, ok := ce.(*Error); ok {
			res += cee.Message
			ce = cee.Err
		} else {
			res += ce.Error()
			break
		}
		res += "\n"
		cnt++
	}
	return res
}

// Unwrap lets errors.Is/errors.As walk the chain.
func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, New(...)) match purely on Kind when both sides
// carry one, independent of message text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind != KindNone && t.Kind == e.Kind
}

// New creates a new unclassified error.
func New(message string) *Error {
	return &Error{Message: message, Timestamp: time.Now()}
}

// NewWithCode creates a new unclassified error carrying a status code (used
// by the ambient HTTP glue, not by the cryptographic core).
func NewWithCode(message string, code int) *Error {
	return &Error{StatusCode: code, Message: message, Timestamp: time.Now()}
}

// NewKind creates a new error of the given Kind.
func NewKind(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Timestamp: time.Now()}
}

// Wrap adds a message to err. If err already carries a message, it is
// wrapped in a new Error instead of being overwritten. Returns nil if
// err == nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		if e.Message == "" {
			e.Message = message
			return e
		}
	}
	return &Error{Err: err, Message: message, Timestamp: time.Now()}
}

// WrapKind wraps err with a new classified Error, preserving err as the
// cause. Returns nil if err == nil.
func WrapKind(err error, kind Kind, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Err: err, Kind: kind, Message: message, Timestamp: time.Now()}
}

// WrapWithError wraps err inside an existing error, preserving err2's own
// fields (Kind, StatusCode, Message) and chaining err as its cause.
func WrapWithError(err error, err2 error) error {
	if err == nil {
		return nil
	}
	if e, ok := err2.(*Error); ok {
		cp := *e
		cp.Err = err
		return &cp
	}
	return &Error{Err: err, Message: err2.Error(), Timestamp: time.Now()}
}

// WrapPath adds a path to err. If err already carries a path, it is wrapped
// in a new Error instead of being overwritten. Returns nil if err == nil.
func WrapPath(err error, path string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		if e.Path == "" {
			e.Path = path
			return e
		}
	}
	return &Error{Err: err, Path: path, Timestamp: time.Now()}
}

// Collaps flattens a chain into a single Error carrying the first Kind,
// path, message and status code found while walking the chain.
func Collaps(e error) error {
	if e == nil {
		return nil
	}
	res := &Error{}
	var ce error = e

	for res.Path == "" || res.Message == "" || res.StatusCode == 0 || res.Kind == KindNone {
		if ce.Error() != "" && res.Message == "" {
			res.Message = ce.Error()
		}
		if c, ok := ce.(*Error); ok {
			if c.Path != "" && res.Path == "" {
				res.Path = c.Path
			}
			if c.StatusCode != 0 && res.StatusCode == 0 {
				res.StatusCode = c.StatusCode
			}
			if c.Kind != KindNone && res.Kind == KindNone {
				res.Kind = c.Kind
			}
			ce = c.Err
		} else {
			break
		}
		if ce == nil {
			break
		}
	}
	return res
}

// KindOf extracts the Kind of err if it (or something in its chain) is an
// *Error, and KindNone otherwise.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind != KindNone {
				return e.Kind
			}
			err = e.Err
			continue
		}
		break
	}
	return KindNone
}
