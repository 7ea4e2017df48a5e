// Package masterkey holds the two 256-bit subkeys a vault session is built
// on. The bytes are never serialized by this package; reading them from
// masterkey.cryptomator (scrypt-wrapped) is an external collaborator's job.
package masterkey

import (
	"crypto/subtle"
)

// KeySize is the length in bytes of each subkey.
const KeySize = 32

// MasterKey holds the encryption and MAC subkeys for a vault. The zero value
// is not valid; construct one with New or FromBytes.
type MasterKey struct {
	encKey []byte
	macKey []byte
}

// New allocates a MasterKey from two already-sized subkeys, copying them so
// the caller's buffers can be reused or wiped independently.
func New(encKey, macKey []byte) (*MasterKey, error) {
	if len(encKey) != KeySize || len(macKey) != KeySize {
		return nil, errInvalidKeySize
	}
	m := &MasterKey{
		encKey: make([]byte, KeySize),
		macKey: make([]byte, KeySize),
	}
	copy(m.encKey, encKey)
	copy(m.macKey, macKey)
	return m, nil
}

// FromBytes constructs a MasterKey from 64 raw bytes (enc || mac). This
// constructor is marked unsafe: it performs no provenance check on the
// bytes and exists for tests and the masterkey.cryptomator unwrap path,
// where the caller has already authenticated the source.
func FromBytes(raw [2 * KeySize]byte) *MasterKey {
	m := &MasterKey{
		encKey: make([]byte, KeySize),
		macKey: make([]byte, KeySize),
	}
	copy(m.encKey, raw[:KeySize])
	copy(m.macKey, raw[KeySize:])
	return m
}

// EncryptKey returns a copy of the encryption subkey. The returned slice is
// owned by the caller; the MasterKey's internal buffer is never exposed.
func (m *MasterKey) EncryptKey() []byte {
	out := make([]byte, KeySize)
	copy(out, m.encKey)
	return out
}

// MacKey returns a copy of the MAC subkey. The returned slice is owned by
// the caller; the MasterKey's internal buffer is never exposed.
func (m *MasterKey) MacKey() []byte {
	out := make([]byte, KeySize)
	copy(out, m.macKey)
	return out
}

// Equal reports whether two MasterKeys hold the same subkeys, in constant
// time with respect to the key bytes.
func (m *MasterKey) Equal(other *MasterKey) bool {
	if m == nil || other == nil {
		return m == other
	}
	encEq := subtle.ConstantTimeCompare(m.encKey, other.encKey) == 1
	macEq := subtle.ConstantTimeCompare(m.macKey, other.macKey) == 1
	return encEq && macEq
}

// Wipe zeroes the subkey buffers. The MasterKey must not be used afterward.
func (m *MasterKey) Wipe() {
	for i := range m.encKey {
		m.encKey[i] = 0
	}
	for i := range m.macKey {
		m.macKey[i] = 0
	}
}
