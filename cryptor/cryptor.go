// Package cryptor implements the two Cryptomator v8 cipher suites: v1
// (AES-CTR content + HMAC-SHA256 chunk authentication) and siv-gcm
// (AES-GCM content). Both use AES-SIV (via github.com/miscreant/miscreant.go)
// for directory-ID hashing and filename encryption, differing in the order
// the two master subkeys are concatenated into the SIV key and in the
// base64 alphabet of encrypted names.
package cryptor

import "github.com/ag0st/cryptovault/masterkey"

// CipherCombo tags which cipher suite a vault was created with. The tag is
// fixed for the vault's lifetime; there is no migration path modeled here.
type CipherCombo string

const (
	// SivCtrMac is the v1 combo: AES-CTR + HMAC-SHA256 per chunk.
	SivCtrMac CipherCombo = "SIV_CTRMAC"
	// SivGcm is the current default combo: AES-GCM per chunk.
	SivGcm CipherCombo = "SIV_GCM"
)

// MaxChunkLen is the maximum cleartext chunk size, fixed by the format.
const MaxChunkLen = 32768

// headerPayloadLen is the fixed size of a FileHeader's payload: 8 bytes
// reserved (0xFF...FF) followed by a 32-byte content key slot.
const headerPayloadLen = 40

// FileCryptor is the contract both cipher suites implement. Implementations
// are tagged variants selected at vault open by CipherCombo, not a class
// hierarchy: the polymorphism lives in the constructor switch in New, not
// in embedding or interface assertions downstream.
type FileCryptor interface {
	// Combo reports which cipher suite this Cryptor implements.
	Combo() CipherCombo

	// EncryptedHeaderLen is the on-disk size of an encrypted FileHeader.
	EncryptedHeaderLen() int
	// MaxEncryptedChunkLen is the on-disk size of a chunk carrying the
	// maximum cleartext payload (MaxChunkLen bytes).
	MaxEncryptedChunkLen() int
	// ChunkOverhead is MaxEncryptedChunkLen - MaxChunkLen: the fixed
	// per-chunk nonce+MAC/tag cost, used by EncryptedStream position math.
	ChunkOverhead() int

	// NewHeader creates a fresh FileHeader: a random nonce sized for this
	// suite, and a payload of reserved bytes plus a random content key.
	NewHeader() (*FileHeader, error)
	// EncryptHeader serializes and authenticates a FileHeader.
	EncryptHeader(h *FileHeader) ([]byte, error)
	// DecryptHeader authenticates and parses an encrypted FileHeader. A
	// length mismatch or failed authentication surfaces as an *errs.Error
	// with Kind KindIo or KindMacMismatch respectively.
	DecryptHeader(enc []byte) (*FileHeader, error)

	// EncryptChunk authenticates and encrypts one cleartext chunk. n is the
	// zero-based chunk index, bound into the authentication tag so that
	// decrypting with the wrong index fails. len(chunk) must be in
	// [1, MaxChunkLen].
	EncryptChunk(chunk []byte, h *FileHeader, n uint64) ([]byte, error)
	// DecryptChunk authenticates and decrypts one encrypted chunk. len(enc)
	// must be in [ChunkOverhead()+1, MaxEncryptedChunkLen()].
	DecryptChunk(enc []byte, h *FileHeader, n uint64) ([]byte, error)

	// HashDirID computes the bucket-addressing hash of a directory ID:
	// uppercase Base32 of SHA-1(AES-SIV(dirID, AD=nil)), 32 characters.
	HashDirID(dirID string) (string, error)
	// EncryptName encrypts a leaf name under the parent directory ID as
	// associated data, base64-encoded (standard for v1, URL-safe for
	// siv-gcm).
	EncryptName(name, parentDirID string) (string, error)
	// DecryptName inverts EncryptName. Base64 decode failure and SIV
	// authentication failure both surface as KindInvalidName.
	DecryptName(enc, parentDirID string) (string, error)
}

// New constructs the FileCryptor for the given combo and master key.
func New(combo CipherCombo, key *masterkey.MasterKey) (FileCryptor, error) {
	switch combo {
	case SivCtrMac:
		return newV1Cryptor(key)
	case SivGcm:
		return newSivGCMCryptor(key)
	default:
		return nil, errUnsupportedCombo(combo)
	}
}
