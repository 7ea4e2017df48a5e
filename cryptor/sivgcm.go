package cryptor

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/binary"

	"github.com/ag0st/cryptovault/masterkey"
)

const (
	sivGCMNonceLen = 12
	sivGCMTagLen   = 16
)

// sivGCMCryptor implements the SivGcm combo: AES-256-GCM for the header and
// for chunks (keyed by the header's own content key), and AES-SIV
// (key = mac||enc — note the reversed order from v1) for names and
// directory IDs.
type sivGCMCryptor struct {
	*nameCryptor
	headerAEAD cipher.AEAD
}

func newSivGCMCryptor(key *masterkey.MasterKey) (*sivGCMCryptor, error) {
	encKey := key.EncryptKey()
	macKey := key.MacKey()

	// siv-gcm concatenates the SIV key as mac || enc, deliberately reversed
	// from v1's enc || mac ordering; this is a format invariant pinned by
	// test vectors, not a transcription slip.
	names, err := newNameCryptor(append(append([]byte{}, macKey...), encKey...), base64.URLEncoding)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &sivGCMCryptor{nameCryptor: names, headerAEAD: gcm}, nil
}

func (c *sivGCMCryptor) Combo() CipherCombo { return SivGcm }

func (c *sivGCMCryptor) EncryptedHeaderLen() int {
	return sivGCMNonceLen + headerPayloadLen + sivGCMTagLen
}

func (c *sivGCMCryptor) ChunkOverhead() int { return sivGCMNonceLen + sivGCMTagLen }

func (c *sivGCMCryptor) MaxEncryptedChunkLen() int { return MaxChunkLen + c.ChunkOverhead() }

func (c *sivGCMCryptor) NewHeader() (*FileHeader, error) {
	nonce, err := randomBytes(sivGCMNonceLen)
	if err != nil {
		return nil, err
	}
	payload, err := newHeaderPayload()
	if err != nil {
		return nil, err
	}
	return &FileHeader{Nonce: nonce, Payload: payload}, nil
}

func (c *sivGCMCryptor) EncryptHeader(h *FileHeader) ([]byte, error) {
	sealed := c.headerAEAD.Seal(nil, h.Nonce, h.Payload[:], nil)
	out := make([]byte, 0, c.EncryptedHeaderLen())
	out = append(out, h.Nonce...)
	out = append(out, sealed...)
	return out, nil
}

func (c *sivGCMCryptor) DecryptHeader(enc []byte) (*FileHeader, error) {
	if len(enc) != c.EncryptedHeaderLen() {
		return nil, errInvalidHeaderLen
	}
	nonce := enc[:sivGCMNonceLen]
	sealed := enc[sivGCMNonceLen:]

	plain, err := c.headerAEAD.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errMacMismatch
	}
	var payload [headerPayloadLen]byte
	copy(payload[:], plain)

	out := make([]byte, sivGCMNonceLen)
	copy(out, nonce)
	return &FileHeader{Nonce: out, Payload: payload}, nil
}

func (c *sivGCMCryptor) contentAEAD(h *FileHeader) (cipher.AEAD, error) {
	block, err := aes.NewCipher(h.ContentKey())
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (c *sivGCMCryptor) chunkAD(headerNonce []byte, n uint64) []byte {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], n)
	ad := make([]byte, 0, 8+len(headerNonce))
	ad = append(ad, idx[:]...)
	ad = append(ad, headerNonce...)
	return ad
}

func (c *sivGCMCryptor) EncryptChunk(chunk []byte, h *FileHeader, n uint64) ([]byte, error) {
	if len(chunk) < 1 || len(chunk) > MaxChunkLen {
		return nil, errChunkSize("chunk length out of range [1, 32768] on encrypt")
	}
	aead, err := c.contentAEAD(h)
	if err != nil {
		return nil, err
	}
	nonce, err := randomBytes(sivGCMNonceLen)
	if err != nil {
		return nil, err
	}
	sealed := aead.Seal(nil, nonce, chunk, c.chunkAD(h.Nonce, n))

	out := make([]byte, 0, sivGCMNonceLen+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

func (c *sivGCMCryptor) DecryptChunk(enc []byte, h *FileHeader, n uint64) ([]byte, error) {
	if len(enc) < c.ChunkOverhead()+1 || len(enc) > c.MaxEncryptedChunkLen() {
		return nil, errChunkSize("encrypted chunk length out of range on decrypt")
	}
	aead, err := c.contentAEAD(h)
	if err != nil {
		return nil, err
	}
	nonce := enc[:sivGCMNonceLen]
	sealed := enc[sivGCMNonceLen:]

	plain, err := aead.Open(nil, nonce, sealed, c.chunkAD(h.Nonce, n))
	if err != nil {
		return nil, errMacMismatch
	}
	return plain, nil
}
