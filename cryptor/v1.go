package cryptor

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"

	"github.com/ag0st/cryptovault/masterkey"
)

const (
	v1NonceLen = 16
	v1MacLen   = 32
)

// v1Cryptor implements the SivCtrMac combo: AES-256-CTR content encryption
// authenticated by a trailing HMAC-SHA256, and AES-SIV (key = enc||mac) for
// names and directory IDs.
type v1Cryptor struct {
	*nameCryptor
	encKey []byte
	macKey []byte
	block  cipher.Block
}

func newV1Cryptor(key *masterkey.MasterKey) (*v1Cryptor, error) {
	encKey := key.EncryptKey()
	macKey := key.MacKey()

	// v1 concatenates the SIV key as enc || mac; this order is a format
	// invariant, not a bug, and diverges from siv-gcm below.
	names, err := newNameCryptor(append(append([]byte{}, encKey...), macKey...), base64.StdEncoding)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	return &v1Cryptor{nameCryptor: names, encKey: encKey, macKey: macKey, block: block}, nil
}

func (c *v1Cryptor) Combo() CipherCombo { return SivCtrMac }

func (c *v1Cryptor) EncryptedHeaderLen() int { return v1NonceLen + headerPayloadLen + v1MacLen }

func (c *v1Cryptor) ChunkOverhead() int { return v1NonceLen + v1MacLen }

func (c *v1Cryptor) MaxEncryptedChunkLen() int { return MaxChunkLen + c.ChunkOverhead() }

func (c *v1Cryptor) NewHeader() (*FileHeader, error) {
	nonce, err := randomBytes(v1NonceLen)
	if err != nil {
		return nil, err
	}
	payload, err := newHeaderPayload()
	if err != nil {
		return nil, err
	}
	return &FileHeader{Nonce: nonce, Payload: payload}, nil
}

func (c *v1Cryptor) EncryptHeader(h *FileHeader) ([]byte, error) {
	ctPayload := make([]byte, headerPayloadLen)
	cipher.NewCTR(c.block, h.Nonce).XORKeyStream(ctPayload, h.Payload[:])

	mac := hmac.New(sha256.New, c.macKey)
	mac.Write(h.Nonce)
	mac.Write(ctPayload)
	tag := mac.Sum(nil)

	out := make([]byte, 0, c.EncryptedHeaderLen())
	out = append(out, h.Nonce...)
	out = append(out, ctPayload...)
	out = append(out, tag...)
	return out, nil
}

func (c *v1Cryptor) DecryptHeader(enc []byte) (*FileHeader, error) {
	if len(enc) != c.EncryptedHeaderLen() {
		return nil, errInvalidHeaderLen
	}
	nonce := enc[:v1NonceLen]
	ctPayload := enc[v1NonceLen : v1NonceLen+headerPayloadLen]
	tag := enc[v1NonceLen+headerPayloadLen:]

	mac := hmac.New(sha256.New, c.macKey)
	mac.Write(nonce)
	mac.Write(ctPayload)
	if !hmac.Equal(tag, mac.Sum(nil)) {
		return nil, errMacMismatch
	}

	var payload [headerPayloadLen]byte
	cipher.NewCTR(c.block, nonce).XORKeyStream(payload[:], ctPayload)

	out := make([]byte, v1NonceLen)
	copy(out, nonce)
	return &FileHeader{Nonce: out, Payload: payload}, nil
}

func (c *v1Cryptor) EncryptChunk(chunk []byte, h *FileHeader, n uint64) ([]byte, error) {
	if len(chunk) < 1 || len(chunk) > MaxChunkLen {
		return nil, errChunkSize("chunk length out of range [1, 32768] on encrypt")
	}
	nonce, err := randomBytes(v1NonceLen)
	if err != nil {
		return nil, err
	}
	ct := make([]byte, len(chunk))
	cipher.NewCTR(c.block, nonce).XORKeyStream(ct, chunk)

	tag := c.chunkMAC(h.Nonce, n, nonce, ct)

	out := make([]byte, 0, v1NonceLen+len(ct)+v1MacLen)
	out = append(out, nonce...)
	out = append(out, ct...)
	out = append(out, tag...)
	return out, nil
}

func (c *v1Cryptor) DecryptChunk(enc []byte, h *FileHeader, n uint64) ([]byte, error) {
	if len(enc) < c.ChunkOverhead()+1 || len(enc) > c.MaxEncryptedChunkLen() {
		return nil, errChunkSize("encrypted chunk length out of range on decrypt")
	}
	nonce := enc[:v1NonceLen]
	ct := enc[v1NonceLen : len(enc)-v1MacLen]
	tag := enc[len(enc)-v1MacLen:]

	expected := c.chunkMAC(h.Nonce, n, nonce, ct)
	if !hmac.Equal(tag, expected) {
		return nil, errMacMismatch
	}

	plain := make([]byte, len(ct))
	cipher.NewCTR(c.block, nonce).XORKeyStream(plain, ct)
	return plain, nil
}

func (c *v1Cryptor) chunkMAC(headerNonce []byte, n uint64, nonce, ct []byte) []byte {
	mac := hmac.New(sha256.New, c.macKey)
	mac.Write(headerNonce)
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], n)
	mac.Write(idx[:])
	mac.Write(nonce)
	mac.Write(ct)
	return mac.Sum(nil)
}
