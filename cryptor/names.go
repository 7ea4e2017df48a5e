package cryptor

import (
	"crypto/sha1"
	"encoding/base32"
	"encoding/base64"

	"github.com/miscreant/miscreant.go"
)

// nameCryptor implements HashDirID/EncryptName/DecryptName, shared by both
// cipher suites. Only the SIV key ordering and the base64 alphabet differ
// between v1 and siv-gcm; both are fixed at construction time.
type nameCryptor struct {
	siv *miscreant.Cipher
	b64 *base64.Encoding
}

func newNameCryptor(sivKey []byte, b64 *base64.Encoding) (*nameCryptor, error) {
	siv, err := miscreant.NewAESCMACSIV(sivKey)
	if err != nil {
		return nil, err
	}
	return &nameCryptor{siv: siv, b64: b64}, nil
}

func (n *nameCryptor) HashDirID(dirID string) (string, error) {
	ciphertext, err := n.siv.Seal(nil, []byte(dirID))
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(ciphertext)
	return base32.StdEncoding.EncodeToString(sum[:]), nil
}

func (n *nameCryptor) EncryptName(name, parentDirID string) (string, error) {
	ciphertext, err := n.siv.Seal(nil, []byte(name), []byte(parentDirID))
	if err != nil {
		return "", err
	}
	return n.b64.EncodeToString(ciphertext), nil
}

func (n *nameCryptor) DecryptName(enc, parentDirID string) (string, error) {
	raw, err := n.b64.DecodeString(enc)
	if err != nil {
		return "", errInvalidName
	}
	plaintext, err := n.siv.Open(nil, raw, []byte(parentDirID))
	if err != nil {
		return "", errInvalidName
	}
	return string(plaintext), nil
}
