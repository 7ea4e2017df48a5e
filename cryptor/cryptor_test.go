package cryptor

import (
	"bytes"
	"testing"

	"github.com/ag0st/cryptovault/errs"
)

func newTestCryptor(t *testing.T, combo CipherCombo) FileCryptor {
	t.Helper()
	c, err := New(combo, keyOfByte(0x42))
	if err != nil {
		t.Fatalf("unexpected error constructing cryptor: %v", err)
	}
	return c
}

func bothCombos() []CipherCombo { return []CipherCombo{SivCtrMac, SivGcm} }

func TestHeaderRoundTrip(t *testing.T) {
	for _, combo := range bothCombos() {
		c := newTestCryptor(t, combo)
		h, err := c.NewHeader()
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", combo, err)
		}
		enc, err := c.EncryptHeader(h)
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", combo, err)
		}
		if len(enc) != c.EncryptedHeaderLen() {
			t.Fatalf("[%s] expected encrypted header length %d, got %d", combo, c.EncryptedHeaderLen(), len(enc))
		}
		back, err := c.DecryptHeader(enc)
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", combo, err)
		}
		if !bytes.Equal(back.Nonce, h.Nonce) || back.Payload != h.Payload {
			t.Fatalf("[%s] round trip did not recover original header", combo)
		}
	}
}

func TestHeaderBitFlipFailsAuthentication(t *testing.T) {
	for _, combo := range bothCombos() {
		c := newTestCryptor(t, combo)
		h, err := c.NewHeader()
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", combo, err)
		}
		enc, err := c.EncryptHeader(h)
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", combo, err)
		}
		enc[len(enc)-1] ^= 0x01
		if _, err := c.DecryptHeader(enc); errs.KindOf(err) != errs.KindMacMismatch {
			t.Fatalf("[%s] expected MacMismatch after bit flip, got %v", combo, err)
		}
	}
}

func TestChunkRoundTripAcrossSizes(t *testing.T) {
	for _, combo := range bothCombos() {
		c := newTestCryptor(t, combo)
		h, err := c.NewHeader()
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", combo, err)
		}
		for _, size := range []int{1, 2, 100, MaxChunkLen - 1, MaxChunkLen} {
			plain := bytes.Repeat([]byte{0xAB}, size)
			enc, err := c.EncryptChunk(plain, h, 7)
			if err != nil {
				t.Fatalf("[%s size=%d] unexpected error: %v", combo, size, err)
			}
			if len(enc) > c.MaxEncryptedChunkLen() {
				t.Fatalf("[%s size=%d] encrypted chunk exceeds max length", combo, size)
			}
			back, err := c.DecryptChunk(enc, h, 7)
			if err != nil {
				t.Fatalf("[%s size=%d] unexpected error: %v", combo, size, err)
			}
			if !bytes.Equal(back, plain) {
				t.Fatalf("[%s size=%d] round trip mismatch", combo, size)
			}
		}
	}
}

func TestChunkWrongIndexFailsAuthentication(t *testing.T) {
	for _, combo := range bothCombos() {
		c := newTestCryptor(t, combo)
		h, err := c.NewHeader()
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", combo, err)
		}
		enc, err := c.EncryptChunk([]byte("payload"), h, 1)
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", combo, err)
		}
		if _, err := c.DecryptChunk(enc, h, 2); errs.KindOf(err) != errs.KindMacMismatch {
			t.Fatalf("[%s] expected MacMismatch for wrong chunk index, got %v", combo, err)
		}
	}
}

func TestChunkBitFlipFailsAuthentication(t *testing.T) {
	for _, combo := range bothCombos() {
		c := newTestCryptor(t, combo)
		h, err := c.NewHeader()
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", combo, err)
		}
		enc, err := c.EncryptChunk([]byte("payload"), h, 1)
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", combo, err)
		}
		enc[0] ^= 0x01
		if _, err := c.DecryptChunk(enc, h, 1); errs.KindOf(err) != errs.KindMacMismatch {
			t.Fatalf("[%s] expected MacMismatch after bit flip, got %v", combo, err)
		}
	}
}

func TestEncryptChunkRejectsOutOfRangeSize(t *testing.T) {
	for _, combo := range bothCombos() {
		c := newTestCryptor(t, combo)
		h, err := c.NewHeader()
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", combo, err)
		}
		if _, err := c.EncryptChunk(nil, h, 0); errs.KindOf(err) != errs.KindInvalidChunkSize {
			t.Fatalf("[%s] expected InvalidChunkSize for empty chunk, got %v", combo, err)
		}
		oversize := make([]byte, MaxChunkLen+1)
		if _, err := c.EncryptChunk(oversize, h, 0); errs.KindOf(err) != errs.KindInvalidChunkSize {
			t.Fatalf("[%s] expected InvalidChunkSize for oversized chunk, got %v", combo, err)
		}
	}
}

func TestDecryptChunkRejectsOutOfRangeSize(t *testing.T) {
	for _, combo := range bothCombos() {
		c := newTestCryptor(t, combo)
		h, err := c.NewHeader()
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", combo, err)
		}
		tooShort := make([]byte, c.ChunkOverhead())
		if _, err := c.DecryptChunk(tooShort, h, 0); errs.KindOf(err) != errs.KindInvalidChunkSize {
			t.Fatalf("[%s] expected InvalidChunkSize for too-short chunk, got %v", combo, err)
		}
		tooLong := make([]byte, c.MaxEncryptedChunkLen()+1)
		if _, err := c.DecryptChunk(tooLong, h, 0); errs.KindOf(err) != errs.KindInvalidChunkSize {
			t.Fatalf("[%s] expected InvalidChunkSize for too-long chunk, got %v", combo, err)
		}
	}
}

func TestNameEncryptDecryptInvariant(t *testing.T) {
	for _, combo := range bothCombos() {
		c := newTestCryptor(t, combo)
		enc, err := c.EncryptName("leaf-name.txt", "parent-dir-id")
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", combo, err)
		}
		back, err := c.DecryptName(enc, "parent-dir-id")
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", combo, err)
		}
		if back != "leaf-name.txt" {
			t.Fatalf("[%s] round trip mismatch: got %q", combo, back)
		}
	}
}

func TestHashDirIDDeterministicAndWellFormed(t *testing.T) {
	for _, combo := range bothCombos() {
		c := newTestCryptor(t, combo)
		a, err := c.HashDirID("some-dir-id")
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", combo, err)
		}
		b, err := c.HashDirID("some-dir-id")
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", combo, err)
		}
		if a != b {
			t.Fatalf("[%s] expected deterministic hash, got %q then %q", combo, a, b)
		}
		if len(a) != 32 {
			t.Fatalf("[%s] expected hash length 32, got %d", combo, len(a))
		}
		for _, r := range a {
			if r < '0' || r > 'Z' || (r > '9' && r < 'A') {
				t.Fatalf("[%s] expected uppercase base32 alphabet, got %q", combo, a)
			}
		}
	}
}

func TestNewRejectsUnknownCombo(t *testing.T) {
	if _, err := New(CipherCombo("bogus"), keyOfByte(0x01)); errs.KindOf(err) != errs.KindUnsupportedVersion {
		t.Fatalf("expected UnsupportedVersion for unknown combo, got %v", err)
	}
}
