package vfsio

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/ag0st/cryptovault/cryptor"
	"github.com/ag0st/cryptovault/errs"
	"github.com/ag0st/cryptovault/masterkey"
)

func testKey() *masterkey.MasterKey {
	enc := bytes.Repeat([]byte{0x11}, masterkey.KeySize)
	mac := bytes.Repeat([]byte{0x22}, masterkey.KeySize)
	k, err := masterkey.New(enc, mac)
	if err != nil {
		panic(err)
	}
	return k
}

func readAll(t *testing.T, s *EncryptedStream) []byte {
	t.Helper()
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	buf := make([]byte, 4096)
	var out []byte
	for {
		n, err := s.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if n == 0 {
			break
		}
	}
	return out
}

// TestVectorS6WriteReadRoundTrip pins the literal scenario from the spec: a
// stream opened on an empty backing buffer, written once in full, rewound,
// and read back, across chunk-boundary payload sizes.
func TestVectorS6WriteReadRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 32767, 32768, 32769, 10*32768 + 7}
	for _, combo := range []cryptor.CipherCombo{cryptor.SivCtrMac, cryptor.SivGcm} {
		cr, err := cryptor.New(combo, testKey())
		if err != nil {
			t.Fatalf("[%s] unexpected error: %v", combo, err)
		}
		for _, size := range sizes {
			payload := make([]byte, size)
			if _, err := rand.Read(payload); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			f := newMemFile()
			s, err := Open(f, cr, true)
			if err != nil {
				t.Fatalf("[%s size=%d] open failed: %v", combo, size, err)
			}

			n, err := s.Write(payload)
			if err != nil {
				t.Fatalf("[%s size=%d] write failed: %v", combo, size, err)
			}
			if n != size {
				t.Fatalf("[%s size=%d] expected %d bytes written, got %d", combo, size, size, n)
			}

			got := readAll(t, s)
			if !bytes.Equal(got, payload) {
				t.Fatalf("[%s size=%d] round trip mismatch: got %d bytes, want %d bytes", combo, size, len(got), len(payload))
			}

			cleartextLen, err := s.CleartextSize()
			if err != nil {
				t.Fatalf("[%s size=%d] unexpected error: %v", combo, size, err)
			}
			if cleartextLen != int64(size) {
				t.Fatalf("[%s size=%d] expected cleartext size %d, got %d", combo, size, size, cleartextLen)
			}

			if err := s.Close(); err != nil {
				t.Fatalf("[%s size=%d] close failed: %v", combo, size, err)
			}
		}
	}
}

func TestSeekClamping(t *testing.T) {
	cr, err := cryptor.New(cryptor.SivGcm, testKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := newMemFile()
	s, err := Open(f, cr, true)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	payload := bytes.Repeat([]byte{0x5A}, 100)
	if _, err := s.Write(payload); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	pos, err := s.Seek(0, io.SeekEnd)
	if err != nil || pos != 100 {
		t.Fatalf("expected Seek(End(0))=100, got %d err=%v", pos, err)
	}
	pos, err = s.Seek(1000, io.SeekStart)
	if err != nil || pos != 100 {
		t.Fatalf("expected Seek(Start(len+k)) to clamp to len=100, got %d err=%v", pos, err)
	}
	pos, err = s.Seek(-1000, io.SeekCurrent)
	if err != nil || pos != 0 {
		t.Fatalf("expected Seek(Current) to saturate at 0, got %d err=%v", pos, err)
	}
	pos, err = s.Seek(-10, io.SeekEnd)
	if err != nil || pos != 90 {
		t.Fatalf("expected Seek(End(-10))=90, got %d err=%v", pos, err)
	}
}

func TestPartialChunkOverwrite(t *testing.T) {
	cr, err := cryptor.New(cryptor.SivCtrMac, testKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := newMemFile()
	s, err := Open(f, cr, true)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	original := bytes.Repeat([]byte{0x01}, 100)
	if _, err := s.Write(original); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// Overwrite a middle slice in place, within the same chunk.
	if _, err := s.Seek(10, io.SeekStart); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	patch := bytes.Repeat([]byte{0x02}, 5)
	if _, err := s.Write(patch); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got := readAll(t, s)
	want := append([]byte{}, original...)
	copy(want[10:15], patch)
	if !bytes.Equal(got, want) {
		t.Fatalf("partial overwrite mismatch:\n got: %x\nwant: %x", got, want)
	}
}

func TestMacMismatchOnCorruptedChunk(t *testing.T) {
	cr, err := cryptor.New(cryptor.SivGcm, testKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := newMemFile()
	s, err := Open(f, cr, true)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := s.Write([]byte("hello, vault")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	f.data[len(f.data)-1] ^= 0x01

	s2, err := Open(f, cr, false)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	buf := make([]byte, 32)
	if _, err := s2.Read(buf); errs.KindOf(err) != errs.KindMacMismatch {
		t.Fatalf("expected MacMismatch reading a corrupted chunk, got %v", err)
	}
}

func TestTruncateShrinksAndRewritesTailChunk(t *testing.T) {
	cr, err := cryptor.New(cryptor.SivGcm, testKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := newMemFile()
	s, err := Open(f, cr, true)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	payload := bytes.Repeat([]byte{0x09}, 300)
	if _, err := s.Write(payload); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if err := s.Truncate(123); err != nil {
		t.Fatalf("truncate failed: %v", err)
	}
	size, err := s.CleartextSize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != 123 {
		t.Fatalf("expected cleartext size 123 after truncate, got %d", size)
	}
	got := readAll(t, s)
	if !bytes.Equal(got, payload[:123]) {
		t.Fatalf("truncated content mismatch:\n got: %x\nwant: %x", got, payload[:123])
	}
}
