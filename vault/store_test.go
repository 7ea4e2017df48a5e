package vault

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
)

func TestPushBlobBufferedAndChunked(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog, repeated to make it longer")
	for _, chunkSize := range []uint64{0, 5 << 20} {
		conn := newMockConnection(true)
		info, err := conn.PushBlob(context.Background(), bytes.NewReader(payload), chunkSize, "vault-mirror", "d/ab/cdef/x.c9r")
		if err != nil {
			t.Fatalf("chunkSize %d: push failed: %v", chunkSize, err)
		}
		if info.Key != "d/ab/cdef/x.c9r" {
			t.Fatalf("chunkSize %d: expected key to round-trip, got %q", chunkSize, info.Key)
		}
	}
}

func TestPushBlobRejectsInvalidChunkSize(t *testing.T) {
	conn := newMockConnection(true)
	_, err := conn.PushBlob(context.Background(), bytes.NewReader([]byte("x")), 1024, "bucket", "object")
	if err != ErrWrongChunkSize {
		t.Fatalf("expected ErrWrongChunkSize, got %v", err)
	}
}

func TestPullBlob(t *testing.T) {
	conn := newMockConnection(true)
	rc, err := conn.PullBlob(context.Background(), "vault-mirror", "d/ab/cdef/x.c9r")
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		t.Fatalf("unexpected error reading pulled blob: %v", err)
	}
}

func TestListBlobs(t *testing.T) {
	conn := newMockConnection(true)
	conn.client.(*clientMock).objects = []minio.ObjectInfo{
		{Key: "d/ab/cdef/x.c9r"},
		{Key: "d/ab/cdef/dirid.c9r"},
	}
	objects, err := conn.ListBlobs(context.Background(), "vault-mirror")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(objects))
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	conn := newMockConnection(false)
	if err := conn.EnsureBucket(context.Background(), "vault-mirror"); err != nil {
		t.Fatalf("ensure bucket failed: %v", err)
	}
	if !conn.client.(*clientMock).bucketExists {
		t.Fatal("expected bucket to be created")
	}
}

func TestEnsureBucketNoopWhenPresent(t *testing.T) {
	conn := newMockConnection(true)
	if err := conn.EnsureBucket(context.Background(), "vault-mirror"); err != nil {
		t.Fatalf("ensure bucket failed: %v", err)
	}
}
