package vault

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"

	"github.com/ag0st/cryptovault/errs"
)

// ErrWriterClosed is returned when writing to a writer that already had
// Close or Cancel called on it.
var ErrWriterClosed = errs.NewKind(errs.KindIo, "writer closed")

// blobWriterCloser is an io.WriteCloser for a single blob upload, plus the
// hooks PushBlob needs to wait for the background upload to settle or tear
// it down on context cancellation.
type blobWriterCloser interface {
	io.Writer
	io.Closer
	// WaitOnFinished blocks until the upload started by Close completes.
	WaitOnFinished() (minio.UploadInfo, error)
	// Cancel aborts the upload in progress.
	Cancel() error
}

// uploadConfig carries the destination and content type for a single blob
// upload, independent of whether it ends up chunked or buffered.
type uploadConfig struct {
	bucketName  string
	objectName  string
	contentType string
}

// uploadFinished carries the result of a background upload. The error must
// always be checked first by whoever reads from the channel.
type uploadFinished struct {
	info minio.UploadInfo
	err  error
}

// newBlobWriter picks the multipart-chunked writer when chunkSize > 0, and
// the buffer-then-upload writer otherwise.
func newBlobWriter(ctx context.Context, chunkSize uint64, conn *Connection, config uploadConfig) blobWriterCloser {
	if chunkSize > 0 {
		return newChunkBlobWriter(ctx, chunkSize, conn, config)
	}
	return newAutoBlobWriter(ctx, conn, config)
}

// chunkBlobWriter uploads each Write as one part of a MinIO multipart
// upload. Every Write must be at most chunkSize bytes, as produced by
// PushBlob's chunked copy loop.
type chunkBlobWriter struct {
	bucketName  string
	objectName  string
	contentType string
	parts       []minio.CompletePart
	cnt         int
	uploadID    string
	started     bool
	isClosed    bool
	ctx         context.Context
	fchan       chan uploadFinished
	conn        *Connection
}

func newChunkBlobWriter(ctx context.Context, chunkSize uint64, conn *Connection, config uploadConfig) blobWriterCloser {
	return &chunkBlobWriter{
		bucketName:  config.bucketName,
		objectName:  config.objectName,
		contentType: config.contentType,
		ctx:         ctx,
		cnt:         1, // MinIO part numbers start at 1
		fchan:       make(chan uploadFinished, 1),
		conn:        conn,
	}
}

func (w *chunkBlobWriter) Write(p []byte) (int, error) {
	if w.isClosed {
		return 0, ErrWriterClosed
	}
	var err error
	if !w.started {
		w.uploadID, err = w.conn.core.NewMultipartUpload(w.ctx, w.bucketName, w.objectName, minio.PutObjectOptions{ContentType: w.contentType})
		if err != nil {
			return 0, err
		}
		w.started = true
	}
	select {
	case <-w.ctx.Done():
		_ = w.Cancel()
		return 0, w.ctx.Err()
	default:
	}
	op, err := w.conn.core.PutObjectPart(w.ctx, w.bucketName, w.objectName, w.uploadID, w.cnt, bytes.NewReader(p), int64(len(p)), minio.PutObjectPartOptions{})
	if err != nil {
		return 0, err
	}
	w.parts = append(w.parts, minio.CompletePart{
		PartNumber:     op.PartNumber,
		ETag:           op.ETag,
		ChecksumCRC32:  op.ChecksumCRC32,
		ChecksumCRC32C: op.ChecksumCRC32C,
		ChecksumSHA1:   op.ChecksumSHA1,
		ChecksumSHA256: op.ChecksumSHA256,
	})
	w.cnt++
	return len(p), nil
}

func (w *chunkBlobWriter) Close() error {
	w.isClosed = true
	go func() {
		info, err := w.conn.core.CompleteMultipartUpload(w.ctx, w.bucketName, w.objectName, w.uploadID, w.parts, minio.PutObjectOptions{})
		w.fchan <- uploadFinished{info, err}
	}()
	return nil
}

func (w *chunkBlobWriter) WaitOnFinished() (minio.UploadInfo, error) {
	res := <-w.fchan
	return res.info, res.err
}

func (w *chunkBlobWriter) Cancel() error {
	w.isClosed = true
	if !w.started {
		return nil
	}
	return w.conn.core.AbortMultipartUpload(context.Background(), w.bucketName, w.objectName, w.uploadID)
}

// autoBlobWriter buffers every Write in memory and uploads it as a single
// PutObject call on Close. Used for small blobs (tiny files, dirid.c9r,
// dir.c9r, symlink.c9r) where a multipart upload would be overkill.
type autoBlobWriter struct {
	bucketName  string
	objectName  string
	contentType string
	isClosed    bool
	ctx         context.Context
	fchan       chan uploadFinished
	conn        *Connection
	buf         []byte
}

func newAutoBlobWriter(ctx context.Context, conn *Connection, config uploadConfig) blobWriterCloser {
	return &autoBlobWriter{
		bucketName:  config.bucketName,
		objectName:  config.objectName,
		contentType: config.contentType,
		ctx:         ctx,
		fchan:       make(chan uploadFinished, 1),
		conn:        conn,
	}
}

func (w *autoBlobWriter) Write(p []byte) (int, error) {
	if w.isClosed {
		return 0, ErrWriterClosed
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *autoBlobWriter) WaitOnFinished() (minio.UploadInfo, error) {
	res := <-w.fchan
	return res.info, res.err
}

func (w *autoBlobWriter) Cancel() error {
	w.isClosed = true
	return nil
}

func (w *autoBlobWriter) Close() error {
	w.isClosed = true
	info, err := w.conn.client.PutObject(w.ctx, w.bucketName, w.objectName, bytes.NewReader(w.buf), int64(len(w.buf)), minio.PutObjectOptions{
		ContentType:      w.contentType,
		PartSize:         uint64(len(w.buf)),
		DisableMultipart: true,
	})
	w.fchan <- uploadFinished{info, err}
	return err
}
