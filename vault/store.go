// Package vault mirrors a vault's already-encrypted blobs to an
// S3-compatible bucket for off-site backup. It never sees cleartext: the
// bytes it pushes and pulls are exactly the .c9r/.c9s ciphertext the
// resolver already produced, so this package carries no cipher logic of
// its own.
package vault

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"github.com/ag0st/cryptovault/errs"
)

var mirrorLog = logrus.WithField("component", "vault/mirror")

// ErrWrongChunkSize is returned when a chunk size outside MinIO's
// multipart-upload limits is requested.
var ErrWrongChunkSize = errs.NewKind(errs.KindIo, "wrong chunk size, must be 5<<20 <= chunkSize <= 5<<30 or 0")

// Client is the subset of minio.Client this package needs, exposed as an
// interface for dependency injection in tests.
type Client interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) (err error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions,
	) (info minio.UploadInfo, err error)
}

// Core is the subset of minio.Core this package needs for multipart
// uploads of large ciphertext blobs, exposed as an interface for
// dependency injection in tests.
type Core interface {
	PutObjectPart(ctx context.Context, bucket, object, uploadID string, partID int,
		data io.Reader, size int64, opts minio.PutObjectPartOptions,
	) (minio.ObjectPart, error)
	NewMultipartUpload(ctx context.Context, bucket, object string, opts minio.PutObjectOptions) (uploadID string, err error)
	CompleteMultipartUpload(ctx context.Context, bucket, object, uploadID string, parts []minio.CompletePart, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	AbortMultipartUpload(ctx context.Context, bucket, object, uploadID string) error
}

// Connection is the mirror backend's handle on the S3-compatible server.
type Connection struct {
	client Client
	core   Core
}

// Connect opens a connection to the mirror endpoint.
func Connect(endpoint, accessKey, secretKey string, useSSL bool) (*Connection, error) {
	core, err := minio.NewCore(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, errs.WrapKind(err, errs.KindIo, "failed to connect to mirror endpoint")
	}
	mirrorLog.WithField("endpoint", endpoint).Info("connected to mirror endpoint")
	return &Connection{core: core, client: core.Client}, nil
}

// PushBlob uploads r (a ciphertext blob already produced by the vault,
// e.g. an `.c9r` file's bytes) to bucket/objectName. chunkSize > 0 selects
// a multipart upload in chunkSize pieces, useful for large files; 0
// buffers the whole blob and uploads it in one request.
func (c *Connection) PushBlob(ctx context.Context, r io.Reader, chunkSize uint64, bucket, objectName string) (minio.UploadInfo, error) {
	if chunkSize != 0 && (chunkSize < 5<<20 || chunkSize > 5<<30) {
		return minio.UploadInfo{}, ErrWrongChunkSize
	}
	w := newBlobWriter(ctx, chunkSize, c, uploadConfig{bucketName: bucket, objectName: objectName, contentType: "application/octet-stream"})

	errc := make(chan error, 1)
	go func() {
		if chunkSize == 0 {
			_, err := io.Copy(w, r)
			errc <- err
			return
		}
		buf := make([]byte, chunkSize)
		for {
			n, err := io.ReadFull(r, buf)
			if n > 0 {
				if _, werr := w.Write(buf[:n]); werr != nil {
					errc <- werr
					return
				}
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				errc <- nil
				return
			}
			if err != nil {
				errc <- err
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		_ = w.Cancel()
		return minio.UploadInfo{}, ctx.Err()
	case err := <-errc:
		if err != nil {
			cancelErr := w.Cancel()
			return minio.UploadInfo{}, errs.WrapWithError(errs.WrapKind(err, errs.KindIo, "push failed"), errs.WrapKind(cancelErr, errs.KindIo, "cancel failed"))
		}
	}
	if err := w.Close(); err != nil {
		return minio.UploadInfo{}, errs.WrapKind(err, errs.KindIo, "close failed")
	}
	return w.WaitOnFinished()
}

// PullBlob returns a reader over bucket/objectName's raw ciphertext bytes.
// The caller is responsible for closing it.
func (c *Connection) PullBlob(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	obj, err := c.client.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, errs.WrapKind(err, errs.KindIo, "pull failed")
	}
	return obj, nil
}

// ListBlobs lists every object under bucket, without versioning.
func (c *Connection) ListBlobs(ctx context.Context, bucket string) (objects []minio.ObjectInfo, err error) {
	for ob := range c.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if ob.Err != nil {
			if ob.Err == ctx.Err() {
				return nil, ctx.Err()
			}
			err = ob.Err
			continue
		}
		objects = append(objects, ob)
	}
	return objects, err
}

// EnsureBucket creates bucket if it does not already exist.
func (c *Connection) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return errs.WrapKind(err, errs.KindIo, "bucket_exists failed")
	}
	if !exists {
		if err := c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return errs.WrapKind(err, errs.KindIo, "make_bucket failed")
		}
	}
	return nil
}
