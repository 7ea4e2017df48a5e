package vault

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

type uploadStatus int

const (
	inProgress uploadStatus = iota
	completed
	aborted
)

type multipartUpload struct {
	status      uploadStatus
	parts       []minio.CompletePart
	partCounter int
	object      string
	totalSize   int64
}

type coreMock struct {
	uploads map[string]*multipartUpload
}

func newCoreMock() *coreMock {
	return &coreMock{uploads: make(map[string]*multipartUpload)}
}

func (c *coreMock) NewMultipartUpload(ctx context.Context, bucket, object string, opts minio.PutObjectOptions) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	id := uuid.NewString()
	c.uploads[id] = &multipartUpload{status: inProgress, partCounter: 1, object: object}
	return id, nil
}

func (c *coreMock) PutObjectPart(ctx context.Context, bucket, object, uploadID string, partID int,
	data io.Reader, size int64, opts minio.PutObjectPartOptions,
) (minio.ObjectPart, error) {
	select {
	case <-ctx.Done():
		return minio.ObjectPart{}, ctx.Err()
	default:
	}
	mu, ok := c.uploads[uploadID]
	if !ok {
		return minio.ObjectPart{}, errors.New("upload does not exist")
	}
	if mu.status != inProgress {
		return minio.ObjectPart{}, errors.New("upload not in progress")
	}
	if mu.object != object {
		return minio.ObjectPart{}, errors.New("wrong object name")
	}
	if partID != mu.partCounter {
		return minio.ObjectPart{}, errors.New("parts must be uploaded in order")
	}
	d, err := io.ReadAll(data)
	if err != nil {
		return minio.ObjectPart{}, err
	}
	if int64(len(d)) != size {
		return minio.ObjectPart{}, errors.New("size mismatch")
	}
	mu.partCounter++
	mu.totalSize += size
	op := minio.ObjectPart{PartNumber: partID, ETag: uuid.NewString(), LastModified: time.Now(), Size: size}
	mu.parts = append(mu.parts, minio.CompletePart{PartNumber: op.PartNumber, ETag: op.ETag})
	return op, nil
}

func (c *coreMock) CompleteMultipartUpload(ctx context.Context, bucket, object, uploadID string, parts []minio.CompletePart, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	select {
	case <-ctx.Done():
		return minio.UploadInfo{}, ctx.Err()
	default:
	}
	mu, ok := c.uploads[uploadID]
	if !ok {
		return minio.UploadInfo{}, errors.New("upload does not exist")
	}
	if mu.status != inProgress {
		return minio.UploadInfo{}, errors.New("upload not in progress")
	}
	if len(parts) != len(mu.parts) {
		return minio.UploadInfo{}, errors.New("wrong number of parts")
	}
	mu.status = completed
	return minio.UploadInfo{Bucket: bucket, Key: object, ETag: uuid.NewString(), Size: mu.totalSize}, nil
}

func (c *coreMock) AbortMultipartUpload(ctx context.Context, bucket, object, uploadID string) error {
	mu, ok := c.uploads[uploadID]
	if !ok {
		return errors.New("upload does not exist")
	}
	if mu.status == completed {
		return errors.New("upload already completed")
	}
	mu.status = aborted
	return nil
}

type clientMock struct {
	bucketExists bool
	objects      []minio.ObjectInfo
	getErr       error
}

func (c *clientMock) ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	res := make(chan minio.ObjectInfo, len(c.objects))
	for _, ob := range c.objects {
		res <- ob
	}
	close(res)
	return res
}

func (c *clientMock) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return &minio.Object{}, nil
}

func (c *clientMock) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return c.bucketExists, nil
}

func (c *clientMock) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	if c.bucketExists {
		return errors.New("bucket already exists")
	}
	c.bucketExists = true
	return nil
}

func (c *clientMock) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
	opts minio.PutObjectOptions,
) (minio.UploadInfo, error) {
	if !c.bucketExists {
		return minio.UploadInfo{}, errors.New("bucket does not exist")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if int64(len(data)) != objectSize {
		return minio.UploadInfo{}, errors.New("wrong size")
	}
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, nil
}

func newMockConnection(bucketExists bool) *Connection {
	return &Connection{core: newCoreMock(), client: &clientMock{bucketExists: bucketExists}}
}
