package vault

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ag0st/cryptovault/errs"
)

// ciphertextRoot is the vault-relative subtree that holds all bucket data
// (the `d/` directory per the on-disk layout). Only this subtree is ever
// mirrored: the vault.cryptomator claims file carries key material and
// stays local.
const ciphertextRoot = "d"

// PushTree walks vaultRoot's ciphertext subtree and pushes every blob to
// bucket, keyed by its path relative to vaultRoot so a PullTree into an
// empty directory reconstructs the same layout.
func (c *Connection) PushTree(ctx context.Context, vaultRoot string, chunkSize uint64, bucket string) error {
	mirrorLog.WithField("bucket", bucket).Info("mirror sync started")
	base := filepath.Join(vaultRoot, ciphertextRoot)
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(vaultRoot, path)
		if err != nil {
			return errs.WrapKind(err, errs.KindIo, "cannot compute relative object key")
		}
		f, err := os.Open(path)
		if err != nil {
			return errs.WrapKind(err, errs.KindIo, "cannot open blob for mirroring")
		}
		defer f.Close()
		_, err = c.PushBlob(ctx, f, chunkSize, bucket, filepath.ToSlash(rel))
		return err
	})
	if err != nil {
		mirrorLog.WithField("bucket", bucket).WithError(err).Warn("mirror sync failed")
		return err
	}
	mirrorLog.WithField("bucket", bucket).Info("mirror sync finished")
	return nil
}

// PullTree downloads every object under bucket into vaultRoot, recreating
// the relative path each object key encodes.
func (c *Connection) PullTree(ctx context.Context, bucket, vaultRoot string) error {
	objects, err := c.ListBlobs(ctx, bucket)
	if err != nil {
		return err
	}
	for _, ob := range objects {
		rc, err := c.PullBlob(ctx, bucket, ob.Key)
		if err != nil {
			return err
		}
		if err := writeBlobToDisk(rc, filepath.Join(vaultRoot, filepath.FromSlash(ob.Key))); err != nil {
			return err
		}
	}
	return nil
}

func writeBlobToDisk(rc io.ReadCloser, dest string) error {
	defer rc.Close()
	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return errs.WrapKind(err, errs.KindIo, "cannot create destination directory")
	}
	f, err := os.Create(dest)
	if err != nil {
		return errs.WrapKind(err, errs.KindIo, "cannot create destination file")
	}
	defer f.Close()
	if _, err := io.Copy(f, rc); err != nil {
		return errs.WrapKind(err, errs.KindIo, "cannot write mirrored blob to disk")
	}
	return nil
}
