// Package vaultfs composes a cryptor.FileCryptor and the vfsio encrypted
// stream into POSIX-like directory and file operations over a Cryptomator
// vault directory tree.
package vaultfs

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ag0st/cryptovault/cryptor"
	"github.com/ag0st/cryptovault/masterkey"
	"github.com/ag0st/cryptovault/vfsio"
)

// EncryptedFileSystem is the facade: every method resolves a cleartext
// path against the resolver and then either touches host metadata
// directly or opens an EncryptedStream over the resolved ciphertext.
type EncryptedFileSystem struct {
	res *resolver
	cr  cryptor.FileCryptor
	log *logrus.Entry
}

// Open validates the vault configuration (format, cipher combo,
// shortening_threshold) and builds the facade over root.
func Open(root string, cfg VaultConfig, key *masterkey.MasterKey) (*EncryptedFileSystem, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cr, err := cryptor.New(cfg.CipherCombo, key)
	if err != nil {
		return nil, err
	}
	res := newResolver(root, cr, cfg.ShorteningThreshold)
	rootBucket, err := res.bucketDir("")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(rootBucket, 0o700); err != nil {
		return nil, wrapFsErr(err, rootBucket)
	}
	log := logrus.WithField("component", "vaultfs")
	log.WithFields(logrus.Fields{"root": root, "cipher_combo": cfg.CipherCombo}).Info("vault opened")
	return &EncryptedFileSystem{
		res: res,
		cr:  cr,
		log: log,
	}, nil
}

// RootDir returns the facade's own root DirEntry, short-circuiting path
// resolution for "/".
func (fs *EncryptedFileSystem) RootDir(ctx context.Context) (DirEntry, error) {
	bucket, err := fs.res.bucketDir("")
	if err != nil {
		return DirEntry{}, err
	}
	info, err := os.Stat(bucket)
	if err != nil {
		return DirEntry{}, wrapFsErr(err, bucket)
	}
	return hostDirEntry("/", info), nil
}

// DirEntry resolves path and reports its kind, size, and host metadata.
// Size is the cleartext size for files, the host directory size for
// directories and symlinks.
func (fs *EncryptedFileSystem) DirEntry(ctx context.Context, path string) (DirEntry, error) {
	e, err := fs.res.resolve(path)
	if err != nil {
		return DirEntry{}, err
	}
	return fs.describe(filepath.Base(path), e)
}

func (fs *EncryptedFileSystem) describe(name string, e entry) (DirEntry, error) {
	switch e.kind {
	case KindFile:
		size, err := fs.fileSize(e.contentPath)
		if err != nil {
			return DirEntry{}, err
		}
		info, err := os.Stat(e.contentPath)
		if err != nil {
			return DirEntry{}, wrapFsErr(err, e.contentPath)
		}
		return DirEntry{Name: name, Kind: KindFile, Size: size, Mode: uint32(info.Mode().Perm()), ModTime: info.ModTime()}, nil
	case KindSymlink:
		info, err := os.Stat(filepath.Dir(e.contentPath))
		if err != nil {
			return DirEntry{}, wrapFsErr(err, e.contentPath)
		}
		return DirEntry{Name: name, Kind: KindSymlink, Size: info.Size(), Mode: uint32(info.Mode().Perm()), ModTime: info.ModTime()}, nil
	default:
		info, err := os.Stat(e.physicalPath())
		if err != nil {
			return DirEntry{}, wrapFsErr(err, e.physicalPath())
		}
		return hostDirEntry(name, info), nil
	}
}

func hostDirEntry(name string, info os.FileInfo) DirEntry {
	return DirEntry{Name: name, Kind: KindDirectory, Size: info.Size(), Mode: uint32(info.Mode().Perm()), ModTime: info.ModTime()}
}

func (fs *EncryptedFileSystem) fileSize(contentPath string) (int64, error) {
	f, err := vfsio.OpenExisting(contentPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	s, err := vfsio.Open(f, fs.cr, false)
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return s.CleartextSize()
}

// DirEntries lists path's children as a slice ordered by cleartext name —
// a Go map cannot preserve the ordering the contract calls for, so the
// ordered-mapping semantics are expressed as a sorted slice instead.
func (fs *EncryptedFileSystem) DirEntries(ctx context.Context, path string) ([]DirEntry, error) {
	e, err := fs.res.resolve(path)
	if err != nil {
		return nil, err
	}
	if e.kind != KindDirectory {
		return nil, errNotADirectory
	}
	children, err := fs.res.childEntries(e.dirID)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, 0, len(children))
	for _, name := range sortedNames(children) {
		d, err := fs.describe(name, children[name])
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Mkdir allocates a fresh directory ID, materializes its bucket, and
// registers the new child under parent/name.
func (fs *EncryptedFileSystem) Mkdir(ctx context.Context, parent, name string, perm os.FileMode) error {
	parentEntry, err := fs.res.resolve(parent)
	if err != nil {
		return err
	}
	if parentEntry.kind != KindDirectory {
		return errNotADirectory
	}

	leaf, err := fs.res.encodeLeaf(name, parentEntry.dirID)
	if err != nil {
		return err
	}
	parentBucket, err := fs.res.bucketDir(parentEntry.dirID)
	if err != nil {
		return err
	}
	if fileExists(filepath.Join(parentBucket, leaf.physicalName)) {
		return errAlreadyExists
	}

	childDirID := uuid.NewString()
	childBucket, err := fs.res.bucketDir(childDirID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(childBucket, perm|0o700); err != nil {
		return wrapFsErr(err, childBucket)
	}
	if err := fs.res.writeEncryptedString(filepath.Join(childBucket, dirIDBackupName), parentEntry.dirID); err != nil {
		return err
	}

	if err := fs.res.materializeLeafDir(parentBucket, leaf); err != nil {
		return err
	}
	dirFile := fs.redirectPath(parentBucket, leaf, dirRedirectName)
	if err := os.MkdirAll(filepath.Dir(dirFile), perm|0o700); err != nil {
		return wrapFsErr(err, dirFile)
	}
	if err := fs.res.writeEncryptedString(dirFile, childDirID); err != nil {
		return err
	}
	fs.log.WithField("path", filepath.Join(parent, name)).Debug("created directory")
	return nil
}

// redirectPath computes the path of a dir.c9r/symlink.c9r/contents.c9r
// file inside a leaf, whether that leaf was shortened or not: the leaf
// physical name is always a directory when carrying a redirect file.
func (fs *EncryptedFileSystem) redirectPath(bucket string, leaf encodedLeaf, file string) string {
	return filepath.Join(bucket, leaf.physicalName, file)
}

// Mknod creates an empty regular file ciphertext under parent/name. The
// file gets its FileHeader lazily, on first open.
func (fs *EncryptedFileSystem) Mknod(ctx context.Context, parent, name string, perm os.FileMode) error {
	parentEntry, err := fs.res.resolve(parent)
	if err != nil {
		return err
	}
	if parentEntry.kind != KindDirectory {
		return errNotADirectory
	}
	leaf, err := fs.res.encodeLeaf(name, parentEntry.dirID)
	if err != nil {
		return err
	}
	bucket, err := fs.res.bucketDir(parentEntry.dirID)
	if err != nil {
		return err
	}
	if fileExists(filepath.Join(bucket, leaf.physicalName)) {
		return errAlreadyExists
	}
	if leaf.shortened {
		if err := fs.res.materializeLeafDir(bucket, leaf); err != nil {
			return err
		}
		f, err := os.OpenFile(filepath.Join(bucket, leaf.physicalName, contentsName), os.O_RDWR|os.O_CREATE, perm)
		if err != nil {
			return wrapFsErr(err, leaf.physicalName)
		}
		return f.Close()
	}
	f, err := os.OpenFile(filepath.Join(bucket, leaf.physicalName), os.O_RDWR|os.O_CREATE, perm)
	if err != nil {
		return wrapFsErr(err, leaf.physicalName)
	}
	return f.Close()
}

// Symlink creates a symlink entry under parent/name whose decrypted
// content is the UTF-8 target.
func (fs *EncryptedFileSystem) Symlink(ctx context.Context, parent, name, target string) error {
	parentEntry, err := fs.res.resolve(parent)
	if err != nil {
		return err
	}
	if parentEntry.kind != KindDirectory {
		return errNotADirectory
	}
	leaf, err := fs.res.encodeLeaf(name, parentEntry.dirID)
	if err != nil {
		return err
	}
	bucket, err := fs.res.bucketDir(parentEntry.dirID)
	if err != nil {
		return err
	}
	if fileExists(filepath.Join(bucket, leaf.physicalName)) {
		return errAlreadyExists
	}
	if err := fs.res.materializeLeafDir(bucket, leaf); err != nil {
		return err
	}
	linkFile := fs.redirectPath(bucket, leaf, symlinkName)
	if err := os.MkdirAll(filepath.Dir(linkFile), 0o700); err != nil {
		return wrapFsErr(err, linkFile)
	}
	return fs.res.writeEncryptedString(linkFile, target)
}

// LinkTarget reads and decrypts a symlink's target.
func (fs *EncryptedFileSystem) LinkTarget(ctx context.Context, path string) (string, error) {
	e, err := fs.res.resolve(path)
	if err != nil {
		return "", err
	}
	if e.kind != KindSymlink {
		return "", errNotASymlink
	}
	return fs.res.readEncryptedString(e.contentPath)
}

// Unlink removes a regular file or symlink entry.
func (fs *EncryptedFileSystem) Unlink(ctx context.Context, path string) error {
	e, err := fs.res.resolve(path)
	if err != nil {
		return err
	}
	if e.kind == KindDirectory {
		return errNotADirectory
	}
	if err := os.RemoveAll(e.physicalPath()); err != nil {
		return wrapFsErr(err, e.physicalPath())
	}
	return nil
}

// Rmdir removes an empty directory entry: its bucket must contain nothing
// but dirid.c9r.
func (fs *EncryptedFileSystem) Rmdir(ctx context.Context, path string) error {
	e, err := fs.res.resolve(path)
	if err != nil {
		return err
	}
	if e.kind != KindDirectory {
		return errNotADirectory
	}
	bucket, err := fs.res.bucketDir(e.dirID)
	if err != nil {
		return err
	}
	hosts, err := os.ReadDir(bucket)
	if err != nil {
		return wrapFsErr(err, bucket)
	}
	for _, h := range hosts {
		if h.Name() != dirIDBackupName {
			return errNotEmpty
		}
	}
	if err := os.RemoveAll(bucket); err != nil {
		return wrapFsErr(err, bucket)
	}
	return os.RemoveAll(e.physicalPath())
}

// Rename re-encrypts the leaf name under its (possibly new) parent DirId
// and moves the physical entry. Directories keep their DirId and bucket,
// so descendants never need to be rewritten.
func (fs *EncryptedFileSystem) Rename(ctx context.Context, oldParent, oldName, newParent, newName string) error {
	oldParentEntry, err := fs.res.resolve(oldParent)
	if err != nil {
		return err
	}
	newParentEntry, err := fs.res.resolve(newParent)
	if err != nil {
		return err
	}
	if oldParentEntry.kind != KindDirectory || newParentEntry.kind != KindDirectory {
		return errNotADirectory
	}

	oldLeaf, err := fs.res.encodeLeaf(oldName, oldParentEntry.dirID)
	if err != nil {
		return err
	}
	newLeaf, err := fs.res.encodeLeaf(newName, newParentEntry.dirID)
	if err != nil {
		return err
	}
	oldBucket, err := fs.res.bucketDir(oldParentEntry.dirID)
	if err != nil {
		return err
	}
	newBucket, err := fs.res.bucketDir(newParentEntry.dirID)
	if err != nil {
		return err
	}
	if fileExists(filepath.Join(newBucket, newLeaf.physicalName)) {
		return errAlreadyExists
	}

	oldEntry, err := fs.res.classify(oldBucket, oldLeaf.physicalName)
	if err != nil {
		return err
	}
	oldPath := filepath.Join(oldBucket, oldLeaf.physicalName)
	newPath := filepath.Join(newBucket, newLeaf.physicalName)
	if err := os.MkdirAll(newBucket, 0o700); err != nil {
		return wrapFsErr(err, newBucket)
	}

	// Directories and symlinks are always directory-shaped on disk,
	// shortened or not (dir.c9r/symlink.c9r need a containing directory
	// either way), so a plain rename always suffices; only the regular
	// file case changes physical shape across the shortening boundary
	// (plain file <-> directory holding contents.c9r).
	nameC9sWritten := false
	switch {
	case oldEntry.kind != KindFile || oldLeaf.shortened == newLeaf.shortened:
		if err := os.Rename(oldPath, newPath); err != nil {
			return wrapFsErr(err, oldPath)
		}
	case !oldLeaf.shortened && newLeaf.shortened:
		if err := fs.res.materializeLeafDir(newBucket, newLeaf); err != nil {
			return err
		}
		if err := os.Rename(oldPath, filepath.Join(newPath, contentsName)); err != nil {
			return wrapFsErr(err, oldPath)
		}
		nameC9sWritten = true
	default:
		if err := os.Rename(filepath.Join(oldPath, contentsName), newPath); err != nil {
			return wrapFsErr(err, oldPath)
		}
		if err := os.RemoveAll(oldPath); err != nil {
			return wrapFsErr(err, oldPath)
		}
	}

	if newLeaf.shortened && !nameC9sWritten {
		if err := os.WriteFile(filepath.Join(newPath, shortNameFile), []byte(newLeaf.encName), 0o600); err != nil {
			return wrapFsErr(err, newPath)
		}
	}
	return nil
}

// SetPermissions delegates to the host filesystem on the resolved
// physical path.
func (fs *EncryptedFileSystem) SetPermissions(ctx context.Context, path string, perm os.FileMode) error {
	e, err := fs.res.resolve(path)
	if err != nil {
		return err
	}
	target := e.physicalPath()
	if e.kind == KindFile || e.kind == KindSymlink {
		target = e.contentPath
	}
	if err := os.Chmod(target, perm); err != nil {
		return wrapFsErr(err, target)
	}
	return nil
}

// SetTimes delegates to the host filesystem on the resolved physical path.
func (fs *EncryptedFileSystem) SetTimes(ctx context.Context, path string, atime, mtime time.Time) error {
	e, err := fs.res.resolve(path)
	if err != nil {
		return err
	}
	target := e.physicalPath()
	if e.kind == KindFile || e.kind == KindSymlink {
		target = e.contentPath
	}
	if err := os.Chtimes(target, atime, mtime); err != nil {
		return wrapFsErr(err, target)
	}
	return nil
}
