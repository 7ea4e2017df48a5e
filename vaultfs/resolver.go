package vaultfs

import (
	"crypto/sha1"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ag0st/cryptovault/cryptor"
	"github.com/ag0st/cryptovault/errs"
	"github.com/ag0st/cryptovault/vfsio"
)

const (
	dirIDBackupName = "dirid.c9r"
	dirRedirectName = "dir.c9r"
	symlinkName     = "symlink.c9r"
	contentsName    = "contents.c9r"
	shortNameFile   = "name.c9s"
)

// resolver turns cleartext vault paths into physical filesystem locations,
// mirroring the bucket-hashed, optionally-shortened on-disk layout. It owns
// no open streams; callers open the returned ciphertext path themselves.
type resolver struct {
	root                string
	cr                  cryptor.FileCryptor
	shorteningThreshold int
}

func newResolver(root string, cr cryptor.FileCryptor, shorteningThreshold int) *resolver {
	return &resolver{root: root, cr: cr, shorteningThreshold: shorteningThreshold}
}

// bucketDir returns the `d/<XX>/<YYYY...>` directory holding dirID's
// contents.
func (r *resolver) bucketDir(dirID string) (string, error) {
	hash, err := r.cr.HashDirID(dirID)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.root, "d", hash[:2], hash[2:]), nil
}

// encodedLeaf computes the on-disk name for a cleartext leaf under
// parentDirID: the plain `<EncName>.c9r` form, or, once shortened, the
// `<sha1(EncName)>.c9s` form plus the raw EncName bytes to persist in
// name.c9s.
type encodedLeaf struct {
	physicalName string // "<EncName>.c9r" or "<hash>.c9s"
	shortened    bool
	encName      string // always the bare encrypted name, no extension
}

func (r *resolver) encodeLeaf(name, parentDirID string) (encodedLeaf, error) {
	encName, err := r.cr.EncryptName(name, parentDirID)
	if err != nil {
		return encodedLeaf{}, err
	}
	full := encName + ".c9r"
	if len(full) <= r.shorteningThreshold {
		return encodedLeaf{physicalName: full, encName: encName}, nil
	}
	sum := sha1.Sum([]byte(encName))
	short := base64.URLEncoding.EncodeToString(sum[:]) + ".c9s"
	return encodedLeaf{physicalName: short, shortened: true, encName: encName}, nil
}

// materializeLeafDir creates the `.c9s` sidecar directory and its name.c9s
// file for a newly shortened leaf. No-op for non-shortened leaves.
func (r *resolver) materializeLeafDir(bucket string, leaf encodedLeaf) error {
	if !leaf.shortened {
		return nil
	}
	dir := filepath.Join(bucket, leaf.physicalName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return wrapFsErr(err, dir)
	}
	return os.WriteFile(filepath.Join(dir, shortNameFile), []byte(leaf.encName), 0o600)
}

// entry describes a fully resolved on-disk location for a cleartext path.
type entry struct {
	kind Kind
	// base is the directory holding the `.c9r`/`.c9s` entry (i.e. the
	// parent bucket), leafName its physical name within base.
	base     string
	leafName string
	// contentPath is what to open for file/symlink content: the plain
	// .c9r file itself, or <leaf>/contents.c9r, or <leaf>/symlink.c9r.
	contentPath string
	// dirID is set when kind == KindDirectory: the child DirId read from
	// dir.c9r.
	dirID string
}

func (e *entry) physicalPath() string { return filepath.Join(e.base, e.leafName) }

// classify inspects an already-located `<EncName>.c9r` or `<hash>.c9s`
// physical path and determines whether it is a regular file, or a
// directory holding one of dir.c9r/symlink.c9r/contents.c9r.
func (r *resolver) classify(base, leafName string) (entry, error) {
	full := filepath.Join(base, leafName)
	info, err := os.Stat(full)
	if err != nil {
		return entry{}, wrapFsErr(err, full)
	}
	if !info.IsDir() {
		return entry{kind: KindFile, base: base, leafName: leafName, contentPath: full}, nil
	}
	switch {
	case fileExists(filepath.Join(full, dirRedirectName)):
		dirID, err := r.readEncryptedString(filepath.Join(full, dirRedirectName))
		if err != nil {
			return entry{}, err
		}
		return entry{kind: KindDirectory, base: base, leafName: leafName, dirID: dirID}, nil
	case fileExists(filepath.Join(full, symlinkName)):
		return entry{kind: KindSymlink, base: base, leafName: leafName, contentPath: filepath.Join(full, symlinkName)}, nil
	case fileExists(filepath.Join(full, contentsName)):
		return entry{kind: KindFile, base: base, leafName: leafName, contentPath: filepath.Join(full, contentsName)}, nil
	default:
		return entry{}, errNotFound
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// resolveChild resolves one path segment, name, living under parentDirID,
// and reports the physical bucket/leaf/entry for it.
func (r *resolver) resolveChild(parentDirID, name string) (entry, error) {
	bucket, err := r.bucketDir(parentDirID)
	if err != nil {
		return entry{}, err
	}
	leaf, err := r.encodeLeaf(name, parentDirID)
	if err != nil {
		return entry{}, err
	}
	return r.classify(bucket, leaf.physicalName)
}

// resolve walks cleartext path p = /s1/.../sk from the root DirId "",
// returning the resolved entry for the final segment. p == "/" or ""
// resolves to the root directory itself.
func (r *resolver) resolve(p string) (entry, error) {
	segs := splitPath(p)
	if len(segs) == 0 {
		return r.rootEntry()
	}
	dirID := ""
	var e entry
	for i, seg := range segs {
		var err error
		e, err = r.resolveChild(dirID, seg)
		if err != nil {
			return entry{}, err
		}
		if i < len(segs)-1 {
			if e.kind != KindDirectory {
				return entry{}, errNotADirectory
			}
			dirID = e.dirID
		}
	}
	return e, nil
}

func (r *resolver) rootEntry() (entry, error) {
	bucket, err := r.bucketDir("")
	if err != nil {
		return entry{}, err
	}
	return entry{kind: KindDirectory, base: bucket, dirID: ""}, nil
}

// childEntries lists and classifies every child of the directory
// identified by dirID, keyed by decrypted cleartext name. The map carries
// no order; sortedNames gives the cleartext-name order.
func (r *resolver) childEntries(dirID string) (map[string]entry, error) {
	bucket, err := r.bucketDir(dirID)
	if err != nil {
		return nil, err
	}
	hosts, err := os.ReadDir(bucket)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]entry{}, nil
		}
		return nil, wrapFsErr(err, bucket)
	}

	out := make(map[string]entry)
	for _, host := range hosts {
		leafName := host.Name()
		if leafName == dirIDBackupName {
			continue
		}
		encName, err := r.recoverEncName(bucket, leafName)
		if err != nil {
			return nil, err
		}
		cleartext, err := r.cr.DecryptName(encName, dirID)
		if err != nil {
			return nil, err
		}
		e, err := r.classify(bucket, leafName)
		if err != nil {
			return nil, err
		}
		out[cleartext] = e
	}
	return out, nil
}

// sortedNames returns the keys of a childEntries map sorted by cleartext
// name, per dir_entries' ordering contract.
func sortedNames(m map[string]entry) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// recoverEncName reads back the base64 ciphertext name a bucket entry was
// created from: directly from the filename for plain `.c9r` entries, or
// from name.c9s for shortened `.c9s` entries.
func (r *resolver) recoverEncName(bucket, leafName string) (string, error) {
	if strings.HasSuffix(leafName, ".c9s") {
		raw, err := os.ReadFile(filepath.Join(bucket, leafName, shortNameFile))
		if err != nil {
			return "", wrapFsErr(err, filepath.Join(bucket, leafName, shortNameFile))
		}
		return string(raw), nil
	}
	return strings.TrimSuffix(leafName, ".c9r"), nil
}

// readEncryptedString opens path as an existing tiny EncryptedStream (the
// format used by dirid.c9r, dir.c9r, and symlink.c9r alike) and returns its
// fully decrypted cleartext as a string.
func (r *resolver) readEncryptedString(path string) (string, error) {
	f, err := vfsio.OpenExisting(path)
	if err != nil {
		return "", err
	}
	s, err := vfsio.Open(f, r.cr, false)
	if err != nil {
		f.Close()
		return "", err
	}
	defer s.Close()
	data, err := io.ReadAll(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// writeEncryptedString creates (or overwrites) path as a tiny
// EncryptedStream whose sole chunk holds value.
func (r *resolver) writeEncryptedString(path string, value string) error {
	f, err := vfsio.OpenFile(path)
	if err != nil {
		return err
	}
	s, err := vfsio.Open(f, r.cr, true)
	if err != nil {
		f.Close()
		return err
	}
	defer s.Close()
	_, err = s.Write([]byte(value))
	return err
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func wrapFsErr(err error, path string) error {
	if err == nil {
		return nil
	}
	kind := errs.KindIo
	switch {
	case os.IsNotExist(err):
		kind = errs.KindNotFound
	case os.IsExist(err):
		kind = errs.KindAlreadyExists
	}
	return errs.WrapPath(errs.WrapKind(err, kind, err.Error()), path)
}
