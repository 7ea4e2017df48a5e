package vaultfs

import (
	"context"
	"io"

	"github.com/ag0st/cryptovault/vfsio"
)

// FileHandle is the result of OpenFile: a cleartext random-access view
// over one resolved file entry, optionally in append mode.
type FileHandle struct {
	stream *vfsio.EncryptedStream
	append bool
}

// OpenFile resolves path to a non-directory entry and opens an
// EncryptedStream over its ciphertext: a regular file's content, or a
// symlink's symlink.c9r (its stored target). When appendMode is set, every
// Write first seeks to the current end of the stream.
func (fs *EncryptedFileSystem) OpenFile(ctx context.Context, path string, writable, appendMode bool) (*FileHandle, error) {
	e, err := fs.res.resolve(path)
	if err != nil {
		return nil, err
	}
	if e.kind == KindDirectory {
		return nil, errNotADirectory
	}
	f, err := vfsio.OpenExisting(e.contentPath)
	if err != nil {
		return nil, err
	}
	s, err := vfsio.Open(f, fs.cr, writable)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileHandle{stream: s, append: appendMode}, nil
}

func (h *FileHandle) Read(p []byte) (int, error) { return h.stream.Read(p) }

func (h *FileHandle) Write(p []byte) (int, error) {
	if h.append {
		if _, err := h.stream.Seek(0, io.SeekEnd); err != nil {
			return 0, err
		}
	}
	return h.stream.Write(p)
}

func (h *FileHandle) Seek(offset int64, whence int) (int64, error) {
	return h.stream.Seek(offset, whence)
}

func (h *FileHandle) Truncate(size int64) error { return h.stream.Truncate(size) }

func (h *FileHandle) CleartextSize() (int64, error) { return h.stream.CleartextSize() }

func (h *FileHandle) Close() error { return h.stream.Close() }
