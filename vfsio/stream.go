package vfsio

import (
	"io"

	"github.com/ag0st/cryptovault/cryptor"
)

// EncryptedStream is a cleartext random-access view over a File: reads and
// writes are translated into chunk-aligned authenticated read-modify-write
// operations against the ciphertext backing file.
type EncryptedStream struct {
	cr     cryptor.FileCryptor
	file   File
	header *cryptor.FileHeader
	pos    int64
	closed bool
}

// Open acquires the advisory lock (shared for read-only sessions, exclusive
// otherwise) and returns a ready-to-use EncryptedStream. If file is empty a
// fresh FileHeader is generated and persisted before returning.
func Open(file File, cr cryptor.FileCryptor, writable bool) (*EncryptedStream, error) {
	if err := file.Lock(writable); err != nil {
		return nil, err
	}

	size, err := file.Size()
	if err != nil {
		file.Unlock()
		return nil, err
	}

	s := &EncryptedStream{cr: cr, file: file}

	if size == 0 {
		h, err := cr.NewHeader()
		if err != nil {
			file.Unlock()
			return nil, err
		}
		enc, err := cr.EncryptHeader(h)
		if err != nil {
			file.Unlock()
			return nil, err
		}
		if _, err := file.WriteAt(enc, 0); err != nil {
			file.Unlock()
			return nil, err
		}
		if err := file.Sync(); err != nil {
			file.Unlock()
			return nil, err
		}
		s.header = h
		return s, nil
	}

	headerLen := cr.EncryptedHeaderLen()
	encHeader := make([]byte, headerLen)
	if _, err := io.ReadFull(sectionReader(file, 0, int64(headerLen)), encHeader); err != nil {
		file.Unlock()
		return nil, wrapHostError(err, "")
	}
	h, err := cr.DecryptHeader(encHeader)
	if err != nil {
		file.Unlock()
		return nil, err
	}
	s.header = h
	return s, nil
}

// Close releases the advisory lock and zeroes the cached header. The stream
// must not be used afterward.
func (s *EncryptedStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.header != nil {
		for i := range s.header.Payload {
			s.header.Payload[i] = 0
		}
	}
	s.header = nil
	if err := s.file.Unlock(); err != nil {
		return err
	}
	return s.file.Close()
}

func sectionReader(r io.ReaderAt, off, n int64) io.Reader {
	return io.NewSectionReader(r, off, n)
}

// chunkLen, chunkOverhead, encChunkLen are shorthand for the
// cryptor's constants, named the way EncryptedStream's own math refers to
// them (C, Δ, E in the position-translation formulas).
func (s *EncryptedStream) chunkLen() int64     { return cryptor.MaxChunkLen }
func (s *EncryptedStream) chunkOverhead() int64 { return int64(s.cr.ChunkOverhead()) }
func (s *EncryptedStream) encChunkLen() int64  { return int64(s.cr.MaxEncryptedChunkLen()) }
func (s *EncryptedStream) headerLen() int64    { return int64(s.cr.EncryptedHeaderLen()) }

// chunkCipherStart returns the ciphertext offset of the start of chunk n
// (always the header plus n full encrypted chunks; reads and writes both
// snap to this boundary before touching the backing file).
func (s *EncryptedStream) chunkCipherStart(n int64) int64 {
	return s.headerLen() + n*s.encChunkLen()
}

// CleartextSize returns the logical (decrypted) length of the stream,
// derived from the backing file's ciphertext length: subtract the header,
// then subtract the per-chunk overhead for every full chunk and for the
// final partial chunk.
func (s *EncryptedStream) CleartextSize() (int64, error) {
	total, err := s.file.Size()
	if err != nil {
		return 0, err
	}
	r := total - s.headerLen()
	if r <= 0 {
		return 0, nil
	}
	e := s.encChunkLen()
	full := r / e
	rem := r % e
	size := full * s.chunkLen()
	if rem > 0 {
		delta := s.chunkOverhead()
		if rem <= delta {
			return 0, wrapHostError(io.ErrUnexpectedEOF, "")
		}
		size += rem - delta
	}
	return size, nil
}

// Seek implements the three io.Seeker whences with the stream's clamping
// semantics: Start clamps to [0, cleartext_len]; End treats negative
// offsets as "from end" and clamps at 0; Current saturates both ends.
func (s *EncryptedStream) Seek(offset int64, whence int) (int64, error) {
	size, err := s.CleartextSize()
	if err != nil {
		return 0, err
	}
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekEnd:
		target = size + offset
	case io.SeekCurrent:
		target = s.pos + offset
	default:
		return 0, errInvalidWhence
	}
	if target < 0 {
		target = 0
	}
	if target > size {
		target = size
	}
	s.pos = target
	return s.pos, nil
}

// Read fills buf starting at the current cleartext position, decrypting
// exactly one ciphertext chunk per call and copying the requested slice out
// of it; callers wanting a whole multi-chunk span should loop (as io.Copy
// and io.ReadAll already do).
func (s *EncryptedStream) Read(buf []byte) (int, error) {
	if s.closed {
		return 0, errClosed
	}
	if len(buf) == 0 {
		return 0, nil
	}
	size, err := s.CleartextSize()
	if err != nil {
		return 0, err
	}
	if s.pos >= size {
		return 0, io.EOF
	}

	chunkNumber := s.pos / s.chunkLen()
	chunkOffset := s.pos % s.chunkLen()
	cipherStart := s.chunkCipherStart(chunkNumber)

	total, err := s.file.Size()
	if err != nil {
		return 0, err
	}
	available := total - cipherStart
	if available > s.encChunkLen() {
		available = s.encChunkLen()
	}
	enc := make([]byte, available)
	if _, err := io.ReadFull(sectionReader(s.file, cipherStart, available), enc); err != nil {
		return 0, wrapHostError(err, "")
	}

	plain, err := s.cr.DecryptChunk(enc, s.header, uint64(chunkNumber))
	if err != nil {
		return 0, err
	}
	if chunkOffset > int64(len(plain)) {
		return 0, wrapHostError(io.ErrUnexpectedEOF, "")
	}
	n := copy(buf, plain[chunkOffset:])
	s.pos += int64(n)
	return n, nil
}

// Write consumes buf in chunk-sized pieces, applying the four-case
// read-modify-write algorithm per chunk, until the whole buffer has been
// written or an error occurs.
func (s *EncryptedStream) Write(buf []byte) (int, error) {
	if s.closed {
		return 0, errClosed
	}
	total := 0
	for len(buf) > 0 {
		n, err := s.writeOneChunk(buf)
		total += n
		buf = buf[n:]
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, errShortWrite
		}
	}
	return total, nil
}

func (s *EncryptedStream) writeOneChunk(buf []byte) (int, error) {
	chunkNumber := s.pos / s.chunkLen()
	chunkOffset := s.pos % s.chunkLen()
	cipherStart := s.chunkCipherStart(chunkNumber)
	maxWrite := s.chunkLen() - chunkOffset

	write := buf
	if int64(len(write)) > maxWrite {
		write = write[:maxWrite]
	}

	total, err := s.file.Size()
	if err != nil {
		return 0, err
	}
	available := total - cipherStart

	switch {
	case available <= 0:
		// Case 1: nothing written at this chunk yet (EOF append).
		enc, err := s.cr.EncryptChunk(write, s.header, uint64(chunkNumber))
		if err != nil {
			return 0, err
		}
		if _, err := s.file.WriteAt(enc, cipherStart); err != nil {
			return 0, wrapHostError(err, "")
		}
		s.pos += int64(len(write))
		return len(write), nil

	case chunkOffset == 0 && int64(len(write)) >= s.chunkLen():
		// Case 3: whole chunk, aligned, full-size write: overwrite without
		// decrypting the old ciphertext.
		enc, err := s.cr.EncryptChunk(write, s.header, uint64(chunkNumber))
		if err != nil {
			return 0, err
		}
		if _, err := s.file.WriteAt(enc, cipherStart); err != nil {
			return 0, wrapHostError(err, "")
		}
		s.pos += int64(len(write))
		return len(write), nil

	default:
		// Case 2 / Case 4: a partial tail chunk or a whole chunk that isn't
		// being fully overwritten — decrypt what is there, splice the new
		// bytes in, and re-encrypt.
		readLen := available
		if readLen > s.encChunkLen() {
			readLen = s.encChunkLen()
		}
		old := make([]byte, readLen)
		if _, err := io.ReadFull(sectionReader(s.file, cipherStart, readLen), old); err != nil {
			return 0, wrapHostError(err, "")
		}
		plain, err := s.cr.DecryptChunk(old, s.header, uint64(chunkNumber))
		if err != nil {
			return 0, err
		}

		finalLen := int64(len(plain))
		if required := chunkOffset + int64(len(write)); required > finalLen {
			finalLen = required
		}
		spliced := make([]byte, finalLen)
		copy(spliced, plain)
		copy(spliced[chunkOffset:], write)

		enc, err := s.cr.EncryptChunk(spliced, s.header, uint64(chunkNumber))
		if err != nil {
			return 0, err
		}
		if _, err := s.file.WriteAt(enc, cipherStart); err != nil {
			return 0, wrapHostError(err, "")
		}
		s.pos += int64(len(write))
		return len(write), nil
	}
}

// Truncate resizes the stream to exactly size cleartext bytes, rewriting
// the tail chunk when size does not fall on a chunk boundary (the Open
// Question the distilled spec left unresolved, decided here in favor of
// exact byte-level truncation per its own guidance).
func (s *EncryptedStream) Truncate(size int64) error {
	if s.closed {
		return errClosed
	}
	if size < 0 {
		return errInvalidWhence
	}
	current, err := s.CleartextSize()
	if err != nil {
		return err
	}
	if size > current {
		// Growing: append zero bytes through Write so every new chunk is
		// properly encrypted and authenticated.
		pos := s.pos
		s.pos = current
		_, err := s.Write(make([]byte, size-current))
		s.pos = pos
		return err
	}
	chunkNumber := size / s.chunkLen()
	chunkOffset := size % s.chunkLen()
	cipherStart := s.chunkCipherStart(chunkNumber)

	if chunkOffset == 0 {
		if err := s.file.Truncate(cipherStart); err != nil {
			return wrapHostError(err, "")
		}
		if s.pos > size {
			s.pos = size
		}
		return nil
	}

	total, err := s.file.Size()
	if err != nil {
		return err
	}
	available := total - cipherStart
	var tail []byte
	if available > 0 {
		readLen := available
		if readLen > s.encChunkLen() {
			readLen = s.encChunkLen()
		}
		old := make([]byte, readLen)
		if _, err := io.ReadFull(sectionReader(s.file, cipherStart, readLen), old); err != nil {
			return wrapHostError(err, "")
		}
		tail, err = s.cr.DecryptChunk(old, s.header, uint64(chunkNumber))
		if err != nil {
			return err
		}
	}

	newTail := make([]byte, chunkOffset)
	copy(newTail, tail)

	enc, err := s.cr.EncryptChunk(newTail, s.header, uint64(chunkNumber))
	if err != nil {
		return err
	}
	if _, err := s.file.WriteAt(enc, cipherStart); err != nil {
		return wrapHostError(err, "")
	}
	if err := s.file.Truncate(cipherStart + int64(len(enc))); err != nil {
		return wrapHostError(err, "")
	}
	if s.pos > size {
		s.pos = size
	}
	return nil
}
