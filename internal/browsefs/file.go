package browsefs

import (
	"io"

	billy "github.com/go-git/go-billy/v5"
)

// scalarFile implements billy.File backed by a Scalar's value, snapshotted
// at Open time. Read-only: Write and Truncate are rejected outright.
type scalarFile struct {
	name string
	data []byte
	pos  int64
}

func (f *scalarFile) Name() string { return f.name }

func (f *scalarFile) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.pos:])
	f.pos += int64(n)
	if f.pos >= int64(len(f.data)) {
		return n, io.EOF
	}
	return n, nil
}

func (f *scalarFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *scalarFile) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = f.pos + offset
	case io.SeekEnd:
		newPos = int64(len(f.data)) + offset
	}
	if newPos < 0 {
		newPos = 0
	}
	f.pos = newPos
	return f.pos, nil
}

func (f *scalarFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (f *scalarFile) Truncate(int64) error      { return errReadOnly }
func (f *scalarFile) Lock() error               { return nil }
func (f *scalarFile) Unlock() error             { return nil }
func (f *scalarFile) Close() error              { return nil }

var _ billy.File = (*scalarFile)(nil)
