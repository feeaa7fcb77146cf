package provider

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// TempFile is a temporary file that is removed when closed. Close may be
// called more than once.
type TempFile struct {
	fs   afero.Fs
	f    afero.File
	once sync.Once
	err  error
}

// NewTempFile creates a temporary file in dir (the default temporary
// directory when empty).
func NewTempFile(fs afero.Fs, dir, pattern string) (*TempFile, error) {
	f, err := afero.TempFile(fs, dir, pattern)
	if err != nil {
		return nil, errors.Wrap(err, "create temporary file")
	}
	return &TempFile{fs: fs, f: f}, nil
}

func (t *TempFile) Name() string {
	return t.f.Name()
}

func (t *TempFile) Read(p []byte) (int, error) {
	return t.f.Read(p)
}

func (t *TempFile) Write(p []byte) (int, error) {
	return t.f.Write(p)
}

func (t *TempFile) WriteAt(p []byte, off int64) (int, error) {
	return t.f.WriteAt(p, off)
}

// Rewind moves the offset back to the start of the file.
func (t *TempFile) Rewind() error {
	_, err := t.f.Seek(0, io.SeekStart)
	return err
}

func (t *TempFile) Close() error {
	t.once.Do(func() {
		cerr := t.f.Close()
		rerr := t.fs.Remove(t.f.Name())
		if cerr != nil {
			t.err = errors.Wrap(cerr, "close temporary file")
		} else if rerr != nil {
			t.err = errors.Wrap(rerr, "remove temporary file")
		}
	})
	return t.err
}
