package provider

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/JiscSD/ammolib/s3"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	// DefaultBlobDir is where FSBlobStore keeps out-of-band data.
	DefaultBlobDir = "ammo_distributor_cache"

	blobPrefix = "blob:"

	// colBlob names the blob of a row with out-of-band data. It is added to
	// every relation with a data column and is not part of the relation.
	colBlob = "_blob"
)

// BlobStore keeps the out-of-band data of rows whose content is too large
// to be stored inline.
type BlobStore interface {
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Remove(ctx context.Context, name string) error
}

func newBlobName() string {
	return ulid.Make().String()
}

// blobRef returns the marker shown in the data column of a row whose data
// is out-of-band. The marker is informational; the blob name itself is kept
// in colBlob, which callers cannot write.
func blobRef(name string) string {
	return blobPrefix + name
}

// validBlobName reports whether name was produced by newBlobName.
func validBlobName(name string) bool {
	_, err := ulid.ParseStrict(name)
	return err == nil
}

// FSBlobStore stores blobs as files in a directory.
type FSBlobStore struct {
	fs  afero.Fs
	dir string
}

var _ BlobStore = (*FSBlobStore)(nil)

// NewFSBlobStore returns a store rooted at dir, DefaultBlobDir when empty.
func NewFSBlobStore(fs afero.Fs, dir string) *FSBlobStore {
	if dir == "" {
		dir = DefaultBlobDir
	}
	return &FSBlobStore{fs: fs, dir: dir}
}

func (s *FSBlobStore) path(name string) string {
	return path.Join(s.dir, name)
}

func (s *FSBlobStore) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create blob directory")
	}
	f, err := s.fs.Create(s.path(name))
	return f, errors.Wrap(err, "create blob")
}

func (s *FSBlobStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.path(name))
	return f, errors.Wrap(err, "open blob")
}

func (s *FSBlobStore) Remove(ctx context.Context, name string) error {
	err := s.fs.Remove(s.path(name))
	return errors.Wrap(err, "remove blob")
}

// S3BlobStore stores blobs as objects under s3://<bucket>/<prefix>/<name>.
// Reads are staged in temporary files of the local filesystem.
type S3BlobStore struct {
	storage s3.ObjectStorage
	bucket  string
	prefix  string
	local   afero.Fs
}

var _ BlobStore = (*S3BlobStore)(nil)

func NewS3BlobStore(storage s3.ObjectStorage, bucket, prefix string, local afero.Fs) *S3BlobStore {
	if local == nil {
		local = afero.NewOsFs()
	}
	return &S3BlobStore{
		storage: storage,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		local:   local,
	}
}

func (s *S3BlobStore) uri(name string) string {
	if s.prefix == "" {
		return "s3://" + s.bucket + "/" + name
	}
	return "s3://" + s.bucket + "/" + s.prefix + "/" + name
}

// Create streams the written bytes to the bucket. Close reports the result
// of the upload.
func (s *S3BlobStore) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	w := &uploadWriter{pw: pw, done: make(chan error, 1)}
	go func() {
		err := s.storage.Upload(ctx, pr, s.uri(name))
		pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

func (s *S3BlobStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	tmp, err := NewTempFile(s.local, "", "ammo-blob-")
	if err != nil {
		return nil, err
	}
	if _, err := s.storage.Download(ctx, tmp, s.uri(name)); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Rewind(); err != nil {
		tmp.Close()
		return nil, err
	}
	return tmp, nil
}

func (s *S3BlobStore) Remove(ctx context.Context, name string) error {
	return s.storage.Delete(ctx, s.uri(name))
}

type uploadWriter struct {
	pw     *io.PipeWriter
	done   chan error
	closed bool
	err    error
}

func (w *uploadWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	return w.pw.Write(p)
}

func (w *uploadWriter) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	w.pw.Close()
	w.err = <-w.done
	return w.err
}
