// Package s3 stores out-of-band request data in S3-compatible buckets.
// Objects are addressed with URIs of the form s3://<bucket>/<key>.
package s3

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

// ObjectStorage is a S3-compatible storage interface.
type ObjectStorage interface {
	Upload(ctx context.Context, r io.Reader, URI string) error
	Download(ctx context.Context, w io.WriterAt, URI string) (int64, error)
	Delete(ctx context.Context, URI string) error
}

// ObjectStorageImpl implements ObjectStorage with the s3manager helpers.
type ObjectStorageImpl struct {
	client     s3iface.S3API
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
}

var _ ObjectStorage = (*ObjectStorageImpl)(nil)

// New returns a pointer to a new ObjectStorageImpl.
func New(sess *session.Session, cfgs ...*aws.Config) *ObjectStorageImpl {
	return NewWithClient(s3.New(sess, cfgs...))
}

// NewWithClient builds the storage around an existing client.
func NewWithClient(client s3iface.S3API) *ObjectStorageImpl {
	return &ObjectStorageImpl{
		client:     client,
		uploader:   s3manager.NewUploaderWithClient(client),
		downloader: s3manager.NewDownloaderWithClient(client),
	}
}

// Upload stores the contents of r under the given URI.
func (s *ObjectStorageImpl) Upload(ctx context.Context, r io.Reader, URI string) error {
	bucket, key, err := getBucketAndKey(URI)
	if err != nil {
		return err
	}
	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	return errors.Wrapf(err, "upload of %s failed", URI)
}

// Download writes the contents of a remote object into the given writer.
func (s *ObjectStorageImpl) Download(ctx context.Context, w io.WriterAt, URI string) (n int64, err error) {
	bucket, key, err := getBucketAndKey(URI)
	if err != nil {
		return -1, err
	}
	req := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	n, err = s.downloader.DownloadWithContext(ctx, w, req)
	return n, errors.Wrapf(err, "download of %s failed", URI)
}

// Delete removes the object.
func (s *ObjectStorageImpl) Delete(ctx context.Context, URI string) error {
	bucket, key, err := getBucketAndKey(URI)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return errors.Wrapf(err, "delete of %s failed", URI)
}

func getBucketAndKey(URI string) (bucket string, key string, err error) {
	u, err := url.Parse(URI)
	if err != nil {
		return "", "", errors.Wrap(err, "invalid object URI")
	}
	if u.Scheme != "s3" || u.Hostname() == "" {
		return "", "", errors.Errorf("invalid object URI %q", URI)
	}
	return u.Hostname(), strings.TrimPrefix(u.Path, "/"), nil
}
