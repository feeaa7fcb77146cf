package s3

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fs = afero.Afero{Fs: afero.NewMemMapFs()}

func tempFile(t *testing.T) afero.File {
	file, err := fs.TempFile("", "")
	require.NoError(t, err)
	t.Logf("Created temporary file: %s", file.Name())
	return file
}

type mockS3Client struct {
	s3iface.S3API
	f       afero.File
	deleted []string
}

func (c *mockS3Client) GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{
		Body:         c.f,
		ContentRange: aws.String("1"),
	}, nil
}

func (c *mockS3Client) DeleteObjectWithContext(ctx aws.Context, input *s3.DeleteObjectInput, opts ...request.Option) (*s3.DeleteObjectOutput, error) {
	c.deleted = append(c.deleted, *input.Bucket+"/"+*input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestObjectStorageImpl_Download(t *testing.T) {
	const want = "Hello world!"

	fi := tempFile(t)
	defer fi.Close()
	fmt.Fprint(fi, want)
	fi.Seek(0, 0)

	fo := tempFile(t)
	defer fo.Close()

	client := NewWithClient(&mockS3Client{f: fi})

	_, err := client.Download(context.TODO(), fo, "[invalid-url]:12345")
	assert.Error(t, err)

	_, err = client.Download(context.TODO(), fo, "s3://foo/bar")
	require.NoError(t, err)

	fo.Seek(0, 0)
	data, err := ioutil.ReadAll(fo)
	require.NoError(t, err)
	assert.Equal(t, want, string(data))
}

func TestObjectStorageImpl_Delete(t *testing.T) {
	mc := &mockS3Client{}
	client := NewWithClient(mc)

	require.NoError(t, client.Delete(context.TODO(), "s3://cache/blob/01ARZ3NDEKTSV4RRFFQ69G5FAV"))
	assert.Equal(t, []string{"cache/blob/01ARZ3NDEKTSV4RRFFQ69G5FAV"}, mc.deleted)

	assert.Error(t, client.Delete(context.TODO(), "file:///tmp/x"))
}

func TestObjectStorageImpl_Upload(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		path = r.URL.Path
		body, _ = ioutil.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String("eu-west-2"),
		Endpoint:         aws.String(srv.URL),
		S3ForcePathStyle: aws.Bool(true),
		Credentials:      credentials.NewStaticCredentials("id", "secret", ""),
	})
	require.NoError(t, err)
	client := New(sess)

	err = client.Upload(context.TODO(), bytes.NewReader([]byte("payload")), "s3://cache/blob/key")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/cache/blob/key", path)
	assert.Equal(t, "payload", string(body))
}

func Test_getBucketAndKey(t *testing.T) {
	testCases := []struct {
		url     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://rdss-bucker-2344/filename.jpg", "rdss-bucker-2344", "filename.jpg", false},
		{"s3://a-different-bucket/wqefqwef/cert.pem", "a-different-bucket", "wqefqwef/cert.pem", false},
		{"[invalid-url]:12345", "", "", true},
		{"http://bucket/key", "", "", true},
	}
	for _, tc := range testCases {
		bucket, key, err := getBucketAndKey(tc.url)
		if tc.wantErr {
			assert.Error(t, err, tc.url)
			assert.Empty(t, bucket, tc.url)
			assert.Empty(t, key, tc.url)
			continue
		}
		require.NoError(t, err, tc.url)
		assert.Equal(t, tc.bucket, bucket)
		assert.Equal(t, tc.key, key)
	}
}
