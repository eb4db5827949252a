package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucket = "legal-docs-minio-bucket"

func TestFS_PutGet(t *testing.T) {
	s := NewFS(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, bucket, "CODUL_MUNCII.html", []byte("<html/>"), "text/html"))
	got, err := s.Get(ctx, bucket, "CODUL_MUNCII.html")
	require.NoError(t, err)
	assert.Equal(t, "<html/>", string(got))

	require.NoError(t, s.Put(ctx, bucket, "CODUL_MUNCII.html", []byte("<p/>"), "text/html"))
	got, err = s.Get(ctx, bucket, "CODUL_MUNCII.html")
	require.NoError(t, err)
	assert.Equal(t, "<p/>", string(got))
}

func TestFS_NotFound(t *testing.T) {
	_, err := NewFS(t.TempDir()).Get(context.Background(), bucket, "CODUL_CIVIL.html")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFS_RejectsEscapes(t *testing.T) {
	s := NewFS(t.TempDir())
	ctx := context.Background()
	for _, key := range []string{"../secret", "/etc/passwd", ""} {
		_, err := s.Get(ctx, bucket, key)
		assert.Error(t, err, key)
		assert.NotErrorIs(t, err, ErrNotFound, key)
	}
}

func TestFS_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFS(t.TempDir()).Get(ctx, bucket, "x.html")
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeObjects struct {
	objects map[string]string
	getErr  error
	readErr error
	puts    []string
}

type erroringReader struct{ err error }

func (r erroringReader) Read([]byte) (int, error) { return 0, r.err }

func (f *fakeObjects) getObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.readErr != nil {
		return io.NopCloser(erroringReader{f.readErr}), nil
	}
	return io.NopCloser(strings.NewReader(f.objects[bucket+"/"+key])), nil
}

func (f *fakeObjects) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, _ := io.ReadAll(r)
	if int64(len(data)) != size {
		return minio.UploadInfo{}, errors.New("size mismatch")
	}
	f.puts = append(f.puts, bucket+"/"+key+":"+opts.ContentType)
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func TestMinIO_Get(t *testing.T) {
	s := &MinIO{api: &fakeObjects{objects: map[string]string{bucket + "/CODUL_PENAL.html": "<body/>"}}}
	got, err := s.Get(context.Background(), bucket, "CODUL_PENAL.html")
	require.NoError(t, err)
	assert.Equal(t, "<body/>", string(got))
}

func TestMinIO_NoSuchKeyOnRead(t *testing.T) {
	s := &MinIO{api: &fakeObjects{readErr: minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}}}
	_, err := s.Get(context.Background(), bucket, "missing.html")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMinIO_TransportError(t *testing.T) {
	s := &MinIO{api: &fakeObjects{getErr: errors.New("connection refused")}}
	_, err := s.Get(context.Background(), bucket, "x.html")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestMinIO_Put(t *testing.T) {
	f := &fakeObjects{}
	s := &MinIO{api: f}
	require.NoError(t, s.Put(context.Background(), bucket, "CODUL_FISCAL.html", []byte("<html/>"), "text/html"))
	assert.Equal(t, []string{bucket + "/CODUL_FISCAL.html:text/html"}, f.puts)
}

func TestNewMinIO(t *testing.T) {
	s, err := NewMinIO(MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.NotNil(t, s.api)
}
