package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMinio struct {
	minioAPI
	put       map[string][]byte
	putOpts   minio.PutObjectOptions
	removed   []string
	removeErr error
	statErr   error
	listed    []minio.ObjectInfo
	exists    bool
	made      string
	getErr    error
	// streaming makes ListObjects behave like minio: an unbuffered channel
	// fed by a goroutine that stops when ctx ends. producerDone closes when
	// that goroutine exits.
	streaming    bool
	producerDone chan struct{}
}

func (f *fakeMinio) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	b, _ := io.ReadAll(r)
	if f.put == nil {
		f.put = map[string][]byte{}
	}
	f.put[bucket+"/"+key] = b
	f.putOpts = opts
	return minio.UploadInfo{Size: size}, nil
}

func (f *fakeMinio) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error) {
	return nil, f.getErr
}

func (f *fakeMinio) RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error {
	f.removed = append(f.removed, key)
	return f.removeErr
}

func (f *fakeMinio) StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return minio.ObjectInfo{Key: key}, f.statErr
}

func (f *fakeMinio) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	if f.streaming {
		ch := make(chan minio.ObjectInfo)
		f.producerDone = make(chan struct{})
		go func() {
			defer close(f.producerDone)
			defer close(ch)
			for _, o := range f.listed {
				select {
				case ch <- o:
				case <-ctx.Done():
					return
				}
			}
		}()
		return ch
	}
	ch := make(chan minio.ObjectInfo, len(f.listed))
	for _, o := range f.listed {
		ch <- o
	}
	close(ch)
	return ch
}

func (f *fakeMinio) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.exists, nil
}

func (f *fakeMinio) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	f.made = bucket
	return nil
}

func TestMinioStorage_Put(t *testing.T) {
	f := &fakeMinio{}
	s := &MinioStorage{cl: f, bucket: "bookshelf"}

	require.NoError(t, s.Put(context.Background(), "cover_images/1/a.png", []byte("png"), "image/png"))
	assert.Equal(t, []byte("png"), f.put["bookshelf/cover_images/1/a.png"])
	assert.Equal(t, "image/png", f.putOpts.ContentType)
}

func TestMinioStorage_GetMapsNoSuchKey(t *testing.T) {
	f := &fakeMinio{getErr: minio.ErrorResponse{Code: "NoSuchKey"}}
	s := &MinioStorage{cl: f, bucket: "b"}

	_, err := s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMinioStorage_ExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	f := &fakeMinio{}
	s := &MinioStorage{cl: f, bucket: "b"}

	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	f.statErr = minio.ErrorResponse{Code: "NoSuchKey"}
	ok, err = s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	f.statErr = errors.New("timeout")
	_, err = s.Exists(ctx, "k")
	assert.EqualError(t, err, "timeout")

	f.removeErr = minio.ErrorResponse{Code: "NoSuchKey"}
	require.NoError(t, s.Delete(ctx, "k"))
	f.removeErr = errors.New("denied")
	assert.EqualError(t, s.Delete(ctx, "k"), "denied")
	assert.Equal(t, []string{"k", "k"}, f.removed)
}

func TestMinioStorage_List(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := &fakeMinio{listed: []minio.ObjectInfo{
		{Key: "cover_images/1/a.png", Size: 3, LastModified: ts},
	}}
	s := &MinioStorage{cl: f, bucket: "b"}

	got, err := s.List(context.Background(), "cover_images/")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].Size)

	f.listed = append(f.listed, minio.ObjectInfo{Err: errors.New("list broke")})
	_, err = s.List(context.Background(), "cover_images/")
	assert.EqualError(t, err, "list broke")
}

func TestMinioStorage_ListErrorStopsLister(t *testing.T) {
	f := &fakeMinio{streaming: true, listed: []minio.ObjectInfo{
		{Err: errors.New("list broke")},
		{Key: "cover_images/1/a.png"},
		{Key: "cover_images/2/b.png"},
	}}
	s := &MinioStorage{cl: f, bucket: "b"}

	_, err := s.List(context.Background(), "cover_images/")
	require.EqualError(t, err, "list broke")

	select {
	case <-f.producerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("lister goroutine still running after List returned")
	}
}

func TestMinioStorage_EnsureBucket(t *testing.T) {
	f := &fakeMinio{exists: true}
	s := &MinioStorage{cl: f, bucket: "bookshelf"}
	require.NoError(t, s.EnsureBucket(context.Background()))
	assert.Empty(t, f.made)

	f.exists = false
	require.NoError(t, s.EnsureBucket(context.Background()))
	assert.Equal(t, "bookshelf", f.made)
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		in     string
		host   string
		secure bool
		err    bool
	}{
		{in: "http://127.0.0.1:9000/", host: "127.0.0.1:9000"},
		{in: "https://s3.example.com", host: "s3.example.com", secure: true},
		{in: "minio:9000", host: "minio:9000"},
		{in: "http://", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			host, secure, err := splitEndpoint(tt.in)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.secure, secure)
		})
	}
}

func TestNewMinioStorage(t *testing.T) {
	s, err := NewMinioStorage(MinioConfig{Endpoint: "http://127.0.0.1:9000/", Bucket: "b", AccessKey: "a", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "b", s.bucket)
}
