package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	buckets   map[string]bool
	objects   map[string][]byte
	existsErr error
	putErr    error
	statErr   error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{buckets: map[string]bool{}, objects: map[string][]byte{}}
}

func (f *fakeObjects) BucketExists(_ context.Context, name string) (bool, error) {
	return f.buckets[name], f.existsErr
}

func (f *fakeObjects) MakeBucket(_ context.Context, name string, _ minioLib.MakeBucketOptions) error {
	f.buckets[name] = true
	return nil
}

func (f *fakeObjects) PutObject(_ context.Context, _ string, key string, r io.Reader, _ int64, _ minioLib.PutObjectOptions) (minioLib.UploadInfo, error) {
	if f.putErr != nil {
		return minioLib.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return minioLib.UploadInfo{}, err
	}
	f.objects[key] = data
	return minioLib.UploadInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeObjects) GetObject(_ context.Context, _ string, key string, _ minioLib.GetObjectOptions) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.objects[key])), nil
}

func (f *fakeObjects) StatObject(_ context.Context, _ string, key string, _ minioLib.StatObjectOptions) (minioLib.ObjectInfo, error) {
	if f.statErr != nil {
		return minioLib.ObjectInfo{}, f.statErr
	}
	data, ok := f.objects[key]
	if !ok {
		return minioLib.ObjectInfo{}, minioLib.ErrorResponse{Code: "NoSuchKey"}
	}
	return minioLib.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeObjects) ListObjects(_ context.Context, _ string, _ minioLib.ListObjectsOptions) <-chan minioLib.ObjectInfo {
	ch := make(chan minioLib.ObjectInfo, len(f.objects))
	for key, data := range f.objects {
		ch <- minioLib.ObjectInfo{Key: key, Size: int64(len(data))}
	}
	close(ch)
	return ch
}

func TestNewCreatesMissingBucket(t *testing.T) {
	api := newFakeObjects()
	c, err := newWithAPI(context.Background(), api, "backups")
	require.NoError(t, err)
	assert.Equal(t, "backups", c.bucket)
	assert.True(t, api.buckets["backups"])
}

func TestNewBucketCheckError(t *testing.T) {
	api := newFakeObjects()
	api.existsErr = errors.New("unreachable")
	_, err := newWithAPI(context.Background(), api, "backups")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to check bucket")
}

func TestUploadDownloadList(t *testing.T) {
	ctx := context.Background()
	api := newFakeObjects()
	c, err := newWithAPI(ctx, api, "backups")
	require.NoError(t, err)

	require.NoError(t, c.Upload(ctx, "backup_20240102_030405.zip", bytes.NewReader([]byte("b")), 1))
	require.NoError(t, c.Upload(ctx, "backup_20240101_000000.zip", bytes.NewReader([]byte("aa")), 2))

	objects, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "backup_20240101_000000.zip", objects[0].Key)
	assert.EqualValues(t, 2, objects[0].Size)

	rc, err := c.Download(ctx, "backup_20240102_030405.zip")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), data)
}

func TestDownloadMissingKey(t *testing.T) {
	ctx := context.Background()
	c, err := newWithAPI(ctx, newFakeObjects(), "backups")
	require.NoError(t, err)

	_, err = c.Download(ctx, "nope.zip")
	assert.ErrorContains(t, err, "not found")
}

func TestExistsPropagatesStatErrors(t *testing.T) {
	ctx := context.Background()
	api := newFakeObjects()
	c, err := newWithAPI(ctx, api, "backups")
	require.NoError(t, err)

	api.statErr = errors.New("denied")
	_, err = c.Exists(ctx, "x.zip")
	assert.ErrorContains(t, err, "failed to stat")
}

func TestUploadError(t *testing.T) {
	ctx := context.Background()
	api := newFakeObjects()
	c, err := newWithAPI(ctx, api, "backups")
	require.NoError(t, err)

	api.putErr = errors.New("quota")
	err = c.Upload(ctx, "x.zip", bytes.NewReader(nil), 0)
	assert.ErrorContains(t, err, "failed to upload")
}
