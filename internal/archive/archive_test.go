package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemdesk/internal/config"
)

type fakeClient struct {
	exists  bool
	made    []string
	puts    []string
	types   []string
	failPut error
}

func (f *fakeClient) BucketExists(context.Context, string) (bool, error) { return f.exists, nil }

func (f *fakeClient) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.made = append(f.made, bucket)
	return nil
}

func (f *fakeClient) FPutObject(_ context.Context, _, object, _ string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.failPut != nil {
		return minio.UploadInfo{}, f.failPut
	}
	f.puts = append(f.puts, object)
	f.types = append(f.types, opts.ContentType)
	return minio.UploadInfo{Key: object, Size: 42}, nil
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))
}

func TestArchiveUsesDatedObjectKey(t *testing.T) {
	client := &fakeClient{}
	a := newMinioArchiver(client, "bucket", "/gemdesk/", nil)
	a.now = fixedNow

	require.NoError(t, a.Archive(context.Background(), "contracts", "/data/pending/batch1.xlsx"))
	require.NoError(t, a.Archive(context.Background(), "sellers", "/data/failed/old.xls"))

	assert.Equal(t, []string{
		"gemdesk/contracts/2024-03-10/batch1.xlsx",
		"gemdesk/sellers/2024-03-10/old.xls",
	}, client.puts)
	assert.Equal(t, "application/vnd.ms-excel", client.types[1])
}

func TestArchiveWithoutPrefix(t *testing.T) {
	a := newMinioArchiver(&fakeClient{}, "bucket", "", nil)
	a.now = fixedNow
	assert.Equal(t, "contracts/2024-03-10/a.xlsx", a.ObjectName("contracts", "a.xlsx"))
}

func TestArchiveWrapsUploadError(t *testing.T) {
	boom := errors.New("connection refused")
	a := newMinioArchiver(&fakeClient{failPut: boom}, "bucket", "p", nil)
	err := a.Archive(context.Background(), "contracts", "x.xlsx")
	assert.ErrorIs(t, err, boom)
}

func TestEnsureBucketCreatesMissingBucket(t *testing.T) {
	client := &fakeClient{}
	a := newMinioArchiver(client, "bucket", "", nil)
	require.NoError(t, a.EnsureBucket(context.Background()))
	assert.Equal(t, []string{"bucket"}, client.made)

	client.exists = true
	client.made = nil
	require.NoError(t, a.EnsureBucket(context.Background()))
	assert.Empty(t, client.made)
}

func TestNewDisabledReturnsNil(t *testing.T) {
	a, err := New(config.Archive{}, nil)
	require.NoError(t, err)
	assert.Nil(t, a)
}
