package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/channel-account-api/internal/models"
	"github.com/noah-isme/channel-account-api/pkg/config"
)

type fakeS3 struct {
	puts      []*s3.PutObjectInput
	deletes   []string
	putErr    error
	deleteErr error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StorageUpload(t *testing.T) {
	fake := &fakeS3{}
	store := newS3Storage(fake, "media", "avatars", "https://cdn.example.com/")

	ref, err := store.Upload(context.Background(), models.MediaFile{
		Filename:    "face.jpg",
		ContentType: "image/jpeg",
		Size:        4,
		Content:     strings.NewReader("jpeg"),
	})
	require.NoError(t, err)
	require.Len(t, fake.puts, 1)

	put := fake.puts[0]
	assert.Equal(t, "media", aws.ToString(put.Bucket))
	assert.Equal(t, ref.PublicID, aws.ToString(put.Key))
	assert.Equal(t, "image/jpeg", aws.ToString(put.ContentType))
	assert.Equal(t, int64(4), aws.ToInt64(put.ContentLength))
	assert.True(t, strings.HasPrefix(ref.PublicID, "avatars/"))
	assert.Equal(t, "https://cdn.example.com/"+ref.PublicID, ref.URL)
}

func TestS3StorageUploadError(t *testing.T) {
	fake := &fakeS3{putErr: errors.New("access denied")}
	store := newS3Storage(fake, "media", "", "https://cdn")

	_, err := store.Upload(context.Background(), models.MediaFile{Filename: "a.png", Content: strings.NewReader("x")})
	assert.ErrorContains(t, err, "access denied")
}

func TestS3StorageRemove(t *testing.T) {
	fake := &fakeS3{}
	store := newS3Storage(fake, "media", "", "")

	require.NoError(t, store.Remove(context.Background(), "avatars/2024/01/01/a.png"))
	require.NoError(t, store.Remove(context.Background(), ""))
	assert.Equal(t, []string{"avatars/2024/01/01/a.png"}, fake.deletes)
}

func TestS3StorageRemoveToleratesMissingKey(t *testing.T) {
	fake := &fakeS3{deleteErr: &types.NoSuchKey{}}
	store := newS3Storage(fake, "media", "", "")
	assert.NoError(t, store.Remove(context.Background(), "gone.png"))

	fake.deleteErr = errors.New("throttled")
	assert.Error(t, store.Remove(context.Background(), "gone.png"))
}

func TestDefaultPublicURL(t *testing.T) {
	assert.Equal(t, "https://media.s3.eu-west-1.amazonaws.com", defaultPublicURL(config.S3Config{Bucket: "media", Region: "eu-west-1"}))
	assert.Equal(t, "http://minio:9000/media", defaultPublicURL(config.S3Config{Bucket: "media", Endpoint: "http://minio:9000/"}))
}
