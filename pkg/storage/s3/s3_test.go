package s3

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/testcase-generator/pkg/logger"
)

type fakeS3 struct {
	objects map[string]types.Object
	deleted []string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.objects[*in.Key] = types.Object{Key: in.Key, LastModified: aws.Time(time.Now())}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(*in.Key))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, *in.Key)
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for k, obj := range f.objects {
		if in.Prefix == nil || strings.HasPrefix(k, *in.Prefix) {
			out.Contents = append(out.Contents, obj)
		}
	}
	return out, nil
}

func TestS3StorageRoundTrip(t *testing.T) {
	fake := &fakeS3{objects: map[string]types.Object{}}
	s := &S3Storage{client: fake, bucketName: "bucket", logger: logger.NewNop()}
	ctx := context.Background()

	_, err := s.Store(ctx, strings.NewReader("x"), "exports/a.xlsx")
	require.NoError(t, err)

	rc, err := s.Get(ctx, "exports/a.xlsx")
	require.NoError(t, err)
	rc.Close()

	_, err = s.Get(ctx, "exports/missing.xlsx")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	keys, err := s.List(ctx, "exports/")
	require.NoError(t, err)
	assert.Equal(t, []string{"exports/a.xlsx"}, keys)
}

func TestS3StorageCleanupBefore(t *testing.T) {
	old := time.Now().Add(-72 * time.Hour)
	fake := &fakeS3{objects: map[string]types.Object{
		"old": {Key: aws.String("old"), LastModified: aws.Time(old)},
		"new": {Key: aws.String("new"), LastModified: aws.Time(time.Now())},
	}}
	s := &S3Storage{client: fake, bucketName: "bucket", logger: logger.NewNop()}

	require.NoError(t, s.CleanupBefore(context.Background(), time.Now().Add(-24*time.Hour)))
	assert.Equal(t, []string{"old"}, fake.deleted)
}
