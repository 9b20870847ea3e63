package s3store

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/blob"
)

type fakeAPI struct {
	API
	put      *s3.PutObjectInput
	part     *s3.UploadPartInput
	complete *s3.CompleteMultipartUploadInput
	objects  map[string]string
}

func (f *fakeAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
}

func (f *fakeAPI) UploadPart(ctx context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	f.part = in
	return &s3.UploadPartOutput{ETag: aws.String(`"etag-1"`)}, nil
}

func (f *fakeAPI) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.complete = in
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (f *fakeAPI) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte(body)))}, nil
}

func TestRequestsCarryDigestAndLength(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	s := NewWithAPI(api)

	body := []byte("rows")
	require.NoError(t, s.PutObject(ctx, "b", "k", bytes.NewReader(body), 4, blob.ContentMD5(body)))
	assert.Equal(t, int64(4), aws.ToInt64(api.put.ContentLength))
	assert.Equal(t, blob.ContentMD5(body), aws.ToString(api.put.ContentMD5))

	id, err := s.CreateMultipartUpload(ctx, "b", "k")
	require.NoError(t, err)
	assert.Equal(t, "upload-1", id)

	etag, err := s.UploadPart(ctx, "b", "k", id, 2, bytes.NewReader(body), 4, "")
	require.NoError(t, err)
	assert.Equal(t, `"etag-1"`, etag)
	assert.Equal(t, int32(2), aws.ToInt32(api.part.PartNumber))

	require.NoError(t, s.CompleteMultipartUpload(ctx, "b", "k", id, []blob.CompletedPart{{Number: 1, ETag: "a"}, {Number: 2, ETag: "b"}}))
	require.Len(t, api.complete.MultipartUpload.Parts, 2)
	assert.Equal(t, int32(2), aws.ToInt32(api.complete.MultipartUpload.Parts[1].PartNumber))
}

func TestGetObjectNotFound(t *testing.T) {
	s := NewWithAPI(&fakeAPI{objects: map[string]string{"present": "x"}})

	rc, err := s.GetObject(context.Background(), "b", "present")
	require.NoError(t, err)
	rc.Close()

	_, err = s.GetObject(context.Background(), "b", "missing")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}
