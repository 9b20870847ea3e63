// Package blob publishes report files to an object store.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrRetriesExhausted is returned when an upload step kept failing.
	ErrRetriesExhausted = errors.New("upload retries exhausted")
	// ErrNotFound is returned by GetObject for a missing key.
	ErrNotFound = errors.New("object not found")
	// ErrBadDigest is returned when a body does not match its Content-MD5.
	ErrBadDigest = errors.New("content md5 mismatch")
)

// CompletedPart identifies an uploaded part of a multipart session.
type CompletedPart struct {
	Number int32
	ETag   string
}

// ObjectStore is the subset of the S3 API the publisher needs. contentMD5 is
// the base64 encoded MD5 digest of the body.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, body io.ReadSeeker, size int64, contentMD5 string) error
	CreateMultipartUpload(ctx context.Context, bucket, key string) (uploadID string, err error)
	UploadPart(ctx context.Context, bucket, key, uploadID string, number int32, body io.ReadSeeker, size int64, contentMD5 string) (etag string, err error)
	CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []CompletedPart) error
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// ReportKey is the object key of a report file within a partition.
func ReportKey(partitionID string, canonical int, file string) string {
	return fmt.Sprintf("form=Report/partition=%s/canonical=%d/%s", partitionID, canonical, file)
}
