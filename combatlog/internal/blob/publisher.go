package blob

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/metrics"
	"github.com/telhawk-systems/telhawk-combatlog/common/logging"
)

// DefaultSegmentSize is the largest file uploaded with a single put and the
// part size of multipart uploads.
const DefaultSegmentSize = 100 * 1024 * 1024

// Options controls upload behavior.
type Options struct {
	SegmentSize     int64
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	PartConcurrency int
}

// DefaultOptions returns five attempts per step with exponential backoff and
// sequential part uploads.
func DefaultOptions() Options {
	return Options{
		SegmentSize:     DefaultSegmentSize,
		MaxAttempts:     5,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		PartConcurrency: 1,
	}
}

// Publisher uploads files with the size policy: empty files and files under
// one segment go up in a single put, larger files as a multipart upload with
// one part per segment.
type Publisher struct {
	store ObjectStore
	opts  Options
}

// NewPublisher returns a publisher writing to store. Zero fields of opts take
// their default.
func NewPublisher(store ObjectStore, opts Options) *Publisher {
	def := DefaultOptions()
	if opts.SegmentSize <= 0 {
		opts.SegmentSize = def.SegmentSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = def.InitialInterval
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = def.MaxInterval
	}
	if opts.PartConcurrency <= 0 {
		opts.PartConcurrency = def.PartConcurrency
	}
	return &Publisher{store: store, opts: opts}
}

// Store returns the underlying object store.
func (p *Publisher) Store() ObjectStore {
	return p.store
}

// Upload writes f to bucket/key.
func (p *Publisher) Upload(ctx context.Context, bucket, key string, f *os.File) error {
	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", f.Name(), err)
	}
	size := st.Size()

	start := time.Now()
	defer func() { metrics.UploadDuration.Observe(time.Since(start).Seconds()) }()

	if size < p.opts.SegmentSize {
		err = p.put(ctx, bucket, key, io.NewSectionReader(f, 0, size), size)
	} else {
		err = p.multipart(ctx, bucket, key, f, size)
	}
	if err != nil {
		return err
	}
	metrics.UploadBytesTotal.Add(float64(size))
	return nil
}

func (p *Publisher) put(ctx context.Context, bucket, key string, body io.ReadSeeker, size int64) error {
	digest, err := contentMD5(body)
	if err != nil {
		return err
	}
	return p.retry(ctx, "put", key, func() error {
		if _, err := body.Seek(0, io.SeekStart); err != nil {
			return backoff.Permanent(err)
		}
		return p.store.PutObject(ctx, bucket, key, body, size, digest)
	})
}

func (p *Publisher) multipart(ctx context.Context, bucket, key string, f *os.File, size int64) error {
	var uploadID string
	err := p.retry(ctx, "create_multipart", key, func() error {
		id, err := p.store.CreateMultipartUpload(ctx, bucket, key)
		uploadID = id
		return err
	})
	if err != nil {
		return err
	}

	count := int((size + p.opts.SegmentSize - 1) / p.opts.SegmentSize)
	parts := make([]CompletedPart, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.PartConcurrency)
	for i := range count {
		g.Go(func() error {
			off := int64(i) * p.opts.SegmentSize
			n := min(p.opts.SegmentSize, size-off)
			number := int32(i + 1)
			section := io.NewSectionReader(f, off, n)

			digest, err := contentMD5(section)
			if err != nil {
				return err
			}
			return p.retry(gctx, "part", key, func() error {
				if _, err := section.Seek(0, io.SeekStart); err != nil {
					return backoff.Permanent(err)
				}
				etag, err := p.store.UploadPart(gctx, bucket, key, uploadID, number, section, n, digest)
				if err != nil {
					return err
				}
				parts[i] = CompletedPart{Number: number, ETag: etag}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		p.abort(ctx, bucket, key, uploadID)
		return err
	}

	slices.SortFunc(parts, func(a, b CompletedPart) int { return int(a.Number - b.Number) })
	err = p.retry(ctx, "complete_multipart", key, func() error {
		return p.store.CompleteMultipartUpload(ctx, bucket, key, uploadID, parts)
	})
	if err != nil {
		p.abort(ctx, bucket, key, uploadID)
		return err
	}
	return nil
}

func (p *Publisher) abort(ctx context.Context, bucket, key, uploadID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := p.store.AbortMultipartUpload(ctx, bucket, key, uploadID); err != nil {
		slog.Warn("abort multipart upload failed", logging.Key(key), logging.Error(err))
	}
}

// retry runs op with exponential backoff until it succeeds, returns a
// permanent error, ctx ends or the attempts run out.
func (p *Publisher) retry(ctx context.Context, strategy, key string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.opts.InitialInterval
	b.MaxInterval = p.opts.MaxInterval
	b.MaxElapsedTime = 0

	attempt := 0
	permanent := false
	wrapped := func() error {
		attempt++
		err := op()
		status := "ok"
		if err != nil {
			status = "error"
			var perm *backoff.PermanentError
			permanent = errors.As(err, &perm)
		}
		metrics.UploadAttempts.WithLabelValues(strategy, status).Inc()
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("upload step failed, retrying",
			slog.String("strategy", strategy),
			logging.Key(key),
			logging.Attempt(attempt),
			slog.Duration("backoff", wait),
			logging.Error(err))
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.opts.MaxAttempts-1)), ctx)
	err := backoff.RetryNotify(wrapped, bo, notify)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s %s: %w", strategy, key, ctxErr)
	}
	if permanent {
		return fmt.Errorf("%s %s: %w", strategy, key, err)
	}
	return fmt.Errorf("%w: %s %s after %d attempts: %w", ErrRetriesExhausted, strategy, key, attempt, err)
}

func contentMD5(r io.ReadSeeker) (string, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash body: %w", err)
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// ContentMD5 returns the base64 MD5 digest of b.
func ContentMD5(b []byte) string {
	d, _ := contentMD5(bytes.NewReader(b))
	return d
}
