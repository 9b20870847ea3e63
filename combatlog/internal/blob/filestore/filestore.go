// Package filestore is an ObjectStore backed by a local directory. Multipart
// parts are staged under .uploads and concatenated on completion.
package filestore

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/blob"
)

const uploadsDir = ".uploads"

// Store writes objects to <root>/<bucket>/<key>.
type Store struct {
	root string
}

var _ blob.ObjectStore = (*Store)(nil)

// New returns a store rooted at root, creating it if needed.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) path(bucket, key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if bucket == "" || strings.Contains(bucket, string(filepath.Separator)) || bucket == uploadsDir || clean == "/" {
		return "", fmt.Errorf("invalid object path %q/%q", bucket, key)
	}
	return filepath.Join(s.root, bucket, clean), nil
}

func (s *Store) uploadDir(uploadID string) (string, error) {
	if _, err := uuid.Parse(uploadID); err != nil {
		return "", fmt.Errorf("invalid upload id %q", uploadID)
	}
	return filepath.Join(s.root, uploadsDir, uploadID), nil
}

func (s *Store) PutObject(ctx context.Context, bucket, key string, body io.ReadSeeker, size int64, contentMD5 string) error {
	dst, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	return writeVerified(dst, body, size, contentMD5)
}

func (s *Store) CreateMultipartUpload(ctx context.Context, bucket, key string) (string, error) {
	if _, err := s.path(bucket, key); err != nil {
		return "", err
	}
	id := uuid.NewString()
	dir, _ := s.uploadDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) UploadPart(ctx context.Context, bucket, key, uploadID string, number int32, body io.ReadSeeker, size int64, contentMD5 string) (string, error) {
	dir, err := s.uploadDir(uploadID)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("upload %s: %w", uploadID, blob.ErrNotFound)
	}
	if err := writeVerified(filepath.Join(dir, strconv.Itoa(int(number))), body, size, contentMD5); err != nil {
		return "", err
	}
	return contentMD5, nil
}

func (s *Store) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []blob.CompletedPart) error {
	dir, err := s.uploadDir(uploadID)
	if err != nil {
		return err
	}
	dst, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".complete-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	for _, p := range parts {
		if err := appendFile(tmp, filepath.Join(dir, strconv.Itoa(int(p.Number)))); err != nil {
			tmp.Close()
			return fmt.Errorf("part %d: %w", p.Number, err)
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

func (s *Store) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	dir, err := s.uploadDir(uploadID)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

func (s *Store) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	p, err := s.path(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, blob.ErrNotFound)
	}
	return f, err
}

// PendingUploads counts multipart sessions neither completed nor aborted.
func (s *Store) PendingUploads() (int, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, uploadsDir))
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	return len(entries), err
}

func writeVerified(dst string, body io.Reader, size int64, contentMD5 string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	h := md5.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n != size {
		return fmt.Errorf("short body: wrote %d of %d bytes", n, size)
	}
	if contentMD5 != "" && base64.StdEncoding.EncodeToString(h.Sum(nil)) != contentMD5 {
		return blob.ErrBadDigest
	}
	return os.Rename(tmp.Name(), dst)
}

func appendFile(dst *os.File, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(dst, f)
	return err
}
