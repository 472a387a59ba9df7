// Package blob is the file-storage collaborator: profile pictures addressed
// by path, backed by the project's Cloud Storage bucket.
package blob

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// TransferError is an upload/download/delete failure against the bucket.
type TransferError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("blob %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// ErrNotFound marks a missing object.
var ErrNotFound = errors.New("blob not found")

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, storage.ErrObjectNotExist)
}

// Store is the blob collaborator contract.
type Store interface {
	// Put writes data at path with the given content type, replacing any
	// existing object.
	Put(ctx context.Context, path string, contentType string, data []byte) error

	// DownloadURL returns a time-limited URL for reading the object at path.
	// Returns an error satisfying IsNotFound when the object does not exist.
	DownloadURL(ctx context.Context, path string) (string, error)

	// Delete removes the object at path.
	Delete(ctx context.Context, path string) error
}

// Bucket implements Store on a Cloud Storage bucket handle.
type Bucket struct {
	handle *storage.BucketHandle
	expiry time.Duration
}

func NewBucket(handle *storage.BucketHandle) *Bucket {
	return &Bucket{handle: handle, expiry: time.Hour}
}

func (b *Bucket) Put(ctx context.Context, path string, contentType string, data []byte) error {
	w := b.handle.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return &TransferError{Op: "put", Path: path, Err: err}
	}
	if err := w.Close(); err != nil {
		return &TransferError{Op: "put", Path: path, Err: err}
	}
	return nil
}

func (b *Bucket) DownloadURL(ctx context.Context, path string) (string, error) {
	// Existence check first so a missing avatar surfaces as not-found rather
	// than a signed URL that 404s later.
	if _, err := b.handle.Object(path).Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", &TransferError{Op: "url", Path: path, Err: ErrNotFound}
		}
		return "", &TransferError{Op: "url", Path: path, Err: err}
	}

	url, err := b.handle.SignedURL(path, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(b.expiry),
	})
	if err != nil {
		return "", &TransferError{Op: "url", Path: path, Err: err}
	}
	return url, nil
}

func (b *Bucket) Delete(ctx context.Context, path string) error {
	if err := b.handle.Object(path).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return &TransferError{Op: "delete", Path: path, Err: ErrNotFound}
		}
		return &TransferError{Op: "delete", Path: path, Err: err}
	}
	return nil
}

// DecodeDataURL splits a data URL ("data:image/png;base64,....") into its
// content type and raw bytes. The profile picture cropper submits this form.
func DecodeDataURL(dataURL string) (contentType string, data []byte, err error) {
	const prefix = "data:"
	if !strings.HasPrefix(dataURL, prefix) {
		return "", nil, errors.New("not a data URL")
	}
	meta, payload, found := strings.Cut(dataURL[len(prefix):], ",")
	if !found {
		return "", nil, errors.New("malformed data URL")
	}
	contentType = meta
	encoding := ""
	if i := strings.Index(meta, ";"); i >= 0 {
		contentType = meta[:i]
		encoding = meta[i+1:]
	}
	if encoding != "base64" {
		return "", nil, fmt.Errorf("unsupported data URL encoding %q", encoding)
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return contentType, data, nil
}

// FetchFunc fetches an external image (a federated provider's avatar) and
// returns its content type and bytes. It exists so tests can avoid network.
type FetchFunc func(ctx context.Context, url string) (string, []byte, error)

// FetchImage is the default FetchFunc using the process HTTP client.
func FetchImage(ctx context.Context, url string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("avatar fetch returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return "", nil, err
	}
	return resp.Header.Get("Content-Type"), data, nil
}
