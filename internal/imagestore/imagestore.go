// Package imagestore stores instrument images uploaded from the dashboard.
package imagestore

import (
	"context"
	"errors"
	"io"
	"net/http"
)

var (
	// ErrNotFound is returned by Open and Delete for an unknown key.
	ErrNotFound = errors.New("image not found")
	// ErrInvalidKey is returned for a key Save could not have produced.
	ErrInvalidKey = errors.New("invalid image key")
)

type ImageStore interface {
	Save(ctx context.Context, mimeType string, r io.Reader) (key string, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// allowedTypes is the set of MIME types accepted for uploads.
// net/http.DetectContentType handles JPEG, PNG, and GIF via magic-byte
// sniffing. WebP is detected separately because the WHATWG sniffing
// algorithm (and therefore the stdlib) does not include a WebP signature.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// DetectMIME returns the sniffed MIME type and true if data is an accepted
// image format, or ("", false) otherwise.
func DetectMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedTypes[mime] {
		return mime, true
	}
	return "", false
}
