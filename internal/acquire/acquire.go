// Package acquire turns the supported upload forms (multipart parts, base64
// strings, remote URLs) into raw image bytes, enforcing size and type limits
// before anything reaches the embedding server.
package acquire

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
)

// DefaultMaxBytes is the per-image size limit.
const DefaultMaxBytes = 10 << 20

var (
	// ErrUnsupportedType is returned for content types other than JPEG or PNG.
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrTooLarge is returned when an image exceeds the size limit.
	ErrTooLarge = errors.New("image exceeds size limit")
	// ErrEmptyImage is returned for zero-length images.
	ErrEmptyImage = errors.New("image is empty")
	// ErrInvalidBase64 is returned when a base64 payload cannot be decoded.
	ErrInvalidBase64 = errors.New("invalid base64 image")
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// CheckContentType accepts image/jpeg and image/png, ignoring parameters.
func CheckContentType(contentType string) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !allowedTypes[strings.ToLower(mediaType)] {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	return nil
}

// ReadLimited reads all of r, failing with ErrTooLarge past maxBytes.
func ReadLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	return data, nil
}

// DecodeBase64 decodes a standard base64 image, tolerating a data URL prefix
// such as "data:image/png;base64,".
func DecodeBase64(s string, maxBytes int64) ([]byte, error) {
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		if i := strings.Index(rest, ","); i >= 0 {
			s = rest[i+1:]
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyImage
	}
	if int64(base64.StdEncoding.DecodedLen(len(s))) > maxBytes+2 {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	return data, nil
}
