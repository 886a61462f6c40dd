// Package storage uploads product images to Cloud Storage.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/oklog/ulid/v2"
)

const defaultMaxImageBytes = 5 << 20

var (
	// ErrNotDataURL is returned when the value is not a base64 data URL.
	ErrNotDataURL = errors.New("storage: value is not a base64 data URL")
	// ErrUnsupportedImage is returned for content types outside the allow list.
	ErrUnsupportedImage = errors.New("storage: unsupported image type")
	// ErrImageTooLarge is returned when the decoded image exceeds the size cap.
	ErrImageTooLarge = errors.New("storage: image too large")
)

var imageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// ObjectWriter persists one object.
type ObjectWriter interface {
	WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error
}

// GCSWriter writes objects with the Cloud Storage client.
type GCSWriter struct {
	client *gcs.Client
}

// NewGCSWriter wraps client.
func NewGCSWriter(client *gcs.Client) (*GCSWriter, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	return &GCSWriter{client: client}, nil
}

// WriteObject uploads data in a single request.
func (w *GCSWriter) WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error {
	writer := w.client.Bucket(bucket).Object(object).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "public, max-age=31536000, immutable"
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("storage: write %s/%s: %w", bucket, object, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("storage: finalise %s/%s: %w", bucket, object, err)
	}
	return nil
}

// ImageUploader turns data URL images into public bucket objects.
type ImageUploader struct {
	writer     ObjectWriter
	bucket     string
	publicBase string
	maxBytes   int
}

// NewImageUploader builds an uploader for bucket, serving objects under publicBase.
func NewImageUploader(writer ObjectWriter, bucket, publicBase string) (*ImageUploader, error) {
	if writer == nil {
		return nil, errors.New("storage: writer is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("storage: bucket is required")
	}
	return &ImageUploader{
		writer:     writer,
		bucket:     strings.TrimSpace(bucket),
		publicBase: strings.TrimRight(publicBase, "/"),
		maxBytes:   defaultMaxImageBytes,
	}, nil
}

// UploadDataURL stores the image under products/{productID}/ and returns its public URL.
func (u *ImageUploader) UploadDataURL(ctx context.Context, productID, dataURL string) (string, error) {
	contentType, data, err := ParseDataURL(dataURL)
	if err != nil {
		return "", err
	}
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, contentType)
	}
	if len(data) > u.maxBytes {
		return "", ErrImageTooLarge
	}

	object := fmt.Sprintf("products/%s/%s.%s", productID, strings.ToLower(ulid.Make().String()), ext)
	if err := u.writer.WriteObject(ctx, u.bucket, object, contentType, data); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", u.publicBase, u.bucket, object), nil
}

// IsDataURL reports whether value looks like a data URL.
func IsDataURL(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), "data:")
}

// ParseDataURL decodes "data:<type>;base64,<payload>".
func ParseDataURL(value string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(value), "data:")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	contentType, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" {
		return "", nil, ErrNotDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrNotDataURL, err)
	}
	return strings.ToLower(strings.TrimSpace(contentType)), data, nil
}
