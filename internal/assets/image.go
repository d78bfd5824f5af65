package assets

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxImageBytes bounds uploads and fetched bodies.
	DefaultMaxImageBytes = int64(20 * 1024 * 1024) // 20 MiB
	maxImagePixels       = 64 * 1024 * 1024
)

var imageContentTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
}

// ImageInfo describes a decoded raster image.
type ImageInfo struct {
	Format      string
	ContentType string
	Width       int
	Height      int
}

// DecodeImage checks that data is a complete PNG, JPEG or WebP image no larger than maxBytes.
// A non-positive maxBytes applies DefaultMaxImageBytes.
func DecodeImage(data []byte, maxBytes int64) (ImageInfo, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if len(data) == 0 {
		return ImageInfo{}, &InvalidImageError{Reason: "empty payload"}
	}
	if int64(len(data)) > maxBytes {
		return ImageInfo{}, &InvalidImageError{Reason: fmt.Sprintf("payload is %d bytes, limit %d", len(data), maxBytes), Err: ErrImageTooLarge}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, &InvalidImageError{Reason: "unrecognised image data", Err: err}
	}
	contentType, ok := imageContentTypes[format]
	if !ok {
		return ImageInfo{}, &InvalidImageError{Reason: fmt.Sprintf("unsupported format %q", format)}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{}, &InvalidImageError{Reason: "image has no pixels"}
	}
	if cfg.Width*cfg.Height > maxImagePixels {
		return ImageInfo{}, &InvalidImageError{Reason: fmt.Sprintf("image is %dx%d, too many pixels", cfg.Width, cfg.Height), Err: ErrImageTooLarge}
	}
	// Header checks pass truncated files; a full decode does not.
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return ImageInfo{}, &InvalidImageError{Reason: "corrupt " + format + " data", Err: err}
	}

	return ImageInfo{
		Format:      format,
		ContentType: contentType,
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}
