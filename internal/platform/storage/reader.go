package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

var (
	errInvalidBucket = errors.New("storage: bucket name is required")
	errInvalidObject = errors.New("storage: object name is required")
	errNoClient      = errors.New("storage: client is required")

	// ErrObjectNotFound is returned when the requested object does not exist.
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrObjectTooLarge is returned when an object exceeds the reader's size limit.
	ErrObjectTooLarge = errors.New("storage: object exceeds size limit")
)

const defaultMaxObjectBytes = int64(20 * 1024 * 1024)

// Location addresses a bucket and an optional object prefix, parsed from gs://bucket/prefix.
type Location struct {
	Bucket string
	Prefix string
}

// ParseGSURL parses a gs:// URL into a Location. Trailing slashes on the prefix are dropped.
func ParseGSURL(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("storage: parse %q: %w", raw, err)
	}
	if u.Scheme != "gs" {
		return Location{}, fmt.Errorf("storage: %q is not a gs:// url", raw)
	}
	bucket := strings.TrimSpace(u.Host)
	if bucket == "" {
		return Location{}, errInvalidBucket
	}
	return Location{
		Bucket: bucket,
		Prefix: strings.Trim(u.Path, "/"),
	}, nil
}

// ObjectName joins the prefix and name into a full object path.
func (l Location) ObjectName(name string) (string, error) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		return "", errInvalidObject
	}
	if l.Prefix == "" {
		return name, nil
	}
	return path.Join(l.Prefix, name), nil
}

func (l Location) String() string {
	if l.Prefix == "" {
		return "gs://" + l.Bucket
	}
	return "gs://" + l.Bucket + "/" + l.Prefix
}

// Reader downloads whole objects below a Location.
type Reader struct {
	client   *storage.Client
	location Location
	maxBytes int64
}

// NewReader binds client to the gs:// base URL. maxBytes <= 0 applies a 20 MiB limit.
func NewReader(client *storage.Client, baseURL string, maxBytes int64) (*Reader, error) {
	if client == nil {
		return nil, errNoClient
	}
	loc, err := ParseGSURL(baseURL)
	if err != nil {
		return nil, err
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxObjectBytes
	}
	return &Reader{client: client, location: loc, maxBytes: maxBytes}, nil
}

// Location reports the bucket and prefix the reader serves.
func (r *Reader) Location() Location { return r.location }

// ReadObject returns the named object's contents.
func (r *Reader) ReadObject(ctx context.Context, name string) ([]byte, error) {
	object, err := r.location.ObjectName(name)
	if err != nil {
		return nil, err
	}
	rc, err := r.client.Bucket(r.location.Bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("gs://%s/%s: %w", r.location.Bucket, object, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("gs://%s/%s: open: %w", r.location.Bucket, object, err)
	}
	defer rc.Close()

	if size := rc.Attrs.Size; size > r.maxBytes {
		return nil, fmt.Errorf("gs://%s/%s: %w (%d bytes)", r.location.Bucket, object, ErrObjectTooLarge, size)
	}
	data, err := io.ReadAll(io.LimitReader(rc, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("gs://%s/%s: read: %w", r.location.Bucket, object, err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("gs://%s/%s: %w", r.location.Bucket, object, ErrObjectTooLarge)
	}
	return data, nil
}
