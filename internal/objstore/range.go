package objstore

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ByteRange formats an inclusive HTTP byte range.
func ByteRange(first, last int64) string {
	return fmt.Sprintf("bytes=%d-%d", first, last)
}

var ErrBadRange = errors.New("malformed byte range")

// ParseByteRange parses "bytes=a-b" with both ends present. Open ranges are
// not produced by chunk storage and are rejected.
func ParseByteRange(s string) (first, last int64, err error) {
	rng, ok := strings.CutPrefix(s, "bytes=")
	if !ok {
		return 0, 0, ErrBadRange
	}
	a, z, ok := strings.Cut(rng, "-")
	if !ok || a == "" || z == "" {
		return 0, 0, ErrBadRange
	}
	if first, err = strconv.ParseInt(a, 10, 64); err != nil {
		return 0, 0, ErrBadRange
	}
	if last, err = strconv.ParseInt(z, 10, 64); err != nil {
		return 0, 0, ErrBadRange
	}
	if first < 0 || last < first {
		return 0, 0, ErrBadRange
	}
	return first, last, nil
}

// CopySource builds the x-amz-copy-source value for bucket/key.
func CopySource(bucket, key string) string {
	return (&url.URL{Path: bucket + "/" + key}).EscapedPath()
}

// ParseCopySource splits an x-amz-copy-source value back into bucket and key.
func ParseCopySource(s string) (bucket, key string, err error) {
	p, err := url.PathUnescape(strings.TrimPrefix(s, "/"))
	if err != nil {
		return "", "", fmt.Errorf("copy source %q: %w", s, err)
	}
	bucket, key, ok := strings.Cut(p, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("copy source %q: expected bucket/key", s)
	}
	return bucket, key, nil
}
