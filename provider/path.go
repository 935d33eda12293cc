package provider

import (
	"net/url"
	"strings"

	"github.com/franksops/s3xfer/errs"
)

const s3Scheme = "s3://"

// SplitPath splits "bucket/key" (optionally prefixed with s3://) into its
// bucket and key. The key may be empty.
func SplitPath(p string) (bucket, key string, err error) {
	p = strings.TrimPrefix(p, s3Scheme)
	p = strings.TrimPrefix(p, "/")
	bucket, key, _ = strings.Cut(p, "/")
	if bucket == "" {
		return "", "", errs.Configf("invalid remote path %q: missing bucket", p)
	}
	return bucket, key, nil
}

// JoinPath is the inverse of SplitPath.
func JoinPath(bucket, key string) string {
	if key == "" {
		return bucket
	}
	return bucket + "/" + key
}

// copySource builds the URL-encoded x-amz-copy-source value for an object.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}
