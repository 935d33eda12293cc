package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/franksops/s3xfer/errs"
)

// ensure interface is implemented
var _ ObjectStore = (*S3Store)(nil)

// S3API is the subset of the S3 client used by S3Store. It is a superset of
// manager.UploadAPIClient so the same value can feed the uploader.
type S3API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient

	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	PutObjectTagging(ctx context.Context, params *s3.PutObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error)
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Store implements ObjectStore on top of the AWS S3 API.
type S3Store struct {
	client   S3API
	uploader *manager.Uploader
}

// NewS3Store wraps an S3 client. Each worker should own its own store.
func NewS3Store(client S3API) *S3Store {
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
	}
}

// List returns the children of path. Flat listings report common prefixes as
// directories; recursive listings report every object. A path naming a
// single object lists as that object. An empty result for a non-empty prefix
// is reported as errs.ErrNotFound.
func (p *S3Store) List(ctx context.Context, pth string, recursive bool) ([]Entry, error) {
	bucket, key, err := SplitPath(pth)
	if err != nil {
		return nil, err
	}

	dirPrefix := strings.TrimSuffix(key, "/")
	if dirPrefix != "" {
		dirPrefix += "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(dirPrefix),
	}
	if !recursive {
		input.Delimiter = aws.String("/")
	}

	var entries []Entry
	paginator := s3.NewListObjectsV2Paginator(p.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errs.Remote("list", bucket, key, classify(err))
		}

		for _, cp := range out.CommonPrefixes {
			name := strings.TrimSuffix(aws.ToString(cp.Prefix), "/")
			entries = append(entries, Entry{
				Key:  JoinPath(bucket, name),
				Type: TypeDirectory,
			})
		}

		for _, obj := range out.Contents {
			objKey := aws.ToString(obj.Key)
			// directory placeholders
			if objKey == dirPrefix || strings.HasSuffix(objKey, "/") {
				continue
			}
			entries = append(entries, Entry{
				Key:     JoinPath(bucket, objKey),
				Size:    aws.ToInt64(obj.Size),
				Type:    TypeFile,
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}

	if len(entries) > 0 || key == "" {
		return entries, nil
	}

	// maybe the path is an object rather than a prefix
	entry, err := p.Stat(ctx, pth)
	if err != nil {
		return nil, err
	}
	return []Entry{entry}, nil
}

// Stat returns metadata for a single object.
func (p *S3Store) Stat(ctx context.Context, pth string) (Entry, error) {
	bucket, key, err := SplitPath(pth)
	if err != nil {
		return Entry{}, err
	}

	out, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Entry{}, errs.Remote("head", bucket, key, classify(err))
	}

	return Entry{
		Key:     JoinPath(bucket, key),
		Size:    aws.ToInt64(out.ContentLength),
		Type:    TypeFile,
		ModTime: aws.ToTime(out.LastModified),
	}, nil
}

// Get opens an object for streaming reads.
func (p *S3Store) Get(ctx context.Context, pth string) (io.ReadCloser, Entry, error) {
	bucket, key, err := SplitPath(pth)
	if err != nil {
		return nil, Entry{}, err
	}

	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, Entry{}, errs.Remote("get", bucket, key, classify(err))
	}

	return out.Body, Entry{
		Key:     JoinPath(bucket, key),
		Size:    aws.ToInt64(out.ContentLength),
		Type:    TypeFile,
		ModTime: aws.ToTime(out.LastModified),
	}, nil
}

// Put streams body to the object, switching to multipart for large bodies.
func (p *S3Store) Put(ctx context.Context, pth string, body io.Reader, contentType string) error {
	bucket, key, err := SplitPath(pth)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := p.uploader.Upload(ctx, input); err != nil {
		return errs.Remote("put", bucket, key, classify(err))
	}
	return nil
}

// Remove deletes a single object.
func (p *S3Store) Remove(ctx context.Context, pth string) error {
	bucket, key, err := SplitPath(pth)
	if err != nil {
		return err
	}

	_, err = p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return errs.Remote("rm", bucket, key, classify(err))
}

// SetTags replaces the tag set of an object. Tags are sent sorted by key.
func (p *S3Store) SetTags(ctx context.Context, pth string, tags map[string]string) error {
	bucket, key, err := SplitPath(pth)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, k)
	}
	sort.Strings(names)

	tagSet := make([]types.Tag, 0, len(names))
	for _, k := range names {
		tagSet = append(tagSet, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}

	_, err = p.client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket:  aws.String(bucket),
		Key:     aws.String(key),
		Tagging: &types.Tagging{TagSet: tagSet},
	})
	return errs.Remote("tag", bucket, key, classify(err))
}

// SetContentType rewrites the object's metadata in place via a self-copy.
func (p *S3Store) SetContentType(ctx context.Context, pth string, contentType string) error {
	bucket, key, err := SplitPath(pth)
	if err != nil {
		return err
	}

	_, err = p.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(copySource(bucket, key)),
		ContentType:       aws.String(contentType),
		MetadataDirective: types.MetadataDirectiveReplace,
	})
	return errs.Remote("setxattr", bucket, key, classify(err))
}

// Copy performs a server-side copy; no object bytes pass through the caller.
func (p *S3Store) Copy(ctx context.Context, src, dst string) error {
	srcBucket, srcKey, err := SplitPath(src)
	if err != nil {
		return err
	}
	dstBucket, dstKey, err := SplitPath(dst)
	if err != nil {
		return err
	}

	_, err = p.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(srcBucket, srcKey)),
	})
	if err != nil {
		return errs.Remote("copy", dstBucket, dstKey, fmt.Errorf("from %s: %w", src, classify(err)))
	}
	return nil
}

// Buckets returns the names of all buckets visible to the credentials.
func (p *S3Store) Buckets(ctx context.Context) ([]string, error) {
	out, err := p.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, errs.Remote("buckets", "", "", classify(err))
	}

	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

// classify tags SDK errors with the errs sentinels they correspond to.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var (
		noKey    *types.NoSuchKey
		noBucket *types.NoSuchBucket
		notFound *types.NotFound
	)
	if errors.As(err, &noKey) || errors.As(err, &noBucket) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %w", errs.ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return fmt.Errorf("%w: %w", errs.ErrNotFound, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch",
			"ExpiredToken", "InvalidToken", "Forbidden":
			return fmt.Errorf("%w: %w", errs.ErrAccessDenied, err)
		}
	}
	return err
}
