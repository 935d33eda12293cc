package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type fakeObject struct {
	data        []byte
	contentType string
	tags        map[string]string
	modTime     time.Time
}

// fakeS3 is an in-memory S3API keyed by bucket then key.
type fakeS3 struct {
	mu       sync.Mutex
	buckets  map[string]map[string]*fakeObject
	pageSize int
	denied   bool
	copies   []string
}

func newFakeS3(buckets ...string) *fakeS3 {
	f := &fakeS3{buckets: make(map[string]map[string]*fakeObject), pageSize: 1000}
	for _, b := range buckets {
		f.buckets[b] = make(map[string]*fakeObject)
	}
	return f
}

func (f *fakeS3) put(bucket, key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[bucket][key] = &fakeObject{data: data, modTime: time.Unix(1700000000, 0).UTC()}
}

func (f *fakeS3) object(bucket, key string) (*fakeObject, error) {
	if f.denied {
		return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
	}
	objs, ok := f.buckets[bucket]
	if !ok {
		return nil, &types.NoSuchBucket{}
	}
	obj, ok := objs[key]
	if !ok {
		return nil, &types.NotFound{}
	}
	return obj, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	objs, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &types.NoSuchBucket{}
	}
	objs[aws.ToString(in.Key)] = &fakeObject{data: data, contentType: aws.ToString(in.ContentType), modTime: time.Now()}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, fmt.Errorf("multipart not supported by fake")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart not supported by fake")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart not supported by fake")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied {
		return nil, &smithy.GenericAPIError{Code: "InvalidAccessKeyId", Message: "bad key"}
	}
	objs, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &types.NoSuchBucket{}
	}

	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	var keys []string
	for k := range objs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		fmt.Sscanf(tok, "%d", &start)
	}

	out := &s3.ListObjectsV2Output{}
	seen := map[string]bool{}
	end := start + f.pageSize
	if end > len(keys) {
		end = len(keys)
	}
	for _, k := range keys[start:end] {
		rest := strings.TrimPrefix(k, prefix)
		if delim != "" {
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+len(delim)]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		obj := objs[k]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(obj.data))),
			LastModified: aws.Time(obj.modTime),
		})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(fmt.Sprintf("%d", end))
	}
	return out, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, err := f.object(aws.ToString(in.Bucket), aws.ToString(in.Key))
	if err != nil {
		return nil, err
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		LastModified:  aws.Time(obj.modTime),
	}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, err := f.object(aws.ToString(in.Bucket), aws.ToString(in.Key))
	if err != nil {
		if _, ok := err.(*types.NotFound); ok {
			return nil, &types.NoSuchKey{}
		}
		return nil, err
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentLength: aws.Int64(int64(len(obj.data))),
		LastModified:  aws.Time(obj.modTime),
	}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	objs, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &types.NoSuchBucket{}
	}
	delete(objs, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) CopyObject(ctx context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src := aws.ToString(in.CopySource)
	f.copies = append(f.copies, src)
	srcBucket, srcKey, _ := strings.Cut(src, "/")
	obj, err := f.object(srcBucket, srcKey)
	if err != nil {
		return nil, err
	}
	objs, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &types.NoSuchBucket{}
	}
	dup := *obj
	if in.MetadataDirective == types.MetadataDirectiveReplace {
		dup.contentType = aws.ToString(in.ContentType)
	}
	objs[aws.ToString(in.Key)] = &dup
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) PutObjectTagging(ctx context.Context, in *s3.PutObjectTaggingInput, _ ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, err := f.object(aws.ToString(in.Bucket), aws.ToString(in.Key))
	if err != nil {
		return nil, err
	}
	obj.tags = map[string]string{}
	for _, tag := range in.Tagging.TagSet {
		obj.tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return &s3.PutObjectTaggingOutput{}, nil
}

func (f *fakeS3) ListBuckets(ctx context.Context, in *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for b := range f.buckets {
		names = append(names, b)
	}
	sort.Strings(names)
	out := &s3.ListBucketsOutput{}
	for _, n := range names {
		out.Buckets = append(out.Buckets, types.Bucket{Name: aws.String(n)})
	}
	return out, nil
}
