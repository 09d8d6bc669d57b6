// Package s3 implements a physical filesystem driver over Amazon S3 or
// S3-compatible storage.
//
// Physical paths use the "s3://bucket/key" form. Directories are modeled
// the usual object-store way: a key prefix, optionally marked with a
// zero-byte "prefix/" object. Rename and recursive delete operate on the
// whole prefix.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/filesetfs/filesetfs/pkg/driver"
)

const (
	scheme           = "s3://"
	defaultBlockSize = 8 * 1024 * 1024
)

// S3FileSystem implements driver.FileSystem over an S3 client.
//
// One instance serves every bucket reachable with the configured
// credentials; the bucket is parsed out of each physical path.
type S3FileSystem struct {
	client *awss3.Client
}

// New creates an S3 driver from a configured client.
func New(client *awss3.Client) *S3FileSystem {
	return &S3FileSystem{client: client}
}

// NewFactory returns a driver factory for the "s3" scheme.
func NewFactory(client *awss3.Client) driver.Factory {
	return func(ctx context.Context, uri string) (driver.FileSystem, error) {
		if client == nil {
			return nil, fmt.Errorf("s3 driver is not configured")
		}
		return New(client), nil
	}
}

// splitPath parses "s3://bucket/key" into bucket and key.
func splitPath(path string) (bucket, key string, err error) {
	if !strings.HasPrefix(path, scheme) {
		return "", "", fmt.Errorf("path %q is not an s3 URI", path)
	}
	rest := strings.TrimPrefix(path, scheme)
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("path %q has no bucket", path)
	}
	bucket = parts[0]
	if len(parts) == 2 {
		key = parts[1]
	}
	return bucket, strings.TrimSuffix(key, "/"), nil
}

func (s *S3FileSystem) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return result.Body, nil
}

func (s *S3FileSystem) Create(ctx context.Context, path string, overwrite bool) (io.WriteCloser, error) {
	bucket, key, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	if !overwrite {
		if _, err := s.head(ctx, bucket, key); err == nil {
			return nil, &os.PathError{Op: "create", Path: path, Err: os.ErrExist}
		}
	}
	return &s3Writer{ctx: ctx, client: s.client, bucket: bucket, key: key}, nil
}

func (s *S3FileSystem) Append(ctx context.Context, path string) (io.WriteCloser, error) {
	bucket, key, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	// S3 objects are immutable: appending is read-modify-write
	existing, err := s.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = existing.Close() }()

	data, err := io.ReadAll(existing)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing object for append: %w", err)
	}
	return &s3Writer{ctx: ctx, client: s.client, bucket: bucket, key: key, buf: data}, nil
}

func (s *S3FileSystem) Rename(ctx context.Context, src, dst string) error {
	srcBucket, srcKey, err := splitPath(src)
	if err != nil {
		return err
	}
	dstBucket, dstKey, err := splitPath(dst)
	if err != nil {
		return err
	}

	// single object fast path
	if _, err := s.head(ctx, srcBucket, srcKey); err == nil {
		if err := s.copyObject(ctx, srcBucket, srcKey, dstBucket, dstKey); err != nil {
			return err
		}
		return s.deleteObject(ctx, srcBucket, srcKey)
	}

	// prefix rename: copy every object under src, then delete the originals
	keys, err := s.listKeys(ctx, srcBucket, srcKey+"/")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return &os.PathError{Op: "rename", Path: src, Err: os.ErrNotExist}
	}
	for _, k := range keys {
		target := dstKey + strings.TrimPrefix(k, srcKey)
		if err := s.copyObject(ctx, srcBucket, k, dstBucket, target); err != nil {
			return err
		}
	}
	for _, k := range keys {
		if err := s.deleteObject(ctx, srcBucket, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *S3FileSystem) Delete(ctx context.Context, path string, recursive bool) error {
	bucket, key, err := splitPath(path)
	if err != nil {
		return err
	}

	keys, err := s.listKeys(ctx, bucket, key+"/")
	if err != nil {
		return err
	}
	if len(keys) > 0 && !recursive {
		return &os.PathError{Op: "delete", Path: path, Err: fmt.Errorf("directory not empty")}
	}
	for _, k := range keys {
		if err := s.deleteObject(ctx, bucket, k); err != nil {
			return err
		}
	}
	// remove the object itself and any directory marker
	_ = s.deleteObject(ctx, bucket, key+"/")
	return s.deleteObject(ctx, bucket, key)
}

func (s *S3FileSystem) Stat(ctx context.Context, path string) (*driver.FileInfo, error) {
	bucket, key, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	head, err := s.head(ctx, bucket, key)
	if err == nil {
		return &driver.FileInfo{
			Path:        path,
			Size:        aws.ToInt64(head.ContentLength),
			ModTime:     aws.ToTime(head.LastModified),
			Mode:        0644,
			Replication: 1,
			BlockSize:   defaultBlockSize,
		}, nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	// directory: marker object or any key under the prefix
	keys, err := s.listKeys(ctx, bucket, key+"/")
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		return &driver.FileInfo{Path: path, IsDir: true, Mode: 0755, ModTime: time.Now()}, nil
	}
	return nil, &os.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
}

func (s *S3FileSystem) List(ctx context.Context, path string) ([]*driver.FileInfo, error) {
	bucket, key, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	prefix := key + "/"
	var infos []*driver.FileInfo
	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(aws.ToString(cp.Prefix), "/")
			infos = append(infos, &driver.FileInfo{
				Path:    scheme + bucket + "/" + name,
				IsDir:   true,
				Mode:    0755,
				ModTime: time.Now(),
			})
		}
		for _, obj := range page.Contents {
			objKey := aws.ToString(obj.Key)
			if objKey == prefix {
				// the directory marker itself
				continue
			}
			infos = append(infos, &driver.FileInfo{
				Path:        scheme + bucket + "/" + objKey,
				Size:        aws.ToInt64(obj.Size),
				ModTime:     aws.ToTime(obj.LastModified),
				Mode:        0644,
				Replication: 1,
				BlockSize:   defaultBlockSize,
			})
		}
	}
	return infos, nil
}

func (s *S3FileSystem) MkdirAll(ctx context.Context, path string) error {
	bucket, key, err := splitPath(path)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key + "/"),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return fmt.Errorf("failed to create directory marker: %w", err)
	}
	return nil
}

func (s *S3FileSystem) DefaultReplication() uint32 { return 1 }

func (s *S3FileSystem) DefaultBlockSize() int64 { return defaultBlockSize }

func (s *S3FileSystem) SetWorkingDirectory(path string) error { return nil }

func (s *S3FileSystem) Close() error { return nil }

func (s *S3FileSystem) head(ctx context.Context, bucket, key string) (*awss3.HeadObjectOutput, error) {
	return s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
}

func (s *S3FileSystem) copyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	_, err := s.client.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(srcBucket + "/" + srcKey),
	})
	if err != nil {
		return fmt.Errorf("failed to copy %s/%s: %w", srcBucket, srcKey, err)
	}
	return nil
}

func (s *S3FileSystem) deleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *S3FileSystem) listKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// s3Writer buffers the object body and uploads on Close.
type s3Writer struct {
	ctx    context.Context
	client *awss3.Client
	bucket string
	key    string
	buf    []byte
	closed bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, os.ErrClosed
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	_, err := w.client.PutObject(w.ctx, &awss3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buf),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", w.bucket, w.key, err)
	}
	return nil
}
