// Package s3 provides a chunk backend on Amazon S3 or S3-compatible storage
// (MinIO, Cubbit DS3, Ceph RGW).
//
// Each chunk is one object whose key is the chunk's content address under an
// optional prefix. Because content addressing makes every write of a given
// key carry identical bytes, S3's last-write-wins semantics are harmless and
// no coordination between writers is needed.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/vaultfs/pkg/metadata"
	"github.com/marmos91/vaultfs/pkg/store/content"
)

// Backend implements content.Backend over an S3 bucket.
//
// Safe for concurrent use by multiple goroutines.
type Backend struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

var _ content.Backend = (*Backend)(nil)

// Config contains configuration for the S3 chunk backend.
type Config struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the S3 bucket name. The bucket must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys.
	// Example: "vaultfs/chunks/" results in keys like "vaultfs/chunks/ab12...".
	KeyPrefix string
}

// NewBackend creates an S3 chunk backend and verifies bucket access with a
// HeadBucket call. The bucket is not created if missing.
func NewBackend(ctx context.Context, cfg Config) (*Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &Backend{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// objectKey returns the full S3 object key for a chunk ID.
func (b *Backend) objectKey(id metadata.ChunkID) string {
	return b.keyPrefix + string(id)
}

// PutChunk uploads the chunk unless an object with the same content address
// already exists. The existence probe is a HeadObject, which is far cheaper
// than re-uploading a multi-megabyte chunk that deduplication would discard.
func (b *Backend) PutChunk(ctx context.Context, id metadata.ChunkID, data []byte) error {
	exists, err := b.HasChunk(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(id)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return metadata.WrapStorageFailure("put chunk object", err)
	}

	return nil
}

// GetChunk downloads the full chunk object.
func (b *Backend) GetChunk(ctx context.Context, id metadata.ChunkID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(id)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, metadata.NewStoreError(metadata.ErrNotFound, "chunk not found", string(id))
		}
		return nil, metadata.WrapStorageFailure("get chunk object", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, metadata.WrapStorageFailure("read chunk object body", err)
	}

	return data, nil
}

// HasChunk checks object existence with a HeadObject request.
func (b *Backend) HasChunk(ctx context.Context, id metadata.ChunkID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(id)),
	})
	if err != nil {
		// HeadObject reports a missing key as types.NotFound, not NoSuchKey.
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, metadata.WrapStorageFailure("head chunk object", err)
	}

	return true, nil
}
