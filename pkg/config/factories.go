package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/vaultfs/internal/logger"
	"github.com/marmos91/vaultfs/pkg/store/content"
	contentFs "github.com/marmos91/vaultfs/pkg/store/content/fs"
	contentMemory "github.com/marmos91/vaultfs/pkg/store/content/memory"
	contentS3 "github.com/marmos91/vaultfs/pkg/store/content/s3"
	"github.com/marmos91/vaultfs/pkg/store/directory"
	directoryBadger "github.com/marmos91/vaultfs/pkg/store/directory/badger"
	directoryMemory "github.com/marmos91/vaultfs/pkg/store/directory/memory"
)

// InitLogging configures the global logger from the logging section.
func InitLogging(cfg *LoggingConfig) error {
	return logger.Init(logger.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
		Output: cfg.Output,
	})
}

// CreateContentBackend creates a chunk backend based on configuration.
//
// The Type field selects the implementation; the matching options map is
// decoded into the backend's own config struct via mapstructure.
//
// Supported types:
//   - "memory": process-local, ephemeral
//   - "filesystem": chunk files under a local directory
//   - "s3": objects in an S3 or S3-compatible bucket
func CreateContentBackend(ctx context.Context, cfg *ContentConfig) (content.Backend, error) {
	switch cfg.Type {
	case "memory":
		return contentMemory.NewBackend(), nil
	case "filesystem":
		return createFilesystemContentBackend(ctx, cfg.Filesystem)
	case "s3":
		return createS3ContentBackend(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown content backend type: %q", cfg.Type)
	}
}

// createFilesystemContentBackend creates a filesystem chunk backend.
func createFilesystemContentBackend(ctx context.Context, options map[string]any) (content.Backend, error) {
	type FilesystemOptions struct {
		Path string `mapstructure:"path"`
	}

	var opts FilesystemOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem content backend config: %w", err)
	}

	if opts.Path == "" {
		return nil, fmt.Errorf("filesystem content backend: path is required")
	}

	backend, err := contentFs.NewBackend(ctx, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem content backend: %w", err)
	}

	return backend, nil
}

// createS3ContentBackend creates an S3 chunk backend.
func createS3ContentBackend(ctx context.Context, options map[string]any) (content.Backend, error) {
	type S3Options struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var opts S3Options
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode S3 content backend config: %w", err)
	}

	if opts.Bucket == "" {
		return nil, fmt.Errorf("S3 content backend: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("S3 content backend: region is required")
	}

	client, err := newS3Client(ctx, opts.Region, opts.Endpoint, opts.AccessKeyID, opts.SecretAccessKey, opts.MaxRetries)
	if err != nil {
		return nil, err
	}

	backend, err := contentS3.NewBackend(ctx, contentS3.Config{
		Client:    client,
		Bucket:    opts.Bucket,
		KeyPrefix: opts.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 content backend: %w", err)
	}

	logger.Info("S3 content backend initialized: bucket=%s, region=%s, prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)

	return backend, nil
}

// newS3Client builds an S3 client, optionally pointed at a custom endpoint
// (MinIO, Localstack, Cubbit DS3) with static credentials.
func newS3Client(ctx context.Context, region, endpoint, accessKeyID, secretAccessKey string, maxRetries int) (*s3.Client, error) {
	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(region))

	if endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	if accessKeyID != "" && secretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// Chunk uploads hit S3 often; retry transient failures (502, 503,
	// timeouts) more aggressively than the AWS default of 3 attempts.
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// Path-style addressing for MinIO/Localstack compatibility.
		if endpoint != "" {
			o.UsePathStyle = true
		}
	})

	return client, nil
}

// CreateDirectoryBackend creates a directory backend based on configuration.
//
// Supported types:
//   - "memory": process-local, ephemeral
//   - "badger": embedded BadgerDB, persistent
//
// Backends that hold resources (badger) implement io.Closer; callers should
// type-assert and close them on shutdown.
func CreateDirectoryBackend(ctx context.Context, cfg *DirectoryConfig) (directory.Backend, error) {
	switch cfg.Type {
	case "memory":
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return directoryMemory.NewBackend(), nil
	case "badger":
		return createBadgerDirectoryBackend(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown directory backend type: %q (supported: memory, badger)", cfg.Type)
	}
}

// createBadgerDirectoryBackend creates a BadgerDB-backed directory backend.
func createBadgerDirectoryBackend(ctx context.Context, options map[string]any) (directory.Backend, error) {
	type BadgerOptions struct {
		Path               string `mapstructure:"path"`
		InMemory           bool   `mapstructure:"in_memory"`
		SnapshotCacheBytes int64  `mapstructure:"snapshot_cache_bytes"`
	}

	var opts BadgerOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode badger directory backend config: %w", err)
	}

	if opts.Path == "" && !opts.InMemory {
		return nil, fmt.Errorf("badger directory backend: path is required unless in_memory is set")
	}

	backend, err := directoryBadger.NewBackend(ctx, directoryBadger.Config{
		Path:               opts.Path,
		InMemory:           opts.InMemory,
		SnapshotCacheBytes: opts.SnapshotCacheBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger directory backend: %w", err)
	}

	return backend, nil
}
