package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contentstore"
)

const (
	backendName = "s3"

	// commitMarker is written after every blob of a batch; batches without it are invisible
	commitMarker = ".batch"
)

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	Prefix          string // Optional key prefix, e.g. "tracks/"
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// Backend is an S3-compatible implementation of the musicmarket.ContentStore interface
type Backend struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	config   Config
}

// New creates a new S3-compatible content store
func New(config Config) (musicmarket.ContentStore, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}

	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	backend := &Backend{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   config.Bucket,
		config:   config,
	}

	if config.CreateBucketIfNotExist {
		if err := backend.createBucketIfNotExists(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return backend, nil
}

func (b *Backend) createBucketIfNotExists(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) &&
		!strings.Contains(err.Error(), "NoSuchBucket") {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	}
	if b.config.Region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}

	_, err = b.client.CreateBucket(ctx, createInput)
	if err != nil {
		if strings.Contains(err.Error(), "BucketAlreadyExists") ||
			strings.Contains(err.Error(), "BucketAlreadyOwnedByYou") {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// Put uploads every blob under <prefix><cid>/ and writes the commit marker last.
// When an upload fails the objects already written for the batch are deleted.
func (b *Backend) Put(ctx context.Context, name string, blobs []musicmarket.Blob) (string, error) {
	cid, err := contentstore.ComputeCID(blobs)
	if err != nil {
		return "", musicmarket.Rejected(backendName, "put", name, err)
	}
	for _, blob := range blobs {
		if blob.Name == commitMarker {
			return "", musicmarket.Rejected(backendName, "put", name, fmt.Errorf("blob name %s is reserved", commitMarker))
		}
	}

	if ok, err := b.committed(ctx, cid); err != nil {
		return "", classify(name, err)
	} else if ok {
		return cid, nil
	}

	var written []string
	for _, blob := range blobs {
		key := b.key(cid, blob.Name)
		if err := b.upload(ctx, key, blob.Data, contentType(blob.Name)); err != nil {
			b.rollback(written)
			return "", classify(name, fmt.Errorf("failed to upload %s: %w", blob.Name, err))
		}
		written = append(written, key)
	}

	if err := b.upload(ctx, b.key(cid, commitMarker), []byte(name), "text/plain"); err != nil {
		b.rollback(written)
		return "", classify(name, fmt.Errorf("failed to commit batch: %w", err))
	}

	return cid, nil
}

// Get downloads one object of a committed batch
func (b *Backend) Get(ctx context.Context, cid, objectPath string) (io.ReadCloser, error) {
	if objectPath == commitMarker {
		return nil, musicmarket.ErrObjectNotFound
	}
	ok, err := b.committed(ctx, cid)
	if err != nil {
		return nil, fmt.Errorf("failed to check batch: %w", err)
	}
	if !ok {
		return nil, musicmarket.ErrObjectNotFound
	}

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(cid, objectPath)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, musicmarket.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}

	return result.Body, nil
}

func (b *Backend) upload(ctx context.Context, key string, data []byte, mimeType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	}

	if b.config.EnableSSE {
		switch b.config.SSEAlgorithm {
		case "AES256":
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		case "aws:kms":
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			if b.config.SSEKMSKeyID != "" {
				input.SSEKMSKeyId = aws.String(b.config.SSEKMSKeyID)
			}
		}
	}

	_, err := b.uploader.Upload(ctx, input)
	return err
}

func (b *Backend) committed(ctx context.Context, cid string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(cid, commitMarker)),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, err
}

// rollback deletes partially written objects; it runs detached from the request context
// so a cancelled upload still cleans up.
func (b *Backend) rollback(keys []string) {
	ctx := context.Background()
	for _, key := range keys {
		_, _ = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
	}
}

func (b *Backend) key(cid, name string) string {
	return b.config.Prefix + path.Join(cid, name)
}

var rejectedCodes = map[string]bool{
	"EntityTooLarge":      true,
	"EntityTooSmall":      true,
	"AccessDenied":        true,
	"QuotaExceeded":       true,
	"InvalidRequest":      true,
	"InvalidArgument":     true,
	"InvalidBucketName":   true,
	"NoSuchBucket":        true,
	"KeyTooLongError":     true,
	"MetadataTooLarge":    true,
	"InvalidStorageClass": true,
}

// classify maps S3 API error codes to rejections and everything else to unavailability
func classify(name string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && rejectedCodes[apiErr.ErrorCode()] {
		return musicmarket.Rejected(backendName, "put", name, err)
	}
	return musicmarket.Unavailable(backendName, "put", name, err)
}

func contentType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
