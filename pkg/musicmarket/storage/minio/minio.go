package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contentstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	backendName  = "minio"
	commitMarker = ".batch"
)

// Config options for the MinIO backend
type Config struct {
	Endpoint        string // host:port
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
	UseSSL          bool
	Region          string
	CreateBucket    bool // Create the bucket when it does not exist
}

// Backend stores batches in a MinIO bucket under <prefix><cid>/
type Backend struct {
	client *minio.Client
	config Config
}

// New creates a MinIO content store
func New(config Config) (musicmarket.ContentStore, error) {
	if config.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	backend := &Backend{client: client, config: config}
	if config.CreateBucket {
		if err := backend.ensureBucket(context.Background()); err != nil {
			return nil, err
		}
	}
	return backend, nil
}

func (b *Backend) ensureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.config.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.config.Bucket, minio.MakeBucketOptions{Region: b.config.Region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Put uploads every blob and then the commit marker, removing written objects on failure
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
			return "", classify(name, err)
		}
		written = append(written, key)
	}

	if err := b.upload(ctx, b.key(cid, commitMarker), []byte(name), "text/plain"); err != nil {
		b.rollback(written)
		return "", classify(name, err)
	}
	return cid, nil
}

// Get returns one object of a committed batch
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

	key := b.key(cid, objectPath)
	if _, err := b.client.StatObject(ctx, b.config.Bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil, musicmarket.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	object, err := b.client.GetObject(ctx, b.config.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return object, nil
}

func (b *Backend) upload(ctx context.Context, key string, data []byte, mimeType string) error {
	_, err := b.client.PutObject(ctx, b.config.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: mimeType})
	return err
}

func (b *Backend) committed(ctx context.Context, cid string) (bool, error) {
	_, err := b.client.StatObject(ctx, b.config.Bucket, b.key(cid, commitMarker), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func (b *Backend) rollback(keys []string) {
	ctx := context.Background()
	for _, key := range keys {
		_ = b.client.RemoveObject(ctx, b.config.Bucket, key, minio.RemoveObjectOptions{})
	}
}

func (b *Backend) key(cid, name string) string {
	return b.config.Prefix + path.Join(cid, name)
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

// classify treats client errors as rejections, except throttling and timeouts
func classify(name string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "EntityTooLarge" || resp.Code == "AccessDenied" || resp.Code == "QuotaExceeded":
		return musicmarket.Rejected(backendName, "put", name, err)
	case resp.StatusCode >= 400 && resp.StatusCode < 500 &&
		resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests:
		return musicmarket.Rejected(backendName, "put", name, err)
	default:
		return musicmarket.Unavailable(backendName, "put", name, err)
	}
}

func contentType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
