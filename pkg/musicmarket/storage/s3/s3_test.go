package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestS3Backend_BasicConfiguration tests the configuration and creation of S3 backend
func TestS3Backend_BasicConfiguration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("DefaultRegion", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		if err != nil {
			assert.NotContains(t, err.Error(), "bucket name is required")
			return
		}
		b, ok := backend.(*Backend)
		require.True(t, ok)
		assert.Equal(t, "us-east-1", b.config.Region)
	})

	t.Run("Prefix", func(t *testing.T) {
		b := &Backend{config: Config{Prefix: "tracks/"}}
		assert.Equal(t, "tracks/bafkcid/track.mp3", b.key("bafkcid", "track.mp3"))
		assert.Equal(t, "tracks/bafkcid/.batch", b.key("bafkcid", commitMarker))
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantRejected bool
	}{
		{"too large", &smithy.GenericAPIError{Code: "EntityTooLarge"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, true},
		{"wrapped quota", fmt.Errorf("upload: %w", &smithy.GenericAPIError{Code: "QuotaExceeded"}), true},
		{"internal error", &smithy.GenericAPIError{Code: "InternalError"}, false},
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown"}, false},
		{"network", errors.New("dial tcp: connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("batch", tt.err)
			if tt.wantRejected {
				assert.ErrorIs(t, err, musicmarket.ErrStoreRejected)
				assert.NotErrorIs(t, err, musicmarket.ErrStoreUnavailable)
			} else {
				assert.ErrorIs(t, err, musicmarket.ErrStoreUnavailable)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("metadata.json"))
	assert.Equal(t, "application/octet-stream", contentType("noext"))
}

func TestPutRejectsReservedName(t *testing.T) {
	b := &Backend{}
	_, err := b.Put(context.Background(), "batch", []musicmarket.Blob{{Name: commitMarker, Data: []byte("x")}})
	assert.ErrorIs(t, err, musicmarket.ErrStoreRejected)
}

// TestS3Backend_Integration runs against a real S3/MinIO endpoint when configured
func TestS3Backend_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	endpoint := os.Getenv("S3_TEST_ENDPOINT")
	bucket := os.Getenv("S3_TEST_BUCKET")
	if endpoint == "" || bucket == "" {
		t.Skip("Skipping integration test: S3/MinIO environment variables not set")
	}

	backend, err := New(Config{
		Endpoint:               endpoint,
		Bucket:                 bucket,
		AccessKeyID:            os.Getenv("S3_TEST_ACCESS_KEY"),
		SecretAccessKey:        os.Getenv("S3_TEST_SECRET_KEY"),
		UsePathStyle:           true,
		Prefix:                 fmt.Sprintf("it-%d/", time.Now().UnixNano()),
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	ctx := context.Background()
	cid, err := backend.Put(ctx, "btl-it", []musicmarket.Blob{
		{Name: "track.mp3", Data: []byte("audio")},
		{Name: "metadata.json", Data: []byte(`{}`)},
	})
	require.NoError(t, err)

	rc, err := backend.Get(ctx, cid, "track.mp3")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))

	_, err = backend.Get(ctx, cid, "missing.mp3")
	assert.ErrorIs(t, err, musicmarket.ErrObjectNotFound)
}
