package memory_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	memorystorage "github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	blobs := []musicmarket.Blob{
		{Name: "track.mp3", Data: []byte("audio")},
		{Name: "metadata.json", Data: []byte(`{"name":"Song A"}`)},
	}

	var cid string
	t.Run("Put", func(t *testing.T) {
		var err error
		cid, err = backend.Put(ctx, "btl-Song A", blobs)
		require.NoError(t, err)
		assert.NotEmpty(t, cid)
	})

	t.Run("Get", func(t *testing.T) {
		reader, err := backend.Get(ctx, cid, "track.mp3")
		require.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "audio", string(data))
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := backend.Get(ctx, cid, "nope.mp3")
		assert.ErrorIs(t, err, musicmarket.ErrObjectNotFound)

		_, err = backend.Get(ctx, "bafkunknown", "track.mp3")
		assert.ErrorIs(t, err, musicmarket.ErrObjectNotFound)
	})

	t.Run("PutSameBatchTwice", func(t *testing.T) {
		again, err := backend.Put(ctx, "btl-Song A-later", blobs)
		require.NoError(t, err)
		assert.Equal(t, cid, again)
	})

	t.Run("PutInvalidBatch", func(t *testing.T) {
		_, err := backend.Put(ctx, "empty", nil)
		assert.ErrorIs(t, err, musicmarket.ErrStoreRejected)

		var storeErr *musicmarket.StoreError
		require.True(t, errors.As(err, &storeErr))
		assert.Equal(t, "memory", storeErr.Backend)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := backend.Put(cctx, "cancelled", blobs)
		assert.ErrorIs(t, err, musicmarket.ErrStoreUnavailable)
	})
}

func TestMemoryBackend_SecondBlobRejected(t *testing.T) {
	backend := memorystorage.NewWithConfig(memorystorage.Config{QuotaBytes: 10})
	ctx := context.Background()

	_, err := backend.Put(ctx, "too-big", []musicmarket.Blob{
		{Name: "track.mp3", Data: []byte("12345678")},
		{Name: "metadata.json", Data: []byte("12345")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, musicmarket.ErrStoreRejected)
	assert.Contains(t, err.Error(), "metadata.json")

	assert.Equal(t, 0, backend.Len())
	assert.Equal(t, int64(0), backend.Used())
}

func TestMemoryBackend_MaxBlobSize(t *testing.T) {
	backend := memorystorage.NewWithConfig(memorystorage.Config{MaxBlobSize: 4})
	ctx := context.Background()

	_, err := backend.Put(ctx, "big", []musicmarket.Blob{{Name: "a", Data: []byte("12345")}})
	assert.ErrorIs(t, err, musicmarket.ErrStoreRejected)

	cid, err := backend.Put(ctx, "small", []musicmarket.Blob{{Name: "a", Data: []byte("1234")}})
	require.NoError(t, err)
	name, ok := backend.BatchName(cid)
	require.True(t, ok)
	assert.Equal(t, "small", name)
}
