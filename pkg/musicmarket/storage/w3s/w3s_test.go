package w3s_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contentstore"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/storage/w3s"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/uricodec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBlobs = []musicmarket.Blob{
	{Name: "track.mp3", Data: []byte("audio")},
	{Name: "metadata.json", Data: []byte(`{"name":"Song A"}`)},
}

// fakeUploadAPI accepts multipart uploads and answers with the locally computed CID
func fakeUploadAPI(t *testing.T, status int) (*httptest.Server, *[]string) {
	t.Helper()
	var names []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload" || r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "nope"})
			return
		}

		require.NoError(t, r.ParseMultipartForm(1<<20))
		var blobs []musicmarket.Blob
		for _, fh := range r.MultipartForm.File["file"] {
			f, err := fh.Open()
			require.NoError(t, err)
			data, _ := io.ReadAll(f)
			f.Close()
			names = append(names, fh.Filename)
			blobs = append(blobs, musicmarket.Blob{Name: fh.Filename, Data: data})
		}
		cid, err := contentstore.ComputeCID(blobs)
		require.NoError(t, err)
		_ = json.NewEncoder(w).Encode(map[string]string{"cid": cid})
	}))
	t.Cleanup(srv.Close)
	return srv, &names
}

func TestClient_Put(t *testing.T) {
	srv, names := fakeUploadAPI(t, http.StatusOK)
	store, err := w3s.New(w3s.Config{Endpoint: srv.URL, Token: "secret"})
	require.NoError(t, err)

	cid, err := store.Put(context.Background(), "btl-Song A", testBlobs)
	require.NoError(t, err)

	want, _ := contentstore.ComputeCID(testBlobs)
	assert.Equal(t, want, cid)
	assert.Equal(t, []string{"track.mp3", "metadata.json"}, *names)
}

func TestClient_PutErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"payload too large", http.StatusRequestEntityTooLarge, musicmarket.ErrStoreRejected},
		{"forbidden", http.StatusForbidden, musicmarket.ErrStoreRejected},
		{"server error", http.StatusInternalServerError, musicmarket.ErrStoreUnavailable},
		{"bad gateway", http.StatusBadGateway, musicmarket.ErrStoreUnavailable},
		{"rate limited", http.StatusTooManyRequests, musicmarket.ErrStoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := fakeUploadAPI(t, tt.status)
			store, err := w3s.New(w3s.Config{Endpoint: srv.URL, Token: "secret"})
			require.NoError(t, err)

			cid, err := store.Put(context.Background(), "batch", testBlobs)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, cid)
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		store, err := w3s.New(w3s.Config{Endpoint: "http://127.0.0.1:1", Token: "secret"})
		require.NoError(t, err)
		_, err = store.Put(context.Background(), "batch", testBlobs)
		assert.ErrorIs(t, err, musicmarket.ErrStoreUnavailable)
	})

	t.Run("invalid batch", func(t *testing.T) {
		store, err := w3s.New(w3s.Config{Endpoint: "http://127.0.0.1:1", Token: "secret"})
		require.NoError(t, err)
		_, err = store.Put(context.Background(), "batch", nil)
		assert.ErrorIs(t, err, musicmarket.ErrStoreRejected)
	})

	t.Run("garbage cid", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"cid":"not a cid"}`))
		}))
		defer srv.Close()
		store, err := w3s.New(w3s.Config{Endpoint: srv.URL, Token: "secret"})
		require.NoError(t, err)
		_, err = store.Put(context.Background(), "batch", testBlobs)
		assert.ErrorIs(t, err, musicmarket.ErrStoreUnavailable)
	})
}

func TestClient_Get(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ipfs/bafkcid/track.mp3" {
			_, _ = w.Write([]byte("audio"))
			return
		}
		http.NotFound(w, r)
	}))
	defer gw.Close()

	store, err := w3s.New(w3s.Config{Token: "secret", Gateway: uricodec.NewPathGateway(gw.URL)})
	require.NoError(t, err)

	rc, err := store.Get(context.Background(), "bafkcid", "track.mp3")
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "audio", string(data))

	_, err = store.Get(context.Background(), "bafkcid", "missing.mp3")
	assert.ErrorIs(t, err, musicmarket.ErrObjectNotFound)
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := w3s.New(w3s.Config{})
	assert.Error(t, err)
}
