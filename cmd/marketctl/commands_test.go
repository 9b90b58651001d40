package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contentstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func TestGatewayCommands(t *testing.T) {
	t.Setenv("GATEWAY", "path")
	t.Setenv("GATEWAY_BASE_URL", "http://localhost:8080")

	out, err := execute(t, "gateway-url", "bafkabc", "my song.mp3")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/ipfs/bafkabc/my%20song.mp3", out)

	out, err = execute(t, "asset-uri", "bafkabc", "my song.mp3")
	require.NoError(t, err)
	assert.Equal(t, "ipfs://bafkabc/my%20song.mp3", out)

	out, err = execute(t, "decode-cid", "http://localhost:8080/ipfs/bafkabc/metadata.json")
	require.NoError(t, err)
	assert.Equal(t, "bafkabc", out)

	_, err = execute(t, "decode-cid", "https://example.com/nothing")
	assert.Error(t, err)
}

func TestCIDCommand(t *testing.T) {
	p := writeFile(t, "track.mp3", "audio")

	out, err := execute(t, "cid", p)
	require.NoError(t, err)

	want, err := contentstore.ComputeCID([]musicmarket.Blob{{Name: "track.mp3", Data: []byte("audio")}})
	require.NoError(t, err)
	assert.Equal(t, want, out)
}

func TestPublishCommand(t *testing.T) {
	p := writeFile(t, "track.mp3", "audio")

	out, err := execute(t, "publish", p,
		"--name", "Song A", "--description", "first", "--artist", "Band", "--price", "0.5")
	require.NoError(t, err)

	var result musicmarket.PublishResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.NotEmpty(t, result.CID)
	assert.Equal(t, "ipfs://"+result.CID+"/track.mp3", result.AudioURI)

	_, err = execute(t, "publish", p, "--name", "Song A", "--artist", "Band", "--price", "0.5")
	assert.ErrorIs(t, err, musicmarket.ErrMissingField)

	_, err = execute(t, "publish", p,
		"--name", "Song A", "--description", "first", "--artist", "Band", "--price", "0.5",
		"--list", "--account", "bob")
	assert.Error(t, err)
}

func TestMarketCommand(t *testing.T) {
	out, err := execute(t, "market")
	require.NoError(t, err)
	assert.Contains(t, out, "TOKEN")

	_, err = execute(t, "resolve", "1")
	assert.ErrorIs(t, err, musicmarket.ErrTrackNotListed)

	_, err = execute(t, "resolve", "https://bafkmissing.invalid/metadata.json")
	assert.Error(t, err)
}

func TestResolveMetadataURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Song A","description":"d","artist":"Band","price":"0.5","path":"my%20track.mp3"}`))
	}))
	defer srv.Close()

	t.Setenv("GATEWAY", "path")
	t.Setenv("GATEWAY_BASE_URL", srv.URL)

	out, err := execute(t, "resolve", srv.URL+"/ipfs/bafkabc/metadata.json",
		"--token-id", "4", "--price", "0.5", "--seller", "0x2000000000000000000000000000000000000002")
	require.NoError(t, err)

	var view musicmarket.TokenView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, uint64(4), view.TokenID)
	assert.Equal(t, "Song A", view.Name)
	assert.Equal(t, srv.URL+"/ipfs/bafkabc/my%20track.mp3", view.AudioURL)
	assert.Equal(t, "500000000000000000", view.Price.String())

	_, err = execute(t, "resolve", srv.URL+"/ipfs/bafkabc/metadata.json", "--price", "free")
	assert.ErrorIs(t, err, musicmarket.ErrInvalidPrice)
}

func TestArtistCommand(t *testing.T) {
	out, err := execute(t, "artist", "check", "0x2000000000000000000000000000000000000002")
	require.NoError(t, err)
	assert.Equal(t, "false", out)

	out, err = execute(t, "artist", "add", "0x2000000000000000000000000000000000000002")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered artist")

	_, err = execute(t, "artist", "check", "nobody")
	assert.Error(t, err)
}

func TestMigrateRequiresPostgres(t *testing.T) {
	_, err := execute(t, "migrate", "up")
	assert.Error(t, err)
}
