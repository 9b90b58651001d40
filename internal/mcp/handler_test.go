package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/presets"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	artist = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

func setupHandler(t *testing.T) (*MarketHandler, *musicmarket.PublishResult, uint64) {
	t.Helper()
	ctx := context.Background()

	app := presets.NewTesting(t, presets.WithTestOwner(owner), presets.WithTestArtists(artist))

	session, err := app.Session(ctx, artist)
	require.NoError(t, err)
	res, tokenID, err := session.ListTrack(ctx,
		musicmarket.Asset{FileName: "song one.mp3", Data: []byte("audio")},
		musicmarket.TrackInfo{Name: "Song One", Description: "d", Artist: "Band", Price: "1.5"},
	)
	require.NoError(t, err)

	return NewMarketHandler(app), res, tokenID
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestRegisterTools(t *testing.T) {
	h, _, _ := setupHandler(t)
	s := server.NewMCPServer("test", "1.0.0")
	h.RegisterTools(s)
}

func TestListMarket(t *testing.T) {
	h, res, tokenID := setupHandler(t)

	out, err := h.handleListMarket(context.Background(), call(nil))
	require.NoError(t, err)
	require.False(t, out.IsError)

	var body struct {
		Tracks     []track `json:"tracks"`
		Unresolved int     `json:"unresolved"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, out)), &body))
	assert.Equal(t, 0, body.Unresolved)
	require.Len(t, body.Tracks, 1)
	assert.Equal(t, tokenID, body.Tracks[0].TokenID)
	assert.Equal(t, "1.5", body.Tracks[0].Price)
	assert.Equal(t, res.AudioGatewayURL, body.Tracks[0].AudioURL)
}

func TestResolveToken(t *testing.T) {
	h, _, tokenID := setupHandler(t)
	ctx := context.Background()

	out, err := h.handleResolveToken(ctx, call(map[string]any{"token_id": "1"}))
	require.NoError(t, err)
	require.False(t, out.IsError)
	var got track
	require.NoError(t, json.Unmarshal([]byte(text(t, out)), &got))
	assert.Equal(t, tokenID, got.TokenID)
	assert.Equal(t, "Song One", got.Name)
	assert.Equal(t, artist.Hex(), got.Seller)

	out, err = h.handleResolveToken(ctx, call(map[string]any{"token_id": "9"}))
	require.NoError(t, err)
	assert.True(t, out.IsError)

	out, err = h.handleResolveToken(ctx, call(map[string]any{"token_id": "x"}))
	require.NoError(t, err)
	assert.True(t, out.IsError)
}

func TestGatewayURLAndDecode(t *testing.T) {
	h, res, _ := setupHandler(t)
	ctx := context.Background()

	out, err := h.handleGatewayURL(ctx, call(map[string]any{"cid": res.CID, "path": "song one.mp3"}))
	require.NoError(t, err)
	require.False(t, out.IsError)
	var urls map[string]string
	require.NoError(t, json.Unmarshal([]byte(text(t, out)), &urls))
	assert.Equal(t, res.AudioGatewayURL, urls["gateway_url"])
	assert.Equal(t, res.AudioURI, urls["asset_uri"])

	out, err = h.handleGatewayURL(ctx, call(map[string]any{"cid": "nope", "path": "a.mp3"}))
	require.NoError(t, err)
	assert.True(t, out.IsError)

	out, err = h.handleDecodeCID(ctx, call(map[string]any{"url": res.MetadataGatewayURL}))
	require.NoError(t, err)
	assert.Equal(t, res.CID, text(t, out))

	out, err = h.handleDecodeCID(ctx, call(map[string]any{"url": "https://example.com/x"}))
	require.NoError(t, err)
	assert.True(t, out.IsError)
}

func TestCheckArtist(t *testing.T) {
	h, _, _ := setupHandler(t)
	ctx := context.Background()

	out, err := h.handleCheckArtist(ctx, call(map[string]any{"address": artist.Hex()}))
	require.NoError(t, err)
	assert.Equal(t, "true", text(t, out))

	out, err = h.handleCheckArtist(ctx, call(map[string]any{"address": owner.Hex()}))
	require.NoError(t, err)
	assert.Equal(t, "false", text(t, out))

	out, err = h.handleCheckArtist(ctx, call(map[string]any{"address": "bob"}))
	require.NoError(t, err)
	assert.True(t, out.IsError)
}
