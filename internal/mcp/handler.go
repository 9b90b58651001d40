package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contentstore"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MarketHandler exposes read-only marketplace tools over MCP
type MarketHandler struct {
	app *musicmarket.App
}

// NewMarketHandler creates a handler backed by app
func NewMarketHandler(app *musicmarket.App) *MarketHandler {
	return &MarketHandler{app: app}
}

// track is the tool representation of a resolved token
type track struct {
	TokenID     uint64 `json:"token_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Artist      string `json:"artist"`
	Price       string `json:"price"`
	Seller      string `json:"seller"`
	AudioURL    string `json:"audio_url"`
}

func toTrack(v *musicmarket.TokenView) track {
	return track{
		TokenID:     v.TokenID,
		Name:        v.Name,
		Description: v.Description,
		Artist:      v.Artist,
		Price:       musicmarket.FormatEther(v.Price),
		Seller:      v.Seller.Hex(),
		AudioURL:    v.AudioURL,
	}
}

// RegisterTools registers the marketplace tools with the MCP server
func (h *MarketHandler) RegisterTools(s *server.MCPServer) {
	s.AddTool(mcp.Tool{
		Name:        "list_market",
		Description: "List the tracks currently for sale with their resolved metadata",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
		},
	}, h.handleListMarket)

	s.AddTool(mcp.Tool{
		Name:        "resolve_token",
		Description: "Resolve the metadata of a listed token",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"token_id": map[string]any{"type": "string", "description": "Token id"},
			},
			Required: []string{"token_id"},
		},
	}, h.handleResolveToken)

	s.AddTool(mcp.Tool{
		Name:        "gateway_url",
		Description: "Build the gateway URL and the asset URI of a file inside a published batch",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"cid":  map[string]any{"type": "string", "description": "Batch CID"},
				"path": map[string]any{"type": "string", "description": "File name inside the batch"},
			},
			Required: []string{"cid", "path"},
		},
	}, h.handleGatewayURL)

	s.AddTool(mcp.Tool{
		Name:        "decode_cid",
		Description: "Extract the CID from a gateway URL",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"url": map[string]any{"type": "string", "description": "Gateway URL"},
			},
			Required: []string{"url"},
		},
	}, h.handleDecodeCID)

	s.AddTool(mcp.Tool{
		Name:        "check_artist",
		Description: "Report whether an address is a registered artist",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"address": map[string]any{"type": "string", "description": "Hex account address"},
			},
			Required: []string{"address"},
		},
	}, h.handleCheckArtist)
}

func (h *MarketHandler) handleListMarket(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	views, unresolved, err := h.app.LoadMarket(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load market: %v", err)), nil
	}

	tracks := make([]track, 0, len(views))
	for _, v := range views {
		tracks = append(tracks, toTrack(v))
	}
	return jsonResult(map[string]any{
		"tracks":     tracks,
		"unresolved": unresolved,
	})
}

func (h *MarketHandler) handleResolveToken(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := stringArg(request, "token_id")
	tokenID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid token_id %q", raw)), nil
	}

	market := h.app.Marketplace()
	recs, err := market.GetAllUnsoldTokens(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read listing: %v", err)), nil
	}
	for _, rec := range recs {
		if rec.TokenID != tokenID {
			continue
		}
		view, err := h.app.Resolver().Resolve(ctx, rec, market)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(toTrack(view))
	}
	return mcp.NewToolResultError(fmt.Sprintf("token %d: %v", tokenID, musicmarket.ErrTrackNotListed)), nil
}

func (h *MarketHandler) handleGatewayURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cid, path := stringArg(request, "cid"), stringArg(request, "path")
	if _, err := contentstore.ParseCID(cid); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}

	codec := h.app.Codec()
	return jsonResult(map[string]string{
		"gateway_url": codec.GatewayURL(cid, path),
		"asset_uri":   codec.AssetURI(cid, path),
	})
}

func (h *MarketHandler) handleDecodeCID(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cid := h.app.Codec().CIDFromGatewayURL(stringArg(request, "url"))
	if cid == "" {
		return mcp.NewToolResultError("not a gateway URL"), nil
	}
	return mcp.NewToolResultText(cid), nil
}

func (h *MarketHandler) handleCheckArtist(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address := stringArg(request, "address")
	if !common.IsHexAddress(address) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid address %q", address)), nil
	}

	exists, err := h.app.Marketplace().CheckArtistExisted(ctx, common.HexToAddress(address))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to check artist: %v", err)), nil
	}
	return mcp.NewToolResultText(strconv.FormatBool(exists)), nil
}

func stringArg(request mcp.CallToolRequest, name string) string {
	if v, ok := request.GetArguments()[name]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
