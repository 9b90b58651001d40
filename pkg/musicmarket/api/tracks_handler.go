package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
)

// TrackResponse is a resolved token as returned by the API
type TrackResponse struct {
	TokenID     uint64 `json:"token_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Artist      string `json:"artist"`
	Price       string `json:"price"`
	PriceWei    string `json:"price_wei"`
	Seller      string `json:"seller"`
	AudioURL    string `json:"audio_url"`
	Identicon   string `json:"identicon"`
	IsSeller    bool   `json:"is_seller,omitempty"`
}

// TrackListResponse holds a listing
type TrackListResponse struct {
	Tracks []TrackResponse `json:"tracks"`
}

// ListTrackResponse is returned when a track is published and listed
type ListTrackResponse struct {
	TokenID uint64                     `json:"token_id"`
	Publish *musicmarket.PublishResult `json:"publish"`
}

// ResellRequest carries the new price of a token in ether
type ResellRequest struct {
	Price string `json:"price"`
}

// TokenActionResponse reports a completed token transaction
type TokenActionResponse struct {
	TokenID uint64 `json:"token_id"`
	Status  string `json:"status"`
}

func toTrackResponses(app *musicmarket.App, views []*musicmarket.TokenView) []TrackResponse {
	out := make([]TrackResponse, 0, len(views))
	for _, v := range views {
		out = append(out, TrackResponse{
			TokenID:     v.TokenID,
			Name:        v.Name,
			Description: v.Description,
			Artist:      v.Artist,
			Price:       musicmarket.FormatEther(v.Price),
			PriceWei:    v.Price.String(),
			Seller:      v.Seller.Hex(),
			AudioURL:    v.AudioURL,
			Identicon:   v.IdenticonDataURI,
			IsSeller:    app.IsSeller(v),
		})
	}
	return out
}

// ListMarket returns the market listing. The listing is reloaded when it is
// empty or when ?refresh=true is given.
func (h *Handler) ListMarket(w http.ResponseWriter, r *http.Request) {
	views := h.app.Market()
	if len(views) == 0 || r.URL.Query().Get("refresh") == "true" {
		loaded, unresolved, err := h.app.LoadMarket(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		views = loaded
		w.Header().Set("X-Unresolved-Count", strconv.Itoa(unresolved))
	}
	render.JSON(w, r, TrackListResponse{Tracks: toTrackResponses(h.app, views)})
}

// ListMine returns the tokens held by the caller
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views, unresolved, err := s.LoadMyTokens(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("X-Unresolved-Count", strconv.Itoa(unresolved))
	render.JSON(w, r, TrackListResponse{Tracks: toTrackResponses(s, views)})
}

// ListTrack publishes the uploaded track and lists it on the marketplace
func (h *Handler) ListTrack(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	asset, info, ok := h.readTrackForm(w, r)
	if !ok {
		return
	}

	result, tokenID, err := s.ListTrack(r.Context(), asset, info)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.refreshMarket(r)

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ListTrackResponse{TokenID: tokenID, Publish: result})
}

// Upload publishes the uploaded track without listing it
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if _, err := accountFromContext(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	asset, info, ok := h.readTrackForm(w, r)
	if !ok {
		return
	}

	result, err := h.app.Publisher().Publish(r.Context(), asset, info)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

// BuyToken buys a listed token at its listed price
func (h *Handler) BuyToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := tokenIDParam(r)
	if err != nil {
		h.badRequest(w, r, err.Error())
		return
	}
	if !listed(h.app.Market(), tokenID) {
		if _, _, err := h.app.LoadMarket(r.Context()); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := s.BuyToken(r.Context(), tokenID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.refreshMarket(r)
	render.JSON(w, r, TokenActionResponse{TokenID: tokenID, Status: "bought"})
}

// ResellToken lists a token held by the caller again
func (h *Handler) ResellToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := tokenIDParam(r)
	if err != nil {
		h.badRequest(w, r, err.Error())
		return
	}
	var req ResellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "invalid request body")
		return
	}

	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := s.ResellToken(r.Context(), tokenID, req.Price); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.refreshMarket(r)
	render.JSON(w, r, TokenActionResponse{TokenID: tokenID, Status: "listed"})
}

// SelectTrack toggles playback of a market track on the server side controller
func (h *Handler) SelectTrack(w http.ResponseWriter, r *http.Request) {
	tokenID, err := tokenIDParam(r)
	if err != nil {
		h.badRequest(w, r, err.Error())
		return
	}
	state, err := h.app.SelectTrack(r.Context(), tokenID)
	if err != nil {
		var perr *musicmarket.PlaybackError
		if errors.As(err, &perr) && perr.Op != "select" {
			// the player failed; the returned state is still the controller's state
			slog.Warn("Player failed", "token_id", tokenID, "err", err)
		} else {
			h.writeError(w, r, err)
			return
		}
	}
	render.JSON(w, r, state)
}

func (h *Handler) readTrackForm(w http.ResponseWriter, r *http.Request) (musicmarket.Asset, musicmarket.TrackInfo, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			render.Status(r, http.StatusRequestEntityTooLarge)
			render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: "too_large", Message: err.Error()}})
			return musicmarket.Asset{}, musicmarket.TrackInfo{}, false
		}
		h.badRequest(w, r, "invalid multipart form")
		return musicmarket.Asset{}, musicmarket.TrackInfo{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.badRequest(w, r, "file is required")
		return musicmarket.Asset{}, musicmarket.TrackInfo{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.badRequest(w, r, "failed to read file")
		return musicmarket.Asset{}, musicmarket.TrackInfo{}, false
	}

	info := musicmarket.TrackInfo{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Artist:      r.FormValue("artist"),
		Price:       r.FormValue("price"),
	}
	return musicmarket.Asset{FileName: header.Filename, Data: data}, info, true
}

// refreshMarket reloads the shared listing after a write
func (h *Handler) refreshMarket(r *http.Request) {
	if _, _, err := h.app.LoadMarket(r.Context()); err != nil {
		slog.Error("Failed to refresh market", "err", err)
	}
}

func listed(views []*musicmarket.TokenView, tokenID uint64) bool {
	for _, v := range views {
		if v.TokenID == tokenID {
			return true
		}
	}
	return false
}
