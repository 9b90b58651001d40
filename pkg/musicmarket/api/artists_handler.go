package api

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// ArtistRequest names the address to register as an artist
type ArtistRequest struct {
	Address string `json:"address"`
}

// ArtistResponse reports whether an address is a registered artist
type ArtistResponse struct {
	Address string `json:"address"`
	Artist  bool   `json:"artist"`
}

// GetArtist reports whether the address in the path is a registered artist
func (h *Handler) GetArtist(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		h.badRequest(w, r, "invalid address")
		return
	}
	address := common.HexToAddress(raw)

	exists, err := h.app.Marketplace().CheckArtistExisted(r.Context(), address)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, ArtistResponse{Address: address.Hex(), Artist: exists})
}

// RegisterArtist registers an artist on behalf of the caller, who must own the contract
func (h *Handler) RegisterArtist(w http.ResponseWriter, r *http.Request) {
	address, ok := h.readArtist(w, r)
	if !ok {
		return
	}
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := s.RegisterArtist(r.Context(), address); err != nil {
		h.writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ArtistResponse{Address: address.Hex(), Artist: true})
}

// AdminRegisterArtist registers an artist as the configured contract owner
func (h *Handler) AdminRegisterArtist(w http.ResponseWriter, r *http.Request) {
	address, ok := h.readArtist(w, r)
	if !ok {
		return
	}
	s, err := h.app.Session(r.Context(), h.owner)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := s.RegisterArtist(r.Context(), address); err != nil {
		h.writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ArtistResponse{Address: address.Hex(), Artist: true})
}

func (h *Handler) readArtist(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	var req ArtistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "invalid request body")
		return common.Address{}, false
	}
	if !common.IsHexAddress(req.Address) {
		h.badRequest(w, r, "invalid address")
		return common.Address{}, false
	}
	return common.HexToAddress(req.Address), true
}
