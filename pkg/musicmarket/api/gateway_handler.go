package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contentstore"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/uricodec"
)

// ServeObject serves /ipfs/{cid}/{path} from the content store, the layout of a path gateway
func (h *Handler) ServeObject(w http.ResponseWriter, r *http.Request) {
	name := uricodec.Unescape(chi.URLParam(r, "*"))
	if chi.URLParam(r, "cid") == "" || name == "" {
		h.badRequest(w, r, "cid and path are required")
		return
	}
	cid, err := contentstore.ParseCID(chi.URLParam(r, "cid"))
	if err != nil {
		h.badRequest(w, r, err.Error())
		return
	}

	rc, err := h.app.ContentStore().Get(r.Context(), cid, name)
	if err != nil {
		if !errors.Is(err, musicmarket.ErrObjectNotFound) {
			slog.Error("Failed to read object", "cid", cid, "path", name, "err", err)
		}
		h.writeError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if _, err := io.Copy(w, rc); err != nil {
		slog.Error("Failed to write object", "cid", cid, "path", name, "err", err)
	}
}
