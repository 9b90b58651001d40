// Package api exposes the marketplace App over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contract"
)

// DefaultMaxUploadSize bounds multipart track uploads
const DefaultMaxUploadSize = 64 << 20

// Config configures the HTTP handler
type Config struct {
	// TokenAuth verifies account tokens. The "sub" claim holds the account address.
	TokenAuth *jwtauth.JWTAuth

	// AdminAuth guards the admin routes, which act as Owner. Admin routes are
	// not mounted when it is nil.
	AdminAuth func(http.Handler) http.Handler
	Owner     common.Address

	// Events feeds the /events websocket stream. The stream is not mounted when it is nil.
	Events *musicmarket.Broadcaster

	MaxUploadSize int64
}

// Handler serves the marketplace API
type Handler struct {
	app       *musicmarket.App
	tokenAuth *jwtauth.JWTAuth
	adminAuth func(http.Handler) http.Handler
	owner     common.Address
	events    *musicmarket.Broadcaster
	maxUpload int64
	upgrader  websocket.Upgrader
}

// NewHandler creates a handler serving app
func NewHandler(app *musicmarket.App, config Config) (*Handler, error) {
	if app == nil {
		return nil, fmt.Errorf("app is required")
	}
	if config.TokenAuth == nil {
		return nil, fmt.Errorf("token auth is required")
	}
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = DefaultMaxUploadSize
	}
	return &Handler{
		app:       app,
		tokenAuth: config.TokenAuth,
		adminAuth: config.AdminAuth,
		owner:     config.Owner,
		events:    config.Events,
		maxUpload: config.MaxUploadSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}, nil
}

// Routes returns the router for the marketplace endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/tracks", h.ListMarket)
	r.Post("/tracks/{tokenID}/playback", h.SelectTrack)
	r.Get("/artists/{address}", h.GetArtist)
	r.Get("/ipfs/{cid}/*", h.ServeObject)
	if h.events != nil {
		r.Get("/events", h.StreamEvents)
	}

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(h.tokenAuth))
		r.Use(jwtauth.Authenticator)

		r.Get("/tracks/mine", h.ListMine)
		r.Post("/tracks", h.ListTrack)
		r.Post("/tracks/{tokenID}/buy", h.BuyToken)
		r.Post("/tracks/{tokenID}/resell", h.ResellToken)
		r.Post("/uploads", h.Upload)
		r.Post("/artists", h.RegisterArtist)
	})

	if h.adminAuth != nil {
		r.Group(func(r chi.Router) {
			r.Use(h.adminAuth)
			r.Post("/admin/artists", h.AdminRegisterArtist)
		})
	}

	return r
}

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes an error
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "err", err)
	} else {
		slog.Debug("Request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{
		Code:      code,
		Message:   err.Error(),
		RequestID: RequestIDFromContext(r.Context()),
	}})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{
		Code:      "bad_request",
		Message:   message,
		RequestID: RequestIDFromContext(r.Context()),
	}})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, musicmarket.ErrNotConnected):
		return http.StatusUnauthorized, "not_connected"
	case errors.Is(err, musicmarket.ErrMissingField),
		errors.Is(err, musicmarket.ErrInvalidPrice),
		errors.Is(err, contract.ErrInvalidPrice):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, musicmarket.ErrStoreRejected):
		return http.StatusRequestEntityTooLarge, "store_rejected"
	case errors.Is(err, musicmarket.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, musicmarket.ErrMetadataFetchFailed),
		errors.Is(err, musicmarket.ErrMetadataParseFailed):
		return http.StatusBadGateway, "metadata_unavailable"
	case errors.Is(err, musicmarket.ErrObjectNotFound),
		errors.Is(err, musicmarket.ErrTrackNotListed),
		errors.Is(err, musicmarket.ErrUnknownTrack),
		errors.Is(err, contract.ErrTokenNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, contract.ErrNotOwner),
		errors.Is(err, contract.ErrNotArtist),
		errors.Is(err, contract.ErrNotTokenOwner):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, musicmarket.ErrOwnListing),
		errors.Is(err, musicmarket.ErrArtistExists),
		errors.Is(err, contract.ErrArtistExists),
		errors.Is(err, contract.ErrTokenNotForSale),
		errors.Is(err, contract.ErrSellerCannotBuy),
		errors.Is(err, contract.ErrIncorrectPayment):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// accountFromContext returns the account named by the verified token's "sub" claim
func accountFromContext(ctx context.Context) (common.Address, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return common.Address{}, musicmarket.ErrNotConnected
	}
	sub, _ := claims["sub"].(string)
	if !common.IsHexAddress(sub) {
		return common.Address{}, fmt.Errorf("%w: token subject is not an address", musicmarket.ErrNotConnected)
	}
	return common.HexToAddress(sub), nil
}

// session returns an App connected to the caller's account
func (h *Handler) session(r *http.Request) (*musicmarket.App, error) {
	account, err := accountFromContext(r.Context())
	if err != nil {
		return nil, err
	}
	return h.app.Session(r.Context(), account)
}

func tokenIDParam(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "tokenID"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token id %q", chi.URLParam(r, "tokenID"))
	}
	return id, nil
}
