package main

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/api"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/config"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/chi-demo/middleware"
)

// newRouter mounts health checks and the marketplace API under /api/v1
func newRouter(cfg *config.ServerConfig, market *musicmarket.App, events *musicmarket.Broadcaster) (*chi.Mux, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	apiConfig := api.Config{
		TokenAuth: jwtauth.New("HS256", []byte(cfg.JWTSecret), nil),
		Owner:     common.HexToAddress(cfg.ContractOwner),
		Events:    events,
	}
	if cfg.AdminAPIKeySHA256 != "" {
		adminAuth, err := middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{
			APIKeys: map[string]string{
				"admin": cfg.AdminAPIKeySHA256,
			},
		})
		if err != nil {
			return nil, err
		}
		apiConfig.AdminAuth = adminAuth
	} else {
		slog.Info("ADMIN_API_KEY_SHA256 not set, admin routes disabled")
	}

	handler, err := api.NewHandler(market, apiConfig)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(api.RequestIDMiddleware)
	r.Use(api.LoggingMiddleware(slog.Default()))
	r.Use(api.RecoveryMiddleware)

	if cfg.Environment == "development" {
		r.Use(devCORS)
	}

	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)

	r.Mount("/api/v1", handler.Routes())
	return r, nil
}

func devCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
