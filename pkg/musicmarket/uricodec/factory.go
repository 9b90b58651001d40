package uricodec

import (
	"fmt"
)

// GatewayType represents the URL layout of a gateway
type GatewayType string

const (
	// Subdomain gateway: https://<cid>.<host>/<path>
	GatewayTypeSubdomain GatewayType = "subdomain"

	// Path gateway: <base>/ipfs/<cid>/<path>
	GatewayTypePath GatewayType = "path"
)

// Config holds configuration for gateway creation
type Config struct {
	Type    GatewayType
	Host    string // For subdomain gateways
	BaseURL string // For path gateways
}

// NewGateway creates a gateway based on the configuration
func NewGateway(config Config) (Gateway, error) {
	switch config.Type {
	case GatewayTypeSubdomain, "":
		host := config.Host
		if host == "" {
			host = DefaultGatewayHost
		}
		return NewSubdomainGateway(host), nil

	case GatewayTypePath:
		if config.BaseURL == "" {
			return nil, fmt.Errorf("base URL is required for path gateway")
		}
		return NewPathGateway(config.BaseURL), nil

	default:
		return nil, fmt.Errorf("unknown gateway type: %s", config.Type)
	}
}
