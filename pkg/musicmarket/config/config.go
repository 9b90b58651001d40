package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	cachememory "github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/cache/memory"
	cacheredis "github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/cache/redis"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contract"
	ledgermemory "github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contract/memory"
	ledgerpg "github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contract/postgres"
	fsstorage "github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/storage/fs"
	memorystorage "github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/storage/memory"
	miniostorage "github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/storage/minio"
	s3storage "github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/storage/s3"
	w3sstorage "github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/storage/w3s"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/uricodec"
	"github.com/robfig/cron/v3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// DefaultRoyaltyFeeWei is the listing fee charged by a fresh ledger (0.001 ether)
const DefaultRoyaltyFeeWei = "1000000000000000"

var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:                  "8080",
		Environment:           "development",
		DatabaseType:          "memory",
		DefaultStorageBackend: "memory",
		StorageBackends: []StorageBackendConfig{
			{
				Name:   "memory",
				Type:   "memory",
				Config: map[string]interface{}{},
			},
		},
		GatewayType:        string(uricodec.GatewayTypeSubdomain),
		GatewayHost:        uricodec.DefaultGatewayHost,
		ContractOwner:      contract.DefaultOwner.Hex(),
		RoyaltyFeeWei:      DefaultRoyaltyFeeWei,
		ResolveConcurrency: musicmarket.DefaultResolveConcurrency,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// ServerConfig represents the configuration of a marketplace deployment
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Ledger configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	AutoMigrate  bool   // Apply ledger migrations on startup

	// Content store configuration
	DefaultStorageBackend string
	StorageBackends       []StorageBackendConfig

	// Gateway used for gateway URLs
	GatewayType    string // "subdomain", "path"
	GatewayHost    string
	GatewayBaseURL string

	// Metadata cache, memory when RedisURL is empty
	RedisURL         string
	MetadataCacheTTL time.Duration

	// Contract parameters
	ContractOwner   string
	ContractAddress string
	RoyaltyFeeWei   string

	// HTTP auth
	JWTSecret         string
	AdminAPIKeySHA256 string

	// Cron spec for the listing refresh, empty disables it
	RefreshSchedule string

	StableIdenticons   bool
	ResolveConcurrency int

	LogLevel  string
	LogFormat string // "text", "json"
	LogFile   string
}

// StorageBackendConfig represents configuration for a content store backend
type StorageBackendConfig struct {
	Name   string
	Type   string // "memory", "fs", "s3", "minio", "w3s"
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	found := false
	for _, backend := range c.StorageBackends {
		if backend.Name == c.DefaultStorageBackend {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("default storage backend '%s' not found in configured backends", c.DefaultStorageBackend)
	}

	switch uricodec.GatewayType(c.GatewayType) {
	case uricodec.GatewayTypeSubdomain:
	case uricodec.GatewayTypePath:
		if c.GatewayBaseURL == "" {
			return errors.New("gateway_base_url is required for path gateways")
		}
	default:
		return fmt.Errorf("gateway_type must be 'subdomain' or 'path', got '%s'", c.GatewayType)
	}

	if !common.IsHexAddress(c.ContractOwner) {
		return fmt.Errorf("contract_owner is not a valid address: %s", c.ContractOwner)
	}
	if c.ContractAddress != "" && !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("contract_address is not a valid address: %s", c.ContractAddress)
	}
	if _, err := c.royaltyFee(); err != nil {
		return err
	}

	if c.MetadataCacheTTL < 0 {
		return errors.New("metadata_cache_ttl must not be negative")
	}
	if c.ResolveConcurrency < 1 {
		return errors.New("resolve_concurrency must be at least 1")
	}

	if c.RefreshSchedule != "" {
		if _, err := scheduleParser.Parse(c.RefreshSchedule); err != nil {
			return fmt.Errorf("invalid refresh_schedule %q: %w", c.RefreshSchedule, err)
		}
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be 'text' or 'json', got '%s'", c.LogFormat)
	}

	return nil
}

func (c *ServerConfig) royaltyFee() (*big.Int, error) {
	fee, ok := new(big.Int).SetString(strings.TrimSpace(c.RoyaltyFeeWei), 10)
	if !ok || fee.Sign() < 0 {
		return nil, fmt.Errorf("royalty_fee_wei must be a non-negative integer, got '%s'", c.RoyaltyFeeWei)
	}
	return fee, nil
}

// ContractConfig returns the ledger deployment parameters
func (c *ServerConfig) ContractConfig() (contract.Config, error) {
	fee, err := c.royaltyFee()
	if err != nil {
		return contract.Config{}, err
	}
	cfg := contract.Config{
		Owner:      common.HexToAddress(c.ContractOwner),
		RoyaltyFee: fee,
	}
	if c.ContractAddress != "" {
		cfg.Address = common.HexToAddress(c.ContractAddress)
	}
	return cfg, nil
}

// BuildCodec creates the URI codec for the configured gateway
func (c *ServerConfig) BuildCodec() (*uricodec.Codec, error) {
	gw, err := uricodec.NewGateway(uricodec.Config{
		Type:    uricodec.GatewayType(c.GatewayType),
		Host:    c.GatewayHost,
		BaseURL: c.GatewayBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	return uricodec.New(uricodec.DefaultScheme, gw), nil
}

// BuildStore creates the default content store
func (c *ServerConfig) BuildStore(ctx context.Context) (musicmarket.ContentStore, error) {
	for _, backend := range c.StorageBackends {
		if backend.Name == c.DefaultStorageBackend {
			return c.buildStorageBackend(ctx, backend)
		}
	}
	return nil, fmt.Errorf("default storage backend '%s' not found", c.DefaultStorageBackend)
}

// BuildMarketplace creates the configured ledger. The returned func releases its resources.
func (c *ServerConfig) BuildMarketplace(ctx context.Context) (musicmarket.Marketplace, func(), error) {
	contractCfg, err := c.ContractConfig()
	if err != nil {
		return nil, nil, err
	}

	switch c.DatabaseType {
	case "memory":
		return ledgermemory.New(contractCfg), func() {}, nil
	case "postgres":
		if c.AutoMigrate {
			if err := ledgerpg.Migrate(slog.Default(), c.DatabaseURL, "up", nil); err != nil {
				return nil, nil, fmt.Errorf("failed to migrate ledger schema: %w", err)
			}
		}
		pool, err := c.buildPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		return ledgerpg.NewWithPool(pool, contractCfg), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// BuildCache creates the metadata cache. Redis is used when RedisURL is set.
func (c *ServerConfig) BuildCache(ctx context.Context) (musicmarket.MetadataCache, func(), error) {
	if c.RedisURL == "" {
		return cachememory.New(), func() {}, nil
	}
	cache, err := cacheredis.New(ctx, cacheredis.Config{URL: c.RedisURL})
	if err != nil {
		return nil, nil, err
	}
	return cache, func() { _ = cache.Close() }, nil
}

// BuildApp assembles the content store, ledger, cache and codec into an App.
// The returned func releases the connections opened for it.
func (c *ServerConfig) BuildApp(ctx context.Context, events musicmarket.EventSink, opts ...musicmarket.Option) (*musicmarket.App, func(), error) {
	store, err := c.BuildStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create content store: %w", err)
	}
	codec, err := c.BuildCodec()
	if err != nil {
		return nil, nil, err
	}
	market, closeMarket, err := c.BuildMarketplace(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create marketplace: %w", err)
	}
	cache, closeCache, err := c.BuildCache(ctx)
	if err != nil {
		closeMarket()
		return nil, nil, fmt.Errorf("failed to create metadata cache: %w", err)
	}
	cleanup := func() {
		closeCache()
		closeMarket()
	}

	options := []musicmarket.Option{
		musicmarket.WithContentStore(store),
		musicmarket.WithMarketplace(market),
		musicmarket.WithCodec(codec),
		musicmarket.WithCache(cache, c.MetadataCacheTTL),
		musicmarket.WithResolveConcurrency(c.ResolveConcurrency),
		musicmarket.WithMetadataFetcher(&http.Client{Timeout: 30 * time.Second}),
	}
	if events != nil {
		options = append(options, musicmarket.WithEventSink(events))
	}
	if c.StableIdenticons {
		options = append(options, musicmarket.WithStableIdenticonSeed())
	}
	options = append(options, opts...)

	app, err := musicmarket.New(options...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return app, cleanup, nil
}

func (c *ServerConfig) buildPool(ctx context.Context) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := PingPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PingPostgres checks that the pool can reach the database
func PingPostgres(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return nil
}

func (c *ServerConfig) buildStorageBackend(ctx context.Context, config StorageBackendConfig) (musicmarket.ContentStore, error) {
	switch config.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: getString(config.Config, "base_dir"),
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 getString(config.Config, "region"),
			Bucket:                 getString(config.Config, "bucket"),
			Prefix:                 getString(config.Config, "prefix"),
			AccessKeyID:            getString(config.Config, "access_key_id"),
			SecretAccessKey:        getString(config.Config, "secret_access_key"),
			Endpoint:               getString(config.Config, "endpoint"),
			UsePathStyle:           getBool(config.Config, "use_path_style"),
			EnableSSE:              getBool(config.Config, "enable_sse"),
			SSEAlgorithm:           getString(config.Config, "sse_algorithm"),
			SSEKMSKeyID:            getString(config.Config, "sse_kms_key_id"),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket"),
		})

	case "minio":
		return miniostorage.New(miniostorage.Config{
			Endpoint:        getString(config.Config, "endpoint"),
			AccessKeyID:     getString(config.Config, "access_key_id"),
			SecretAccessKey: getString(config.Config, "secret_access_key"),
			Bucket:          getString(config.Config, "bucket"),
			Prefix:          getString(config.Config, "prefix"),
			UseSSL:          getBool(config.Config, "use_ssl"),
			Region:          getString(config.Config, "region"),
			CreateBucket:    getBool(config.Config, "create_bucket"),
		})

	case "w3s":
		codec, err := c.BuildCodec()
		if err != nil {
			return nil, err
		}
		return w3sstorage.New(w3sstorage.Config{
			Endpoint: getString(config.Config, "endpoint"),
			Token:    getString(config.Config, "token"),
			Gateway:  codec.Gateway(),
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

func getString(m map[string]interface{}, key string) string {
	if val, ok := m[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getBool(m map[string]interface{}, key string) bool {
	if val, ok := m[key]; ok {
		switch v := val.(type) {
		case bool:
			return v
		case string:
			return v == "true" || v == "1"
		}
	}
	return false
}

func upsertStorageBackend(backends []StorageBackendConfig, backend StorageBackendConfig) []StorageBackendConfig {
	for i, existing := range backends {
		if existing.Name == backend.Name {
			backends[i] = backend
			return backends
		}
	}
	return append(backends, backend)
}
