package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/uricodec"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the ledger database
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithAutoMigrate applies ledger migrations when the marketplace is built
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithDefaultStorage sets the default content store backend name
func WithDefaultStorage(name string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			return fmt.Errorf("default storage backend name cannot be empty")
		}
		c.DefaultStorageBackend = name
		return nil
	}
}

// WithMemoryStorage adds an in-memory content store and makes it the default.
// If name is empty, defaults to "memory"
func WithMemoryStorage(name string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			name = "memory"
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name:   name,
			Type:   "memory",
			Config: map[string]interface{}{},
		})
		c.DefaultStorageBackend = name
		return nil
	}
}

// WithFilesystemStorage adds a filesystem content store and makes it the default.
// If name is empty, defaults to "fs"
func WithFilesystemStorage(name, baseDir string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			name = "fs"
		}
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name:   name,
			Type:   "fs",
			Config: map[string]interface{}{"base_dir": baseDir},
		})
		c.DefaultStorageBackend = name
		return nil
	}
}

// WithS3Storage adds an S3 content store and makes it the default.
// If name is empty, defaults to "s3"
func WithS3Storage(name, bucket, region string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			name = "s3"
		}
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name: name,
			Type: "s3",
			Config: map[string]interface{}{
				"bucket": bucket,
				"region": region,
			},
		})
		c.DefaultStorageBackend = name
		return nil
	}
}

// WithS3Credentials sets the credentials of an already added S3 or MinIO backend
func WithS3Credentials(name, accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		backend, err := findBackend(c, name)
		if err != nil {
			return err
		}
		backend.Config["access_key_id"] = accessKeyID
		backend.Config["secret_access_key"] = secretAccessKey
		return nil
	}
}

// WithS3Endpoint points an already added S3 backend at an S3-compatible service
func WithS3Endpoint(name, endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		backend, err := findBackend(c, name)
		if err != nil {
			return err
		}
		backend.Config["endpoint"] = endpoint
		backend.Config["use_path_style"] = usePathStyle
		return nil
	}
}

// WithMinioStorage adds a MinIO content store and makes it the default.
// If name is empty, defaults to "minio"
func WithMinioStorage(name, endpoint, bucket string, useSSL bool) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			name = "minio"
		}
		if endpoint == "" || bucket == "" {
			return fmt.Errorf("MinIO endpoint and bucket cannot be empty")
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name: name,
			Type: "minio",
			Config: map[string]interface{}{
				"endpoint":      endpoint,
				"bucket":        bucket,
				"use_ssl":       useSSL,
				"create_bucket": true,
			},
		})
		c.DefaultStorageBackend = name
		return nil
	}
}

// WithW3SStorage adds the remote upload API store and makes it the default
func WithW3SStorage(endpoint, token string) Option {
	return func(c *ServerConfig) error {
		if token == "" {
			return fmt.Errorf("upload API token cannot be empty")
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name: "w3s",
			Type: "w3s",
			Config: map[string]interface{}{
				"endpoint": endpoint,
				"token":    token,
			},
		})
		c.DefaultStorageBackend = "w3s"
		return nil
	}
}

// WithSubdomainGateway builds gateway URLs as https://<cid>.<host>/<path>
func WithSubdomainGateway(host string) Option {
	return func(c *ServerConfig) error {
		if host == "" {
			host = uricodec.DefaultGatewayHost
		}
		c.GatewayType = string(uricodec.GatewayTypeSubdomain)
		c.GatewayHost = host
		return nil
	}
}

// WithPathGateway builds gateway URLs as <baseURL>/ipfs/<cid>/<path>
func WithPathGateway(baseURL string) Option {
	return func(c *ServerConfig) error {
		if baseURL == "" {
			return fmt.Errorf("path gateway base URL cannot be empty")
		}
		c.GatewayType = string(uricodec.GatewayTypePath)
		c.GatewayBaseURL = baseURL
		return nil
	}
}

// WithRedisCache caches metadata records in Redis
func WithRedisCache(url string, ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		if url == "" {
			return fmt.Errorf("redis URL cannot be empty")
		}
		c.RedisURL = url
		c.MetadataCacheTTL = ttl
		return nil
	}
}

// WithContract sets the ledger owner and royalty fee
func WithContract(owner common.Address, royaltyFeeWei string) Option {
	return func(c *ServerConfig) error {
		c.ContractOwner = owner.Hex()
		if royaltyFeeWei != "" {
			c.RoyaltyFeeWei = royaltyFeeWei
		}
		return nil
	}
}

// WithJWTSecret sets the HMAC secret used to verify account tokens
func WithJWTSecret(secret string) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		return nil
	}
}

// WithAdminAPIKey sets the sha256 hex digest of the admin API key
func WithAdminAPIKey(sha256Hex string) Option {
	return func(c *ServerConfig) error {
		c.AdminAPIKeySHA256 = sha256Hex
		return nil
	}
}

// WithRefreshSchedule sets the cron spec of the listing refresh job
func WithRefreshSchedule(spec string) Option {
	return func(c *ServerConfig) error {
		c.RefreshSchedule = spec
		return nil
	}
}

// WithStableIdenticons derives identicons from the track CID instead of the resolve time
func WithStableIdenticons(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.StableIdenticons = enabled
		return nil
	}
}

// WithLogging sets the log level, format and optional log file
func WithLogging(level, format, file string) Option {
	return func(c *ServerConfig) error {
		if level != "" {
			c.LogLevel = level
		}
		if format != "" {
			c.LogFormat = format
		}
		c.LogFile = file
		return nil
	}
}

// WithDefaults is a convenience option that resets the configuration to the defaults
func WithDefaults() Option {
	return func(c *ServerConfig) error {
		*c = defaults()
		return nil
	}
}

func findBackend(c *ServerConfig, name string) (*StorageBackendConfig, error) {
	for i := range c.StorageBackends {
		if c.StorageBackends[i].Name == name {
			return &c.StorageBackends[i], nil
		}
	}
	return nil, fmt.Errorf("storage backend '%s' not found", name)
}
