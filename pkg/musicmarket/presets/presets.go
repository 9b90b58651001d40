// Package presets builds ready to use marketplace apps for common setups.
package presets

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contract"
	ledger "github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contract/memory"
	fsstorage "github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/storage/fs"
	memorystorage "github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/storage/memory"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/uricodec"
)

// DefaultOwner owns the ledger of development and testing apps
var DefaultOwner = contract.DefaultOwner

// NewDevelopment creates an app for local development: an in-memory ledger,
// batches stored under ./dev-data and gateway URLs served by a local marketd.
//
// The returned cleanup removes the storage directory.
//
//	app, cleanup, err := presets.NewDevelopment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (*musicmarket.App, func(), error) {
	cfg := &devConfig{
		storageDir: "./dev-data",
		gatewayURL: "http://localhost:8080/api/v1",
		owner:      DefaultOwner,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store, err := fsstorage.New(fsstorage.Config{BaseDir: cfg.storageDir})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create filesystem store: %w", err)
	}

	l := ledger.New(contract.Config{Owner: cfg.owner, RoyaltyFee: big.NewInt(0)})
	if err := registerArtists(l, cfg.owner, cfg.artists); err != nil {
		return nil, nil, err
	}

	app, err := musicmarket.New(
		musicmarket.WithContentStore(store),
		musicmarket.WithMarketplace(l),
		musicmarket.WithCodec(uricodec.New(uricodec.DefaultScheme, uricodec.NewPathGateway(cfg.gatewayURL))),
		musicmarket.WithStableIdenticonSeed(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create app: %w", err)
	}

	cleanup := func() {
		os.RemoveAll(cfg.storageDir)
	}
	return app, cleanup, nil
}

// NewTesting creates an app for tests backed by memory stores. Metadata is
// read from the store directly, so no gateway needs to be running.
func NewTesting(t testing.TB, opts ...TestingOption) *musicmarket.App {
	t.Helper()

	cfg := &testConfig{owner: DefaultOwner}
	for _, opt := range opts {
		opt(cfg)
	}

	store := cfg.store
	if store == nil {
		store = memorystorage.New()
	}
	l := ledger.New(contract.Config{Owner: cfg.owner, RoyaltyFee: cfg.royaltyFee})
	if err := registerArtists(l, cfg.owner, cfg.artists); err != nil {
		t.Fatalf("failed to register artists: %v", err)
	}

	codec := uricodec.Default()
	options := []musicmarket.Option{
		musicmarket.WithContentStore(store),
		musicmarket.WithMarketplace(l),
		musicmarket.WithCodec(codec),
		musicmarket.WithMetadataFetcher(&http.Client{Transport: &storeTransport{store: store, codec: codec}}),
		musicmarket.WithStableIdenticonSeed(),
	}
	options = append(options, cfg.options...)

	app, err := musicmarket.New(options...)
	if err != nil {
		t.Fatalf("failed to create test app: %v", err)
	}
	return app
}

type devConfig struct {
	storageDir string
	gatewayURL string
	owner      common.Address
	artists    []common.Address
}

type testConfig struct {
	owner      common.Address
	royaltyFee *big.Int
	artists    []common.Address
	store      musicmarket.ContentStore
	options    []musicmarket.Option
}

// DevelopmentOption configures NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevStorage sets the storage directory
func WithDevStorage(dir string) DevelopmentOption {
	return func(c *devConfig) {
		c.storageDir = dir
	}
}

// WithDevGateway sets the base URL of the path gateway
func WithDevGateway(baseURL string) DevelopmentOption {
	return func(c *devConfig) {
		c.gatewayURL = baseURL
	}
}

// WithDevArtists registers artists on the development ledger
func WithDevArtists(artists ...common.Address) DevelopmentOption {
	return func(c *devConfig) {
		c.artists = append(c.artists, artists...)
	}
}

// TestingOption configures NewTesting
type TestingOption func(*testConfig)

// WithTestOwner sets the ledger owner
func WithTestOwner(owner common.Address) TestingOption {
	return func(c *testConfig) {
		c.owner = owner
	}
}

// WithTestRoyaltyFee sets the royalty fee in wei
func WithTestRoyaltyFee(fee *big.Int) TestingOption {
	return func(c *testConfig) {
		c.royaltyFee = fee
	}
}

// WithTestArtists registers artists on the test ledger
func WithTestArtists(artists ...common.Address) TestingOption {
	return func(c *testConfig) {
		c.artists = append(c.artists, artists...)
	}
}

// WithTestStore replaces the memory store
func WithTestStore(store musicmarket.ContentStore) TestingOption {
	return func(c *testConfig) {
		c.store = store
	}
}

// WithTestAppOptions appends app options after the preset ones
func WithTestAppOptions(options ...musicmarket.Option) TestingOption {
	return func(c *testConfig) {
		c.options = append(c.options, options...)
	}
}

func registerArtists(l *ledger.Ledger, owner common.Address, artists []common.Address) error {
	for _, a := range artists {
		if err := l.CreateNewArtist(context.Background(), owner, a); err != nil {
			return fmt.Errorf("failed to register artist %s: %w", a.Hex(), err)
		}
	}
	return nil
}
