package musicmarket

import (
	"context"
	"io"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ContentStore stores batches of blobs under a single content identifier
type ContentStore interface {
	// Put stores every blob of the batch and returns the batch CID.
	// Either all blobs are stored or none are.
	Put(ctx context.Context, name string, blobs []Blob) (string, error)

	// Get reads the object stored at path inside the batch identified by cid
	Get(ctx context.Context, cid, path string) (io.ReadCloser, error)
}

// MetadataURIProvider returns the metadata URI recorded for a token
type MetadataURIProvider interface {
	TokenURI(ctx context.Context, tokenID uint64) (string, error)
}

// Marketplace is the narrow read/write surface of the marketplace contract
type Marketplace interface {
	MetadataURIProvider

	GetAllUnsoldTokens(ctx context.Context) ([]TokenRecord, error)
	GetMyTokens(ctx context.Context, account common.Address) ([]TokenRecord, error)
	CheckIsOwner(ctx context.Context, account common.Address) (bool, error)
	CheckArtistExisted(ctx context.Context, address common.Address) (bool, error)
	GetRoyaltyFee(ctx context.Context) (*big.Int, error)

	BuyToken(ctx context.Context, from common.Address, tokenID uint64, payment *big.Int) error
	ResellToken(ctx context.Context, from common.Address, tokenID uint64, price, payment *big.Int) error
	CreateToken(ctx context.Context, from common.Address, metadataURI string, price, payment *big.Int) (uint64, error)
	CreateNewArtist(ctx context.Context, from common.Address, address common.Address) error
}

// MetadataCache caches metadata records by metadata URI
type MetadataCache interface {
	Get(ctx context.Context, uri string) (*MetadataRecord, bool, error)
	Set(ctx context.Context, uri string, record *MetadataRecord, ttl time.Duration) error
}

// EventSink receives operation results
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}

// Player controls the media element of one listed track
type Player interface {
	Play() error
	Pause() error
}
