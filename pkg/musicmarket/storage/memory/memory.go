package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contentstore"
)

const backendName = "memory"

// Config options for the in-memory backend
type Config struct {
	MaxBlobSize int64 // Largest accepted blob in bytes, 0 means unlimited
	QuotaBytes  int64 // Total bytes the backend accepts across all batches, 0 means unlimited
}

// Backend is an in-memory implementation of the musicmarket.ContentStore interface
type Backend struct {
	mu      sync.RWMutex
	config  Config
	batches map[string]map[string][]byte
	names   map[string]string
	used    int64
}

// New creates a new in-memory content store without limits
func New() musicmarket.ContentStore {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a new in-memory content store with size limits
func NewWithConfig(config Config) *Backend {
	return &Backend{
		config:  config,
		batches: make(map[string]map[string][]byte),
		names:   make(map[string]string),
	}
}

// Put stages every blob and commits the batch only when all of them were accepted
func (b *Backend) Put(ctx context.Context, name string, blobs []musicmarket.Blob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", musicmarket.Unavailable(backendName, "put", name, err)
	}

	cid, err := contentstore.ComputeCID(blobs)
	if err != nil {
		return "", musicmarket.Rejected(backendName, "put", name, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.batches[cid]; exists {
		// content addressed: the same batch is already stored
		return cid, nil
	}

	staged := make(map[string][]byte, len(blobs))
	used := b.used
	for _, blob := range blobs {
		size := int64(len(blob.Data))
		if b.config.MaxBlobSize > 0 && size > b.config.MaxBlobSize {
			return "", musicmarket.Rejected(backendName, "put", name,
				fmt.Errorf("blob %s is %d bytes, limit is %d", blob.Name, size, b.config.MaxBlobSize))
		}
		if b.config.QuotaBytes > 0 && used+size > b.config.QuotaBytes {
			return "", musicmarket.Rejected(backendName, "put", name,
				fmt.Errorf("quota of %d bytes exceeded by blob %s", b.config.QuotaBytes, blob.Name))
		}
		used += size
		staged[blob.Name] = bytes.Clone(blob.Data)
	}

	b.batches[cid] = staged
	b.names[cid] = name
	b.used = used
	return cid, nil
}

// Get returns a reader over one stored object
func (b *Backend) Get(ctx context.Context, cid, path string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	batch, exists := b.batches[cid]
	if !exists {
		return nil, musicmarket.ErrObjectNotFound
	}
	data, exists := batch[path]
	if !exists {
		return nil, musicmarket.ErrObjectNotFound
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Len returns the number of stored batches
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.batches)
}

// Used returns the number of payload bytes stored
func (b *Backend) Used() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.used
}

// BatchName returns the label a batch was uploaded with
func (b *Backend) BatchName(cid string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	name, ok := b.names[cid]
	return name, ok
}
