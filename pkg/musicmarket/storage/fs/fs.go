package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/contentstore"
)

const (
	backendName = "fs"
	stagingDir  = ".staging"
	nameFile    = ".name"
)

// Backend is a filesystem implementation of the musicmarket.ContentStore interface.
// Each batch lives in <BaseDir>/<cid>/ and is published by renaming a fully written staging directory.
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing batches
}

// New creates a new filesystem content store
func New(config Config) (musicmarket.ContentStore, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(filepath.Join(config.BaseDir, stagingDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{baseDir: config.BaseDir}, nil
}

// Put writes the batch into a staging directory and renames it into place once every blob is on disk
func (b *Backend) Put(ctx context.Context, name string, blobs []musicmarket.Blob) (string, error) {
	cid, err := contentstore.ComputeCID(blobs)
	if err != nil {
		return "", musicmarket.Rejected(backendName, "put", name, err)
	}
	for _, blob := range blobs {
		if blob.Name == nameFile {
			return "", musicmarket.Rejected(backendName, "put", name, fmt.Errorf("blob name %s is reserved", nameFile))
		}
	}

	final := filepath.Join(b.baseDir, cid)
	if _, err := os.Stat(final); err == nil {
		return cid, nil
	}

	staging := filepath.Join(b.baseDir, stagingDir, uuid.NewString())
	if err := os.MkdirAll(staging, 0755); err != nil {
		return "", musicmarket.Unavailable(backendName, "put", name, fmt.Errorf("failed to create staging directory: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(staging)
		}
	}()

	for _, blob := range blobs {
		if err := ctx.Err(); err != nil {
			return "", musicmarket.Unavailable(backendName, "put", name, err)
		}
		if err := writeFile(filepath.Join(staging, blob.Name), blob.Data); err != nil {
			return "", classify(name, err)
		}
	}
	if err := writeFile(filepath.Join(staging, nameFile), []byte(name)); err != nil {
		return "", classify(name, err)
	}

	if err := os.Rename(staging, final); err != nil {
		// another writer committed the same content first
		if _, statErr := os.Stat(final); statErr == nil {
			return cid, nil
		}
		return "", musicmarket.Unavailable(backendName, "put", name, fmt.Errorf("failed to commit batch: %w", err))
	}
	committed = true

	return cid, nil
}

// Get opens one object of a stored batch
func (b *Backend) Get(ctx context.Context, cid, path string) (io.ReadCloser, error) {
	if !safeSegment(cid) || !safeSegment(path) || path == nameFile {
		return nil, musicmarket.ErrObjectNotFound
	}

	file, err := os.Open(filepath.Join(b.baseDir, cid, path))
	if os.IsNotExist(err) {
		return nil, musicmarket.ErrObjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func writeFile(path string, data []byte) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return file.Close()
}

// classify maps disk-full errors to rejections and everything else to unavailability
func classify(name string, err error) error {
	if strings.Contains(err.Error(), "no space left") || strings.Contains(err.Error(), "quota exceeded") {
		return musicmarket.Rejected(backendName, "put", name, err)
	}
	return musicmarket.Unavailable(backendName, "put", name, err)
}

func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && s != stagingDir && !strings.ContainsAny(s, "/\\\x00")
}
