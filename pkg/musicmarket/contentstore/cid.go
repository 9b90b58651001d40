// Package contentstore holds the backend independent parts of a content store:
// batch validation and content identifier derivation.
package contentstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/multiformats/go-multihash"
)

var (
	errEmptyBatch    = errors.New("batch has no blobs")
	errEmptyName     = errors.New("blob name is empty")
	errDuplicateName = errors.New("duplicate blob name")
	errInvalidName   = errors.New("invalid blob name")
)

// ComputeCID derives the batch CID: a CIDv1 (raw codec) over the sha2-256 multihash of the canonical batch
// encoding. Blob order does not matter; any byte change in a name or payload changes the CID.
func ComputeCID(blobs []musicmarket.Blob) (string, error) {
	if err := Validate(blobs); err != nil {
		return "", err
	}

	mh, err := multihash.Sum(Canonical(blobs), multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("failed to hash batch: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}

// Canonical encodes the batch as the concatenation of uvarint(len(name)) name uvarint(len(data)) data
// for every blob sorted by name.
func Canonical(blobs []musicmarket.Blob) []byte {
	sorted := Sorted(blobs)

	var buf bytes.Buffer
	var lenBuf [binary.MaxVarintLen64]byte
	for _, b := range sorted {
		n := binary.PutUvarint(lenBuf[:], uint64(len(b.Name)))
		buf.Write(lenBuf[:n])
		buf.WriteString(b.Name)
		n = binary.PutUvarint(lenBuf[:], uint64(len(b.Data)))
		buf.Write(lenBuf[:n])
		buf.Write(b.Data)
	}
	return buf.Bytes()
}

// Sorted returns a copy of blobs ordered by name
func Sorted(blobs []musicmarket.Blob) []musicmarket.Blob {
	sorted := make([]musicmarket.Blob, len(blobs))
	copy(sorted, blobs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return sorted
}

// Validate checks that a batch can be stored: at least one blob, unique names, and names that are
// single path segments.
func Validate(blobs []musicmarket.Blob) error {
	if len(blobs) == 0 {
		return errEmptyBatch
	}
	seen := make(map[string]struct{}, len(blobs))
	for _, b := range blobs {
		if b.Name == "" {
			return errEmptyName
		}
		if b.Name == "." || b.Name == ".." || strings.ContainsAny(b.Name, "/\\\x00") {
			return fmt.Errorf("%w: %q", errInvalidName, b.Name)
		}
		if _, ok := seen[b.Name]; ok {
			return fmt.Errorf("%w: %q", errDuplicateName, b.Name)
		}
		seen[b.Name] = struct{}{}
	}
	return nil
}

// Size returns the total payload size of a batch
func Size(blobs []musicmarket.Blob) int64 {
	var total int64
	for _, b := range blobs {
		total += int64(len(b.Data))
	}
	return total
}

// ParseCID validates s as a CID and returns its canonical string form
func ParseCID(s string) (string, error) {
	c, err := cid.Decode(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid cid %q: %w", s, err)
	}
	return c.String(), nil
}
