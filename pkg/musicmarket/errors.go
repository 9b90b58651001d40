package musicmarket

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrStoreUnavailable indicates the content store could not be reached
	ErrStoreUnavailable = errors.New("content store unavailable")

	// ErrStoreRejected indicates the content store refused the batch (size, quota, invalid payload)
	ErrStoreRejected = errors.New("content store rejected payload")

	// ErrObjectNotFound indicates no object exists for a cid/path pair
	ErrObjectNotFound = errors.New("object not found")

	// ErrPublishFailed indicates a publish operation did not produce a CID
	ErrPublishFailed = errors.New("publish failed")

	// ErrMissingField indicates a required track field was empty
	ErrMissingField = errors.New("missing required field")

	// ErrMetadataFetchFailed indicates the metadata document could not be fetched
	ErrMetadataFetchFailed = errors.New("metadata fetch failed")

	// ErrMetadataParseFailed indicates the metadata document was not a valid metadata record
	ErrMetadataParseFailed = errors.New("metadata parse failed")

	// ErrUnknownTrack indicates a playback selection for a token with no registered player
	ErrUnknownTrack = errors.New("unknown track")

	// ErrNotConnected indicates an operation that needs an account was called before Connect
	ErrNotConnected = errors.New("no account connected")

	// ErrInvalidPrice indicates a price that is empty, zero, negative or malformed
	ErrInvalidPrice = errors.New("invalid price")

	// ErrOwnListing indicates an account tried to buy a token it is selling
	ErrOwnListing = errors.New("cannot buy own listing")

	// ErrArtistExists indicates the address is already registered as an artist
	ErrArtistExists = errors.New("artist already exists")

	// ErrTrackNotListed indicates the token is not part of the loaded listing
	ErrTrackNotListed = errors.New("track not listed")
)

// StoreError represents a failed content store operation
type StoreError struct {
	Backend string
	Name    string
	Op      string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation %s failed for batch %q on backend %s: %v", e.Op, e.Name, e.Backend, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err so that it matches ErrStoreUnavailable
func Unavailable(backend, op, name string, err error) error {
	return &StoreError{Backend: backend, Name: name, Op: op, Err: fmt.Errorf("%w: %v", ErrStoreUnavailable, err)}
}

// Rejected wraps err so that it matches ErrStoreRejected
func Rejected(backend, op, name string, err error) error {
	return &StoreError{Backend: backend, Name: name, Op: op, Err: fmt.Errorf("%w: %v", ErrStoreRejected, err)}
}

// PublishError represents a failed publish
type PublishError struct {
	Track string
	Field string
	Err   error
}

func (e *PublishError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("publish of track %q failed: field %s: %v", e.Track, e.Field, e.Err)
	}
	return fmt.Sprintf("publish of track %q failed: %v", e.Track, e.Err)
}

func (e *PublishError) Unwrap() []error {
	return []error{ErrPublishFailed, e.Err}
}

// ResolveError represents a failed token resolution
type ResolveError struct {
	TokenID    string
	URI        string
	StatusCode int
	Err        error
}

func (e *ResolveError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("resolve of token %s failed for %s (status %d): %v", e.TokenID, e.URI, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("resolve of token %s failed for %s: %v", e.TokenID, e.URI, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// PlaybackError represents a player failure while switching tracks
type PlaybackError struct {
	TokenID string
	Op      string
	Err     error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback %s failed for token %s: %v", e.Op, e.TokenID, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}
