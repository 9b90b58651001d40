package musicmarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/uricodec"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultResolveConcurrency bounds the number of metadata fetches in flight
	DefaultResolveConcurrency = 8

	maxMetadataSize = 1 << 20
)

// Resolver turns token records into display-ready views
type Resolver struct {
	client      *http.Client
	codec       *uricodec.Codec
	cache       MetadataCache
	cacheTTL    time.Duration
	stable      bool
	concurrency int
	iconSize    int
	now         func() time.Time
}

// ResolverOption represents a functional option for configuring the resolver
type ResolverOption func(*Resolver)

// WithHTTPClient sets the client used to fetch metadata documents
func WithHTTPClient(client *http.Client) ResolverOption {
	return func(r *Resolver) {
		r.client = client
	}
}

// WithResolverCodec sets the codec used to parse metadata URIs and build audio URLs
func WithResolverCodec(codec *uricodec.Codec) ResolverOption {
	return func(r *Resolver) {
		r.codec = codec
	}
}

// WithMetadataCache caches fetched metadata documents for ttl, or forever when ttl is zero
func WithMetadataCache(cache MetadataCache, ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cache = cache
		r.cacheTTL = ttl
	}
}

// WithStableIdenticons seeds identicons with name, price and CID so that
// the same token renders the same image on every load
func WithStableIdenticons() ResolverOption {
	return func(r *Resolver) {
		r.stable = true
	}
}

// WithConcurrency bounds the number of concurrent resolutions in ResolveAll
func WithConcurrency(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithIdenticonSize sets the edge length of rendered identicons
func WithIdenticonSize(size int) ResolverOption {
	return func(r *Resolver) {
		if size > 0 {
			r.iconSize = size
		}
	}
}

// WithResolverClock sets the clock that seeds fresh identicons
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a resolver
func NewResolver(options ...ResolverOption) *Resolver {
	r := &Resolver{
		client:      &http.Client{Timeout: 30 * time.Second},
		codec:       uricodec.Default(),
		concurrency: DefaultResolveConcurrency,
		iconSize:    DefaultIdenticonSize,
		now:         time.Now,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Resolve fetches the metadata of one token and builds its view
func (r *Resolver) Resolve(ctx context.Context, rec TokenRecord, uris MetadataURIProvider) (*TokenView, error) {
	id := strconv.FormatUint(rec.TokenID, 10)

	uri, err := uris.TokenURI(ctx, rec.TokenID)
	if err != nil {
		return nil, &ResolveError{TokenID: id, Err: fmt.Errorf("%w: token uri: %v", ErrMetadataFetchFailed, err)}
	}

	meta, err := r.metadata(ctx, id, uri)
	if err != nil {
		return nil, err
	}

	cid, _, ok := r.codec.ParseURI(uri)
	if !ok {
		cid = r.codec.CIDFromGatewayURL(uri)
	}

	seed := meta.Name + meta.Price + r.now().Format(time.RFC3339Nano)
	if r.stable {
		seed = meta.Name + meta.Price + cid
	}
	icon, err := IdenticonDataURI(seed, r.iconSize)
	if err != nil {
		return nil, &ResolveError{TokenID: id, URI: uri, Err: err}
	}

	// Without a CID the stored path is the URL, kept exactly as written
	audioURL := meta.Path
	if cid != "" {
		audioURL = r.codec.GatewayURL(cid, uricodec.Unescape(meta.Path))
	}

	return &TokenView{
		TokenID:          rec.TokenID,
		Price:            rec.Price,
		Seller:           rec.Seller,
		Name:             meta.Name,
		Description:      meta.Description,
		Artist:           meta.Artist,
		AudioURL:         audioURL,
		IdenticonDataURI: icon,
	}, nil
}

// ResolveAll resolves every record concurrently. The returned views and errors are
// aligned with recs: a failed record has a nil view and a non-nil error.
// One failing record never prevents the others from resolving.
func (r *Resolver) ResolveAll(ctx context.Context, recs []TokenRecord, uris MetadataURIProvider) ([]*TokenView, []error) {
	views := make([]*TokenView, len(recs))
	errs := make([]error, len(recs))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i := range recs {
		g.Go(func() error {
			views[i], errs[i] = r.Resolve(ctx, recs[i], uris)
			return nil
		})
	}
	_ = g.Wait()

	return views, errs
}

func (r *Resolver) metadata(ctx context.Context, id, uri string) (*MetadataRecord, error) {
	if r.cache != nil {
		rec, ok, err := r.cache.Get(ctx, uri)
		if err != nil {
			slog.Warn("Failed to read metadata cache", "uri", uri, "err", err)
		} else if ok {
			return rec, nil
		}
	}

	rec, err := r.fetch(ctx, id, uri)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, uri, rec, r.cacheTTL); err != nil {
			slog.Warn("Failed to write metadata cache", "uri", uri, "err", err)
		}
	}
	return rec, nil
}

func (r *Resolver) fetch(ctx context.Context, id, uri string) (*MetadataRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.codec.FetchURL(uri), nil)
	if err != nil {
		return nil, &ResolveError{TokenID: id, URI: uri, Err: fmt.Errorf("%w: %v", ErrMetadataFetchFailed, err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &ResolveError{TokenID: id, URI: uri, Err: fmt.Errorf("%w: %v", ErrMetadataFetchFailed, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ResolveError{TokenID: id, URI: uri, StatusCode: resp.StatusCode, Err: ErrMetadataFetchFailed}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataSize))
	if err != nil {
		return nil, &ResolveError{TokenID: id, URI: uri, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrMetadataFetchFailed, err)}
	}

	rec, err := ParseMetadata(body)
	if err != nil {
		return nil, &ResolveError{TokenID: id, URI: uri, StatusCode: resp.StatusCode, Err: err}
	}
	return rec, nil
}

// wireMetadata distinguishes absent fields from empty ones
type wireMetadata struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Artist      *string `json:"artist"`
	Price       *string `json:"price"`
	Path        *string `json:"path"`
}

// ParseMetadata decodes a metadata document. Every field must be present and
// all but description must be non-empty.
func ParseMetadata(data []byte) (*MetadataRecord, error) {
	var w wireMetadata
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataParseFailed, err)
	}

	var missing []string
	check := func(field string, v *string, nonEmpty bool) {
		if v == nil || (nonEmpty && *v == "") {
			missing = append(missing, field)
		}
	}
	check("name", w.Name, true)
	check("description", w.Description, false)
	check("artist", w.Artist, true)
	check("price", w.Price, true)
	check("path", w.Path, true)
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing fields %s", ErrMetadataParseFailed, strings.Join(missing, ", "))
	}

	return &MetadataRecord{
		Name:        *w.Name,
		Description: *w.Description,
		Artist:      *w.Artist,
		Price:       *w.Price,
		Path:        *w.Path,
	}, nil
}
