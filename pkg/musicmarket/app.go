package musicmarket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/uricodec"
)

// ListingView names one of the token listings held by the App
type ListingView string

const (
	MarketView   ListingView = "market"
	MyTokensView ListingView = "mine"
)

// PlayerFactory creates the Player of a resolved token
type PlayerFactory func(view *TokenView) Player

// App is the application state shared by every client facing surface.
// Connect is the only writer of the account; LoadMarket and LoadMyTokens are the
// only writers of the listings.
type App struct {
	market    Marketplace
	store     ContentStore
	publisher *Publisher
	resolver  *Resolver
	events    EventSink
	newPlayer PlayerFactory

	codec         *uricodec.Codec
	httpClient    *http.Client
	cache         MetadataCache
	cacheTTL      time.Duration
	stableIcons   bool
	concurrency   int
	now           func() time.Time
	resolverOpts  []ResolverOption
	publisherOpts []PublisherOption

	// loadMu serialises LoadMarket and LoadMyTokens
	loadMu sync.Mutex

	mu        sync.RWMutex
	account   common.Address
	connected bool
	isOwner   bool
	isArtist  bool
	listing   []*TokenView
	myTokens  []*TokenView

	playback map[ListingView]*PlaybackController
}

// Option represents a functional option for configuring the App
type Option func(*App)

// WithContentStore sets the store that published batches are written to
func WithContentStore(store ContentStore) Option {
	return func(a *App) {
		a.store = store
	}
}

// WithMarketplace sets the marketplace contract
func WithMarketplace(market Marketplace) Option {
	return func(a *App) {
		a.market = market
	}
}

// WithCodec sets the URI codec shared by the publisher and resolver
func WithCodec(codec *uricodec.Codec) Option {
	return func(a *App) {
		a.codec = codec
	}
}

// WithEventSink sets the sink that receives operation results
func WithEventSink(sink EventSink) Option {
	return func(a *App) {
		a.events = sink
	}
}

// WithMetadataFetcher sets the HTTP client used to fetch metadata documents
func WithMetadataFetcher(client *http.Client) Option {
	return func(a *App) {
		a.httpClient = client
	}
}

// WithCache caches resolved metadata documents
func WithCache(cache MetadataCache, ttl time.Duration) Option {
	return func(a *App) {
		a.cache = cache
		a.cacheTTL = ttl
	}
}

// WithStableIdenticonSeed makes identicons depend on name, price and CID only
func WithStableIdenticonSeed() Option {
	return func(a *App) {
		a.stableIcons = true
	}
}

// WithResolveConcurrency bounds concurrent metadata fetches while loading a listing
func WithResolveConcurrency(n int) Option {
	return func(a *App) {
		a.concurrency = n
	}
}

// WithClock sets the clock used for batch names and identicon seeds
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// WithPlayerFactory sets how players are created for loaded tokens
func WithPlayerFactory(factory PlayerFactory) Option {
	return func(a *App) {
		a.newPlayer = factory
	}
}

// WithResolverOptions passes extra options to the resolver
func WithResolverOptions(options ...ResolverOption) Option {
	return func(a *App) {
		a.resolverOpts = append(a.resolverOpts, options...)
	}
}

// WithPublisherOptions passes extra options to the publisher
func WithPublisherOptions(options ...PublisherOption) Option {
	return func(a *App) {
		a.publisherOpts = append(a.publisherOpts, options...)
	}
}

// New creates an App with the given options
func New(options ...Option) (*App, error) {
	a := &App{
		codec:  uricodec.Default(),
		events: NewNoopEventSink(),
		now:    time.Now,
		newPlayer: func(view *TokenView) Player {
			return NewTrackPlayer(view.AudioURL)
		},
	}
	for _, option := range options {
		option(a)
	}

	if a.store == nil {
		return nil, fmt.Errorf("content store is required")
	}
	if a.market == nil {
		return nil, fmt.Errorf("marketplace is required")
	}

	a.publisher = NewPublisher(a.store, append([]PublisherOption{
		WithPublisherCodec(a.codec),
		WithPublisherEvents(a.events),
		WithPublisherClock(a.now),
	}, a.publisherOpts...)...)

	resolverOpts := []ResolverOption{
		WithResolverCodec(a.codec),
		WithResolverClock(a.now),
		WithConcurrency(a.concurrency),
	}
	if a.httpClient != nil {
		resolverOpts = append(resolverOpts, WithHTTPClient(a.httpClient))
	}
	if a.cache != nil {
		resolverOpts = append(resolverOpts, WithMetadataCache(a.cache, a.cacheTTL))
	}
	if a.stableIcons {
		resolverOpts = append(resolverOpts, WithStableIdenticons())
	}
	a.resolver = NewResolver(append(resolverOpts, a.resolverOpts...)...)

	a.playback = map[ListingView]*PlaybackController{
		MarketView:   NewPlaybackController(a.events),
		MyTokensView: NewPlaybackController(a.events),
	}
	return a, nil
}

// Publisher returns the publisher used by ListTrack
func (a *App) Publisher() *Publisher { return a.publisher }

// Resolver returns the resolver used to load listings
func (a *App) Resolver() *Resolver { return a.resolver }

// Marketplace returns the marketplace contract
func (a *App) Marketplace() Marketplace { return a.market }

// ContentStore returns the store published batches are written to
func (a *App) ContentStore() ContentStore { return a.store }

// Codec returns the URI codec
func (a *App) Codec() *uricodec.Codec { return a.codec }

// Playback returns the playback controller of a listing view
func (a *App) Playback(view ListingView) *PlaybackController {
	return a.playback[view]
}

// Connect sets the active account and refreshes its owner and artist flags
func (a *App) Connect(ctx context.Context, account common.Address) error {
	isOwner, err := a.market.CheckIsOwner(ctx, account)
	if err != nil {
		return fmt.Errorf("failed to check owner: %w", err)
	}
	isArtist, err := a.market.CheckArtistExisted(ctx, account)
	if err != nil {
		return fmt.Errorf("failed to check artist: %w", err)
	}

	a.mu.Lock()
	a.account = account
	a.connected = true
	a.isOwner = isOwner
	a.isArtist = isArtist
	a.mu.Unlock()

	emit(ctx, a.events, EventAccountConnected, 0, account.Hex(), nil)
	return nil
}

// Session returns an App connected to account. It shares this App's contract, store,
// publisher, resolver and events, and starts from a copy of its market listing.
func (a *App) Session(ctx context.Context, account common.Address) (*App, error) {
	s := &App{
		market:    a.market,
		store:     a.store,
		publisher: a.publisher,
		resolver:  a.resolver,
		events:    a.events,
		newPlayer: a.newPlayer,
		codec:     a.codec,
		now:       a.now,
		listing:   a.Market(),
		playback: map[ListingView]*PlaybackController{
			MarketView:   NewPlaybackController(a.events),
			MyTokensView: NewPlaybackController(a.events),
		},
	}
	s.playback[MarketView].Reset(s.players(s.listing))

	if err := s.Connect(ctx, account); err != nil {
		return nil, err
	}
	return s, nil
}

// Account returns the connected account
func (a *App) Account() (common.Address, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.account, a.connected
}

// IsOwner reports whether the connected account owns the marketplace contract
func (a *App) IsOwner() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.isOwner
}

// IsArtist reports whether the connected account is a registered artist
func (a *App) IsArtist() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.isArtist
}

// IsSeller reports whether the connected account is the seller of view
func (a *App) IsSeller(view *TokenView) bool {
	if view == nil {
		return false
	}
	account, ok := a.Account()
	return ok && view.Seller == account
}

// Market returns the last loaded market listing
func (a *App) Market() []*TokenView {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*TokenView(nil), a.listing...)
}

// MyTokens returns the last loaded tokens of the connected account
func (a *App) MyTokens() []*TokenView {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*TokenView(nil), a.myTokens...)
}

// LoadMarket reloads every unsold token. Tokens whose metadata cannot be resolved
// are left out of the listing and reported as events; the returned int counts them.
func (a *App) LoadMarket(ctx context.Context) ([]*TokenView, int, error) {
	a.loadMu.Lock()
	defer a.loadMu.Unlock()

	recs, err := a.market.GetAllUnsoldTokens(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load market: %w", err)
	}

	views, unresolved := a.resolve(ctx, recs)

	a.mu.Lock()
	a.listing = views
	a.mu.Unlock()
	a.playback[MarketView].Reset(a.players(views))

	emit(ctx, a.events, EventMarketLoaded, 0, fmt.Sprintf("%d tracks, %d unresolved", len(views), unresolved), nil)
	return views, unresolved, nil
}

// LoadMyTokens reloads the tokens owned or listed by the connected account
func (a *App) LoadMyTokens(ctx context.Context) ([]*TokenView, int, error) {
	account, ok := a.Account()
	if !ok {
		return nil, 0, ErrNotConnected
	}

	a.loadMu.Lock()
	defer a.loadMu.Unlock()

	recs, err := a.market.GetMyTokens(ctx, account)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load tokens of %s: %w", account.Hex(), err)
	}

	views, unresolved := a.resolve(ctx, recs)

	a.mu.Lock()
	a.myTokens = views
	a.mu.Unlock()
	a.playback[MyTokensView].Reset(a.players(views))

	return views, unresolved, nil
}

// ListTrack publishes a track and mints a token pointing at its metadata gateway URL
func (a *App) ListTrack(ctx context.Context, asset Asset, info TrackInfo) (*PublishResult, uint64, error) {
	account, ok := a.Account()
	if !ok {
		return nil, 0, ErrNotConnected
	}

	price, err := ParseEther(info.Price)
	if err != nil {
		emit(ctx, a.events, EventListFailed, 0, info.Name, err)
		return nil, 0, err
	}

	result, err := a.publisher.Publish(ctx, asset, info)
	if err != nil {
		emit(ctx, a.events, EventListFailed, 0, info.Name, err)
		return nil, 0, err
	}

	fee, err := a.market.GetRoyaltyFee(ctx)
	if err != nil {
		err = fmt.Errorf("failed to read royalty fee: %w", err)
		emit(ctx, a.events, EventListFailed, 0, info.Name, err)
		return result, 0, err
	}

	tokenID, err := a.market.CreateToken(ctx, account, result.MetadataGatewayURL, price, fee)
	if err != nil {
		err = fmt.Errorf("failed to create token: %w", err)
		emit(ctx, a.events, EventListFailed, 0, info.Name, err)
		return result, 0, err
	}

	emit(ctx, a.events, EventTrackListed, tokenID, result.MetadataGatewayURL, nil)
	return result, tokenID, nil
}

// BuyToken buys a token of the loaded market listing at its listed price
func (a *App) BuyToken(ctx context.Context, tokenID uint64) error {
	account, ok := a.Account()
	if !ok {
		return ErrNotConnected
	}

	view := find(a.Market(), tokenID)
	if view == nil {
		emit(ctx, a.events, EventBuyFailed, tokenID, "", ErrTrackNotListed)
		return ErrTrackNotListed
	}
	if view.Seller == account {
		emit(ctx, a.events, EventBuyFailed, tokenID, view.Name, ErrOwnListing)
		return ErrOwnListing
	}

	if err := a.market.BuyToken(ctx, account, tokenID, view.Price); err != nil {
		err = fmt.Errorf("failed to buy token %d: %w", tokenID, err)
		emit(ctx, a.events, EventBuyFailed, tokenID, view.Name, err)
		return err
	}

	emit(ctx, a.events, EventTokenBought, tokenID, view.Name, nil)
	if _, _, err := a.LoadMarket(ctx); err != nil {
		slog.Error("Failed to reload market after buy", "token_id", tokenID, "err", err)
	}
	return nil
}

// ResellToken lists an owned token again at price, an ether decimal
func (a *App) ResellToken(ctx context.Context, tokenID uint64, price string) error {
	account, ok := a.Account()
	if !ok {
		return ErrNotConnected
	}

	wei, err := ParseEther(price)
	if err != nil {
		emit(ctx, a.events, EventResellFailed, tokenID, price, err)
		return err
	}

	fee, err := a.market.GetRoyaltyFee(ctx)
	if err != nil {
		err = fmt.Errorf("failed to read royalty fee: %w", err)
		emit(ctx, a.events, EventResellFailed, tokenID, price, err)
		return err
	}

	if err := a.market.ResellToken(ctx, account, tokenID, wei, fee); err != nil {
		err = fmt.Errorf("failed to resell token %d: %w", tokenID, err)
		emit(ctx, a.events, EventResellFailed, tokenID, price, err)
		return err
	}

	emit(ctx, a.events, EventTokenResold, tokenID, price, nil)
	if _, _, err := a.LoadMyTokens(ctx); err != nil {
		slog.Error("Failed to reload tokens after resell", "token_id", tokenID, "err", err)
	}
	return nil
}

// RegisterArtist registers address as an artist unless it already is one
func (a *App) RegisterArtist(ctx context.Context, address common.Address) error {
	account, ok := a.Account()
	if !ok {
		return ErrNotConnected
	}

	exists, err := a.market.CheckArtistExisted(ctx, address)
	if err != nil {
		err = fmt.Errorf("failed to check artist: %w", err)
		emit(ctx, a.events, EventArtistFailed, 0, address.Hex(), err)
		return err
	}
	if exists {
		emit(ctx, a.events, EventArtistFailed, 0, address.Hex(), ErrArtistExists)
		return ErrArtistExists
	}

	if err := a.market.CreateNewArtist(ctx, account, address); err != nil {
		err = fmt.Errorf("failed to create artist: %w", err)
		emit(ctx, a.events, EventArtistFailed, 0, address.Hex(), err)
		return err
	}

	if address == account {
		a.mu.Lock()
		a.isArtist = true
		a.mu.Unlock()
	}
	emit(ctx, a.events, EventArtistCreated, 0, address.Hex(), nil)
	return nil
}

// SelectTrack toggles playback of a token of the market listing
func (a *App) SelectTrack(ctx context.Context, tokenID uint64) (PlaybackState, error) {
	return a.playback[MarketView].Select(ctx, tokenID)
}

// SelectMyTrack toggles playback of a token of the connected account's listing
func (a *App) SelectMyTrack(ctx context.Context, tokenID uint64) (PlaybackState, error) {
	return a.playback[MyTokensView].Select(ctx, tokenID)
}

func (a *App) resolve(ctx context.Context, recs []TokenRecord) ([]*TokenView, int) {
	resolved, errs := a.resolver.ResolveAll(ctx, recs, a.market)

	views := make([]*TokenView, 0, len(resolved))
	unresolved := 0
	for i, view := range resolved {
		if errs[i] != nil {
			unresolved++
			var rerr *ResolveError
			if !errors.As(errs[i], &rerr) {
				rerr = &ResolveError{Err: errs[i]}
			}
			emit(ctx, a.events, EventResolveFailed, recs[i].TokenID, rerr.URI, errs[i])
			continue
		}
		views = append(views, view)
	}
	return views, unresolved
}

func (a *App) players(views []*TokenView) map[uint64]Player {
	players := make(map[uint64]Player, len(views))
	for _, v := range views {
		players[v.TokenID] = a.newPlayer(v)
	}
	return players
}

func find(views []*TokenView, tokenID uint64) *TokenView {
	for _, v := range views {
		if v.TokenID == tokenID {
			return v
		}
	}
	return nil
}
