package musicmarket

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// MetadataFileName is the name of the metadata blob stored next to every published asset
const MetadataFileName = "metadata.json"

// Blob is a named byte payload stored as part of a batch
type Blob struct {
	Name string
	Data []byte
}

// Asset is the user supplied file being published
type Asset struct {
	FileName string
	Data     []byte
}

// TrackInfo is the descriptive information a publisher supplies with an asset
type TrackInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Artist      string `json:"artist"`
	Price       string `json:"price"`
}

// MetadataRecord is the JSON document stored as metadata.json.
// Path holds the percent-encoded file name of the asset in the same batch.
type MetadataRecord struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Artist      string `json:"artist"`
	Price       string `json:"price"`
	Path        string `json:"path"`
}

// PublishResult holds the references returned by a successful publish
type PublishResult struct {
	CID                string `json:"cid"`
	MetadataURI        string `json:"metadata_uri"`
	MetadataGatewayURL string `json:"metadata_gateway_url"`
	AudioURI           string `json:"audio_uri"`
	AudioGatewayURL    string `json:"audio_gateway_url"`
}

// TokenRecord is a token as reported by the marketplace contract
type TokenRecord struct {
	TokenID uint64
	Price   *big.Int
	Seller  common.Address
	Owner   common.Address
	Sold    bool
}

// TokenView is the display-ready aggregate of a token record and its metadata
type TokenView struct {
	TokenID          uint64         `json:"token_id"`
	Price            *big.Int       `json:"price"`
	Seller           common.Address `json:"seller"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	Artist           string         `json:"artist"`
	AudioURL         string         `json:"audio_url"`
	IdenticonDataURI string         `json:"identicon_data_uri"`
}

// EventType identifies the kind of an Event
type EventType string

const (
	EventTrackPublished   EventType = "track_published"
	EventPublishFailed    EventType = "publish_failed"
	EventTrackListed      EventType = "track_listed"
	EventListFailed       EventType = "list_failed"
	EventResolveFailed    EventType = "resolve_failed"
	EventMarketLoaded     EventType = "market_loaded"
	EventTokenBought      EventType = "token_bought"
	EventBuyFailed        EventType = "buy_failed"
	EventTokenResold      EventType = "token_resold"
	EventResellFailed     EventType = "resell_failed"
	EventArtistCreated    EventType = "artist_created"
	EventArtistFailed     EventType = "artist_failed"
	EventPlaybackChanged  EventType = "playback_changed"
	EventAccountConnected EventType = "account_connected"
)

// Event is a structured result published to subscribers in place of user facing alerts
type Event struct {
	ID      uuid.UUID `json:"id"`
	Type    EventType `json:"type"`
	TokenID uint64    `json:"token_id,omitempty"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

// IsFailure reports whether the event describes a failed operation
func (e Event) IsFailure() bool {
	return e.Error != ""
}

// NewEvent builds an event stamped with a fresh id and the current time
func NewEvent(t EventType, tokenID uint64, message string, err error) Event {
	ev := Event{
		ID:      uuid.New(),
		Type:    t,
		TokenID: tokenID,
		Message: message,
		Time:    time.Now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}
