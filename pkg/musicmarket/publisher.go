package musicmarket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket/uricodec"
)

// BatchPrefix is prepended to every batch name sent to the content store
const BatchPrefix = "btl"

// Publisher stores an asset together with its metadata document as one batch
type Publisher struct {
	store  ContentStore
	codec  *uricodec.Codec
	events EventSink
	now    func() time.Time
}

// PublisherOption represents a functional option for configuring the publisher
type PublisherOption func(*Publisher)

// WithPublisherCodec sets the URI codec used to build result references
func WithPublisherCodec(codec *uricodec.Codec) PublisherOption {
	return func(p *Publisher) {
		p.codec = codec
	}
}

// WithPublisherEvents sets the sink that receives publish results
func WithPublisherEvents(sink EventSink) PublisherOption {
	return func(p *Publisher) {
		p.events = sink
	}
}

// WithPublisherClock sets the clock used to timestamp batch names
func WithPublisherClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		p.now = now
	}
}

// NewPublisher creates a publisher writing to store
func NewPublisher(store ContentStore, options ...PublisherOption) *Publisher {
	p := &Publisher{
		store:  store,
		codec:  uricodec.Default(),
		events: NewNoopEventSink(),
		now:    time.Now,
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Codec returns the URI codec used by the publisher
func (p *Publisher) Codec() *uricodec.Codec {
	return p.codec
}

// Publish stores asset and a metadata.json describing it in a single batch.
// Nothing is retried; every failure is returned as a PublishError.
func (p *Publisher) Publish(ctx context.Context, asset Asset, info TrackInfo) (*PublishResult, error) {
	if err := validateTrack(asset, info); err != nil {
		emit(ctx, p.events, EventPublishFailed, 0, info.Name, err)
		return nil, err
	}

	record := MetadataRecord{
		Name:        info.Name,
		Description: info.Description,
		Artist:      info.Artist,
		Price:       info.Price,
		Path:        uricodec.Escape(asset.FileName),
	}
	metadata, err := json.Marshal(record)
	if err != nil {
		perr := &PublishError{Track: info.Name, Err: fmt.Errorf("failed to encode metadata: %w", err)}
		emit(ctx, p.events, EventPublishFailed, 0, info.Name, perr)
		return nil, perr
	}

	batch := []Blob{
		{Name: asset.FileName, Data: asset.Data},
		{Name: MetadataFileName, Data: metadata},
	}

	cid, err := p.store.Put(ctx, p.BatchName(info.Name), batch)
	if err != nil {
		perr := &PublishError{Track: info.Name, Err: err}
		emit(ctx, p.events, EventPublishFailed, 0, info.Name, perr)
		return nil, perr
	}

	result := &PublishResult{
		CID:                cid,
		MetadataURI:        p.codec.AssetURI(cid, MetadataFileName),
		MetadataGatewayURL: p.codec.GatewayURL(cid, MetadataFileName),
		AudioURI:           p.codec.AssetURI(cid, asset.FileName),
		AudioGatewayURL:    p.codec.GatewayURL(cid, asset.FileName),
	}

	emit(ctx, p.events, EventTrackPublished, 0, result.CID, nil)
	return result, nil
}

// BatchName returns the human readable label of a batch published now for track
func (p *Publisher) BatchName(track string) string {
	return strings.Join([]string{BatchPrefix, track, p.now().Format(time.RFC1123)}, "-")
}

func validateTrack(asset Asset, info TrackInfo) error {
	fields := []struct {
		name  string
		value string
	}{
		{"name", info.Name},
		{"description", info.Description},
		{"artist", info.Artist},
		{"price", info.Price},
		{"file_name", asset.FileName},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &PublishError{Track: info.Name, Field: f.name, Err: ErrMissingField}
		}
	}
	if asset.Data == nil {
		return &PublishError{Track: info.Name, Field: "data", Err: ErrMissingField}
	}
	if asset.FileName == MetadataFileName {
		return &PublishError{
			Track: info.Name,
			Field: "file_name",
			Err:   fmt.Errorf("asset may not be named %s", MetadataFileName),
		}
	}
	return nil
}
