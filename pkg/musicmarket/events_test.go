package musicmarket_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	ok := musicmarket.NewEvent(musicmarket.EventTokenBought, 3, "Song A", nil)
	assert.False(t, ok.IsFailure())
	assert.Equal(t, uint64(3), ok.TokenID)
	assert.False(t, ok.Time.IsZero())

	failed := musicmarket.NewEvent(musicmarket.EventBuyFailed, 3, "Song A", errors.New("insufficient funds"))
	assert.True(t, failed.IsFailure())
	assert.Equal(t, "insufficient funds", failed.Error)
	assert.NotEqual(t, ok.ID, failed.ID)
}

func TestBroadcaster(t *testing.T) {
	b := musicmarket.NewBroadcaster()
	first, unsubFirst := b.Subscribe(4)
	second, unsubSecond := b.Subscribe(1)
	assert.Equal(t, 2, b.Subscribers())

	ev := musicmarket.NewEvent(musicmarket.EventMarketLoaded, 0, "2 tracks", nil)
	require.NoError(t, b.Publish(context.Background(), ev))
	assert.Equal(t, ev, <-first)
	assert.Equal(t, ev, <-second)

	// a full subscriber does not block the publisher
	require.NoError(t, b.Publish(context.Background(), ev))
	require.NoError(t, b.Publish(context.Background(), ev))
	assert.Len(t, second, 1)
	assert.Len(t, first, 2)

	unsubSecond()
	unsubSecond()
	assert.Equal(t, 1, b.Subscribers())
	<-second
	_, open := <-second
	assert.False(t, open)

	unsubFirst()
	assert.Equal(t, 0, b.Subscribers())
}

func TestLoggingEventSink(t *testing.T) {
	var buf bytes.Buffer
	sink := musicmarket.NewLoggingEventSink(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, sink.Publish(context.Background(), musicmarket.NewEvent(musicmarket.EventTrackListed, 9, "uri", nil)))
	assert.Contains(t, buf.String(), "type=track_listed")
	assert.Contains(t, buf.String(), "token_id=9")

	buf.Reset()
	require.NoError(t, sink.Publish(context.Background(), musicmarket.NewEvent(musicmarket.EventListFailed, 0, "", errors.New("boom"))))
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "err=boom")
}

func TestMultiSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	sink := musicmarket.MultiSink{a, nil, b, musicmarket.NewNoopEventSink()}

	require.NoError(t, sink.Publish(context.Background(), musicmarket.NewEvent(musicmarket.EventArtistCreated, 0, "", nil)))
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}
