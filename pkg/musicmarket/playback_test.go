package musicmarket_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// callLog records player calls across every player in order
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

// MockPlayer is a mock implementation of musicmarket.Player
type MockPlayer struct {
	mock.Mock
	name string
	log  *callLog
}

func (m *MockPlayer) Play() error {
	m.log.add("play " + m.name)
	return m.Called().Error(0)
}

func (m *MockPlayer) Pause() error {
	m.log.add("pause " + m.name)
	return m.Called().Error(0)
}

func newMockPlayers(log *callLog, names ...string) map[uint64]musicmarket.Player {
	players := make(map[uint64]musicmarket.Player, len(names))
	for i, name := range names {
		p := &MockPlayer{name: name, log: log}
		p.On("Play").Return(nil)
		p.On("Pause").Return(nil)
		players[uint64(i)] = p
	}
	return players
}

func TestPlaybackController_Select(t *testing.T) {
	ctx := context.Background()
	log := &callLog{}
	c := musicmarket.NewPlaybackController(nil)
	c.Reset(newMockPlayers(log, "zero", "one", "two"))

	state := c.State()
	assert.Equal(t, musicmarket.PlaybackIdle, state.Status)
	assert.Nil(t, state.IsPlaying())

	state, err := c.Select(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, musicmarket.PlaybackPlaying, state.Status)
	assert.Equal(t, uint64(0), state.Selected)
	assert.False(t, state.HasPrevious)

	state, err = c.Select(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, musicmarket.PlaybackPlaying, state.Status)
	assert.Equal(t, uint64(2), state.Selected)
	assert.Equal(t, uint64(0), state.Previous)

	state, err = c.Select(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, musicmarket.PlaybackPaused, state.Status)
	assert.Equal(t, uint64(2), state.Selected)
	require.NotNil(t, state.IsPlaying())
	assert.False(t, *state.IsPlaying())

	assert.Equal(t, []string{"play zero", "pause zero", "play two", "pause two"}, log.calls)
}

func TestPlaybackController_ResumeAndSwitchWhilePaused(t *testing.T) {
	ctx := context.Background()
	log := &callLog{}
	c := musicmarket.NewPlaybackController(nil)
	c.Reset(newMockPlayers(log, "zero", "one"))

	_, _ = c.Select(ctx, 0)
	_, _ = c.Select(ctx, 0)

	state, err := c.Select(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, musicmarket.PlaybackPlaying, state.Status)

	_, _ = c.Select(ctx, 0)
	state, err = c.Select(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, musicmarket.PlaybackPlaying, state.Status)
	assert.Equal(t, uint64(1), state.Selected)
	assert.Equal(t, uint64(0), state.Previous)

	assert.Equal(t, []string{"play zero", "pause zero", "play zero", "pause zero", "play one"}, log.calls)
}

func TestPlaybackController_UnknownTrack(t *testing.T) {
	c := musicmarket.NewPlaybackController(nil)
	c.Reset(newMockPlayers(&callLog{}, "zero"))

	state, err := c.Select(context.Background(), 9)
	assert.ErrorIs(t, err, musicmarket.ErrUnknownTrack)
	assert.Equal(t, musicmarket.PlaybackIdle, state.Status)
}

func TestPlaybackController_PlayerFailure(t *testing.T) {
	ctx := context.Background()
	log := &callLog{}
	good := &MockPlayer{name: "good", log: log}
	good.On("Play").Return(nil)
	good.On("Pause").Return(nil)
	broken := &MockPlayer{name: "broken", log: log}
	broken.On("Play").Return(errors.New("decode error"))

	c := musicmarket.NewPlaybackController(nil)
	c.Reset(map[uint64]musicmarket.Player{1: good, 2: broken})

	_, err := c.Select(ctx, 1)
	require.NoError(t, err)

	state, err := c.Select(ctx, 2)
	var perr *musicmarket.PlaybackError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "play", perr.Op)
	assert.Equal(t, "2", perr.TokenID)

	// the previous track was paused and stays selected
	assert.Equal(t, musicmarket.PlaybackPaused, state.Status)
	assert.Equal(t, uint64(1), state.Selected)
	assert.Equal(t, state, c.State())
	good.AssertExpectations(t)
	broken.AssertExpectations(t)
}

func TestPlaybackController_SerialisesInputs(t *testing.T) {
	ctx := context.Background()
	players := map[uint64]musicmarket.Player{}
	tracks := make([]*musicmarket.TrackPlayer, 4)
	for i := range tracks {
		tracks[i] = musicmarket.NewTrackPlayer("")
		players[uint64(i)] = tracks[i]
	}
	c := musicmarket.NewPlaybackController(nil)
	c.Reset(players)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			_, _ = c.Select(ctx, id)
		}(uint64(i % 4))
	}
	wg.Wait()

	playing := 0
	for _, p := range tracks {
		if p.Playing() {
			playing++
		}
	}
	assert.LessOrEqual(t, playing, 1)

	state := c.State()
	if state.Status == musicmarket.PlaybackPlaying {
		assert.True(t, tracks[state.Selected].Playing())
		assert.Equal(t, 1, playing)
	} else {
		assert.Equal(t, 0, playing)
	}
}

func TestPlaybackController_ResetPausesPlayingTrack(t *testing.T) {
	ctx := context.Background()
	p := musicmarket.NewTrackPlayer("https://bafk.ipfs.dweb.link/a.mp3")
	sink := &recordingSink{}
	c := musicmarket.NewPlaybackController(sink)
	c.Register(5, p)

	_, err := c.Select(ctx, 5)
	require.NoError(t, err)
	assert.True(t, p.Playing())
	assert.Equal(t, []musicmarket.EventType{musicmarket.EventPlaybackChanged}, sink.types())

	c.Reset(nil)
	assert.False(t, p.Playing())
	assert.Equal(t, musicmarket.PlaybackIdle, c.State().Status)

	_, ok := c.Player(5)
	assert.False(t, ok)
}
