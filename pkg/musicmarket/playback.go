package musicmarket

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// PlaybackStatus is the state of the single active player of a listing
type PlaybackStatus int

const (
	PlaybackIdle PlaybackStatus = iota
	PlaybackPlaying
	PlaybackPaused
)

func (s PlaybackStatus) String() string {
	switch s {
	case PlaybackPlaying:
		return "playing"
	case PlaybackPaused:
		return "paused"
	default:
		return "idle"
	}
}

func (s PlaybackStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PlaybackStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "playing":
		*s = PlaybackPlaying
	case "paused":
		*s = PlaybackPaused
	case "idle":
		*s = PlaybackIdle
	default:
		return fmt.Errorf("unknown playback status %q", text)
	}
	return nil
}

// PlaybackState is a snapshot of a playback controller.
// Selected and Previous are only meaningful when HasSelected and HasPrevious are set.
type PlaybackState struct {
	Status      PlaybackStatus `json:"status"`
	Selected    uint64         `json:"selected"`
	HasSelected bool           `json:"has_selected"`
	Previous    uint64         `json:"previous"`
	HasPrevious bool           `json:"has_previous"`
}

// IsPlaying returns nil before the first selection, then whether the selected track is playing
func (s PlaybackState) IsPlaying() *bool {
	if s.Status == PlaybackIdle {
		return nil
	}
	playing := s.Status == PlaybackPlaying
	return &playing
}

// PlaybackController guarantees at most one track of a listing plays at a time
type PlaybackController struct {
	mu      sync.Mutex
	players map[uint64]Player
	state   PlaybackState
	events  EventSink
}

// NewPlaybackController creates an idle controller with no players
func NewPlaybackController(events EventSink) *PlaybackController {
	if events == nil {
		events = NewNoopEventSink()
	}
	return &PlaybackController{
		players: make(map[uint64]Player),
		events:  events,
	}
}

// Register adds or replaces the player of a token
func (c *PlaybackController) Register(tokenID uint64, player Player) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.players[tokenID] = player
}

// Reset replaces every player and returns the controller to idle.
// A playing track is paused first.
func (c *PlaybackController) Reset(players map[uint64]Player) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status == PlaybackPlaying {
		if p, ok := c.players[c.state.Selected]; ok {
			_ = p.Pause()
		}
	}

	c.players = make(map[uint64]Player, len(players))
	for id, p := range players {
		c.players[id] = p
	}
	c.state = PlaybackState{}
}

// State returns the current snapshot
func (c *PlaybackController) State() PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Player returns the registered player of a token
func (c *PlaybackController) Player(tokenID uint64) (Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.players[tokenID]
	return p, ok
}

// Select handles a play/pause input on tokenID.
// Selecting the playing track pauses it; selecting another track pauses the
// playing one before the new one starts.
func (c *PlaybackController) Select(ctx context.Context, tokenID uint64) (PlaybackState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := strconv.FormatUint(tokenID, 10)
	next, ok := c.players[tokenID]
	if !ok {
		return c.state, &PlaybackError{TokenID: id, Op: "select", Err: ErrUnknownTrack}
	}

	prev := c.state
	switch {
	case prev.Status == PlaybackPlaying && prev.Selected == tokenID:
		if err := next.Pause(); err != nil {
			return c.state, &PlaybackError{TokenID: id, Op: "pause", Err: err}
		}
		c.state.Status = PlaybackPaused

	case prev.Status == PlaybackPlaying:
		current, ok := c.players[prev.Selected]
		if ok {
			if err := current.Pause(); err != nil {
				return c.state, &PlaybackError{TokenID: strconv.FormatUint(prev.Selected, 10), Op: "pause", Err: err}
			}
		}
		c.state.Status = PlaybackPaused
		if err := next.Play(); err != nil {
			return c.state, &PlaybackError{TokenID: id, Op: "play", Err: err}
		}
		c.state = PlaybackState{
			Status:      PlaybackPlaying,
			Selected:    tokenID,
			HasSelected: true,
			Previous:    prev.Selected,
			HasPrevious: true,
		}

	default:
		if err := next.Play(); err != nil {
			return c.state, &PlaybackError{TokenID: id, Op: "play", Err: err}
		}
		c.state = PlaybackState{
			Status:      PlaybackPlaying,
			Selected:    tokenID,
			HasSelected: true,
			Previous:    prev.Selected,
			HasPrevious: prev.HasSelected,
		}
	}

	emit(ctx, c.events, EventPlaybackChanged, tokenID, c.state.Status.String(), nil)
	return c.state, nil
}

// TrackPlayer is a headless Player that tracks whether its audio URL is playing.
// Servers use it to mirror client side media elements.
type TrackPlayer struct {
	mu      sync.Mutex
	URL     string
	playing bool
}

// NewTrackPlayer creates a paused player for url
func NewTrackPlayer(url string) *TrackPlayer {
	return &TrackPlayer{URL: url}
}

func (p *TrackPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	return nil
}

func (p *TrackPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	return nil
}

// Playing reports whether Play was called more recently than Pause
func (p *TrackPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}
