package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	calls atomic.Int32
	block chan struct{}
	err   error
}

func (l *countingLoader) LoadMarket(ctx context.Context) ([]*musicmarket.TokenView, int, error) {
	l.calls.Add(1)
	if l.block != nil {
		<-l.block
	}
	return nil, 0, l.err
}

func TestService_ScheduleValidates(t *testing.T) {
	s := NewService(nil, &countingLoader{})
	assert.Error(t, s.Schedule("not a schedule"))
	assert.NoError(t, s.Schedule("@every 1h"))
	assert.NoError(t, s.Schedule("*/10 * * * * *"))
	assert.Len(t, s.cron.Entries(), 1)
}

func TestService_Run(t *testing.T) {
	loader := &countingLoader{err: errors.New("rpc down")}
	s := NewService(nil, loader)
	s.Run(context.Background())
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestService_RunDoesNotOverlap(t *testing.T) {
	loader := &countingLoader{block: make(chan struct{})}
	s := NewService(nil, loader)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.Run(context.Background())
	assert.Equal(t, int32(1), loader.calls.Load())

	close(loader.block)
	<-done
}

func TestService_StartStop(t *testing.T) {
	loader := &countingLoader{}
	s := NewService(nil, loader)
	require.NoError(t, s.Schedule("@every 1s"))
	s.Start()

	require.Eventually(t, func() bool { return loader.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
