// Package refresh reloads the market listing on a cron schedule.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/robfig/cron/v3"
)

// Loader reloads a listing
type Loader interface {
	LoadMarket(ctx context.Context) ([]*musicmarket.TokenView, int, error)
}

// DefaultTimeout bounds a single refresh run
const DefaultTimeout = 2 * time.Minute

// Service runs Loader.LoadMarket on a schedule. Runs never overlap.
type Service struct {
	cron    *cron.Cron
	parser  cron.Parser
	loader  Loader
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	entry   cron.EntryID
	running sync.Mutex
}

// NewService creates a stopped refresh service
func NewService(log *slog.Logger, loader Loader) *Service {
	if log == nil {
		log = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Service{
		cron:    cron.New(cron.WithParser(parser)),
		parser:  parser,
		loader:  loader,
		logger:  log.With(slog.String("service", "refresh")),
		timeout: DefaultTimeout,
	}
}

// Schedule replaces the current schedule with spec
func (s *Service) Schedule(spec string) error {
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron pattern: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	id, err := s.cron.AddFunc(spec, func() { s.Run(context.Background()) })
	if err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}
	s.entry = id
	s.logger.Info("Listing refresh scheduled", "schedule", spec)
	return nil
}

// Start begins running scheduled refreshes
func (s *Service) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running refresh until ctx is done
func (s *Service) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run performs one refresh. A refresh already in progress makes it a no-op.
func (s *Service) Run(ctx context.Context) {
	if !s.running.TryLock() {
		s.logger.Debug("Skipping refresh, previous run still in progress")
		return
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	views, unresolved, err := s.loader.LoadMarket(ctx)
	if err != nil {
		s.logger.Error("Failed to refresh listing", "err", err)
		return
	}
	s.logger.Info("Listing refreshed",
		"tracks", len(views),
		"unresolved", unresolved,
		"duration", time.Since(start))
}
