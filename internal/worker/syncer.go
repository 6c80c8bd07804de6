package worker

import (
	"context"
	"time"

	logging "github.com/inconshreveable/log15"

	"github.com/Xausdorf/weighted-poll/internal/domain"
)

const syncTimeout = 5 * time.Second

type Snapshotter interface {
	Snapshot() []*domain.Poll
}

type SnapshotRepository interface {
	Sync(ctx context.Context, polls []*domain.Poll) error
}

// Syncer periodically writes the whole poll store to the repository, and once
// more when stopped.
type Syncer struct {
	store    Snapshotter
	repo     SnapshotRepository
	interval time.Duration
	log      logging.Logger

	stop chan chan struct{}
}

func NewSyncer(store Snapshotter, repo SnapshotRepository, interval time.Duration, log logging.Logger) *Syncer {
	return &Syncer{
		store:    store,
		repo:     repo,
		interval: interval,
		log:      log.New("module", "syncer"),
		stop:     make(chan chan struct{}),
	}
}

// Run blocks until Stop is called.
func (s *Syncer) Run() error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("syncer started", "interval", s.interval)
	for {
		select {
		case <-ticker.C:
			s.sync()
		case q := <-s.stop:
			s.sync()
			close(q)
			return nil
		}
	}
}

func (s *Syncer) Stop() {
	q := make(chan struct{})
	s.stop <- q
	<-q
}

func (s *Syncer) sync() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	polls := s.store.Snapshot()
	if err := s.repo.Sync(ctx, polls); err != nil {
		s.log.Error("could not sync polls", "count", len(polls), "error", err)
		return
	}
	s.log.Debug("polls synced", "count", len(polls))
}
