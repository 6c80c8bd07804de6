package worker

import (
	"context"
	"time"

	logging "github.com/inconshreveable/log15"

	"github.com/Xausdorf/weighted-poll/internal/domain"
)

// ExpirerPrincipal - caller recorded for removals triggered by the expirer.
const ExpirerPrincipal domain.Principal = "system:expirer"

type ExpiredPollRemover interface {
	RemoveExpiredPolls(ctx context.Context, caller domain.Principal, graceSeconds int64) []*domain.Poll
}

// Expirer periodically removes polls that closed more than graceSeconds ago.
type Expirer struct {
	store        ExpiredPollRemover
	graceSeconds int64
	interval     time.Duration
	log          logging.Logger

	stop chan chan struct{}
}

func NewExpirer(store ExpiredPollRemover, graceSeconds int64, interval time.Duration, log logging.Logger) *Expirer {
	return &Expirer{
		store:        store,
		graceSeconds: graceSeconds,
		interval:     interval,
		log:          log.New("module", "expirer"),
		stop:         make(chan chan struct{}),
	}
}

// Run blocks until Stop is called.
func (e *Expirer) Run() error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.log.Info("expirer started", "interval", e.interval, "grace_seconds", e.graceSeconds)
	for {
		select {
		case <-ticker.C:
			e.expire()
		case q := <-e.stop:
			close(q)
			return nil
		}
	}
}

func (e *Expirer) Stop() {
	q := make(chan struct{})
	e.stop <- q
	<-q
}

func (e *Expirer) expire() {
	removed := e.store.RemoveExpiredPolls(context.Background(), ExpirerPrincipal, e.graceSeconds)
	for _, poll := range removed {
		e.log.Debug("poll expired", "poll", poll.Name, "closing_time", poll.ClosingTime)
	}
}
