package channel

import (
	"context"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
)

// Settler settles channels in the background with a bounded worker pool, so a
// node shutting down or rebalancing many channels at once does not hold one
// goroutine per closure window on the caller's side.
type Settler struct {
	log  zerolog.Logger
	pool *workerpool.WorkerPool
}

func NewSettler(log zerolog.Logger, workers int) *Settler {
	return &Settler{
		log:  log.With().Str("component", "settler").Logger(),
		pool: workerpool.New(workers),
	}
}

// Submit queues the channel for settlement. Errors are logged, not returned;
// a settlement that failed can be resubmitted, InitiateSettlement resumes
// from on-chain state.
func (s *Settler) Submit(ctx context.Context, ch *Channel) {
	s.pool.Submit(func() {
		err := ch.InitiateSettlement(ctx)
		if err != nil {
			s.log.Error().Err(err).
				Str("counterparty", ch.Counterparty().String()).
				Msg("settlement failed")
			return
		}
	})
}

// StopWait stops accepting new settlements and blocks until all queued ones
// have finished.
func (s *Settler) StopWait() {
	s.pool.StopWait()
}
