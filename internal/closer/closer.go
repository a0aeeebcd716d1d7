package closer

import (
	"context"
	"time"

	model "auction-house/internal/models"
	"auction-house/utils"
)

// DefaultPeriod is the sweep interval used when none is configured. The
// exact value is a tunable; correctness does not depend on it.
const DefaultPeriod = time.Second

// Sweeper is the slice of the auction service the closer drives.
type Sweeper interface {
	CloseExpiredAuctions(now time.Time) ([]model.Auction, error)
}

// Closer periodically ends auctions whose deadline has passed. The clock
// is injectable so tests can drive deadlines deterministically.
type Closer struct {
	svc    Sweeper
	period time.Duration
	clock  func() time.Time
}

// New creates a Closer with the given sweep period. A non-positive period
// falls back to DefaultPeriod.
func New(svc Sweeper, period time.Duration) *Closer {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Closer{
		svc:    svc,
		period: period,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source used for sweeps
func (c *Closer) SetClock(clock func() time.Time) {
	c.clock = clock
}

// Run sweeps until the context is cancelled. Sweep failures are logged
// and the ticker keeps going; a broken store must not stop the loop.
func (c *Closer) Run(ctx context.Context) {
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Sweep runs one closing pass at the current clock time
func (c *Closer) Sweep() {
	closed, err := c.svc.CloseExpiredAuctions(c.clock())
	if err != nil {
		utils.Error("closer sweep failed", map[string]any{"error": err.Error()})
		return
	}
	if len(closed) > 0 {
		utils.Info("closer sweep finished", map[string]any{"closed": len(closed)})
	}
}
