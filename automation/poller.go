package automation

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/DotSati/visual-task-quest/domain"
)

// DefaultInterval is the fixed polling cadence. The interval comfortably
// exceeds a sweep's expected duration, which is the only overlap guard: sweeps
// run synchronously inside the loop, so a cycle always completes before the
// next tick is consumed.
const DefaultInterval = 60 * time.Second

// Poller re-runs the detect-match-move pipeline for one board on a fixed
// interval, plus once immediately when the board is attached.
type Poller struct {
	store    Store
	mover    *Mover
	logger   *log.Logger
	interval time.Duration
	now      func() time.Time
}

// NewPoller creates a Poller sweeping at the given interval.
func NewPoller(store Store, mover *Mover, logger *log.Logger, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{store: store, mover: mover, logger: logger, interval: interval, now: time.Now}
}

// Sweep runs one evaluation cycle for the board: load enabled rules, load the
// task list, match, move. A second sweep with no intervening change is a
// no-op, since moved tasks no longer sit in any rule's source column.
func (p *Poller) Sweep(ctx context.Context, boardID string) (Report, error) {
	rules, err := p.store.ListRules(ctx, boardID, true)
	if err != nil {
		return Report{BoardID: boardID}, err
	}
	if len(rules) == 0 {
		return Report{BoardID: boardID}, nil
	}
	tasks, err := p.store.ListTasks(ctx, boardID)
	if err != nil {
		return Report{BoardID: boardID}, err
	}
	moves := Evaluate(tasks, rules, domain.Today(p.now()))
	return p.mover.Apply(ctx, boardID, moves), nil
}

// Run sweeps immediately, then on every tick until the context is cancelled.
// Sweep errors are terminal for that cycle only; the next tick starts fresh.
func (p *Poller) Run(ctx context.Context, boardID string) {
	p.sweepLogged(ctx, boardID)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweepLogged(ctx, boardID)
		}
	}
}

func (p *Poller) sweepLogged(ctx context.Context, boardID string) {
	report, err := p.Sweep(ctx, boardID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.WithError(err).WithField("board", boardID).Error("automation sweep failed")
		return
	}
	if len(report.Applied) > 0 || len(report.Failures) > 0 {
		p.logger.WithFields(log.Fields{
			"board":  boardID,
			"moved":  len(report.Applied),
			"failed": len(report.Failures),
		}).Debug("automation sweep finished")
	}
}

// Manager owns one polling goroutine per attached board. Attaching is
// idempotent; detaching cancels the board's timer. In-flight row updates are
// not cancelled, only their results may land after teardown.
type Manager struct {
	poller *Poller

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewManager creates an empty Manager around the given poller.
func NewManager(poller *Poller) *Manager {
	return &Manager{poller: poller, cancels: make(map[string]context.CancelFunc)}
}

// Attach starts polling the board if it is not already polled.
func (m *Manager) Attach(ctx context.Context, boardID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, running := m.cancels[boardID]; running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancels[boardID] = cancel
	go m.poller.Run(runCtx, boardID)
}

// Detach stops polling the board.
func (m *Manager) Detach(boardID string) {
	m.mu.Lock()
	cancel, ok := m.cancels[boardID]
	if ok {
		delete(m.cancels, boardID)
	}
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// Active reports the number of boards currently polled.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cancels)
}

// Shutdown stops every poller.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	cancels := m.cancels
	m.cancels = make(map[string]context.CancelFunc)
	m.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}
