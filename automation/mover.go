package automation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/DotSati/visual-task-quest/domain"
)

// Store is the slice of persistence the engine needs: single-row task updates
// and change-event publication. No multi-row transaction is used; batch moves
// are fire-and-forget at the row level.
type Store interface {
	ListTasks(ctx context.Context, boardID string) ([]domain.Task, error)
	ListRules(ctx context.Context, boardID string, enabledOnly bool) ([]domain.AutomationRule, error)
	UpdateTask(ctx context.Context, boardID, taskID string, patch domain.TaskPatch, etag string) error
	PublishEvent(ctx context.Context, ev domain.Event) error
}

// MoveFailure records a single row update that did not land.
type MoveFailure struct {
	Move Move
	Err  error
}

// Report describes the outcome of one batch of moves. Partial failure is
// possible; applied rows are never rolled back.
type Report struct {
	BoardID  string
	Applied  []Move
	Failures []MoveFailure
}

// AllApplied reports whether every issued update landed.
func (r Report) AllApplied() bool {
	return len(r.Failures) == 0
}

// Mover issues the column reassignments for a batch of matched tasks.
type Mover struct {
	store     Store
	logger    *log.Logger
	workers   int
	onApplied func(boardID string)
}

// NewMover creates a Mover. onApplied, when non-nil, fires after a fully
// successful batch so the caller can refresh its task list.
func NewMover(store Store, logger *log.Logger, workers int, onApplied func(boardID string)) *Mover {
	if workers <= 0 {
		workers = 8
	}
	return &Mover{store: store, logger: logger, workers: workers, onApplied: onApplied}
}

// Apply updates each moved task's column (and, when supplied, due date and
// position) as independent concurrent single-row updates. Row failures are
// collected into the report; rows already applied stay committed. A fully
// successful non-empty batch publishes one aggregated change event and fires
// the refresh callback.
func (m *Mover) Apply(ctx context.Context, boardID string, moves []Move) Report {
	report := Report{BoardID: boardID}
	if len(moves) == 0 {
		return report
	}

	seen := make(map[string]struct{}, len(moves))
	queued := moves[:0:0]
	for _, mv := range moves {
		if _, dup := seen[mv.TaskID]; dup {
			continue
		}
		seen[mv.TaskID] = struct{}{}
		queued = append(queued, mv)
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, m.workers)
	)
	for _, mv := range queued {
		wg.Add(1)
		sem <- struct{}{}
		go func(mv Move) {
			defer wg.Done()
			defer func() { <-sem }()

			target := mv.TargetColumnID
			patch := domain.TaskPatch{ColumnID: &target, DueDate: mv.DueDate, Position: mv.TargetPosition}
			err := m.store.UpdateTask(ctx, boardID, mv.TaskID, patch, "")

			mu.Lock()
			if err != nil {
				report.Failures = append(report.Failures, MoveFailure{Move: mv, Err: err})
			} else {
				report.Applied = append(report.Applied, mv)
			}
			mu.Unlock()

			if err != nil {
				m.logger.WithError(err).WithFields(log.Fields{
					"board":  boardID,
					"task":   mv.TaskID,
					"target": mv.TargetColumnID,
				}).Error("automation move failed")
			}
		}(mv)
	}
	wg.Wait()

	if report.AllApplied() && len(report.Applied) > 0 {
		m.logger.WithFields(log.Fields{
			"board": boardID,
			"moved": len(report.Applied),
		}).Info("automation batch applied")
		m.publishApplied(ctx, boardID, report.Applied)
		if m.onApplied != nil {
			m.onApplied(boardID)
		}
	}
	return report
}

type movedEventData struct {
	TaskIDs []string `json:"taskIds"`
}

func (m *Mover) publishApplied(ctx context.Context, boardID string, applied []Move) {
	ids := make([]string, len(applied))
	for i, mv := range applied {
		ids[i] = mv.TaskID
	}
	data, err := json.Marshal(movedEventData{TaskIDs: ids})
	if err != nil {
		m.logger.WithError(err).Error("encode automation event")
		return
	}
	ev := domain.Event{
		ID:         uuid.NewString(),
		BoardID:    boardID,
		EntityType: "task",
		EntityID:   boardID,
		Type:       domain.AutomationMove,
		Data:       data,
		Time:       time.Now().UnixNano(),
	}
	if err := m.store.PublishEvent(ctx, ev); err != nil {
		m.logger.WithError(err).WithField("board", boardID).Error("publish automation event")
	}
}
