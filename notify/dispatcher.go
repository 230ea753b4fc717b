package notify

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/DotSati/visual-task-quest/domain"
)

// Store is the persistence slice the dispatcher consumes.
type Store interface {
	ListDueNotifications(ctx context.Context, now string) ([]domain.Task, error)
	GetBoard(ctx context.Context, boardID string) (*domain.Board, error)
	GetColumn(ctx context.Context, boardID, columnID string) (*domain.Column, error)
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	MarkNotified(ctx context.Context, boardID, taskID string) error
}

// Guard suppresses duplicate deliveries when several dispatcher replicas
// overlap within one scheduling window. The sent flag in storage remains the
// source of truth.
type Guard interface {
	Add(ctx context.Context, scope, key string) (bool, error)
}

// Poster delivers a payload to a webhook URL.
type Poster interface {
	Post(ctx context.Context, url string, p Payload) error
}

// Stats summarizes one dispatcher invocation.
type Stats struct {
	Scanned   int
	Delivered int
	Skipped   int
	Failed    int
}

// Dispatcher finds tasks whose notification timestamp has elapsed, posts the
// webhook payload for each, and marks the task notified exactly once
// regardless of delivery outcome. Failures are logged, never retried.
type Dispatcher struct {
	store   Store
	webhook Poster
	guard   Guard
	logger  *log.Logger
	now     func() time.Time
}

// NewDispatcher creates a Dispatcher. guard may be nil when a single replica
// runs.
func NewDispatcher(store Store, webhook Poster, guard Guard, logger *log.Logger) *Dispatcher {
	return &Dispatcher{store: store, webhook: webhook, guard: guard, logger: logger, now: time.Now}
}

// RunOnce performs a single dispatch pass. Per-task errors are terminal for
// that task only.
func (d *Dispatcher) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	now := d.now().UTC().Format(time.RFC3339)
	tasks, err := d.store.ListDueNotifications(ctx, now)
	if err != nil {
		return stats, fmt.Errorf("list due notifications: %w", err)
	}
	stats.Scanned = len(tasks)

	for _, t := range tasks {
		if d.guard != nil {
			fresh, err := d.guard.Add(ctx, "notify", t.ID)
			if err != nil {
				d.logger.WithError(err).WithField("task", t.ID).Error("notification guard unavailable")
			} else if !fresh {
				stats.Skipped++
				continue
			}
		}
		d.dispatch(ctx, t, &stats)
	}

	d.logger.WithFields(log.Fields{
		"scanned":   stats.Scanned,
		"delivered": stats.Delivered,
		"skipped":   stats.Skipped,
		"failed":    stats.Failed,
	}).Info("notification pass finished")
	return stats, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, t domain.Task, stats *Stats) {
	// The sent flag goes up on every exit below except transient resolution
	// errors, so a permanently broken chain cannot cause a notification storm.
	board, err := d.store.GetBoard(ctx, t.BoardID)
	if err != nil {
		d.logger.WithError(err).WithField("task", t.ID).Error("resolve board")
		stats.Failed++
		return
	}
	if board == nil {
		d.logger.WithFields(log.Fields{"task": t.ID, "board": t.BoardID}).Warn("board gone, dropping notification")
		d.markSent(ctx, t)
		stats.Skipped++
		return
	}

	profile, err := d.store.GetProfile(ctx, board.OwnerID)
	if err != nil {
		d.logger.WithError(err).WithField("task", t.ID).Error("resolve profile")
		stats.Failed++
		return
	}
	if profile == nil || profile.WebhookURL == "" {
		d.markSent(ctx, t)
		stats.Skipped++
		return
	}

	columnName := t.ColumnID
	if col, err := d.store.GetColumn(ctx, t.BoardID, t.ColumnID); err == nil && col != nil {
		columnName = col.Name
	}

	payload := Payload{
		Subject:        "Task due: " + t.Title,
		Message:        fmt.Sprintf("%q in %q on board %q is due %s", t.Title, columnName, board.Name, t.DueDate),
		Board:          board.Name,
		Column:         columnName,
		DueDate:        t.DueDate,
		NotificationAt: t.NotifyAt,
		TaskID:         t.ID,
	}

	if err := d.webhook.Post(ctx, profile.WebhookURL, payload); err != nil {
		d.logger.WithError(err).WithFields(log.Fields{"task": t.ID, "user": board.OwnerID}).Error("webhook delivery failed")
		stats.Failed++
	} else {
		stats.Delivered++
	}
	d.markSent(ctx, t)
}

func (d *Dispatcher) markSent(ctx context.Context, t domain.Task) {
	if err := d.store.MarkNotified(ctx, t.BoardID, t.ID); err != nil {
		d.logger.WithError(err).WithField("task", t.ID).Error("mark notified")
	}
}
