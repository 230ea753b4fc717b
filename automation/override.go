package automation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DotSati/visual-task-quest/domain"
)

// PendingMove captures a manual task relocation that was intercepted because
// the task is already overdue and its current column feeds an active rule.
// Pending moves live only in memory and are consumed exactly once.
type PendingMove struct {
	ID             string    `json:"id"`
	BoardID        string    `json:"boardId"`
	TaskID         string    `json:"taskId"`
	SourceColumnID string    `json:"sourceColumnId"`
	TargetColumnID string    `json:"targetColumnId"`
	TargetPosition int       `json:"targetPosition"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RequiresResolution reports whether a manual move of the task must be
// intercepted for due-date resolution: the task's due date lies strictly in
// the past and some enabled rule sources from the task's current column, so
// the user is doing by hand what automation would do later.
func RequiresResolution(task domain.Task, rules []domain.AutomationRule, today string) bool {
	if !domain.IsOverdue(task.DueDate, today) {
		return false
	}
	return MatchRule(rules, task.ColumnID) != nil
}

// Registry holds pending moves between interception and resolution. Entries
// expire after the TTL so abandoned dialogs cannot pile up.
type Registry struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	pending map[string]PendingMove
}

// NewRegistry creates a Registry with the given entry TTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Registry{ttl: ttl, now: time.Now, pending: make(map[string]PendingMove)}
}

// Add stores a new pending move and returns it with an assigned ID.
func (r *Registry) Add(pm PendingMove) PendingMove {
	pm.ID = uuid.NewString()
	pm.CreatedAt = r.now()
	r.mu.Lock()
	r.purgeLocked()
	r.pending[pm.ID] = pm
	r.mu.Unlock()
	return pm
}

// Take consumes a pending move. Exactly one caller can succeed per entry,
// which makes the confirm, skip and cancel exits mutually exclusive.
func (r *Registry) Take(id string) (PendingMove, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked()
	pm, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	return pm, ok
}

// Len reports the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked()
	return len(r.pending)
}

func (r *Registry) purgeLocked() {
	cutoff := r.now().Add(-r.ttl)
	for id, pm := range r.pending {
		if pm.CreatedAt.Before(cutoff) {
			delete(r.pending, id)
		}
	}
}
