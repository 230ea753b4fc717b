package automation

import (
	"context"
	"errors"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/DotSati/visual-task-quest/domain"
)

type fakeStore struct {
	mu      sync.Mutex
	tasks   []domain.Task
	rules   []domain.AutomationRule
	updates map[string]domain.TaskPatch
	failFor map[string]error
	events  []domain.Event

	listTasksErr error
	listRulesErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{updates: make(map[string]domain.TaskPatch), failFor: make(map[string]error)}
}

func (f *fakeStore) ListTasks(ctx context.Context, boardID string) ([]domain.Task, error) {
	if f.listTasksErr != nil {
		return nil, f.listTasksErr
	}
	return f.tasks, nil
}

func (f *fakeStore) ListRules(ctx context.Context, boardID string, enabledOnly bool) ([]domain.AutomationRule, error) {
	if f.listRulesErr != nil {
		return nil, f.listRulesErr
	}
	if !enabledOnly {
		return f.rules, nil
	}
	var out []domain.AutomationRule
	for _, r := range f.rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateTask(ctx context.Context, boardID, taskID string, patch domain.TaskPatch, etag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[taskID]; ok {
		return err
	}
	f.updates[taskID] = patch
	return nil
}

func (f *fakeStore) PublishEvent(ctx context.Context, ev domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeStore) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestMoverAppliesBatch(t *testing.T) {
	store := newFakeStore()
	var refreshed []string
	mover := NewMover(store, log.New(), 4, func(boardID string) { refreshed = append(refreshed, boardID) })

	moves := []Move{
		{TaskID: "t1", TargetColumnID: "done"},
		{TaskID: "t2", TargetColumnID: "done"},
	}
	report := mover.Apply(context.Background(), "b1", moves)

	if !report.AllApplied() {
		t.Fatalf("expected clean batch, got failures %#v", report.Failures)
	}
	if len(report.Applied) != 2 {
		t.Fatalf("expected 2 applied got %d", len(report.Applied))
	}
	if len(store.updates) != 2 {
		t.Fatalf("expected 2 row updates got %d", len(store.updates))
	}
	if patch := store.updates["t1"]; patch.ColumnID == nil || *patch.ColumnID != "done" {
		t.Fatalf("unexpected patch for t1: %#v", patch)
	}
	if store.eventCount() != 1 {
		t.Fatalf("expected one aggregated event got %d", store.eventCount())
	}
	if ev := store.events[0]; ev.Type != domain.AutomationMove || ev.BoardID != "b1" {
		t.Fatalf("unexpected event: %#v", ev)
	}
	if len(refreshed) != 1 || refreshed[0] != "b1" {
		t.Fatalf("expected refresh callback for b1, got %#v", refreshed)
	}
}

func TestMoverPartialFailureKeepsAppliedRows(t *testing.T) {
	store := newFakeStore()
	store.failFor["t2"] = errors.New("precondition failed")
	mover := NewMover(store, log.New(), 4, nil)

	moves := []Move{
		{TaskID: "t1", TargetColumnID: "done"},
		{TaskID: "t2", TargetColumnID: "done"},
		{TaskID: "t3", TargetColumnID: "done"},
	}
	report := mover.Apply(context.Background(), "b1", moves)

	if report.AllApplied() {
		t.Fatal("expected a failure in the report")
	}
	if len(report.Failures) != 1 || report.Failures[0].Move.TaskID != "t2" {
		t.Fatalf("unexpected failures: %#v", report.Failures)
	}
	if len(report.Applied) != 2 {
		t.Fatalf("applied rows must stay committed, got %d", len(report.Applied))
	}
	if _, ok := store.updates["t1"]; !ok {
		t.Fatal("t1 update should have landed")
	}
	if _, ok := store.updates["t3"]; !ok {
		t.Fatal("t3 update should have landed")
	}
	if store.eventCount() != 0 {
		t.Fatalf("partial batch must not publish an event, got %d", store.eventCount())
	}
}

func TestMoverDeduplicatesTaskIDs(t *testing.T) {
	store := newFakeStore()
	mover := NewMover(store, log.New(), 1, nil)

	moves := []Move{
		{TaskID: "t1", TargetColumnID: "doing"},
		{TaskID: "t1", TargetColumnID: "done"},
	}
	report := mover.Apply(context.Background(), "b1", moves)

	if len(report.Applied) != 1 {
		t.Fatalf("expected a single applied move got %d", len(report.Applied))
	}
	if patch := store.updates["t1"]; patch.ColumnID == nil || *patch.ColumnID != "doing" {
		t.Fatalf("expected first move to win, got %#v", patch)
	}
}

func TestMoverEmptyBatch(t *testing.T) {
	store := newFakeStore()
	mover := NewMover(store, log.New(), 0, nil)

	report := mover.Apply(context.Background(), "b1", nil)
	if len(report.Applied) != 0 || len(report.Failures) != 0 {
		t.Fatalf("expected empty report, got %#v", report)
	}
	if store.eventCount() != 0 {
		t.Fatal("empty batch must not publish an event")
	}
}
