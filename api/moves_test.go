package api

import (
	"net/http"
	"testing"

	"github.com/bytedance/sonic"

	"github.com/DotSati/visual-task-quest/domain"
)

func seedOverdueBoard(store *mockStore) {
	seedBoard(store)
	store.tasks["t1"] = &domain.Task{ID: "t1", BoardID: "b1", ColumnID: "todo", Title: "Ship it", DueDate: "2024-03-01"}
	store.rules["r1"] = &domain.AutomationRule{
		ID: "r1", BoardID: "b1", SourceColumnID: "todo", TargetColumnID: "done",
		TriggerType: domain.TriggerDueDateReached, Enabled: true, Seq: 1,
	}
}

func doMove(t *testing.T, h *handlers, body string) *moveResult {
	t.Helper()
	rec, c := newRequest(t, http.MethodPost, "/api/boards/b1/tasks/t1/move", body)
	c.SetParamNames("boardID", "taskID")
	c.SetParamValues("b1", "t1")
	if err := h.moveTask(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	res := &moveResult{code: rec.Code}
	if rec.Code == http.StatusOK || rec.Code == http.StatusConflict {
		if err := sonic.Unmarshal(rec.Body.Bytes(), &res.body); err != nil {
			t.Fatalf("invalid json: %v body=%s", err, rec.Body.String())
		}
	}
	return res
}

type moveResult struct {
	code int
	body moveResponse
}

func TestMoveTaskPlain(t *testing.T) {
	store := newMockStore()
	seedBoard(store)
	store.tasks["t1"] = &domain.Task{ID: "t1", BoardID: "b1", ColumnID: "todo", Title: "Ship it", DueDate: "2024-03-10"}
	h := testHandlers(store)

	res := doMove(t, h, `{"targetColumnId":"done","position":0}`)
	if res.code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", res.code)
	}
	if res.body.Status != "moved" {
		t.Fatalf("unexpected status %q", res.body.Status)
	}
	if store.tasks["t1"].ColumnID != "done" {
		t.Fatalf("expected task in done, got %q", store.tasks["t1"].ColumnID)
	}
	types := store.eventTypes()
	if len(types) != 1 || types[0] != domain.TaskMoved {
		t.Fatalf("unexpected events: %#v", types)
	}
}

func TestMoveTaskInterceptedWhenOverdue(t *testing.T) {
	store := newMockStore()
	seedOverdueBoard(store)
	h := testHandlers(store)

	res := doMove(t, h, `{"targetColumnId":"done","position":2}`)
	if res.code != http.StatusConflict {
		t.Fatalf("expected status 409 got %d", res.code)
	}
	if res.body.Status != "resolution_required" || res.body.PendingMove == nil {
		t.Fatalf("unexpected response: %#v", res.body)
	}
	pm := res.body.PendingMove
	if pm.TaskID != "t1" || pm.SourceColumnID != "todo" || pm.TargetColumnID != "done" || pm.TargetPosition != 2 {
		t.Fatalf("unexpected pending move: %#v", pm)
	}
	if store.tasks["t1"].ColumnID != "todo" {
		t.Fatal("intercepted move must not touch the task")
	}
	if len(store.eventTypes()) != 0 {
		t.Fatal("intercepted move must not publish events")
	}
}

func TestMoveTaskNotInterceptedWithoutMatchingRule(t *testing.T) {
	store := newMockStore()
	seedOverdueBoard(store)
	store.rules["r1"].Enabled = false
	h := testHandlers(store)

	res := doMove(t, h, `{"targetColumnId":"done","position":0}`)
	if res.code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", res.code)
	}
	if store.tasks["t1"].ColumnID != "done" {
		t.Fatal("expected move committed")
	}
}

func TestMoveTaskSameColumnSkipsInterception(t *testing.T) {
	store := newMockStore()
	seedOverdueBoard(store)
	h := testHandlers(store)

	// Reordering inside the current column is not a hand-run of automation.
	res := doMove(t, h, `{"targetColumnId":"todo","position":5}`)
	if res.code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", res.code)
	}
	if store.tasks["t1"].Position != 5 {
		t.Fatalf("expected position update, got %d", store.tasks["t1"].Position)
	}
}

func TestMoveTaskIdempotencyKey(t *testing.T) {
	store := newMockStore()
	seedBoard(store)
	store.tasks["t1"] = &domain.Task{ID: "t1", BoardID: "b1", ColumnID: "todo", Title: "Ship it"}
	h := testHandlers(store)

	body := `{"targetColumnId":"done","position":0,"idempotencyKey":"k1"}`
	if res := doMove(t, h, body); res.code != http.StatusOK || res.body.Status != "moved" {
		t.Fatalf("first move failed: %#v", res)
	}
	res := doMove(t, h, body)
	if res.code != http.StatusOK || res.body.Status != "duplicate" {
		t.Fatalf("expected duplicate response, got %#v", res)
	}
	if len(store.eventTypes()) != 1 {
		t.Fatalf("duplicate must not publish again, events=%v", store.eventTypes())
	}
}

func TestMoveTaskUnknownTargetColumn(t *testing.T) {
	store := newMockStore()
	seedBoard(store)
	store.tasks["t1"] = &domain.Task{ID: "t1", BoardID: "b1", ColumnID: "todo"}
	h := testHandlers(store)

	if res := doMove(t, h, `{"targetColumnId":"nope"}`); res.code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", res.code)
	}
}

func interceptMove(t *testing.T, h *handlers, store *mockStore) string {
	t.Helper()
	res := doMove(t, h, `{"targetColumnId":"done","position":0}`)
	if res.code != http.StatusConflict || res.body.PendingMove == nil {
		t.Fatalf("expected interception, got %#v", res)
	}
	return res.body.PendingMove.ID
}

func resolve(t *testing.T, h *handlers, pendingID, body string) (int, moveResponse) {
	t.Helper()
	rec, c := newRequest(t, http.MethodPost, "/api/boards/b1/moves/"+pendingID, body)
	c.SetParamNames("boardID", "pendingID")
	c.SetParamValues("b1", pendingID)
	if err := h.resolveMove(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	var resp moveResponse
	if rec.Code == http.StatusOK {
		if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
	}
	return rec.Code, resp
}

func TestResolveMoveConfirm(t *testing.T) {
	store := newMockStore()
	seedOverdueBoard(store)
	h := testHandlers(store)
	pendingID := interceptMove(t, h, store)

	code, resp := resolve(t, h, pendingID, `{"action":"confirm","dueDate":"2024-03-09"}`)
	if code != http.StatusOK || resp.Status != "moved" {
		t.Fatalf("unexpected resolution: code=%d resp=%#v", code, resp)
	}
	task := store.tasks["t1"]
	if task.ColumnID != "done" || task.DueDate != "2024-03-09" {
		t.Fatalf("expected move with fresh due date, got %#v", task)
	}
}

func TestResolveMoveConfirmRejectsPastDate(t *testing.T) {
	store := newMockStore()
	seedOverdueBoard(store)
	h := testHandlers(store)
	pendingID := interceptMove(t, h, store)

	code, _ := resolve(t, h, pendingID, `{"action":"confirm","dueDate":"2024-03-01"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", code)
	}
	// Validation happens before the pending entry is consumed, so the user
	// can retry with a fresh date.
	code, resp := resolve(t, h, pendingID, `{"action":"confirm","dueDate":"2024-03-07"}`)
	if code != http.StatusOK || resp.Status != "moved" {
		t.Fatalf("expected retry to succeed, got code=%d resp=%#v", code, resp)
	}
}

func TestResolveMoveSkip(t *testing.T) {
	store := newMockStore()
	seedOverdueBoard(store)
	h := testHandlers(store)
	pendingID := interceptMove(t, h, store)

	code, resp := resolve(t, h, pendingID, `{"action":"skip"}`)
	if code != http.StatusOK || resp.Status != "moved" {
		t.Fatalf("unexpected resolution: code=%d resp=%#v", code, resp)
	}
	task := store.tasks["t1"]
	if task.ColumnID != "done" {
		t.Fatalf("expected relocation, got %q", task.ColumnID)
	}
	if task.DueDate != "2024-03-01" {
		t.Fatalf("skip must leave the stale due date, got %q", task.DueDate)
	}
}

func TestResolveMoveCancel(t *testing.T) {
	store := newMockStore()
	seedOverdueBoard(store)
	h := testHandlers(store)
	pendingID := interceptMove(t, h, store)

	code, resp := resolve(t, h, pendingID, `{"action":"cancel"}`)
	if code != http.StatusOK || resp.Status != "cancelled" {
		t.Fatalf("unexpected resolution: code=%d resp=%#v", code, resp)
	}
	task := store.tasks["t1"]
	if task.ColumnID != "todo" || task.DueDate != "2024-03-01" {
		t.Fatalf("cancel must leave the task untouched, got %#v", task)
	}
}

func TestResolveMoveConsumedOnce(t *testing.T) {
	store := newMockStore()
	seedOverdueBoard(store)
	h := testHandlers(store)
	pendingID := interceptMove(t, h, store)

	if code, _ := resolve(t, h, pendingID, `{"action":"cancel"}`); code != http.StatusOK {
		t.Fatalf("first resolution failed with %d", code)
	}
	if code, _ := resolve(t, h, pendingID, `{"action":"skip"}`); code != http.StatusNotFound {
		t.Fatalf("expected status 404 for consumed entry, got %d", code)
	}
}

func TestResolveMoveUnknownAction(t *testing.T) {
	store := newMockStore()
	seedOverdueBoard(store)
	h := testHandlers(store)
	pendingID := interceptMove(t, h, store)

	if code, _ := resolve(t, h, pendingID, `{"action":"shrug"}`); code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", code)
	}
}
