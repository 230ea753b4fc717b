package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/DotSati/visual-task-quest/automation"
	"github.com/DotSati/visual-task-quest/domain"
)

const dedupeScopeMoves = "moves"

type moveRequest struct {
	TargetColumnID string `json:"targetColumnId"`
	Position       int    `json:"position"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type moveResponse struct {
	Status      string                  `json:"status"`
	PendingMove *automation.PendingMove `json:"pendingMove,omitempty"`
}

type resolveMoveRequest struct {
	Action  string `json:"action"`
	DueDate string `json:"dueDate"`
}

const (
	resolveConfirm = "confirm"
	resolveSkip    = "skip"
	resolveCancel  = "cancel"
)

// moveTask relocates a task to another column. When the task is overdue and
// its current column feeds an enabled rule, the move is intercepted and a
// pending move is returned with status 409 so the caller can resolve the
// stale due date first.
func (h *handlers) moveTask(c echo.Context) error {
	metrics, ctx := newMoveRequestMetrics(c.Request().Context(), h.logger)

	authStart := time.Now()
	userID, err := h.authenticate(c)
	metrics.ObserveAuth(time.Since(authStart))
	if err != nil {
		metrics.SetErrorStage("auth")
		metrics.Log(http.StatusUnauthorized, err)
		return c.String(http.StatusUnauthorized, err.Error())
	}

	var req moveRequest
	if err := decodeBody(c, &req); err != nil {
		metrics.SetErrorStage("decode")
		metrics.Log(http.StatusBadRequest, err)
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if req.TargetColumnID == "" {
		metrics.SetErrorStage("decode")
		metrics.Log(http.StatusBadRequest, nil)
		return c.String(http.StatusBadRequest, "missing target column")
	}

	fetchStart := time.Now()
	board, err := h.ownBoard(ctx, c, userID)
	if board == nil {
		metrics.ObserveFetch(time.Since(fetchStart))
		metrics.SetErrorStage("fetch")
		metrics.Log(c.Response().Status, nil)
		return err
	}
	taskID := c.Param("taskID")
	task, err := h.store.GetTask(ctx, board.ID, taskID)
	if err != nil {
		metrics.ObserveFetch(time.Since(fetchStart))
		metrics.SetErrorStage("fetch")
		metrics.Log(http.StatusInternalServerError, err)
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	if task == nil {
		metrics.ObserveFetch(time.Since(fetchStart))
		metrics.SetErrorStage("fetch")
		metrics.Log(http.StatusNotFound, nil)
		return c.NoContent(http.StatusNotFound)
	}
	target, err := h.store.GetColumn(ctx, board.ID, req.TargetColumnID)
	if err != nil {
		metrics.ObserveFetch(time.Since(fetchStart))
		metrics.SetErrorStage("fetch")
		metrics.Log(http.StatusInternalServerError, err)
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	if target == nil {
		metrics.ObserveFetch(time.Since(fetchStart))
		metrics.SetErrorStage("fetch")
		metrics.Log(http.StatusBadRequest, nil)
		return c.String(http.StatusBadRequest, "unknown target column")
	}
	rules, err := h.store.ListRules(ctx, board.ID, true)
	metrics.ObserveFetch(time.Since(fetchStart))
	if err != nil {
		metrics.SetErrorStage("fetch")
		metrics.Log(http.StatusInternalServerError, err)
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}

	today := domain.Today(h.now())
	if req.TargetColumnID != task.ColumnID && automation.RequiresResolution(*task, rules, today) {
		pm := h.pending.Add(automation.PendingMove{
			BoardID:        board.ID,
			TaskID:         task.ID,
			SourceColumnID: task.ColumnID,
			TargetColumnID: req.TargetColumnID,
			TargetPosition: req.Position,
		})
		metrics.SetIntercepted(true)
		metrics.Log(http.StatusConflict, nil)
		return c.JSON(http.StatusConflict, moveResponse{Status: "resolution_required", PendingMove: &pm})
	}

	if req.IdempotencyKey != "" {
		fresh, err := h.deduper.Add(ctx, dedupeScopeMoves, req.IdempotencyKey)
		if err != nil {
			metrics.SetErrorStage("dedupe")
			metrics.Log(http.StatusInternalServerError, err)
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if !fresh {
			metrics.Log(http.StatusOK, nil)
			return c.JSON(http.StatusOK, moveResponse{Status: "duplicate"})
		}
	}

	commitStart := time.Now()
	patch := domain.TaskPatch{ColumnID: &req.TargetColumnID, Position: &req.Position}
	err = h.store.UpdateTask(ctx, board.ID, task.ID, patch, "")
	metrics.ObserveCommit(time.Since(commitStart))
	if err != nil {
		if req.IdempotencyKey != "" {
			if rmErr := h.deduper.Remove(ctx, dedupeScopeMoves, req.IdempotencyKey); rmErr != nil {
				h.logger.WithError(rmErr).Warn("release idempotency key")
			}
		}
		metrics.SetErrorStage("commit")
		metrics.Log(http.StatusInternalServerError, err)
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}

	h.publishChange(ctx, board.ID, "task", task.ID, domain.TaskMoved, userID, patch)
	metrics.Log(http.StatusOK, nil)
	return c.JSON(http.StatusOK, moveResponse{Status: "moved"})
}

// resolveMove completes an intercepted move. Confirm requires a fresh due
// date and applies both the date and the relocation, skip relocates without
// touching the date, cancel leaves the task untouched. The request body is
// validated before the pending entry is consumed so a malformed call does
// not burn it.
func (h *handlers) resolveMove(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req resolveMoveRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	today := domain.Today(h.now())
	switch req.Action {
	case resolveConfirm:
		if !domain.ValidDate(req.DueDate) || req.DueDate < today {
			return c.String(http.StatusBadRequest, "confirm requires a due date of today or later")
		}
	case resolveSkip, resolveCancel:
	default:
		return c.String(http.StatusBadRequest, "unknown action")
	}

	ctx := c.Request().Context()
	board, err := h.ownBoard(ctx, c, userID)
	if board == nil {
		return err
	}

	pm, ok := h.pending.Take(c.Param("pendingID"))
	if !ok || pm.BoardID != board.ID {
		return c.NoContent(http.StatusNotFound)
	}

	if req.Action == resolveCancel {
		return c.JSON(http.StatusOK, moveResponse{Status: "cancelled"})
	}

	patch := domain.TaskPatch{ColumnID: &pm.TargetColumnID, Position: &pm.TargetPosition}
	if req.Action == resolveConfirm {
		patch.DueDate = &req.DueDate
	}
	if err := h.store.UpdateTask(ctx, board.ID, pm.TaskID, patch, ""); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	h.publishChange(ctx, board.ID, "task", pm.TaskID, domain.TaskMoved, userID, patch)
	return c.JSON(http.StatusOK, moveResponse{Status: "moved"})
}
