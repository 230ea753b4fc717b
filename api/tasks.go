package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/DotSati/visual-task-quest/domain"
)

type taskRequest struct {
	Title    string   `json:"title"`
	Notes    string   `json:"notes"`
	ColumnID string   `json:"columnId"`
	Position int      `json:"position"`
	DueDate  string   `json:"dueDate"`
	NotifyAt string   `json:"notifyAt"`
	Assignee string   `json:"assignee"`
	Tags     []string `json:"tags"`
}

func (h *handlers) listTasks(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	ctx := c.Request().Context()
	board, err := h.ownBoard(ctx, c, userID)
	if board == nil {
		return err
	}
	tasks, err := h.store.ListTasks(ctx, board.ID)
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tasks)
}

func (h *handlers) createTask(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req taskRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if req.Title == "" || req.ColumnID == "" {
		return c.String(http.StatusBadRequest, "missing title or column")
	}
	if req.DueDate != "" && !domain.ValidDate(req.DueDate) {
		return c.String(http.StatusBadRequest, "invalid due date")
	}
	if req.NotifyAt != "" {
		if _, err := time.Parse(time.RFC3339, req.NotifyAt); err != nil {
			return c.String(http.StatusBadRequest, "invalid notification time")
		}
	}
	ctx := c.Request().Context()
	board, err := h.ownBoard(ctx, c, userID)
	if board == nil {
		return err
	}
	col, err := h.store.GetColumn(ctx, board.ID, req.ColumnID)
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	if col == nil {
		return c.String(http.StatusBadRequest, "unknown column")
	}
	task := domain.Task{
		ID:       uuid.NewString(),
		BoardID:  board.ID,
		ColumnID: req.ColumnID,
		Title:    req.Title,
		Notes:    req.Notes,
		Position: req.Position,
		DueDate:  req.DueDate,
		NotifyAt: req.NotifyAt,
		Assignee: req.Assignee,
		Tags:     req.Tags,
	}
	if err := h.store.InsertTask(ctx, task); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	h.publishChange(ctx, board.ID, "task", task.ID, domain.TaskCreated, userID, task)
	return c.JSON(http.StatusCreated, task)
}

func (h *handlers) updateTask(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var patch domain.TaskPatch
	if err := decodeBody(c, &patch); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if patch.Empty() {
		return c.String(http.StatusBadRequest, "empty patch")
	}
	if patch.DueDate != nil && *patch.DueDate != "" && !domain.ValidDate(*patch.DueDate) {
		return c.String(http.StatusBadRequest, "invalid due date")
	}
	if patch.NotifyAt != nil && *patch.NotifyAt != "" {
		if _, err := time.Parse(time.RFC3339, *patch.NotifyAt); err != nil {
			return c.String(http.StatusBadRequest, "invalid notification time")
		}
	}
	ctx := c.Request().Context()
	board, err := h.ownBoard(ctx, c, userID)
	if board == nil {
		return err
	}
	taskID := c.Param("taskID")
	task, err := h.store.GetTask(ctx, board.ID, taskID)
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	if task == nil {
		return c.NoContent(http.StatusNotFound)
	}
	if patch.ColumnID != nil {
		// Column changes go through the move endpoint so the override flow
		// cannot be bypassed.
		return c.String(http.StatusBadRequest, "use the move endpoint to change columns")
	}
	if err := h.store.UpdateTask(ctx, board.ID, taskID, patch, ""); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	h.publishChange(ctx, board.ID, "task", taskID, domain.TaskUpdated, userID, patch)
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) deleteTask(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	ctx := c.Request().Context()
	board, err := h.ownBoard(ctx, c, userID)
	if board == nil {
		return err
	}
	taskID := c.Param("taskID")
	if err := h.store.DeleteTask(ctx, board.ID, taskID); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	h.publishChange(ctx, board.ID, "task", taskID, domain.TaskDeleted, userID, nil)
	return c.NoContent(http.StatusNoContent)
}
