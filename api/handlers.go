package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/DotSati/visual-task-quest/automation"
	"github.com/DotSati/visual-task-quest/domain"
)

const requestBodyMaxSize = 64 * 1024 // 64 KiB

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, deduper Deduper, manager *automation.Manager, pending *automation.Registry, logger *log.Logger) {
	h := &handlers{
		store:   store,
		auth:    auth,
		deduper: deduper,
		manager: manager,
		pending: pending,
		logger:  logger,
		now:     time.Now,
	}

	e.GET("/api/boards", h.listBoards)
	e.POST("/api/boards", h.createBoard)
	e.GET("/api/boards/:boardID", h.getBoard)
	e.DELETE("/api/boards/:boardID", h.deleteBoard)

	e.GET("/api/boards/:boardID/columns", h.listColumns)
	e.POST("/api/boards/:boardID/columns", h.createColumn)
	e.PUT("/api/boards/:boardID/columns/:columnID", h.updateColumn)
	e.DELETE("/api/boards/:boardID/columns/:columnID", h.deleteColumn)

	e.GET("/api/boards/:boardID/tasks", h.listTasks)
	e.POST("/api/boards/:boardID/tasks", h.createTask)
	e.PATCH("/api/boards/:boardID/tasks/:taskID", h.updateTask)
	e.DELETE("/api/boards/:boardID/tasks/:taskID", h.deleteTask)
	e.POST("/api/boards/:boardID/tasks/:taskID/move", h.moveTask)
	e.POST("/api/boards/:boardID/moves/:pendingID", h.resolveMove)

	e.GET("/api/boards/:boardID/rules", h.listRules)
	e.POST("/api/boards/:boardID/rules", h.createRule)
	e.PUT("/api/boards/:boardID/rules/:ruleID", h.updateRule)
	e.DELETE("/api/boards/:boardID/rules/:ruleID", h.deleteRule)

	e.GET("/api/profile", h.getProfile)
	e.PUT("/api/profile", h.putProfile)

	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
}

type handlers struct {
	store   Storage
	auth    Authenticator
	deduper Deduper
	manager *automation.Manager
	pending *automation.Registry
	logger  *log.Logger
	now     func() time.Time
}

func (h *handlers) authenticate(c echo.Context) (string, error) {
	return h.auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
}

// ownBoard loads the board and checks ownership. A foreign board reads as
// missing rather than forbidden.
func (h *handlers) ownBoard(ctx context.Context, c echo.Context, userID string) (*domain.Board, error) {
	boardID := c.Param("boardID")
	board, err := h.store.GetBoard(ctx, boardID)
	if err != nil {
		c.Logger().Error(err)
		return nil, c.String(http.StatusInternalServerError, err.Error())
	}
	if board == nil || board.OwnerID != userID {
		return nil, c.NoContent(http.StatusNotFound)
	}
	return board, nil
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// publishChange enqueues a change event; delivery is best effort and never
// fails the request.
func (h *handlers) publishChange(ctx context.Context, boardID, entityType, entityID, evType, userID string, data any) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			h.logger.WithError(err).Error("encode change event")
			return
		}
		raw = encoded
	}
	ev := domain.Event{
		ID:         uuid.NewString(),
		BoardID:    boardID,
		EntityType: entityType,
		EntityID:   entityID,
		Type:       evType,
		Data:       raw,
		Time:       nextTimestamp(),
		UserID:     userID,
	}
	if err := h.store.PublishEvent(ctx, ev); err != nil {
		h.logger.WithError(err).WithField("board", boardID).Error("publish change event")
	}
}

type createBoardRequest struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
}

func (h *handlers) listBoards(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	boards, err := h.store.ListBoards(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, boards)
}

func (h *handlers) createBoard(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req createBoardRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		return c.String(http.StatusBadRequest, "missing board name")
	}
	ctx := c.Request().Context()
	board := domain.Board{ID: uuid.NewString(), Name: req.Name, OwnerID: userID, Position: req.Position}
	if err := h.store.InsertBoard(ctx, board); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	h.publishChange(ctx, board.ID, "board", board.ID, domain.BoardChanged, userID, board)
	return c.JSON(http.StatusCreated, board)
}

func (h *handlers) getBoard(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	board, err := h.ownBoard(c.Request().Context(), c, userID)
	if board == nil {
		return err
	}
	// Opening a board attaches its automation poller.
	if h.manager != nil {
		h.manager.Attach(context.Background(), board.ID)
	}
	return c.JSON(http.StatusOK, board)
}

func (h *handlers) deleteBoard(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	ctx := c.Request().Context()
	board, err := h.ownBoard(ctx, c, userID)
	if board == nil {
		return err
	}
	if h.manager != nil {
		h.manager.Detach(board.ID)
	}
	if err := h.store.DeleteBoard(ctx, board.ID); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	h.publishChange(ctx, board.ID, "board", board.ID, domain.BoardChanged, userID, nil)
	return c.NoContent(http.StatusNoContent)
}

type columnRequest struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
}

func (h *handlers) listColumns(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	ctx := c.Request().Context()
	board, err := h.ownBoard(ctx, c, userID)
	if board == nil {
		return err
	}
	cols, err := h.store.ListColumns(ctx, board.ID)
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, cols)
}

func (h *handlers) createColumn(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req columnRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		return c.String(http.StatusBadRequest, "missing column name")
	}
	ctx := c.Request().Context()
	board, err := h.ownBoard(ctx, c, userID)
	if board == nil {
		return err
	}
	col := domain.Column{ID: uuid.NewString(), BoardID: board.ID, Name: req.Name, Position: req.Position}
	if err := h.store.UpsertColumn(ctx, col); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	h.publishChange(ctx, board.ID, "column", col.ID, domain.ColumnChanged, userID, col)
	return c.JSON(http.StatusCreated, col)
}

func (h *handlers) updateColumn(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req columnRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	ctx := c.Request().Context()
	board, err := h.ownBoard(ctx, c, userID)
	if board == nil {
		return err
	}
	columnID := c.Param("columnID")
	existing, err := h.store.GetColumn(ctx, board.ID, columnID)
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	if existing == nil {
		return c.NoContent(http.StatusNotFound)
	}
	col := domain.Column{ID: columnID, BoardID: board.ID, Name: req.Name, Position: req.Position}
	if col.Name == "" {
		col.Name = existing.Name
	}
	if err := h.store.UpsertColumn(ctx, col); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	h.publishChange(ctx, board.ID, "column", col.ID, domain.ColumnChanged, userID, col)
	return c.JSON(http.StatusOK, col)
}

func (h *handlers) deleteColumn(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	ctx := c.Request().Context()
	board, err := h.ownBoard(ctx, c, userID)
	if board == nil {
		return err
	}
	columnID := c.Param("columnID")
	if err := h.store.DeleteColumn(ctx, board.ID, columnID); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	h.publishChange(ctx, board.ID, "column", columnID, domain.ColumnChanged, userID, nil)
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) getProfile(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	profile, err := h.store.GetProfile(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	if profile == nil {
		profile = &domain.Profile{UserID: userID}
	}
	return c.JSON(http.StatusOK, profile)
}

type profileRequest struct {
	Name       string `json:"name"`
	WebhookURL string `json:"webhookUrl"`
}

func (h *handlers) putProfile(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req profileRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	profile := domain.Profile{UserID: userID, Name: req.Name, WebhookURL: req.WebhookURL}
	if err := h.store.UpsertProfile(c.Request().Context(), profile); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}
