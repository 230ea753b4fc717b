package stream

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/DotSati/visual-task-quest/domain"
)

// Storage fetches board state for stream snapshots.
type Storage interface {
	GetBoard(ctx context.Context, boardID string) (*domain.Board, error)
	ListTasks(ctx context.Context, boardID string) ([]domain.Task, error)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Register wires up stream endpoints on the given Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, broker *Broker) {
	e.GET("/stream", streamBoard(store, auth, broker))
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
}

// streamBoard pushes the board's full task list on connect and again after
// every change notification. EventSource clients cannot set headers, so the
// bearer token may arrive as a query parameter instead.
func streamBoard(store Storage, auth Authenticator, broker *Broker) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.QueryParam("token")
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" && token != "" {
			authHeader = "Bearer " + token
		}
		userID, err := auth.UserIDFromAuthHeader(authHeader)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		boardID := c.QueryParam("board")
		if boardID == "" {
			return c.String(http.StatusBadRequest, "missing board")
		}
		ctx := c.Request().Context()
		board, err := store.GetBoard(ctx, boardID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if board == nil || board.OwnerID != userID {
			return c.NoContent(http.StatusNotFound)
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		ch := broker.Subscribe(boardID)
		defer broker.Unsubscribe(boardID, ch)
		for {
			tasks, err := store.ListTasks(ctx, boardID)
			if err != nil {
				c.Logger().Error(err)
				return err
			}
			data, err := json.Marshal(tasks)
			if err != nil {
				c.Logger().Error(err)
				return err
			}
			if _, err := c.Response().Write([]byte("data: ")); err != nil {
				return err
			}
			if _, err := c.Response().Write(data); err != nil {
				return err
			}
			if _, err := c.Response().Write([]byte("\n\n")); err != nil {
				return err
			}
			flusher.Flush()
			select {
			case <-ctx.Done():
				return nil
			case <-ch:
				continue
			}
		}
	}
}
