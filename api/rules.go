package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/DotSati/visual-task-quest/domain"
)

type ruleRequest struct {
	SourceColumnID string `json:"sourceColumnId"`
	TargetColumnID string `json:"targetColumnId"`
	TriggerType    string `json:"triggerType"`
	Enabled        *bool  `json:"enabled"`
}

func (h *handlers) listRules(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	ctx := c.Request().Context()
	board, err := h.ownBoard(ctx, c, userID)
	if board == nil {
		return err
	}
	rules, err := h.store.ListRules(ctx, board.ID, false)
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rules)
}

func (h *handlers) createRule(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req ruleRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	ctx := c.Request().Context()
	board, err := h.ownBoard(ctx, c, userID)
	if board == nil {
		return err
	}
	rule := domain.AutomationRule{
		ID:             uuid.NewString(),
		BoardID:        board.ID,
		SourceColumnID: req.SourceColumnID,
		TargetColumnID: req.TargetColumnID,
		TriggerType:    req.TriggerType,
		Enabled:        true,
		Seq:            nextTimestamp(),
	}
	if rule.TriggerType == "" {
		rule.TriggerType = domain.TriggerDueDateReached
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if err := rule.Validate(); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	if ok, err := h.checkRuleColumns(ctx, c, board.ID, rule); !ok {
		return err
	}
	if err := h.store.InsertRule(ctx, rule); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	h.publishChange(ctx, board.ID, "rule", rule.ID, domain.RuleChanged, userID, rule)
	return c.JSON(http.StatusCreated, rule)
}

func (h *handlers) updateRule(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	var req ruleRequest
	if err := decodeBody(c, &req); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	ctx := c.Request().Context()
	board, err := h.ownBoard(ctx, c, userID)
	if board == nil {
		return err
	}
	ruleID := c.Param("ruleID")
	existing, err := h.store.GetRule(ctx, board.ID, ruleID)
	if err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	if existing == nil {
		return c.NoContent(http.StatusNotFound)
	}
	rule := *existing
	if req.SourceColumnID != "" {
		rule.SourceColumnID = req.SourceColumnID
	}
	if req.TargetColumnID != "" {
		rule.TargetColumnID = req.TargetColumnID
	}
	if req.TriggerType != "" {
		rule.TriggerType = req.TriggerType
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if err := rule.Validate(); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	if ok, err := h.checkRuleColumns(ctx, c, board.ID, rule); !ok {
		return err
	}
	if err := h.store.UpsertRule(ctx, rule); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	h.publishChange(ctx, board.ID, "rule", rule.ID, domain.RuleChanged, userID, rule)
	return c.JSON(http.StatusOK, rule)
}

func (h *handlers) deleteRule(c echo.Context) error {
	userID, err := h.authenticate(c)
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	ctx := c.Request().Context()
	board, err := h.ownBoard(ctx, c, userID)
	if board == nil {
		return err
	}
	ruleID := c.Param("ruleID")
	if err := h.store.DeleteRule(ctx, board.ID, ruleID); err != nil {
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	h.publishChange(ctx, board.ID, "rule", ruleID, domain.RuleChanged, userID, nil)
	return c.NoContent(http.StatusNoContent)
}

// checkRuleColumns verifies both rule endpoints are columns of the board.
// On failure it writes the response itself and reports ok=false.
func (h *handlers) checkRuleColumns(ctx context.Context, c echo.Context, boardID string, rule domain.AutomationRule) (bool, error) {
	for _, columnID := range []string{rule.SourceColumnID, rule.TargetColumnID} {
		col, err := h.store.GetColumn(ctx, boardID, columnID)
		if err != nil {
			c.Logger().Error(err)
			return false, c.String(http.StatusInternalServerError, err.Error())
		}
		if col == nil {
			return false, c.String(http.StatusBadRequest, "unknown column "+columnID)
		}
	}
	return true, nil
}
