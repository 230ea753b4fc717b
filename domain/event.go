package domain

import "encoding/json"

const (
	TaskCreated    = "task-created"
	TaskUpdated    = "task-updated"
	TaskMoved      = "task-moved"
	TaskDeleted    = "task-deleted"
	AutomationMove = "automation-moved"
	ColumnChanged  = "column-changed"
	RuleChanged    = "rule-changed"
	BoardChanged   = "board-changed"
)

// Event describes a row change on a board. Events travel through the change
// queue and are fanned out to stream subscribers.
type Event struct {
	ID         string          `json:"id"`
	BoardID    string          `json:"boardId"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data,omitempty"`
	Time       int64           `json:"time"`
	UserID     string          `json:"userId,omitempty"`
}
