package api

import (
	"context"

	"github.com/DotSati/visual-task-quest/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	ListBoards(ctx context.Context, ownerID string) ([]domain.Board, error)
	GetBoard(ctx context.Context, boardID string) (*domain.Board, error)
	InsertBoard(ctx context.Context, b domain.Board) error
	UpsertBoard(ctx context.Context, b domain.Board) error
	DeleteBoard(ctx context.Context, boardID string) error

	ListColumns(ctx context.Context, boardID string) ([]domain.Column, error)
	GetColumn(ctx context.Context, boardID, columnID string) (*domain.Column, error)
	UpsertColumn(ctx context.Context, c domain.Column) error
	DeleteColumn(ctx context.Context, boardID, columnID string) error

	ListTasks(ctx context.Context, boardID string) ([]domain.Task, error)
	GetTask(ctx context.Context, boardID, taskID string) (*domain.Task, error)
	InsertTask(ctx context.Context, t domain.Task) error
	UpdateTask(ctx context.Context, boardID, taskID string, patch domain.TaskPatch, etag string) error
	DeleteTask(ctx context.Context, boardID, taskID string) error

	ListRules(ctx context.Context, boardID string, enabledOnly bool) ([]domain.AutomationRule, error)
	GetRule(ctx context.Context, boardID, ruleID string) (*domain.AutomationRule, error)
	InsertRule(ctx context.Context, r domain.AutomationRule) error
	UpsertRule(ctx context.Context, r domain.AutomationRule) error
	DeleteRule(ctx context.Context, boardID, ruleID string) error

	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, p domain.Profile) error

	PublishEvent(ctx context.Context, ev domain.Event) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents processing of duplicate move commits.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, scope, key string) (bool, error)
	// Remove deletes a previously added key, used when the commit fails.
	Remove(ctx context.Context, scope, key string) error
}
