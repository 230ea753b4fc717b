package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"github.com/DotSati/visual-task-quest/domain"
)

// Tables names the Azure tables backing the board model.
type Tables struct {
	Boards   string
	Columns  string
	Tasks    string
	Rules    string
	Profiles string
}

// Storage provides access to underlying persistence mechanisms.
type Storage struct {
	boards   *aztables.Client
	columns  *aztables.Client
	tasks    *aztables.Client
	rules    *aztables.Client
	profiles *aztables.Client
	events   *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr string, tables Tables, eventsQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		boards:   svc.NewClient(tables.Boards),
		columns:  svc.NewClient(tables.Columns),
		tasks:    svc.NewClient(tables.Tasks),
		rules:    svc.NewClient(tables.Rules),
		profiles: svc.NewClient(tables.Profiles),
		events:   eq,
	}, nil
}

// ListBoards retrieves all boards owned by the given user.
func (s *Storage) ListBoards(ctx context.Context, ownerID string) ([]domain.Board, error) {
	filter := "OwnerID eq '" + ownerID + "'"
	pager := s.boards.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	boards := []domain.Board{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent boardEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			boards = append(boards, ent.toDomain())
		}
	}
	sort.Slice(boards, func(i, j int) bool { return boards[i].Position < boards[j].Position })
	return boards, nil
}

// GetBoard retrieves a board if present, nil otherwise.
func (s *Storage) GetBoard(ctx context.Context, boardID string) (*domain.Board, error) {
	ent, err := s.boards.GetEntity(ctx, boardID, boardID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var b boardEntity
	if err := json.Unmarshal(ent.Value, &b); err != nil {
		return nil, err
	}
	board := b.toDomain()
	return &board, nil
}

// InsertBoard creates a new board row.
func (s *Storage) InsertBoard(ctx context.Context, b domain.Board) error {
	payload, err := json.Marshal(boardToEntity(b))
	if err == nil {
		_, err = s.boards.AddEntity(ctx, payload, nil)
	}
	return mapWriteErr(err)
}

// UpsertBoard creates or replaces a board row.
func (s *Storage) UpsertBoard(ctx context.Context, b domain.Board) error {
	payload, err := json.Marshal(boardToEntity(b))
	if err == nil {
		_, err = s.boards.UpsertEntity(ctx, payload, nil)
	}
	return err
}

// DeleteBoard removes a board row.
func (s *Storage) DeleteBoard(ctx context.Context, boardID string) error {
	_, err := s.boards.DeleteEntity(ctx, boardID, boardID, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

// ListColumns retrieves the columns of a board ordered by position.
func (s *Storage) ListColumns(ctx context.Context, boardID string) ([]domain.Column, error) {
	filter := "PartitionKey eq '" + boardID + "'"
	pager := s.columns.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	cols := []domain.Column{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent columnEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			cols = append(cols, ent.toDomain())
		}
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Position < cols[j].Position })
	return cols, nil
}

// GetColumn retrieves a column if present, nil otherwise.
func (s *Storage) GetColumn(ctx context.Context, boardID, columnID string) (*domain.Column, error) {
	ent, err := s.columns.GetEntity(ctx, boardID, columnID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var c columnEntity
	if err := json.Unmarshal(ent.Value, &c); err != nil {
		return nil, err
	}
	col := c.toDomain()
	return &col, nil
}

// UpsertColumn creates or replaces a column row.
func (s *Storage) UpsertColumn(ctx context.Context, c domain.Column) error {
	payload, err := json.Marshal(columnToEntity(c))
	if err == nil {
		_, err = s.columns.UpsertEntity(ctx, payload, nil)
	}
	return err
}

// DeleteColumn removes a column row.
func (s *Storage) DeleteColumn(ctx context.Context, boardID, columnID string) error {
	_, err := s.columns.DeleteEntity(ctx, boardID, columnID, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

// ListTasks retrieves all tasks on the given board.
func (s *Storage) ListTasks(ctx context.Context, boardID string) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + boardID + "'"
	pager := s.tasks.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			tasks = append(tasks, ent.toDomain())
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].ColumnID != tasks[j].ColumnID {
			return tasks[i].ColumnID < tasks[j].ColumnID
		}
		return tasks[i].Position < tasks[j].Position
	})
	return tasks, nil
}

// GetTask retrieves a task if present, nil otherwise.
func (s *Storage) GetTask(ctx context.Context, boardID, taskID string) (*domain.Task, error) {
	ent, err := s.tasks.GetEntity(ctx, boardID, taskID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var t taskEntity
	if err := json.Unmarshal(ent.Value, &t); err != nil {
		return nil, err
	}
	task := t.toDomain()
	return &task, nil
}

// InsertTask creates a new task row.
func (s *Storage) InsertTask(ctx context.Context, t domain.Task) error {
	payload, err := json.Marshal(taskToEntity(t))
	if err == nil {
		_, err = s.tasks.AddEntity(ctx, payload, nil)
	}
	return mapWriteErr(err)
}

// UpdateTask merges the patch into an existing task row. An empty etag merges
// unconditionally; otherwise a stale etag yields ErrConcurrencyConflict.
func (s *Storage) UpdateTask(ctx context.Context, boardID, taskID string, patch domain.TaskPatch, etag string) error {
	payload, err := json.Marshal(patchToUpdate(boardID, taskID, patch))
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	if etag != "" {
		et = azcore.ETag(etag)
	}
	_, err = s.tasks.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	return mapWriteErr(err)
}

// DeleteTask removes a task row.
func (s *Storage) DeleteTask(ctx context.Context, boardID, taskID string) error {
	_, err := s.tasks.DeleteEntity(ctx, boardID, taskID, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

// ListRules retrieves a board's automation rules in creation order. With
// enabledOnly set, disabled rules are excluded entirely.
func (s *Storage) ListRules(ctx context.Context, boardID string, enabledOnly bool) ([]domain.AutomationRule, error) {
	filter := "PartitionKey eq '" + boardID + "'"
	if enabledOnly {
		filter += " and Enabled eq true"
	}
	pager := s.rules.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	rules := []domain.AutomationRule{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent ruleEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			rules = append(rules, ent.toDomain())
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Seq != rules[j].Seq {
			return rules[i].Seq < rules[j].Seq
		}
		return rules[i].ID < rules[j].ID
	})
	return rules, nil
}

// GetRule retrieves a rule if present, nil otherwise.
func (s *Storage) GetRule(ctx context.Context, boardID, ruleID string) (*domain.AutomationRule, error) {
	ent, err := s.rules.GetEntity(ctx, boardID, ruleID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var r ruleEntity
	if err := json.Unmarshal(ent.Value, &r); err != nil {
		return nil, err
	}
	rule := r.toDomain()
	return &rule, nil
}

// InsertRule creates a new rule row.
func (s *Storage) InsertRule(ctx context.Context, r domain.AutomationRule) error {
	payload, err := json.Marshal(ruleToEntity(r))
	if err == nil {
		_, err = s.rules.AddEntity(ctx, payload, nil)
	}
	return mapWriteErr(err)
}

// UpsertRule creates or replaces a rule row.
func (s *Storage) UpsertRule(ctx context.Context, r domain.AutomationRule) error {
	payload, err := json.Marshal(ruleToEntity(r))
	if err == nil {
		_, err = s.rules.UpsertEntity(ctx, payload, nil)
	}
	return err
}

// DeleteRule removes a rule row.
func (s *Storage) DeleteRule(ctx context.Context, boardID, ruleID string) error {
	_, err := s.rules.DeleteEntity(ctx, boardID, ruleID, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

// GetProfile retrieves a user profile if present, nil otherwise.
func (s *Storage) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	ent, err := s.profiles.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var p profileEntity
	if err := json.Unmarshal(ent.Value, &p); err != nil {
		return nil, err
	}
	profile := p.toDomain()
	return &profile, nil
}

// UpsertProfile creates or replaces a user profile row.
func (s *Storage) UpsertProfile(ctx context.Context, p domain.Profile) error {
	payload, err := json.Marshal(profileToEntity(p))
	if err == nil {
		_, err = s.profiles.UpsertEntity(ctx, payload, nil)
	}
	return err
}

// ListDueNotifications retrieves tasks whose notification timestamp has
// elapsed and whose sent flag is still clear. RFC3339 strings compare
// lexically in chronological order, so the filter runs server-side.
func (s *Storage) ListDueNotifications(ctx context.Context, now string) ([]domain.Task, error) {
	filter := "NotifySent eq false and NotifyAt gt '' and NotifyAt le '" + now + "'"
	pager := s.tasks.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			tasks = append(tasks, ent.toDomain())
		}
	}
	return tasks, nil
}

// MarkNotified sets the task's sent flag regardless of delivery outcome.
func (s *Storage) MarkNotified(ctx context.Context, boardID, taskID string) error {
	sent := true
	st := EdmBoolean
	upd := taskUpdate{
		Entity:         Entity{PartitionKey: boardID, RowKey: taskID},
		NotifySent:     &sent,
		NotifySentType: &st,
	}
	payload, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.tasks.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	return mapWriteErr(err)
}

// PublishEvent sends a row-change event to the change queue.
func (s *Storage) PublishEvent(ctx context.Context, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.events.EnqueueMessage(ctx, string(data), nil)
	return err
}

// DequeueEvent retrieves a single change event message, nil when the queue is
// empty.
func (s *Storage) DequeueEvent(ctx context.Context) (*azqueue.DequeuedMessage, error) {
	resp, err := s.events.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	return resp.Messages[0], nil
}

// DeleteEvent removes a processed message from the change queue.
func (s *Storage) DeleteEvent(ctx context.Context, id, receipt string) error {
	_, err := s.events.DeleteMessage(ctx, id, receipt, nil)
	return err
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}

func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case 404:
			return domain.ErrNotFound
		case 412:
			return domain.ErrConcurrencyConflict
		}
	}
	return err
}
