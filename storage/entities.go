package storage

import (
	"strings"

	"github.com/DotSati/visual-task-quest/domain"
)

// Entity represents base table entity keys.
type Entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

const (
	EdmInt32   = "Edm.Int32"
	EdmBoolean = "Edm.Boolean"
	EdmInt64   = "Edm.Int64"
)

type boardEntity struct {
	Entity
	Name     string `json:"Name"`
	OwnerID  string `json:"OwnerID"`
	Position int    `json:"Position"`
}

func (e boardEntity) toDomain() domain.Board {
	return domain.Board{ID: e.RowKey, Name: e.Name, OwnerID: e.OwnerID, Position: e.Position}
}

func boardToEntity(b domain.Board) boardEntity {
	return boardEntity{
		Entity:   Entity{PartitionKey: b.ID, RowKey: b.ID},
		Name:     b.Name,
		OwnerID:  b.OwnerID,
		Position: b.Position,
	}
}

type columnEntity struct {
	Entity
	Name     string `json:"Name"`
	Position int    `json:"Position"`
}

func (e columnEntity) toDomain() domain.Column {
	return domain.Column{ID: e.RowKey, BoardID: e.PartitionKey, Name: e.Name, Position: e.Position}
}

func columnToEntity(c domain.Column) columnEntity {
	return columnEntity{
		Entity:   Entity{PartitionKey: c.BoardID, RowKey: c.ID},
		Name:     c.Name,
		Position: c.Position,
	}
}

type taskEntity struct {
	Entity
	Title      string `json:"Title"`
	Notes      string `json:"Notes"`
	ColumnID   string `json:"ColumnID"`
	Position   int    `json:"Position"`
	DueDate    string `json:"DueDate"`
	NotifyAt   string `json:"NotifyAt"`
	NotifySent bool   `json:"NotifySent"`
	Assignee   string `json:"Assignee"`
	Tags       string `json:"Tags"`
}

func (e taskEntity) toDomain() domain.Task {
	return domain.Task{
		ID:         e.RowKey,
		BoardID:    e.PartitionKey,
		ColumnID:   e.ColumnID,
		Title:      e.Title,
		Notes:      e.Notes,
		Position:   e.Position,
		DueDate:    e.DueDate,
		NotifyAt:   e.NotifyAt,
		NotifySent: e.NotifySent,
		Assignee:   e.Assignee,
		Tags:       splitTags(e.Tags),
	}
}

func taskToEntity(t domain.Task) taskEntity {
	return taskEntity{
		Entity:     Entity{PartitionKey: t.BoardID, RowKey: t.ID},
		Title:      t.Title,
		Notes:      t.Notes,
		ColumnID:   t.ColumnID,
		Position:   t.Position,
		DueDate:    t.DueDate,
		NotifyAt:   t.NotifyAt,
		NotifySent: t.NotifySent,
		Assignee:   t.Assignee,
		Tags:       strings.Join(t.Tags, ","),
	}
}

// taskUpdate carries a partial merge update for a task row.
type taskUpdate struct {
	Entity
	Title          *string `json:"Title,omitempty"`
	Notes          *string `json:"Notes,omitempty"`
	ColumnID       *string `json:"ColumnID,omitempty"`
	Position       *int    `json:"Position,omitempty"`
	PositionType   *string `json:"Position@odata.type,omitempty"`
	DueDate        *string `json:"DueDate,omitempty"`
	NotifyAt       *string `json:"NotifyAt,omitempty"`
	NotifySent     *bool   `json:"NotifySent,omitempty"`
	NotifySentType *string `json:"NotifySent@odata.type,omitempty"`
	Assignee       *string `json:"Assignee,omitempty"`
	Tags           *string `json:"Tags,omitempty"`
}

func patchToUpdate(boardID, taskID string, p domain.TaskPatch) taskUpdate {
	upd := taskUpdate{Entity: Entity{PartitionKey: boardID, RowKey: taskID}}
	upd.Title = p.Title
	upd.Notes = p.Notes
	upd.ColumnID = p.ColumnID
	upd.DueDate = p.DueDate
	upd.NotifyAt = p.NotifyAt
	upd.Assignee = p.Assignee
	if p.Position != nil {
		upd.Position = p.Position
		t := EdmInt32
		upd.PositionType = &t
	}
	if p.NotifyAt != nil {
		// Re-arm the notification when its timestamp changes.
		sent := false
		st := EdmBoolean
		upd.NotifySent = &sent
		upd.NotifySentType = &st
	}
	if p.Tags != nil {
		joined := strings.Join(p.Tags, ",")
		upd.Tags = &joined
	}
	return upd
}

type ruleEntity struct {
	Entity
	SourceColumnID string `json:"SourceColumnID"`
	TargetColumnID string `json:"TargetColumnID"`
	TriggerType    string `json:"TriggerType"`
	Enabled        bool   `json:"Enabled"`
	Seq            int64  `json:"Seq,string"`
	SeqType        string `json:"Seq@odata.type,omitempty"`
}

func (e ruleEntity) toDomain() domain.AutomationRule {
	return domain.AutomationRule{
		ID:             e.RowKey,
		BoardID:        e.PartitionKey,
		SourceColumnID: e.SourceColumnID,
		TargetColumnID: e.TargetColumnID,
		TriggerType:    e.TriggerType,
		Enabled:        e.Enabled,
		Seq:            e.Seq,
	}
}

func ruleToEntity(r domain.AutomationRule) ruleEntity {
	return ruleEntity{
		Entity:         Entity{PartitionKey: r.BoardID, RowKey: r.ID},
		SourceColumnID: r.SourceColumnID,
		TargetColumnID: r.TargetColumnID,
		TriggerType:    r.TriggerType,
		Enabled:        r.Enabled,
		Seq:            r.Seq,
		SeqType:        EdmInt64,
	}
}

type profileEntity struct {
	Entity
	Name       string `json:"Name"`
	WebhookURL string `json:"WebhookURL"`
}

func (e profileEntity) toDomain() domain.Profile {
	return domain.Profile{UserID: e.RowKey, Name: e.Name, WebhookURL: e.WebhookURL}
}

func profileToEntity(p domain.Profile) profileEntity {
	return profileEntity{
		Entity:     Entity{PartitionKey: p.UserID, RowKey: p.UserID},
		Name:       p.Name,
		WebhookURL: p.WebhookURL,
	}
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
