package domain

// Task represents a single card on a board.
type Task struct {
	ID         string   `json:"id"`
	BoardID    string   `json:"boardId"`
	ColumnID   string   `json:"columnId"`
	Title      string   `json:"title"`
	Notes      string   `json:"notes,omitempty"`
	Position   int      `json:"position"`
	DueDate    string   `json:"dueDate,omitempty"`
	NotifyAt   string   `json:"notifyAt,omitempty"`
	NotifySent bool     `json:"notifySent,omitempty"`
	Assignee   string   `json:"assignee,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// TaskPatch carries partial updates for a task. Nil fields are left untouched.
type TaskPatch struct {
	Title    *string  `json:"title,omitempty"`
	Notes    *string  `json:"notes,omitempty"`
	ColumnID *string  `json:"columnId,omitempty"`
	Position *int     `json:"position,omitempty"`
	DueDate  *string  `json:"dueDate,omitempty"`
	NotifyAt *string  `json:"notifyAt,omitempty"`
	Assignee *string  `json:"assignee,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Empty reports whether the patch carries no changes at all.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Notes == nil && p.ColumnID == nil && p.Position == nil &&
		p.DueDate == nil && p.NotifyAt == nil && p.Assignee == nil && p.Tags == nil
}
