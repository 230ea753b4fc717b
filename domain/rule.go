package domain

import "fmt"

// TriggerDueDateReached is the only rule trigger currently defined: the rule
// fires when a task in the source column reaches its due date.
const TriggerDueDateReached = "due_date_reached"

// AutomationRule maps a source column to a target column. When a task sitting
// in the source column becomes due, the engine moves it to the target column.
type AutomationRule struct {
	ID             string `json:"id"`
	BoardID        string `json:"boardId"`
	SourceColumnID string `json:"sourceColumnId"`
	TargetColumnID string `json:"targetColumnId"`
	TriggerType    string `json:"triggerType"`
	Enabled        bool   `json:"enabled"`
	// Seq pins rule precedence to creation order. When several enabled rules
	// share a source column, the lowest Seq wins.
	Seq int64 `json:"seq"`
}

// Validate rejects rule definitions the engine must never see. Column
// membership is checked by the caller against the board's column list.
func (r AutomationRule) Validate() error {
	if r.SourceColumnID == "" || r.TargetColumnID == "" {
		return fmt.Errorf("rule requires source and target columns")
	}
	if r.SourceColumnID == r.TargetColumnID {
		return fmt.Errorf("rule source and target columns must differ")
	}
	if r.TriggerType != TriggerDueDateReached {
		return fmt.Errorf("unknown trigger type %q", r.TriggerType)
	}
	return nil
}
