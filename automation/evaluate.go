package automation

import "github.com/DotSati/visual-task-quest/domain"

// Move pairs a due task with the column an automation rule redirects it to.
// DueDate and TargetPosition are only set for moves committed through the
// override flow.
type Move struct {
	TaskID         string
	TargetColumnID string
	DueDate        *string
	TargetPosition *int
}

// Evaluate computes the moves one poll cycle would apply: every task whose due
// date is on or before today is matched against the rule list, and the first
// rule in load order whose source column equals the task's current column
// wins. Tasks without a due date or without a matching rule are left
// untouched. A task can appear at most once in the result since it holds a
// single column at a time.
func Evaluate(tasks []domain.Task, rules []domain.AutomationRule, today string) []Move {
	if len(tasks) == 0 || len(rules) == 0 {
		return nil
	}
	var moves []Move
	for _, t := range tasks {
		if !domain.IsDue(t.DueDate, today) {
			continue
		}
		for _, r := range rules {
			if !r.Enabled {
				continue
			}
			if r.SourceColumnID == t.ColumnID {
				moves = append(moves, Move{TaskID: t.ID, TargetColumnID: r.TargetColumnID})
				break
			}
		}
	}
	return moves
}

// MatchRule returns the first enabled rule sourcing from the given column, or
// nil when the column is unruled.
func MatchRule(rules []domain.AutomationRule, columnID string) *domain.AutomationRule {
	for i := range rules {
		if rules[i].Enabled && rules[i].SourceColumnID == columnID {
			return &rules[i]
		}
	}
	return nil
}
