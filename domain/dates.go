package domain

import "time"

// DateLayout is the wire format for due dates. Dates are compared as strings;
// lexical order on this layout equals chronological order, which keeps the
// engine free of timezone drift from parsing.
const DateLayout = "2006-01-02"

// Today returns the midnight-truncated date string for now.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}

// IsDue reports whether a due date has been reached. An empty due date never
// counts as due. The boundary is inclusive: a task due today is due.
func IsDue(due, today string) bool {
	return due != "" && due <= today
}

// IsOverdue reports whether a due date lies strictly in the past.
func IsOverdue(due, today string) bool {
	return due != "" && due < today
}

// ValidDate reports whether s is a well-formed due date.
func ValidDate(s string) bool {
	t, err := time.Parse(DateLayout, s)
	return err == nil && t.Format(DateLayout) == s
}
