package domain

// Board is the top-level task container owned by a single user.
type Board struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	OwnerID  string `json:"ownerId"`
	Position int    `json:"position"`
}

// Column is an ordered bucket of tasks within a board.
type Column struct {
	ID       string `json:"id"`
	BoardID  string `json:"boardId"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// Profile holds per-user settings consumed by the notification dispatcher.
type Profile struct {
	UserID     string `json:"userId"`
	Name       string `json:"name,omitempty"`
	WebhookURL string `json:"webhookUrl,omitempty"`
}
