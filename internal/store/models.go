package store

import "time"

type User struct {
	ID        string
	Name      string
	Email     string
	AvatarKey string
	CreatedAt time.Time
}

// Task is a task record. Description is canonical serialized text, like
// Report.Content.
type Task struct {
	ID          string
	Title       string
	Description string
	SearchText  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Report is a daily report. Content holds the canonical serialized text;
// SearchText is the same text with references replaced by display names.
type Report struct {
	ID         string
	AuthorID   string
	Content    string
	SearchText string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
