package util

import "github.com/google/uuid"

// NewID returns a random lower-case UUID, the full id form used for users,
// tasks and reports.
func NewID() string {
	return uuid.NewString()
}
