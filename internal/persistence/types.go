package persistence

import "time"

// User is the acting identity behind an API token. Mutating operations are
// rejected without one.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	Token       string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}
