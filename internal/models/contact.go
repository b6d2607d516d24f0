package models

import "time"

// Contact statuses
const (
	ContactStatusNew       = "New"
	ContactStatusContacted = "Contacted"
	ContactStatusFollowUp  = "FollowUp"
	ContactStatusClosed    = "Closed"
	ContactStatusArchived  = "Archived"
)

// ContactStatuses lists the valid contact statuses in display order.
var ContactStatuses = []string{
	ContactStatusNew,
	ContactStatusContacted,
	ContactStatusFollowUp,
	ContactStatusClosed,
	ContactStatusArchived,
}

// ValidContactStatus reports whether s is a known contact status.
func ValidContactStatus(s string) bool {
	for _, v := range ContactStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Contact represents a person in the local contact table. Email is the
// natural key for reconciliation and is stored lowercased.
type Contact struct {
	ID               string     `json:"id"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	Birthdate        *time.Time `json:"birthdate,omitempty"`
	Notes            string     `json:"notes"`
	Status           string     `json:"status"`
	OptedOut         bool       `json:"opted_out"`
	UnsubscribeToken string     `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ContactFilter for listing contacts
type ContactFilter struct {
	Search   string
	Status   string
	OptedOut *bool
	Limit    int
	Offset   int
}
