package models

import "time"

// Template is an email template. Subject and Body may contain
// {{firstName}}, {{lastName}}, {{email}} and {{phone}} placeholders.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
