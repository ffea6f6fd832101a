package domain

import "time"

// Token is a stored Notion API credential. Value is the raw secret and must
// never be logged or returned by the API; use Preview for display.
type Token struct {
	ID          string
	Name        string
	Value       string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Preview masks the token value, keeping only the last six characters.
func (t Token) Preview() string {
	if len(t.Value) <= 6 {
		return "******"
	}
	return "******..." + t.Value[len(t.Value)-6:]
}
