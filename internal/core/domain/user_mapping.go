package domain

import "time"

// UserMapping links a platform user ID to a Notion user ID so assignees can
// be resolved when creating or updating tasks.
type UserMapping struct {
	ID             string
	Platform       Platform
	PlatformUserID string
	NotionUserID   string
	DisplayName    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserMappingPage is one page of user mapping list results. Total counts
// all mappings matching the filter, not just this page.
type UserMappingPage struct {
	Mappings []UserMapping
	Total    int64
	Page     int
	Limit    int
	HasMore  bool
}
