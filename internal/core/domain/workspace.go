package domain

import "time"

// Workspace maps a platform channel or workspace to a Notion database.
type Workspace struct {
	ID               string
	Platform         Platform
	PlatformID       string
	NotionDatabaseID string
	Name             string
	PropertyMappings map[string]string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Platform string

const (
	PlatformTeams Platform = "teams"
	PlatformSlack Platform = "slack"
	PlatformWeb   Platform = "web"
)

// DefaultWorkspaceMappings is applied when a workspace is created without
// custom property mappings.
func DefaultWorkspaceMappings() map[string]string {
	return map[string]string{
		"title":    "Name",
		"due_date": "Due Date",
		"priority": "Priority",
		"assignee": "Assignee",
		"status":   "Status",
	}
}
