package domain

import "time"

// Task is the normalized view of a Notion task page.
type Task struct {
	NotionID       string
	Title          string
	Status         string
	Priority       string
	DueDate        *time.Time
	Assignees      []string
	CreatedTime    time.Time
	LastEditedTime time.Time
	URL            string
}

// TaskPage is one page of task query results.
type TaskPage struct {
	Tasks   []Task
	Page    int
	Limit   int
	HasMore bool
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

type SortField string

const (
	SortByCreatedTime    SortField = "created_time"
	SortByLastEditedTime SortField = "last_edited_time"
	SortByDueDate        SortField = "due_date"
	SortByPriority       SortField = "priority"
)

type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)
