package notion

import "time"

// RichText is one fragment of Notion rich text.
type RichText struct {
	PlainText string       `json:"plain_text,omitempty"`
	Text      *TextContent `json:"text,omitempty"`
}

// TextContent is the literal content of a rich text fragment.
type TextContent struct {
	Content string `json:"content"`
}

// DataSourceRef identifies one data source belonging to a database.
type DataSourceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Property describes one field of a database-level schema.
type Property struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Database is the container object returned by databases.retrieve. With API
// versions from 2025-09-03 on it lists data sources and may report empty
// properties.
type Database struct {
	ID          string              `json:"id"`
	Title       []RichText          `json:"title"`
	DataSources []DataSourceRef     `json:"data_sources"`
	Properties  map[string]Property `json:"properties"`
	URL         string              `json:"url"`
}

// SelectValue is a select or status option.
type SelectValue struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// DateValue is a date property payload.
type DateValue struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// UserRef identifies a Notion user inside a people property.
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ObjectRef identifies a related object.
type ObjectRef struct {
	ID string `json:"id"`
}

// PropertyValue is one property of a page. Only the member matching Type is
// populated by the API.
type PropertyValue struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Title    []RichText   `json:"title,omitempty"`
	Select   *SelectValue `json:"select,omitempty"`
	Status   *SelectValue `json:"status,omitempty"`
	Date     *DateValue   `json:"date,omitempty"`
	People   []UserRef    `json:"people,omitempty"`
	Relation []ObjectRef  `json:"relation,omitempty"`
}

// Page is an item of a data source.
type Page struct {
	ID             string                   `json:"id"`
	URL            string                   `json:"url"`
	CreatedTime    time.Time                `json:"created_time"`
	LastEditedTime time.Time                `json:"last_edited_time"`
	Archived       bool                     `json:"archived"`
	Properties     map[string]PropertyValue `json:"properties"`
}

// Sort orders query results by a property or by a page timestamp. Exactly
// one of Property and Timestamp is set.
type Sort struct {
	Property  string `json:"property,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Direction string `json:"direction"`
}

// Query is the payload for data source queries.
type Query struct {
	Filter      map[string]any `json:"filter,omitempty"`
	Sorts       []Sort         `json:"sorts,omitempty"`
	StartCursor string         `json:"start_cursor,omitempty"`
	PageSize    int            `json:"page_size,omitempty"`
}

// QueryResult is one page of query results.
type QueryResult struct {
	Results    []Page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// User is a Notion user object.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// CreatePageParams describes a page creation targeting a data source.
type CreatePageParams struct {
	DataSourceID string
	Properties   map[string]any
}

// UpdatePageParams describes a partial page update. A nil Archived leaves
// the archival state untouched.
type UpdatePageParams struct {
	Properties map[string]any
	Archived   *bool
}
