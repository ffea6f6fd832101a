package task

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tasklink/notionbridge/internal/core/domain"
	"github.com/tasklink/notionbridge/internal/core/errs"
	"github.com/tasklink/notionbridge/internal/infra/notion"
)

// defaultPropertyMappings names the Notion properties each task field maps
// to when a workspace or caller supplies no override.
var defaultPropertyMappings = map[string]string{
	"title":    "Name",
	"due_date": "Due Date",
	"priority": "Priority",
	"assignee": "Assignee",
	"status":   "Status",
	"project":  "Project",
}

// resolveMappings merges overrides over the default property mappings.
func resolveMappings(overrides map[string]string) map[string]string {
	mappings := make(map[string]string, len(defaultPropertyMappings))
	for key, value := range defaultPropertyMappings {
		mappings[key] = value
	}
	for key, value := range overrides {
		mappings[key] = value
	}
	return mappings
}

// buildCreateProperties builds the Notion property payload for a new task.
// Caller-supplied raw properties merge last and override the named fields.
func buildCreateProperties(in CreateInput, mappings map[string]string, assigneeID string) map[string]any {
	properties := map[string]any{
		mappings["title"]: notion.TitleProperty(in.Title),
	}
	if in.DueDate != nil {
		properties[mappings["due_date"]] = notion.DateProperty(in.DueDate.Format(time.RFC3339))
	}
	if in.Priority != "" {
		properties[mappings["priority"]] = notion.SelectProperty(in.Priority)
	}
	if assigneeID != "" {
		properties[mappings["assignee"]] = notion.PeopleProperty(assigneeID)
	}
	for name, value := range in.Properties {
		properties[name] = value
	}
	return properties
}

// buildUpdateProperties builds the Notion property payload for a task patch.
// An empty result means no update fields were supplied.
func buildUpdateProperties(in UpdateInput, mappings map[string]string, assigneeID string) map[string]any {
	properties := map[string]any{}
	if in.Status != "" {
		properties[mappings["status"]] = notion.StatusProperty(in.Status)
	}
	if in.Priority != "" {
		properties[mappings["priority"]] = notion.SelectProperty(in.Priority)
	}
	if in.DueDate != nil {
		properties[mappings["due_date"]] = notion.DateProperty(in.DueDate.Format(time.RFC3339))
	}
	if assigneeID != "" {
		properties[mappings["assignee"]] = notion.PeopleProperty(assigneeID)
	}
	for name, value := range in.Properties {
		properties[name] = value
	}
	return properties
}

// buildListFilter constructs the Notion filter payload for a task query.
// Returns nil when no filters apply, the bare filter when one applies, and
// an "and" compound otherwise.
func buildListFilter(in ListInput, mappings map[string]string) map[string]any {
	var filters []map[string]any

	if in.Status != "" {
		filters = append(filters, map[string]any{
			"property": mappings["status"],
			"status":   map[string]any{"equals": in.Status},
		})
	}
	if in.Priority != "" {
		filters = append(filters, map[string]any{
			"property": mappings["priority"],
			"select":   map[string]any{"equals": in.Priority},
		})
	}
	if in.Assignee != "" {
		filters = append(filters, map[string]any{
			"property": mappings["assignee"],
			"people":   map[string]any{"contains": in.Assignee},
		})
	}
	if in.DueDateFrom != nil || in.DueDateTo != nil {
		date := map[string]any{}
		if in.DueDateFrom != nil {
			date["on_or_after"] = in.DueDateFrom.Format(time.RFC3339)
		}
		if in.DueDateTo != nil {
			date["on_or_before"] = in.DueDateTo.Format(time.RFC3339)
		}
		filters = append(filters, map[string]any{
			"property": mappings["due_date"],
			"date":     date,
		})
	}
	if in.ProjectID != "" {
		filters = append(filters, map[string]any{
			"property": mappings["project"],
			"relation": map[string]any{"contains": in.ProjectID},
		})
	}

	switch len(filters) {
	case 0:
		return nil
	case 1:
		return filters[0]
	}
	parts := make([]any, len(filters))
	for i, f := range filters {
		parts[i] = f
	}
	return map[string]any{"and": parts}
}

// buildSorts maps a sort field onto the Notion sorts payload. Timestamps
// sort natively; everything else sorts by its mapped property name.
func buildSorts(sortBy domain.SortField, order domain.SortOrder, mappings map[string]string) []notion.Sort {
	direction := string(order)
	switch sortBy {
	case domain.SortByCreatedTime, domain.SortByLastEditedTime:
		return []notion.Sort{{Timestamp: string(sortBy), Direction: direction}}
	}

	property, ok := mappings[string(sortBy)]
	if !ok {
		property = string(sortBy)
	}
	return []notion.Sort{{Property: property, Direction: direction}}
}

// mapPage converts a Notion page into a task using the given property
// mappings to locate each field.
func mapPage(page *notion.Page, mappings map[string]string) *domain.Task {
	props := page.Properties
	return &domain.Task{
		NotionID:       page.ID,
		Title:          extractTitle(props[mappings["title"]]),
		Status:         extractStatus(props[mappings["status"]]),
		Priority:       extractSelect(props[mappings["priority"]]),
		DueDate:        extractDate(props[mappings["due_date"]]),
		Assignees:      extractPeople(props[mappings["assignee"]]),
		CreatedTime:    page.CreatedTime,
		LastEditedTime: page.LastEditedTime,
		URL:            page.URL,
	}
}

func extractTitle(pv notion.PropertyValue) string {
	if len(pv.Title) == 0 {
		return "Untitled"
	}
	first := pv.Title[0]
	if first.PlainText != "" {
		return first.PlainText
	}
	if first.Text != nil && first.Text.Content != "" {
		return first.Text.Content
	}
	return "Untitled"
}

// extractStatus reads a status property, falling back to select for
// databases that model status as a select.
func extractStatus(pv notion.PropertyValue) string {
	if pv.Status != nil {
		return pv.Status.Name
	}
	if pv.Select != nil {
		return pv.Select.Name
	}
	return ""
}

func extractSelect(pv notion.PropertyValue) string {
	if pv.Select != nil {
		return pv.Select.Name
	}
	return ""
}

func extractDate(pv notion.PropertyValue) *time.Time {
	if pv.Date == nil || pv.Date.Start == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, pv.Date.Start)
	if err != nil {
		// Notion returns bare dates for properties without a time component.
		t, err = time.Parse("2006-01-02", pv.Date.Start)
		if err != nil {
			return nil
		}
	}
	return &t
}

// extractPeople returns assignee display names, falling back to user IDs
// when the integration cannot read user profiles.
func extractPeople(pv notion.PropertyValue) []string {
	var assignees []string
	for _, person := range pv.People {
		switch {
		case person.Name != "":
			assignees = append(assignees, person.Name)
		case person.ID != "":
			assignees = append(assignees, person.ID)
		}
	}
	return assignees
}

// errSpec configures notionErr for one operation: what a 404 refers to, how
// to phrase a 400, and the message for unexpected failures. An empty
// badRequest leaves 400 responses untranslated.
type errSpec struct {
	entityType string
	entityID   string
	badRequest string
	fallback   string
}

// notionErr maps an upstream failure onto domain errors. Typed domain
// errors, including rate-limit exhaustion from the retry executor, pass
// through unchanged; anything else is wrapped as an internal failure.
func notionErr(err error, spec errSpec) error {
	var apiErr *errs.NotionAPIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusNotFound:
			return &errs.NotFoundError{EntityType: spec.entityType, EntityID: spec.entityID}
		case http.StatusBadRequest:
			if spec.badRequest != "" {
				msg := apiErr.Message
				if msg == "" {
					msg = "Bad request"
				}
				return &errs.ValidationError{Message: spec.badRequest + ": " + msg}
			}
		}
		return err
	}
	return unexpected(spec.fallback, err)
}

// unexpected wraps non-domain errors as internal failures with a stable
// caller-facing message.
func unexpected(msg string, err error) error {
	if errs.IsDomainError(err) {
		return err
	}
	slog.Error("unexpected task service failure", "detail", msg, "error", err)
	return &errs.InternalError{Message: msg, Err: err}
}
