package httpapi

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tasklink/notionbridge/internal/core/domain"
	"github.com/tasklink/notionbridge/internal/core/errs"
	"github.com/tasklink/notionbridge/internal/core/task"
)

// Notion database IDs arrive as 32 hex chars, or as a dashed UUID.
var (
	databaseIDPlain  = regexp.MustCompile(`^[a-f0-9]{32}$`)
	databaseIDDashed = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)
)

var sortFields = map[string]bool{
	"created_time":     true,
	"last_edited_time": true,
	"due_date":         true,
	"priority":         true,
}

type createTaskRequest struct {
	Title            string         `json:"title"`
	NotionDatabaseID string         `json:"notion_database_id"`
	AssigneeID       string         `json:"assignee_id"`
	DueDate          *time.Time     `json:"due_date"`
	Priority         string         `json:"priority"`
	Properties       map[string]any `json:"properties"`
}

func (req *createTaskRequest) validate() error {
	if req.Title == "" {
		return &errs.ValidationError{Message: "title is required", Field: "title"}
	}
	if utf8.RuneCountInString(req.Title) > 200 {
		return &errs.ValidationError{Message: "title must be at most 200 characters", Field: "title"}
	}
	for _, c := range req.Title {
		if c < ' ' {
			return &errs.ValidationError{Message: "Title contains invalid characters", Field: "title"}
		}
	}
	req.Title = strings.TrimSpace(req.Title)

	if req.NotionDatabaseID == "" {
		return &errs.ValidationError{Message: "notion_database_id is required", Field: "notion_database_id"}
	}
	if req.Priority != "" && !isPriority(req.Priority) {
		return &errs.ValidationError{Message: "Priority must be Low, Medium, or High", Field: "priority"}
	}
	return nil
}

type createTaskResponse struct {
	NotionTaskID  string    `json:"notion_task_id"`
	NotionTaskURL string    `json:"notion_task_url"`
	CreatedAt     time.Time `json:"created_at"`
}

type updateTaskRequest struct {
	Status     string         `json:"status"`
	AssigneeID string         `json:"assignee_id"`
	DueDate    *time.Time     `json:"due_date"`
	Priority   string         `json:"priority"`
	Properties map[string]any `json:"properties"`
}

func (req *updateTaskRequest) validate() error {
	if req.Priority != "" {
		normalized, ok := normalizePriority(req.Priority)
		if !ok {
			return &errs.ValidationError{Message: "Priority must be Low, Medium, or High", Field: "priority"}
		}
		req.Priority = normalized
	}
	if req.Status == "" && req.AssigneeID == "" && req.DueDate == nil &&
		req.Priority == "" && len(req.Properties) == 0 {
		return &errs.ValidationError{Message: "At least one field must be provided for update", Field: "body"}
	}
	return nil
}

type updateTaskResponse struct {
	NotionTaskID  string     `json:"notion_task_id"`
	NotionTaskURL string     `json:"notion_task_url"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Status        string     `json:"status,omitempty"`
	Priority      string     `json:"priority,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
}

type taskSummary struct {
	NotionTaskID   string     `json:"notion_task_id"`
	Title          string     `json:"title"`
	Status         string     `json:"status,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Assignees      []string   `json:"assignees"`
	CreatedTime    time.Time  `json:"created_time"`
	LastEditedTime time.Time  `json:"last_edited_time"`
	URL            string     `json:"url"`
}

type listTasksResponse struct {
	Data    []taskSummary `json:"data"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
	Total   int           `json:"total"`
	HasMore bool          `json:"has_more"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.tasks.Create(r.Context(), task.CreateInput{
		DatabaseID: req.NotionDatabaseID,
		Title:      req.Title,
		AssigneeID: req.AssigneeID,
		DueDate:    req.DueDate,
		Priority:   req.Priority,
		Properties: req.Properties,
		TokenID:    r.URL.Query().Get("token_id"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createTaskResponse{
		NotionTaskID:  created.NotionID,
		NotionTaskURL: created.URL,
		CreatedAt:     created.CreatedTime,
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	in, err := parseListTasksQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := s.tasks.List(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]taskSummary, 0, len(page.Tasks))
	for i := range page.Tasks {
		items = append(items, summarizeTask(&page.Tasks[i]))
	}
	writeJSON(w, http.StatusOK, listTasksResponse{
		Data:    items,
		Page:    page.Page,
		Limit:   page.Limit,
		Total:   len(items),
		HasMore: page.HasMore,
	})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.tasks.Update(r.Context(), r.PathValue("id"), task.UpdateInput{
		Status:     req.Status,
		Priority:   req.Priority,
		AssigneeID: req.AssigneeID,
		DueDate:    req.DueDate,
		Properties: req.Properties,
		TokenID:    r.URL.Query().Get("token_id"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updateTaskResponse{
		NotionTaskID:  updated.NotionID,
		NotionTaskURL: updated.URL,
		UpdatedAt:     updated.LastEditedTime,
		Status:        updated.Status,
		Priority:      updated.Priority,
		DueDate:       updated.DueDate,
	})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	err := s.tasks.Delete(r.Context(), r.PathValue("id"), r.URL.Query().Get("token_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseListTasksQuery(r *http.Request) (task.ListInput, error) {
	q := r.URL.Query()
	var in task.ListInput

	in.DatabaseID = strings.TrimSpace(q.Get("notion_database_id"))
	if in.DatabaseID == "" {
		return in, &errs.ValidationError{Message: "notion_database_id is required", Field: "notion_database_id"}
	}
	if !databaseIDPlain.MatchString(in.DatabaseID) && !databaseIDDashed.MatchString(in.DatabaseID) {
		return in, &errs.ValidationError{
			Message: "Invalid notion_database_id format (must be UUID with or without dashes)",
			Field:   "notion_database_id",
		}
	}

	in.Status = strings.TrimSpace(q.Get("status"))
	in.Assignee = strings.TrimSpace(q.Get("assignee"))
	in.ProjectID = strings.TrimSpace(q.Get("project_id"))

	if raw := strings.TrimSpace(q.Get("priority")); raw != "" {
		normalized, ok := normalizePriority(raw)
		if !ok {
			return in, &errs.ValidationError{Message: "Priority must be Low, Medium, or High", Field: "priority"}
		}
		in.Priority = normalized
	}

	var err error
	if in.DueDateFrom, err = queryTime(q, "due_date_from"); err != nil {
		return in, err
	}
	if in.DueDateTo, err = queryTime(q, "due_date_to"); err != nil {
		return in, err
	}
	if in.DueDateFrom != nil && in.DueDateTo != nil && in.DueDateTo.Before(*in.DueDateFrom) {
		return in, &errs.ValidationError{
			Message: "due_date_to must be greater than or equal to due_date_from",
			Field:   "due_date_to",
		}
	}

	if in.Page, err = queryInt(q, "page", 1); err != nil {
		return in, err
	}
	if in.Page < 1 {
		return in, &errs.ValidationError{Message: "page must be at least 1", Field: "page"}
	}
	if in.Limit, err = queryInt(q, "limit", 20); err != nil {
		return in, err
	}
	if in.Limit < 1 || in.Limit > 100 {
		return in, &errs.ValidationError{Message: "limit must be between 1 and 100", Field: "limit"}
	}

	sortBy := strings.ToLower(q.Get("sort_by"))
	if sortBy == "" {
		sortBy = "created_time"
	}
	if !sortFields[sortBy] {
		return in, &errs.ValidationError{
			Message: "sort_by must be one of: created_time, due_date, last_edited_time, priority",
			Field:   "sort_by",
		}
	}
	in.SortBy = domain.SortField(sortBy)

	order := strings.ToLower(q.Get("order"))
	if order == "" {
		order = "asc"
	}
	if order != "asc" && order != "desc" {
		return in, &errs.ValidationError{Message: "order must be 'asc' or 'desc'", Field: "order"}
	}
	in.Order = domain.SortOrder(order)

	in.TokenID = q.Get("token_id")
	return in, nil
}

func summarizeTask(t *domain.Task) taskSummary {
	assignees := t.Assignees
	if assignees == nil {
		assignees = []string{}
	}
	return taskSummary{
		NotionTaskID:   t.NotionID,
		Title:          t.Title,
		Status:         t.Status,
		Priority:       t.Priority,
		DueDate:        t.DueDate,
		Assignees:      assignees,
		CreatedTime:    t.CreatedTime,
		LastEditedTime: t.LastEditedTime,
		URL:            t.URL,
	}
}

func isPriority(value string) bool {
	return value == string(domain.PriorityLow) ||
		value == string(domain.PriorityMedium) ||
		value == string(domain.PriorityHigh)
}

// normalizePriority folds case ("HIGH" becomes "High") before checking the
// allowed values.
func normalizePriority(value string) (string, bool) {
	normalized := fmt.Sprintf("%s%s", strings.ToUpper(value[:1]), strings.ToLower(value[1:]))
	if !isPriority(normalized) {
		return "", false
	}
	return normalized, true
}
