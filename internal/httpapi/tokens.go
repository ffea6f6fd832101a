package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tasklink/notionbridge/internal/core/domain"
	"github.com/tasklink/notionbridge/internal/core/errs"
	"github.com/tasklink/notionbridge/internal/core/token"
)

type createTokenRequest struct {
	Name        string `json:"name"`
	Token       string `json:"token"`
	Description string `json:"description"`
}

func (req *createTokenRequest) validate() error {
	req.Name = strings.TrimSpace(req.Name)
	if n := utf8.RuneCountInString(req.Name); n < 1 || n > 100 {
		return &errs.ValidationError{Message: "Name must be between 1 and 100 characters", Field: "name"}
	}
	if !strings.HasPrefix(req.Token, "secret_") {
		return &errs.ValidationError{Message: `Token must start with "secret_"`, Field: "token"}
	}
	return nil
}

type updateTokenRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

func (req *updateTokenRequest) validate() error {
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if n := utf8.RuneCountInString(trimmed); n < 1 || n > 100 {
			return &errs.ValidationError{Message: "Name must be between 1 and 100 characters", Field: "name"}
		}
		req.Name = &trimmed
	}
	return nil
}

// tokenResponse carries the masked preview only. The stored secret never
// leaves the service.
type tokenResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	TokenPreview string    `json:"token_preview"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	IsActive     bool      `json:"is_active"`
}

type listTokensResponse struct {
	Tokens []tokenResponse `json:"tokens"`
	Total  int             `json:"total"`
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.tokens.Create(r.Context(), token.CreateInput{
		Name:        req.Name,
		Value:       req.Token,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenView(created))
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	activeOnly := true
	if raw := r.URL.Query().Get("active_only"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, &errs.ValidationError{Message: "active_only must be a boolean", Field: "active_only"})
			return
		}
		activeOnly = parsed
	}

	list, err := s.tokens.List(r.Context(), activeOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]tokenResponse, 0, len(list))
	for _, t := range list {
		views = append(views, tokenView(t))
	}
	writeJSON(w, http.StatusOK, listTokensResponse{Tokens: views, Total: len(views)})
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	t, err := s.tokens.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenView(t))
}

func (s *Server) handleUpdateToken(w http.ResponseWriter, r *http.Request) {
	var req updateTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := s.tokens.Update(r.Context(), r.PathValue("id"), token.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenView(t))
}

func (s *Server) handleDeleteToken(w http.ResponseWriter, r *http.Request) {
	if err := s.tokens.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func tokenView(t *domain.Token) tokenResponse {
	return tokenResponse{
		ID:           t.ID,
		Name:         t.Name,
		TokenPreview: t.Preview(),
		Description:  t.Description,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		IsActive:     t.IsActive,
	}
}
