package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tasklink/notionbridge/internal/core/domain"
	"github.com/tasklink/notionbridge/internal/infra/storage"
)

// MemoryStorage backs the repositories with process-local maps. Used for
// tests and for running without a MongoDB instance.
type MemoryStorage struct {
	workspaces map[string]*domain.Workspace
	mappings   map[string]*domain.UserMapping
	tokens     map[string]*domain.Token
	mu         sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		workspaces: make(map[string]*domain.Workspace),
		mappings:   make(map[string]*domain.UserMapping),
		tokens:     make(map[string]*domain.Token),
	}
}

// Ping reports the in-process store as always reachable.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func newID() string {
	return uuid.NewString()
}

// -----------------------------------------------------------------------------
// Workspace Repository
// -----------------------------------------------------------------------------

type WorkspaceRepo struct {
	store *MemoryStorage
}

func NewWorkspaceRepo(store *MemoryStorage) *WorkspaceRepo {
	return &WorkspaceRepo{store: store}
}

func (r *WorkspaceRepo) Create(ctx context.Context, workspace *domain.Workspace) (*domain.Workspace, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, w := range r.store.workspaces {
		if w.Platform == workspace.Platform && w.PlatformID == workspace.PlatformID {
			return nil, storage.ErrDuplicate
		}
	}

	now := time.Now().UTC()
	stored := cloneWorkspace(workspace)
	stored.ID = newID()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if stored.PropertyMappings == nil {
		stored.PropertyMappings = domain.DefaultWorkspaceMappings()
	}
	r.store.workspaces[stored.ID] = stored
	return cloneWorkspace(stored), nil
}

func (r *WorkspaceRepo) GetByID(ctx context.Context, id string) (*domain.Workspace, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	w, ok := r.store.workspaces[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneWorkspace(w), nil
}

func (r *WorkspaceRepo) FindByPlatform(ctx context.Context, platform domain.Platform, platformID string) (*domain.Workspace, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, w := range r.store.workspaces {
		if w.Platform == platform && w.PlatformID == platformID {
			return cloneWorkspace(w), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *WorkspaceRepo) List(ctx context.Context, platform domain.Platform) ([]*domain.Workspace, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var workspaces []*domain.Workspace
	for _, w := range r.store.workspaces {
		if platform != "" && w.Platform != platform {
			continue
		}
		workspaces = append(workspaces, cloneWorkspace(w))
	}
	sortNewestFirst(workspaces, func(w *domain.Workspace) (time.Time, string) { return w.CreatedAt, w.ID })
	return workspaces, nil
}

func (r *WorkspaceRepo) Update(ctx context.Context, id string, update storage.WorkspaceUpdate) (*domain.Workspace, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	w, ok := r.store.workspaces[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if update.NotionDatabaseID != nil {
		w.NotionDatabaseID = *update.NotionDatabaseID
	}
	if update.Name != nil {
		w.Name = *update.Name
	}
	if update.PropertyMappings != nil {
		w.PropertyMappings = cloneMappings(update.PropertyMappings)
	}
	if update.NotionDatabaseID != nil || update.Name != nil || update.PropertyMappings != nil {
		w.UpdatedAt = time.Now().UTC()
	}
	return cloneWorkspace(w), nil
}

func (r *WorkspaceRepo) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.workspaces[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.store.workspaces, id)
	return nil
}

// -----------------------------------------------------------------------------
// User Mapping Repository
// -----------------------------------------------------------------------------

type UserMappingRepo struct {
	store *MemoryStorage
}

func NewUserMappingRepo(store *MemoryStorage) *UserMappingRepo {
	return &UserMappingRepo{store: store}
}

func (r *UserMappingRepo) Create(ctx context.Context, mapping *domain.UserMapping) (*domain.UserMapping, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, m := range r.store.mappings {
		if m.Platform == mapping.Platform && m.PlatformUserID == mapping.PlatformUserID {
			return nil, storage.ErrDuplicate
		}
	}

	now := time.Now().UTC()
	stored := *mapping
	stored.ID = newID()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.store.mappings[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (r *UserMappingRepo) GetByID(ctx context.Context, id string) (*domain.UserMapping, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	m, ok := r.store.mappings[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *m
	return &out, nil
}

func (r *UserMappingRepo) FindByPlatformUser(ctx context.Context, platform domain.Platform, platformUserID string) (*domain.UserMapping, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, m := range r.store.mappings {
		if m.Platform == platform && m.PlatformUserID == platformUserID {
			out := *m
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *UserMappingRepo) List(ctx context.Context, filter storage.UserMappingFilter, skip, limit int) ([]*domain.UserMapping, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matched []*domain.UserMapping
	for _, m := range r.store.mappings {
		if filter.Platform != "" && m.Platform != filter.Platform {
			continue
		}
		if filter.PlatformUserID != "" && m.PlatformUserID != filter.PlatformUserID {
			continue
		}
		out := *m
		matched = append(matched, &out)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	if skip >= len(matched) {
		return nil, total, nil
	}
	matched = matched[skip:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (r *UserMappingRepo) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.mappings[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.store.mappings, id)
	return nil
}

// -----------------------------------------------------------------------------
// Token Repository
// -----------------------------------------------------------------------------

type TokenRepo struct {
	store *MemoryStorage
}

func NewTokenRepo(store *MemoryStorage) *TokenRepo {
	return &TokenRepo{store: store}
}

func (r *TokenRepo) Create(ctx context.Context, token *domain.Token) (*domain.Token, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now().UTC()
	stored := *token
	stored.ID = newID()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.store.tokens[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (r *TokenRepo) GetByID(ctx context.Context, id string) (*domain.Token, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	t, ok := r.store.tokens[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *t
	return &out, nil
}

func (r *TokenRepo) List(ctx context.Context, activeOnly bool) ([]*domain.Token, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var tokens []*domain.Token
	for _, t := range r.store.tokens {
		if activeOnly && !t.IsActive {
			continue
		}
		out := *t
		tokens = append(tokens, &out)
	}
	sortNewestFirst(tokens, func(t *domain.Token) (time.Time, string) { return t.CreatedAt, t.ID })
	return tokens, nil
}

func (r *TokenRepo) Update(ctx context.Context, id string, update storage.TokenUpdate) (*domain.Token, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.tokens[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if update.Name != nil {
		t.Name = *update.Name
	}
	if update.Description != nil {
		t.Description = *update.Description
	}
	if update.IsActive != nil {
		t.IsActive = *update.IsActive
	}
	t.UpdatedAt = time.Now().UTC()

	out := *t
	return &out, nil
}

func (r *TokenRepo) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.tokens[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.store.tokens, id)
	return nil
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

func cloneWorkspace(w *domain.Workspace) *domain.Workspace {
	out := *w
	out.PropertyMappings = cloneMappings(w.PropertyMappings)
	return &out
}

func cloneMappings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortNewestFirst[T any](items []*T, key func(*T) (time.Time, string)) {
	sort.Slice(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return idi > idj
	})
}
