package notion

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tasklink/notionbridge/internal/infra/retry"
)

const (
	// defaultTitleField is used when a schema reports no title-type field.
	defaultTitleField = "Name"

	// schemaSampleSize bounds how many pages are fetched to infer a schema.
	schemaSampleSize = 5
)

// FieldInfo is the id and type of one schema field.
type FieldInfo struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// entry is the cached resolution state for one database.
type entry struct {
	dataSourceID   string
	dataSourceName string
	databaseTitle  string
	schema         map[string]FieldInfo
	schemaKnown    bool
}

// Resolver translates database IDs into queryable data source IDs and keeps
// a best-effort field schema per database. Entries are created lazily and
// live for the process lifetime; there is no TTL or invalidation path.
// Resolution failures degrade to the raw database ID so the eventual item
// query fails with the upstream error instead of hiding it. Concurrent first
// resolutions of the same database collapse into a single upstream fetch.
type Resolver struct {
	api  API
	exec *retry.Executor

	mu    sync.RWMutex
	cache map[string]*entry
	group singleflight.Group
}

// NewResolver creates a Resolver. Upstream fetches run through exec.
func NewResolver(api API, exec *retry.Executor) *Resolver {
	return &Resolver{
		api:   api,
		exec:  exec,
		cache: make(map[string]*entry),
	}
}

// Resolve returns the data source ID to use for item operations against the
// given database. The first data source is selected as primary. A database
// reporting no data sources resolves to its own ID (degraded mode), as does
// any upstream fetch failure; neither is an error for the caller.
func (r *Resolver) Resolve(ctx context.Context, databaseID string) string {
	if e, ok := r.lookup(databaseID); ok {
		return e.dataSourceID
	}

	v, err, _ := r.group.Do("resolve:"+databaseID, func() (any, error) {
		if e, ok := r.lookup(databaseID); ok {
			return e.dataSourceID, nil
		}

		db, err := retry.Do(ctx, r.exec, "databases.retrieve", func(ctx context.Context) (*Database, error) {
			return r.api.RetrieveDatabase(ctx, databaseID)
		})
		if err != nil {
			return "", err
		}

		e := &entry{
			dataSourceID:  databaseID,
			databaseTitle: titleText(db.Title),
		}
		if len(db.DataSources) > 0 {
			primary := db.DataSources[0]
			e.dataSourceID = primary.ID
			e.dataSourceName = primary.Name
			if e.dataSourceName == "" {
				e.dataSourceName = "Untitled"
			}
			slog.Info("resolved database to data source",
				"database_id", databaseID,
				"data_source_id", primary.ID,
				"data_source_name", e.dataSourceName,
			)
		} else {
			slog.Warn("database reports no data sources, falling back to database ID",
				"database_id", databaseID,
			)
		}

		r.store(databaseID, e)
		return e.dataSourceID, nil
	})
	if err != nil {
		slog.Error("failed to resolve database, using raw ID",
			"database_id", databaseID,
			"error", err,
		)
		return databaseID
	}
	return v.(string)
}

// Schema returns the field schema for a database: the database-level
// properties when present, otherwise a schema inferred from the first of up
// to five sampled pages. A database with no properties and no pages yields
// an empty map, as does an upstream fetch failure. Callers must treat an
// empty schema as "unknown" and fall back to default field names.
func (r *Resolver) Schema(ctx context.Context, databaseID string) map[string]FieldInfo {
	if e, ok := r.lookup(databaseID); ok && e.schemaKnown {
		return cloneSchema(e.schema)
	}

	sourceID := r.Resolve(ctx, databaseID)

	v, err, _ := r.group.Do("schema:"+databaseID, func() (any, error) {
		if e, ok := r.lookup(databaseID); ok && e.schemaKnown {
			return cloneSchema(e.schema), nil
		}

		db, err := retry.Do(ctx, r.exec, "databases.retrieve", func(ctx context.Context) (*Database, error) {
			return r.api.RetrieveDatabase(ctx, databaseID)
		})
		if err != nil {
			return nil, err
		}

		schema := schemaFromProperties(db.Properties)
		if len(schema) == 0 {
			slog.Info("database reports no properties, inferring from pages",
				"database_id", databaseID,
			)
			schema = r.inferSchema(ctx, sourceID)
		}

		r.storeSchema(databaseID, schema)
		return cloneSchema(schema), nil
	})
	if err != nil {
		slog.Error("failed to get database schema",
			"database_id", databaseID,
			"error", err,
		)
		return map[string]FieldInfo{}
	}
	return v.(map[string]FieldInfo)
}

// TitleFieldName returns the name of the schema field typed as the primary
// display field, or "Name" when the schema reports none.
func (r *Resolver) TitleFieldName(ctx context.Context, databaseID string) string {
	for name, info := range r.Schema(ctx, databaseID) {
		if info.Type == "title" {
			return name
		}
	}
	slog.Warn("no title field found in schema, using default",
		"database_id", databaseID,
		"default", defaultTitleField,
	)
	return defaultTitleField
}

// ClearCache drops all cached entries. Test isolation only.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*entry)
}

// inferSchema samples pages from a data source and derives the schema from
// the first page's properties. Failures and empty samples yield an empty
// map; the result is cached either way.
func (r *Resolver) inferSchema(ctx context.Context, dataSourceID string) map[string]FieldInfo {
	result, err := retry.Do(ctx, r.exec, "data_sources.query", func(ctx context.Context) (*QueryResult, error) {
		return r.api.QueryDataSource(ctx, dataSourceID, &Query{PageSize: schemaSampleSize})
	})
	if err != nil {
		slog.Error("failed to sample pages for schema inference",
			"data_source_id", dataSourceID,
			"error", err,
		)
		return map[string]FieldInfo{}
	}
	if len(result.Results) == 0 {
		slog.Warn("no pages available to infer schema", "data_source_id", dataSourceID)
		return map[string]FieldInfo{}
	}

	props := result.Results[0].Properties
	if len(props) == 0 {
		slog.Warn("first sampled page has no properties", "data_source_id", dataSourceID)
		return map[string]FieldInfo{}
	}

	schema := make(map[string]FieldInfo, len(props))
	for name, value := range props {
		schema[name] = FieldInfo{ID: value.ID, Type: value.Type}
	}
	slog.Info("inferred schema from sampled pages",
		"data_source_id", dataSourceID,
		"fields", len(schema),
	)
	return schema
}

func (r *Resolver) lookup(databaseID string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.cache[databaseID]
	return e, ok
}

func (r *Resolver) store(databaseID string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[databaseID] = e
}

func (r *Resolver) storeSchema(databaseID string, schema map[string]FieldInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.cache[databaseID]
	if !ok {
		// Resolution degraded earlier; keep the raw ID alongside the schema.
		e = &entry{dataSourceID: databaseID}
		r.cache[databaseID] = e
	}
	e.schema = schema
	e.schemaKnown = true
}

func schemaFromProperties(props map[string]Property) map[string]FieldInfo {
	schema := make(map[string]FieldInfo, len(props))
	for name, prop := range props {
		schema[name] = FieldInfo{ID: prop.ID, Type: prop.Type}
	}
	return schema
}

func cloneSchema(schema map[string]FieldInfo) map[string]FieldInfo {
	out := make(map[string]FieldInfo, len(schema))
	for name, info := range schema {
		out[name] = info
	}
	return out
}

func titleText(title []RichText) string {
	if len(title) > 0 {
		if title[0].PlainText != "" {
			return title[0].PlainText
		}
		if title[0].Text != nil && title[0].Text.Content != "" {
			return title[0].Text.Content
		}
	}
	return "Untitled"
}
