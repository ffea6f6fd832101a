package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/tasklink/notionbridge/internal/infra/notion"
)

const checkTimeout = 5 * time.Second

type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthReport struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks"`
}

// healthChecker probes the datastore and the Notion API, caching the result
// so health polling cannot hammer either. The datastore decides liveness;
// an unreachable Notion API only degrades the report.
type healthChecker struct {
	datastore Pinger
	notion    notion.API
	ttl       time.Duration

	mu      sync.Mutex
	checked time.Time
	report  healthReport
}

func newHealthChecker(datastore Pinger, api notion.API, ttl time.Duration) *healthChecker {
	return &healthChecker{datastore: datastore, notion: api, ttl: ttl}
}

func (c *healthChecker) check(ctx context.Context) healthReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.checked.IsZero() && time.Since(c.checked) < c.ttl {
		return c.report
	}

	checks := make(map[string]checkResult)

	databaseOK := true
	if c.datastore != nil {
		pingCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.datastore.Ping(pingCtx)
		cancel()
		if err != nil {
			databaseOK = false
			checks["database"] = checkResult{Status: "unhealthy", Error: err.Error()}
		} else {
			checks["database"] = checkResult{Status: "healthy"}
		}
	} else {
		checks["database"] = checkResult{Status: "healthy"}
	}

	notionOK := true
	if c.notion != nil {
		probeCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		_, err := c.notion.Me(probeCtx)
		cancel()
		if err != nil {
			notionOK = false
			checks["notion"] = checkResult{Status: "unhealthy", Error: err.Error()}
		} else {
			checks["notion"] = checkResult{Status: "healthy"}
		}
	}

	status := "healthy"
	if !notionOK {
		status = "degraded"
	}
	if !databaseOK {
		status = "unhealthy"
	}

	c.report = healthReport{Status: status, Checks: checks}
	c.checked = time.Now()
	return c.report
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.check(r.Context())
	status := http.StatusOK
	if report.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}
