package agents

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/JaimeStill/vertex-agent/internal/reconcile"
	"github.com/JaimeStill/vertex-agent/pkg/query"
	"github.com/JaimeStill/vertex-agent/pkg/repository"
)

var projection = query.NewProjectionMap("public", "agents", "a").
	Project("id", "Id").
	Project("display_name", "DisplayName").
	Project("description", "Description").
	Project("framework", "Framework").
	Project("status", "Status").
	Project("project_id", "ProjectId").
	Project("region", "Region").
	Project("config", "Config").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

const returning = `id, display_name, description, framework, status, project_id, region, config, created_at, updated_at`

var defaultSort = query.SortField{Field: "UpdatedAt", Descending: true}

// scanAgent restores the stored config. The id and status columns are
// authoritative over the copies inside the config document.
func scanAgent(s repository.Scanner) (Agent, error) {
	var (
		a      Agent
		cfg    reconcile.AgentConfig
		raw    []byte
		status string
	)
	err := s.Scan(
		&cfg.ID,
		&cfg.DisplayName,
		&cfg.Description,
		&cfg.Framework,
		&status,
		&a.ProjectID,
		&a.Region,
		&raw,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return a, err
	}

	id := cfg.ID
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return a, err
		}
	}
	cfg.ID = id
	cfg.Status = reconcile.Status(status)

	a.Config = &cfg
	return a, nil
}

// Filters contains optional criteria for agent lists. Without a status
// filter, DELETED agents are left out.
type Filters struct {
	Status    *string
	Framework *string
	ProjectID *string
	Region    *string
}

// FiltersFromQuery reads status, framework, project_id/projectId and region.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := strings.ToUpper(values.Get("status")); s != "" {
		f.Status = &s
	}

	if fw := strings.ToUpper(values.Get("framework")); fw != "" {
		f.Framework = &fw
	}

	if p := reconcile.ParamsFromQuery(values).EffectiveProject(); p != "" {
		f.ProjectID = &p
	}

	if r := values.Get("region"); r != "" {
		f.Region = &r
	}

	return f
}

// Apply adds filter conditions to the query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	if f.Status == nil {
		b.WhereNotEquals("Status", string(reconcile.StatusDeleted))
	}
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("Framework", f.Framework).
		WhereEquals("ProjectId", f.ProjectID).
		WhereEquals("Region", f.Region)
}
