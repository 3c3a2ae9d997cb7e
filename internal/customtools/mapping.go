package customtools

import (
	"encoding/json"
	"net/url"

	"github.com/JaimeStill/vertex-agent/pkg/query"
	"github.com/JaimeStill/vertex-agent/pkg/repository"
)

var projection = query.NewProjectionMap("public", "custom_tools", "t").
	Project("id", "Id").
	Project("name", "Name").
	Project("description", "Description").
	Project("code", "Code").
	Project("function_name", "Function").
	Project("parameters", "Parameters").
	Project("owner_id", "OwnerId").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{Field: "CreatedAt", Descending: true}

func scanTool(s repository.Scanner) (CustomTool, error) {
	var (
		t      CustomTool
		params []byte
	)
	err := s.Scan(
		&t.ID,
		&t.Name,
		&t.Description,
		&t.Code,
		&t.Function,
		&params,
		&t.OwnerID,
		&t.CreatedAt,
	)
	if err != nil {
		return t, err
	}

	t.Parameters = []string{}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &t.Parameters); err != nil {
			return t, err
		}
	}
	return t, nil
}

// Filters contains optional criteria for filtering tool queries.
type Filters struct {
	Name    *string
	OwnerID *string
}

// FiltersFromQuery extracts tool filters from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if n := values.Get("name"); n != "" {
		f.Name = &n
	}

	if o := values.Get("owner_id"); o != "" {
		f.OwnerID = &o
	}

	return f
}

// Apply adds filter conditions to the query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereContains("Name", f.Name).
		WhereEquals("OwnerId", f.OwnerID)
}
