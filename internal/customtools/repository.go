package customtools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/JaimeStill/vertex-agent/pkg/pagination"
	"github.com/JaimeStill/vertex-agent/pkg/query"
	"github.com/JaimeStill/vertex-agent/pkg/repository"
	"github.com/google/uuid"
)

// Store persists validated tools.
type Store interface {
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[CustomTool], error)
	Find(ctx context.Context, id uuid.UUID) (*CustomTool, error)
	Insert(ctx context.Context, tool CustomTool) (*CustomTool, error)
}

type repo struct {
	db         *sql.DB
	pagination pagination.Config
}

// NewStore creates a PostgreSQL-backed tool store.
func NewStore(db *sql.DB, pagination pagination.Config) Store {
	return &repo{db: db, pagination: pagination}
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[CustomTool], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "Description")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count custom tools: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	tools, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanTool)
	if err != nil {
		return nil, fmt.Errorf("query custom tools: %w", err)
	}

	result := pagination.NewPageResult(tools, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*CustomTool, error) {
	q, args := query.
		NewBuilder(projection).
		BuildSingle("Id", id)

	tool, err := repository.QueryOne(ctx, r.db, q, args, scanTool)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &tool, nil
}

func (r *repo) Insert(ctx context.Context, tool CustomTool) (*CustomTool, error) {
	params, err := json.Marshal(tool.Parameters)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}

	q := `INSERT INTO custom_tools(id, name, description, code, function_name, parameters, owner_id)
		VALUES($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, name, description, code, function_name, parameters, owner_id, created_at`

	created, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (CustomTool, error) {
		return repository.QueryOne(ctx, tx, q, []any{
			tool.ID, tool.Name, tool.Description, tool.Code, tool.Function, params, tool.OwnerID,
		}, scanTool)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &created, nil
}
