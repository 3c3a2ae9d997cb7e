package agents

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/JaimeStill/vertex-agent/internal/reconcile"
	"github.com/JaimeStill/vertex-agent/pkg/pagination"
	"github.com/JaimeStill/vertex-agent/pkg/query"
	"github.com/JaimeStill/vertex-agent/pkg/repository"
	"github.com/google/uuid"
)

// Store persists agents. The reconciled config is kept as one JSON document
// alongside the columns lists filter on.
type Store interface {
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Agent], error)
	Find(ctx context.Context, id uuid.UUID) (*Agent, error)
	Create(ctx context.Context, agent Agent) (*Agent, error)
	// Update replaces the stored config and placement. Status is untouched.
	Update(ctx context.Context, agent Agent) (*Agent, error)
	SetStatus(ctx context.Context, id uuid.UUID, status reconcile.Status) error
	// MarkDeleted soft-deletes the agent. Deleting twice is not an error.
	MarkDeleted(ctx context.Context, id uuid.UUID) error
}

type repo struct {
	db         *sql.DB
	pagination pagination.Config
}

// NewStore creates a PostgreSQL-backed agent store.
func NewStore(db *sql.DB, pagination pagination.Config) Store {
	return &repo{db: db, pagination: pagination}
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Agent], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "DisplayName", "Description")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count agents: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	agents, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanAgent)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}

	result := pagination.NewPageResult(agents, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Agent, error) {
	q, args := query.
		NewBuilder(projection).
		BuildSingle("Id", id)

	a, err := repository.QueryOne(ctx, r.db, q, args, scanAgent)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &a, nil
}

func (r *repo) Create(ctx context.Context, agent Agent) (*Agent, error) {
	cfg := agent.Config
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	q := `INSERT INTO agents(id, display_name, description, framework, status, project_id, region, config)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + returning

	created, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Agent, error) {
		return repository.QueryOne(ctx, tx, q, []any{
			cfg.ID, cfg.DisplayName, cfg.Description, cfg.Framework, cfg.Status,
			agent.ProjectID, agent.Region, raw,
		}, scanAgent)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &created, nil
}

func (r *repo) Update(ctx context.Context, agent Agent) (*Agent, error) {
	cfg := agent.Config
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	q := `UPDATE agents
		SET display_name = $2, description = $3, framework = $4, project_id = $5, region = $6,
			config = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + returning

	updated, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Agent, error) {
		return repository.QueryOne(ctx, tx, q, []any{
			cfg.ID, cfg.DisplayName, cfg.Description, cfg.Framework,
			agent.ProjectID, agent.Region, raw,
		}, scanAgent)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &updated, nil
}

func (r *repo) SetStatus(ctx context.Context, id uuid.UUID, status reconcile.Status) error {
	q := `UPDATE agents SET status = $2, updated_at = NOW() WHERE id = $1`
	if err := repository.ExecExpectOne(ctx, r.db, q, id, status); err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return nil
}

func (r *repo) MarkDeleted(ctx context.Context, id uuid.UUID) error {
	return r.SetStatus(ctx, id, reconcile.StatusDeleted)
}
