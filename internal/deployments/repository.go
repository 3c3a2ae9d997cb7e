package deployments

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JaimeStill/vertex-agent/pkg/query"
	"github.com/JaimeStill/vertex-agent/pkg/repository"
	"github.com/google/uuid"
)

// Store persists deployment records.
type Store interface {
	// Create inserts d as PENDING with the agent's next version number.
	Create(ctx context.Context, d Deployment) (*Deployment, error)
	Find(ctx context.Context, id uuid.UUID) (*Deployment, error)
	// FindActive returns the newest ACTIVE deployment matching key.
	FindActive(ctx context.Context, key Key) (*Deployment, error)
	ListByAgent(ctx context.Context, agentID uuid.UUID) ([]Deployment, error)
	ListActive(ctx context.Context, agentID uuid.UUID) ([]Deployment, error)
	// Activate marks a PENDING deployment ACTIVE with its remote identity.
	Activate(ctx context.Context, id uuid.UUID, resourceName string, endpointURL *string) (*Deployment, error)
	// SetStatus moves a deployment to status, recording detail when it is FAILED.
	SetStatus(ctx context.Context, id uuid.UUID, status Status, detail *string) error
}

type repo struct {
	db *sql.DB
}

// NewStore creates a PostgreSQL-backed deployment store.
func NewStore(db *sql.DB) Store {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, d Deployment) (*Deployment, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	q := `INSERT INTO deployments(id, agent_id, deployment_type, version, project_id, region, resource_name, status)
		SELECT $1, $2, $3, COALESCE(MAX(version), 0) + 1, $4, $5, $6, $7
		FROM deployments WHERE agent_id = $2
		RETURNING ` + returning

	created, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Deployment, error) {
		return repository.QueryOne(ctx, tx, q, []any{
			d.ID, d.AgentID, d.Type, d.ProjectID, d.Region, d.ResourceName, StatusPending,
		}, scanDeployment)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &created, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Deployment, error) {
	q, args := query.NewBuilder(projection).BuildSingle("Id", id)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDeployment)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) FindActive(ctx context.Context, key Key) (*Deployment, error) {
	qb := query.NewBuilder(projection, defaultSort).
		WhereEquals("AgentId", key.AgentID).
		WhereEquals("ProjectId", key.ProjectID).
		WhereEquals("Region", key.Region).
		WhereEquals("Status", string(StatusActive))

	if key.Type != "" {
		qb.WhereEquals("Type", string(key.Type))
	}

	q, args := qb.BuildLimit(1)
	d, err := repository.QueryOne(ctx, r.db, q, args, scanDeployment)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]Deployment, error) {
	q, args := query.NewBuilder(projection, defaultSort).
		WhereEquals("AgentId", agentID).
		Build()

	items, err := repository.QueryMany(ctx, r.db, q, args, scanDeployment)
	if err != nil {
		return nil, fmt.Errorf("query deployments: %w", err)
	}
	return items, nil
}

func (r *repo) ListActive(ctx context.Context, agentID uuid.UUID) ([]Deployment, error) {
	q, args := query.NewBuilder(projection, defaultSort).
		WhereEquals("AgentId", agentID).
		WhereEquals("Status", string(StatusActive)).
		Build()

	items, err := repository.QueryMany(ctx, r.db, q, args, scanDeployment)
	if err != nil {
		return nil, fmt.Errorf("query active deployments: %w", err)
	}
	return items, nil
}

func (r *repo) Activate(ctx context.Context, id uuid.UUID, resourceName string, endpointURL *string) (*Deployment, error) {
	q := `UPDATE deployments
		SET status = $2, resource_name = $3, endpoint_url = $4, error = NULL, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + returning

	d, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Deployment, error) {
		return repository.QueryOne(ctx, tx, q, []any{id, StatusActive, resourceName, endpointURL}, scanDeployment)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) SetStatus(ctx context.Context, id uuid.UUID, status Status, detail *string) error {
	q := `UPDATE deployments SET status = $2, error = $3, updated_at = NOW() WHERE id = $1`

	if err := repository.ExecExpectOne(ctx, r.db, q, id, status, detail); err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return nil
}
