package testruns

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/JaimeStill/vertex-agent/pkg/query"
	"github.com/JaimeStill/vertex-agent/pkg/repository"
	"github.com/google/uuid"
)

// Store persists test records.
type Store interface {
	Record(ctx context.Context, rec TestRecord) (*TestRecord, error)
	// List returns at most limit records for the agent, newest first.
	List(ctx context.Context, agentID uuid.UUID, limit int) ([]TestRecord, error)
}

var projection = query.NewProjectionMap("public", "agent_tests", "r").
	Project("id", "Id").
	Project("agent_id", "AgentId").
	Project("query", "Query").
	Project("response", "Response").
	Project("metrics", "Metrics").
	Project("success", "Success").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{Field: "CreatedAt", Descending: true}

type repo struct {
	db *sql.DB
}

// NewStore creates a PostgreSQL-backed test record store.
func NewStore(db *sql.DB) Store {
	return &repo{db: db}
}

func (r *repo) Record(ctx context.Context, rec TestRecord) (*TestRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Metrics == nil {
		rec.Metrics = map[string]any{}
	}

	metrics, err := json.Marshal(rec.Metrics)
	if err != nil {
		return nil, fmt.Errorf("encode metrics: %w", err)
	}

	q := `INSERT INTO agent_tests(id, agent_id, query, response, metrics, success)
		VALUES($1, $2, $3, $4, $5, $6)
		RETURNING id, agent_id, query, response, metrics, success, created_at`

	created, err := repository.QueryOne(ctx, r.db, q, []any{
		rec.ID, rec.AgentID, rec.Query, rec.Response, metrics, rec.Success,
	}, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("insert test record: %w", err)
	}
	return &created, nil
}

func (r *repo) List(ctx context.Context, agentID uuid.UUID, limit int) ([]TestRecord, error) {
	q, args := query.NewBuilder(projection, defaultSort).
		WhereEquals("AgentId", agentID).
		BuildLimit(ClampLimit(limit))

	records, err := repository.QueryMany(ctx, r.db, q, args, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("query test records: %w", err)
	}
	return records, nil
}

func scanRecord(s repository.Scanner) (TestRecord, error) {
	var (
		rec     TestRecord
		metrics []byte
	)
	err := s.Scan(
		&rec.ID,
		&rec.AgentID,
		&rec.Query,
		&rec.Response,
		&metrics,
		&rec.Success,
		&rec.CreatedAt,
	)
	if err != nil {
		return rec, err
	}

	rec.Metrics = map[string]any{}
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &rec.Metrics); err != nil {
			return rec, err
		}
	}
	return rec, nil
}
