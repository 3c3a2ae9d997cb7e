package files

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JaimeStill/vertex-agent/pkg/query"
	"github.com/JaimeStill/vertex-agent/pkg/repository"
	"github.com/google/uuid"
)

var projection = query.NewProjectionMap("public", "uploaded_files", "f").
	Project("id", "Id").
	Project("session_id", "SessionId").
	Project("filename", "Filename").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("storage_key", "StorageKey").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{Field: "CreatedAt"}

func scanFile(s repository.Scanner) (File, error) {
	var f File
	err := s.Scan(
		&f.ID,
		&f.SessionID,
		&f.Filename,
		&f.ContentType,
		&f.SizeBytes,
		&f.PageCount,
		&f.StorageKey,
		&f.CreatedAt,
	)
	return f, err
}

// Store persists upload metadata.
type Store interface {
	// Insert writes every row in one transaction.
	Insert(ctx context.Context, files []File) ([]File, error)
	Find(ctx context.Context, id uuid.UUID) (*File, error)
	ListBySession(ctx context.Context, session string) ([]File, error)
	DeleteSession(ctx context.Context, session string) (int, error)
}

type repo struct {
	db *sql.DB
}

// NewStore creates a PostgreSQL-backed metadata store.
func NewStore(db *sql.DB) Store {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, files []File) ([]File, error) {
	q := `INSERT INTO uploaded_files(id, session_id, filename, content_type, size_bytes, page_count, storage_key)
		VALUES($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, session_id, filename, content_type, size_bytes, page_count, storage_key, created_at`

	stored, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) ([]File, error) {
		out := make([]File, 0, len(files))
		for _, f := range files {
			row, err := repository.QueryOne(ctx, tx, q, []any{
				f.ID, f.SessionID, f.Filename, f.ContentType, f.SizeBytes, f.PageCount, f.StorageKey,
			}, scanFile)
			if err != nil {
				return nil, err
			}
			out = append(out, row)
		}
		return out, nil
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return stored, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*File, error) {
	q, args := query.
		NewBuilder(projection).
		BuildSingle("Id", id)

	f, err := repository.QueryOne(ctx, r.db, q, args, scanFile)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &f, nil
}

func (r *repo) ListBySession(ctx context.Context, session string) ([]File, error) {
	q, args := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("SessionId", &session).
		Build()

	files, err := repository.QueryMany(ctx, r.db, q, args, scanFile)
	if err != nil {
		return nil, fmt.Errorf("query session files: %w", err)
	}
	return files, nil
}

func (r *repo) DeleteSession(ctx context.Context, session string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM uploaded_files WHERE session_id = $1`, session)
	if err != nil {
		return 0, fmt.Errorf("delete session files: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete session files: %w", err)
	}
	return int(n), nil
}
