package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/JaimeStill/vertex-agent/pkg/storage"
	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"
)

const storeConcurrency = 4

// Config controls how download URLs are issued.
type Config struct {
	// ContentPath is the public route prefix for files, used when the
	// storage backend cannot mint direct URLs. Example: "/api/files".
	ContentPath string

	// URLTTL is reported as the lifetime of signed URLs.
	URLTTL time.Duration
}

// System defines upload session operations.
type System interface {
	Upload(ctx context.Context, session string, uploads []Upload) (*Session, error)
	Session(ctx context.Context, session string) (*Session, error)
	DeleteSession(ctx context.Context, session string) (*DeleteResult, error)
	URL(ctx context.Context, id uuid.UUID) (*Link, error)
	Content(ctx context.Context, id uuid.UUID) (*File, []byte, error)
}

type system struct {
	store  Store
	blobs  storage.System
	cfg    Config
	logger *slog.Logger
}

// New creates the upload system over a metadata store and blob storage.
func New(store Store, blobs storage.System, cfg Config, logger *slog.Logger) System {
	return &system{
		store:  store,
		blobs:  blobs,
		cfg:    cfg,
		logger: logger.With("system", "files"),
	}
}

// Upload stores every file under session, generating a session id when
// none is given. Either all files are recorded or the blobs written by
// this call are removed.
func (s *system) Upload(ctx context.Context, session string, uploads []Upload) (*Session, error) {
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}

	fresh := session == ""
	if fresh {
		session = uuid.NewString()
	} else if !ValidSession(session) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSession, session)
	}

	records := make([]File, len(uploads))
	for i, u := range uploads {
		id := uuid.New()
		records[i] = File{
			ID:          id,
			SessionID:   session,
			Filename:    filepath.Base(u.Filename),
			ContentType: detectContentType(u.ContentType, u.Data),
			SizeBytes:   int64(len(u.Data)),
			StorageKey:  StorageKey(session, id, u.Filename),
		}
		if records[i].ContentType == "application/pdf" {
			records[i].PageCount = s.pageCount(u)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(storeConcurrency)
	for i := range records {
		g.Go(func() error {
			if err := s.blobs.Store(gctx, records[i].StorageKey, uploads[i].Data); err != nil {
				return fmt.Errorf("store %s: %w", records[i].Filename, err)
			}
			return nil
		})
	}

	err := g.Wait()
	var stored []File
	if err == nil {
		stored, err = s.store.Insert(ctx, records)
	}
	if err != nil {
		s.cleanup(ctx, session, fresh, records)
		return nil, err
	}

	result, err := s.session(ctx, session, stored)
	if err != nil {
		return nil, err
	}

	s.logger.Info("files uploaded", "session_id", session, "count", len(stored))
	return result, nil
}

func (s *system) Session(ctx context.Context, session string) (*Session, error) {
	if !ValidSession(session) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSession, session)
	}

	files, err := s.store.ListBySession(ctx, session)
	if err != nil {
		return nil, err
	}
	return s.session(ctx, session, files)
}

func (s *system) DeleteSession(ctx context.Context, session string) (*DeleteResult, error) {
	if !ValidSession(session) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSession, session)
	}

	files, err := s.store.ListBySession(ctx, session)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return &DeleteResult{Success: true, Message: "No files found for session"}, nil
	}

	removed, err := s.blobs.DeletePrefix(ctx, session+"/")
	if err != nil {
		return nil, fmt.Errorf("delete session blobs: %w", err)
	}

	if _, err := s.store.DeleteSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("session deleted", "session_id", session, "blobs", removed, "rows", len(files))
	return &DeleteResult{
		Success: true,
		Deleted: removed,
		Message: fmt.Sprintf("Deleted %d files from session", removed),
	}, nil
}

func (s *system) URL(ctx context.Context, id uuid.UUID) (*Link, error) {
	f, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	url, expires, err := s.url(ctx, *f)
	if err != nil {
		return nil, err
	}

	return &Link{FileID: f.ID, Filename: f.Filename, URL: url, ExpiresIn: expires}, nil
}

func (s *system) Content(ctx context.Context, id uuid.UUID) (*File, []byte, error) {
	f, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.blobs.Retrieve(ctx, f.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: blob %s missing", ErrNotFound, f.StorageKey)
		}
		return nil, nil, fmt.Errorf("retrieve %s: %w", f.StorageKey, err)
	}
	return f, data, nil
}

func (s *system) session(ctx context.Context, session string, files []File) (*Session, error) {
	result := &Session{SessionID: session, Files: make([]Entry, 0, len(files))}
	for _, f := range files {
		url, _, err := s.url(ctx, f)
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, Entry{File: f, URL: url})
	}
	return result, nil
}

// url asks the backend for a signed URL and falls back to the content
// route when the backend cannot sign.
func (s *system) url(ctx context.Context, f File) (string, string, error) {
	url, err := s.blobs.URL(ctx, f.StorageKey)
	switch {
	case err == nil:
		return url, units.HumanDuration(s.cfg.URLTTL), nil
	case errors.Is(err, storage.ErrURLUnsupported):
		return fmt.Sprintf("%s/%s/content", s.cfg.ContentPath, f.ID), "", nil
	default:
		return "", "", fmt.Errorf("issue url for %s: %w", f.ID, err)
	}
}

func (s *system) cleanup(ctx context.Context, session string, fresh bool, records []File) {
	ctx = context.WithoutCancel(ctx)

	if fresh {
		if _, err := s.blobs.DeletePrefix(ctx, session+"/"); err != nil {
			s.logger.Error("upload cleanup failed", "session_id", session, "error", err)
		}
		return
	}

	for _, f := range records {
		if err := s.blobs.Delete(ctx, f.StorageKey); err != nil {
			s.logger.Error("upload cleanup failed", "storage_key", f.StorageKey, "error", err)
		}
	}
}

func (s *system) pageCount(u Upload) *int {
	count, err := api.PageCount(bytes.NewReader(u.Data), model.NewDefaultConfiguration())
	if err != nil {
		s.logger.Warn("failed to extract pdf page count", "filename", u.Filename, "error", err)
		return nil
	}
	return &count
}

func detectContentType(header string, data []byte) string {
	if header != "" && header != "application/octet-stream" {
		return header
	}
	return http.DetectContentType(data)
}
