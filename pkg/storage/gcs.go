package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/JaimeStill/vertex-agent/pkg/lifecycle"
)

// bucket stores blobs as objects in a single Cloud Storage bucket.
type bucket struct {
	name   string
	ttl    time.Duration
	client *gcs.Client
	logger *slog.Logger
}

func newGCS(cfg *Config, logger *slog.Logger) (*bucket, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket required for gcs backend")
	}

	client, err := gcs.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &bucket{
		name:   cfg.Bucket,
		ttl:    cfg.SignedURLTTLDuration(),
		client: client,
		logger: logger.With("system", "storage", "backend", BackendGCS),
	}, nil
}

func (b *bucket) Start(lc *lifecycle.Coordinator) error {
	b.logger.Info("starting storage system", "bucket", b.name)

	lc.OnStartup(func() {
		if _, err := b.client.Bucket(b.name).Attrs(lc.Context()); err != nil {
			b.logger.Error("bucket check failed", "error", err)
			return
		}
		b.logger.Info("bucket reachable")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := b.client.Close(); err != nil {
			b.logger.Error("gcs client close failed", "error", err)
		}
	})

	return nil
}

func (b *bucket) Store(ctx context.Context, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}

	w := b.client.Bucket(b.name).Object(key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object writer: %w", err)
	}
	return nil
}

func (b *bucket) Retrieve(ctx context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}

	r, err := b.client.Bucket(b.name).Object(key).NewReader(ctx)
	if err != nil {
		return nil, mapGCSError(err, "open object")
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

func (b *bucket) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}

	err := b.client.Bucket(b.name).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return mapGCSError(err, "delete object")
	}
	return nil
}

func (b *bucket) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if err := validKey(prefix); err != nil {
		return 0, err
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	h := b.client.Bucket(b.name)
	it := h.Objects(ctx, &gcs.Query{Prefix: prefix})

	count := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("list objects: %w", err)
		}

		if err := h.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
			return count, mapGCSError(err, "delete object")
		}
		count++
	}

	return count, nil
}

func (b *bucket) Validate(ctx context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}

	_, err := b.client.Bucket(b.name).Object(key).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, mapGCSError(err, "object attrs")
	}
	return true, nil
}

// URL signs a V4 GET URL valid for the configured TTL.
func (b *bucket) URL(ctx context.Context, key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}

	url, err := b.client.Bucket(b.name).SignedURL(key, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(b.ttl),
	})
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}
	return url, nil
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

func mapGCSError(err error, op string) error {
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
