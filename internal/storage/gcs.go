package storage

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/thusconnect/apiserver/config"
	"google.golang.org/api/option"
)

// GCSKV persists session state as objects in a Google Cloud Storage bucket.
type GCSKV struct {
	client    *storage.Client
	bucket    string
	projectID string
}

// NewGCSKV constructs a GCS-backed KV from config.
func NewGCSKV(ctx context.Context, cfg config.GCSConfig) (*GCSKV, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &GCSKV{
		client:    client,
		bucket:    cfg.Bucket,
		projectID: cfg.ProjectID,
	}, nil
}

// Ensure ensures the configured bucket exists.
func (g *GCSKV) Ensure(ctx context.Context) error {
	_, err := g.client.Bucket(g.bucket).Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return err
	}
	if strings.TrimSpace(g.projectID) == "" {
		return errors.New("gcs project id is required to create bucket")
	}
	return g.client.Bucket(g.bucket).Create(ctx, g.projectID, nil)
}

// Put stores a value under a key.
func (g *GCSKV) Put(ctx context.Context, key string, value []byte) error {
	writer := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if _, err := writer.Write(value); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

// Get reads the value stored under a key.
func (g *GCSKV) Get(ctx context.Context, key string) ([]byte, error) {
	reader, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	return readAllAndClose(reader)
}

// Delete removes a key.
func (g *GCSKV) Delete(ctx context.Context, key string) error {
	err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

// Bucket returns the configured bucket name.
func (g *GCSKV) Bucket() string {
	return g.bucket
}
