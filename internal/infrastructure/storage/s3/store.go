// Package s3 stores document content in any S3-compatible object store.
// Connection settings come from the STORAGE_TARGET integration endpoint and
// can change at runtime; the client is rebuilt whenever the endpoint row
// was updated since the last call.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/invoicestack/invoice-processor/internal/core/domain"
	"github.com/invoicestack/invoice-processor/internal/core/ports"
)

type Store struct {
	endpoints ports.EndpointRepository
	logger    *slog.Logger

	mu        sync.Mutex
	client    *minio.Client
	bucket    string
	configVer time.Time
}

func NewStore(endpoints ports.EndpointRepository, logger *slog.Logger) *Store {
	return &Store{endpoints: endpoints, logger: logger}
}

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	client, bucket, err := s.resolve(ctx)
	if err != nil {
		return "", err
	}

	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return "", domain.WrapError(domain.ErrUpstream, "put object", err)
	}
	return key, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	client, bucket, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}

	object, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "get object", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, domain.WrapError(domain.ErrNotFound, "get object", err)
		}
		return nil, domain.WrapError(domain.ErrUpstream, "read object", err)
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	client, bucket, err := s.resolve(ctx)
	if err != nil {
		return err
	}
	if err := client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return domain.WrapError(domain.ErrUpstream, "remove object", err)
	}
	return nil
}

// resolve returns a client for the current STORAGE_TARGET endpoint. The
// cached client is reused until the endpoint's updated_at moves.
func (s *Store) resolve(ctx context.Context) (*minio.Client, string, error) {
	endpoint, err := s.endpoints.GetByType(ctx, domain.EndpointStorageTarget)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, "", domain.WrapError(domain.ErrConfiguration, "resolve storage target",
				fmt.Errorf("no STORAGE_TARGET endpoint configured, configure one via the admin API"))
		}
		return nil, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil && s.configVer.Equal(endpoint.UpdatedAt) {
		return s.client, s.bucket, nil
	}

	host := endpoint.Setting("endpoint", "host", "url")
	accessKey := endpoint.Setting("accessKey", "access_key")
	secretKey := endpoint.Setting("secretKey", "secret_key")
	bucket := endpoint.Setting("bucket")
	if host == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, "", domain.WrapError(domain.ErrConfiguration, "resolve storage target",
			fmt.Errorf("endpoint %s is missing endpoint, accessKey, secretKey or bucket settings", endpoint.ID))
	}

	useSSL := true
	if raw := endpoint.Setting("useSSL", "use_ssl", "secure"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			useSSL = parsed
		}
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, "", domain.WrapError(domain.ErrConfiguration, "build storage client", err)
	}

	s.client = client
	s.bucket = bucket
	s.configVer = endpoint.UpdatedAt
	s.logger.Info("storage client rebuilt",
		slog.String("endpoint", host),
		slog.String("bucket", bucket),
	)
	return client, bucket, nil
}
