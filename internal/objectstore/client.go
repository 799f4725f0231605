// Пакет objectstore - клиент S3-совместимого объектного хранилища (MinIO).
// Единственный долгоживущий клиент на процесс; операции: проверка/создание
// бакета и запись объекта с user-метаданными.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Options - параметры подключения к хранилищу.
type Options struct {
	// Endpoint - host:port без схемы
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Client - обёртка над minio.Client.
type Client struct {
	mc     *minio.Client
	logger *slog.Logger
}

// New создаёт клиента объектного хранилища. Сетевых запросов не выполняет.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	mc, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания S3-клиента для %s: %w", opts.Endpoint, err)
	}

	return &Client{
		mc:     mc,
		logger: logger.With(slog.String("component", "objectstore")),
	}, nil
}

// EnsureBucket проверяет наличие бакета и при create = true создаёт его.
func (c *Client) EnsureBucket(ctx context.Context, bucket string, create bool) error {
	exists, err := c.mc.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("ошибка проверки бакета %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if !create {
		return fmt.Errorf("бакет %s не существует", bucket)
	}

	if err := c.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("ошибка создания бакета %s: %w", bucket, err)
	}
	c.logger.Info("Бакет создан", slog.String("bucket", bucket))
	return nil
}

// PutObject записывает size байт из r в bucket/key с указанными
// Content-Type и user-метаданными.
func (c *Client) PutObject(
	ctx context.Context,
	bucket, key string,
	r io.Reader,
	size int64,
	contentType string,
	metadata map[string]string,
) error {
	info, err := c.mc.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("ошибка загрузки объекта %s/%s: %w", bucket, key, err)
	}

	c.logger.Debug("Объект загружен",
		slog.String("bucket", bucket),
		slog.String("key", key),
		slog.Int64("size", info.Size),
		slog.String("etag", info.ETag),
	)
	return nil
}

// ReadinessChecker - проверка доступности бакета для health endpoint.
type ReadinessChecker struct {
	client *Client
	bucket string
}

// NewReadinessChecker создаёт проверку готовности объектного хранилища.
func NewReadinessChecker(client *Client, bucket string) *ReadinessChecker {
	return &ReadinessChecker{client: client, bucket: bucket}
}

// CheckReady проверяет, что бакет доступен.
func (rc *ReadinessChecker) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	exists, err := rc.client.mc.BucketExists(ctx, rc.bucket)
	if err != nil {
		return "fail", fmt.Sprintf("объектное хранилище недоступно: %v", err)
	}
	if !exists {
		return "fail", fmt.Sprintf("бакет %s не найден", rc.bucket)
	}
	return "ok", "бакет доступен"
}
