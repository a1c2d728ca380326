// Пакет s3store — хранение загруженных файлов в S3-совместимом
// объектном хранилище (MinIO, AWS S3) через minio-go.
package s3store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bigkaa/labelportal/internal/storage"
)

// Name — идентификатор бэкенда.
const Name = "s3"

// Config — параметры подключения.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	// PresignTTL — срок жизни ссылок на скачивание
	PresignTTL time.Duration
}

// Store — storage.Backend поверх S3.
type Store struct {
	client     *minio.Client
	bucket     string
	presignTTL time.Duration
	logger     *slog.Logger
}

var _ storage.Backend = (*Store)(nil)

// New подключается к хранилищу и создаёт бакет, если его нет.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания S3 клиента: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки бакета %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("ошибка создания бакета %s: %w", cfg.Bucket, err)
		}
		logger.Info("S3 бакет создан", slog.String("bucket", cfg.Bucket))
	}

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Store{
		client:     client,
		bucket:     cfg.Bucket,
		presignTTL: ttl,
		logger:     logger.With(slog.String("component", "s3store")),
	}, nil
}

func (s *Store) Name() string { return Name }

// Save загружает поток в бакет, считая SHA-256 на лету.
// При неизвестном размере minio-go грузит объект multipart-частями.
func (s *Store) Save(ctx context.Context, r io.Reader, opts storage.SaveOptions) (*storage.Object, error) {
	key := storage.ObjectKey(opts.OwnerID, opts.OriginalFilename)

	size := opts.Size
	if size == 0 {
		size = -1
	}
	if opts.MaxSize > 0 && size > opts.MaxSize {
		return nil, storage.ErrTooLarge
	}

	hasher := sha256.New()
	src := io.TeeReader(storage.LimitReader(r, opts.MaxSize), hasher)

	info, err := s.client.PutObject(ctx, s.bucket, key, src, size, minio.PutObjectOptions{
		ContentType: opts.ContentType,
	})
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка загрузки объекта %s: %w", key, err)
	}

	return &storage.Object{
		Path:     key,
		Size:     info.Size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open возвращает поток объекта.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := storage.CleanKey(key)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapError(key, err)
	}
	// GetObject ленивый: существование проверяем через Stat.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, s.mapError(key, err)
	}
	return obj, nil
}

// Delete удаляет объект; отсутствующий объект ошибкой не считается.
func (s *Store) Delete(ctx context.Context, key string) error {
	key, err := storage.CleanKey(key)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if errors.Is(s.mapError(key, err), storage.ErrObjectNotFound) {
			return nil
		}
		return fmt.Errorf("ошибка удаления объекта %s: %w", key, err)
	}
	return nil
}

// URL возвращает presigned GET-ссылку с Content-Disposition на имя файла.
func (s *Store) URL(ctx context.Context, key, filename string) (string, error) {
	key, err := storage.CleanKey(key)
	if err != nil {
		return "", err
	}
	params := url.Values{}
	if filename != "" {
		params.Set("response-content-disposition", contentDisposition(filename))
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, params)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи ссылки %s: %w", key, err)
	}
	return u.String(), nil
}

// Ping проверяет доступность бакета.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("бакет %s не существует", s.bucket)
	}
	return nil
}

func (s *Store) mapError(key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	}
	return fmt.Errorf("ошибка доступа к объекту %s: %w", key, err)
}

// contentDisposition формирует attachment с UTF-8 именем (RFC 6266).
func contentDisposition(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}
