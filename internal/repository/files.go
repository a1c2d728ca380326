package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/labelportal/internal/domain/model"
)

// FileRepository — реестр загруженных файлов (таблица stored_files).
type FileRepository interface {
	// Register создаёт запись о загруженном объекте.
	Register(ctx context.Context, f *model.StoredFile) error
	// GetByID возвращает файл по UUID (в том числе удалённый).
	GetByID(ctx context.Context, id string) (*model.StoredFile, error)
	List(ctx context.Context, filters FileFilters, limit, offset int) ([]*model.StoredFile, error)
	Count(ctx context.Context, filters FileFilters) (int, error)
	// Delete выполняет soft delete (status → deleted).
	Delete(ctx context.Context, id string) error
}

// FileFilters — фильтры для списка файлов.
type FileFilters struct {
	OwnerID *string
	Kind    *string
	// Status — по умолчанию только active
	Status *string
}

const fileColumns = `id, owner_id, backend, path, original_filename, content_type, size, checksum,
	kind, status, created_at, updated_at`

// fileRepo — реализация FileRepository.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий реестра файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

func scanFile(row rowScanner) (*model.StoredFile, error) {
	f := &model.StoredFile{}
	err := row.Scan(
		&f.ID, &f.OwnerID, &f.Backend, &f.Path, &f.OriginalFilename, &f.ContentType, &f.Size,
		&f.Checksum, &f.Kind, &f.Status, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *fileRepo) Register(ctx context.Context, f *model.StoredFile) error {
	query := `
		INSERT INTO stored_files (id, owner_id, backend, path, original_filename, content_type,
			size, checksum, kind, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	if f.Status == "" {
		f.Status = model.FileStatusActive
	}
	err := r.db.QueryRow(ctx, query,
		f.ID, f.OwnerID, f.Backend, f.Path, f.OriginalFilename, f.ContentType,
		f.Size, f.Checksum, f.Kind, f.Status,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: объект %s уже зарегистрирован", ErrConflict, f.Path)
		}
		return fmt.Errorf("ошибка регистрации файла: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, id string) (*model.StoredFile, error) {
	query := `SELECT ` + fileColumns + ` FROM stored_files WHERE id = $1`

	f, err := scanFile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

// buildFileWhere строит WHERE-условие и аргументы для фильтрации файлов.
func buildFileWhere(filters FileFilters) *whereBuilder {
	w := &whereBuilder{}
	status := model.FileStatusActive
	if filters.Status != nil {
		status = *filters.Status
	}
	w.add("status = $%d", status)
	if filters.OwnerID != nil {
		w.add("owner_id = $%d", *filters.OwnerID)
	}
	if filters.Kind != nil {
		w.add("kind = $%d", *filters.Kind)
	}
	return w
}

func (r *fileRepo) List(ctx context.Context, filters FileFilters, limit, offset int) ([]*model.StoredFile, error) {
	w := buildFileWhere(filters)
	argNum := w.next()

	query := fmt.Sprintf(`
		SELECT %s
		FROM stored_files
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`, fileColumns, w.sql(), argNum, argNum+1)

	rows, err := r.db.Query(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.StoredFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileRepo) Count(ctx context.Context, filters FileFilters) (int, error) {
	w := buildFileWhere(filters)
	var count int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM stored_files "+w.sql(), w.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return count, nil
}

func (r *fileRepo) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE stored_files
		SET status = 'deleted', updated_at = NOW()
		WHERE id = $1 AND status != 'deleted'`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
