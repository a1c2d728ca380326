package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/labelportal/internal/domain/model"
)

// SubmissionRepository — интерфейс CRUD для таблицы submissions.
// Удалённые (deleted_at IS NOT NULL) релизы не возвращаются.
type SubmissionRepository interface {
	Create(ctx context.Context, s *model.Submission) error
	GetByID(ctx context.Context, id string) (*model.Submission, error)
	List(ctx context.Context, filters SubmissionFilters, limit, offset int) ([]*model.Submission, error)
	Count(ctx context.Context, filters SubmissionFilters) (int, error)
	// Update обновляет метаданные релиза (не статус).
	Update(ctx context.Context, s *model.Submission) error
	// Transition записывает новый статус и поля модерации, только если
	// текущий статус в БД равен from. Иначе ErrConflict.
	Transition(ctx context.Context, s *model.Submission, from string) error
	// SoftDelete проставляет deleted_at.
	SoftDelete(ctx context.Context, id string) error
	// CountByStatus — число релизов по статусам (uploaderID == nil — все).
	CountByStatus(ctx context.Context, uploaderID *string) (map[string]int, error)
}

// SubmissionFilters — фильтры списка релизов.
type SubmissionFilters struct {
	Status     *string
	UploaderID *string
	// Query — подстрока названия, артиста или жанра
	Query string
}

const submissionColumns = `id, title, artist_name, uploader_id, status, genre, release_date, label,
	upc, cover_art_path, description, rejection_reason, review_notes, reviewed_by, reviewed_at,
	resubmission_count, submitted_at, created_at, updated_at, deleted_at`

// submissionRepo — реализация SubmissionRepository.
type submissionRepo struct {
	db DBTX
}

// NewSubmissionRepository создаёт репозиторий релизов.
func NewSubmissionRepository(db DBTX) SubmissionRepository {
	return &submissionRepo{db: db}
}

func scanSubmission(row rowScanner) (*model.Submission, error) {
	s := &model.Submission{}
	err := row.Scan(
		&s.ID, &s.Title, &s.ArtistName, &s.UploaderID, &s.Status, &s.Genre, &s.ReleaseDate, &s.Label,
		&s.UPC, &s.CoverArtPath, &s.Description, &s.RejectionReason, &s.ReviewNotes, &s.ReviewedBy, &s.ReviewedAt,
		&s.ResubmissionCount, &s.SubmittedAt, &s.CreatedAt, &s.UpdatedAt, &s.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *submissionRepo) Create(ctx context.Context, s *model.Submission) error {
	query := `
		INSERT INTO submissions (id, title, artist_name, uploader_id, status, genre, release_date,
			label, upc, cover_art_path, description, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		s.ID, s.Title, s.ArtistName, s.UploaderID, s.Status, s.Genre, s.ReleaseDate,
		s.Label, s.UPC, s.CoverArtPath, s.Description, s.SubmittedAt,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: релиз с таким ID уже существует", ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: владелец релиза не найден", ErrNotFound)
		}
		return fmt.Errorf("ошибка создания релиза: %w", err)
	}
	return nil
}

func (r *submissionRepo) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1 AND deleted_at IS NULL`

	s, err := scanSubmission(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения релиза: %w", err)
	}
	return s, nil
}

// buildSubmissionWhere строит WHERE-условие и аргументы для фильтрации релизов.
func buildSubmissionWhere(filters SubmissionFilters) *whereBuilder {
	w := &whereBuilder{}
	w.raw("deleted_at IS NULL")
	if filters.Status != nil {
		w.add("status = $%d", *filters.Status)
	}
	if filters.UploaderID != nil {
		w.add("uploader_id = $%d", *filters.UploaderID)
	}
	if q := strings.TrimSpace(filters.Query); q != "" {
		w.add("(title ILIKE $%[1]d OR artist_name ILIKE $%[1]d OR genre ILIKE $%[1]d)", LikePattern(q))
	}
	return w
}

func (r *submissionRepo) List(ctx context.Context, filters SubmissionFilters, limit, offset int) ([]*model.Submission, error) {
	w := buildSubmissionWhere(filters)
	argNum := w.next()

	query := fmt.Sprintf(`
		SELECT %s
		FROM submissions
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`, submissionColumns, w.sql(), argNum, argNum+1)

	rows, err := r.db.Query(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка релизов: %w", err)
	}
	defer rows.Close()

	var result []*model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования релиза: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *submissionRepo) Count(ctx context.Context, filters SubmissionFilters) (int, error) {
	w := buildSubmissionWhere(filters)
	var count int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM submissions "+w.sql(), w.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта релизов: %w", err)
	}
	return count, nil
}

func (r *submissionRepo) Update(ctx context.Context, s *model.Submission) error {
	query := `
		UPDATE submissions
		SET title = $2, artist_name = $3, genre = $4, release_date = $5, label = $6,
			upc = $7, cover_art_path = $8, description = $9, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		s.ID, s.Title, s.ArtistName, s.Genre, s.ReleaseDate, s.Label,
		s.UPC, s.CoverArtPath, s.Description,
	).Scan(&s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления релиза: %w", err)
	}
	return nil
}

func (r *submissionRepo) Transition(ctx context.Context, s *model.Submission, from string) error {
	query := `
		UPDATE submissions
		SET status = $3, rejection_reason = $4, review_notes = $5, reviewed_by = $6,
			reviewed_at = $7, resubmission_count = $8, submitted_at = $9, updated_at = NOW()
		WHERE id = $1 AND status = $2 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		s.ID, from, s.Status, s.RejectionReason, s.ReviewNotes, s.ReviewedBy,
		s.ReviewedAt, s.ResubmissionCount, s.SubmittedAt,
	).Scan(&s.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("ошибка смены статуса релиза: %w", err)
	}

	// Ни одна строка не обновлена: релиза нет или статус уже другой.
	var current string
	err = r.db.QueryRow(ctx,
		`SELECT status FROM submissions WHERE id = $1 AND deleted_at IS NULL`, s.ID,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка проверки статуса релиза: %w", err)
	}
	return fmt.Errorf("%w: статус релиза уже %q, ожидался %q", ErrConflict, current, from)
}

func (r *submissionRepo) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE submissions SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления релиза: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *submissionRepo) CountByStatus(ctx context.Context, uploaderID *string) (map[string]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM submissions
		WHERE deleted_at IS NULL AND ($1::uuid IS NULL OR uploader_id = $1::uuid)
		GROUP BY status`

	rows, err := r.db.Query(ctx, query, uploaderID)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта релизов по статусам: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int, len(model.Statuses))
	for _, st := range model.Statuses {
		counts[st] = 0
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("ошибка сканирования статистики: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
