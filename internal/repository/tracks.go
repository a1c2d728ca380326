package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/labelportal/internal/domain/model"
)

// TrackRepository — интерфейс CRUD для таблицы tracks.
type TrackRepository interface {
	Create(ctx context.Context, t *model.Track) error
	GetByID(ctx context.Context, id string) (*model.Track, error)
	// ListBySubmission возвращает треки релиза по порядку.
	ListBySubmission(ctx context.Context, submissionID string) ([]model.Track, error)
	Update(ctx context.Context, t *model.Track) error
	Delete(ctx context.Context, id string) error
	CountBySubmission(ctx context.Context, submissionID string) (int, error)
}

const trackColumns = `id, submission_id, title, track_number, file_path, duration_seconds, isrc,
	format, bitrate_kbps, sample_rate_hz, file_size, checksum, explicit, created_at, updated_at`

// trackRepo — реализация TrackRepository.
type trackRepo struct {
	db DBTX
}

// NewTrackRepository создаёт репозиторий треков.
func NewTrackRepository(db DBTX) TrackRepository {
	return &trackRepo{db: db}
}

func scanTrack(row rowScanner, t *model.Track) error {
	return row.Scan(
		&t.ID, &t.SubmissionID, &t.Title, &t.TrackNumber, &t.FilePath, &t.DurationSeconds, &t.ISRC,
		&t.Format, &t.BitrateKbps, &t.SampleRateHz, &t.FileSize, &t.Checksum, &t.Explicit,
		&t.CreatedAt, &t.UpdatedAt,
	)
}

func (r *trackRepo) Create(ctx context.Context, t *model.Track) error {
	query := `
		INSERT INTO tracks (id, submission_id, title, track_number, file_path, duration_seconds,
			isrc, format, bitrate_kbps, sample_rate_hz, file_size, checksum, explicit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		t.ID, t.SubmissionID, t.Title, t.TrackNumber, t.FilePath, t.DurationSeconds,
		t.ISRC, t.Format, t.BitrateKbps, t.SampleRateHz, t.FileSize, t.Checksum, t.Explicit,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: ISRC %s уже используется", ErrConflict, t.ISRC)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: релиз %s не найден", ErrNotFound, t.SubmissionID)
		}
		return fmt.Errorf("ошибка создания трека: %w", err)
	}
	return nil
}

func (r *trackRepo) GetByID(ctx context.Context, id string) (*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = $1`

	t := &model.Track{}
	if err := scanTrack(r.db.QueryRow(ctx, query, id), t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения трека: %w", err)
	}
	return t, nil
}

func (r *trackRepo) ListBySubmission(ctx context.Context, submissionID string) ([]model.Track, error) {
	query := `SELECT ` + trackColumns + `
		FROM tracks
		WHERE submission_id = $1
		ORDER BY track_number, created_at`

	rows, err := r.db.Query(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения треков: %w", err)
	}
	defer rows.Close()

	var result []model.Track
	for rows.Next() {
		var t model.Track
		if err := scanTrack(rows, &t); err != nil {
			return nil, fmt.Errorf("ошибка сканирования трека: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *trackRepo) Update(ctx context.Context, t *model.Track) error {
	query := `
		UPDATE tracks
		SET title = $2, track_number = $3, file_path = $4, duration_seconds = $5, isrc = $6,
			format = $7, bitrate_kbps = $8, sample_rate_hz = $9, file_size = $10, checksum = $11,
			explicit = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		t.ID, t.Title, t.TrackNumber, t.FilePath, t.DurationSeconds, t.ISRC,
		t.Format, t.BitrateKbps, t.SampleRateHz, t.FileSize, t.Checksum, t.Explicit,
	).Scan(&t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: ISRC %s уже используется", ErrConflict, t.ISRC)
		}
		return fmt.Errorf("ошибка обновления трека: %w", err)
	}
	return nil
}

func (r *trackRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tracks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления трека: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *trackRepo) CountBySubmission(ctx context.Context, submissionID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tracks WHERE submission_id = $1`, submissionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта треков: %w", err)
	}
	return count, nil
}
