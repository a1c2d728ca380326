package ormrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/repository"
)

// submissionRepo — реализация repository.SubmissionRepository на gorm.
type submissionRepo struct {
	db *gorm.DB
}

// NewSubmissionRepository создаёт ORM-репозиторий релизов.
func NewSubmissionRepository(db *gorm.DB) repository.SubmissionRepository {
	return &submissionRepo{db: db}
}

func (r *submissionRepo) Create(ctx context.Context, s *model.Submission) error {
	row := submissionFromModel(s)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return mapError(err, "создания релиза")
	}
	s.CreatedAt, s.UpdatedAt = row.CreatedAt, row.UpdatedAt
	return nil
}

func (r *submissionRepo) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	var row submissionRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, mapError(err, "получения релиза")
	}
	return row.toModel(), nil
}

func (r *submissionRepo) scoped(ctx context.Context, filters repository.SubmissionFilters) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&submissionRow{})
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.UploaderID != nil {
		q = q.Where("uploader_id = ?", *filters.UploaderID)
	}
	if s := strings.TrimSpace(filters.Query); s != "" {
		p := repository.LikePattern(s)
		q = q.Where("(title ILIKE ? OR artist_name ILIKE ? OR genre ILIKE ?)", p, p, p)
	}
	return q
}

func (r *submissionRepo) List(ctx context.Context, filters repository.SubmissionFilters, limit, offset int) ([]*model.Submission, error) {
	var rows []submissionRow
	err := r.scoped(ctx, filters).
		Order("created_at DESC").Order("id").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, mapError(err, "получения списка релизов")
	}
	result := make([]*model.Submission, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toModel())
	}
	return result, nil
}

func (r *submissionRepo) Count(ctx context.Context, filters repository.SubmissionFilters) (int, error) {
	var n int64
	if err := r.scoped(ctx, filters).Count(&n).Error; err != nil {
		return 0, mapError(err, "подсчёта релизов")
	}
	return int(n), nil
}

func (r *submissionRepo) Update(ctx context.Context, s *model.Submission) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&submissionRow{}).Where("id = ?", s.ID).Updates(map[string]any{
		"title":          s.Title,
		"artist_name":    s.ArtistName,
		"genre":          s.Genre,
		"release_date":   s.ReleaseDate,
		"label":          s.Label,
		"upc":            s.UPC,
		"cover_art_path": s.CoverArtPath,
		"description":    s.Description,
		"updated_at":     now,
	})
	if res.Error != nil {
		return mapError(res.Error, "обновления релиза")
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	s.UpdatedAt = now
	return nil
}

func (r *submissionRepo) Transition(ctx context.Context, s *model.Submission, from string) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&submissionRow{}).
		Where("id = ? AND status = ?", s.ID, from).
		Updates(map[string]any{
			"status":             s.Status,
			"rejection_reason":   s.RejectionReason,
			"review_notes":       s.ReviewNotes,
			"reviewed_by":        s.ReviewedBy,
			"reviewed_at":        s.ReviewedAt,
			"resubmission_count": s.ResubmissionCount,
			"submitted_at":       s.SubmittedAt,
			"updated_at":         now,
		})
	if res.Error != nil {
		return mapError(res.Error, "смены статуса релиза")
	}
	if res.RowsAffected > 0 {
		s.UpdatedAt = now
		return nil
	}

	// Ни одна строка не обновлена: релиза нет или статус уже другой.
	var current submissionRow
	err := r.db.WithContext(ctx).Select("status").Where("id = ?", s.ID).Take(&current).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrNotFound
		}
		return mapError(err, "проверки статуса релиза")
	}
	return fmt.Errorf("%w: статус релиза уже %q, ожидался %q", repository.ErrConflict, current.Status, from)
}

func (r *submissionRepo) SoftDelete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&submissionRow{})
	if res.Error != nil {
		return mapError(res.Error, "удаления релиза")
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type statusCount struct {
	Status string
	N      int
}

func (r *submissionRepo) CountByStatus(ctx context.Context, uploaderID *string) (map[string]int, error) {
	q := r.db.WithContext(ctx).Model(&submissionRow{}).Select("status, COUNT(*) AS n")
	if uploaderID != nil {
		q = q.Where("uploader_id = ?", *uploaderID)
	}
	var rows []statusCount
	if err := q.Group("status").Scan(&rows).Error; err != nil {
		return nil, mapError(err, "подсчёта релизов по статусам")
	}

	counts := make(map[string]int, len(model.Statuses))
	for _, st := range model.Statuses {
		counts[st] = 0
	}
	for _, c := range rows {
		counts[c.Status] = c.N
	}
	return counts, nil
}
