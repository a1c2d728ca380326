package restdb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/repository"
)

const submissionsTable = "submissions"

// submissionRepo — реализация repository.SubmissionRepository через REST API.
type submissionRepo struct {
	c *Client
}

// NewSubmissionRepository создаёт REST-репозиторий релизов.
func NewSubmissionRepository(c *Client) repository.SubmissionRepository {
	return &submissionRepo{c: c}
}

// alive — фильтр неудалённых релизов.
func alive(q url.Values) url.Values {
	q.Set("deleted_at", "is.null")
	return q
}

func (r *submissionRepo) Create(ctx context.Context, s *model.Submission) error {
	body := submissionMetaWrite(s)
	body["id"] = s.ID
	body["uploader_id"] = s.UploaderID
	body["status"] = s.Status
	body["submitted_at"] = s.SubmittedAt

	var rows []submissionRow
	if err := r.c.mutate(ctx, http.MethodPost, submissionsTable, nil, body, &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		s.CreatedAt, s.UpdatedAt = rows[0].CreatedAt, rows[0].UpdatedAt
	}
	return nil
}

func (r *submissionRepo) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	q := alive(url.Values{"id": {eq(id)}, "limit": {"1"}})
	var rows []submissionRow
	if err := r.c.selectRows(ctx, submissionsTable, q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return rows[0].toModel()
}

func submissionQuery(filters repository.SubmissionFilters) url.Values {
	q := alive(url.Values{})
	if filters.Status != nil {
		q.Set("status", eq(*filters.Status))
	}
	if filters.UploaderID != nil {
		q.Set("uploader_id", eq(*filters.UploaderID))
	}
	if s := strings.TrimSpace(filters.Query); s != "" {
		q.Set("or", ilikeAny(s, "title", "artist_name", "genre"))
	}
	return q
}

func (r *submissionRepo) List(ctx context.Context, filters repository.SubmissionFilters, limit, offset int) ([]*model.Submission, error) {
	q := submissionQuery(filters)
	page(q, limit, offset)

	var rows []submissionRow
	if err := r.c.selectRows(ctx, submissionsTable, q, &rows); err != nil {
		return nil, err
	}
	result := make([]*model.Submission, 0, len(rows))
	for i := range rows {
		s, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}

func (r *submissionRepo) Count(ctx context.Context, filters repository.SubmissionFilters) (int, error) {
	return r.c.count(ctx, submissionsTable, submissionQuery(filters))
}

func (r *submissionRepo) Update(ctx context.Context, s *model.Submission) error {
	body := submissionMetaWrite(s)
	body["updated_at"] = time.Now().UTC()

	var rows []submissionRow
	q := alive(url.Values{"id": {eq(s.ID)}})
	if err := r.c.mutate(ctx, http.MethodPatch, submissionsTable, q, body, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return repository.ErrNotFound
	}
	s.UpdatedAt = rows[0].UpdatedAt
	return nil
}

func (r *submissionRepo) Transition(ctx context.Context, s *model.Submission, from string) error {
	body := submissionReviewWrite(s)
	body["updated_at"] = time.Now().UTC()

	var rows []submissionRow
	q := alive(url.Values{"id": {eq(s.ID)}, "status": {eq(from)}})
	if err := r.c.mutate(ctx, http.MethodPatch, submissionsTable, q, body, &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		s.UpdatedAt = rows[0].UpdatedAt
		return nil
	}

	// Ни одна строка не обновлена: релиза нет или статус уже другой.
	current, err := r.GetByID(ctx, s.ID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: статус релиза уже %q, ожидался %q", repository.ErrConflict, current.Status, from)
}

func (r *submissionRepo) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	var rows []submissionRow
	q := alive(url.Values{"id": {eq(id)}})
	body := map[string]any{"deleted_at": now, "updated_at": now}
	if err := r.c.mutate(ctx, http.MethodPatch, submissionsTable, q, body, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountByStatus выполняет по одному count-запросу на статус:
// агрегаты PostgREST по умолчанию выключены.
func (r *submissionRepo) CountByStatus(ctx context.Context, uploaderID *string) (map[string]int, error) {
	counts := make(map[string]int, len(model.Statuses))
	for _, st := range model.Statuses {
		status := st
		n, err := r.Count(ctx, repository.SubmissionFilters{Status: &status, UploaderID: uploaderID})
		if err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, nil
}
