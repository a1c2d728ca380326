package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/labelportal/internal/domain/model"
)

// EmailLogRepository — журнал отправленных писем (таблица email_logs).
type EmailLogRepository interface {
	Append(ctx context.Context, e *model.EmailLog) error
	// List возвращает последние записи; status == nil — все.
	List(ctx context.Context, status *string, limit, offset int) ([]*model.EmailLog, error)
	Count(ctx context.Context, status *string) (int, error)
}

type emailLogRepo struct {
	db DBTX
}

// NewEmailLogRepository создаёт репозиторий журнала писем.
func NewEmailLogRepository(db DBTX) EmailLogRepository {
	return &emailLogRepo{db: db}
}

func (r *emailLogRepo) Append(ctx context.Context, e *model.EmailLog) error {
	query := `
		INSERT INTO email_logs (recipient, subject, template, status, error)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, e.Recipient, e.Subject, e.Template, e.Status, e.Error).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи в журнал писем: %w", err)
	}
	return nil
}

func (r *emailLogRepo) List(ctx context.Context, status *string, limit, offset int) ([]*model.EmailLog, error) {
	w := &whereBuilder{}
	if status != nil {
		w.add("status = $%d", *status)
	}
	argNum := w.next()

	query := fmt.Sprintf(`
		SELECT id, recipient, subject, template, status, error, created_at
		FROM email_logs
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, w.sql(), argNum, argNum+1)

	rows, err := r.db.Query(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала писем: %w", err)
	}
	defer rows.Close()

	var result []*model.EmailLog
	for rows.Next() {
		e := &model.EmailLog{}
		if err := rows.Scan(&e.ID, &e.Recipient, &e.Subject, &e.Template, &e.Status, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования журнала писем: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *emailLogRepo) Count(ctx context.Context, status *string) (int, error) {
	w := &whereBuilder{}
	if status != nil {
		w.add("status = $%d", *status)
	}
	var count int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM email_logs "+w.sql(), w.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта писем: %w", err)
	}
	return count, nil
}
