package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bigkaa/labelportal/internal/domain/model"
)

// ActivityLogRepository — журнал действий (таблица activity_logs).
// Записи только добавляются; удаляет их лишь очистка по сроку хранения.
type ActivityLogRepository interface {
	Append(ctx context.Context, e *model.ActivityLog) error
	List(ctx context.Context, filters ActivityFilters, limit, offset int) ([]*model.ActivityLog, error)
	Count(ctx context.Context, filters ActivityFilters) (int, error)
	// DeleteOlderThan удаляет записи старше before, возвращает их число.
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// ActivityFilters — фильтры журнала.
type ActivityFilters struct {
	UserID     *string
	Action     *string
	EntityType *string
	EntityID   *string
	Since      *time.Time
}

// activityLogRepo — реализация ActivityLogRepository.
type activityLogRepo struct {
	db DBTX
}

// NewActivityLogRepository создаёт репозиторий журнала действий.
func NewActivityLogRepository(db DBTX) ActivityLogRepository {
	return &activityLogRepo{db: db}
}

func (r *activityLogRepo) Append(ctx context.Context, e *model.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (user_id, action, entity_type, entity_id, details, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	details := e.Details
	if details == nil {
		details = model.Details{}
	}
	err := r.db.QueryRow(ctx, query,
		e.UserID, e.Action, e.EntityType, e.EntityID, details, e.IPAddress, e.UserAgent,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи в журнал действий: %w", err)
	}
	return nil
}

func buildActivityWhere(filters ActivityFilters) *whereBuilder {
	w := &whereBuilder{}
	if filters.UserID != nil {
		w.add("user_id = $%d", *filters.UserID)
	}
	if filters.Action != nil {
		w.add("action = $%d", *filters.Action)
	}
	if filters.EntityType != nil {
		w.add("entity_type = $%d", *filters.EntityType)
	}
	if filters.EntityID != nil {
		w.add("entity_id = $%d", *filters.EntityID)
	}
	if filters.Since != nil {
		w.add("created_at >= $%d", *filters.Since)
	}
	return w
}

func (r *activityLogRepo) List(ctx context.Context, filters ActivityFilters, limit, offset int) ([]*model.ActivityLog, error) {
	w := buildActivityWhere(filters)
	argNum := w.next()

	query := fmt.Sprintf(`
		SELECT id, user_id, action, entity_type, entity_id, details, ip_address, user_agent, created_at
		FROM activity_logs
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, w.sql(), argNum, argNum+1)

	rows, err := r.db.Query(ctx, query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала действий: %w", err)
	}
	defer rows.Close()

	var result []*model.ActivityLog
	for rows.Next() {
		e := &model.ActivityLog{}
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID, &e.Details,
			&e.IPAddress, &e.UserAgent, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи журнала: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *activityLogRepo) Count(ctx context.Context, filters ActivityFilters) (int, error) {
	w := buildActivityWhere(filters)
	var count int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM activity_logs "+w.sql(), w.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей журнала: %w", err)
	}
	return count, nil
}

func (r *activityLogRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM activity_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки журнала действий: %w", err)
	}
	return tag.RowsAffected(), nil
}
