// activity.go — журнал действий пользователей (append-only).
// Record пишет запись и не прерывает основную операцию при ошибке.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/repository"
)

// ActivityEntry — запись для журнала.
type ActivityEntry struct {
	// ActorID — автор действия; пустая строка для системных действий
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Details    model.Details
}

// ActivityFilter — фильтры списка журнала из API.
type ActivityFilter struct {
	UserID     string
	Action     string
	EntityType string
	EntityID   string
	Since      *time.Time
}

// ActivityPage — страница журнала.
type ActivityPage struct {
	Items   []*model.ActivityLog
	Total   int
	HasMore bool
}

// ActivityService — сервис журнала действий.
type ActivityService struct {
	repo   repository.ActivityLogRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewActivityService создаёт сервис журнала действий.
func NewActivityService(repo repository.ActivityLogRepository, logger *slog.Logger) *ActivityService {
	return &ActivityService{
		repo:   repo,
		logger: logger.With(slog.String("component", "activity_service")),
		now:    time.Now,
	}
}

// Record добавляет запись в журнал. IP и User-Agent берутся из RequestMeta контекста.
// Ошибка записи только логируется.
func (s *ActivityService) Record(ctx context.Context, e ActivityEntry) {
	meta := RequestMetaFrom(ctx)
	entry := &model.ActivityLog{
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Details:    e.Details,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if e.ActorID != "" {
		actor := e.ActorID
		entry.UserID = &actor
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Warn("Не удалось записать действие в журнал",
			slog.String("action", e.Action),
			slog.String("entity_id", e.EntityID),
			slog.String("error", err.Error()),
		)
	}
}

// List возвращает страницу журнала. Артист видит только свои действия,
// фильтр по другому пользователю для него игнорируется.
func (s *ActivityService) List(ctx context.Context, subject rbac.Subject, f ActivityFilter, page Page) (*ActivityPage, error) {
	var filters repository.ActivityFilters
	if !rbac.CanViewAllActivity(subject) {
		f.UserID = subject.ID
	}
	if f.UserID != "" {
		filters.UserID = &f.UserID
	}
	if f.Action != "" {
		filters.Action = &f.Action
	}
	if f.EntityType != "" {
		filters.EntityType = &f.EntityType
	}
	if f.EntityID != "" {
		filters.EntityID = &f.EntityID
	}
	filters.Since = f.Since

	items, err := s.repo.List(ctx, filters, page.Limit, page.Offset)
	if err != nil {
		return nil, mapRepoError(err, "список журнала")
	}
	total, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, mapRepoError(err, "подсчёт журнала")
	}
	return &ActivityPage{Items: items, Total: total, HasMore: page.HasMore(total)}, nil
}

// Recent — последние действия для дашборда.
func (s *ActivityService) Recent(ctx context.Context, subject rbac.Subject, limit int) ([]*model.ActivityLog, error) {
	p, err := s.List(ctx, subject, ActivityFilter{}, NewPage(limit, 0))
	if err != nil {
		return nil, err
	}
	return p.Items, nil
}

// Prune удаляет записи старше olderThan. Только для менеджеров;
// actorID пустой при запуске из планировщика.
func (s *ActivityService) Prune(ctx context.Context, subject *rbac.Subject, olderThan time.Duration) (int64, error) {
	if subject != nil && !rbac.CanViewAllActivity(*subject) {
		return 0, ErrForbidden
	}
	if olderThan <= 0 {
		return 0, validationf("older_than должен быть положительным")
	}

	before := s.now().Add(-olderThan)
	deleted, err := s.repo.DeleteOlderThan(ctx, before)
	if err != nil {
		return 0, mapRepoError(err, "очистка журнала")
	}

	actorID := ""
	if subject != nil {
		actorID = subject.ID
	}
	s.logger.Info("Журнал действий очищен",
		slog.Int64("deleted", deleted),
		slog.Time("before", before),
	)
	s.Record(ctx, ActivityEntry{
		ActorID:    actorID,
		Action:     model.ActionActivityPruned,
		EntityType: model.EntitySettings,
		EntityID:   "activity_logs",
		Details:    model.Details{"deleted": deleted, "before": before.UTC().Format(time.RFC3339)},
	})
	return deleted, nil
}

