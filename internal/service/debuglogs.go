// debuglogs.go — доступ Label Manager к буферу последних записей журнала.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/logbuffer"
)

// DebugLogService — просмотр и очистка буфера журнала.
type DebugLogService struct {
	buf      *logbuffer.Buffer
	activity *ActivityService
}

// NewDebugLogService создаёт сервис буфера журнала.
func NewDebugLogService(buf *logbuffer.Buffer, activity *ActivityService) *DebugLogService {
	return &DebugLogService{buf: buf, activity: activity}
}

// ParseLevel разбирает уровень из запроса (debug, info, warn, error).
// Пустая строка — debug.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelDebug, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, validationf("неизвестный уровень %q", s)
	}
	return l, nil
}

// Entries возвращает записи не ниже level, самые новые — последними.
func (s *DebugLogService) Entries(actor *model.User, level slog.Level, limit int) ([]logbuffer.Entry, error) {
	if !rbac.CanViewDebugLogs(subjectOf(actor)) {
		return nil, ErrForbidden
	}
	return s.buf.Entries(level, limit), nil
}

// Clear очищает буфер и возвращает количество удалённых записей.
func (s *DebugLogService) Clear(ctx context.Context, actor *model.User) (int, error) {
	if !rbac.CanViewDebugLogs(subjectOf(actor)) {
		return 0, ErrForbidden
	}
	n := s.buf.Len()
	s.buf.Clear()
	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     model.ActionDebugLogsCleared,
		EntityType: model.EntitySettings,
		EntityID:   "debug_logs",
		Details:    model.Details{"cleared": n},
	})
	return n, nil
}
