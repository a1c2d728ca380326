// retention.go — плановая очистка журнала действий.
//
// Расписание задаётся cron-выражением (LP_ACTIVITY_PRUNE_SCHEDULE, по
// умолчанию @daily); удаляются записи старше LP_ACTIVITY_RETENTION.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
)

// Prometheus-метрики очистки.
var (
	retentionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lp_activity_prune_runs_total",
		Help: "Количество запусков очистки журнала действий по результату.",
	}, []string{"result"})

	retentionDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lp_activity_pruned_records_total",
		Help: "Количество удалённых записей журнала действий.",
	})
)

// pruneTimeout — лимит на один запуск очистки.
const pruneTimeout = 5 * time.Minute

// RetentionScheduler — фоновая очистка журнала по расписанию.
type RetentionScheduler struct {
	activity  *ActivityService
	retention time.Duration
	cron      *cron.Cron
	logger    *slog.Logger

	mu  sync.Mutex // защита от параллельного запуска RunOnce
	ctx context.Context
}

// NewRetentionScheduler создаёт планировщик. Ошибка — некорректное расписание.
func NewRetentionScheduler(activity *ActivityService, schedule string, retention time.Duration, logger *slog.Logger) (*RetentionScheduler, error) {
	s := &RetentionScheduler{
		activity:  activity,
		retention: retention,
		cron:      cron.New(cron.WithLocation(time.UTC)),
		logger:    logger.With(slog.String("component", "retention")),
		ctx:       context.Background(),
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce() }); err != nil {
		return nil, fmt.Errorf("некорректное расписание %q: %w", schedule, err)
	}
	return s, nil
}

// Start запускает планировщик. Отмена ctx прерывает текущую очистку.
func (s *RetentionScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("Очистка журнала запланирована",
		slog.String("retention", s.retention.String()),
		slog.Time("next_run", s.cron.Entries()[0].Next),
	)
}

// Stop останавливает планировщик и ждёт завершения текущего запуска.
func (s *RetentionScheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Очистка журнала остановлена")
}

// RunOnce удаляет записи старше срока хранения и возвращает их количество.
func (s *RetentionScheduler) RunOnce() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, pruneTimeout)
	defer cancel()

	start := time.Now()
	deleted, err := s.activity.Prune(ctx, nil, s.retention)
	if err != nil {
		retentionRunsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Ошибка очистки журнала", slog.String("error", err.Error()))
		return 0
	}

	retentionRunsTotal.WithLabelValues("ok").Inc()
	retentionDeletedTotal.Add(float64(deleted))
	s.logger.Debug("Очистка журнала завершена",
		slog.Int64("deleted", deleted),
		slog.Duration("duration", time.Since(start)),
	)
	return deleted
}
