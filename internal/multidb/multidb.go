// Пакет multidb — фасад над несколькими стратегиями хранения
// (SQL через pgx, ORM через gorm, REST через PostgREST).
// Стратегии опрашиваются по порядку, первая успешная побеждает.
// Каждую стратегию защищает circuit breaker (sony/gobreaker).
package multidb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/bigkaa/labelportal/internal/repository"
)

// ErrAllStrategiesFailed — ни одна стратегия не смогла выполнить операцию.
var ErrAllStrategiesFailed = errors.New("все стратегии хранения недоступны")

var (
	datastoreCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lp_datastore_calls_total",
			Help: "Количество обращений к стратегиям хранения",
		},
		[]string{"repository", "strategy", "op", "result"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lp_datastore_breaker_state",
			Help: "Состояние circuit breaker стратегии (0 closed, 1 half-open, 2 open)",
		},
		[]string{"repository", "strategy"},
	)
)

// Strategy — именованная реализация репозитория.
type Strategy[R any] struct {
	Name string
	Repo R
}

// BreakerSettings — параметры circuit breaker одной стратегии.
type BreakerSettings struct {
	// Failures — число подряд идущих ошибок до размыкания
	Failures uint32
	// Timeout — время в разомкнутом состоянии до пробного запроса
	Timeout time.Duration
}

type member[R any] struct {
	name string
	repo R
	cb   *gobreaker.CircuitBreaker[any]
}

// chain — упорядоченный список стратегий одного репозитория.
type chain[R any] struct {
	kind    string
	members []member[R]
	logger  *slog.Logger
}

func newChain[R any](kind string, strategies []Strategy[R], bs BreakerSettings, logger *slog.Logger) (*chain[R], error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("multidb %s: не задано ни одной стратегии", kind)
	}
	if bs.Failures == 0 {
		bs.Failures = 5
	}
	if bs.Timeout <= 0 {
		bs.Timeout = 30 * time.Second
	}

	c := &chain[R]{
		kind:   kind,
		logger: logger.With(slog.String("component", "multidb"), slog.String("repository", kind)),
	}
	for _, s := range strategies {
		name := s.Name
		c.members = append(c.members, member[R]{
			name: name,
			repo: s.Repo,
			cb: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
				Name:        kind + ":" + name,
				MaxRequests: 1,
				Timeout:     bs.Timeout,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= bs.Failures
				},
				IsSuccessful: isAuthoritative,
				OnStateChange: func(_ string, from, to gobreaker.State) {
					c.logger.Warn("Состояние circuit breaker изменилось",
						slog.String("strategy", name),
						slog.String("from", from.String()),
						slog.String("to", to.String()),
					)
					breakerState.WithLabelValues(kind, name).Set(float64(to))
				},
			}),
		})
	}
	return c, nil
}

// names возвращает имена стратегий в порядке опроса.
func (c *chain[R]) names() []string {
	out := make([]string, len(c.members))
	for i, m := range c.members {
		out[i] = m.name
	}
	return out
}

// isAuthoritative сообщает, является ли ошибка окончательным ответом
// хранилища. Такие ошибки не размыкают breaker и не передают вызов
// следующей стратегии.
func isAuthoritative(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrConflict) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Классы 22 (data exception) и 23 (integrity constraint) — ошибки данных,
	// другая стратегия ответит так же.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		return pgErr.Code[:2] == "22" || pgErr.Code[:2] == "23"
	}
	return false
}

// call выполняет fn на стратегиях по порядку.
func call[R, T any](ctx context.Context, c *chain[R], op string, fn func(R) (T, error)) (T, error) {
	var (
		zero T
		errs []error
	)
	for _, m := range c.members {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := m.cb.Execute(func() (any, error) {
			return fn(m.repo)
		})
		switch {
		case err == nil:
			datastoreCalls.WithLabelValues(c.kind, m.name, op, "ok").Inc()
			out, _ := v.(T)
			return out, nil

		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			datastoreCalls.WithLabelValues(c.kind, m.name, op, "skipped").Inc()
			c.logger.Debug("Стратегия пропущена: breaker разомкнут",
				slog.String("strategy", m.name), slog.String("op", op))
			errs = append(errs, fmt.Errorf("%s: %w", m.name, err))

		case isAuthoritative(err):
			datastoreCalls.WithLabelValues(c.kind, m.name, op, "ok").Inc()
			return zero, err

		default:
			datastoreCalls.WithLabelValues(c.kind, m.name, op, "error").Inc()
			c.logger.Warn("Ошибка стратегии хранения, пробуем следующую",
				slog.String("strategy", m.name),
				slog.String("op", op),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
		}
	}
	return zero, fmt.Errorf("%s.%s: %w", c.kind, op,
		errors.Join(append([]error{ErrAllStrategiesFailed}, errs...)...))
}

// exec — call для операций без результата.
func exec[R any](ctx context.Context, c *chain[R], op string, fn func(R) error) error {
	_, err := call(ctx, c, op, func(r R) (struct{}, error) {
		return struct{}{}, fn(r)
	})
	return err
}
