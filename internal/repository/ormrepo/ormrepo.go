// Пакет ormrepo — ORM-стратегия multiDB на gorm.
// Реализует те же интерфейсы, что и SQL-стратегия (repository.UserRepository,
// repository.SubmissionRepository), но работает через отдельное подключение
// gorm, независимое от pgx-пула.
package ormrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/bigkaa/labelportal/internal/config"
	"github.com/bigkaa/labelportal/internal/repository"
)

// Open открывает подключение gorm к PostgreSQL.
func Open(cfg *config.Config, logger *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN()), Config(logger))
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения gorm: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения *sql.DB из gorm: %w", err)
	}
	maxConns := cfg.DBMaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	logger.Info("ORM-стратегия подключена", slog.String("database", cfg.DBName))
	return db, nil
}

// Config — общие настройки gorm: без неявных транзакций, с трансляцией
// ошибок драйвера в gorm.ErrDuplicatedKey и т.п.
func Config(logger *slog.Logger) *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 NewLogger(logger),
	}
}

// mapError приводит ошибки gorm к ошибкам слоя репозиториев.
func mapError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repository.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s", repository.ErrConflict, op)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %s: связанная запись не найдена", repository.ErrNotFound, op)
	default:
		return fmt.Errorf("ошибка %s: %w", op, err)
	}
}

// Logger — адаптер gorm logger поверх slog.
type Logger struct {
	logger        *slog.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewLogger создаёт адаптер; SQL пишется на уровне debug, ошибки — warn.
func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{
		logger:        logger.With(slog.String("component", "gorm")),
		level:         gormlogger.Warn,
		slowThreshold: 500 * time.Millisecond,
	}
}

// LogMode реализует gormlogger.Interface.
func (l *Logger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

// Trace логирует выполненный запрос.
func (l *Logger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	attrs := []any{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		l.logger.WarnContext(ctx, "Ошибка запроса gorm", append(attrs, slog.String("error", err.Error()))...)
	case elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.logger.WarnContext(ctx, "Медленный запрос gorm", attrs...)
	default:
		l.logger.DebugContext(ctx, "Запрос gorm", attrs...)
	}
}
