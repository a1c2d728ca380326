package database

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/labelportal/internal/config"
)

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers.
func setupTestDB(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("labelportal_test"),
		postgres.WithUsername("labelportal"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("LP_DB_HOST", host)
	t.Setenv("LP_DB_PORT", port.Port())
	t.Setenv("LP_DB_NAME", "labelportal_test")
	t.Setenv("LP_DB_USER", "labelportal")
	t.Setenv("LP_DB_PASSWORD", "test-password")
	t.Setenv("LP_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestMigrateURL_EscapesCredentials(t *testing.T) {
	cfg := &config.Config{
		DBHost:     "db",
		DBPort:     5432,
		DBName:     "labelportal",
		DBUser:     "portal",
		DBPassword: "p@ss/word",
		DBSSLMode:  "disable",
	}
	got := migrateURL(cfg)
	if !strings.HasPrefix(got, "pgx5://portal:p%40ss%2Fword@db:5432/labelportal") {
		t.Errorf("migrateURL() = %q, пароль не экранирован", got)
	}
	if !strings.HasSuffix(got, "?sslmode=disable") {
		t.Errorf("migrateURL() = %q, нет sslmode", got)
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestReadinessChecker_Statuses(t *testing.T) {
	if status, _ := NewReadinessChecker(fakePinger{}).CheckReady(); status != "ok" {
		t.Errorf("CheckReady() = %q, хотели ok", status)
	}
	status, msg := NewReadinessChecker(fakePinger{err: errors.New("connection refused")}).CheckReady()
	if status != "fail" {
		t.Errorf("CheckReady() = %q, хотели fail", status)
	}
	if !strings.Contains(msg, "connection refused") {
		t.Errorf("сообщение %q не содержит причину", msg)
	}
}

func TestConnect(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("pool.Ping() вернул ошибку: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	cfg := setupTestDB(t)
	logger := testLogger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	// Повторное применение — без ошибки (ErrNoChange)
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	ctx := context.Background()
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	tables := []string{
		"users",
		"submissions",
		"tracks",
		"activity_logs",
		"stored_files",
		"email_logs",
		"app_settings",
	}
	for _, table := range tables {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("Ошибка проверки таблицы %s: %v", table, err)
		}
		if !exists {
			t.Errorf("Таблица %s не создана", table)
		}
	}

	var enabled string
	err = pool.QueryRow(ctx, `SELECT value FROM app_settings WHERE key = 'email.notifications_enabled'`).Scan(&enabled)
	if err != nil {
		t.Fatalf("Начальная настройка не найдена: %v", err)
	}
	if enabled != "true" {
		t.Errorf("email.notifications_enabled = %q, ожидали true", enabled)
	}
}

func TestReadinessChecker(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	status, msg := NewReadinessChecker(pool).CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() status = %q, message = %q; ожидали ok", status, msg)
	}
}
