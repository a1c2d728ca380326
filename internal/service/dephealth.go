// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Label Portal мониторит:
//   - PostgreSQL — SQL checker через существующий pgxpool (connection pool mode, critical)
//   - REST-бэкенд данных (PostgREST), если подключена стратегия rest
//   - S3-хранилище, если LP_STORAGE_BACKEND=s3
//   - JWKS внешнего IdP, если задан LP_JWT_JWKS_URL
//
// Необязательные зависимости некритичны: их отказ не переводит сервис в fail,
// multiDB переключится на другую стратегию.
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для REST, S3, JWKS
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"     // PostgreSQL checker (pool mode)
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthTargets — необязательные зависимости; пустые поля не проверяются.
type DephealthTargets struct {
	// RESTURL — базовый URL PostgREST
	RESTURL string
	// S3URL — http(s)://endpoint S3-хранилища
	S3URL string
	// JWKSURL — JWKS внешнего IdP
	JWKSURL string
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	names  []string
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
//
// Параметры:
//   - serviceID — имя вершины графа текущего приложения ("labelportal")
//   - group — имя группы в метриках (LP_DEPHEALTH_GROUP)
//   - db — *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool()
//   - pgConnURL — URL подключения к PostgreSQL (для метрик/лейблов, не для подключения)
//   - targets — необязательные зависимости
//   - checkInterval — интервал проверки (LP_DEPHEALTH_CHECK_INTERVAL)
func NewDephealthService(
	serviceID string,
	group string,
	db *sql.DB,
	pgConnURL string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, db, pgConnURL, targets, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	group string,
	db *sql.DB,
	pgConnURL string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, db, pgConnURL, targets, checkInterval, logger,
		dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	serviceID string,
	group string,
	db *sql.DB,
	pgConnURL string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		// Используем pgcheck.New + dephealth.AddDependency напрямую,
		// чтобы не тянуть contrib/sqldb с транзитивной зависимостью на MySQL.
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(db)),
			dephealth.FromURL(pgConnURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		),
	}
	names := []string{"postgresql"}

	for _, t := range httpTargets(targets) {
		depOpts := []dephealth.DependencyOption{
			dephealth.FromURL(t.url),
			dephealth.WithHTTPHealthPath(t.path),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(false),
		}
		if parsed, err := url.Parse(t.url); err == nil && parsed.Scheme == "https" {
			depOpts = append(depOpts, dephealth.WithHTTPTLSSkipVerify(false))
		}
		opts = append(opts, dephealth.HTTP(t.name, depOpts...))
		names = append(names, t.name)
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		names:  names,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

type httpTarget struct {
	name string
	url  string
	path string
}

// httpTargets — HTTP-зависимости с путями проверки.
// PostgREST отвечает на корень OpenAPI-описанием, MinIO — на /minio/health/live,
// у IdP проверяется сам JWKS endpoint.
func httpTargets(t DephealthTargets) []httpTarget {
	var out []httpTarget
	if t.RESTURL != "" {
		out = append(out, httpTarget{name: "postgrest", url: t.RESTURL, path: healthPath(t.RESTURL, "/")})
	}
	if t.S3URL != "" {
		out = append(out, httpTarget{name: "object-storage", url: t.S3URL, path: "/minio/health/live"})
	}
	if t.JWKSURL != "" {
		out = append(out, httpTarget{name: "idp-jwks", url: t.JWKSURL, path: healthPath(t.JWKSURL, "/health")})
	}
	return out
}

// healthPath — path из URL или fallback, если path пустой.
func healthPath(raw, fallback string) string {
	if parsed, err := url.Parse(raw); err == nil && parsed.Path != "" && parsed.Path != "/" {
		return parsed.Path
	}
	return fallback
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен", slog.Any("dependencies", ds.names))
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
