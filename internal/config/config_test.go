package config

import (
	"log/slog"
	"os"
	"slices"
	"testing"
	"time"
)

func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"LP_DB_HOST":     "localhost",
		"LP_DB_NAME":     "labelportal",
		"LP_DB_USER":     "labelportal",
		"LP_DB_PASSWORD": "secret",
	}
}

// resetEnvs очищает переменные, которые могли остаться от других тестов.
func resetEnvs(t *testing.T) {
	t.Helper()
	for k := range minimalEnvs() {
		os.Unsetenv(k)
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидается 8080", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидается disable", cfg.DBSSLMode)
	}
	if !slices.Equal(cfg.DataStrategies, []string{StrategySQL, StrategyORM}) {
		t.Errorf("DataStrategies = %v, ожидается [sql orm] без LP_REST_URL", cfg.DataStrategies)
	}
	if !slices.Equal(cfg.SkippedStrategies, []string{StrategyREST}) {
		t.Errorf("SkippedStrategies = %v, ожидается [rest]", cfg.SkippedStrategies)
	}
	if cfg.TrustProxyHeaders {
		t.Error("TrustProxyHeaders = true, ожидается false")
	}
	if cfg.EmailMode != EmailModeDemo {
		t.Errorf("EmailMode = %q, ожидается demo", cfg.EmailMode)
	}
	if cfg.StorageBackend != StorageLocal {
		t.Errorf("StorageBackend = %q, ожидается local", cfg.StorageBackend)
	}
	if cfg.MaxUploadSize != 200<<20 {
		t.Errorf("MaxUploadSize = %d, ожидается %d", cfg.MaxUploadSize, 200<<20)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, ожидается 24h", cfg.SessionTTL)
	}
	if cfg.ActivityRetention != 90*24*time.Hour {
		t.Errorf("ActivityRetention = %v, ожидается 2160h", cfg.ActivityRetention)
	}
	if cfg.ActivityPruneSchedule != "@daily" {
		t.Errorf("ActivityPruneSchedule = %q, ожидается @daily", cfg.ActivityPruneSchedule)
	}
	if cfg.SecureCookie {
		t.Error("SecureCookie = true для http PublicURL, ожидается false")
	}
	if !cfg.UIEnabled {
		t.Error("UIEnabled = false, ожидается true")
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 10s", cfg.ShutdownTimeout)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	envs := minimalEnvs()
	envs["LP_PORT"] = "9000"
	envs["LP_LOG_LEVEL"] = "debug"
	envs["LP_LOG_FORMAT"] = "text"
	envs["LP_PUBLIC_URL"] = "https://portal.example.com/"
	envs["LP_DATA_STRATEGIES"] = "orm, sql"
	envs["LP_CORS_ORIGINS"] = "https://a.example.com, https://b.example.com"
	envs["LP_EMAIL_MODE"] = "production"
	envs["LP_SMTP_HOST"] = "smtp.example.com"
	envs["LP_SMTP_PORT"] = "2525"
	envs["LP_ACTIVITY_RETENTION"] = "720h"
	envs["LP_JWT_SECRET"] = "0123456789abcdef0123456789abcdef"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Port = %d, ожидается 9000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.PublicURL != "https://portal.example.com" {
		t.Errorf("PublicURL = %q, ожидается без trailing slash", cfg.PublicURL)
	}
	if !cfg.SecureCookie {
		t.Error("SecureCookie = false для https PublicURL, ожидается true")
	}
	if len(cfg.DataStrategies) != 2 || cfg.DataStrategies[0] != StrategyORM || cfg.DataStrategies[1] != StrategySQL {
		t.Errorf("DataStrategies = %v, ожидается [orm sql]", cfg.DataStrategies)
	}
	if cfg.HasStrategy(StrategyREST) {
		t.Error("HasStrategy(rest) = true, ожидается false")
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("CORSOrigins = %v, ожидается 2 элемента", cfg.CORSOrigins)
	}
	if cfg.EmailMode != EmailModeProduction || cfg.SMTPPort != 2525 {
		t.Errorf("EmailMode = %q, SMTPPort = %d", cfg.EmailMode, cfg.SMTPPort)
	}
	if cfg.ActivityRetention != 720*time.Hour {
		t.Errorf("ActivityRetention = %v, ожидается 720h", cfg.ActivityRetention)
	}
}

func TestLoad_RESTStrategyNeedsURL(t *testing.T) {
	tests := []struct {
		name        string
		strategies  string
		restURL     string
		wantActive  []string
		wantSkipped []string
		wantErr     bool
	}{
		{"по умолчанию без URL", "", "", []string{"sql", "orm"}, []string{"rest"}, false},
		{"по умолчанию с URL", "", "http://rest:3000", []string{"sql", "orm", "rest"}, nil, false},
		{"rest первым без URL", "rest,orm", "", []string{"orm"}, []string{"rest"}, false},
		{"только rest без URL", "rest", "", nil, nil, true},
		{"только rest с URL", "rest", "https://rest.example.com/", []string{"rest"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			if tt.strategies != "" {
				envs["LP_DATA_STRATEGIES"] = tt.strategies
			}
			envs["LP_REST_URL"] = tt.restURL
			setEnvs(t, envs)

			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("ожидалась ошибка конфигурации")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() вернул ошибку: %v", err)
			}
			if !slices.Equal(cfg.DataStrategies, tt.wantActive) {
				t.Errorf("DataStrategies = %v, ожидается %v", cfg.DataStrategies, tt.wantActive)
			}
			if !slices.Equal(cfg.SkippedStrategies, tt.wantSkipped) {
				t.Errorf("SkippedStrategies = %v, ожидается %v", cfg.SkippedStrategies, tt.wantSkipped)
			}
		})
	}
}

func TestLoad_TrustProxyHeaders(t *testing.T) {
	envs := minimalEnvs()
	envs["LP_TRUST_PROXY_HEADERS"] = "true"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if !cfg.TrustProxyHeaders {
		t.Error("TrustProxyHeaders = false, ожидается true")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	for _, missing := range []string{"LP_DB_HOST", "LP_DB_NAME", "LP_DB_USER", "LP_DB_PASSWORD"} {
		t.Run(missing, func(t *testing.T) {
			envs := minimalEnvs()
			delete(envs, missing)
			resetEnvs(t)
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() не вернул ошибку при отсутствии %s", missing)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"порт вне диапазона", "LP_PORT", "70000"},
		{"порт не число", "LP_PORT", "abc"},
		{"уровень логов", "LP_LOG_LEVEL", "verbose"},
		{"формат логов", "LP_LOG_FORMAT", "xml"},
		{"режим SSL", "LP_DB_SSL_MODE", "prefer"},
		{"неизвестная стратегия", "LP_DATA_STRATEGIES", "sql,nosql"},
		{"повтор стратегии", "LP_DATA_STRATEGIES", "sql,sql"},
		{"REST URL без схемы", "LP_REST_URL", "postgrest:3000"},
		{"короткий JWT секрет", "LP_JWT_SECRET", "short"},
		{"режим email", "LP_EMAIL_MODE", "sandbox"},
		{"бэкенд хранения", "LP_STORAGE_BACKEND", "ftp"},
		{"длительность", "LP_SESSION_TTL", "day"},
		{"bool", "LP_UI_ENABLED", "maybe"},
		{"лимит входов", "LP_LOGIN_RATE_LIMIT", "0"},
		{"размер загрузки", "LP_MAX_UPLOAD_SIZE", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs[tt.key] = tt.value
			resetEnvs(t)
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() не вернул ошибку при %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_S3RequiresCredentials(t *testing.T) {
	envs := minimalEnvs()
	envs["LP_STORAGE_BACKEND"] = "s3"
	envs["LP_S3_ENDPOINT"] = "minio:9000"
	resetEnvs(t)
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("Load() не вернул ошибку без LP_S3_BUCKET")
	}

	envs["LP_S3_BUCKET"] = "releases"
	envs["LP_S3_ACCESS_KEY"] = "minio"
	envs["LP_S3_SECRET_KEY"] = "minio-secret"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.S3Bucket != "releases" || !cfg.S3UseSSL {
		t.Errorf("S3Bucket = %q, S3UseSSL = %v", cfg.S3Bucket, cfg.S3UseSSL)
	}
}

func TestLoad_BootstrapManagerNeedsPassword(t *testing.T) {
	envs := minimalEnvs()
	envs["LP_BOOTSTRAP_MANAGER_EMAIL"] = " Admin@Label.Example "
	resetEnvs(t)
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("Load() не вернул ошибку без LP_BOOTSTRAP_MANAGER_PASSWORD")
	}

	envs["LP_BOOTSTRAP_MANAGER_PASSWORD"] = "change-me-please"
	setEnvs(t, envs)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.BootstrapManagerEmail != "admin@label.example" {
		t.Errorf("BootstrapManagerEmail = %q, ожидается нормализованный email", cfg.BootstrapManagerEmail)
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "db.example.com",
		DBPort:     5432,
		DBName:     "labelportal",
		DBUser:     "user",
		DBPassword: "pass",
		DBSSLMode:  "disable",
	}
	expected := "host=db.example.com port=5432 dbname=labelportal user=user password=pass sslmode=disable"
	if dsn := cfg.DatabaseDSN(); dsn != expected {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", dsn, expected)
	}
	if u := cfg.DatabaseURL(); u != "postgres://db.example.com:5432/labelportal" {
		t.Errorf("DatabaseURL() = %q", u)
	}
}

func TestSetupLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		t.Run(format, func(t *testing.T) {
			wrapped := false
			cfg := &Config{LogLevel: slog.LevelInfo, LogFormat: format}
			logger := SetupLogger(cfg, func(h slog.Handler) slog.Handler {
				wrapped = true
				return h
			})
			if logger == nil {
				t.Fatal("SetupLogger() вернул nil")
			}
			if !wrapped {
				t.Error("обёртка handler не применена")
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"sql", []string{"sql"}},
		{"sql, orm", []string{"sql", "orm"}},
		{"sql,,rest,", []string{"sql", "rest"}},
		{" sql , orm , rest ", []string{"sql", "orm", "rest"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseCSV(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("parseCSV(%q) = %v, ожидается %v", tt.input, result, tt.expected)
			}
			for i, v := range result {
				if v != tt.expected[i] {
					t.Errorf("parseCSV(%q)[%d] = %q, ожидается %q", tt.input, i, v, tt.expected[i])
				}
			}
		})
	}
}
