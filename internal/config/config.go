// Пакет config — загрузка и валидация конфигурации Label Portal
// из переменных окружения (префикс LP_).
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые стратегии доступа к данным (multiDB).
const (
	StrategySQL  = "sql"
	StrategyORM  = "orm"
	StrategyREST = "rest"
)

// Режимы отправки email.
const (
	EmailModeDemo       = "demo"
	EmailModeProduction = "production"
)

// Бэкенды хранения загруженных файлов.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config содержит все параметры конфигурации Label Portal.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Публичный URL портала (для ссылок в письмах)
	PublicURL string
	// Разрешённые CORS origins
	CORSOrigins []string
	// Лимит попыток входа/регистрации в минуту с одного IP
	LoginRateLimit int
	// Доверять X-Forwarded-For / X-Real-IP (только за доверенным прокси)
	TrustProxyHeaders bool
	// Размер кольцевого буфера отладочных логов
	DebugLogBufferSize int
	// Включён ли веб-интерфейс
	UIEnabled bool

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимальное число соединений в пуле (0 — значение pgxpool по умолчанию)
	DBMaxConns int

	// --- multiDB ---

	// Порядок стратегий доступа к данным (sql, orm, rest)
	DataStrategies []string
	// Стратегии из LP_DATA_STRATEGIES, исключённые из-за неполной настройки
	SkippedStrategies []string
	// Базовый URL PostgREST-совместимого API (стратегия rest)
	RESTURL string
	// API-ключ для REST API
	RESTAPIKey string
	// CA-сертификат для TLS к REST API (пусто — системный пул)
	RESTCACertPath string
	// Таймаут запросов к REST API
	RESTTimeout time.Duration
	// Число последовательных ошибок до размыкания circuit breaker
	BreakerFailures int
	// Время, на которое стратегия исключается после размыкания
	BreakerTimeout time.Duration

	// --- Аутентификация ---

	// Ключ шифрования cookie-сессий (base64 32 байта или произвольная строка)
	SessionSecret string
	// Время жизни сессии
	SessionTTL time.Duration
	// Secure flag для cookie
	SecureCookie bool
	// Секрет подписи HS256 токенов API
	JWTSecret string
	// Время жизни токена API
	JWTTTL time.Duration
	// Issuer выпускаемых токенов
	JWTIssuer string
	// JWKS внешнего IdP (опционально, RS256)
	JWTJWKSURL string
	// Ожидаемый issuer токенов внешнего IdP
	JWTExternalIssuer string
	// Допустимое отклонение часов при проверке токенов
	JWTLeeway time.Duration
	// Размер кэша пользователей
	UserCacheSize int
	// TTL записи кэша пользователей
	UserCacheTTL time.Duration
	// Первый Label Manager (создаётся, если менеджеров нет)
	BootstrapManagerEmail    string
	BootstrapManagerPassword string

	// --- Email ---

	// Режим по умолчанию (demo, production), может переопределяться в настройках
	EmailMode    string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPUseTLS   bool
	SMTPTimeout  time.Duration

	// --- Хранилище файлов ---

	// Бэкенд хранения (local, s3)
	StorageBackend string
	// Директория для local
	StorageDir string
	// Максимальный размер загружаемого файла в байтах
	MaxUploadSize int64
	S3Endpoint    string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	S3Region      string
	S3UseSSL      bool
	// Время жизни presigned URL
	S3PresignTTL time.Duration

	// --- Журнал действий ---

	// Срок хранения записей журнала (0 — хранить бессрочно)
	ActivityRetention time.Duration
	// Расписание очистки журнала (cron)
	ActivityPruneSchedule string

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// LP_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("LP_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("LP_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("LP_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("LP_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LP_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("LP_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LP_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.PublicURL = strings.TrimRight(getEnvDefault("LP_PUBLIC_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")
	cfg.CORSOrigins = parseCSV(getEnvDefault("LP_CORS_ORIGINS", ""))

	cfg.LoginRateLimit, err = getEnvInt("LP_LOGIN_RATE_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("LP_LOGIN_RATE_LIMIT: %w", err)
	}
	if cfg.LoginRateLimit < 1 {
		return nil, fmt.Errorf("LP_LOGIN_RATE_LIMIT: значение должно быть положительным, получено %d", cfg.LoginRateLimit)
	}

	cfg.TrustProxyHeaders, err = getEnvBool("LP_TRUST_PROXY_HEADERS", false)
	if err != nil {
		return nil, fmt.Errorf("LP_TRUST_PROXY_HEADERS: %w", err)
	}

	cfg.DebugLogBufferSize, err = getEnvInt("LP_DEBUG_LOG_BUFFER", 500)
	if err != nil {
		return nil, fmt.Errorf("LP_DEBUG_LOG_BUFFER: %w", err)
	}
	if cfg.DebugLogBufferSize < 0 || cfg.DebugLogBufferSize > 100000 {
		return nil, fmt.Errorf("LP_DEBUG_LOG_BUFFER: значение %d вне допустимого диапазона 0-100000", cfg.DebugLogBufferSize)
	}

	cfg.UIEnabled, err = getEnvBool("LP_UI_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("LP_UI_ENABLED: %w", err)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("LP_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("LP_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("LP_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("LP_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("LP_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("LP_DB_PASSWORD"); err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("LP_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("LP_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	cfg.DBMaxConns, err = getEnvInt("LP_DB_MAX_CONNS", 0)
	if err != nil {
		return nil, fmt.Errorf("LP_DB_MAX_CONNS: %w", err)
	}

	// --- multiDB ---

	cfg.DataStrategies = parseCSV(getEnvDefault("LP_DATA_STRATEGIES", "sql,orm,rest"))
	if err := validateStrategies(cfg.DataStrategies); err != nil {
		return nil, fmt.Errorf("LP_DATA_STRATEGIES: %w", err)
	}

	cfg.RESTURL = strings.TrimRight(getEnvDefault("LP_REST_URL", ""), "/")
	if cfg.RESTURL != "" {
		if err := validateHTTPURL(cfg.RESTURL); err != nil {
			return nil, fmt.Errorf("LP_REST_URL: %w", err)
		}
	}
	// REST без URL не настроен: стратегия исключается из цепочки,
	// main выводит предупреждение по SkippedStrategies.
	if cfg.RESTURL == "" && cfg.HasStrategy(StrategyREST) {
		cfg.DataStrategies = slices.DeleteFunc(cfg.DataStrategies, func(s string) bool { return s == StrategyREST })
		cfg.SkippedStrategies = append(cfg.SkippedStrategies, StrategyREST)
		if len(cfg.DataStrategies) == 0 {
			return nil, fmt.Errorf("LP_DATA_STRATEGIES: стратегия rest требует LP_REST_URL")
		}
	}
	cfg.RESTAPIKey = getEnvDefault("LP_REST_API_KEY", "")
	cfg.RESTCACertPath = getEnvDefault("LP_REST_CA_CERT_PATH", "")

	cfg.RESTTimeout, err = getEnvDuration("LP_REST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LP_REST_TIMEOUT: %w", err)
	}

	cfg.BreakerFailures, err = getEnvInt("LP_BREAKER_FAILURES", 5)
	if err != nil {
		return nil, fmt.Errorf("LP_BREAKER_FAILURES: %w", err)
	}
	if cfg.BreakerFailures < 1 {
		return nil, fmt.Errorf("LP_BREAKER_FAILURES: значение должно быть положительным, получено %d", cfg.BreakerFailures)
	}

	cfg.BreakerTimeout, err = getEnvDuration("LP_BREAKER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LP_BREAKER_TIMEOUT: %w", err)
	}

	// --- Аутентификация ---

	cfg.SessionSecret = getEnvDefault("LP_SESSION_SECRET", "")
	cfg.SessionTTL, err = getEnvDuration("LP_SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LP_SESSION_TTL: %w", err)
	}
	cfg.SecureCookie, err = getEnvBool("LP_SECURE_COOKIE", strings.HasPrefix(cfg.PublicURL, "https://"))
	if err != nil {
		return nil, fmt.Errorf("LP_SECURE_COOKIE: %w", err)
	}

	cfg.JWTSecret = getEnvDefault("LP_JWT_SECRET", "")
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("LP_JWT_SECRET: секрет должен быть не короче 32 символов")
	}
	cfg.JWTTTL, err = getEnvDuration("LP_JWT_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LP_JWT_TTL: %w", err)
	}
	cfg.JWTIssuer = getEnvDefault("LP_JWT_ISSUER", "labelportal")
	cfg.JWTJWKSURL = getEnvDefault("LP_JWT_JWKS_URL", "")
	if cfg.JWTJWKSURL != "" {
		if err := validateHTTPURL(cfg.JWTJWKSURL); err != nil {
			return nil, fmt.Errorf("LP_JWT_JWKS_URL: %w", err)
		}
	}
	cfg.JWTExternalIssuer = getEnvDefault("LP_JWT_EXTERNAL_ISSUER", "")
	cfg.JWTLeeway, err = getEnvDuration("LP_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LP_JWT_LEEWAY: %w", err)
	}

	cfg.UserCacheSize, err = getEnvInt("LP_USER_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("LP_USER_CACHE_SIZE: %w", err)
	}
	if cfg.UserCacheSize < 1 {
		return nil, fmt.Errorf("LP_USER_CACHE_SIZE: значение должно быть положительным, получено %d", cfg.UserCacheSize)
	}
	cfg.UserCacheTTL, err = getEnvDuration("LP_USER_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LP_USER_CACHE_TTL: %w", err)
	}

	cfg.BootstrapManagerEmail = strings.ToLower(strings.TrimSpace(getEnvDefault("LP_BOOTSTRAP_MANAGER_EMAIL", "")))
	cfg.BootstrapManagerPassword = getEnvDefault("LP_BOOTSTRAP_MANAGER_PASSWORD", "")
	if cfg.BootstrapManagerEmail != "" && cfg.BootstrapManagerPassword == "" {
		return nil, fmt.Errorf("LP_BOOTSTRAP_MANAGER_PASSWORD: обязателен при заданном LP_BOOTSTRAP_MANAGER_EMAIL")
	}

	// --- Email ---

	cfg.EmailMode = getEnvDefault("LP_EMAIL_MODE", EmailModeDemo)
	if cfg.EmailMode != EmailModeDemo && cfg.EmailMode != EmailModeProduction {
		return nil, fmt.Errorf("LP_EMAIL_MODE: недопустимое значение %q, допустимые: demo, production", cfg.EmailMode)
	}
	cfg.SMTPHost = getEnvDefault("LP_SMTP_HOST", "")
	cfg.SMTPPort, err = getEnvInt("LP_SMTP_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("LP_SMTP_PORT: %w", err)
	}
	cfg.SMTPUsername = getEnvDefault("LP_SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvDefault("LP_SMTP_PASSWORD", "")
	cfg.SMTPFrom = getEnvDefault("LP_SMTP_FROM", "noreply@labelportal.local")
	cfg.SMTPFromName = getEnvDefault("LP_SMTP_FROM_NAME", "Label Portal")
	cfg.SMTPUseTLS, err = getEnvBool("LP_SMTP_TLS", true)
	if err != nil {
		return nil, fmt.Errorf("LP_SMTP_TLS: %w", err)
	}
	cfg.SMTPTimeout, err = getEnvDuration("LP_SMTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LP_SMTP_TIMEOUT: %w", err)
	}

	// --- Хранилище ---

	cfg.StorageBackend = getEnvDefault("LP_STORAGE_BACKEND", StorageLocal)
	switch cfg.StorageBackend {
	case StorageLocal:
		cfg.StorageDir = getEnvDefault("LP_STORAGE_DIR", "./data/uploads")
	case StorageS3:
		if cfg.S3Endpoint, err = getEnvRequired("LP_S3_ENDPOINT"); err != nil {
			return nil, err
		}
		if cfg.S3Bucket, err = getEnvRequired("LP_S3_BUCKET"); err != nil {
			return nil, err
		}
		if cfg.S3AccessKey, err = getEnvRequired("LP_S3_ACCESS_KEY"); err != nil {
			return nil, err
		}
		if cfg.S3SecretKey, err = getEnvRequired("LP_S3_SECRET_KEY"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("LP_STORAGE_BACKEND: недопустимое значение %q, допустимые: local, s3", cfg.StorageBackend)
	}
	cfg.S3Region = getEnvDefault("LP_S3_REGION", "us-east-1")
	cfg.S3UseSSL, err = getEnvBool("LP_S3_USE_SSL", true)
	if err != nil {
		return nil, fmt.Errorf("LP_S3_USE_SSL: %w", err)
	}
	cfg.S3PresignTTL, err = getEnvDuration("LP_S3_PRESIGN_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("LP_S3_PRESIGN_TTL: %w", err)
	}

	maxUpload, err := getEnvInt("LP_MAX_UPLOAD_SIZE", 200<<20)
	if err != nil {
		return nil, fmt.Errorf("LP_MAX_UPLOAD_SIZE: %w", err)
	}
	if maxUpload < 1 {
		return nil, fmt.Errorf("LP_MAX_UPLOAD_SIZE: значение должно быть положительным, получено %d", maxUpload)
	}
	cfg.MaxUploadSize = int64(maxUpload)

	// --- Журнал действий ---

	cfg.ActivityRetention, err = getEnvDuration("LP_ACTIVITY_RETENTION", 90*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LP_ACTIVITY_RETENTION: %w", err)
	}
	cfg.ActivityPruneSchedule = getEnvDefault("LP_ACTIVITY_PRUNE_SCHEDULE", "@daily")

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("LP_DEPHEALTH_GROUP", "labelportal")
	cfg.DephealthCheckInterval, err = getEnvDuration("LP_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LP_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("LP_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LP_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// HasStrategy сообщает, включена ли стратегия доступа к данным.
func (c *Config) HasStrategy(name string) bool {
	for _, s := range c.DataStrategies {
		if s == name {
			return true
		}
	}
	return false
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
// wrappers оборачивают базовый handler (например, буфер отладочных логов).
func SetupLogger(cfg *Config, wrappers ...func(slog.Handler) slog.Handler) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	for _, wrap := range wrappers {
		handler = wrap(handler)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// validateStrategies проверяет список стратегий: непустой, без повторов,
// только известные имена.
func validateStrategies(strategies []string) error {
	if len(strategies) == 0 {
		return fmt.Errorf("нужна хотя бы одна стратегия")
	}
	seen := make(map[string]bool, len(strategies))
	for _, s := range strategies {
		switch s {
		case StrategySQL, StrategyORM, StrategyREST:
		default:
			return fmt.Errorf("неизвестная стратегия %q, допустимые: sql, orm, rest", s)
		}
		if seen[s] {
			return fmt.Errorf("стратегия %q указана дважды", s)
		}
		seen[s] = true
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("некорректный URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q должен начинаться с http:// или https://", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("в URL %q отсутствует хост", raw)
	}
	return nil
}
