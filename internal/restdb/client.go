// Пакет restdb — REST-стратегия multiDB: клиент PostgREST-совместимого API
// (например, Supabase REST) поверх тех же таблиц PostgreSQL.
// Поддерживает TLS с кастомным CA (LP_REST_CA_CERT_PATH).
package restdb

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/labelportal/internal/repository"
)

// ErrUnexpectedStatus — REST API вернул неожиданный HTTP-статус.
var ErrUnexpectedStatus = errors.New("неожиданный ответ REST API")

// Config — параметры подключения к REST API.
type Config struct {
	// URL — базовый адрес проекта (без /rest/v1)
	URL    string
	APIKey string
	// Timeout — таймаут одного запроса
	Timeout    time.Duration
	CACertPath string
}

// Client — HTTP-клиент PostgREST.
type Client struct {
	httpClient *http.Client
	prefix     string
	apiKey     string
	logger     *slog.Logger
}

// New создаёт REST-клиент.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("не задан URL REST API")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	if cfg.CACertPath != "" {
		tlsConfig, err := buildTLSConfig(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата REST API: %w", err)
		}
		httpClient.Transport = &http.Transport{TLSClientConfig: tlsConfig}
		logger.Info("CA-сертификат REST API добавлен в пул доверия",
			slog.String("ca_cert", cfg.CACertPath),
		)
	}

	return &Client{
		httpClient: httpClient,
		prefix:     strings.TrimRight(cfg.URL, "/") + "/rest/v1",
		apiKey:     cfg.APIKey,
		logger:     logger.With(slog.String("component", "rest_client")),
	}, nil
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("в %s нет PEM-сертификатов", caCertPath)
	}

	return &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}

// request — один запрос к таблице.
type request struct {
	method string
	table  string
	query  url.Values
	body   any
	// prefer — значение заголовка Prefer (return=representation, count=exact)
	prefer []string
}

// response — разобранный ответ.
type response struct {
	status int
	body   []byte
	// total — значение после '/' в Content-Range (-1, если не передано)
	total int
}

// do выполняет запрос и проверяет статус.
// 409 — ErrConflict, остальные не-2xx — ErrUnexpectedStatus.
func (c *Client) do(ctx context.Context, r request) (*response, error) {
	reqURL := c.prefix + "/" + url.PathEscape(r.table)
	if len(r.query) > 0 {
		reqURL += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("кодирование тела запроса: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("создание запроса %s %s: %w", r.method, r.table, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if len(r.prefer) > 0 {
		req.Header.Set("Prefer", strings.Join(r.prefer, ","))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос %s %s: %w", r.method, r.table, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("чтение ответа %s %s: %w", r.method, r.table, err)
	}

	switch {
	case resp.StatusCode == http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", repository.ErrConflict, apiMessage(data))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s %s вернул статус %d: %s",
			ErrUnexpectedStatus, r.method, r.table, resp.StatusCode, apiMessage(data))
	}

	return &response{
		status: resp.StatusCode,
		body:   data,
		total:  parseContentRange(resp.Header.Get("Content-Range")),
	}, nil
}

// selectRows выполняет GET и декодирует массив строк в out.
func (c *Client) selectRows(ctx context.Context, table string, q url.Values, out any) error {
	resp, err := c.do(ctx, request{method: http.MethodGet, table: table, query: q})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("декодирование ответа %s: %w", table, err)
	}
	return nil
}

// count возвращает число строк по фильтру (Prefer: count=exact).
func (c *Client) count(ctx context.Context, table string, q url.Values) (int, error) {
	cq := cloneValues(q)
	cq.Set("select", "id")
	cq.Set("limit", "1")
	resp, err := c.do(ctx, request{
		method: http.MethodGet, table: table, query: cq, prefer: []string{"count=exact"},
	})
	if err != nil {
		return 0, err
	}
	if resp.total < 0 {
		return 0, fmt.Errorf("%w: нет Content-Range в ответе %s", ErrUnexpectedStatus, table)
	}
	return resp.total, nil
}

// mutate выполняет POST/PATCH с return=representation и декодирует
// изменённые строки в out (может быть nil).
func (c *Client) mutate(ctx context.Context, method, table string, q url.Values, body, out any) error {
	resp, err := c.do(ctx, request{
		method: method, table: table, query: q, body: body,
		prefer: []string{"return=representation"},
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("декодирование ответа %s: %w", table, err)
	}
	return nil
}

// Ping проверяет доступность REST API (корень /rest/v1/).
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.prefix+"/", nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("REST API недоступен: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: статус %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

// parseContentRange извлекает total из "0-24/137" или "*/0".
func parseContentRange(h string) int {
	i := strings.LastIndexByte(h, '/')
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(h[i+1:])
	if err != nil {
		return -1
	}
	return n
}

// apiMessage достаёт message из JSON-ошибки PostgREST или возвращает тело как есть.
func apiMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		if e.Code != "" {
			return e.Code + ": " + e.Message
		}
		return e.Message
	}
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func cloneValues(q url.Values) url.Values {
	out := make(url.Values, len(q)+2)
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// eq — фильтр равенства PostgREST.
func eq(v string) string { return "eq." + v }

// ilikeAny строит or=(col.ilike."*q*",...) для поиска по подстроке.
func ilikeAny(q string, cols ...string) string {
	esc := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(q)
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf(`%s.ilike."*%s*"`, col, esc)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// page добавляет сортировку и пагинацию.
func page(q url.Values, limit, offset int) {
	q.Set("order", "created_at.desc,id.asc")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
}
