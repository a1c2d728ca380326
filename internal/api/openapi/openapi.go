// openapi.go — OpenAPI-документ JSON API: загрузка, проверка, публикация
// и валидация входящих запросов (kin-openapi).
package openapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	apierrors "github.com/bigkaa/labelportal/internal/api/errors"
)

//go:embed openapi.yaml
var specYAML []byte

// Spec — проверенный документ с маршрутизатором для валидации.
type Spec struct {
	doc    *openapi3.T
	router routers.Router
	json   []byte
}

// Load разбирает встроенный документ и проверяет его корректность.
func Load(ctx context.Context) (*Spec, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(specYAML)
	if err != nil {
		return nil, fmt.Errorf("разбор OpenAPI: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("проверка OpenAPI: %w", err)
	}

	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("маршрутизатор OpenAPI: %w", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("сериализация OpenAPI: %w", err)
	}
	return &Spec{doc: doc, router: router, json: data}, nil
}

// Version — версия API из документа.
func (s *Spec) Version() string {
	return s.doc.Info.Version
}

// ServeHTTP отдаёт документ в JSON (GET /api/openapi.json).
func (s *Spec) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(s.json)
}

// Validator проверяет параметры и тела запросов к /api/ по документу.
// Маршруты, которых нет в документе, пропускаются: ответ 404/405 даёт chi.
// multipart-тела не читаются, их разбирает обработчик загрузки потоком.
func (s *Spec) Validator(logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With(slog.String("component", "openapi_validator"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			route, pathParams, err := s.router.FindRoute(r)
			if err != nil {
				if !errors.Is(err, routers.ErrPathNotFound) && !errors.Is(err, routers.ErrMethodNotAllowed) {
					log.Debug("Маршрут не найден в OpenAPI",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
				}
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
					ExcludeRequestBody: isMultipart(r),
				},
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				log.Debug("Запрос не прошёл проверку OpenAPI",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				apierrors.ValidationError(w, describe(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mt, "multipart/")
}

// describe сокращает ошибку kin-openapi до сообщения для клиента.
func describe(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			return fmt.Sprintf("Некорректный параметр %s: %s", reqErr.Parameter.Name, reason(reqErr))
		}
		if reqErr.RequestBody != nil {
			return "Некорректное тело запроса: " + reason(reqErr)
		}
	}
	return "Запрос не соответствует API: " + err.Error()
}

func reason(e *openapi3filter.RequestError) string {
	var schemaErr *openapi3.SchemaError
	if errors.As(e.Err, &schemaErr) {
		field := strings.Join(schemaErr.JSONPointer(), ".")
		if field != "" {
			return field + ": " + schemaErr.Reason
		}
		return schemaErr.Reason
	}
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "ошибка проверки"
}
