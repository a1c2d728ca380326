// handler.go — основной обработчик JSON API.
// Объединяет все доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/labelportal/internal/api/errors"
	"github.com/bigkaa/labelportal/internal/api/middleware"
	"github.com/bigkaa/labelportal/internal/auth"
	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/service"
)

// Services — сервисы, которыми пользуется API.
type Services struct {
	Auth          *service.AuthService
	Users         *service.UserService
	Submissions   *service.SubmissionService
	Artists       *service.ArtistService
	Files         *service.FileService
	Activity      *service.ActivityService
	Settings      *service.SettingsService
	Notifications *service.NotificationService
	DebugLogs     *service.DebugLogService
}

// APIHandler — основной обработчик API портала.
type APIHandler struct {
	health   *HealthHandler
	svc      Services
	sessions *auth.SessionManager
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(health *HealthHandler, svc Services, sessions *auth.SessionManager, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		health:   health,
		svc:      svc,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// fail пишет ответ для ошибки сервисного слоя.
func (h *APIHandler) fail(w http.ResponseWriter, err error) {
	apierrors.FromService(w, h.logger, err)
}

// currentUser — пользователь из контекста. Маршруты с ним всегда
// стоят за Authenticator, nil здесь означает ошибку конфигурации роутера.
func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	u := middleware.UserFromContext(r.Context())
	if u == nil {
		apierrors.Unauthorized(w, "Требуется вход в систему")
		return nil, false
	}
	return u, true
}

// pathID разбирает UUID из параметра пути.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		apierrors.ValidationError(w, "Некорректный параметр "+name+": ожидается UUID")
		return "", false
	}
	return id.String(), true
}

// listParams — общие параметры пагинации списков.
type listParams struct {
	Limit  *int
	Offset *int
}

// bindPage разбирает limit/offset из query.
func bindPage(w http.ResponseWriter, r *http.Request) (service.Page, bool) {
	var p listParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &p.Limit); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр limit: "+err.Error())
		return service.Page{}, false
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", q, &p.Offset); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр offset: "+err.Error())
		return service.Page{}, false
	}
	return paginationDefaults(p.Limit, p.Offset), true
}

// bindString разбирает необязательный строковый параметр query.
func bindString(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v *string
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &v); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр "+name+": "+err.Error())
		return "", false
	}
	if v == nil {
		return "", true
	}
	return *v, true
}

// paginationDefaults нормализует параметры пагинации.
func paginationDefaults(limit *int, offset *int) service.Page {
	l, o := 0, 0
	if limit != nil {
		l = *limit
	}
	if offset != nil {
		o = *offset
	}
	return service.NewPage(l, o)
}
