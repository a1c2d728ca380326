// Пакет handlers — HTTP-обработчики веб-интерфейса портала.
// Страницы работают через тот же сервисный слой, что и JSON API.
package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	apierrors "github.com/bigkaa/labelportal/internal/api/errors"
	"github.com/bigkaa/labelportal/internal/auth"
	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/service"
	"github.com/bigkaa/labelportal/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/labelportal/internal/ui/middleware"
	"github.com/bigkaa/labelportal/internal/ui/pages"
)

// Размер страницы таблиц UI.
const uiPageSize = 25

// Services — сервисы, которыми пользуется UI.
type Services struct {
	Auth          *service.AuthService
	Users         *service.UserService
	Submissions   *service.SubmissionService
	Files         *service.FileService
	Activity      *service.ActivityService
	Settings      *service.SettingsService
	Notifications *service.NotificationService
}

// Handler — обработчики страниц UI.
type Handler struct {
	svc      Services
	sessions *auth.SessionManager
	logger   *slog.Logger
}

// NewHandler создаёт обработчик страниц.
func NewHandler(svc Services, sessions *auth.SessionManager, logger *slog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "ui")),
	}
}

// render пишет страницу. Ошибку рендеринга можно только залогировать:
// заголовки к этому моменту уже отправлены.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		h.logger.Error("Ошибка рендеринга страницы",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

// nav собирает шапку: пользователь, раздел, сообщения из query (flash, error).
func (h *Handler) nav(r *http.Request, section string) pages.Nav {
	q := r.URL.Query()
	nav := pages.Nav{
		User:   uimiddleware.UserFromContext(r),
		Active: section,
		Error:  q.Get("error"),
	}
	if key := q.Get("flash"); key != "" {
		nav.Flash = i18n.T(r.Context(), "flash."+key)
	}
	return nav
}

// message — текст ошибки для пользователя. Внутренние ошибки логируются
// и заменяются общим сообщением.
func (h *Handler) message(r *http.Request, err error) string {
	status, _ := apierrors.Classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Ошибка обработки запроса UI",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		return i18n.T(r.Context(), "error.internal")
	}
	return err.Error()
}

// fail показывает ошибку на странице с кодом статуса сервиса.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := apierrors.Classify(err)
	nav := h.nav(r, "")
	nav.Error = h.message(r, err)
	h.render(w, r, status, pages.Layout(i18n.T(r.Context(), "error.title"), nav, nil))
}

// redirect — переход после POST с flash-ключом или текстом ошибки.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, path, flash string, err error) {
	q := url.Values{}
	if err != nil {
		q.Set("error", h.message(r, err))
	} else if flash != "" {
		q.Set("flash", flash)
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// currentUser — пользователь из контекста. Маршруты стоят за UIAuth.
func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	u := uimiddleware.UserFromContext(r)
	if u == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return nil, false
	}
	return u, true
}

func subject(u *model.User) rbac.Subject {
	return rbac.Subject{ID: u.ID, Role: u.Role}
}

// pageParam — номер страницы из query (с 1).
func pageParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func uiPage(n int) service.Page {
	return service.NewPage(uiPageSize, (n-1)*uiPageSize)
}

// newPager — пагинация с сохранением фильтров.
func newPager(r *http.Request, n, total int) pages.Pager {
	q := r.URL.Query()
	q.Del("page")
	q.Del("flash")
	q.Del("error")
	totalPages := (total + uiPageSize - 1) / uiPageSize
	if totalPages < 1 {
		totalPages = 1
	}
	return pages.Pager{Page: n, TotalPages: totalPages, Total: total, Query: q, Path: r.URL.Path}
}

// optional — nil для пустой строки формы.
func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
