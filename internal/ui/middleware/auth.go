// Пакет middleware — HTTP middleware веб-интерфейса.
// auth.go — проверка cookie-сессии, redirect на /login без неё.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	apimiddleware "github.com/bigkaa/labelportal/internal/api/middleware"
	"github.com/bigkaa/labelportal/internal/auth"
	"github.com/bigkaa/labelportal/internal/domain/model"
)

// Identifier определяет пользователя запроса (api/middleware.Authenticator).
type Identifier interface {
	Identify(r *http.Request) (*model.User, error)
}

// UIAuth — middleware аутентификации страниц UI.
type UIAuth struct {
	identifier Identifier
	sessions   *auth.SessionManager
	logger     *slog.Logger
}

// NewUIAuth создаёт UIAuth.
func NewUIAuth(identifier Identifier, sessions *auth.SessionManager, logger *slog.Logger) *UIAuth {
	return &UIAuth{
		identifier: identifier,
		sessions:   sessions,
		logger:     logger.With(slog.String("component", "ui_auth_middleware")),
	}
}

// Middleware пропускает только аутентифицированных пользователей.
// Невалидная или устаревшая сессия очищается, клиент уходит на /login.
func (ua *UIAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := ua.identifier.Identify(r)
			if err != nil {
				if !errors.Is(err, apimiddleware.ErrUnauthenticated) {
					ua.logger.Error("Ошибка определения пользователя",
						slog.String("error", err.Error()),
						slog.String("remote_addr", r.RemoteAddr),
					)
					http.Error(w, "Сервис временно недоступен", http.StatusServiceUnavailable)
					return
				}
				ua.sessions.Clear(w)
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(apimiddleware.WithUser(r.Context(), u)))
		})
	}
}

// UserFromContext — пользователь страницы. nil вне UIAuth.
func UserFromContext(r *http.Request) *model.User {
	return apimiddleware.UserFromContext(r.Context())
}
