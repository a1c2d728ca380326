// auth.go — аутентификация запросов к API.
// Источники учётных данных по порядку: Bearer-токен портала (HS256),
// Bearer-токен внешнего IdP (RS256 через JWKS), cookie сессии.
// Пользователь загружается из БД (через кэш) и кладётся в контекст.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/labelportal/internal/api/errors"
	"github.com/bigkaa/labelportal/internal/auth"
	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/service"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyUser — текущий пользователь в контексте запроса.
	ContextKeyUser contextKey = "current_user"
)

// ErrUnauthenticated — в запросе нет учётных данных или они невалидны.
var ErrUnauthenticated = errors.New("требуется аутентификация")

// UserResolver — загрузка активного пользователя по ID или email.
// Реализуется service.AuthService.
type UserResolver interface {
	ResolveByID(ctx context.Context, id string) (*model.User, error)
	ResolveByEmail(ctx context.Context, addr string) (*model.User, error)
}

// ExternalTokenVerifier — проверка токенов внешнего IdP.
type ExternalTokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Authenticator определяет текущего пользователя запроса.
type Authenticator struct {
	sessions *auth.SessionManager
	tokens   *auth.TokenIssuer
	external ExternalTokenVerifier
	users    UserResolver
	logger   *slog.Logger
}

// NewAuthenticator создаёт аутентификатор. external может быть nil,
// если внешний IdP не настроен.
func NewAuthenticator(
	sessions *auth.SessionManager,
	tokens *auth.TokenIssuer,
	external ExternalTokenVerifier,
	users UserResolver,
	logger *slog.Logger,
) *Authenticator {
	return &Authenticator{
		sessions: sessions,
		tokens:   tokens,
		external: external,
		users:    users,
		logger:   logger.With(slog.String("component", "authenticator")),
	}
}

// Identify возвращает пользователя запроса.
// ErrUnauthenticated — учётных данных нет, они невалидны или пользователь
// не найден либо деактивирован. Прочие ошибки — сбой загрузки пользователя.
func (a *Authenticator) Identify(r *http.Request) (*model.User, error) {
	ctx := r.Context()

	if raw := auth.BearerToken(r); raw != "" {
		return a.fromBearer(ctx, raw, r.RemoteAddr)
	}

	session, err := a.sessions.FromRequest(r)
	if err != nil {
		a.logger.Debug("Сессия отклонена",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr),
		)
		return nil, ErrUnauthenticated
	}
	if session == nil {
		return nil, ErrUnauthenticated
	}
	return a.resolve(a.users.ResolveByID(ctx, session.UserID))
}

// fromBearer проверяет токен портала, затем токен внешнего IdP.
func (a *Authenticator) fromBearer(ctx context.Context, raw, remoteAddr string) (*model.User, error) {
	claims, err := a.tokens.Verify(raw)
	if err == nil {
		return a.resolve(a.users.ResolveByID(ctx, claims.Subject))
	}
	if a.external == nil {
		a.logger.Debug("JWT валидация не пройдена",
			slog.String("error", err.Error()),
			slog.String("remote_addr", remoteAddr),
		)
		return nil, ErrUnauthenticated
	}

	addr, extErr := a.external.Verify(ctx, raw)
	if extErr != nil {
		a.logger.Debug("JWT валидация не пройдена",
			slog.String("error", extErr.Error()),
			slog.String("remote_addr", remoteAddr),
		)
		return nil, ErrUnauthenticated
	}
	return a.resolve(a.users.ResolveByEmail(ctx, addr))
}

// resolve сводит «нет такого» и «деактивирован» к ErrUnauthenticated.
func (a *Authenticator) resolve(u *model.User, err error) (*model.User, error) {
	switch {
	case err == nil:
		return u, nil
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrInactiveUser):
		return nil, ErrUnauthenticated
	default:
		return nil, err
	}
}

// Middleware требует аутентификации: без пользователя — 401.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := a.Identify(r)
			if err != nil {
				if errors.Is(err, ErrUnauthenticated) {
					apierrors.Unauthorized(w, "Требуется вход в систему")
					return
				}
				apierrors.FromService(w, a.logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// WithUser кладёт пользователя в контекст.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, ContextKeyUser, u)
}

// UserFromContext извлекает пользователя из контекста запроса.
// Возвращает nil, если запрос не аутентифицирован.
func UserFromContext(ctx context.Context) *model.User {
	u, _ := ctx.Value(ContextKeyUser).(*model.User)
	return u
}

// RequireRole возвращает middleware, проверяющий минимальную роль.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromContext(r.Context())
			if u == nil {
				apierrors.Unauthorized(w, "Требуется вход в систему")
				return
			}
			if !rbac.AtLeast(u.Role, role) {
				apierrors.Forbidden(w, "Требуется роль "+rbac.RoleTitle(role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestMeta кладёт IP клиента и User-Agent в контекст для журнала действий.
// IP берётся из RemoteAddr: при работе за прокси его подставляет chi RealIP.
func RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := service.WithRequestMeta(r.Context(), service.RequestMeta{
			IP:        clientIP(r.RemoteAddr),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP отрезает порт от RemoteAddr.
func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return strings.TrimSpace(remoteAddr)
}
