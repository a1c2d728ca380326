// auth.go — обработчики /api/auth endpoints.
// Регистрация, вход и выход (cookie сессии), текущий пользователь,
// выпуск bearer-токена и смена пароля.
package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/labelportal/internal/api/errors"
	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/service"
)

type sessionResponse struct {
	User      userResponse `json:"user"`
	ExpiresAt int64        `json:"expires_at"`
}

// Register — POST /api/auth/register.
// Самостоятельная регистрация, роль всегда Artist. Сразу открывает сессию.
func (h *APIHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	u, err := h.svc.Auth.Register(r.Context(), service.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		ArtistName: req.ArtistName,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.startSession(w, http.StatusCreated, u)
}

// Login — POST /api/auth/login.
// 401 — неверные учётные данные, 403 — пользователь деактивирован.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	u, err := h.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.startSession(w, http.StatusOK, u)
}

func (h *APIHandler) startSession(w http.ResponseWriter, status int, u *model.User) {
	session, err := h.sessions.Issue(w, u.ID, u.Email, u.Role)
	if err != nil {
		h.logger.Error("Ошибка создания сессии",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Не удалось создать сессию")
		return
	}
	writeJSON(w, status, sessionResponse{User: mapUser(u), ExpiresAt: session.ExpiresAt})
}

// Logout — POST /api/auth/logout. Удаляет cookie сессии.
func (h *APIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	h.svc.Auth.Logout(r.Context(), u)
	h.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me — GET /api/auth/me.
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mapUser(u))
}

// IssueToken — POST /api/auth/token.
// Выпускает HS256 bearer-токен для API-клиентов текущего пользователя.
func (h *APIHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	token, expiresAt, err := h.svc.Auth.IssueToken(u)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, TokenType: "Bearer", ExpiresAt: expiresAt})
}

// ChangePassword — PUT /api/auth/password.
func (h *APIHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if err := h.svc.Auth.ChangePassword(r.Context(), u, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
