// auth.go — вход, регистрация и выход через формы UI.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/service"
	"github.com/bigkaa/labelportal/internal/ui/pages"
)

// LoginPage — GET /login.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pages.Login(pages.AuthFormData{}))
}

// LoginSubmit — POST /login.
func (h *Handler) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, pages.Login(pages.AuthFormData{Error: err.Error()}))
		return
	}
	addr := strings.TrimSpace(r.PostFormValue("email"))

	u, err := h.svc.Auth.Login(r.Context(), addr, r.PostFormValue("password"))
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, service.ErrInactiveUser) {
			status = http.StatusForbidden
		}
		h.render(w, r, status, pages.Login(pages.AuthFormData{Email: addr, Error: h.message(r, err)}))
		return
	}
	h.startSession(w, r, u)
}

// RegisterPage — GET /register.
func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pages.Register(pages.AuthFormData{}))
}

// RegisterSubmit — POST /register. Новый пользователь всегда Artist.
func (h *Handler) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, pages.Register(pages.AuthFormData{Error: err.Error()}))
		return
	}
	form := pages.AuthFormData{
		Email:      strings.TrimSpace(r.PostFormValue("email")),
		Name:       strings.TrimSpace(r.PostFormValue("name")),
		ArtistName: strings.TrimSpace(r.PostFormValue("artist_name")),
	}

	u, err := h.svc.Auth.Register(r.Context(), service.RegisterInput{
		Email:      form.Email,
		Password:   r.PostFormValue("password"),
		Name:       form.Name,
		ArtistName: form.ArtistName,
	})
	if err != nil {
		form.Error = h.message(r, err)
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrConflict) {
			status = http.StatusConflict
		}
		h.render(w, r, status, pages.Register(form))
		return
	}
	h.startSession(w, r, u)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, u *model.User) {
	if _, err := h.sessions.Issue(w, u.ID, u.Email, u.Role); err != nil {
		h.logger.Error("Ошибка создания сессии",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout — GET|POST /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	h.svc.Auth.Logout(r.Context(), u)
	h.sessions.Clear(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
