// users.go — управление пользователями (Label Manager).
package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/labelportal/internal/service"
	"github.com/bigkaa/labelportal/internal/ui/pages"
)

// Users — GET /users. Фильтры: role, q, page.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	n := pageParam(r)
	f := service.UserFilter{Role: q.Get("role"), Query: strings.TrimSpace(q.Get("q"))}

	res, err := h.svc.Users.List(r.Context(), u, f, uiPage(n))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, pages.UserList(pages.UserListData{
		Nav:   h.nav(r, "users"),
		Items: res.Items,
		Role:  f.Role,
		Query: f.Query,
		Pager: newPager(r, n, res.Total),
	}))
}

// CreateUser — POST /users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, "/users", "", err)
		return
	}
	_, err := h.svc.Users.Create(r.Context(), u, service.NewUserInput{
		Email:      strings.TrimSpace(r.PostFormValue("email")),
		Password:   r.PostFormValue("password"),
		Name:       strings.TrimSpace(r.PostFormValue("name")),
		Role:       r.PostFormValue("role"),
		ArtistName: strings.TrimSpace(r.PostFormValue("artist_name")),
	})
	h.redirect(w, r, "/users", "user_created", err)
}

// ToggleUserActive — POST /users/{id}/active. Переключает активность:
// деактивация через сервис защищает последнего менеджера.
func (h *Handler) ToggleUserActive(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	target, err := h.svc.Users.Get(ctx, u, id)
	if err != nil {
		h.redirect(w, r, "/users", "", err)
		return
	}
	if target.Active {
		_, err = h.svc.Users.Deactivate(ctx, u, id)
		h.redirect(w, r, "/users", "user_deactivated", err)
		return
	}
	active := true
	_, err = h.svc.Users.Update(ctx, u, id, service.UserUpdate{Active: &active})
	h.redirect(w, r, "/users", "user_activated", err)
}
