// users.go — обработчики /api/users endpoints.
// Управление пользователями (Label Manager): список, создание, изменение,
// деактивация. Профиль меняет сам пользователь или менеджер.
package handlers

import (
	"net/http"
	"strconv"

	apierrors "github.com/bigkaa/labelportal/internal/api/errors"
	"github.com/bigkaa/labelportal/internal/service"
)

// ListUsers — GET /api/users. Параметры: role, active, q, limit, offset.
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, ok := bindPage(w, r)
	if !ok {
		return
	}
	var f service.UserFilter
	if f.Role, ok = bindString(w, r, "role"); !ok {
		return
	}
	if f.Query, ok = bindString(w, r, "q"); !ok {
		return
	}
	active, ok := bindString(w, r, "active")
	if !ok {
		return
	}
	if active != "" {
		v, err := strconv.ParseBool(active)
		if err != nil {
			apierrors.ValidationError(w, "Некорректный параметр active: ожидается true или false")
			return
		}
		f.Active = &v
	}

	res, err := h.svc.Users.List(r.Context(), u, f, page)
	if err != nil {
		h.fail(w, err)
		return
	}
	items := make([]userResponse, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, mapUser(it))
	}
	writeJSON(w, http.StatusOK, newList(items, res.Total, page, res.HasMore))
}

// CreateUser — POST /api/users.
func (h *APIHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req userCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	created, err := h.svc.Users.Create(r.Context(), u, service.NewUserInput{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		Role:       req.Role,
		ArtistName: req.ArtistName,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapUser(created))
}

// GetUser — GET /api/users/{id}.
func (h *APIHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	found, err := h.svc.Users.Get(r.Context(), u, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapUser(found))
}

// UpdateUser — PUT /api/users/{id}. Меняются только переданные поля.
func (h *APIHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req userUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	updated, err := h.svc.Users.Update(r.Context(), u, id, service.UserUpdate{
		Email:      req.Email,
		Name:       req.Name,
		Role:       req.Role,
		ArtistName: req.ArtistName,
		Active:     req.Active,
		Password:   req.Password,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapUser(updated))
}

// DeactivateUser — DELETE /api/users/{id}. Пользователь только деактивируется.
func (h *APIHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	updated, err := h.svc.Users.Deactivate(r.Context(), u, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapUser(updated))
}

// UpdateProfile — PUT /api/users/{id}/profile. Свой профиль или любой для менеджера.
func (h *APIHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	updated, err := h.svc.Users.UpdateProfile(r.Context(), u, id, service.ProfileUpdate{
		Name:        req.Name,
		ArtistName:  req.ArtistName,
		Bio:         req.Bio,
		AvatarURL:   req.AvatarURL,
		SocialLinks: req.SocialLinks,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapUser(updated))
}
