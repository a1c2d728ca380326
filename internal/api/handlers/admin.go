// admin.go — обработчики администрирования: настройки почты, журнал писем,
// журнал действий и буфер отладочных логов.
package handlers

import (
	"net/http"
	"time"

	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/labelportal/internal/api/errors"
	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/service"
)

// maxDebugEntries — сколько записей буфера отдаётся за раз.
const maxDebugEntries = 1000

func subject(u *model.User) rbac.Subject {
	return rbac.Subject{ID: u.ID, Role: u.Role}
}

// --- Почта ---

// GetEmailSettings — GET /api/email/settings.
func (h *APIHandler) GetEmailSettings(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !rbac.CanManageEmail(subject(u)) {
		apierrors.Forbidden(w, "Требуется роль Label Manager")
		return
	}
	s, err := h.svc.Settings.EmailSettings(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapEmailSettings(s))
}

// UpdateEmailSettings — PUT /api/email/settings.
// Пустой список manager_recipients очищает адреса, отсутствующий — не меняет.
func (h *APIHandler) UpdateEmailSettings(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req emailSettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	s, err := h.svc.Settings.UpdateEmailSettings(r.Context(), u, service.EmailSettingsUpdate{
		Mode:                 req.Mode,
		NotificationsEnabled: req.NotificationsEnabled,
		ManagerRecipients:    req.ManagerRecipients,
		ResetRecipients:      req.ManagerRecipients != nil && len(req.ManagerRecipients) == 0,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapEmailSettings(s))
}

type emailTestResponse struct {
	Mode string `json:"mode"`
	To   string `json:"to"`
}

// SendTestEmail — POST /api/email/test. Без to — письмо уходит текущему пользователю.
func (h *APIHandler) SendTestEmail(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req emailTestRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	mode, err := h.svc.Notifications.SendTest(r.Context(), u, req.To)
	if err != nil {
		h.fail(w, err)
		return
	}
	to := req.To
	if to == "" {
		to = u.Email
	}
	writeJSON(w, http.StatusOK, emailTestResponse{Mode: mode, To: to})
}

// ListEmailLogs — GET /api/email/logs. Параметры: status, limit, offset.
func (h *APIHandler) ListEmailLogs(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !rbac.CanManageEmail(subject(u)) {
		apierrors.Forbidden(w, "Требуется роль Label Manager")
		return
	}
	page, ok := bindPage(w, r)
	if !ok {
		return
	}
	status, ok := bindString(w, r, "status")
	if !ok {
		return
	}

	res, err := h.svc.Notifications.ListLogs(r.Context(), status, page)
	if err != nil {
		h.fail(w, err)
		return
	}
	items := make([]emailLogResponse, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, mapEmailLog(it))
	}
	writeJSON(w, http.StatusOK, newList(items, res.Total, page, res.HasMore))
}

// --- Журнал действий ---

// ListActivity — GET /api/activity.
// Параметры: user_id, action, entity_type, entity_id, since (RFC 3339), limit, offset.
// Артист видит только свои действия.
func (h *APIHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, ok := bindPage(w, r)
	if !ok {
		return
	}
	var f service.ActivityFilter
	if f.UserID, ok = bindString(w, r, "user_id"); !ok {
		return
	}
	if f.Action, ok = bindString(w, r, "action"); !ok {
		return
	}
	if f.EntityType, ok = bindString(w, r, "entity_type"); !ok {
		return
	}
	if f.EntityID, ok = bindString(w, r, "entity_id"); !ok {
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "since", r.URL.Query(), &f.Since); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр since: ожидается RFC 3339")
		return
	}

	res, err := h.svc.Activity.List(r.Context(), subject(u), f, page)
	if err != nil {
		h.fail(w, err)
		return
	}
	items := make([]activityResponse, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, mapActivity(it))
	}
	writeJSON(w, http.StatusOK, newList(items, res.Total, page, res.HasMore))
}

type pruneResponse struct {
	Deleted int64 `json:"deleted"`
}

// PruneActivity — DELETE /api/activity?older_than=720h.
func (h *APIHandler) PruneActivity(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	raw := r.URL.Query().Get("older_than")
	if raw == "" {
		apierrors.ValidationError(w, "Параметр older_than обязателен (например, 720h)")
		return
	}
	olderThan, err := time.ParseDuration(raw)
	if err != nil {
		apierrors.ValidationError(w, "Некорректный параметр older_than: "+err.Error())
		return
	}

	s := subject(u)
	deleted, err := h.svc.Activity.Prune(r.Context(), &s, olderThan)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pruneResponse{Deleted: deleted})
}

// --- Отладочные логи ---

// ListDebugLogs — GET /api/debug/logs?level=warn&limit=200.
func (h *APIHandler) ListDebugLogs(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	level, err := service.ParseLevel(r.URL.Query().Get("level"))
	if err != nil {
		h.fail(w, err)
		return
	}
	var limit *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр limit: "+err.Error())
		return
	}
	n := maxDebugEntries
	if limit != nil && *limit > 0 && *limit < n {
		n = *limit
	}

	entries, err := h.svc.DebugLogs.Entries(u, level, n)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, debugLogsResponse{Items: entries, Total: len(entries)})
}

type clearedResponse struct {
	Cleared int `json:"cleared"`
}

// ClearDebugLogs — DELETE /api/debug/logs.
func (h *APIHandler) ClearDebugLogs(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	n, err := h.svc.DebugLogs.Clear(r.Context(), u)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clearedResponse{Cleared: n})
}
