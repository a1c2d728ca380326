// settings.go — страница настроек: профиль, пароль, почта (менеджер).
package handlers

import (
	"net/http"
	"strings"

	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/service"
	"github.com/bigkaa/labelportal/internal/ui/pages"
)

// Сколько последних писем показывать в журнале почты.
const settingsEmailLogs = 20

// Settings — GET /settings.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	// Профиль перечитывается: в контексте может быть копия из кеша сессий
	fresh, err := h.svc.Users.Get(ctx, u, u.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data := pages.SettingsData{Nav: h.nav(r, "settings"), User: fresh}

	if rbac.CanManageEmail(subject(u)) {
		data.Email, err = h.svc.Settings.EmailSettings(ctx)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if logs, err := h.svc.Notifications.ListLogs(ctx, "", service.NewPage(settingsEmailLogs, 0)); err == nil {
			data.EmailLogs = logs.Items
		} else {
			data.Nav.Error = h.message(r, err)
		}
	}
	h.render(w, r, http.StatusOK, pages.Settings(data))
}

// UpdateProfile — POST /settings/profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, "/settings", "", err)
		return
	}
	name := strings.TrimSpace(r.PostFormValue("name"))
	artistName := strings.TrimSpace(r.PostFormValue("artist_name"))
	bio := strings.TrimSpace(r.PostFormValue("bio"))
	avatar := strings.TrimSpace(r.PostFormValue("avatar_url"))

	// Ссылки заменяются целиком: пустое поле удаляет ссылку
	links := make(map[string]string)
	for key, values := range r.PostForm {
		if k, found := strings.CutPrefix(key, "social_"); found && len(values) > 0 {
			if v := strings.TrimSpace(values[0]); v != "" {
				links[k] = v
			}
		}
	}

	_, err := h.svc.Users.UpdateProfile(r.Context(), u, u.ID, service.ProfileUpdate{
		Name:        optional(name),
		ArtistName:  &artistName,
		Bio:         &bio,
		AvatarURL:   &avatar,
		SocialLinks: links,
	})
	h.redirect(w, r, "/settings", "profile_saved", err)
}

// ChangePassword — POST /settings/password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, "/settings", "", err)
		return
	}
	err := h.svc.Auth.ChangePassword(r.Context(), u,
		r.PostFormValue("current_password"), r.PostFormValue("new_password"))
	h.redirect(w, r, "/settings", "password_changed", err)
}

// UpdateEmailSettings — POST /settings/email. Только менеджер.
func (h *Handler) UpdateEmailSettings(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, "/settings", "", err)
		return
	}
	mode := r.PostFormValue("mode")
	enabled := r.PostFormValue("notifications_enabled") == "true"
	recipients := splitRecipients(r.PostFormValue("manager_recipients"))

	_, err := h.svc.Settings.UpdateEmailSettings(r.Context(), u, service.EmailSettingsUpdate{
		Mode:                 optional(mode),
		NotificationsEnabled: &enabled,
		ManagerRecipients:    recipients,
		ResetRecipients:      len(recipients) == 0,
	})
	h.redirect(w, r, "/settings", "email_saved", err)
}

// SendTestEmail — POST /settings/email/test. Без адреса письмо уходит себе.
func (h *Handler) SendTestEmail(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, "/settings", "", err)
		return
	}
	to := strings.TrimSpace(r.PostFormValue("to"))
	if to == "" {
		to = u.Email
	}
	_, err := h.svc.Notifications.SendTest(r.Context(), u, to)
	h.redirect(w, r, "/settings", "test_sent", err)
}

// splitRecipients разбирает адреса, разделённые переводами строк или запятыми.
func splitRecipients(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ',' || r == ';'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
