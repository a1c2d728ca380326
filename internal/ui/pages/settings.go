// settings.go — профиль, смена пароля и (для менеджера) настройки почты.
package pages

import (
	"strings"

	"github.com/a-h/templ"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/service"
)

// SettingsData — данные страницы настроек.
type SettingsData struct {
	Nav  Nav
	User *model.User
	// Email — nil для артиста
	Email *service.EmailSettings
	// EmailLogs — последние письма (менеджер)
	EmailLogs []*model.EmailLog
}

// Settings — страница настроек.
func Settings(data SettingsData) templ.Component {
	u := data.User
	return component(func(p *page) {
		body := component(func(p *page) {
			p.raw(`<section class="card"><h2>`)
			p.t("settings.profile")
			p.raw(`</h2><form method="post" action="/settings/profile">`)
			p.input("auth.name", "text", "name", u.Name, true)
			artistName := ""
			if u.ArtistName != nil {
				artistName = *u.ArtistName
			}
			p.input("auth.artist_name", "text", "artist_name", artistName, false)
			p.textarea("settings.bio", "bio", u.Bio)
			p.input("settings.avatar_url", "url", "avatar_url", u.AvatarURL, false)
			for _, key := range model.SocialLinkKeys {
				p.input("social."+key, "url", "social_"+key, u.SocialLinks[key], false)
			}
			p.submit("common.save")
			p.raw(`</form></section>`)

			p.raw(`<section class="card"><h2>`)
			p.t("settings.password")
			p.raw(`</h2><form method="post" action="/settings/password">`)
			p.input("settings.current_password", "password", "current_password", "", true)
			p.input("settings.new_password", "password", "new_password", "", true)
			p.submit("common.save")
			p.raw(`</form></section>`)

			if data.Email != nil {
				emailSection(p, data.Email, data.EmailLogs)
			}
		})
		p.child(Layout(p.tr("nav.settings"), data.Nav, body))
	})
}

func emailSection(p *page, s *service.EmailSettings, logs []*model.EmailLog) {
	p.raw(`<section class="card"><h2>`)
	p.t("settings.email")
	p.raw(`</h2>`)
	if !s.SMTPConfigured {
		p.raw(`<p class="hint">`)
		p.t("settings.smtp_missing")
		p.raw(`</p>`)
	}
	p.raw(`<form method="post" action="/settings/email">`)
	p.selectField("settings.email_mode", "mode", s.Mode, "email_mode.", []string{"demo", "production"}, false)
	p.raw(`<label class="check"><input type="checkbox" name="notifications_enabled" value="true"`)
	if s.NotificationsEnabled {
		p.raw(` checked`)
	}
	p.raw(`> `)
	p.t("settings.notifications_enabled")
	p.raw(`</label>`)
	p.textarea("settings.manager_recipients", "manager_recipients", strings.Join(s.ManagerRecipients, "\n"))
	p.raw(`<p class="hint">`)
	p.t("settings.recipients_hint")
	p.raw(`</p>`)
	p.submit("common.save")
	p.raw(`</form><form method="post" action="/settings/email/test" class="inline">`)
	p.input("settings.test_to", "email", "to", "", false)
	p.submit("settings.send_test")
	p.raw(`</form></section>`)

	if len(logs) == 0 {
		return
	}
	p.raw(`<section class="card"><h2>`)
	p.t("settings.email_log")
	p.raw(`</h2><table><thead><tr><th>`)
	p.t("email.to")
	p.raw(`</th><th>`)
	p.t("email.subject")
	p.raw(`</th><th>`)
	p.t("email.status")
	p.raw(`</th><th>`)
	p.t("email.sent_at")
	p.raw(`</th></tr></thead><tbody>`)
	for _, l := range logs {
		p.raw(`<tr><td>`)
		p.text(l.Recipient)
		p.raw(`</td><td>`)
		p.text(l.Subject)
		p.raw(`</td><td>`)
		p.text(l.Status)
		if l.Error != "" {
			p.raw(` <small>`)
			p.text(l.Error)
			p.raw(`</small>`)
		}
		p.raw(`</td><td>`)
		p.time(l.CreatedAt)
		p.raw(`</td></tr>`)
	}
	p.raw(`</tbody></table></section>`)
}
