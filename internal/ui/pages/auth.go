// auth.go — страницы входа и регистрации.
package pages

import (
	"github.com/a-h/templ"

	"github.com/bigkaa/labelportal/internal/ui/i18n"
)

// AuthFormData — данные формы входа или регистрации.
type AuthFormData struct {
	Email      string
	Name       string
	ArtistName string
	Error      string
}

// Login — страница входа.
func Login(data AuthFormData) templ.Component {
	return component(func(p *page) {
		body := component(func(p *page) {
			p.raw(`<form method="post" action="/login" class="card narrow">`)
			p.input("auth.email", "email", "email", data.Email, true)
			p.input("auth.password", "password", "password", "", true)
			p.submit("auth.sign_in")
			p.raw(`<p><a href="/register">`)
			p.t("auth.no_account")
			p.raw(`</a></p></form>`)
		})
		p.child(Layout(i18n.T(p.ctx, "auth.login_title"), Nav{Error: data.Error}, body))
	})
}

// Register — страница самостоятельной регистрации артиста.
func Register(data AuthFormData) templ.Component {
	return component(func(p *page) {
		body := component(func(p *page) {
			p.raw(`<form method="post" action="/register" class="card narrow">`)
			p.input("auth.name", "text", "name", data.Name, true)
			p.input("auth.artist_name", "text", "artist_name", data.ArtistName, false)
			p.input("auth.email", "email", "email", data.Email, true)
			p.input("auth.password", "password", "password", "", true)
			p.raw(`<p class="hint">`)
			p.t("auth.password_hint")
			p.raw(`</p>`)
			p.submit("auth.sign_up")
			p.raw(`<p><a href="/login">`)
			p.t("auth.have_account")
			p.raw(`</a></p></form>`)
		})
		p.child(Layout(i18n.T(p.ctx, "auth.register_title"), Nav{Error: data.Error}, body))
	})
}
