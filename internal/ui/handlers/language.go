// language.go — обработчик переключения языка UI.
package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/bigkaa/labelportal/internal/ui/i18n"
)

// langCookieAge — срок жизни cookie языка.
const langCookieAge = 365 * 24 * time.Hour

// SetLanguage обрабатывает POST /set-language.
// Устанавливает cookie "lang" и перенаправляет обратно.
// Параметр lang из формы или query; неизвестный язык заменяется языком по умолчанию.
func (h *Handler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := r.FormValue("lang")
	if !i18n.Supported(lang) {
		lang = i18n.DefaultLang
	}

	http.SetCookie(w, &http.Cookie{
		Name:     i18n.LangCookieName,
		Value:    lang,
		Path:     "/",
		MaxAge:   int(langCookieAge.Seconds()),
		Expires:  time.Now().Add(langCookieAge),
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, backTo(r), http.StatusSeeOther)
}

// backTo — путь из Referer того же хоста, иначе "/".
func backTo(r *http.Request) string {
	ref, err := url.Parse(r.Header.Get("Referer"))
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return "/"
	}
	if ref.RawQuery != "" {
		return ref.Path + "?" + ref.RawQuery
	}
	return ref.Path
}
