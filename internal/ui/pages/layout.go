// layout.go — общий каркас страниц: шапка, навигация, сообщения, пагинация.
package pages

import (
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/ui/i18n"
)

// Nav — данные шапки страницы.
type Nav struct {
	// User — nil на страницах входа и регистрации
	User *model.User
	// Active — текущий раздел (dashboard, submissions, files, ...)
	Active string
	// Flash — сообщение об успешном действии
	Flash string
	// Error — сообщение об ошибке
	Error string
}

type navItem struct {
	section string
	path    string
	manager bool
}

var navItems = []navItem{
	{section: "dashboard", path: "/"},
	{section: "submissions", path: "/submissions"},
	{section: "files", path: "/files"},
	{section: "activity", path: "/activity"},
	{section: "users", path: "/users", manager: true},
	{section: "settings", path: "/settings"},
}

// Layout — HTML-документ с навигацией и содержимым body.
func Layout(title string, nav Nav, body templ.Component) templ.Component {
	return component(func(p *page) {
		lang := i18n.LangFromContext(p.ctx)
		p.raw(`<!DOCTYPE html><html`)
		p.attr("lang", lang)
		p.raw(`><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>`)
		p.text(title)
		p.raw(` · Label Portal</title><link rel="stylesheet" href="/static/css/app.css"></head><body>`)

		p.raw(`<header class="topbar"><a class="brand" href="/">Label Portal</a>`)
		if nav.User != nil {
			p.raw(`<nav>`)
			manager := nav.User.Role == rbac.RoleLabelManager
			for _, it := range navItems {
				if it.manager && !manager {
					continue
				}
				p.raw(`<a`)
				p.href(it.path)
				if it.section == nav.Active {
					p.attr("class", "active")
				}
				p.raw(`>`)
				p.t("nav." + it.section)
				p.raw(`</a>`)
			}
			p.raw(`</nav><div class="who">`)
			p.text(nav.User.Name)
			p.raw(` <small>`)
			p.t("role." + nav.User.Role)
			p.raw(`</small>`)
			p.postButton("/logout", "nav.logout", "link")
			p.raw(`</div>`)
		}
		langSwitch(p, lang)
		p.raw(`</header><main>`)

		if nav.Flash != "" {
			p.raw(`<div class="flash ok">`)
			p.text(nav.Flash)
			p.raw(`</div>`)
		}
		if nav.Error != "" {
			p.raw(`<div class="flash error">`)
			p.text(nav.Error)
			p.raw(`</div>`)
		}

		p.raw(`<h1>`)
		p.text(title)
		p.raw(`</h1>`)
		p.child(body)
		p.raw(`</main></body></html>`)
	})
}

func langSwitch(p *page, current string) {
	p.raw(`<form method="post" action="/set-language" class="inline lang">`)
	for _, l := range []string{"en", "ru"} {
		p.raw(`<button type="submit" name="lang"`)
		p.attr("value", l)
		if l == current {
			p.raw(` disabled`)
		}
		p.raw(`>`)
		p.text(l)
		p.raw(`</button>`)
	}
	p.raw(`</form>`)
}

// Pager — номер страницы и общее количество для списков.
type Pager struct {
	Page       int
	TotalPages int
	Total      int
	// Query — текущие фильтры, сохраняются в ссылках
	Query url.Values
	Path  string
}

func pager(p *page, pg Pager) {
	p.raw(`<div class="pager"><span>`)
	p.tf("common.total", pg.Total)
	p.raw(`</span>`)
	if pg.TotalPages <= 1 {
		p.raw(`</div>`)
		return
	}
	link := func(n int, label string) {
		q := url.Values{}
		for k, v := range pg.Query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(n))
		p.raw(`<a`)
		p.href(pg.Path + "?" + q.Encode())
		p.raw(`>`)
		p.t(label)
		p.raw(`</a>`)
	}
	if pg.Page > 1 {
		link(pg.Page-1, "common.prev")
	}
	p.raw(`<span>`)
	p.tf("common.page_of", pg.Page, pg.TotalPages)
	p.raw(`</span>`)
	if pg.Page < pg.TotalPages {
		link(pg.Page+1, "common.next")
	}
	p.raw(`</div>`)
}
