// users.go — управление пользователями (Label Manager).
package pages

import (
	"github.com/a-h/templ"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
)

// Roles — роли для формы создания пользователя.
var Roles = []string{rbac.RoleArtist, rbac.RoleLabelManager}

// UserListData — данные страницы пользователей.
type UserListData struct {
	Nav   Nav
	Items []*model.User
	Role  string
	Query string
	Pager Pager
}

// UserList — список пользователей, форма создания и (де)активация.
func UserList(data UserListData) templ.Component {
	return component(func(p *page) {
		body := component(func(p *page) {
			p.raw(`<form method="get" action="/users" class="filters">`)
			p.selectField("user.role", "role", data.Role, "role.", Roles, true)
			p.input("common.search", "search", "q", data.Query, false)
			p.submit("common.apply")
			p.raw(`</form>`)

			p.raw(`<table><thead><tr><th>`)
			p.t("auth.name")
			p.raw(`</th><th>`)
			p.t("auth.email")
			p.raw(`</th><th>`)
			p.t("user.role")
			p.raw(`</th><th>`)
			p.t("user.last_login")
			p.raw(`</th><th>`)
			p.t("user.state")
			p.raw(`</th></tr></thead><tbody>`)
			for _, u := range data.Items {
				p.raw(`<tr><td>`)
				p.text(u.Name)
				if u.ArtistName != nil && *u.ArtistName != "" {
					p.raw(` <small>`)
					p.text(*u.ArtistName)
					p.raw(`</small>`)
				}
				p.raw(`</td><td>`)
				p.text(u.Email)
				p.raw(`</td><td>`)
				p.t("role." + u.Role)
				p.raw(`</td><td>`)
				p.timePtr(u.LastLoginAt)
				p.raw(`</td><td>`)
				if u.Active {
					p.postButton("/users/"+u.ID+"/active", "user.deactivate", "danger")
				} else {
					p.postButton("/users/"+u.ID+"/active", "user.activate", "")
				}
				p.raw(`</td></tr>`)
			}
			p.raw(`</tbody></table>`)
			pager(p, data.Pager)

			p.raw(`<section class="card"><h2>`)
			p.t("user.create")
			p.raw(`</h2><form method="post" action="/users">`)
			p.input("auth.name", "text", "name", "", true)
			p.input("auth.email", "email", "email", "", true)
			p.input("auth.password", "password", "password", "", true)
			p.selectField("user.role", "role", rbac.RoleArtist, "role.", Roles, false)
			p.input("auth.artist_name", "text", "artist_name", "", false)
			p.submit("user.create")
			p.raw(`</form></section>`)
		})
		p.child(Layout(p.tr("nav.users"), data.Nav, body))
	})
}
