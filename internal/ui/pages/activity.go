// activity.go — журнал действий.
package pages

import (
	"github.com/a-h/templ"

	"github.com/bigkaa/labelportal/internal/domain/model"
)

// ActivityListData — данные страницы журнала.
type ActivityListData struct {
	Nav        Nav
	Items      []*model.ActivityLog
	EntityType string
	Pager      Pager
}

// EntityTypes — типы сущностей для фильтра.
var EntityTypes = []string{model.EntityUser, model.EntitySubmission, model.EntityTrack, model.EntityFile, model.EntitySettings}

// ActivityList — страница журнала с фильтром по типу сущности.
func ActivityList(data ActivityListData) templ.Component {
	return component(func(p *page) {
		body := component(func(p *page) {
			p.raw(`<form method="get" action="/activity" class="filters">`)
			p.selectField("activity.entity", "entity_type", data.EntityType, "entity.", EntityTypes, true)
			p.submit("common.apply")
			p.raw(`</form>`)
			activityTable(p, data.Items)
			pager(p, data.Pager)
		})
		p.child(Layout(p.tr("nav.activity"), data.Nav, body))
	})
}

func activityTable(p *page, items []*model.ActivityLog) {
	if len(items) == 0 {
		p.raw(`<p class="empty">`)
		p.t("common.empty")
		p.raw(`</p>`)
		return
	}
	p.raw(`<table><thead><tr><th>`)
	p.t("activity.time")
	p.raw(`</th><th>`)
	p.t("activity.action")
	p.raw(`</th><th>`)
	p.t("activity.entity")
	p.raw(`</th><th>IP</th></tr></thead><tbody>`)
	for _, a := range items {
		p.raw(`<tr><td>`)
		p.time(a.CreatedAt)
		p.raw(`</td><td><code>`)
		p.text(a.Action)
		p.raw(`</code></td><td>`)
		if a.EntityType == model.EntitySubmission && a.EntityID != "" {
			p.raw(`<a`)
			p.href("/submissions/" + a.EntityID)
			p.raw(`>`)
			p.t("entity." + a.EntityType)
			p.raw(`</a>`)
		} else if a.EntityType != "" {
			p.t("entity." + a.EntityType)
		} else {
			p.raw("—")
		}
		p.raw(`</td><td>`)
		p.text(a.IPAddress)
		p.raw(`</td></tr>`)
	}
	p.raw(`</tbody></table>`)
}
