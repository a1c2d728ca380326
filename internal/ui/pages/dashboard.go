// dashboard.go — главная страница: релизы по статусам и последние действия.
package pages

import (
	"strconv"

	"github.com/a-h/templ"

	"github.com/bigkaa/labelportal/internal/domain/model"
)

// DashboardData — данные главной страницы.
type DashboardData struct {
	Nav    Nav
	Counts map[string]int
	Total  int
	Recent []*model.ActivityLog
	// Pending — релизы, ожидающие проверки (для менеджера)
	Pending []*model.Submission
}

// Dashboard — главная страница.
func Dashboard(data DashboardData) templ.Component {
	return component(func(p *page) {
		body := component(func(p *page) {
			p.raw(`<section class="stats">`)
			for _, st := range model.Statuses {
				p.raw(`<a class="stat"`)
				p.href("/submissions?status=" + st)
				p.raw(`><strong>`)
				p.text(strconv.Itoa(data.Counts[st]))
				p.raw(`</strong>`)
				p.statusBadge(st)
				p.raw(`</a>`)
			}
			p.raw(`<div class="stat"><strong>`)
			p.text(strconv.Itoa(data.Total))
			p.raw(`</strong><span>`)
			p.t("dashboard.total")
			p.raw(`</span></div></section>`)

			if len(data.Pending) > 0 {
				p.raw(`<h2>`)
				p.t("dashboard.awaiting_review")
				p.raw(`</h2>`)
				submissionTable(p, data.Pending)
			}

			p.raw(`<h2>`)
			p.t("dashboard.recent_activity")
			p.raw(`</h2>`)
			activityTable(p, data.Recent)
		})
		p.child(Layout(p.tr("nav.dashboard"), data.Nav, body))
	})
}
