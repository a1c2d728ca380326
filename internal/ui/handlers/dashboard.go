// dashboard.go — главная страница.
package handlers

import (
	"net/http"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/service"
	"github.com/bigkaa/labelportal/internal/ui/pages"
)

// Сколько записей показывать в блоках главной страницы.
const (
	dashboardRecent  = 10
	dashboardPending = 5
)

// Dashboard — GET /. Релизы по статусам, ожидающие проверки и последние действия.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	stats, err := h.svc.Submissions.Stats(ctx, u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data := pages.DashboardData{
		Nav:    h.nav(r, "dashboard"),
		Counts: stats.Counts,
		Total:  stats.Total,
	}

	// Журнал вторичен: без него страница всё равно показывается
	if recent, err := h.svc.Activity.Recent(ctx, subject(u), dashboardRecent); err == nil {
		data.Recent = recent
	} else {
		data.Nav.Error = h.message(r, err)
	}

	if rbac.CanReviewSubmission(subject(u)) {
		pending, err := h.svc.Submissions.List(ctx, u,
			service.SubmissionFilter{Status: model.StatusPending}, service.NewPage(dashboardPending, 0))
		if err == nil {
			data.Pending = pending.Items
		}
	}

	h.render(w, r, http.StatusOK, pages.Dashboard(data))
}
