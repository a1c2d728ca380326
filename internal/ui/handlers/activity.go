// activity.go — журнал действий. Артист видит свои записи, менеджер все.
package handlers

import (
	"net/http"

	"github.com/bigkaa/labelportal/internal/service"
	"github.com/bigkaa/labelportal/internal/ui/pages"
)

// Activity — GET /activity. Фильтры: entity_type, page.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	n := pageParam(r)
	entityType := r.URL.Query().Get("entity_type")

	res, err := h.svc.Activity.List(r.Context(), subject(u),
		service.ActivityFilter{EntityType: entityType}, uiPage(n))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, pages.ActivityList(pages.ActivityListData{
		Nav:        h.nav(r, "activity"),
		Items:      res.Items,
		EntityType: entityType,
		Pager:      newPager(r, n, res.Total),
	}))
}
