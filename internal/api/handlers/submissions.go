// submissions.go — обработчики /api/submissions endpoints.
// Список и статистика (по роли), CRUD релиза, действия модерации, треки.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/labelportal/internal/api/errors"
	"github.com/bigkaa/labelportal/internal/domain/workflow"
	"github.com/bigkaa/labelportal/internal/service"
)

// ListSubmissions — GET /api/submissions.
// Параметры: status, q, uploader_id, limit, offset. Артист видит только свои релизы.
func (h *APIHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, ok := bindPage(w, r)
	if !ok {
		return
	}
	var f service.SubmissionFilter
	if f.Status, ok = bindString(w, r, "status"); !ok {
		return
	}
	if f.Query, ok = bindString(w, r, "q"); !ok {
		return
	}
	if f.UploaderID, ok = bindString(w, r, "uploader_id"); !ok {
		return
	}

	res, err := h.svc.Submissions.List(r.Context(), u, f, page)
	if err != nil {
		h.fail(w, err)
		return
	}
	items := make([]submissionResponse, 0, len(res.Items))
	for _, s := range res.Items {
		items = append(items, mapSubmission(u, s))
	}
	writeJSON(w, http.StatusOK, newList(items, res.Total, page, res.HasMore))
}

// SubmissionStats — GET /api/submissions/stats.
func (h *APIHandler) SubmissionStats(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	stats, err := h.svc.Submissions.Stats(r.Context(), u)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapStats(stats))
}

// CreateSubmission — POST /api/submissions.
// Черновик, либо сразу pending при submit=true. Треки — в той же транзакции.
func (h *APIHandler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req submissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	sub, err := h.svc.Submissions.Create(r.Context(), u, req.input())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapSubmission(u, sub))
}

// GetSubmission — GET /api/submissions/{id}. Релиз с треками.
func (h *APIHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sub, err := h.svc.Submissions.Get(r.Context(), u, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSubmission(u, sub))
}

// UpdateSubmission — PUT /api/submissions/{id}. Меняются только переданные поля.
func (h *APIHandler) UpdateSubmission(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req submissionUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	sub, err := h.svc.Submissions.Update(r.Context(), u, id, req.update())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSubmission(u, sub))
}

// DeleteSubmission — DELETE /api/submissions/{id} (soft delete).
func (h *APIHandler) DeleteSubmission(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Submissions.Delete(r.Context(), u, id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TransitionSubmission — POST /api/submissions/{id}/{action}.
// action: submit, withdraw, approve, reject, resubmit, process, publish.
// Тело необязательно; для reject обязательна reason.
func (h *APIHandler) TransitionSubmission(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	action, known := workflow.ParseAction(chi.URLParam(r, "action"))
	if !known {
		apierrors.NotFound(w, "Неизвестное действие")
		return
	}

	var req transitionRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	sub, err := h.svc.Submissions.Transition(r.Context(), u, id, action, service.TransitionInput{
		Reason: req.Reason,
		Notes:  req.Notes,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSubmission(u, sub))
}

// AddTrack — POST /api/submissions/{id}/tracks.
func (h *APIHandler) AddTrack(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req trackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	t, err := h.svc.Submissions.AddTrack(r.Context(), u, id, req.input())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapTrack(t))
}

// UpdateTrack — PUT /api/submissions/{id}/tracks/{trackID}.
func (h *APIHandler) UpdateTrack(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, trackID, ok := trackPath(w, r)
	if !ok {
		return
	}
	var req trackUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	t, err := h.svc.Submissions.UpdateTrack(r.Context(), u, id, trackID, req.update())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapTrack(t))
}

// DeleteTrack — DELETE /api/submissions/{id}/tracks/{trackID}.
func (h *APIHandler) DeleteTrack(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, trackID, ok := trackPath(w, r)
	if !ok {
		return
	}
	if err := h.svc.Submissions.DeleteTrack(r.Context(), u, id, trackID); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func trackPath(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return "", "", false
	}
	trackID, ok := pathID(w, r, "trackID")
	if !ok {
		return "", "", false
	}
	return id, trackID, true
}

// --- Артисты ---

// ListArtists — GET /api/artists. Менеджер видит всех, артист — себя.
func (h *APIHandler) ListArtists(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, ok := bindPage(w, r)
	if !ok {
		return
	}
	query, ok := bindString(w, r, "q")
	if !ok {
		return
	}

	res, err := h.svc.Artists.List(r.Context(), u, query, page)
	if err != nil {
		h.fail(w, err)
		return
	}
	items := make([]artistResponse, 0, len(res.Items))
	for _, a := range res.Items {
		items = append(items, mapArtist(a))
	}
	writeJSON(w, http.StatusOK, newList(items, res.Total, page, res.HasMore))
}

// GetArtist — GET /api/artists/{id}. Профиль и количество релизов по статусам.
func (h *APIHandler) GetArtist(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := h.svc.Artists.Get(r.Context(), u, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapArtist(*a))
}
