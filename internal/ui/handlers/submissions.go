// submissions.go — страницы релизов: список, создание, карточка,
// добавление треков и действия модерации.
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/domain/workflow"
	"github.com/bigkaa/labelportal/internal/service"
	"github.com/bigkaa/labelportal/internal/ui/pages"
)

// Submissions — GET /submissions. Фильтры: status, q, page.
func (h *Handler) Submissions(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	n := pageParam(r)
	f := service.SubmissionFilter{Status: q.Get("status"), Query: q.Get("q")}

	res, err := h.svc.Submissions.List(r.Context(), u, f, uiPage(n))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, pages.SubmissionList(pages.SubmissionListData{
		Nav:    h.nav(r, "submissions"),
		Items:  res.Items,
		Status: f.Status,
		Query:  f.Query,
		Pager:  newPager(r, n, res.Total),
	}))
}

// NewSubmission — GET /submissions/new.
func (h *Handler) NewSubmission(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, pages.SubmissionForm(pages.SubmissionFormData{
		Nav:        h.nav(r, "submissions"),
		ArtistName: u.DisplayArtistName(),
		Covers:     h.ownFiles(r, u, model.FileKindCover),
	}))
}

// CreateSubmission — POST /submissions.
func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, "/submissions/new", "", err)
		return
	}
	form := pages.SubmissionFormData{
		Nav:         h.nav(r, "submissions"),
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		ArtistName:  strings.TrimSpace(r.PostFormValue("artist_name")),
		Genre:       strings.TrimSpace(r.PostFormValue("genre")),
		ReleaseDate: r.PostFormValue("release_date"),
		Label:       strings.TrimSpace(r.PostFormValue("label")),
		UPC:         strings.TrimSpace(r.PostFormValue("upc")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
	}
	showForm := func(msg string) {
		form.Nav.Error = msg
		form.Covers = h.ownFiles(r, u, model.FileKindCover)
		h.render(w, r, http.StatusBadRequest, pages.SubmissionForm(form))
	}

	in := service.SubmissionInput{
		Title:       form.Title,
		ArtistName:  form.ArtistName,
		Genre:       form.Genre,
		Label:       form.Label,
		UPC:         form.UPC,
		Description: form.Description,
		CoverFileID: r.PostFormValue("cover_file_id"),
		Submit:      r.PostFormValue("submit") == "true",
	}
	if form.ReleaseDate != "" {
		d, err := time.Parse(time.DateOnly, form.ReleaseDate)
		if err != nil {
			showForm(err.Error())
			return
		}
		in.ReleaseDate = &d
	}

	sub, err := h.svc.Submissions.Create(r.Context(), u, in)
	if err != nil {
		showForm(h.message(r, err))
		return
	}
	h.redirect(w, r, "/submissions/"+sub.ID, "submission_created", nil)
}

// SubmissionDetail — GET /submissions/{id}.
func (h *Handler) SubmissionDetail(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	sub, err := h.svc.Submissions.Get(r.Context(), u, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	data := pages.SubmissionDetailData{
		Nav:        h.nav(r, "submissions"),
		Submission: sub,
		Actions:    service.AvailableActions(u, sub),
		CanEdit:    rbac.CanEditSubmission(subject(u), sub),
		CoverURL:   sub.CoverArtPath,
	}
	if data.CanEdit {
		data.AudioFiles = h.ownFiles(r, u, model.FileKindAudio)
	}
	h.render(w, r, http.StatusOK, pages.SubmissionDetail(data))
}

// AddTrack — POST /submissions/{id}/tracks.
func (h *Handler) AddTrack(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	back := "/submissions/" + id
	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, back, "", err)
		return
	}

	in := service.TrackInput{
		Title:    strings.TrimSpace(r.PostFormValue("title")),
		FileID:   r.PostFormValue("file_id"),
		ISRC:     strings.TrimSpace(r.PostFormValue("isrc")),
		Explicit: r.PostFormValue("explicit") == "true",
	}
	// Нечисловые значения отсекает сервис как невалидный номер/длительность
	in.TrackNumber, _ = strconv.Atoi(r.PostFormValue("track_number"))
	in.DurationSeconds, _ = strconv.Atoi(r.PostFormValue("duration_seconds"))

	_, err := h.svc.Submissions.AddTrack(r.Context(), u, id, in)
	h.redirect(w, r, back, "track_added", err)
}

// TransitionSubmission — POST /submissions/{id}/{action}.
func (h *Handler) TransitionSubmission(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	action, known := workflow.ParseAction(chi.URLParam(r, "action"))
	if !known {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, "/submissions/"+id, "", err)
		return
	}

	_, err := h.svc.Submissions.Transition(r.Context(), u, id, action, service.TransitionInput{
		Reason: strings.TrimSpace(r.PostFormValue("reason")),
		Notes:  strings.TrimSpace(r.PostFormValue("notes")),
	})
	h.redirect(w, r, "/submissions/"+id, "transition_"+string(action), err)
}

// ownFiles — файлы пользователя для выпадающих списков форм.
// Ошибка не мешает показать форму: список просто пуст.
func (h *Handler) ownFiles(r *http.Request, u *model.User, kind string) []*model.StoredFile {
	res, err := h.svc.Files.List(r.Context(), u,
		service.FileFilter{Kind: kind, OwnerID: u.ID}, service.NewPage(service.MaxLimit, 0))
	if err != nil {
		h.message(r, err)
		return nil
	}
	return res.Items
}
