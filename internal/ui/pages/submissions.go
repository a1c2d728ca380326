// submissions.go — список релизов, форма создания и карточка релиза
// с треками и формой модерации.
package pages

import (
	"strconv"

	"github.com/a-h/templ"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/workflow"
)

// SubmissionListData — данные страницы списка релизов.
type SubmissionListData struct {
	Nav    Nav
	Items  []*model.Submission
	Status string
	Query  string
	Pager  Pager
}

// SubmissionList — страница списка релизов с фильтром по статусу и поиском.
func SubmissionList(data SubmissionListData) templ.Component {
	return component(func(p *page) {
		body := component(func(p *page) {
			p.raw(`<form method="get" action="/submissions" class="filters">`)
			p.selectField("submission.status", "status", data.Status, "status.", model.Statuses, true)
			p.input("common.search", "search", "q", data.Query, false)
			p.submit("common.apply")
			p.raw(`</form><p><a class="button" href="/submissions/new">`)
			p.t("submission.new")
			p.raw(`</a></p>`)
			submissionTable(p, data.Items)
			pager(p, data.Pager)
		})
		p.child(Layout(p.tr("nav.submissions"), data.Nav, body))
	})
}

func submissionTable(p *page, items []*model.Submission) {
	if len(items) == 0 {
		p.raw(`<p class="empty">`)
		p.t("common.empty")
		p.raw(`</p>`)
		return
	}
	p.raw(`<table><thead><tr><th>`)
	p.t("submission.title")
	p.raw(`</th><th>`)
	p.t("submission.artist")
	p.raw(`</th><th>`)
	p.t("submission.genre")
	p.raw(`</th><th>`)
	p.t("submission.status")
	p.raw(`</th><th>`)
	p.t("submission.updated")
	p.raw(`</th></tr></thead><tbody>`)
	for _, s := range items {
		p.raw(`<tr><td><a`)
		p.href("/submissions/" + s.ID)
		p.raw(`>`)
		p.text(s.Title)
		p.raw(`</a></td><td>`)
		p.text(s.ArtistName)
		p.raw(`</td><td>`)
		p.text(s.Genre)
		p.raw(`</td><td>`)
		p.statusBadge(s.Status)
		p.raw(`</td><td>`)
		p.time(s.UpdatedAt)
		p.raw(`</td></tr>`)
	}
	p.raw(`</tbody></table>`)
}

// SubmissionFormData — форма нового релиза.
type SubmissionFormData struct {
	Nav         Nav
	Title       string
	ArtistName  string
	Genre       string
	ReleaseDate string
	Label       string
	UPC         string
	Description string
	// Covers — обложки пользователя для выбора
	Covers []*model.StoredFile
}

// SubmissionForm — страница создания релиза.
func SubmissionForm(data SubmissionFormData) templ.Component {
	return component(func(p *page) {
		body := component(func(p *page) {
			p.raw(`<form method="post" action="/submissions" class="card">`)
			p.input("submission.title", "text", "title", data.Title, true)
			p.input("submission.artist", "text", "artist_name", data.ArtistName, false)
			p.input("submission.genre", "text", "genre", data.Genre, false)
			p.input("submission.release_date", "date", "release_date", data.ReleaseDate, false)
			p.input("submission.label", "text", "label", data.Label, false)
			p.input("submission.upc", "text", "upc", data.UPC, false)
			p.textarea("submission.description", "description", data.Description)
			if len(data.Covers) > 0 {
				p.raw(`<label class="field"><span>`)
				p.t("submission.cover")
				p.raw(`</span><select name="cover_file_id"><option value="">—</option>`)
				for _, f := range data.Covers {
					p.raw(`<option`)
					p.attr("value", f.ID)
					p.raw(`>`)
					p.text(f.OriginalFilename)
					p.raw(`</option>`)
				}
				p.raw(`</select></label>`)
			}
			p.raw(`<label class="check"><input type="checkbox" name="submit" value="true"> `)
			p.t("submission.submit_now")
			p.raw(`</label>`)
			p.submit("common.save")
			p.raw(`</form>`)
		})
		p.child(Layout(p.tr("submission.new"), data.Nav, body))
	})
}

// SubmissionDetailData — карточка релиза.
type SubmissionDetailData struct {
	Nav        Nav
	Submission *model.Submission
	Actions    []workflow.Action
	// CanEdit — можно ли добавлять треки
	CanEdit bool
	// AudioFiles — аудиофайлы пользователя для привязки к треку
	AudioFiles []*model.StoredFile
	CoverURL   string
}

// SubmissionDetail — карточка релиза с треками и действиями.
func SubmissionDetail(data SubmissionDetailData) templ.Component {
	s := data.Submission
	return component(func(p *page) {
		body := component(func(p *page) {
			p.raw(`<section class="card"><dl>`)
			field := func(key, value string) {
				p.raw(`<dt>`)
				p.t(key)
				p.raw(`</dt><dd>`)
				if value == "" {
					p.raw("—")
				} else {
					p.text(value)
				}
				p.raw(`</dd>`)
			}
			p.raw(`<dt>`)
			p.t("submission.status")
			p.raw(`</dt><dd>`)
			p.statusBadge(s.Status)
			p.raw(`</dd>`)
			field("submission.artist", s.ArtistName)
			field("submission.genre", s.Genre)
			releaseDate := ""
			if s.ReleaseDate != nil {
				releaseDate = s.ReleaseDate.Format("2006-01-02")
			}
			field("submission.release_date", releaseDate)
			field("submission.label", s.Label)
			field("submission.upc", s.UPC)
			field("submission.description", s.Description)
			p.raw(`<dt>`)
			p.t("submission.submitted")
			p.raw(`</dt><dd>`)
			p.timePtr(s.SubmittedAt)
			p.raw(`</dd>`)
			if s.ResubmissionCount > 0 {
				field("submission.resubmissions", strconv.Itoa(s.ResubmissionCount))
			}
			if s.RejectionReason != "" {
				field("submission.rejection_reason", s.RejectionReason)
			}
			if s.ReviewNotes != "" {
				field("submission.review_notes", s.ReviewNotes)
			}
			p.raw(`</dl>`)
			if data.CoverURL != "" {
				p.raw(`<img class="cover" alt=""`)
				p.attr("src", string(templ.URL(data.CoverURL)))
				p.raw(`>`)
			}
			p.raw(`</section>`)

			tracksSection(p, data)
			actionsSection(p, data)
		})
		p.child(Layout(s.Title, data.Nav, body))
	})
}

func tracksSection(p *page, data SubmissionDetailData) {
	s := data.Submission
	p.raw(`<h2>`)
	p.t("track.tracks")
	p.raw(`</h2>`)
	if len(s.Tracks) == 0 {
		p.raw(`<p class="empty">`)
		p.t("track.none")
		p.raw(`</p>`)
	} else {
		p.raw(`<table><thead><tr><th>#</th><th>`)
		p.t("track.title")
		p.raw(`</th><th>`)
		p.t("track.duration")
		p.raw(`</th><th>ISRC</th><th>`)
		p.t("track.format")
		p.raw(`</th><th></th></tr></thead><tbody>`)
		for _, t := range s.Tracks {
			p.raw(`<tr><td>`)
			p.text(strconv.Itoa(t.TrackNumber))
			p.raw(`</td><td>`)
			p.text(t.Title)
			p.raw(`</td><td>`)
			p.text(formatDuration(t.DurationSeconds))
			p.raw(`</td><td>`)
			p.text(t.ISRC)
			p.raw(`</td><td>`)
			p.text(t.Format)
			p.raw(`</td><td>`)
			if t.Explicit {
				p.raw(`<span class="badge">E</span>`)
			}
			p.raw(`</td></tr>`)
		}
		p.raw(`</tbody></table>`)
	}

	if !data.CanEdit {
		return
	}
	p.raw(`<form method="post" class="card"`)
	p.attr("action", "/submissions/"+s.ID+"/tracks")
	p.raw(`><h3>`)
	p.t("track.add")
	p.raw(`</h3>`)
	p.input("track.title", "text", "title", "", true)
	p.input("track.number", "number", "track_number", strconv.Itoa(len(s.Tracks)+1), true)
	p.input("track.duration_seconds", "number", "duration_seconds", "", false)
	p.input("ISRC", "text", "isrc", "", false)
	if len(data.AudioFiles) > 0 {
		p.raw(`<label class="field"><span>`)
		p.t("track.file")
		p.raw(`</span><select name="file_id"><option value="">—</option>`)
		for _, f := range data.AudioFiles {
			p.raw(`<option`)
			p.attr("value", f.ID)
			p.raw(`>`)
			p.text(f.OriginalFilename)
			p.raw(`</option>`)
		}
		p.raw(`</select></label>`)
	}
	p.raw(`<label class="check"><input type="checkbox" name="explicit" value="true"> `)
	p.t("track.explicit")
	p.raw(`</label>`)
	p.submit("track.add")
	p.raw(`</form>`)
}

// actionsSection — кнопки переходов; reject требует причину.
func actionsSection(p *page, data SubmissionDetailData) {
	if len(data.Actions) == 0 {
		return
	}
	s := data.Submission
	p.raw(`<h2>`)
	p.t("submission.actions")
	p.raw(`</h2><div class="actions">`)
	for _, a := range data.Actions {
		action := "/submissions/" + s.ID + "/" + string(a)
		switch a {
		case workflow.ActionReject:
			p.raw(`<form method="post" class="card"`)
			p.attr("action", action)
			p.raw(`>`)
			p.textarea("submission.rejection_reason", "reason", "")
			p.textarea("submission.review_notes", "notes", "")
			p.raw(`<button type="submit" class="danger">`)
			p.t("action.reject")
			p.raw(`</button></form>`)
		case workflow.ActionApprove:
			p.raw(`<form method="post" class="card"`)
			p.attr("action", action)
			p.raw(`>`)
			p.textarea("submission.review_notes", "notes", "")
			p.submit("action.approve")
			p.raw(`</form>`)
		default:
			p.postButton(action, "action."+string(a), "")
		}
	}
	p.raw(`</div>`)
}
