package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	apimiddleware "github.com/bigkaa/labelportal/internal/api/middleware"
	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/service"
	"github.com/bigkaa/labelportal/internal/testutil/memstore"
	"github.com/bigkaa/labelportal/internal/ui/i18n"
)

func newTestHandler(t *testing.T) (*Handler, *memstore.Env) {
	t.Helper()
	if _, err := i18n.Load(nil); err != nil {
		t.Fatalf("i18n.Load: %v", err)
	}
	env := memstore.NewEnv(t)
	h := NewHandler(Services{
		Auth:          env.Auth,
		Users:         env.Users,
		Submissions:   env.Submissions,
		Files:         env.Files,
		Activity:      env.Activity,
		Settings:      env.Settings,
		Notifications: env.Notifications,
	}, env.Sessions, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return h, env
}

// formRequest — POST с формой от имени u и параметрами маршрута chi.
func formRequest(u *model.User, path string, form url.Values, params map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return withContext(req, u, params)
}

func getRequest(u *model.User, path string, params map[string]string) *http.Request {
	return withContext(httptest.NewRequest(http.MethodGet, path, nil), u, params)
}

func withContext(req *http.Request, u *model.User, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = i18n.WithLang(ctx, "en")
	if u != nil {
		ctx = apimiddleware.WithUser(ctx, u)
	}
	return req.WithContext(ctx)
}

func location(t *testing.T, rec *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("статус = %d, ожидался 303: %s", rec.Code, rec.Body.String())
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func TestCreateSubmission(t *testing.T) {
	h, env := newTestHandler(t)
	artist := env.Artist(t, "nova")

	rec := httptest.NewRecorder()
	h.CreateSubmission(rec, formRequest(artist, "/submissions", url.Values{
		"title":        {"Night Drive"},
		"genre":        {"synthwave"},
		"release_date": {"2026-12-01"},
		"submit":       {"true"},
	}, nil))
	loc := location(t, rec)
	if !strings.HasPrefix(loc.Path, "/submissions/") || loc.Query().Get("flash") != "submission_created" {
		t.Fatalf("Location = %s", loc)
	}

	id := strings.TrimPrefix(loc.Path, "/submissions/")
	sub, err := env.Submissions.Get(context.Background(), artist, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sub.Status != model.StatusPending || sub.ReleaseDate == nil {
		t.Errorf("релиз: статус %q, дата %v", sub.Status, sub.ReleaseDate)
	}
}

func TestCreateSubmission_InvalidDateRerendersForm(t *testing.T) {
	h, env := newTestHandler(t)
	artist := env.Artist(t, "nova")

	rec := httptest.NewRecorder()
	h.CreateSubmission(rec, formRequest(artist, "/submissions", url.Values{
		"title":        {"Night Drive"},
		"release_date": {"01.12.2026"},
	}, nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("статус = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `value="Night Drive"`) {
		t.Error("введённые данные потеряны")
	}
}

func TestTransitionSubmission(t *testing.T) {
	h, env := newTestHandler(t)
	ctx := context.Background()
	manager := env.Manager(t)
	artist := env.Artist(t, "nova")

	sub, err := env.Submissions.Create(ctx, artist, service.SubmissionInput{Title: "Night Drive", Submit: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	params := map[string]string{"id": sub.ID, "action": "reject"}
	path := "/submissions/" + sub.ID + "/reject"

	// Без причины отклонение не проходит
	rec := httptest.NewRecorder()
	h.TransitionSubmission(rec, formRequest(manager, path, url.Values{}, params))
	if loc := location(t, rec); loc.Query().Get("error") == "" {
		t.Errorf("нет сообщения об ошибке: %s", loc)
	}

	rec = httptest.NewRecorder()
	h.TransitionSubmission(rec, formRequest(manager, path, url.Values{"reason": {"Нет обложки"}}, params))
	if loc := location(t, rec); loc.Query().Get("flash") != "transition_reject" {
		t.Errorf("Location = %s", loc)
	}

	got, err := env.Submissions.Get(ctx, artist, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusRejected || got.RejectionReason != "Нет обложки" {
		t.Errorf("после отклонения: %q %q", got.Status, got.RejectionReason)
	}

	rec = httptest.NewRecorder()
	h.TransitionSubmission(rec, formRequest(artist, "/submissions/"+sub.ID+"/dance", nil,
		map[string]string{"id": sub.ID, "action": "dance"}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("неизвестное действие: статус = %d", rec.Code)
	}
}

func TestSubmissionDetail_ForeignIsNotFound(t *testing.T) {
	h, env := newTestHandler(t)
	owner := env.Artist(t, "nova")
	stranger := env.Artist(t, "echo")

	sub, err := env.Submissions.Create(context.Background(), owner, service.SubmissionInput{Title: "Night Drive"})
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.SubmissionDetail(rec, getRequest(stranger, "/submissions/"+sub.ID, map[string]string{"id": sub.ID}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("чужой релиз: статус = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.SubmissionDetail(rec, getRequest(owner, "/submissions/"+sub.ID, map[string]string{"id": sub.ID}))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/submissions/"+sub.ID+"/submit") {
		t.Errorf("свой релиз: статус = %d", rec.Code)
	}
}

func TestToggleUserActive(t *testing.T) {
	h, env := newTestHandler(t)
	manager := env.Manager(t)
	artist := env.Artist(t, "nova")
	params := map[string]string{"id": artist.ID}

	rec := httptest.NewRecorder()
	h.ToggleUserActive(rec, formRequest(manager, "/users/"+artist.ID+"/active", nil, params))
	if loc := location(t, rec); loc.Query().Get("flash") != "user_deactivated" {
		t.Fatalf("Location = %s", loc)
	}

	rec = httptest.NewRecorder()
	h.ToggleUserActive(rec, formRequest(manager, "/users/"+artist.ID+"/active", nil, params))
	if loc := location(t, rec); loc.Query().Get("flash") != "user_activated" {
		t.Fatalf("Location = %s", loc)
	}

	// Артист не управляет пользователями
	rec = httptest.NewRecorder()
	h.ToggleUserActive(rec, formRequest(artist, "/users/"+manager.ID+"/active", nil,
		map[string]string{"id": manager.ID}))
	if loc := location(t, rec); loc.Query().Get("error") == "" {
		t.Errorf("нет ошибки прав: %s", loc)
	}
}

func TestUsers_ForbiddenForArtist(t *testing.T) {
	h, env := newTestHandler(t)
	artist := env.Artist(t, "nova")

	rec := httptest.NewRecorder()
	h.Users(rec, getRequest(artist, "/users", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("статус = %d", rec.Code)
	}
}

func TestSetLanguage(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name, lang, referer string
		wantLang, wantLoc   string
	}{
		{"русский", "ru", "http://example.com/submissions?status=pending", "ru", "/submissions?status=pending"},
		{"неизвестный язык", "xx", "", "en", "/"},
		{"чужой referer", "en", "http://evil.test/phish", "en", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := formRequest(nil, "/set-language", url.Values{"lang": {tt.lang}}, nil)
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			rec := httptest.NewRecorder()
			h.SetLanguage(rec, req)

			if got := location(t, rec).String(); got != tt.wantLoc {
				t.Errorf("Location = %q, ожидался %q", got, tt.wantLoc)
			}
			cookies := rec.Result().Cookies()
			if len(cookies) != 1 || cookies[0].Name != i18n.LangCookieName || cookies[0].Value != tt.wantLang {
				t.Errorf("cookie = %+v", cookies)
			}
		})
	}
}

func TestSplitRecipients(t *testing.T) {
	got := splitRecipients("a@label.test, b@label.test\n\nc@label.test;  ")
	want := []string{"a@label.test", "b@label.test", "c@label.test"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("splitRecipients = %v", got)
	}
	if len(splitRecipients(" \n ")) != 0 {
		t.Error("пустой ввод должен давать пустой список")
	}
}
