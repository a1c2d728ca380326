// Пакет memstore — in-memory реализации репозиториев для тестов
// HTTP-слоя: сервисы собираются поверх них без PostgreSQL.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/repository"
)

// --- In-memory репозитории ---

// DB — общее хранилище in-memory репозиториев.
type DB struct {
	mu       sync.Mutex
	users    map[string]*model.User
	subs     map[string]*model.Submission
	tracks   map[string]*model.Track
	files    map[string]*model.StoredFile
	activity []*model.ActivityLog
	emails   []*model.EmailLog
	settings map[string]model.Setting

	// failWith — ошибка, которую вернут все методы (имитация недоступной БД)
	failWith error
}

// New создаёт пустое хранилище.
func New() *DB {
	return &DB{
		users:    map[string]*model.User{},
		subs:     map[string]*model.Submission{},
		tracks:   map[string]*model.Track{},
		files:    map[string]*model.StoredFile{},
		settings: map[string]model.Setting{},
	}
}

type memUsers struct{ db *DB }

func (r memUsers) Create(_ context.Context, u *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWith != nil {
		return r.db.failWith
	}
	for _, other := range r.db.users {
		if other.Email == strings.ToLower(u.Email) {
			return repository.ErrConflict
		}
	}
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	c := *u
	r.db.users[u.ID] = &c
	return nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWith != nil {
		return nil, r.db.failWith
	}
	u, ok := r.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r memUsers) GetByEmail(_ context.Context, addr string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWith != nil {
		return nil, r.db.failWith
	}
	for _, u := range r.db.users {
		if u.Email == strings.ToLower(addr) {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memUsers) match(u *model.User, f repository.UserFilters) bool {
	if f.Role != nil && u.Role != *f.Role {
		return false
	}
	if f.Active != nil && u.Active != *f.Active {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(u.Name+" "+u.Email), strings.ToLower(f.Query)) {
		return false
	}
	return true
}

func (r memUsers) List(_ context.Context, f repository.UserFilters, limit, offset int) ([]*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWith != nil {
		return nil, r.db.failWith
	}
	var out []*model.User
	for _, u := range r.db.users {
		if r.match(u, f) {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return paginate(out, limit, offset), nil
}

func (r memUsers) Count(ctx context.Context, f repository.UserFilters) (int, error) {
	all, err := r.List(ctx, f, 0, 0)
	return len(all), err
}

func (r memUsers) Update(_ context.Context, u *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWith != nil {
		return r.db.failWith
	}
	if _, ok := r.db.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	u.UpdatedAt = time.Now()
	c := *u
	r.db.users[u.ID] = &c
	return nil
}

func (r memUsers) TouchLogin(_ context.Context, id string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (r memUsers) CountByRole(_ context.Context, role string, activeOnly bool) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWith != nil {
		return 0, r.db.failWith
	}
	n := 0
	for _, u := range r.db.users {
		if u.Role == role && (!activeOnly || u.Active) {
			n++
		}
	}
	return n, nil
}

type memSubs struct{ db *DB }

func (r memSubs) Create(_ context.Context, s *model.Submission) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWith != nil {
		return r.db.failWith
	}
	if _, ok := r.db.users[s.UploaderID]; !ok {
		return repository.ErrNotFound
	}
	s.CreatedAt, s.UpdatedAt = time.Now(), time.Now()
	c := *s
	c.Tracks = nil
	r.db.subs[s.ID] = &c
	return nil
}

func (r memSubs) GetByID(_ context.Context, id string) (*model.Submission, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWith != nil {
		return nil, r.db.failWith
	}
	s, ok := r.db.subs[id]
	if !ok || s.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (r memSubs) List(_ context.Context, f repository.SubmissionFilters, limit, offset int) ([]*model.Submission, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWith != nil {
		return nil, r.db.failWith
	}
	var out []*model.Submission
	for _, s := range r.db.subs {
		if s.DeletedAt != nil {
			continue
		}
		if f.Status != nil && s.Status != *f.Status {
			continue
		}
		if f.UploaderID != nil && s.UploaderID != *f.UploaderID {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(s.Title), strings.ToLower(f.Query)) {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return paginate(out, limit, offset), nil
}

func (r memSubs) Count(ctx context.Context, f repository.SubmissionFilters) (int, error) {
	all, err := r.List(ctx, f, 0, 0)
	return len(all), err
}

func (r memSubs) Update(_ context.Context, s *model.Submission) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.subs[s.ID]
	if !ok || cur.DeletedAt != nil {
		return repository.ErrNotFound
	}
	c := *s
	c.Status = cur.Status
	c.Tracks = nil
	r.db.subs[s.ID] = &c
	return nil
}

func (r memSubs) Transition(_ context.Context, s *model.Submission, from string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWith != nil {
		return r.db.failWith
	}
	cur, ok := r.db.subs[s.ID]
	if !ok || cur.DeletedAt != nil {
		return repository.ErrNotFound
	}
	if cur.Status != from {
		return repository.ErrConflict
	}
	c := *s
	c.Tracks = nil
	r.db.subs[s.ID] = &c
	return nil
}

func (r memSubs) SoftDelete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.subs[id]
	if !ok || s.DeletedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now()
	s.DeletedAt = &now
	return nil
}

func (r memSubs) CountByStatus(_ context.Context, uploaderID *string) (map[string]int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWith != nil {
		return nil, r.db.failWith
	}
	out := map[string]int{}
	for _, s := range r.db.subs {
		if s.DeletedAt != nil || (uploaderID != nil && s.UploaderID != *uploaderID) {
			continue
		}
		out[s.Status]++
	}
	return out, nil
}

type memTracks struct{ db *DB }

func (r memTracks) Create(_ context.Context, t *model.Track) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWith != nil {
		return r.db.failWith
	}
	if t.ISRC != "" {
		for _, other := range r.db.tracks {
			if other.ISRC == t.ISRC {
				return repository.ErrConflict
			}
		}
	}
	c := *t
	r.db.tracks[t.ID] = &c
	return nil
}

func (r memTracks) GetByID(_ context.Context, id string) (*model.Track, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.tracks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r memTracks) ListBySubmission(_ context.Context, submissionID string) ([]model.Track, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Track
	for _, t := range r.db.tracks {
		if t.SubmissionID == submissionID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackNumber < out[j].TrackNumber })
	return out, nil
}

func (r memTracks) Update(_ context.Context, t *model.Track) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tracks[t.ID]; !ok {
		return repository.ErrNotFound
	}
	c := *t
	r.db.tracks[t.ID] = &c
	return nil
}

func (r memTracks) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tracks[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.tracks, id)
	return nil
}

func (r memTracks) CountBySubmission(ctx context.Context, submissionID string) (int, error) {
	list, err := r.ListBySubmission(ctx, submissionID)
	return len(list), err
}

type memFiles struct{ db *DB }

func (r memFiles) Register(_ context.Context, f *model.StoredFile) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWith != nil {
		return r.db.failWith
	}
	c := *f
	r.db.files[f.ID] = &c
	return nil
}

func (r memFiles) GetByID(_ context.Context, id string) (*model.StoredFile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f, ok := r.db.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *f
	return &c, nil
}

func (r memFiles) List(_ context.Context, filters repository.FileFilters, limit, offset int) ([]*model.StoredFile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.StoredFile
	for _, f := range r.db.files {
		if f.Status != model.FileStatusActive {
			continue
		}
		if filters.OwnerID != nil && f.OwnerID != *filters.OwnerID {
			continue
		}
		if filters.Kind != nil && f.Kind != *filters.Kind {
			continue
		}
		c := *f
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OriginalFilename < out[j].OriginalFilename })
	return paginate(out, limit, offset), nil
}

func (r memFiles) Count(ctx context.Context, filters repository.FileFilters) (int, error) {
	all, err := r.List(ctx, filters, 0, 0)
	return len(all), err
}

func (r memFiles) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f, ok := r.db.files[id]
	if !ok || f.Status == model.FileStatusDeleted {
		return repository.ErrNotFound
	}
	f.Status = model.FileStatusDeleted
	return nil
}

type memActivity struct{ db *DB }

func (r memActivity) Append(_ context.Context, e *model.ActivityLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWith != nil {
		return r.db.failWith
	}
	e.ID = int64(len(r.db.activity) + 1)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	c := *e
	r.db.activity = append(r.db.activity, &c)
	return nil
}

func (r memActivity) List(_ context.Context, f repository.ActivityFilters, limit, offset int) ([]*model.ActivityLog, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWith != nil {
		return nil, r.db.failWith
	}
	var out []*model.ActivityLog
	for i := len(r.db.activity) - 1; i >= 0; i-- {
		e := r.db.activity[i]
		if f.UserID != nil && (e.UserID == nil || *e.UserID != *f.UserID) {
			continue
		}
		if f.Action != nil && e.Action != *f.Action {
			continue
		}
		if f.EntityID != nil && e.EntityID != *f.EntityID {
			continue
		}
		if f.EntityType != nil && e.EntityType != *f.EntityType {
			continue
		}
		if f.Since != nil && e.CreatedAt.Before(*f.Since) {
			continue
		}
		out = append(out, e)
	}
	return paginate(out, limit, offset), nil
}

func (r memActivity) Count(ctx context.Context, f repository.ActivityFilters) (int, error) {
	all, err := r.List(ctx, f, 0, 0)
	return len(all), err
}

func (r memActivity) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failWith != nil {
		return 0, r.db.failWith
	}
	kept := r.db.activity[:0]
	var deleted int64
	for _, e := range r.db.activity {
		if e.CreatedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.db.activity = kept
	return deleted, nil
}

type memEmails struct{ db *DB }

func (r memEmails) Append(_ context.Context, e *model.EmailLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e.ID = int64(len(r.db.emails) + 1)
	c := *e
	r.db.emails = append(r.db.emails, &c)
	return nil
}

func (r memEmails) List(_ context.Context, status *string, limit, offset int) ([]*model.EmailLog, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.EmailLog
	for _, e := range r.db.emails {
		if status == nil || e.Status == *status {
			out = append(out, e)
		}
	}
	return paginate(out, limit, offset), nil
}

func (r memEmails) Count(ctx context.Context, status *string) (int, error) {
	all, err := r.List(ctx, status, 0, 0)
	return len(all), err
}

type memSettings struct{ db *DB }

func (r memSettings) Get(_ context.Context, key string) (*model.Setting, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.settings[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r memSettings) Set(_ context.Context, key, value, updatedBy string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.settings[key] = model.Setting{Key: key, Value: value, UpdatedBy: updatedBy, UpdatedAt: time.Now()}
	return nil
}

func (r memSettings) ListByPrefix(_ context.Context, prefix string) ([]model.Setting, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Setting
	for k, s := range r.db.settings {
		if strings.HasPrefix(k, prefix) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r memSettings) Delete(_ context.Context, key string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.settings[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.settings, key)
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// TxRunner — транзакция поверх DB: при ошибке fn откатывает релизы и треки.
type TxRunner struct {
	db *DB
}

func (m *TxRunner) RunSubmissionTx(ctx context.Context, fn func(subs repository.SubmissionRepository, tracks repository.TrackRepository) error) error {
	m.db.mu.Lock()
	subs := make(map[string]*model.Submission, len(m.db.subs))
	for k, v := range m.db.subs {
		subs[k] = v
	}
	tracks := make(map[string]*model.Track, len(m.db.tracks))
	for k, v := range m.db.tracks {
		tracks[k] = v
	}
	m.db.mu.Unlock()

	if err := fn(memSubs{m.db}, memTracks{m.db}); err != nil {
		m.db.mu.Lock()
		m.db.subs, m.db.tracks = subs, tracks
		m.db.mu.Unlock()
		return err
	}
	return nil
}

// Fail заставляет все репозитории возвращать err (nil — снять сбой).
func (db *DB) Fail(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failWith = err
}

func (db *DB) Users() repository.UserRepository             { return memUsers{db} }
func (db *DB) Submissions() repository.SubmissionRepository { return memSubs{db} }
func (db *DB) Tracks() repository.TrackRepository           { return memTracks{db} }
func (db *DB) Files() repository.FileRepository             { return memFiles{db} }
func (db *DB) Activity() repository.ActivityLogRepository   { return memActivity{db} }
func (db *DB) EmailLogs() repository.EmailLogRepository     { return memEmails{db} }
func (db *DB) Settings() repository.SettingsRepository      { return memSettings{db} }

// Tx — транзакции релизов с откатом при ошибке.
func (db *DB) Tx() *TxRunner { return &TxRunner{db: db} }
