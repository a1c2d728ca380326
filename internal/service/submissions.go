// submissions.go — сервис релизов: создание, редактирование, модерация.
// Переходы статусов — по таблице workflow, права — по rbac.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/labelportal/internal/domain/catalog"
	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/domain/workflow"
	"github.com/bigkaa/labelportal/internal/repository"
)

// Ограничения на поля релиза.
const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
	maxTracksPerRelease  = 100
)

// SubmissionTxRunner выполняет fn с репозиториями, привязанными к одной транзакции.
type SubmissionTxRunner interface {
	RunSubmissionTx(ctx context.Context, fn func(subs repository.SubmissionRepository, tracks repository.TrackRepository) error) error
}

// SubmissionFilter — фильтры списка релизов.
type SubmissionFilter struct {
	Status     string
	Query      string
	UploaderID string
}

// SubmissionPage — страница списка релизов.
type SubmissionPage struct {
	Items   []*model.Submission
	Total   int
	HasMore bool
}

// SubmissionInput — данные нового релиза.
type SubmissionInput struct {
	Title       string
	ArtistName  string
	Genre       string
	ReleaseDate *time.Time
	Label       string
	UPC         string
	Description string
	// CoverFileID — загруженная обложка (stored_files.id)
	CoverFileID string
	// UploaderID — владелец; менеджер может создать релиз от имени артиста
	UploaderID string
	Tracks     []TrackInput
	// Submit — сразу отправить на модерацию
	Submit bool
}

// SubmissionUpdate — изменение метаданных; nil-поля не меняются.
type SubmissionUpdate struct {
	Title       *string
	ArtistName  *string
	Genre       *string
	ReleaseDate *time.Time
	// ClearReleaseDate — убрать дату релиза
	ClearReleaseDate bool
	Label            *string
	UPC              *string
	Description      *string
	CoverFileID      *string
}

// TransitionInput — параметры модерации.
type TransitionInput struct {
	// Reason — причина отклонения (обязательна для reject)
	Reason string
	Notes  string
}

// StatusStats — количество релизов по статусам.
type StatusStats struct {
	Counts map[string]int
	Total  int
}

// SubmissionService — сервис релизов.
type SubmissionService struct {
	subs          repository.SubmissionRepository
	tracks        repository.TrackRepository
	files         repository.FileRepository
	users         repository.UserRepository
	tx            SubmissionTxRunner
	activity      *ActivityService
	notifications *NotificationService
	logger        *slog.Logger
	now           func() time.Time
}

// NewSubmissionService создаёт сервис релизов. tx может быть nil:
// тогда релиз и треки сохраняются без общей транзакции.
func NewSubmissionService(
	subs repository.SubmissionRepository,
	tracks repository.TrackRepository,
	files repository.FileRepository,
	users repository.UserRepository,
	tx SubmissionTxRunner,
	activity *ActivityService,
	notifications *NotificationService,
	logger *slog.Logger,
) *SubmissionService {
	return &SubmissionService{
		subs:          subs,
		tracks:        tracks,
		files:         files,
		users:         users,
		tx:            tx,
		activity:      activity,
		notifications: notifications,
		logger:        logger.With(slog.String("component", "submission_service")),
		now:           time.Now,
	}
}

// List возвращает релизы. Артист видит только свои.
func (s *SubmissionService) List(ctx context.Context, actor *model.User, f SubmissionFilter, page Page) (*SubmissionPage, error) {
	filters, err := s.scopeFilters(actor, f)
	if err != nil {
		return nil, err
	}

	items, err := s.subs.List(ctx, filters, page.Limit, page.Offset)
	if err != nil {
		return nil, mapRepoError(err, "список релизов")
	}
	total, err := s.subs.Count(ctx, filters)
	if err != nil {
		return nil, mapRepoError(err, "подсчёт релизов")
	}
	return &SubmissionPage{Items: items, Total: total, HasMore: page.HasMore(total)}, nil
}

func (s *SubmissionService) scopeFilters(actor *model.User, f SubmissionFilter) (repository.SubmissionFilters, error) {
	var filters repository.SubmissionFilters
	if f.Status != "" {
		if !model.IsValidStatus(f.Status) {
			return filters, validationf("неизвестный статус %q", f.Status)
		}
		filters.Status = &f.Status
	}
	if !subjectOf(actor).IsManager() {
		f.UploaderID = actor.ID
	}
	if f.UploaderID != "" {
		filters.UploaderID = &f.UploaderID
	}
	filters.Query = strings.TrimSpace(f.Query)
	return filters, nil
}

// Stats возвращает количество релизов по статусам (артисту — по своим).
func (s *SubmissionService) Stats(ctx context.Context, actor *model.User) (*StatusStats, error) {
	var uploader *string
	if !subjectOf(actor).IsManager() {
		uploader = &actor.ID
	}
	counts, err := s.subs.CountByStatus(ctx, uploader)
	if err != nil {
		return nil, mapRepoError(err, "статистика релизов")
	}
	return newStatusStats(counts), nil
}

func newStatusStats(counts map[string]int) *StatusStats {
	st := &StatusStats{Counts: make(map[string]int, len(model.Statuses))}
	for _, status := range model.Statuses {
		st.Counts[status] = counts[status]
		st.Total += counts[status]
	}
	return st
}

// Get возвращает релиз с треками. Чужой релиз для артиста неотличим от отсутствующего.
func (s *SubmissionService) Get(ctx context.Context, actor *model.User, id string) (*model.Submission, error) {
	sub, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	tracks, err := s.tracks.ListBySubmission(ctx, sub.ID)
	if err != nil {
		return nil, mapRepoError(err, "треки релиза")
	}
	sub.Tracks = tracks
	return sub, nil
}

// load загружает релиз и проверяет право просмотра.
func (s *SubmissionService) load(ctx context.Context, actor *model.User, id string) (*model.Submission, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("релиз %q: %w", id, ErrNotFound)
	}
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение релиза")
	}
	if !rbac.CanViewSubmission(subjectOf(actor), sub) {
		return nil, fmt.Errorf("релиз %s: %w", id, ErrNotFound)
	}
	return sub, nil
}

// Create создаёт релиз (draft или сразу pending) вместе с треками.
func (s *SubmissionService) Create(ctx context.Context, actor *model.User, in SubmissionInput) (*model.Submission, error) {
	owner := actor
	if in.UploaderID != "" && in.UploaderID != actor.ID {
		if !subjectOf(actor).IsManager() {
			return nil, ErrForbidden
		}
		u, err := s.users.GetByID(ctx, in.UploaderID)
		if err != nil {
			return nil, mapRepoError(err, "владелец релиза")
		}
		if u.Role != rbac.RoleArtist || !u.Active {
			return nil, validationf("владельцем релиза может быть только активный артист")
		}
		owner = u
	}

	sub := &model.Submission{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		ArtistName:  strings.TrimSpace(in.ArtistName),
		UploaderID:  owner.ID,
		Status:      model.StatusDraft,
		Genre:       strings.TrimSpace(in.Genre),
		ReleaseDate: dateOnly(in.ReleaseDate),
		Label:       strings.TrimSpace(in.Label),
		UPC:         strings.TrimSpace(in.UPC),
		Description: strings.TrimSpace(in.Description),
	}
	if sub.ArtistName == "" {
		sub.ArtistName = owner.DisplayArtistName()
	}
	if in.CoverFileID != "" {
		path, err := s.coverPath(ctx, actor, in.CoverFileID)
		if err != nil {
			return nil, err
		}
		sub.CoverArtPath = path
	}
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}
	if len(in.Tracks) > maxTracksPerRelease {
		return nil, validationf("не более %d треков в релизе", maxTracksPerRelease)
	}

	tracks := make([]*model.Track, 0, len(in.Tracks))
	for i, ti := range in.Tracks {
		if ti.TrackNumber == 0 {
			ti.TrackNumber = i + 1
		}
		t, err := s.buildTrack(ctx, actor, sub.ID, ti)
		if err != nil {
			return nil, fmt.Errorf("трек %d: %w", i+1, err)
		}
		tracks = append(tracks, t)
	}
	if err := uniqueTrackNumbers(tracks); err != nil {
		return nil, err
	}

	if in.Submit {
		now := s.now().UTC()
		sub.Status = model.StatusPending
		sub.SubmittedAt = &now
	}

	save := func(subs repository.SubmissionRepository, trs repository.TrackRepository) error {
		if err := subs.Create(ctx, sub); err != nil {
			return err
		}
		for _, t := range tracks {
			if err := trs.Create(ctx, t); err != nil {
				return err
			}
		}
		return nil
	}
	var err error
	if s.tx != nil && len(tracks) > 0 {
		err = s.tx.RunSubmissionTx(ctx, save)
	} else {
		err = save(s.subs, s.tracks)
	}
	if err != nil {
		return nil, mapRepoError(err, "создание релиза")
	}
	sub.Tracks = make([]model.Track, 0, len(tracks))
	for _, t := range tracks {
		sub.Tracks = append(sub.Tracks, *t)
	}

	s.logger.Info("Релиз создан",
		slog.String("submission_id", sub.ID),
		slog.String("uploader_id", sub.UploaderID),
		slog.String("status", sub.Status),
		slog.Int("tracks", len(tracks)),
	)
	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     model.ActionSubmissionCreated,
		EntityType: model.EntitySubmission,
		EntityID:   sub.ID,
		Details:    model.Details{"title": sub.Title, "status": sub.Status, "tracks": len(tracks)},
	})
	if sub.Status == model.StatusPending {
		s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			Action:     model.ActionSubmissionSubmitted,
			EntityType: model.EntitySubmission,
			EntityID:   sub.ID,
			Details:    model.Details{"from": model.StatusDraft, "to": model.StatusPending},
		})
		s.notifications.SubmissionStatusChanged(ctx, sub)
	}
	return sub, nil
}

// Update изменяет метаданные релиза.
func (s *SubmissionService) Update(ctx context.Context, actor *model.User, id string, upd SubmissionUpdate) (*model.Submission, error) {
	sub, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !rbac.CanEditSubmission(subjectOf(actor), sub) {
		return nil, fmt.Errorf("%w: релиз в статусе %q нельзя изменить", ErrForbidden, sub.Status)
	}

	var fields []string
	set := func(dst *string, v *string, name string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
			fields = append(fields, name)
		}
	}
	set(&sub.Title, upd.Title, "title")
	set(&sub.ArtistName, upd.ArtistName, "artist_name")
	set(&sub.Genre, upd.Genre, "genre")
	set(&sub.Label, upd.Label, "label")
	set(&sub.UPC, upd.UPC, "upc")
	set(&sub.Description, upd.Description, "description")
	if upd.ClearReleaseDate {
		sub.ReleaseDate = nil
		fields = append(fields, "release_date")
	} else if upd.ReleaseDate != nil {
		sub.ReleaseDate = dateOnly(upd.ReleaseDate)
		fields = append(fields, "release_date")
	}
	if upd.CoverFileID != nil {
		if *upd.CoverFileID == "" {
			sub.CoverArtPath = ""
		} else {
			path, err := s.coverPath(ctx, actor, *upd.CoverFileID)
			if err != nil {
				return nil, err
			}
			sub.CoverArtPath = path
		}
		fields = append(fields, "cover_art")
	}
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, mapRepoError(err, "обновление релиза")
	}
	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     model.ActionSubmissionUpdated,
		EntityType: model.EntitySubmission,
		EntityID:   sub.ID,
		Details:    model.Details{"fields": fields},
	})
	return s.Get(ctx, actor, sub.ID)
}

// Delete мягко удаляет релиз.
func (s *SubmissionService) Delete(ctx context.Context, actor *model.User, id string) error {
	sub, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	if !rbac.CanDeleteSubmission(subjectOf(actor), sub) {
		return fmt.Errorf("%w: релиз в статусе %q нельзя удалить", ErrForbidden, sub.Status)
	}
	if err := s.subs.SoftDelete(ctx, sub.ID); err != nil {
		return mapRepoError(err, "удаление релиза")
	}
	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     model.ActionSubmissionDeleted,
		EntityType: model.EntitySubmission,
		EntityID:   sub.ID,
		Details:    model.Details{"title": sub.Title, "status": sub.Status},
	})
	return nil
}

// transitionActivity — действие журнала для каждого перехода.
var transitionActivity = map[workflow.Action]string{
	workflow.ActionSubmit:   model.ActionSubmissionSubmitted,
	workflow.ActionWithdraw: model.ActionSubmissionWithdrawn,
	workflow.ActionApprove:  model.ActionSubmissionApproved,
	workflow.ActionReject:   model.ActionSubmissionRejected,
	workflow.ActionResubmit: model.ActionSubmissionResubmit,
	workflow.ActionProcess:  model.ActionSubmissionProcess,
	workflow.ActionPublish:  model.ActionSubmissionPublished,
}

// Transition выполняет действие над релизом: одна запись статуса
// (с проверкой исходного статуса), одна запись журнала, уведомление.
func (s *SubmissionService) Transition(ctx context.Context, actor *model.User, id string, action workflow.Action, in TransitionInput) (*model.Submission, error) {
	sub, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !canPerform(subjectOf(actor), sub, action) {
		return nil, ErrForbidden
	}

	from := sub.Status
	to, err := workflow.Target(action, from)
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(in.Reason)
	notes := strings.TrimSpace(in.Notes)
	if action == workflow.ActionReject && reason == "" {
		return nil, validationf("для отклонения нужна причина")
	}
	if (action == workflow.ActionSubmit || action == workflow.ActionResubmit) && sub.Title == "" {
		return nil, validationf("у релиза нет названия")
	}

	// Треки статусом не затрагиваются: читаем до записи, чтобы ответ
	// совпадал с Get.
	tracks, err := s.tracks.ListBySubmission(ctx, sub.ID)
	if err != nil {
		return nil, mapRepoError(err, "треки релиза")
	}
	sub.Tracks = tracks

	now := s.now().UTC()
	sub.Status = to
	switch action {
	case workflow.ActionSubmit:
		sub.SubmittedAt = &now
	case workflow.ActionWithdraw:
		sub.SubmittedAt = nil
	case workflow.ActionResubmit:
		sub.ResubmissionCount++
		sub.SubmittedAt = &now
	case workflow.ActionApprove, workflow.ActionReject:
		sub.ReviewedBy = &actor.ID
		sub.ReviewedAt = &now
		sub.ReviewNotes = notes
		sub.RejectionReason = reason
	case workflow.ActionProcess, workflow.ActionPublish:
		if notes != "" {
			sub.ReviewNotes = notes
		}
	}

	if err := s.subs.Transition(ctx, sub, from); err != nil {
		return nil, mapRepoError(err, "смена статуса релиза")
	}

	details := model.Details{"from": from, "to": to}
	if reason != "" {
		details["reason"] = reason
	}
	if action == workflow.ActionResubmit {
		details["resubmission_count"] = sub.ResubmissionCount
	}
	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     transitionActivity[action],
		EntityType: model.EntitySubmission,
		EntityID:   sub.ID,
		Details:    details,
	})
	s.logger.Info("Статус релиза изменён",
		slog.String("submission_id", sub.ID),
		slog.String("action", string(action)),
		slog.String("from", from),
		slog.String("to", to),
	)
	s.notifications.SubmissionStatusChanged(ctx, sub)

	return sub, nil
}

// canPerform — право субъекта на действие над релизом (без учёта статуса).
func canPerform(subject rbac.Subject, sub *model.Submission, action workflow.Action) bool {
	switch {
	case workflow.IsReviewAction(action):
		return rbac.CanReviewSubmission(subject)
	case action == workflow.ActionResubmit:
		return rbac.CanResubmit(subject, sub)
	default:
		return rbac.CanSubmit(subject, sub)
	}
}

// AvailableActions — действия, которые actor может выполнить над релизом сейчас.
func AvailableActions(actor *model.User, sub *model.Submission) []workflow.Action {
	subject := subjectOf(actor)
	var out []workflow.Action
	for _, a := range workflow.Allowed(sub.Status) {
		if canPerform(subject, sub, a) {
			out = append(out, a)
		}
	}
	return out
}

// coverPath проверяет загруженную обложку и возвращает ссылку на неё.
func (s *SubmissionService) coverPath(ctx context.Context, actor *model.User, fileID string) (string, error) {
	f, err := s.ownedFile(ctx, actor, fileID)
	if err != nil {
		return "", err
	}
	if f.Kind != model.FileKindCover {
		return "", validationf("файл %s не является обложкой", fileID)
	}
	return FileDownloadPath(f.ID), nil
}

// ownedFile загружает активный файл, доступный actor.
func (s *SubmissionService) ownedFile(ctx context.Context, actor *model.User, fileID string) (*model.StoredFile, error) {
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, validationf("файл %s не найден", fileID)
		}
		return nil, mapRepoError(err, "получение файла")
	}
	if f.Status != model.FileStatusActive || !rbac.CanAccessFile(subjectOf(actor), f.OwnerID) {
		return nil, validationf("файл %s не найден", fileID)
	}
	return f, nil
}

// validateSubmission проверяет поля релиза.
func validateSubmission(sub *model.Submission) error {
	if sub.Title == "" {
		return validationf("название обязательно")
	}
	if len([]rune(sub.Title)) > maxTitleLength {
		return validationf("название длиннее %d символов", maxTitleLength)
	}
	if sub.ArtistName == "" {
		return validationf("имя артиста обязательно")
	}
	if len([]rune(sub.Description)) > maxDescriptionLength {
		return validationf("описание длиннее %d символов", maxDescriptionLength)
	}
	if sub.UPC != "" && !catalog.ValidUPC(sub.UPC) {
		return validationf("некорректный UPC %q", sub.UPC)
	}
	return nil
}

// dateOnly отбрасывает время, оставляя дату в UTC.
func dateOnly(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
