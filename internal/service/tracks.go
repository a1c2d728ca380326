// tracks.go — треки релиза: добавление, изменение, удаление.
// Треки меняются, пока релиз можно редактировать.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/labelportal/internal/domain/catalog"
	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
)

// TrackInput — данные трека.
type TrackInput struct {
	Title       string
	TrackNumber int
	// FileID — загруженный аудиофайл (stored_files.id)
	FileID          string
	DurationSeconds int
	ISRC            string
	Format          string
	BitrateKbps     int
	SampleRateHz    int
	Explicit        bool
}

// TrackUpdate — изменение трека; nil-поля не меняются.
type TrackUpdate struct {
	Title           *string
	TrackNumber     *int
	FileID          *string
	DurationSeconds *int
	ISRC            *string
	Format          *string
	BitrateKbps     *int
	SampleRateHz    *int
	Explicit        *bool
}

// buildTrack проверяет данные и собирает трек.
func (s *SubmissionService) buildTrack(ctx context.Context, actor *model.User, submissionID string, in TrackInput) (*model.Track, error) {
	t := &model.Track{
		ID:              uuid.NewString(),
		SubmissionID:    submissionID,
		Title:           strings.TrimSpace(in.Title),
		TrackNumber:     in.TrackNumber,
		DurationSeconds: in.DurationSeconds,
		ISRC:            catalog.NormalizeISRC(in.ISRC),
		Format:          strings.ToLower(strings.TrimSpace(in.Format)),
		BitrateKbps:     in.BitrateKbps,
		SampleRateHz:    in.SampleRateHz,
		Explicit:        in.Explicit,
	}
	if in.FileID != "" {
		if err := s.attachAudio(ctx, actor, t, in.FileID); err != nil {
			return nil, err
		}
	}
	if err := validateTrack(t); err != nil {
		return nil, err
	}
	return t, nil
}

// attachAudio привязывает загруженный аудиофайл к треку.
func (s *SubmissionService) attachAudio(ctx context.Context, actor *model.User, t *model.Track, fileID string) error {
	f, err := s.ownedFile(ctx, actor, fileID)
	if err != nil {
		return err
	}
	if f.Kind != model.FileKindAudio {
		return validationf("файл %s не является аудио", fileID)
	}
	t.FilePath = FileDownloadPath(f.ID)
	t.FileSize = f.Size
	t.Checksum = f.Checksum
	if t.Format == "" {
		t.Format = catalog.Ext(f.OriginalFilename)
	}
	return nil
}

func validateTrack(t *model.Track) error {
	if t.Title == "" {
		return validationf("название трека обязательно")
	}
	if len([]rune(t.Title)) > maxTitleLength {
		return validationf("название трека длиннее %d символов", maxTitleLength)
	}
	if t.TrackNumber < 1 {
		return validationf("номер трека должен быть положительным")
	}
	if t.DurationSeconds < 0 || t.BitrateKbps < 0 || t.SampleRateHz < 0 {
		return validationf("длительность, битрейт и частота не могут быть отрицательными")
	}
	if t.ISRC != "" && !catalog.ValidISRC(t.ISRC) {
		return validationf("некорректный ISRC %q", t.ISRC)
	}
	if t.Format != "" && !catalog.IsAudioFormat(t.Format) {
		return validationf("неподдерживаемый формат %q (допустимы: %s)", t.Format, strings.Join(catalog.AudioFormats, ", "))
	}
	return nil
}

func uniqueTrackNumbers(tracks []*model.Track) error {
	seen := make(map[int]bool, len(tracks))
	for _, t := range tracks {
		if seen[t.TrackNumber] {
			return validationf("номер трека %d повторяется", t.TrackNumber)
		}
		seen[t.TrackNumber] = true
	}
	return nil
}

// editable загружает релиз и проверяет право менять его треки.
func (s *SubmissionService) editable(ctx context.Context, actor *model.User, submissionID string) (*model.Submission, error) {
	sub, err := s.load(ctx, actor, submissionID)
	if err != nil {
		return nil, err
	}
	if !rbac.CanEditSubmission(subjectOf(actor), sub) {
		return nil, fmt.Errorf("%w: треки релиза в статусе %q нельзя менять", ErrForbidden, sub.Status)
	}
	return sub, nil
}

// AddTrack добавляет трек. Без номера трек встаёт в конец.
func (s *SubmissionService) AddTrack(ctx context.Context, actor *model.User, submissionID string, in TrackInput) (*model.Track, error) {
	sub, err := s.editable(ctx, actor, submissionID)
	if err != nil {
		return nil, err
	}
	existing, err := s.tracks.ListBySubmission(ctx, sub.ID)
	if err != nil {
		return nil, mapRepoError(err, "треки релиза")
	}
	if len(existing) >= maxTracksPerRelease {
		return nil, validationf("не более %d треков в релизе", maxTracksPerRelease)
	}
	if in.TrackNumber == 0 {
		for _, t := range existing {
			in.TrackNumber = max(in.TrackNumber, t.TrackNumber)
		}
		in.TrackNumber++
	}
	for _, t := range existing {
		if t.TrackNumber == in.TrackNumber {
			return nil, fmt.Errorf("%w: номер трека %d занят", ErrConflict, in.TrackNumber)
		}
	}

	t, err := s.buildTrack(ctx, actor, sub.ID, in)
	if err != nil {
		return nil, err
	}
	if err := s.tracks.Create(ctx, t); err != nil {
		return nil, mapRepoError(err, "создание трека")
	}

	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     model.ActionTrackAdded,
		EntityType: model.EntityTrack,
		EntityID:   t.ID,
		Details:    model.Details{"submission_id": sub.ID, "title": t.Title, "track_number": t.TrackNumber},
	})
	return t, nil
}

// trackOf загружает трек и проверяет, что он принадлежит релизу.
func (s *SubmissionService) trackOf(ctx context.Context, sub *model.Submission, trackID string) (*model.Track, error) {
	if _, err := uuid.Parse(trackID); err != nil {
		return nil, fmt.Errorf("трек %q: %w", trackID, ErrNotFound)
	}
	t, err := s.tracks.GetByID(ctx, trackID)
	if err != nil {
		return nil, mapRepoError(err, "получение трека")
	}
	if t.SubmissionID != sub.ID {
		return nil, fmt.Errorf("трек %s: %w", trackID, ErrNotFound)
	}
	return t, nil
}

// UpdateTrack изменяет трек.
func (s *SubmissionService) UpdateTrack(ctx context.Context, actor *model.User, submissionID, trackID string, upd TrackUpdate) (*model.Track, error) {
	sub, err := s.editable(ctx, actor, submissionID)
	if err != nil {
		return nil, err
	}
	t, err := s.trackOf(ctx, sub, trackID)
	if err != nil {
		return nil, err
	}

	if upd.Title != nil {
		t.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.TrackNumber != nil && *upd.TrackNumber != t.TrackNumber {
		siblings, err := s.tracks.ListBySubmission(ctx, sub.ID)
		if err != nil {
			return nil, mapRepoError(err, "треки релиза")
		}
		for _, other := range siblings {
			if other.ID != t.ID && other.TrackNumber == *upd.TrackNumber {
				return nil, fmt.Errorf("%w: номер трека %d занят", ErrConflict, *upd.TrackNumber)
			}
		}
		t.TrackNumber = *upd.TrackNumber
	}
	if upd.DurationSeconds != nil {
		t.DurationSeconds = *upd.DurationSeconds
	}
	if upd.ISRC != nil {
		t.ISRC = catalog.NormalizeISRC(*upd.ISRC)
	}
	if upd.Format != nil {
		t.Format = strings.ToLower(strings.TrimSpace(*upd.Format))
	}
	if upd.BitrateKbps != nil {
		t.BitrateKbps = *upd.BitrateKbps
	}
	if upd.SampleRateHz != nil {
		t.SampleRateHz = *upd.SampleRateHz
	}
	if upd.Explicit != nil {
		t.Explicit = *upd.Explicit
	}
	if upd.FileID != nil {
		if *upd.FileID == "" {
			t.FilePath, t.FileSize, t.Checksum = "", 0, ""
		} else if err := s.attachAudio(ctx, actor, t, *upd.FileID); err != nil {
			return nil, err
		}
	}
	if err := validateTrack(t); err != nil {
		return nil, err
	}

	if err := s.tracks.Update(ctx, t); err != nil {
		return nil, mapRepoError(err, "обновление трека")
	}
	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     model.ActionTrackUpdated,
		EntityType: model.EntityTrack,
		EntityID:   t.ID,
		Details:    model.Details{"submission_id": sub.ID},
	})
	return t, nil
}

// DeleteTrack удаляет трек из релиза.
func (s *SubmissionService) DeleteTrack(ctx context.Context, actor *model.User, submissionID, trackID string) error {
	sub, err := s.editable(ctx, actor, submissionID)
	if err != nil {
		return err
	}
	t, err := s.trackOf(ctx, sub, trackID)
	if err != nil {
		return err
	}
	if err := s.tracks.Delete(ctx, t.ID); err != nil {
		return mapRepoError(err, "удаление трека")
	}
	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     model.ActionTrackDeleted,
		EntityType: model.EntityTrack,
		EntityID:   t.ID,
		Details:    model.Details{"submission_id": sub.ID, "title": t.Title},
	})
	return nil
}
