// dto.go — тела запросов и ответов JSON API и маппинг доменных моделей.
// Модели не несут json-тегов: формат API определяется только здесь.
package handlers

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/logbuffer"
	"github.com/bigkaa/labelportal/internal/service"
)

// --- Запросы ---

type registerRequest struct {
	Email      string `json:"email" validate:"required,email,max=254"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	Name       string `json:"name" validate:"required,max=200"`
	ArtistName string `json:"artist_name" validate:"max=200"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

type trackRequest struct {
	Title           string `json:"title" validate:"required,max=300"`
	TrackNumber     int    `json:"track_number" validate:"required,min=1,max=999"`
	FileID          string `json:"file_id" validate:"omitempty,uuid"`
	DurationSeconds int    `json:"duration_seconds" validate:"min=0"`
	ISRC            string `json:"isrc" validate:"max=15"`
	Format          string `json:"format" validate:"omitempty,oneof=mp3 wav flac aac m4a ogg"`
	BitrateKbps     int    `json:"bitrate_kbps" validate:"min=0"`
	SampleRateHz    int    `json:"sample_rate_hz" validate:"min=0"`
	Explicit        bool   `json:"explicit"`
}

func (r trackRequest) input() service.TrackInput {
	return service.TrackInput{
		Title:           r.Title,
		TrackNumber:     r.TrackNumber,
		FileID:          r.FileID,
		DurationSeconds: r.DurationSeconds,
		ISRC:            r.ISRC,
		Format:          r.Format,
		BitrateKbps:     r.BitrateKbps,
		SampleRateHz:    r.SampleRateHz,
		Explicit:        r.Explicit,
	}
}

type trackUpdateRequest struct {
	Title           *string `json:"title" validate:"omitempty,max=300"`
	TrackNumber     *int    `json:"track_number" validate:"omitempty,min=1,max=999"`
	FileID          *string `json:"file_id" validate:"omitempty,uuid"`
	DurationSeconds *int    `json:"duration_seconds" validate:"omitempty,min=0"`
	ISRC            *string `json:"isrc" validate:"omitempty,max=15"`
	Format          *string `json:"format" validate:"omitempty,oneof=mp3 wav flac aac m4a ogg"`
	BitrateKbps     *int    `json:"bitrate_kbps" validate:"omitempty,min=0"`
	SampleRateHz    *int    `json:"sample_rate_hz" validate:"omitempty,min=0"`
	Explicit        *bool   `json:"explicit"`
}

func (r trackUpdateRequest) update() service.TrackUpdate {
	return service.TrackUpdate{
		Title:           r.Title,
		TrackNumber:     r.TrackNumber,
		FileID:          r.FileID,
		DurationSeconds: r.DurationSeconds,
		ISRC:            r.ISRC,
		Format:          r.Format,
		BitrateKbps:     r.BitrateKbps,
		SampleRateHz:    r.SampleRateHz,
		Explicit:        r.Explicit,
	}
}

type submissionRequest struct {
	Title       string              `json:"title" validate:"required,max=300"`
	ArtistName  string              `json:"artist_name" validate:"max=300"`
	Genre       string              `json:"genre" validate:"max=100"`
	ReleaseDate *openapi_types.Date `json:"release_date"`
	Label       string              `json:"label" validate:"max=200"`
	UPC         string              `json:"upc" validate:"omitempty,numeric,min=12,max=13"`
	Description string              `json:"description" validate:"max=5000"`
	CoverFileID string              `json:"cover_file_id" validate:"omitempty,uuid"`
	UploaderID  string              `json:"uploader_id" validate:"omitempty,uuid"`
	Tracks      []trackRequest      `json:"tracks" validate:"max=100,dive"`
	Submit      bool                `json:"submit"`
}

func (r submissionRequest) input() service.SubmissionInput {
	in := service.SubmissionInput{
		Title:       r.Title,
		ArtistName:  r.ArtistName,
		Genre:       r.Genre,
		ReleaseDate: dateValue(r.ReleaseDate),
		Label:       r.Label,
		UPC:         r.UPC,
		Description: r.Description,
		CoverFileID: r.CoverFileID,
		UploaderID:  r.UploaderID,
		Submit:      r.Submit,
	}
	for _, t := range r.Tracks {
		in.Tracks = append(in.Tracks, t.input())
	}
	return in
}

type submissionUpdateRequest struct {
	Title            *string             `json:"title" validate:"omitempty,max=300"`
	ArtistName       *string             `json:"artist_name" validate:"omitempty,max=300"`
	Genre            *string             `json:"genre" validate:"omitempty,max=100"`
	ReleaseDate      *openapi_types.Date `json:"release_date"`
	ClearReleaseDate bool                `json:"clear_release_date"`
	Label            *string             `json:"label" validate:"omitempty,max=200"`
	UPC              *string             `json:"upc" validate:"omitempty,max=13"`
	Description      *string             `json:"description" validate:"omitempty,max=5000"`
	CoverFileID      *string             `json:"cover_file_id" validate:"omitempty,uuid"`
}

func (r submissionUpdateRequest) update() service.SubmissionUpdate {
	return service.SubmissionUpdate{
		Title:            r.Title,
		ArtistName:       r.ArtistName,
		Genre:            r.Genre,
		ReleaseDate:      dateValue(r.ReleaseDate),
		ClearReleaseDate: r.ClearReleaseDate,
		Label:            r.Label,
		UPC:              r.UPC,
		Description:      r.Description,
		CoverFileID:      r.CoverFileID,
	}
}

type transitionRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
	Notes  string `json:"notes" validate:"max=5000"`
}

type userCreateRequest struct {
	Email      string `json:"email" validate:"required,email,max=254"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	Name       string `json:"name" validate:"required,max=200"`
	Role       string `json:"role" validate:"required"`
	ArtistName string `json:"artist_name" validate:"max=200"`
}

type userUpdateRequest struct {
	Email      *string `json:"email" validate:"omitempty,email,max=254"`
	Name       *string `json:"name" validate:"omitempty,max=200"`
	Role       *string `json:"role"`
	ArtistName *string `json:"artist_name" validate:"omitempty,max=200"`
	Active     *bool   `json:"active"`
	Password   *string `json:"password" validate:"omitempty,min=8,max=72"`
}

type profileRequest struct {
	Name        *string           `json:"name" validate:"omitempty,max=200"`
	ArtistName  *string           `json:"artist_name" validate:"omitempty,max=200"`
	Bio         *string           `json:"bio" validate:"omitempty,max=2000"`
	AvatarURL   *string           `json:"avatar_url" validate:"omitempty,max=500"`
	SocialLinks map[string]string `json:"social_links"`
}

type emailSettingsRequest struct {
	Mode                 *string  `json:"mode" validate:"omitempty,oneof=demo production"`
	NotificationsEnabled *bool    `json:"notifications_enabled"`
	ManagerRecipients    []string `json:"manager_recipients" validate:"omitempty,max=50,dive,email"`
}

type emailTestRequest struct {
	To string `json:"to" validate:"omitempty,email"`
}

// --- Ответы ---

// listResponse — страница любого списка.
type listResponse[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

func newList[T any](items []T, total int, page service.Page, hasMore bool) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset, HasMore: hasMore}
}

type userResponse struct {
	ID          string              `json:"id"`
	Email       openapi_types.Email `json:"email"`
	Name        string              `json:"name"`
	Role        string              `json:"role"`
	RoleTitle   string              `json:"role_title"`
	ArtistName  *string             `json:"artist_name,omitempty"`
	Bio         string              `json:"bio,omitempty"`
	AvatarURL   string              `json:"avatar_url,omitempty"`
	SocialLinks map[string]string   `json:"social_links"`
	Active      bool                `json:"active"`
	LastLoginAt *time.Time          `json:"last_login_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func mapUser(u *model.User) userResponse {
	links := map[string]string(u.SocialLinks)
	if links == nil {
		links = map[string]string{}
	}
	return userResponse{
		ID:          u.ID,
		Email:       openapi_types.Email(u.Email),
		Name:        u.Name,
		Role:        u.Role,
		RoleTitle:   rbac.RoleTitle(u.Role),
		ArtistName:  u.ArtistName,
		Bio:         u.Bio,
		AvatarURL:   u.AvatarURL,
		SocialLinks: links,
		Active:      u.Active,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type trackResponse struct {
	ID              string    `json:"id"`
	SubmissionID    string    `json:"submission_id"`
	Title           string    `json:"title"`
	TrackNumber     int       `json:"track_number"`
	FileURL         string    `json:"file_url,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	ISRC            string    `json:"isrc,omitempty"`
	Format          string    `json:"format,omitempty"`
	BitrateKbps     int       `json:"bitrate_kbps,omitempty"`
	SampleRateHz    int       `json:"sample_rate_hz,omitempty"`
	FileSize        int64     `json:"file_size,omitempty"`
	Checksum        string    `json:"checksum,omitempty"`
	Explicit        bool      `json:"explicit"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func mapTrack(t *model.Track) trackResponse {
	return trackResponse{
		ID:              t.ID,
		SubmissionID:    t.SubmissionID,
		Title:           t.Title,
		TrackNumber:     t.TrackNumber,
		FileURL:         t.FilePath,
		DurationSeconds: t.DurationSeconds,
		ISRC:            t.ISRC,
		Format:          t.Format,
		BitrateKbps:     t.BitrateKbps,
		SampleRateHz:    t.SampleRateHz,
		FileSize:        t.FileSize,
		Checksum:        t.Checksum,
		Explicit:        t.Explicit,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

type submissionResponse struct {
	ID                string              `json:"id"`
	Title             string              `json:"title"`
	ArtistName        string              `json:"artist_name"`
	UploaderID        string              `json:"uploader_id"`
	Status            string              `json:"status"`
	Genre             string              `json:"genre,omitempty"`
	ReleaseDate       *openapi_types.Date `json:"release_date,omitempty"`
	Label             string              `json:"label,omitempty"`
	UPC               string              `json:"upc,omitempty"`
	CoverArtURL       string              `json:"cover_art_url,omitempty"`
	Description       string              `json:"description,omitempty"`
	RejectionReason   string              `json:"rejection_reason,omitempty"`
	ReviewNotes       string              `json:"review_notes,omitempty"`
	ReviewedBy        *string             `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time          `json:"reviewed_at,omitempty"`
	ResubmissionCount int                 `json:"resubmission_count"`
	SubmittedAt       *time.Time          `json:"submitted_at,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	AllowedActions    []string            `json:"allowed_actions"`
	Tracks            []trackResponse     `json:"tracks,omitempty"`
}

// mapSubmission формирует ответ; allowed_actions зависит от текущего пользователя.
func mapSubmission(actor *model.User, s *model.Submission) submissionResponse {
	resp := submissionResponse{
		ID:                s.ID,
		Title:             s.Title,
		ArtistName:        s.ArtistName,
		UploaderID:        s.UploaderID,
		Status:            s.Status,
		Genre:             s.Genre,
		Label:             s.Label,
		UPC:               s.UPC,
		CoverArtURL:       s.CoverArtPath,
		Description:       s.Description,
		RejectionReason:   s.RejectionReason,
		ReviewNotes:       s.ReviewNotes,
		ReviewedBy:        s.ReviewedBy,
		ReviewedAt:        s.ReviewedAt,
		ResubmissionCount: s.ResubmissionCount,
		SubmittedAt:       s.SubmittedAt,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
		AllowedActions:    []string{},
	}
	if s.ReleaseDate != nil {
		resp.ReleaseDate = &openapi_types.Date{Time: *s.ReleaseDate}
	}
	for _, a := range service.AvailableActions(actor, s) {
		resp.AllowedActions = append(resp.AllowedActions, string(a))
	}
	for i := range s.Tracks {
		resp.Tracks = append(resp.Tracks, mapTrack(&s.Tracks[i]))
	}
	return resp
}

type statsResponse struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

func mapStats(s *service.StatusStats) statsResponse {
	counts := make(map[string]int, len(model.Statuses))
	for _, st := range model.Statuses {
		counts[st] = s.Counts[st]
	}
	return statsResponse{Counts: counts, Total: s.Total}
}

type artistResponse struct {
	userResponse
	Submissions statsResponse `json:"submissions"`
}

func mapArtist(a service.ArtistSummary) artistResponse {
	return artistResponse{userResponse: mapUser(a.User), Submissions: mapStats(a.Stats)}
}

type fileResponse struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	Backend          string    `json:"backend"`
	OriginalFilename string    `json:"original_filename"`
	ContentType      string    `json:"content_type"`
	Size             int64     `json:"size"`
	Checksum         string    `json:"checksum"`
	Kind             string    `json:"kind"`
	Status           string    `json:"status"`
	DownloadURL      string    `json:"download_url"`
	CreatedAt        time.Time `json:"created_at"`
}

func mapFile(f *model.StoredFile) fileResponse {
	return fileResponse{
		ID:               f.ID,
		OwnerID:          f.OwnerID,
		Backend:          f.Backend,
		OriginalFilename: f.OriginalFilename,
		ContentType:      f.ContentType,
		Size:             f.Size,
		Checksum:         f.Checksum,
		Kind:             f.Kind,
		Status:           f.Status,
		DownloadURL:      service.FileDownloadPath(f.ID),
		CreatedAt:        f.CreatedAt,
	}
}

type activityResponse struct {
	ID         int64          `json:"id"`
	UserID     *string        `json:"user_id,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Details    map[string]any `json:"details"`
	IPAddress  string         `json:"ip_address,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func mapActivity(e *model.ActivityLog) activityResponse {
	details := map[string]any(e.Details)
	if details == nil {
		details = map[string]any{}
	}
	return activityResponse{
		ID:         e.ID,
		UserID:     e.UserID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Details:    details,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
		CreatedAt:  e.CreatedAt,
	}
}

type emailLogResponse struct {
	ID        int64     `json:"id"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Template  string    `json:"template,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func mapEmailLog(e *model.EmailLog) emailLogResponse {
	return emailLogResponse{
		ID:        e.ID,
		Recipient: e.Recipient,
		Subject:   e.Subject,
		Template:  e.Template,
		Status:    e.Status,
		Error:     e.Error,
		CreatedAt: e.CreatedAt,
	}
}

type emailSettingsResponse struct {
	Mode                 string   `json:"mode"`
	ModeOverridden       bool     `json:"mode_overridden"`
	NotificationsEnabled bool     `json:"notifications_enabled"`
	ManagerRecipients    []string `json:"manager_recipients"`
	SMTPConfigured       bool     `json:"smtp_configured"`
}

func mapEmailSettings(s *service.EmailSettings) emailSettingsResponse {
	recipients := s.ManagerRecipients
	if recipients == nil {
		recipients = []string{}
	}
	return emailSettingsResponse{
		Mode:                 s.Mode,
		ModeOverridden:       s.ModeOverridden,
		NotificationsEnabled: s.NotificationsEnabled,
		ManagerRecipients:    recipients,
		SMTPConfigured:       s.SMTPConfigured,
	}
}

type tokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

type debugLogsResponse struct {
	Items []logbuffer.Entry `json:"items"`
	Total int               `json:"total"`
}

func dateValue(d *openapi_types.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
