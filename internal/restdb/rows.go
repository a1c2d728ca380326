package restdb

import (
	"fmt"
	"time"

	"github.com/bigkaa/labelportal/internal/domain/model"
)

const dateLayout = "2006-01-02"

// userRow — JSON-представление строки users в PostgREST.
type userRow struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	PasswordHash string            `json:"password_hash"`
	Name         string            `json:"name"`
	Role         string            `json:"role"`
	ArtistName   *string           `json:"artist_name"`
	Bio          string            `json:"bio"`
	AvatarURL    string            `json:"avatar_url"`
	SocialLinks  model.SocialLinks `json:"social_links"`
	Active       bool              `json:"active"`
	LastLoginAt  *time.Time        `json:"last_login_at"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (r *userRow) toModel() *model.User {
	return &model.User{
		ID: r.ID, Email: r.Email, PasswordHash: r.PasswordHash, Name: r.Name, Role: r.Role,
		ArtistName: r.ArtistName, Bio: r.Bio, AvatarURL: r.AvatarURL, SocialLinks: r.SocialLinks,
		Active: r.Active, LastLoginAt: r.LastLoginAt, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

// userWrite — изменяемые колонки users.
func userWrite(u *model.User) map[string]any {
	links := u.SocialLinks
	if links == nil {
		links = model.SocialLinks{}
	}
	return map[string]any{
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"name":          u.Name,
		"role":          u.Role,
		"artist_name":   u.ArtistName,
		"bio":           u.Bio,
		"avatar_url":    u.AvatarURL,
		"social_links":  links,
		"active":        u.Active,
	}
}

// submissionRow — JSON-представление строки submissions.
// release_date приходит как "YYYY-MM-DD".
type submissionRow struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	ArtistName        string     `json:"artist_name"`
	UploaderID        string     `json:"uploader_id"`
	Status            string     `json:"status"`
	Genre             string     `json:"genre"`
	ReleaseDate       *string    `json:"release_date"`
	Label             string     `json:"label"`
	UPC               string     `json:"upc"`
	CoverArtPath      string     `json:"cover_art_path"`
	Description       string     `json:"description"`
	RejectionReason   string     `json:"rejection_reason"`
	ReviewNotes       string     `json:"review_notes"`
	ReviewedBy        *string    `json:"reviewed_by"`
	ReviewedAt        *time.Time `json:"reviewed_at"`
	ResubmissionCount int        `json:"resubmission_count"`
	SubmittedAt       *time.Time `json:"submitted_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DeletedAt         *time.Time `json:"deleted_at"`
}

func (r *submissionRow) toModel() (*model.Submission, error) {
	s := &model.Submission{
		ID: r.ID, Title: r.Title, ArtistName: r.ArtistName, UploaderID: r.UploaderID, Status: r.Status,
		Genre: r.Genre, Label: r.Label, UPC: r.UPC, CoverArtPath: r.CoverArtPath,
		Description: r.Description, RejectionReason: r.RejectionReason, ReviewNotes: r.ReviewNotes,
		ReviewedBy: r.ReviewedBy, ReviewedAt: r.ReviewedAt, ResubmissionCount: r.ResubmissionCount,
		SubmittedAt: r.SubmittedAt, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, DeletedAt: r.DeletedAt,
	}
	if r.ReleaseDate != nil && *r.ReleaseDate != "" {
		d, err := time.Parse(dateLayout, *r.ReleaseDate)
		if err != nil {
			return nil, fmt.Errorf("некорректная release_date %q: %w", *r.ReleaseDate, err)
		}
		s.ReleaseDate = &d
	}
	return s, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

// submissionMetaWrite — колонки, изменяемые при редактировании релиза.
func submissionMetaWrite(s *model.Submission) map[string]any {
	return map[string]any{
		"title":          s.Title,
		"artist_name":    s.ArtistName,
		"genre":          s.Genre,
		"release_date":   formatDate(s.ReleaseDate),
		"label":          s.Label,
		"upc":            s.UPC,
		"cover_art_path": s.CoverArtPath,
		"description":    s.Description,
	}
}

// submissionReviewWrite — колонки, изменяемые при смене статуса.
func submissionReviewWrite(s *model.Submission) map[string]any {
	return map[string]any{
		"status":             s.Status,
		"rejection_reason":   s.RejectionReason,
		"review_notes":       s.ReviewNotes,
		"reviewed_by":        s.ReviewedBy,
		"reviewed_at":        s.ReviewedAt,
		"resubmission_count": s.ResubmissionCount,
		"submitted_at":       s.SubmittedAt,
	}
}
