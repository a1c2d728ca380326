package ormrepo

import (
	"time"

	"gorm.io/gorm"

	"github.com/bigkaa/labelportal/internal/domain/model"
)

// userRow — строка таблицы users.
type userRow struct {
	ID           string            `gorm:"column:id;primaryKey"`
	Email        string            `gorm:"column:email"`
	PasswordHash string            `gorm:"column:password_hash"`
	Name         string            `gorm:"column:name"`
	Role         string            `gorm:"column:role"`
	ArtistName   *string           `gorm:"column:artist_name"`
	Bio          string            `gorm:"column:bio"`
	AvatarURL    string            `gorm:"column:avatar_url"`
	SocialLinks  model.SocialLinks `gorm:"column:social_links;type:jsonb"`
	Active       bool              `gorm:"column:active"`
	LastLoginAt  *time.Time        `gorm:"column:last_login_at"`
	CreatedAt    time.Time         `gorm:"column:created_at"`
	UpdatedAt    time.Time         `gorm:"column:updated_at"`
}

func (userRow) TableName() string { return "users" }

func userFromModel(u *model.User) *userRow {
	return &userRow{
		ID: u.ID, Email: u.Email, PasswordHash: u.PasswordHash, Name: u.Name, Role: u.Role,
		ArtistName: u.ArtistName, Bio: u.Bio, AvatarURL: u.AvatarURL, SocialLinks: u.SocialLinks,
		Active: u.Active, LastLoginAt: u.LastLoginAt, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}
}

func (r *userRow) toModel() *model.User {
	return &model.User{
		ID: r.ID, Email: r.Email, PasswordHash: r.PasswordHash, Name: r.Name, Role: r.Role,
		ArtistName: r.ArtistName, Bio: r.Bio, AvatarURL: r.AvatarURL, SocialLinks: r.SocialLinks,
		Active: r.Active, LastLoginAt: r.LastLoginAt, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

// submissionRow — строка таблицы submissions.
// gorm.DeletedAt включает soft delete: запросы автоматически
// исключают удалённые релизы.
type submissionRow struct {
	ID                string         `gorm:"column:id;primaryKey"`
	Title             string         `gorm:"column:title"`
	ArtistName        string         `gorm:"column:artist_name"`
	UploaderID        string         `gorm:"column:uploader_id"`
	Status            string         `gorm:"column:status"`
	Genre             string         `gorm:"column:genre"`
	ReleaseDate       *time.Time     `gorm:"column:release_date;type:date"`
	Label             string         `gorm:"column:label"`
	UPC               string         `gorm:"column:upc"`
	CoverArtPath      string         `gorm:"column:cover_art_path"`
	Description       string         `gorm:"column:description"`
	RejectionReason   string         `gorm:"column:rejection_reason"`
	ReviewNotes       string         `gorm:"column:review_notes"`
	ReviewedBy        *string        `gorm:"column:reviewed_by"`
	ReviewedAt        *time.Time     `gorm:"column:reviewed_at"`
	ResubmissionCount int            `gorm:"column:resubmission_count"`
	SubmittedAt       *time.Time     `gorm:"column:submitted_at"`
	CreatedAt         time.Time      `gorm:"column:created_at"`
	UpdatedAt         time.Time      `gorm:"column:updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"column:deleted_at"`
}

func (submissionRow) TableName() string { return "submissions" }

func submissionFromModel(s *model.Submission) *submissionRow {
	return &submissionRow{
		ID: s.ID, Title: s.Title, ArtistName: s.ArtistName, UploaderID: s.UploaderID, Status: s.Status,
		Genre: s.Genre, ReleaseDate: s.ReleaseDate, Label: s.Label, UPC: s.UPC, CoverArtPath: s.CoverArtPath,
		Description: s.Description, RejectionReason: s.RejectionReason, ReviewNotes: s.ReviewNotes,
		ReviewedBy: s.ReviewedBy, ReviewedAt: s.ReviewedAt, ResubmissionCount: s.ResubmissionCount,
		SubmittedAt: s.SubmittedAt, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
	}
}

func (r *submissionRow) toModel() *model.Submission {
	s := &model.Submission{
		ID: r.ID, Title: r.Title, ArtistName: r.ArtistName, UploaderID: r.UploaderID, Status: r.Status,
		Genre: r.Genre, ReleaseDate: r.ReleaseDate, Label: r.Label, UPC: r.UPC, CoverArtPath: r.CoverArtPath,
		Description: r.Description, RejectionReason: r.RejectionReason, ReviewNotes: r.ReviewNotes,
		ReviewedBy: r.ReviewedBy, ReviewedAt: r.ReviewedAt, ResubmissionCount: r.ResubmissionCount,
		SubmittedAt: r.SubmittedAt, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	if r.DeletedAt.Valid {
		t := r.DeletedAt.Time
		s.DeletedAt = &t
	}
	return s
}
