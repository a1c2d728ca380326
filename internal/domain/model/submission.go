package model

import "time"

// Статусы релиза.
const (
	StatusDraft      = "draft"
	StatusPending    = "pending"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
	StatusProcessing = "processing"
	StatusPublished  = "published"
)

// Statuses — все статусы в порядке жизненного цикла.
var Statuses = []string{
	StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusProcessing, StatusPublished,
}

// IsValidStatus проверяет, является ли строка известным статусом.
func IsValidStatus(s string) bool {
	for _, st := range Statuses {
		if st == s {
			return true
		}
	}
	return false
}

// Submission — музыкальный релиз, проходящий модерацию.
// Хранится в таблице submissions.
type Submission struct {
	ID         string
	Title      string
	ArtistName string
	// UploaderID — владелец релиза (users.id)
	UploaderID string
	Status     string
	Genre      string
	// ReleaseDate — планируемая дата релиза (только дата)
	ReleaseDate  *time.Time
	Label        string
	UPC          string
	CoverArtPath string
	Description  string
	// RejectionReason — причина последнего отклонения
	RejectionReason string
	ReviewNotes     string
	ReviewedBy      *string
	ReviewedAt      *time.Time
	// ResubmissionCount — сколько раз релиз отправлялся повторно после отклонения
	ResubmissionCount int
	SubmittedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time

	// Tracks заполняется только при чтении релиза с треками.
	Tracks []Track
}

// Track — трек релиза.
// Хранится в таблице tracks.
type Track struct {
	ID              string
	SubmissionID    string
	Title           string
	TrackNumber     int
	FilePath        string
	DurationSeconds int
	// ISRC — нормализованный код (12 символов, без дефисов)
	ISRC         string
	Format       string
	BitrateKbps  int
	SampleRateHz int
	FileSize     int64
	Checksum     string
	Explicit     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
