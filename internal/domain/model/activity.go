package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Действия журнала.
const (
	ActionUserRegistered      = "user.registered"
	ActionUserLogin           = "user.login"
	ActionUserLogout          = "user.logout"
	ActionUserCreated         = "user.created"
	ActionUserUpdated         = "user.updated"
	ActionUserDeactivated     = "user.deactivated"
	ActionPasswordChanged     = "user.password_changed"
	ActionProfileUpdated      = "user.profile_updated"
	ActionSubmissionCreated   = "submission.created"
	ActionSubmissionUpdated   = "submission.updated"
	ActionSubmissionDeleted   = "submission.deleted"
	ActionSubmissionSubmitted = "submission.submitted"
	ActionSubmissionWithdrawn = "submission.withdrawn"
	ActionSubmissionApproved  = "submission.approved"
	ActionSubmissionRejected  = "submission.rejected"
	ActionSubmissionResubmit  = "submission.resubmitted"
	ActionSubmissionProcess   = "submission.processing"
	ActionSubmissionPublished = "submission.published"
	ActionTrackAdded          = "track.added"
	ActionTrackUpdated        = "track.updated"
	ActionTrackDeleted        = "track.deleted"
	ActionFileUploaded        = "file.uploaded"
	ActionFileDeleted         = "file.deleted"
	ActionEmailSettings       = "email.settings_updated"
	ActionEmailTest           = "email.test_sent"
	ActionActivityPruned      = "activity.pruned"
	ActionDebugLogsCleared    = "debug_logs.cleared"
)

// Типы сущностей журнала.
const (
	EntityUser       = "user"
	EntitySubmission = "submission"
	EntityTrack      = "track"
	EntityFile       = "file"
	EntitySettings   = "settings"
)

// ActivityLog — запись журнала действий (append-only).
// Хранится в таблице activity_logs.
type ActivityLog struct {
	ID int64
	// UserID — автор действия (nil для системных действий)
	UserID     *string
	Action     string
	EntityType string
	EntityID   string
	Details    Details
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
}

// Details — произвольные подробности действия, хранятся в jsonb.
type Details map[string]any

// Value реализует driver.Valuer.
func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// Scan реализует sql.Scanner.
func (d *Details) Scan(src any) error {
	return scanJSON(src, d)
}
