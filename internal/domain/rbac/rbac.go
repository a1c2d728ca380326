// Пакет rbac — правила доступа Label Portal.
// Две роли: Label Manager (модерация и администрирование) и Artist
// (только собственные релизы). Все функции чистые: решение принимается
// по роли, владельцу и статусу ресурса.
package rbac

import (
	"strings"

	"github.com/bigkaa/labelportal/internal/domain/model"
)

// Роли в порядке возрастания привилегий.
const (
	RoleArtist       = "artist"
	RoleLabelManager = "label_manager"
)

// roleWeight — вес роли для сравнения.
// Чем выше вес, тем больше привилегий.
var roleWeight = map[string]int{
	RoleArtist:       1,
	RoleLabelManager: 2,
}

// roleTitles — человекочитаемые названия ролей.
var roleTitles = map[string]string{
	RoleArtist:       "Artist",
	RoleLabelManager: "Label Manager",
}

// Subject — тот, кто выполняет действие.
type Subject struct {
	ID   string
	Role string
}

// IsManager сообщает, является ли субъект Label Manager.
func (s Subject) IsManager() bool {
	return s.Role == RoleLabelManager
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

// AtLeast сообщает, что роль role не ниже min.
func AtLeast(role, min string) bool {
	return roleWeight[role] >= roleWeight[min] && roleWeight[role] > 0
}

// ParseRole приводит роль из формы или внешнего источника к каноническому виду.
// Принимает "label_manager", "Label Manager", "artist", "Artist".
func ParseRole(s string) (string, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, " ", "_")
	norm = strings.ReplaceAll(norm, "-", "_")
	if IsValidRole(norm) {
		return norm, true
	}
	return "", false
}

// RoleTitle возвращает отображаемое название роли.
func RoleTitle(role string) string {
	if t, ok := roleTitles[role]; ok {
		return t
	}
	return role
}

// --- Релизы ---

func owns(s Subject, sub *model.Submission) bool {
	return sub != nil && s.ID != "" && sub.UploaderID == s.ID
}

// CanViewSubmission: менеджер видит всё, артист — только свои релизы.
func CanViewSubmission(s Subject, sub *model.Submission) bool {
	return s.IsManager() || owns(s, sub)
}

// CanEditSubmission: менеджер всегда; владелец — пока релиз
// в статусе draft, pending или rejected.
func CanEditSubmission(s Subject, sub *model.Submission) bool {
	if s.IsManager() {
		return sub != nil
	}
	if !owns(s, sub) {
		return false
	}
	switch sub.Status {
	case model.StatusDraft, model.StatusPending, model.StatusRejected:
		return true
	}
	return false
}

// CanDeleteSubmission: менеджер всегда; владелец — только draft и rejected.
func CanDeleteSubmission(s Subject, sub *model.Submission) bool {
	if s.IsManager() {
		return sub != nil
	}
	if !owns(s, sub) {
		return false
	}
	return sub.Status == model.StatusDraft || sub.Status == model.StatusRejected
}

// CanReviewSubmission — одобрение, отклонение, обработка и публикация.
func CanReviewSubmission(s Subject) bool {
	return s.IsManager()
}

// CanSubmit — отправка черновика на модерацию (и отзыв обратно).
func CanSubmit(s Subject, sub *model.Submission) bool {
	return s.IsManager() || owns(s, sub)
}

// CanResubmit — повторная отправка отклонённого релиза.
func CanResubmit(s Subject, sub *model.Submission) bool {
	return s.IsManager() || owns(s, sub)
}

// --- Администрирование ---

// CanManageUsers — создание, изменение и деактивация пользователей.
func CanManageUsers(s Subject) bool {
	return s.IsManager()
}

// CanManageEmail — настройки почты, тестовые письма, журнал писем.
func CanManageEmail(s Subject) bool {
	return s.IsManager()
}

// CanViewAllActivity — журнал действий всех пользователей.
func CanViewAllActivity(s Subject) bool {
	return s.IsManager()
}

// CanViewDebugLogs — буфер отладочных логов.
func CanViewDebugLogs(s Subject) bool {
	return s.IsManager()
}

// CanEditProfile: свой профиль или любой профиль для менеджера.
func CanEditProfile(s Subject, targetID string) bool {
	return s.IsManager() || (s.ID != "" && s.ID == targetID)
}

// CanAccessFile: владелец файла или менеджер.
func CanAccessFile(s Subject, ownerID string) bool {
	return s.IsManager() || (s.ID != "" && s.ID == ownerID)
}
