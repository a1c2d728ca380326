// notifications.go — email-уведомления о событиях портала.
//
// Режим (demo/production) берётся из app_settings при каждой отправке,
// поэтому переключение в UI действует без перезапуска. Уведомления о
// релизах отправляются в фоне и не блокируют запрос; каждая попытка
// пишется в email_logs.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/email"
	"github.com/bigkaa/labelportal/internal/repository"
)

var emailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lp_emails_total",
	Help: "Количество попыток отправки писем по шаблону и результату.",
}, []string{"template", "status"})

// notifyTimeout — лимит на одно фоновое уведомление.
const notifyTimeout = 30 * time.Second

// EmailLogPage — страница журнала писем.
type EmailLogPage struct {
	Items   []*model.EmailLog
	Total   int
	HasMore bool
}

// NotificationService — отправка уведомлений и журнал писем.
type NotificationService struct {
	settings  *SettingsService
	demo      email.Sender
	smtp      email.Sender
	logs      repository.EmailLogRepository
	users     repository.UserRepository
	activity  *ActivityService
	portalURL string
	logger    *slog.Logger

	wg sync.WaitGroup
}

// NewNotificationService создаёт сервис уведомлений.
// smtp может быть nil, если SMTP-сервер не настроен: тогда production
// режим откатывается на demo с предупреждением.
func NewNotificationService(
	settings *SettingsService,
	demo email.Sender,
	smtp email.Sender,
	logs repository.EmailLogRepository,
	users repository.UserRepository,
	activity *ActivityService,
	portalURL string,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		settings:  settings,
		demo:      demo,
		smtp:      smtp,
		logs:      logs,
		users:     users,
		activity:  activity,
		portalURL: portalURL,
		logger:    logger.With(slog.String("component", "notification_service")),
	}
}

// sender выбирает способ доставки по текущему режиму.
func (s *NotificationService) sender(ctx context.Context) email.Sender {
	if s.settings.EmailMode(ctx) != EmailModeProduction {
		return s.demo
	}
	if s.smtp == nil {
		s.logger.Warn("Режим production без SMTP-сервера, письма не отправляются (demo)")
		return s.demo
	}
	return s.smtp
}

// deliver отправляет письмо каждому получателю отдельно и пишет результат в email_logs.
// Возвращает первую ошибку доставки.
func (s *NotificationService) deliver(ctx context.Context, msg email.Message) error {
	snd := s.sender(ctx)
	var firstErr error

	for _, to := range msg.To {
		one := msg
		one.To = []string{to}

		entry := &model.EmailLog{
			Recipient: to,
			Subject:   msg.Subject,
			Template:  msg.Template,
			Status:    model.EmailStatusSent,
		}
		if snd.Mode() == EmailModeDemo {
			entry.Status = model.EmailStatusDemo
		}

		if err := snd.Send(ctx, one); err != nil {
			entry.Status = model.EmailStatusFailed
			entry.Error = err.Error()
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Warn("Ошибка отправки письма",
				slog.String("to", to),
				slog.String("template", msg.Template),
				slog.String("error", err.Error()),
			)
		}
		emailsTotal.WithLabelValues(msg.Template, entry.Status).Inc()

		if err := s.logs.Append(ctx, entry); err != nil {
			s.logger.Warn("Не удалось записать журнал писем",
				slog.String("to", to),
				slog.String("error", err.Error()),
			)
		}
	}
	return firstErr
}

// async выполняет fn в фоне с собственным таймаутом.
// Отмена контекста запроса не прерывает отправку.
func (s *NotificationService) async(ctx context.Context, fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		fn(bg)
	}()
}

// Close ожидает завершения фоновых отправок.
func (s *NotificationService) Close() {
	s.wg.Wait()
}

func (s *NotificationService) submissionURL(id string) string {
	return s.portalURL + "/submissions/" + id
}

// Welcome отправляет приветственное письмо новому пользователю.
func (s *NotificationService) Welcome(ctx context.Context, u *model.User) {
	if !s.settings.NotificationsEnabled(ctx) {
		return
	}
	s.async(ctx, func(ctx context.Context) {
		msg, err := email.Render(email.TemplateWelcome, email.TemplateData{
			PortalURL:     s.portalURL,
			RecipientName: u.Name,
		}, u.Email)
		if err != nil {
			s.logger.Error("Ошибка шаблона письма", slog.String("error", err.Error()))
			return
		}
		_ = s.deliver(ctx, msg)
	})
}

// SubmissionStatusChanged отправляет уведомление по новому статусу релиза:
// pending — менеджерам, approved/rejected/published — владельцу.
func (s *NotificationService) SubmissionStatusChanged(ctx context.Context, sub *model.Submission) {
	var tmpl string
	switch sub.Status {
	case model.StatusPending:
		tmpl = email.TemplateSubmissionReceived
	case model.StatusApproved:
		tmpl = email.TemplateSubmissionApproved
	case model.StatusRejected:
		tmpl = email.TemplateSubmissionRejected
	case model.StatusPublished:
		tmpl = email.TemplateSubmissionPublished
	default:
		return
	}
	if !s.settings.NotificationsEnabled(ctx) {
		return
	}

	snapshot := *sub
	s.async(ctx, func(ctx context.Context) {
		if err := s.notifySubmission(ctx, tmpl, &snapshot); err != nil {
			s.logger.Warn("Уведомление о релизе не отправлено",
				slog.String("submission_id", snapshot.ID),
				slog.String("template", tmpl),
				slog.String("error", err.Error()),
			)
		}
	})
}

func (s *NotificationService) notifySubmission(ctx context.Context, tmpl string, sub *model.Submission) error {
	data := email.TemplateData{
		PortalURL:       s.portalURL,
		ArtistName:      sub.ArtistName,
		SubmissionTitle: sub.Title,
		SubmissionURL:   s.submissionURL(sub.ID),
		Reason:          sub.RejectionReason,
		Notes:           sub.ReviewNotes,
	}

	var to []string
	if tmpl == email.TemplateSubmissionReceived {
		recipients, err := s.managerRecipients(ctx)
		if err != nil {
			return err
		}
		to = recipients
		data.RecipientName = "Label Manager"
	} else {
		owner, err := s.users.GetByID(ctx, sub.UploaderID)
		if err != nil {
			return fmt.Errorf("владелец релиза: %w", err)
		}
		if !owner.Active {
			return nil
		}
		to = []string{owner.Email}
		data.RecipientName = owner.Name
	}
	if len(to) == 0 {
		s.logger.Debug("Нет получателей уведомления", slog.String("template", tmpl))
		return nil
	}

	msg, err := email.Render(tmpl, data, to...)
	if err != nil {
		return err
	}
	return s.deliver(ctx, msg)
}

// managerRecipients — адреса из настроек, иначе все активные менеджеры.
func (s *NotificationService) managerRecipients(ctx context.Context) ([]string, error) {
	if list := s.settings.ManagerRecipients(ctx); len(list) > 0 {
		return list, nil
	}
	role := rbac.RoleLabelManager
	active := true
	managers, err := s.users.List(ctx, repository.UserFilters{Role: &role, Active: &active}, MaxLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("список менеджеров: %w", err)
	}
	out := make([]string, 0, len(managers))
	for _, m := range managers {
		out = append(out, m.Email)
	}
	return out, nil
}

// SendTest синхронно отправляет тестовое письмо и возвращает режим доставки.
func (s *NotificationService) SendTest(ctx context.Context, actor *model.User, to string) (string, error) {
	if !rbac.CanManageEmail(rbac.Subject{ID: actor.ID, Role: actor.Role}) {
		return "", ErrForbidden
	}
	if to == "" {
		to = actor.Email
	}
	if !email.ValidAddress(to) {
		return "", validationf("некорректный адрес %q", to)
	}

	msg, err := email.Render(email.TemplateTest, email.TemplateData{
		PortalURL:     s.portalURL,
		RecipientName: actor.Name,
	}, to)
	if err != nil {
		return "", fmt.Errorf("шаблон тестового письма: %w", err)
	}

	mode := s.sender(ctx).Mode()
	if err := s.deliver(ctx, msg); err != nil {
		if errors.Is(err, email.ErrInvalidRecipient) {
			return "", fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return mode, fmt.Errorf("отправка тестового письма: %w", err)
	}

	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     model.ActionEmailTest,
		EntityType: model.EntitySettings,
		EntityID:   "email",
		Details:    model.Details{"to": to, "mode": mode},
	})
	return mode, nil
}

// ListLogs возвращает журнал писем, опционально по статусу.
func (s *NotificationService) ListLogs(ctx context.Context, status string, page Page) (*EmailLogPage, error) {
	var filter *string
	if status != "" {
		switch status {
		case model.EmailStatusSent, model.EmailStatusFailed, model.EmailStatusDemo:
			filter = &status
		default:
			return nil, validationf("неизвестный статус письма %q", status)
		}
	}

	items, err := s.logs.List(ctx, filter, page.Limit, page.Offset)
	if err != nil {
		return nil, mapRepoError(err, "журнал писем")
	}
	total, err := s.logs.Count(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err, "подсчёт журнала писем")
	}
	return &EmailLogPage{Items: items, Total: total, HasMore: page.HasMore(total)}, nil
}
