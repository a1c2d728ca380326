package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/email"
)

func TestNotificationService_ManagerRecipientsFromSettings(t *testing.T) {
	env := newTestEnv(t)
	boss := env.manager(t)
	artist := env.artist(t, "nova")
	ctx := context.Background()

	if _, err := env.settings.UpdateEmailSettings(ctx, boss, EmailSettingsUpdate{
		ManagerRecipients: []string{"A&R@label.test", "ops@label.test"},
	}); err != nil {
		t.Fatalf("UpdateEmailSettings() ошибка: %v", err)
	}

	if _, err := env.submissions.Create(ctx, artist, SubmissionInput{Title: "Single", Submit: true}); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	env.notifications.Close()

	msgs := env.demo.messages()
	if len(msgs) != 2 {
		t.Fatalf("писем %d, ожидалось 2 (по одному на адрес)", len(msgs))
	}
	got := []string{msgs[0].To[0], msgs[1].To[0]}
	if !contains(got, "a&r@label.test") || !contains(got, "ops@label.test") {
		t.Errorf("получатели = %v", got)
	}
	logs := env.emailLogs()
	if len(logs) != 2 || logs[0].Status != model.EmailStatusDemo {
		t.Errorf("email_logs = %+v", logs)
	}
}

func TestNotificationService_Disabled(t *testing.T) {
	env := newTestEnv(t)
	boss := env.manager(t)
	ctx := context.Background()

	off := false
	if _, err := env.settings.UpdateEmailSettings(ctx, boss, EmailSettingsUpdate{NotificationsEnabled: &off}); err != nil {
		t.Fatalf("UpdateEmailSettings() ошибка: %v", err)
	}
	artist := env.artist(t, "nova")
	if _, err := env.submissions.Create(ctx, artist, SubmissionInput{Title: "Single", Submit: true}); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if _, err := env.users.Create(ctx, boss, NewUserInput{Email: "x@artist.test", Password: "long-enough", Name: "X", Role: "artist"}); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	env.notifications.Close()

	if n := len(env.demo.messages()); n != 0 {
		t.Errorf("отправлено %d писем при выключенных уведомлениях", n)
	}
}

func TestNotificationService_ProductionMode(t *testing.T) {
	env := newTestEnv(t)
	boss := env.manager(t)
	artist := env.artist(t, "nova")
	ctx := context.Background()

	mode := EmailModeProduction
	if _, err := env.settings.UpdateEmailSettings(ctx, boss, EmailSettingsUpdate{Mode: &mode}); err != nil {
		t.Fatalf("UpdateEmailSettings() ошибка: %v", err)
	}

	sub, err := env.submissions.Create(ctx, artist, SubmissionInput{Title: "Single", Submit: true})
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if _, err := env.submissions.Transition(ctx, boss, sub.ID, "reject", TransitionInput{Reason: "Тихий мастер"}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	env.notifications.Close()

	if n := len(env.demo.messages()); n != 0 {
		t.Errorf("demo получил %d писем в режиме production", n)
	}
	msgs := env.smtp.messages()
	if len(msgs) != 2 {
		t.Fatalf("SMTP получил %d писем, ожидалось 2", len(msgs))
	}
	var rejected *email.Message
	for i := range msgs {
		if msgs[i].Template == email.TemplateSubmissionRejected {
			rejected = &msgs[i]
		}
	}
	if rejected == nil || rejected.To[0] != artist.Email {
		t.Fatalf("письмо об отклонении не отправлено владельцу: %+v", msgs)
	}
	for _, l := range env.emailLogs() {
		if l.Status != model.EmailStatusSent {
			t.Errorf("статус в журнале %q, ожидался sent", l.Status)
		}
	}
}

func TestNotificationService_InactiveOwnerSkipped(t *testing.T) {
	env := newTestEnv(t)
	boss := env.manager(t)
	artist := env.artist(t, "nova")
	ctx := context.Background()

	sub, err := env.submissions.Create(ctx, artist, SubmissionInput{Title: "Single", Submit: true})
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if _, err := env.users.Deactivate(ctx, boss, artist.ID); err != nil {
		t.Fatalf("Deactivate() ошибка: %v", err)
	}
	if _, err := env.submissions.Transition(ctx, boss, sub.ID, "approve", TransitionInput{}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	env.notifications.Close()

	for _, m := range env.demo.messages() {
		if m.Template == email.TemplateSubmissionApproved {
			t.Errorf("письмо неактивному владельцу: %v", m.To)
		}
	}
}

func TestNotificationService_SendTest(t *testing.T) {
	env := newTestEnv(t)
	boss := env.manager(t)
	artist := env.artist(t, "nova")
	ctx := context.Background()

	mode, err := env.notifications.SendTest(ctx, boss, "")
	if err != nil {
		t.Fatalf("SendTest() ошибка: %v", err)
	}
	if mode != EmailModeDemo {
		t.Errorf("mode = %q, ожидался demo", mode)
	}
	msgs := env.demo.messages()
	if len(msgs) != 1 || msgs[0].To[0] != boss.Email || msgs[0].Template != email.TemplateTest {
		t.Errorf("письма = %+v", msgs)
	}
	if !contains(env.actions(), model.ActionEmailTest) {
		t.Error("тестовое письмо не записано в журнал")
	}

	if _, err := env.notifications.SendTest(ctx, artist, ""); !errors.Is(err, ErrForbidden) {
		t.Errorf("SendTest() артистом = %v, ожидался ErrForbidden", err)
	}
	if _, err := env.notifications.SendTest(ctx, boss, "not an address"); !errors.Is(err, ErrValidation) {
		t.Errorf("некорректный адрес: %v, ожидался ErrValidation", err)
	}

	env.demo.err = errors.New("mailbox full")
	if _, err := env.notifications.SendTest(ctx, boss, "ops@label.test"); err == nil {
		t.Error("SendTest() не вернул ошибку доставки")
	}
	env.demo.err = nil

	page, err := env.notifications.ListLogs(ctx, model.EmailStatusFailed, NewPage(10, 0))
	if err != nil {
		t.Fatalf("ListLogs() ошибка: %v", err)
	}
	if page.Total != 1 || page.Items[0].Error != "mailbox full" {
		t.Errorf("журнал ошибок = %+v", page.Items)
	}
	if _, err := env.notifications.ListLogs(ctx, "bounced", NewPage(10, 0)); !errors.Is(err, ErrValidation) {
		t.Errorf("неизвестный статус: %v, ожидался ErrValidation", err)
	}
}

func TestSettingsService_EmailSettings(t *testing.T) {
	env := newTestEnv(t)
	boss := env.manager(t)
	artist := env.artist(t, "nova")
	ctx := context.Background()

	st, err := env.settings.EmailSettings(ctx)
	if err != nil {
		t.Fatalf("EmailSettings() ошибка: %v", err)
	}
	if st.Mode != EmailModeDemo || st.ModeOverridden || !st.NotificationsEnabled || !st.SMTPConfigured {
		t.Errorf("значения по умолчанию: %+v", st)
	}

	mode := EmailModeProduction
	st, err = env.settings.UpdateEmailSettings(ctx, boss, EmailSettingsUpdate{Mode: &mode})
	if err != nil {
		t.Fatalf("UpdateEmailSettings() ошибка: %v", err)
	}
	if st.Mode != EmailModeProduction || !st.ModeOverridden {
		t.Errorf("после обновления: %+v", st)
	}
	if env.settings.EmailMode(ctx) != EmailModeProduction {
		t.Error("EmailMode() не видит переопределение")
	}
	if !contains(env.actions(), model.ActionEmailSettings) {
		t.Error("изменение настроек не записано в журнал")
	}

	bad := "sandbox"
	if _, err := env.settings.UpdateEmailSettings(ctx, boss, EmailSettingsUpdate{Mode: &bad}); !errors.Is(err, ErrValidation) {
		t.Errorf("неизвестный режим: %v, ожидался ErrValidation", err)
	}
	if _, err := env.settings.UpdateEmailSettings(ctx, boss, EmailSettingsUpdate{ManagerRecipients: []string{"broken"}}); !errors.Is(err, ErrValidation) {
		t.Errorf("некорректный получатель: %v, ожидался ErrValidation", err)
	}
	if _, err := env.settings.UpdateEmailSettings(ctx, artist, EmailSettingsUpdate{Mode: &mode}); !errors.Is(err, ErrForbidden) {
		t.Errorf("артист меняет настройки: %v, ожидался ErrForbidden", err)
	}
	if err := env.settings.Set(ctx, "ui.theme", "dark", boss.Email); !errors.Is(err, ErrValidation) {
		t.Errorf("неизвестный ключ: %v, ожидался ErrValidation", err)
	}

	st, err = env.settings.UpdateEmailSettings(ctx, boss, EmailSettingsUpdate{ManagerRecipients: []string{"ops@label.test"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(st.ManagerRecipients) != 1 {
		t.Fatalf("ManagerRecipients = %v", st.ManagerRecipients)
	}
	st, err = env.settings.UpdateEmailSettings(ctx, boss, EmailSettingsUpdate{ResetRecipients: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(st.ManagerRecipients) != 0 {
		t.Errorf("после сброса ManagerRecipients = %v", st.ManagerRecipients)
	}
}
