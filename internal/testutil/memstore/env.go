package memstore

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/labelportal/internal/auth"
	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/email"
	"github.com/bigkaa/labelportal/internal/logbuffer"
	"github.com/bigkaa/labelportal/internal/service"
	"github.com/bigkaa/labelportal/internal/storage/filestore"
)

// Пароль пользователей, создаваемых Env.
const Password = "correct-horse-battery"

// Outbox запоминает отправленные письма.
type Outbox struct {
	mode string

	mu   sync.Mutex
	sent []email.Message
}

func (o *Outbox) Mode() string { return o.mode }

func (o *Outbox) Send(_ context.Context, msg email.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

// Messages — копия отправленных писем.
func (o *Outbox) Messages() []email.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]email.Message(nil), o.sent...)
}

// Env — сервисный слой поверх in-memory хранилища и временной директории.
type Env struct {
	DB       *DB
	Logs     *logbuffer.Buffer
	Outbox   *Outbox
	Tokens   *auth.TokenIssuer
	Sessions *auth.SessionManager

	Activity      *service.ActivityService
	Settings      *service.SettingsService
	Notifications *service.NotificationService
	Users         *service.UserService
	Auth          *service.AuthService
	Submissions   *service.SubmissionService
	Artists       *service.ArtistService
	Files         *service.FileService
	DebugLogs     *service.DebugLogService
}

// NewEnv собирает сервисы. Лимит загрузки — 1 МиБ.
func NewEnv(tb testing.TB) *Env {
	tb.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := New()

	store, err := filestore.New(tb.TempDir())
	if err != nil {
		tb.Fatalf("filestore.New: %v", err)
	}
	tokens, err := auth.NewTokenIssuer("memstore-jwt-secret", "labelportal", time.Hour, 0)
	if err != nil {
		tb.Fatalf("NewTokenIssuer: %v", err)
	}
	sessions, err := auth.NewSessionManager("memstore-session-secret", time.Hour, false)
	if err != nil {
		tb.Fatalf("NewSessionManager: %v", err)
	}

	e := &Env{
		DB:       db,
		Logs:     logbuffer.New(100, slog.LevelDebug),
		Outbox:   &Outbox{mode: service.EmailModeDemo},
		Tokens:   tokens,
		Sessions: sessions,
	}
	e.Activity = service.NewActivityService(db.Activity(), logger)
	e.Settings = service.NewSettingsService(db.Settings(), e.Activity, service.EmailModeDemo, false, logger)
	e.Notifications = service.NewNotificationService(e.Settings, e.Outbox, nil, db.EmailLogs(), db.Users(),
		e.Activity, "http://portal.test", logger)
	cache := service.NewUserCache(db.Users(), 100, time.Minute)
	e.Users = service.NewUserService(db.Users(), cache, e.Activity, e.Notifications, logger)
	e.Auth = service.NewAuthService(e.Users, db.Users(), cache, tokens, e.Activity, e.Notifications, logger)
	e.Submissions = service.NewSubmissionService(db.Submissions(), db.Tracks(), db.Files(), db.Users(), db.Tx(),
		e.Activity, e.Notifications, logger)
	e.Artists = service.NewArtistService(db.Users(), db.Submissions(), logger)
	e.Files = service.NewFileService(db.Files(), store, 1<<20, e.Activity, logger)
	e.DebugLogs = service.NewDebugLogService(e.Logs, e.Activity)

	tb.Cleanup(e.Notifications.Close)
	return e
}

// Manager создаёт первого Label Manager (manager@label.test).
func (e *Env) Manager(tb testing.TB) *model.User {
	tb.Helper()
	ctx := context.Background()
	const addr = "manager@label.test"
	if err := e.Users.EnsureBootstrapManager(ctx, addr, Password); err != nil {
		tb.Fatalf("EnsureBootstrapManager: %v", err)
	}
	u, err := e.Auth.ResolveByEmail(ctx, addr)
	if err != nil {
		tb.Fatalf("ResolveByEmail: %v", err)
	}
	return u
}

// Artist регистрирует артиста name@artist.test.
func (e *Env) Artist(tb testing.TB, name string) *model.User {
	tb.Helper()
	u, err := e.Auth.Register(context.Background(), service.RegisterInput{
		Email:      name + "@artist.test",
		Password:   Password,
		Name:       name,
		ArtistName: name,
	})
	if err != nil {
		tb.Fatalf("Register(%s): %v", name, err)
	}
	return u
}

// Token выпускает Bearer-токен API для пользователя.
func (e *Env) Token(tb testing.TB, u *model.User) string {
	tb.Helper()
	token, _, err := e.Tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		tb.Fatalf("Issue: %v", err)
	}
	return token
}
