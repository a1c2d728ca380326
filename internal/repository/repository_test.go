package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/labelportal/internal/config"
	"github.com/bigkaa/labelportal/internal/database"
	"github.com/bigkaa/labelportal/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool; очистка регистрируется через t.Cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("labelportal_test"),
		postgres.WithUsername("labelportal"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	t.Setenv("LP_DB_HOST", host)
	t.Setenv("LP_DB_PORT", port.Port())
	t.Setenv("LP_DB_NAME", "labelportal_test")
	t.Setenv("LP_DB_USER", "labelportal")
	t.Setenv("LP_DB_PASSWORD", "test-password")
	t.Setenv("LP_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

func createUser(t *testing.T, repo UserRepository, email, role string) *model.User {
	t.Helper()
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: "hash",
		Name:         "Test " + role,
		Role:         role,
		SocialLinks:  model.SocialLinks{"website": "https://example.com"},
		Active:       true,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("Create(user) ошибка: %v", err)
	}
	return u
}

// --- Unit-тесты построителя запросов ---

func TestWhereBuilder(t *testing.T) {
	w := &whereBuilder{}
	if w.sql() != "" {
		t.Errorf("пустой builder: %q", w.sql())
	}
	w.raw("deleted_at IS NULL")
	w.add("status = $%d", "pending")
	w.add("(title ILIKE $%[1]d OR genre ILIKE $%[1]d)", "%x%")

	want := "WHERE deleted_at IS NULL AND status = $1 AND (title ILIKE $2 OR genre ILIKE $2)"
	if got := w.sql(); got != want {
		t.Errorf("sql() = %q, хотели %q", got, want)
	}
	if w.next() != 3 || len(w.args) != 2 {
		t.Errorf("next() = %d, args = %v", w.next(), w.args)
	}
}

func TestLikePattern(t *testing.T) {
	tests := map[string]string{
		"rock":   "%rock%",
		"100%":   `%100\%%`,
		"a_b":    `%a\_b%`,
		`back\s`: `%back\\s%`,
	}
	for in, want := range tests {
		if got := LikePattern(in); got != want {
			t.Errorf("LikePattern(%q) = %q, хотели %q", in, got, want)
		}
	}
}

// --- Интеграционные тесты ---

func TestUserCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(pool)

	u := createUser(t, repo, "Artist@Example.com", "artist")
	if u.Email != "artist@example.com" {
		t.Errorf("email не приведён к нижнему регистру: %q", u.Email)
	}
	if u.CreatedAt.IsZero() {
		t.Error("CreatedAt не установлен")
	}

	// Дубликат email в другом регистре
	dup := &model.User{ID: uuid.New().String(), Email: "ARTIST@example.com", Name: "dup", Role: "artist", Active: true}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Create(duplicate) = %v, ожидали ErrConflict", err)
	}

	got, err := repo.GetByEmail(ctx, " ARTIST@EXAMPLE.COM ")
	if err != nil {
		t.Fatalf("GetByEmail() ошибка: %v", err)
	}
	if got.ID != u.ID || got.SocialLinks["website"] != "https://example.com" {
		t.Errorf("GetByEmail() = %+v", got)
	}

	stage := "Stage Name"
	got.ArtistName = &stage
	got.Active = false
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}
	if err := repo.TouchLogin(ctx, got.ID, time.Now()); err != nil {
		t.Fatalf("TouchLogin() ошибка: %v", err)
	}

	reloaded, err := repo.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if reloaded.ArtistName == nil || *reloaded.ArtistName != stage || reloaded.Active {
		t.Errorf("обновление не применилось: %+v", reloaded)
	}
	if reloaded.LastLoginAt == nil {
		t.Error("LastLoginAt не установлен")
	}

	createUser(t, repo, "manager@example.com", "label_manager")
	active := true
	role := "artist"
	if n, _ := repo.Count(ctx, UserFilters{Role: &role}); n != 1 {
		t.Errorf("Count(artist) = %d, ожидали 1", n)
	}
	if n, _ := repo.Count(ctx, UserFilters{Active: &active}); n != 1 {
		t.Errorf("Count(active) = %d, ожидали 1", n)
	}
	if n, _ := repo.CountByRole(ctx, "artist", true); n != 0 {
		t.Errorf("CountByRole(artist, active) = %d, ожидали 0", n)
	}
	list, err := repo.List(ctx, UserFilters{Query: "stage"}, 10, 0)
	if err != nil || len(list) != 1 {
		t.Errorf("List(query=stage) = %d, %v", len(list), err)
	}

	if _, err := repo.GetByID(ctx, uuid.New().String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(unknown) = %v, ожидали ErrNotFound", err)
	}
}

func TestSubmissionLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	repo := NewSubmissionRepository(pool)

	artist := createUser(t, users, "a@example.com", "artist")
	release := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	s := &model.Submission{
		ID:          uuid.New().String(),
		Title:       "First Album",
		ArtistName:  "Artist",
		UploaderID:  artist.ID,
		Status:      model.StatusDraft,
		Genre:       "rock",
		ReleaseDate: &release,
	}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// Переход из неверного статуса
	s.Status = model.StatusApproved
	if err := repo.Transition(ctx, s, model.StatusPending); !errors.Is(err, ErrConflict) {
		t.Errorf("Transition(wrong from) = %v, ожидали ErrConflict", err)
	}

	now := time.Now()
	s.Status = model.StatusPending
	s.SubmittedAt = &now
	if err := repo.Transition(ctx, s, model.StatusDraft); err != nil {
		t.Fatalf("Transition(draft→pending) ошибка: %v", err)
	}

	got, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Status != model.StatusPending || got.SubmittedAt == nil {
		t.Errorf("статус = %q, submitted_at = %v", got.Status, got.SubmittedAt)
	}
	if got.ReleaseDate == nil || !got.ReleaseDate.Equal(release) {
		t.Errorf("ReleaseDate = %v, ожидали %v", got.ReleaseDate, release)
	}

	got.Title = "First Album (Deluxe)"
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}

	counts, err := repo.CountByStatus(ctx, &artist.ID)
	if err != nil {
		t.Fatalf("CountByStatus() ошибка: %v", err)
	}
	if counts[model.StatusPending] != 1 || counts[model.StatusDraft] != 0 {
		t.Errorf("CountByStatus() = %v", counts)
	}
	all, _ := repo.CountByStatus(ctx, nil)
	if all[model.StatusPending] != 1 {
		t.Errorf("CountByStatus(nil) = %v", all)
	}

	pending := model.StatusPending
	list, err := repo.List(ctx, SubmissionFilters{Status: &pending, Query: "deluxe"}, 10, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("List() = %d, %v", len(list), err)
	}

	if err := repo.SoftDelete(ctx, s.ID); err != nil {
		t.Fatalf("SoftDelete() ошибка: %v", err)
	}
	if _, err := repo.GetByID(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(deleted) = %v, ожидали ErrNotFound", err)
	}
	if err := repo.SoftDelete(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный SoftDelete() = %v, ожидали ErrNotFound", err)
	}
	if n, _ := repo.Count(ctx, SubmissionFilters{}); n != 0 {
		t.Errorf("Count() после удаления = %d", n)
	}
}

func TestSubmissionTxWithTracks(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	artist := createUser(t, users, "tx@example.com", "artist")
	tx := NewTxRunner(pool)

	subID := uuid.New().String()
	// Второй трек с тем же ISRC — вся транзакция откатывается.
	err := tx.RunSubmissionTx(ctx, func(subs SubmissionRepository, tracks TrackRepository) error {
		if err := subs.Create(ctx, &model.Submission{
			ID: subID, Title: "EP", ArtistName: "A", UploaderID: artist.ID, Status: model.StatusDraft,
		}); err != nil {
			return err
		}
		for i := 1; i <= 2; i++ {
			if err := tracks.Create(ctx, &model.Track{
				ID: uuid.New().String(), SubmissionID: subID, Title: "T", TrackNumber: i, ISRC: "USRC11700001",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("RunSubmissionTx() = %v, ожидали ErrConflict", err)
	}
	if _, err := NewSubmissionRepository(pool).GetByID(ctx, subID); !errors.Is(err, ErrNotFound) {
		t.Errorf("релиз остался после отката: %v", err)
	}

	// Успешная транзакция
	err = tx.RunSubmissionTx(ctx, func(subs SubmissionRepository, tracks TrackRepository) error {
		if err := subs.Create(ctx, &model.Submission{
			ID: subID, Title: "EP", ArtistName: "A", UploaderID: artist.ID, Status: model.StatusDraft,
		}); err != nil {
			return err
		}
		return tracks.Create(ctx, &model.Track{
			ID: uuid.New().String(), SubmissionID: subID, Title: "Intro", TrackNumber: 1, Format: "flac",
		})
	})
	if err != nil {
		t.Fatalf("RunSubmissionTx() ошибка: %v", err)
	}

	trackRepo := NewTrackRepository(pool)
	list, err := trackRepo.ListBySubmission(ctx, subID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListBySubmission() = %d, %v", len(list), err)
	}
	tr := list[0]
	tr.DurationSeconds = 215
	if err := trackRepo.Update(ctx, &tr); err != nil {
		t.Fatalf("Update(track) ошибка: %v", err)
	}
	if n, _ := trackRepo.CountBySubmission(ctx, subID); n != 1 {
		t.Errorf("CountBySubmission() = %d", n)
	}
	if err := trackRepo.Delete(ctx, tr.ID); err != nil {
		t.Fatalf("Delete(track) ошибка: %v", err)
	}
	if _, err := trackRepo.GetByID(ctx, tr.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(deleted track) = %v", err)
	}
}

func TestActivityAndEmailLogs(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewActivityLogRepository(pool)

	userID := uuid.New().String()
	e := &model.ActivityLog{
		UserID:     &userID,
		Action:     model.ActionUserLogin,
		EntityType: model.EntityUser,
		EntityID:   userID,
		Details:    model.Details{"method": "password"},
		IPAddress:  "10.0.0.1",
	}
	if err := repo.Append(ctx, e); err != nil {
		t.Fatalf("Append() ошибка: %v", err)
	}
	if e.ID == 0 {
		t.Error("ID не установлен")
	}
	if err := repo.Append(ctx, &model.ActivityLog{Action: model.ActionActivityPruned}); err != nil {
		t.Fatalf("Append(system) ошибка: %v", err)
	}

	list, err := repo.List(ctx, ActivityFilters{UserID: &userID}, 10, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("List(user) = %d, %v", len(list), err)
	}
	if list[0].Details["method"] != "password" {
		t.Errorf("Details = %v", list[0].Details)
	}
	if n, _ := repo.Count(ctx, ActivityFilters{}); n != 2 {
		t.Errorf("Count() = %d, ожидали 2", n)
	}

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(time.Hour))
	if err != nil || deleted != 2 {
		t.Errorf("DeleteOlderThan() = %d, %v", deleted, err)
	}

	emails := NewEmailLogRepository(pool)
	if err := emails.Append(ctx, &model.EmailLog{Recipient: "a@example.com", Subject: "Hi", Template: "welcome", Status: model.EmailStatusDemo}); err != nil {
		t.Fatalf("Append(email) ошибка: %v", err)
	}
	if err := emails.Append(ctx, &model.EmailLog{Recipient: "b@example.com", Subject: "Hi", Status: model.EmailStatusFailed, Error: "timeout"}); err != nil {
		t.Fatalf("Append(email) ошибка: %v", err)
	}
	failed := model.EmailStatusFailed
	logs, err := emails.List(ctx, &failed, 10, 0)
	if err != nil || len(logs) != 1 || logs[0].Error != "timeout" {
		t.Errorf("List(failed) = %v, %v", logs, err)
	}
	if n, _ := emails.Count(ctx, nil); n != 2 {
		t.Errorf("Count(email) = %d", n)
	}
}

func TestFilesAndSettings(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	owner := createUser(t, NewUserRepository(pool), "files@example.com", "artist")
	repo := NewFileRepository(pool)

	f := &model.StoredFile{
		ID:               uuid.New().String(),
		OwnerID:          owner.ID,
		Backend:          "local",
		Path:             owner.ID + "/a.flac",
		OriginalFilename: "a.flac",
		ContentType:      "audio/flac",
		Size:             1024,
		Kind:             model.FileKindAudio,
	}
	if err := repo.Register(ctx, f); err != nil {
		t.Fatalf("Register() ошибка: %v", err)
	}
	dup := *f
	dup.ID = uuid.New().String()
	if err := repo.Register(ctx, &dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Register(same path) = %v, ожидали ErrConflict", err)
	}

	kind := model.FileKindAudio
	if n, _ := repo.Count(ctx, FileFilters{OwnerID: &owner.ID, Kind: &kind}); n != 1 {
		t.Errorf("Count() = %d", n)
	}
	if err := repo.Delete(ctx, f.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if err := repo.Delete(ctx, f.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный Delete() = %v", err)
	}
	if list, _ := repo.List(ctx, FileFilters{}, 10, 0); len(list) != 0 {
		t.Errorf("удалённый файл в списке активных: %d", len(list))
	}
	got, err := repo.GetByID(ctx, f.ID)
	if err != nil || got.Status != model.FileStatusDeleted {
		t.Errorf("GetByID(deleted) = %+v, %v", got, err)
	}

	settings := NewSettingsRepository(pool)
	if err := settings.Set(ctx, "email.mode", "production", "admin@example.com"); err != nil {
		t.Fatalf("Set() ошибка: %v", err)
	}
	if err := settings.Set(ctx, "email.mode", "demo", "admin@example.com"); err != nil {
		t.Fatalf("Set(upsert) ошибка: %v", err)
	}
	s, err := settings.Get(ctx, "email.mode")
	if err != nil || s.Value != "demo" {
		t.Errorf("Get() = %+v, %v", s, err)
	}
	list, err := settings.ListByPrefix(ctx, "email.")
	if err != nil || len(list) != 2 {
		t.Errorf("ListByPrefix() = %d, %v (ожидали email.mode и email.notifications_enabled)", len(list), err)
	}
	if err := settings.Delete(ctx, "email.mode"); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := settings.Get(ctx, "email.mode"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(deleted) = %v", err)
	}
}
