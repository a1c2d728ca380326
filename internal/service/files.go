// files.go — сервис загруженных файлов.
// Загрузка в хранилище с проверкой размера, расширения и типа содержимого,
// реестр stored_files, выдача содержимого и мягкое удаление.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/labelportal/internal/domain/catalog"
	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/domain/rbac"
	"github.com/bigkaa/labelportal/internal/repository"
	"github.com/bigkaa/labelportal/internal/storage"
)

// FileKinds — допустимые виды загрузок.
var FileKinds = []string{model.FileKindAudio, model.FileKindCover, model.FileKindAvatar, model.FileKindOther}

// FileDownloadPath — ссылка на скачивание файла через API.
func FileDownloadPath(id string) string {
	return "/api/files/" + id + "/download"
}

// UploadInput — параметры загрузки.
type UploadInput struct {
	Filename string
	Kind     string
	// Size — размер из multipart-заголовка (-1, если неизвестен)
	Size int64
}

// FileFilter — фильтры файлового браузера.
type FileFilter struct {
	Kind    string
	OwnerID string
}

// FilePage — страница списка файлов.
type FilePage struct {
	Items   []*model.StoredFile
	Total   int
	HasMore bool
}

// FileContent — содержимое для скачивания: поток или прямая ссылка.
type FileContent struct {
	File *model.StoredFile
	// Body — поток содержимого (nil, если задан RedirectURL)
	Body        io.ReadCloser
	RedirectURL string
}

// FileService — сервис файлов.
type FileService struct {
	repo     repository.FileRepository
	primary  storage.Backend
	backends map[string]storage.Backend
	maxSize  int64
	activity *ActivityService
	logger   *slog.Logger
}

// NewFileService создаёт сервис файлов. Новые файлы пишутся в primary;
// extra — бэкенды, из которых читаются ранее загруженные файлы.
func NewFileService(
	repo repository.FileRepository,
	primary storage.Backend,
	maxSize int64,
	activity *ActivityService,
	logger *slog.Logger,
	extra ...storage.Backend,
) *FileService {
	backends := map[string]storage.Backend{primary.Name(): primary}
	for _, b := range extra {
		backends[b.Name()] = b
	}
	return &FileService{
		repo:     repo,
		primary:  primary,
		backends: backends,
		maxSize:  maxSize,
		activity: activity,
		logger:   logger.With(slog.String("component", "file_service")),
	}
}

// MaxSize — лимит размера загрузки.
func (s *FileService) MaxSize() int64 {
	return s.maxSize
}

// Upload сохраняет файл в хранилище и регистрирует его.
func (s *FileService) Upload(ctx context.Context, actor *model.User, r io.Reader, in UploadInput) (*model.StoredFile, error) {
	kind := strings.ToLower(strings.TrimSpace(in.Kind))
	if kind == "" {
		kind = model.FileKindOther
	}
	if !slices.Contains(FileKinds, kind) {
		return nil, validationf("неизвестный вид файла %q", in.Kind)
	}
	name := strings.TrimSpace(in.Filename)
	if name == "" {
		return nil, validationf("имя файла обязательно")
	}
	if err := checkExtension(kind, name); err != nil {
		return nil, err
	}
	if in.Size > s.maxSize {
		return nil, fmt.Errorf("%w: %d байт, лимит %d", ErrPayloadTooLarge, in.Size, s.maxSize)
	}

	contentType, body, err := storage.Sniff(r)
	if err != nil {
		return nil, fmt.Errorf("чтение загрузки: %w", err)
	}
	if err := checkContentType(kind, contentType); err != nil {
		return nil, err
	}

	size := in.Size
	if size <= 0 {
		size = -1
	}
	obj, err := s.primary.Save(ctx, body, storage.SaveOptions{
		OwnerID:          actor.ID,
		OriginalFilename: name,
		ContentType:      contentType,
		Size:             size,
		MaxSize:          s.maxSize,
	})
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, fmt.Errorf("%w: лимит %d байт", ErrPayloadTooLarge, s.maxSize)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	f := &model.StoredFile{
		ID:               uuid.NewString(),
		OwnerID:          actor.ID,
		Backend:          s.primary.Name(),
		Path:             obj.Path,
		OriginalFilename: name,
		ContentType:      contentType,
		Size:             obj.Size,
		Checksum:         obj.Checksum,
		Kind:             kind,
		Status:           model.FileStatusActive,
	}
	if err := s.repo.Register(ctx, f); err != nil {
		// Объект без записи в реестре никому не виден.
		if delErr := s.primary.Delete(context.WithoutCancel(ctx), obj.Path); delErr != nil {
			s.logger.Warn("Не удалось удалить объект после ошибки регистрации",
				slog.String("path", obj.Path),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, mapRepoError(err, "регистрация файла")
	}

	s.logger.Info("Файл загружен",
		slog.String("file_id", f.ID),
		slog.String("owner_id", f.OwnerID),
		slog.String("kind", f.Kind),
		slog.Int64("size", f.Size),
		slog.String("backend", f.Backend),
	)
	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     model.ActionFileUploaded,
		EntityType: model.EntityFile,
		EntityID:   f.ID,
		Details:    model.Details{"filename": name, "kind": kind, "size": f.Size},
	})
	return f, nil
}

// checkExtension сверяет расширение с видом файла.
func checkExtension(kind, filename string) error {
	switch kind {
	case model.FileKindAudio:
		if !catalog.IsAudioFile(filename) {
			return validationf("аудиофайл должен иметь расширение %s", strings.Join(catalog.AudioFormats, ", "))
		}
	case model.FileKindCover, model.FileKindAvatar:
		if !catalog.IsImageFile(filename) {
			return validationf("изображение должно иметь расширение %s", strings.Join(catalog.ImageFormats, ", "))
		}
	}
	return nil
}

// checkContentType сверяет определённый по содержимому тип с видом файла.
// m4a/aac в контейнере MP4 определяются как video/mp4, ogg — как application/ogg.
func checkContentType(kind, contentType string) error {
	mt := storage.MediaType(contentType)
	switch kind {
	case model.FileKindAudio:
		if strings.HasPrefix(mt, "audio/") || mt == "application/ogg" || mt == "video/mp4" {
			return nil
		}
		return validationf("содержимое не похоже на аудио (%s)", mt)
	case model.FileKindCover, model.FileKindAvatar:
		if strings.HasPrefix(mt, "image/") {
			return nil
		}
		return validationf("содержимое не похоже на изображение (%s)", mt)
	}
	return nil
}

// List возвращает активные файлы. Артист видит только свои.
func (s *FileService) List(ctx context.Context, actor *model.User, f FileFilter, page Page) (*FilePage, error) {
	var filters repository.FileFilters
	if f.Kind != "" {
		if !slices.Contains(FileKinds, f.Kind) {
			return nil, validationf("неизвестный вид файла %q", f.Kind)
		}
		filters.Kind = &f.Kind
	}
	if !subjectOf(actor).IsManager() {
		f.OwnerID = actor.ID
	}
	if f.OwnerID != "" {
		filters.OwnerID = &f.OwnerID
	}

	items, err := s.repo.List(ctx, filters, page.Limit, page.Offset)
	if err != nil {
		return nil, mapRepoError(err, "список файлов")
	}
	total, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, mapRepoError(err, "подсчёт файлов")
	}
	return &FilePage{Items: items, Total: total, HasMore: page.HasMore(total)}, nil
}

// Get возвращает метаданные файла. Чужой или удалённый файл — ErrNotFound.
func (s *FileService) Get(ctx context.Context, actor *model.User, id string) (*model.StoredFile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("файл %q: %w", id, ErrNotFound)
	}
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение файла")
	}
	if f.Status != model.FileStatusActive || !rbac.CanAccessFile(subjectOf(actor), f.OwnerID) {
		return nil, fmt.Errorf("файл %s: %w", id, ErrNotFound)
	}
	return f, nil
}

// Open возвращает содержимое файла: прямую ссылку, если бэкенд её выдаёт,
// иначе поток. Поток закрывает вызывающий.
func (s *FileService) Open(ctx context.Context, actor *model.User, id string) (*FileContent, error) {
	f, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	backend, ok := s.backends[f.Backend]
	if !ok {
		return nil, fmt.Errorf("%w: бэкенд %q не подключён", ErrStorageUnavailable, f.Backend)
	}

	url, err := backend.URL(ctx, f.Path, f.OriginalFilename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if url != "" {
		return &FileContent{File: f, RedirectURL: url}, nil
	}

	body, err := backend.Open(ctx, f.Path)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Error("Объект из реестра отсутствует в хранилище",
				slog.String("file_id", f.ID),
				slog.String("path", f.Path),
			)
			return nil, fmt.Errorf("файл %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return &FileContent{File: f, Body: body}, nil
}

// Delete помечает файл удалённым и удаляет объект из хранилища.
// Ошибка удаления объекта только логируется: запись уже недоступна.
func (s *FileService) Delete(ctx context.Context, actor *model.User, id string) error {
	f, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, f.ID); err != nil {
		return mapRepoError(err, "удаление файла")
	}

	if backend, ok := s.backends[f.Backend]; ok {
		if err := backend.Delete(ctx, f.Path); err != nil {
			s.logger.Warn("Не удалось удалить объект из хранилища",
				slog.String("file_id", f.ID),
				slog.String("path", f.Path),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("Файл помечен как удалённый", slog.String("file_id", f.ID))
	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     model.ActionFileDeleted,
		EntityType: model.EntityFile,
		EntityID:   f.ID,
		Details:    model.Details{"filename": f.OriginalFilename},
	})
	return nil
}
