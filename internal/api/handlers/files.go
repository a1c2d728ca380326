// files.go — обработчики загрузки и файлового браузера.
// POST /api/uploads, GET /api/files, GET|DELETE /api/files/{id},
// GET /api/files/{id}/download.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	apierrors "github.com/bigkaa/labelportal/internal/api/errors"
	"github.com/bigkaa/labelportal/internal/service"
)

// multipartOverhead — запас на заголовки multipart сверх лимита файла.
const multipartOverhead = 1 << 20

// maxFormField — лимит текстового поля multipart.
const maxFormField = 1 << 10

// Upload — POST /api/uploads (multipart/form-data).
// Поля: kind (audio, cover, avatar, other) и file. Файл пишется в хранилище
// потоком, без буферизации: поле kind должно идти до file либо передаваться
// параметром ?kind=.
func (h *APIHandler) Upload(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	maxSize := h.svc.Files.MaxSize()
	if r.ContentLength > maxSize+multipartOverhead {
		apierrors.PayloadTooLarge(w, "Файл больше "+strconv.FormatInt(maxSize, 10)+" байт")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		apierrors.ValidationError(w, "Ожидается multipart/form-data: "+err.Error())
		return
	}

	kind := r.URL.Query().Get("kind")
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			apierrors.ValidationError(w, "Поле file обязательно")
			return
		}
		if err != nil {
			h.multipartError(w, err)
			return
		}

		switch part.FormName() {
		case "kind":
			v, err := io.ReadAll(io.LimitReader(part, maxFormField))
			_ = part.Close()
			if err != nil {
				h.multipartError(w, err)
				return
			}
			kind = string(v)
		case "file":
			f, err := h.svc.Files.Upload(r.Context(), u, part, service.UploadInput{
				Filename: part.FileName(),
				Kind:     kind,
				Size:     -1,
			})
			_ = part.Close()
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					apierrors.PayloadTooLarge(w, "Превышен размер запроса")
					return
				}
				h.fail(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, mapFile(f))
			return
		default:
			_ = part.Close()
		}
	}
}

func (h *APIHandler) multipartError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		apierrors.PayloadTooLarge(w, "Превышен размер запроса")
		return
	}
	apierrors.ValidationError(w, "Некорректное multipart-тело: "+err.Error())
}

// ListFiles — GET /api/files. Параметры: kind, owner_id, limit, offset.
// Артист видит только свои файлы.
func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, ok := bindPage(w, r)
	if !ok {
		return
	}
	var f service.FileFilter
	if f.Kind, ok = bindString(w, r, "kind"); !ok {
		return
	}
	if f.OwnerID, ok = bindString(w, r, "owner_id"); !ok {
		return
	}

	res, err := h.svc.Files.List(r.Context(), u, f, page)
	if err != nil {
		h.fail(w, err)
		return
	}
	items := make([]fileResponse, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, mapFile(it))
	}
	writeJSON(w, http.StatusOK, newList(items, res.Total, page, res.HasMore))
}

// GetFile — GET /api/files/{id}. Метаданные файла.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	f, err := h.svc.Files.Get(r.Context(), u, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapFile(f))
}

// DownloadFile — GET /api/files/{id}/download.
// S3 — редирект на presigned URL, локальный диск — поток содержимого.
func (h *APIHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	content, err := h.svc.Files.Open(r.Context(), u, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	if content.RedirectURL != "" {
		http.Redirect(w, r, content.RedirectURL, http.StatusFound)
		return
	}
	defer content.Body.Close()

	f := content.File
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.OriginalFilename}))
	w.Header().Set("ETag", `"`+f.Checksum+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content.Body); err != nil {
		h.logger.Warn("Передача файла прервана",
			slog.String("file_id", f.ID),
			slog.String("error", err.Error()),
		)
	}
}

// DeleteFile — DELETE /api/files/{id}.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Files.Delete(r.Context(), u, id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
