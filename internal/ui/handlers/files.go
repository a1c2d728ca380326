// files.go — файловый браузер UI: список, загрузка, удаление.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/labelportal/internal/service"
	"github.com/bigkaa/labelportal/internal/ui/pages"
)

// Запас на заголовки multipart и лимит текстового поля.
const (
	multipartOverhead = 1 << 20
	maxFormField      = 1 << 10
)

// Files — GET /files. Артист видит свои файлы, менеджер все.
func (h *Handler) Files(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	n := pageParam(r)
	kind := r.URL.Query().Get("kind")

	res, err := h.svc.Files.List(r.Context(), u, service.FileFilter{Kind: kind}, uiPage(n))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, pages.FileList(pages.FileListData{
		Nav:       h.nav(r, "files"),
		Items:     res.Items,
		Kind:      kind,
		Pager:     newPager(r, n, res.Total),
		MaxSize:   h.svc.Files.MaxSize(),
		ShowOwner: subject(u).IsManager(),
	}))
}

// UploadFile — POST /files. Тело читается потоком, kind идёт до file.
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	maxSize := h.svc.Files.MaxSize()
	if r.ContentLength > maxSize+multipartOverhead {
		h.redirect(w, r, "/files", "", fmt.Errorf("%w: больше %d байт", service.ErrPayloadTooLarge, maxSize))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		h.redirect(w, r, "/files", "", fmt.Errorf("%w: %v", service.ErrValidation, err))
		return
	}

	kind := r.URL.Query().Get("kind")
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			h.redirect(w, r, "/files", "", fmt.Errorf("%w: файл не выбран", service.ErrValidation))
			return
		}
		if err != nil {
			h.redirect(w, r, "/files", "", uploadError(err))
			return
		}

		switch part.FormName() {
		case "kind":
			v, err := io.ReadAll(io.LimitReader(part, maxFormField))
			_ = part.Close()
			if err != nil {
				h.redirect(w, r, "/files", "", uploadError(err))
				return
			}
			kind = string(v)
		case "file":
			_, err := h.svc.Files.Upload(r.Context(), u, part, service.UploadInput{
				Filename: part.FileName(),
				Kind:     kind,
				Size:     -1,
			})
			_ = part.Close()
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				err = uploadError(err)
			}
			h.redirect(w, r, "/files", "file_uploaded", err)
			return
		default:
			_ = part.Close()
		}
	}
}

// uploadError — ошибка разбора multipart. Превышение лимита сообщается
// отдельно, остальное считается ошибкой запроса.
func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: превышен размер запроса", service.ErrPayloadTooLarge)
	}
	return fmt.Errorf("%w: некорректное multipart-тело: %v", service.ErrValidation, err)
}

// DeleteFile — POST /files/{id}/delete.
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	err := h.svc.Files.Delete(r.Context(), u, chi.URLParam(r, "id"))
	h.redirect(w, r, "/files", "file_deleted", err)
}
