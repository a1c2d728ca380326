// Пакет storage — абстракция хранилища загруженных файлов
// (аудио, обложки, аватары). Реализации: filestore (локальный диск)
// и s3store (S3-совместимое объектное хранилище).
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrObjectNotFound — объект отсутствует в хранилище.
	ErrObjectNotFound = errors.New("объект не найден в хранилище")
	// ErrTooLarge — поток превысил допустимый размер.
	ErrTooLarge = errors.New("превышен максимальный размер файла")
	// ErrInvalidPath — путь выходит за пределы хранилища.
	ErrInvalidPath = errors.New("недопустимый путь объекта")
)

// SaveOptions — параметры сохранения.
type SaveOptions struct {
	// OwnerID — владелец; объекты раскладываются по владельцам
	OwnerID          string
	OriginalFilename string
	ContentType      string
	// Size — размер, если известен заранее (-1 — неизвестен)
	Size int64
	// MaxSize — лимит размера (0 — без лимита)
	MaxSize int64
}

// Object — результат сохранения.
type Object struct {
	// Path — ключ объекта внутри бэкенда
	Path     string
	Size     int64
	Checksum string
}

// Backend — хранилище файлов.
type Backend interface {
	// Name — идентификатор бэкенда ("local", "s3"), пишется в stored_files.backend.
	Name() string
	Save(ctx context.Context, r io.Reader, opts SaveOptions) (*Object, error)
	// Open возвращает поток содержимого. ErrObjectNotFound, если объекта нет.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete удаляет объект. Отсутствие объекта ошибкой не считается.
	Delete(ctx context.Context, path string) error
	// URL возвращает прямую ссылку на скачивание или "", если бэкенд
	// отдаёт содержимое только через Open.
	URL(ctx context.Context, path, filename string) (string, error)
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
}

// LimitReader возвращает reader, который отдаёт ErrTooLarge,
// как только из r прочитано больше max байт.
func LimitReader(r io.Reader, max int64) io.Reader {
	if max <= 0 {
		return r
	}
	return &limitedReader{r: r, left: max}
}

type limitedReader struct {
	r    io.Reader
	left int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.left < 0 {
		return 0, ErrTooLarge
	}
	// Читаем на байт больше лимита, чтобы отличить "ровно max" от превышения.
	if int64(len(p)) > l.left+1 {
		p = p[:l.left+1]
	}
	n, err := l.r.Read(p)
	l.left -= int64(n)
	if l.left < 0 {
		return n, ErrTooLarge
	}
	return n, err
}

// sniffLen — сколько байт заголовка читается для определения типа.
const sniffLen = 3072

// Sniff определяет MIME-тип по первым байтам потока и возвращает
// reader, который отдаёт поток целиком, включая прочитанный заголовок.
func Sniff(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, err
	}
	head = head[:n]
	mt := mimetype.Detect(head)
	return mt.String(), io.MultiReader(bytes.NewReader(head), r), nil
}

// MediaType — MIME-тип без параметров ("audio/mpeg; charset=..." → "audio/mpeg").
func MediaType(contentType string) string {
	for i := 0; i < len(contentType); i++ {
		if contentType[i] == ';' {
			return contentType[:i]
		}
	}
	return contentType
}
