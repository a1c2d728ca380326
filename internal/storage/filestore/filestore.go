// Пакет filestore — хранение загруженных файлов на локальном диске.
// Streaming-запись с подсчётом SHA-256 на лету, раскладка по владельцам.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bigkaa/labelportal/internal/storage"
)

// Name — идентификатор бэкенда.
const Name = "local"

// FileStore — storage.Backend на локальной файловой системе.
type FileStore struct {
	// dataDir — корневая директория хранения (LP_STORAGE_DIR)
	dataDir string
}

var _ storage.Backend = (*FileStore)(nil)

// New создаёт FileStore, при необходимости создаёт директорию.
func New(dataDir string) (*FileStore, error) {
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("некорректная директория данных %s: %w", dataDir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", abs, err)
	}
	return &FileStore{dataDir: abs}, nil
}

func (fs *FileStore) Name() string { return Name }

// DataDir возвращает абсолютный путь к директории данных.
func (fs *FileStore) DataDir() string { return fs.dataDir }

// resolve превращает ключ объекта в абсолютный путь внутри dataDir.
func (fs *FileStore) resolve(key string) (string, error) {
	cleaned, err := storage.CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(fs.dataDir, filepath.FromSlash(cleaned)), nil
}

// Save записывает поток на диск.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке (в том числе storage.ErrTooLarge) temp файл удаляется.
func (fs *FileStore) Save(ctx context.Context, r io.Reader, opts storage.SaveOptions) (*storage.Object, error) {
	key := storage.ObjectKey(opts.OwnerID, opts.OriginalFilename)
	fullPath, err := fs.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return nil, fmt.Errorf("ошибка создания директории владельца: %w", err)
	}
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath) //nolint:gosec // путь проверен resolve
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	cleanup := func() {
		f.Close()
		os.Remove(tmpPath)
	}

	hasher := sha256.New()
	src := io.TeeReader(storage.LimitReader(ctxReader{ctx: ctx, r: r}, opts.MaxSize), hasher)

	size, err := io.Copy(f, src)
	if err != nil {
		cleanup()
		if errors.Is(err, storage.ErrTooLarge) || errors.Is(err, ctx.Err()) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		cleanup()
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &storage.Object{
		Path:     key,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает файл. Вызывающий код обязан закрыть ReadCloser.
func (fs *FileStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := fs.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath) //nolint:gosec // путь проверен resolve
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", key, err)
	}
	return f, nil
}

// Delete удаляет файл. Отсутствующий файл ошибкой не считается.
func (fs *FileStore) Delete(_ context.Context, key string) error {
	fullPath, err := fs.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", key, err)
	}
	return nil
}

// URL: локальные файлы отдаются приложением через Open.
func (fs *FileStore) URL(context.Context, string, string) (string, error) {
	return "", nil
}

// ctxReader прерывает чтение при отмене контекста (обрыв загрузки клиентом).
// Ping проверяет, что директория данных существует и доступна на запись.
func (fs *FileStore) Ping(context.Context) error {
	info, err := os.Stat(fs.dataDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s не является директорией", fs.dataDir)
	}
	probe, err := os.CreateTemp(fs.dataDir, ".ping-*")
	if err != nil {
		return fmt.Errorf("директория %s недоступна на запись: %w", fs.dataDir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
