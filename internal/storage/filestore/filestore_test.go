package filestore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bigkaa/labelportal/internal/storage"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	return fs
}

// TestNew_CreatesDirectory проверяет создание директории данных.
func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	fs, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	if fs.DataDir() != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, fs.DataDir())
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}
	if fs.Name() != "local" {
		t.Errorf("Name() = %q", fs.Name())
	}
}

// TestSave проверяет сохранение файла с подсчётом SHA-256.
func TestSave(t *testing.T) {
	fs := newStore(t)
	content := []byte("RIFF....WAVEfmt тестовые данные")

	obj, err := fs.Save(context.Background(), bytes.NewReader(content), storage.SaveOptions{
		OwnerID: "artist-1", OriginalFilename: "Night Drive.wav", Size: -1,
	})
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if obj.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), obj.Size)
	}
	sum := sha256.Sum256(content)
	if obj.Checksum != hex.EncodeToString(sum[:]) {
		t.Errorf("checksum: получено %s", obj.Checksum)
	}
	if !strings.HasPrefix(obj.Path, "artist-1/NightDrive_") || !strings.HasSuffix(obj.Path, ".wav") {
		t.Errorf("неожиданный ключ объекта: %s", obj.Path)
	}

	data, err := os.ReadFile(filepath.Join(fs.DataDir(), filepath.FromSlash(obj.Path)))
	if err != nil {
		t.Fatalf("ошибка чтения файла: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое файла не совпадает")
	}
	if _, err := os.Stat(filepath.Join(fs.DataDir(), filepath.FromSlash(obj.Path)) + ".tmp"); !os.IsNotExist(err) {
		t.Error("временный файл не должен существовать")
	}
}

// TestSave_EmptyFile проверяет сохранение пустого файла.
func TestSave_EmptyFile(t *testing.T) {
	fs := newStore(t)
	obj, err := fs.Save(context.Background(), bytes.NewReader(nil), storage.SaveOptions{OwnerID: "u", OriginalFilename: "empty.txt"})
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}
	if obj.Size != 0 {
		t.Errorf("ожидался размер 0, получено %d", obj.Size)
	}
}

// TestSave_TooLarge проверяет лимит размера и удаление temp файла.
func TestSave_TooLarge(t *testing.T) {
	fs := newStore(t)
	_, err := fs.Save(context.Background(), bytes.NewReader(make([]byte, 2048)), storage.SaveOptions{
		OwnerID: "u", OriginalFilename: "big.mp3", MaxSize: 1024,
	})
	if !errors.Is(err, storage.ErrTooLarge) {
		t.Fatalf("ожидали ErrTooLarge, получили %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(fs.DataDir(), "u"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("после ошибки в директории остались файлы: %d", len(entries))
	}
}

// TestSave_CanceledContext проверяет прерывание загрузки.
func TestSave_CanceledContext(t *testing.T) {
	fs := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fs.Save(ctx, strings.NewReader("data"), storage.SaveOptions{OwnerID: "u", OriginalFilename: "a.mp3"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидали context.Canceled, получили %v", err)
	}
}

// TestOpen проверяет чтение сохранённого файла.
func TestOpen(t *testing.T) {
	fs := newStore(t)
	content := []byte("read test data")
	obj, err := fs.Save(context.Background(), bytes.NewReader(content), storage.SaveOptions{OwnerID: "u", OriginalFilename: "read.txt"})
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	rc, err := fs.Open(context.Background(), obj.Path)
	if err != nil {
		t.Fatalf("ошибка открытия для чтения: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("прочитанные данные не совпадают с записанными")
	}
}

// TestOpen_NotFound проверяет ошибку для несуществующего файла.
func TestOpen_NotFound(t *testing.T) {
	fs := newStore(t)
	if _, err := fs.Open(context.Background(), "u/nonexistent.txt"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("ожидали ErrObjectNotFound, получили %v", err)
	}
}

// TestPathTraversal проверяет, что ключи вне dataDir отклоняются.
func TestPathTraversal(t *testing.T) {
	fs := newStore(t)
	for _, key := range []string{"../secret", "/etc/passwd", "u/../../x"} {
		if _, err := fs.Open(context.Background(), key); !errors.Is(err, storage.ErrInvalidPath) {
			t.Errorf("Open(%q): ожидали ErrInvalidPath, получили %v", key, err)
		}
		if err := fs.Delete(context.Background(), key); !errors.Is(err, storage.ErrInvalidPath) {
			t.Errorf("Delete(%q): ожидали ErrInvalidPath, получили %v", key, err)
		}
	}
}

// TestDelete проверяет удаление файла.
func TestDelete(t *testing.T) {
	fs := newStore(t)
	obj, err := fs.Save(context.Background(), strings.NewReader("delete me"), storage.SaveOptions{OwnerID: "u", OriginalFilename: "d.txt"})
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if err := fs.Delete(context.Background(), obj.Path); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if _, err := fs.Open(context.Background(), obj.Path); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Error("файл должен быть удалён")
	}
	// Повторное удаление — не ошибка
	if err := fs.Delete(context.Background(), obj.Path); err != nil {
		t.Errorf("удаление несуществующего файла не должно быть ошибкой: %v", err)
	}
}

func TestURL_Empty(t *testing.T) {
	fs := newStore(t)
	u, err := fs.URL(context.Background(), "u/a.mp3", "a.mp3")
	if err != nil || u != "" {
		t.Errorf("URL() = %q, %v; ожидали пустую строку", u, err)
	}
}

// TestPing проверяет проверку доступности директории и readiness.
func TestPing(t *testing.T) {
	fs := newStore(t)
	if err := fs.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() ошибка: %v", err)
	}
	if status, _ := storage.NewReadinessChecker(fs).CheckReady(); status != "ok" {
		t.Errorf("CheckReady() = %q, ожидался ok", status)
	}

	if err := os.RemoveAll(fs.DataDir()); err != nil {
		t.Fatal(err)
	}
	if err := fs.Ping(context.Background()); err == nil {
		t.Error("Ping() без директории должен вернуть ошибку")
	}
	status, msg := storage.NewReadinessChecker(fs).CheckReady()
	if status != "fail" || !strings.Contains(msg, "local") {
		t.Errorf("CheckReady() = %q, %q; ожидался fail с именем бэкенда", status, msg)
	}
}
