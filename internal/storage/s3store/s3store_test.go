package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/labelportal/internal/storage"
)

func TestContentDisposition(t *testing.T) {
	tests := []struct {
		filename string
		contains string
	}{
		{"track.mp3", `attachment; filename=track.mp3`},
		{"My Song.wav", `filename="My Song.wav"`},
		{"песня.flac", `filename*=utf-8''`},
	}
	for _, tt := range tests {
		if got := contentDisposition(tt.filename); !strings.Contains(got, tt.contains) {
			t.Errorf("contentDisposition(%q) = %q, ожидали %q", tt.filename, got, tt.contains)
		}
	}
}

// setupMinIO запускает MinIO в Docker-контейнере через testcontainers.
func setupMinIO(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.io/minio/minio:latest",
			Cmd:          []string{"server", "/data"},
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "minioadmin",
				"MINIO_ROOT_PASSWORD": "minioadmin",
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Не удалось запустить MinIO контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	if err != nil {
		t.Fatalf("Не удалось получить endpoint контейнера: %v", err)
	}

	store, err := New(ctx, Config{
		Endpoint:   endpoint,
		Bucket:     "releases",
		AccessKey:  "minioadmin",
		SecretKey:  "minioadmin",
		Region:     "us-east-1",
		PresignTTL: time.Minute,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() вернул ошибку: %v", err)
	}
	return store
}

func TestStore_Lifecycle(t *testing.T) {
	store := setupMinIO(t)
	ctx := context.Background()
	content := bytes.Repeat([]byte("audio"), 1000)

	obj, err := store.Save(ctx, bytes.NewReader(content), storage.SaveOptions{
		OwnerID: "artist-1", OriginalFilename: "Demo.mp3", ContentType: "audio/mpeg", Size: -1,
	})
	if err != nil {
		t.Fatalf("Save() вернул ошибку: %v", err)
	}
	if obj.Size != int64(len(content)) {
		t.Errorf("Size = %d, ожидали %d", obj.Size, len(content))
	}

	rc, err := store.Open(ctx, obj.Path)
	if err != nil {
		t.Fatalf("Open() вернул ошибку: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, content) {
		t.Error("содержимое объекта не совпадает")
	}

	link, err := store.URL(ctx, obj.Path, "Demo.mp3")
	if err != nil {
		t.Fatalf("URL() вернул ошибку: %v", err)
	}
	if _, err := url.Parse(link); err != nil {
		t.Fatalf("некорректная ссылка %q: %v", link, err)
	}
	resp, err := http.Get(link) //nolint:gosec,noctx // тестовая ссылка на локальный контейнер
	if err != nil {
		t.Fatalf("скачивание по ссылке: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("статус скачивания = %d", resp.StatusCode)
	}

	if err := store.Delete(ctx, obj.Path); err != nil {
		t.Fatalf("Delete() вернул ошибку: %v", err)
	}
	if _, err := store.Open(ctx, obj.Path); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("после удаления ожидали ErrObjectNotFound, получили %v", err)
	}
	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping() вернул ошибку: %v", err)
	}
}

func TestStore_TooLarge(t *testing.T) {
	store := setupMinIO(t)
	_, err := store.Save(context.Background(), bytes.NewReader(make([]byte, 4096)), storage.SaveOptions{
		OwnerID: "u", OriginalFilename: "big.wav", MaxSize: 1024, Size: 4096,
	})
	if !errors.Is(err, storage.ErrTooLarge) {
		t.Fatalf("ожидали ErrTooLarge, получили %v", err)
	}
}
