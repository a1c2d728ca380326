package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectKey строит ключ объекта: {owner}/{name}_{timestamp}_{uuid8}{.ext}.
// Пример: 3f2a.../night-drive_20261019150405_a1b2c3d4.flac
func ObjectKey(ownerID, originalFilename string) string {
	ext := strings.ToLower(path.Ext(originalFilename))
	name := strings.TrimSuffix(path.Base(strings.ReplaceAll(originalFilename, `\`, "/")), path.Ext(originalFilename))

	name = sanitize(name)
	if len([]rune(name)) > 50 {
		name = string([]rune(name)[:50])
	}
	owner := sanitize(ownerID)
	if ext != "" && sanitize(ext[1:]) != ext[1:] {
		ext = ""
	}

	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8]
	return fmt.Sprintf("%s/%s_%s_%s%s", owner, name, ts, uid, ext)
}

// sanitize оставляет буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' ||
			(r >= 0x0400 && r <= 0x04FF) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}

// CleanKey проверяет ключ объекта: относительный, без "..".
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	return cleaned, nil
}
