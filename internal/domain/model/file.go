package model

import "time"

// Виды загружаемых файлов.
const (
	FileKindAudio  = "audio"
	FileKindCover  = "cover"
	FileKindAvatar = "avatar"
	FileKindOther  = "other"
)

// Статусы файла в реестре.
const (
	FileStatusActive  = "active"
	FileStatusDeleted = "deleted"
)

// StoredFile — запись реестра загруженных файлов.
// Хранится в таблице stored_files.
type StoredFile struct {
	ID      string
	OwnerID string
	// Backend — имя бэкенда хранения (local, s3)
	Backend string
	// Path — ключ объекта внутри бэкенда
	Path             string
	OriginalFilename string
	ContentType      string
	Size             int64
	// Checksum — SHA-256 в hex
	Checksum  string
	Kind      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
