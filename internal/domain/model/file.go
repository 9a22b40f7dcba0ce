// Пакет model — доменные модели файлового хостинга.
// FileRecord — единственная персистентная сущность: запись индекса
// метаданных, описывающая один blob в корне хранилища.
package model

import (
	"time"
)

// FileRecord — метаданные загруженного файла.
// Запись неизменяема после создания: единственная мутация — удаление
// (явное через DELETE или фоновой очисткой по expires_at).
type FileRecord struct {
	// ID — первичный ключ, он же базовое имя blob на диске (12 hex-символов)
	ID string `json:"id"`

	// Filename — имя blob в корне хранилища: {id}.{ext}
	Filename string `json:"filename"`

	// Ext — расширение файла без точки
	Ext string `json:"ext"`

	// MIME — заявленный MIME-тип на момент загрузки
	MIME string `json:"mime"`

	// Size — размер blob в байтах после завершения записи
	Size int64 `json:"size"`

	// CreatedAt — момент создания записи (UTC)
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt — момент, после которого запись подлежит очистке (UTC)
	ExpiresAt time.Time `json:"expires_at"`
}

// NewFileRecord собирает запись с вычисленным сроком хранения.
// retention должен быть положительным, иначе expires_at не будет больше created_at.
func NewFileRecord(id, ext, mime string, size int64, createdAt time.Time, retention time.Duration) *FileRecord {
	createdAt = createdAt.UTC()
	return &FileRecord{
		ID:        id,
		Filename:  BlobName(id, ext),
		Ext:       ext,
		MIME:      mime,
		Size:      size,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(retention),
	}
}

// BlobName возвращает имя blob на диске для id и расширения.
func BlobName(id, ext string) string {
	if ext == "" {
		return id
	}
	return id + "." + ext
}

// IsExpired сообщает, подлежит ли запись очистке в момент now.
// Граница включительная: expires_at <= now.
func (r *FileRecord) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
