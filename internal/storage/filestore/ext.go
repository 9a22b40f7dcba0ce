package filestore

import (
	"mime"
	"path/filepath"
	"strings"
)

// FallbackExt — расширение, если ни MIME, ни имя файла его не дают.
const FallbackExt = "bin"

// maxExtLen — ограничение длины расширения из клиентского имени файла.
const maxExtLen = 10

// preferredExt — каноничные расширения для распространённых MIME-типов.
// stdlib mime.ExtensionsByType возвращает список в алфавитном порядке
// (".jfif" раньше ".jpg"), поэтому основные типы зафиксированы явно.
var preferredExt = map[string]string{
	"image/png":         "png",
	"image/jpeg":        "jpg",
	"image/gif":         "gif",
	"image/webp":        "webp",
	"image/avif":        "avif",
	"image/svg+xml":     "svg",
	"image/bmp":         "bmp",
	"image/x-icon":      "ico",
	"image/tiff":        "tiff",
	"video/mp4":         "mp4",
	"video/webm":        "webm",
	"video/quicktime":   "mov",
	"video/x-matroska":  "mkv",
	"audio/mpeg":        "mp3",
	"audio/ogg":         "ogg",
	"audio/wav":         "wav",
	"audio/x-wav":       "wav",
	"audio/flac":        "flac",
	"audio/aac":         "aac",
	"audio/webm":        "weba",
	"application/pdf":   "pdf",
	"application/zip":   "zip",
	"application/json":  "json",
	"application/gzip":  "gz",
	"application/x-tar": "tar",
	"text/plain":        "txt",
	"text/csv":          "csv",
	"text/markdown":     "md",
	"text/html":         "html",
	"text/css":          "css",
	"application/xml":   "xml",
}

// contentTypeByExt — обратная таблица для отдачи blob.
var contentTypeByExt = map[string]string{}

func init() {
	for typ, ext := range preferredExt {
		if _, ok := contentTypeByExt[ext]; !ok || typ < contentTypeByExt[ext] {
			contentTypeByExt[ext] = typ
		}
	}
}

// ResolveExtension определяет расширение blob.
// Приоритет: (a) расширение, зарегистрированное для MIME-типа;
// (b) расширение из клиентского имени файла; (c) FallbackExt.
// application/octet-stream не даёт расширения по MIME, чтобы сохранить клиентское.
//
// Клиентское расширение принимается, только если при отдаче оно даёт
// тот же MIME-тип или не даёт никакого: "x.html" с типом image/x-foo
// сохраняется как .bin, а не отдаётся потом как text/html.
func ResolveExtension(mimeType, originalFilename string) string {
	if ext := extensionForMIME(mimeType); ext != "" {
		return ext
	}
	if ext := sanitizeExt(filepath.Ext(originalFilename)); ext != "" {
		if served := ContentTypeByName("." + ext); served == "" || baseType(served) == mimeType {
			return ext
		}
	}
	return FallbackExt
}

// baseType отбрасывает параметры MIME-типа и приводит его к нижнему регистру.
func baseType(typ string) string {
	typ, _, _ = strings.Cut(typ, ";")
	return strings.ToLower(strings.TrimSpace(typ))
}

func extensionForMIME(mimeType string) string {
	if mimeType == "" || mimeType == "application/octet-stream" {
		return ""
	}
	if ext, ok := preferredExt[mimeType]; ok {
		return ext
	}
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return sanitizeExt(exts[0])
}

// sanitizeExt оставляет только [a-z0-9], без точки, не длиннее maxExtLen.
func sanitizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" || len(ext) > maxExtLen {
		return ""
	}
	for _, c := range ext {
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')) {
			return ""
		}
	}
	return ext
}

// ContentTypeByName возвращает MIME-тип для отдачи blob по его имени.
// Пустая строка — тип неизвестен (http.ServeContent определит его сам).
func ContentTypeByName(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return ""
	}
	if typ, ok := contentTypeByExt[ext]; ok {
		return typ
	}
	return mime.TypeByExtension("." + ext)
}
