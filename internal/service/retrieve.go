// retrieve.go — отдача опубликованного файла по имени на диске.
package service

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/novaxmd/B.M.B-TECH-URL/internal/storage/filestore"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/storage/index"
)

// RetrieveService — сервис получения файлов.
// Файл виден, пока blob лежит в корне хранилища; индекс используется
// только чтобы узнать заявленный MIME-тип blob без значимого расширения.
type RetrieveService struct {
	store *filestore.FileStore
	idx   index.Index
}

// NewRetrieveService создаёт сервис получения файлов.
func NewRetrieveService(store *filestore.FileStore, idx index.Index) *RetrieveService {
	return &RetrieveService{store: store, idx: idx}
}

// Retrieved — открытый blob. Вызывающий закрывает File.
type Retrieved struct {
	File        *os.File
	Info        os.FileInfo
	ContentType string
}

// Open открывает blob по точному имени {id}.{ext}.
// Пути с разделителями, скрытые файлы, директории и отсутствующие
// имена дают ErrNotFound. ContentType никогда не пуст.
func (s *RetrieveService) Open(ctx context.Context, filename string) (*Retrieved, error) {
	f, info, err := s.store.Open(filename)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) || errors.Is(err, filestore.ErrInvalidName) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &Retrieved{
		File:        f,
		Info:        info,
		ContentType: s.contentType(ctx, filename),
	}, nil
}

// contentType определяет тип по расширению. Для .bin и неизвестных
// расширений берётся MIME-тип из записи, иначе application/octet-stream.
func (s *RetrieveService) contentType(ctx context.Context, filename string) string {
	typ := filestore.ContentTypeByName(filename)
	if typ != "" && !strings.HasPrefix(typ, DefaultMIME) {
		return typ
	}

	id, _, _ := strings.Cut(filename, ".")
	if s.idx == nil || !filestore.IsValidID(id) {
		return DefaultMIME
	}
	rec, err := s.idx.Get(ctx, id)
	if err != nil || rec.Filename != filename || rec.MIME == "" {
		return DefaultMIME
	}
	return rec.MIME
}
