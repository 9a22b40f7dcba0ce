// delete.go — явное удаление файла по идентификатору.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/novaxmd/B.M.B-TECH-URL/internal/storage/filestore"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/storage/index"
)

// DeleteService — сервис удаления файлов.
type DeleteService struct {
	store  *filestore.FileStore
	idx    index.Index
	logger *slog.Logger
}

// NewDeleteService создаёт сервис удаления файлов.
func NewDeleteService(store *filestore.FileStore, idx index.Index, logger *slog.Logger) *DeleteService {
	return &DeleteService{
		store:  store,
		idx:    idx,
		logger: logger.With(slog.String("component", "delete_service")),
	}
}

// Delete удаляет blob, затем запись. Возвращает имя удалённого blob.
// Повторное удаление того же id возвращает ErrNotFound.
// Идемпотентность обеспечивает поиск записи; одновременные удаления
// одного id, прошедшие поиск, оба завершаются успешно.
func (s *DeleteService) Delete(ctx context.Context, id string) (string, error) {
	rec, err := s.idx.Get(ctx, id)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("ошибка поиска записи: %w", err)
	}

	if err := s.store.Delete(rec.Filename); err != nil {
		return "", fmt.Errorf("ошибка удаления blob: %w", err)
	}

	// Запись могла исчезнуть параллельно (очистка, сверка, другой DELETE);
	// blob к этому моменту уже удалён, поэтому запрос считается выполненным.
	if _, err := s.idx.Delete(ctx, id); err != nil {
		return "", fmt.Errorf("ошибка удаления записи: %w", err)
	}

	deletesTotal.Inc()
	s.logger.Info("Файл удалён",
		slog.String("file_id", rec.ID),
		slog.String("filename", rec.Filename),
	)

	return rec.Filename, nil
}
