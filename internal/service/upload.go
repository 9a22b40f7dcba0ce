// upload.go — сервис загрузки файлов.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/novaxmd/B.M.B-TECH-URL/internal/config"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/domain/mimepolicy"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/domain/model"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/storage/filestore"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/storage/index"
)

// DefaultMIME — тип для частей без Content-Type.
const DefaultMIME = "application/octet-stream"

// maxInsertAttempts — повторы commit+insert при коллизии id в индексе.
const maxInsertAttempts = 3

// UploadRequest — загружаемый файл, проверяемый до записи на диск.
type UploadRequest struct {
	// Reader — поток данных файла
	Reader io.Reader
	// Filename — имя файла от клиента (используется только для расширения)
	Filename string
	// MIME — заявленный тип части multipart
	MIME string
	// Size — заявленный размер, -1 если неизвестен
	Size int64
	// Retention — запрошенный срок хранения, 0 — срок по умолчанию
	Retention time.Duration
}

// UploadService — сервис загрузки файлов.
type UploadService struct {
	cfg    *config.Config
	store  *filestore.FileStore
	idx    index.Index
	policy *mimepolicy.Policy
	now    func() time.Time
	logger *slog.Logger
}

// NewUploadService создаёт сервис загрузки файлов.
func NewUploadService(
	cfg *config.Config,
	store *filestore.FileStore,
	idx index.Index,
	policy *mimepolicy.Policy,
	logger *slog.Logger,
	opts ...Option,
) *UploadService {
	o := applyOptions(opts)
	return &UploadService{
		cfg:    cfg,
		store:  store,
		idx:    idx,
		policy: policy,
		now:    o.now,
		logger: logger.With(slog.String("component", "upload_service")),
	}
}

// Upload сохраняет файл и создаёт запись в индексе.
//
// Поток:
//  1. Проверка MIME-типа и срока хранения (без побочных эффектов)
//  2. Stage: потоковая запись во временный файл с контролем размера
//  3. Commit под {id}.{ext} (коллизия имени → новый id)
//  4. index.Insert (ErrDuplicate → удаление blob и новый id)
//
// Временный файл удаляется в любом случае.
func (s *UploadService) Upload(ctx context.Context, req UploadRequest) (*model.FileRecord, error) {
	mime := mimepolicy.Normalize(req.MIME)
	if mime == "" {
		mime = DefaultMIME
	}

	// 1. Проверки до записи хотя бы одного байта
	if len(mime) > mimepolicy.MaxLength {
		uploadsRejectedTotal.WithLabelValues("mime").Inc()
		return nil, fmt.Errorf("%w: %d символов, максимум %d", ErrMIMETooLong, len(mime), mimepolicy.MaxLength)
	}
	if !s.policy.Allowed(mime) {
		uploadsRejectedTotal.WithLabelValues("mime").Inc()
		return nil, fmt.Errorf("%w: %s", ErrMIMENotAllowed, mime)
	}

	retention, err := s.resolveRetention(req.Retention)
	if err != nil {
		uploadsRejectedTotal.WithLabelValues("retention").Inc()
		return nil, err
	}

	if req.Size > s.cfg.MaxFileSize {
		uploadsRejectedTotal.WithLabelValues("size").Inc()
		return nil, fmt.Errorf("%w: %d байт, максимум %d", ErrFileTooLarge, req.Size, s.cfg.MaxFileSize)
	}

	// 2. Потоковая запись
	staged, err := s.store.Stage(req.Reader, s.cfg.MaxFileSize)
	if err != nil {
		if errors.Is(err, filestore.ErrFileTooLarge) {
			uploadsRejectedTotal.WithLabelValues("size").Inc()
			return nil, fmt.Errorf("%w: максимум %d байт", ErrFileTooLarge, s.cfg.MaxFileSize)
		}
		return nil, fmt.Errorf("ошибка записи файла: %w", err)
	}
	defer staged.Discard()

	ext := filestore.ResolveExtension(mime, req.Filename)

	// 3-4. Публикация и вставка записи
	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		id, filename, err := staged.Commit(ext)
		if err != nil {
			if errors.Is(err, filestore.ErrCollisionExhausted) {
				return nil, ErrIDExhausted
			}
			return nil, err
		}

		createdAt := s.now().UTC().Truncate(time.Millisecond)
		rec := model.NewFileRecord(id, ext, mime, staged.Size, createdAt, retention)

		err = s.idx.Insert(ctx, rec)
		if err == nil {
			uploadsTotal.Inc()
			uploadBytesTotal.Add(float64(rec.Size))

			s.logger.Info("Файл загружен",
				slog.String("file_id", rec.ID),
				slog.String("filename", rec.Filename),
				slog.String("mime", rec.MIME),
				slog.Int64("size", rec.Size),
				slog.Time("expires_at", rec.ExpiresAt),
			)
			return rec, nil
		}

		// Запись не создана — опубликованный blob удаляется
		if delErr := s.store.Delete(filename); delErr != nil {
			s.logger.Error("Не удалось удалить blob после ошибки индекса",
				slog.String("filename", filename),
				slog.String("error", delErr.Error()),
			)
		}

		if !errors.Is(err, index.ErrDuplicate) {
			return nil, fmt.Errorf("ошибка записи в индекс: %w", err)
		}

		idRetriesTotal.Inc()
		s.logger.Warn("Идентификатор уже занят в индексе, повтор",
			slog.String("file_id", id),
			slog.Int("attempt", attempt+1),
		)
	}

	return nil, ErrIDExhausted
}

// resolveRetention применяет срок по умолчанию и верхнюю границу.
func (s *UploadService) resolveRetention(requested time.Duration) (time.Duration, error) {
	switch {
	case requested == 0:
		return s.cfg.DefaultRetention, nil
	case requested < 0:
		return 0, ErrInvalidRetention
	case s.cfg.MaxRetention > 0 && requested > s.cfg.MaxRetention:
		s.logger.Debug("Срок хранения ограничен максимумом",
			slog.Duration("requested", requested),
			slog.Duration("max", s.cfg.MaxRetention),
		)
		return s.cfg.MaxRetention, nil
	}
	return requested, nil
}
