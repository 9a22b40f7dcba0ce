// files.go — HTTP handlers файловых операций: загрузка, удаление, получение.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/novaxmd/B.M.B-TECH-URL/internal/api/errors"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/config"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/service"
	"github.com/novaxmd/B.M.B-TECH-URL/internal/storage/filestore"
)

const (
	// multipartOverhead — запас тела запроса на заголовки частей и границы.
	multipartOverhead = 1 << 20
	// multipartMemory — часть формы, удерживаемая в памяти при разборе.
	multipartMemory = 8 << 20
	// fileCacheControl — файл может быть удалён или истечь в любой момент,
	// поэтому разделяемые кэши его не хранят, а клиентский — не дольше минуты.
	fileCacheControl = "private, max-age=60"
)

// uploadResponse — тело успешного ответа POST /upload.
type uploadResponse struct {
	URL       string    `json:"url"`
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	MIME      string    `json:"mime"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expires_at"`
}

// deleteResponse — тело успешного ответа DELETE /delete/{id}.
type deleteResponse struct {
	OK      bool   `json:"ok"`
	Deleted string `json:"deleted"`
}

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	uploadSvc   *service.UploadService
	deleteSvc   *service.DeleteService
	retrieveSvc *service.RetrieveService
	baseURL     string
	maxFileSize int64
	logger      *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(
	cfg *config.Config,
	uploadSvc *service.UploadService,
	deleteSvc *service.DeleteService,
	retrieveSvc *service.RetrieveService,
	logger *slog.Logger,
) *FilesHandler {
	return &FilesHandler{
		uploadSvc:   uploadSvc,
		deleteSvc:   deleteSvc,
		retrieveSvc: retrieveSvc,
		baseURL:     cfg.BaseURL,
		maxFileSize: cfg.MaxFileSize,
		logger:      logger.With(slog.String("component", "files_handler")),
	}
}

// UploadFile обрабатывает POST /upload.
// Multipart form: file (обязательно), retention (опционально, секунды;
// допускается и как query-параметр).
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Файл превышает допустимый размер %d байт", h.maxFileSize))
			return
		}
		apierrors.ValidationError(w, "Ошибка разбора multipart: ожидается поле 'file'")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	retention, err := parseRetention(r.FormValue("retention"))
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	rec, err := h.uploadSvc.Upload(r.Context(), service.UploadRequest{
		Reader:    file,
		Filename:  header.Filename,
		MIME:      header.Header.Get("Content-Type"),
		Size:      header.Size,
		Retention: retention,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		URL:       h.baseURL + "/" + rec.Filename,
		ID:        rec.ID,
		Filename:  rec.Filename,
		MIME:      rec.MIME,
		Size:      rec.Size,
		ExpiresAt: rec.ExpiresAt,
	})
}

// DeleteFile обрабатывает DELETE /delete/{id}.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !filestore.IsValidID(id) {
		apierrors.NotFound(w, "Файл не найден")
		return
	}

	filename, err := h.deleteSvc.Delete(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{OK: true, Deleted: filename})
}

// GetFile обрабатывает GET и HEAD /{filename}.
// Отдача через http.ServeContent: Range, If-Modified-Since, Content-Length.
func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	got, err := h.retrieveSvc.Open(r.Context(), filename)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer got.File.Close()

	w.Header().Set("Content-Type", got.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", fileCacheControl)

	http.ServeContent(w, r, filename, got.Info.ModTime(), got.File)
}

// writeServiceError преобразует ошибку сервисного слоя в HTTP-ответ.
// Внутренние детали пишутся только в лог.
func (h *FilesHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrFileTooLarge):
		apierrors.FileTooLarge(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Файл не найден")
	default:
		h.logger.Error("Ошибка обработки запроса",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// parseRetention разбирает срок хранения в секундах. Пустое значение — срок по умолчанию.
func parseRetention(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("%w: retention должен быть положительным целым числом секунд", service.ErrInvalidRetention)
	}
	if secs > maxRetentionSeconds {
		secs = maxRetentionSeconds
	}
	return time.Duration(secs) * time.Second, nil
}

// maxRetentionSeconds — предел, при котором срок ещё представим в time.Duration.
const maxRetentionSeconds = int64(1<<63-1) / int64(time.Second)

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
