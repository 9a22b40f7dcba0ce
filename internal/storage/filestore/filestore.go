// Пакет filestore — операции с blob-файлами в корне хранилища.
// Обеспечивает streaming-запись с контролем размера, commit под
// уникальным именем {id}.{ext}, удаление и безопасное открытие
// blob для отдачи клиенту.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ошибки файлового хранилища.
var (
	// ErrFileTooLarge — поток превысил допустимый размер, частичный файл удалён.
	ErrFileTooLarge = errors.New("файл превышает допустимый размер")
	// ErrCollisionExhausted — не удалось подобрать свободное имя за maxCommitAttempts попыток.
	ErrCollisionExhausted = errors.New("исчерпаны попытки подобрать уникальный идентификатор")
	// ErrInvalidName — имя blob недопустимо (traversal, скрытый файл, пустое имя).
	ErrInvalidName = errors.New("недопустимое имя файла")
	// ErrNotFound — blob не найден.
	ErrNotFound = errors.New("файл не найден")
	// ErrStageClosed — staged-файл уже удалён через Discard.
	ErrStageClosed = errors.New("staged-файл уже закрыт")
)

// stagePrefix — префикс временных файлов. Начинается с точки,
// поэтому Retriever никогда их не отдаёт.
const stagePrefix = ".upload-"

// stageSuffix — суффикс временных файлов.
const stageSuffix = ".tmp"

// DefaultCommitAttempts — число попыток commit при коллизии имени.
const DefaultCommitAttempts = 5

// FileStore — управление blob-файлами на диске.
type FileStore struct {
	// dataDir — корневая директория хранения (FH_DATA_DIR)
	dataDir string
	// newID — генератор идентификаторов (подменяется в тестах)
	newID IDGenerator
	// maxCommitAttempts — ограничение повторов при коллизии имени
	maxCommitAttempts int
}

// Option — опция конструктора FileStore.
type Option func(*FileStore)

// WithIDGenerator подменяет генератор идентификаторов.
func WithIDGenerator(gen IDGenerator) Option {
	return func(fs *FileStore) {
		fs.newID = gen
	}
}

// WithCommitAttempts задаёт число попыток commit при коллизии.
func WithCommitAttempts(n int) Option {
	return func(fs *FileStore) {
		if n > 0 {
			fs.maxCommitAttempts = n
		}
	}
}

// New создаёт FileStore. Проверяет и создаёт директорию,
// если она не существует.
func New(dataDir string, opts ...Option) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	fs := &FileStore{
		dataDir:           dataDir,
		newID:             NewID,
		maxCommitAttempts: DefaultCommitAttempts,
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs, nil
}

// Staged — полностью записанный на диск, но ещё не опубликованный blob.
// Вызывающий код обязан вызвать Discard (обычно через defer).
type Staged struct {
	// Size — точное количество записанных байт
	Size int64

	fs      *FileStore
	tmpPath string
	closed  bool
}

// Stage записывает данные из reader во временный файл в корне хранилища.
// Считает записанные байты и прерывает запись, если превышен maxSize:
// временный файл при этом удаляется и возвращается ErrFileTooLarge.
//
// Паттерн: temp файл → запись → fsync → close.
func (fs *FileStore) Stage(reader io.Reader, maxSize int64) (*Staged, error) {
	tmpPath := filepath.Join(fs.dataDir, stagePrefix+uuid.NewString()+stageSuffix)

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Читаем на один байт больше лимита, чтобы отличить "ровно maxSize" от превышения
	size, err := io.Copy(f, io.LimitReader(reader, maxSize+1))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if size > maxSize {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: лимит %d байт", ErrFileTooLarge, maxSize)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	return &Staged{fs: fs, tmpPath: tmpPath, Size: size}, nil
}

// Commit публикует staged-данные под именем {id}.{ext} с новым идентификатором.
// Имя занимается через os.Link, который не перезаписывает существующий файл:
// при коллизии берётся следующий идентификатор. Commit можно вызывать
// повторно: каждый вызов создаёт ещё один blob с новым id.
func (s *Staged) Commit(ext string) (id, filename string, err error) {
	if s.closed {
		return "", "", ErrStageClosed
	}

	for attempt := 0; attempt < s.fs.maxCommitAttempts; attempt++ {
		id, err = s.fs.newID()
		if err != nil {
			return "", "", err
		}

		filename = id
		if ext != "" {
			filename = id + "." + ext
		}

		err = os.Link(s.tmpPath, filepath.Join(s.fs.dataDir, filename))
		if err == nil {
			return id, filename, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", "", fmt.Errorf("ошибка публикации файла %s: %w", filename, err)
		}
	}

	return "", "", ErrCollisionExhausted
}

// Discard удаляет временный файл. Опубликованные blob не затрагиваются.
// Безопасен для повторного вызова и для nil.
func (s *Staged) Discard() {
	if s == nil || s.closed {
		return
	}
	s.closed = true
	_ = os.Remove(s.tmpPath)
}

// Open открывает blob для отдачи по точному имени.
// Отклоняет пустые имена, пути с разделителями, "..", скрытые файлы
// и всё, что не является обычным файлом (директории не листаются).
func (fs *FileStore) Open(name string) (*os.File, os.FileInfo, error) {
	if err := ValidateName(name); err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(fs.dataDir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("ошибка открытия файла %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("ошибка stat файла %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, ErrNotFound
	}

	return f, info, nil
}

// ValidateName проверяет, что имя ссылается на файл прямо в корне хранилища.
func ValidateName(name string) error {
	switch {
	case name == "":
		return ErrInvalidName
	case strings.HasPrefix(name, "."):
		return ErrInvalidName
	case strings.ContainsAny(name, `/\`+"\x00"):
		return ErrInvalidName
	case filepath.Base(name) != name:
		return ErrInvalidName
	}
	return nil
}

// Delete удаляет blob с диска.
// Возвращает nil, если файл уже не существует.
func (fs *FileStore) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(fs.dataDir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла %s: %w", name, err)
	}
	return nil
}

// Exists проверяет существование blob на диске.
func (fs *FileStore) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(fs.dataDir, name))
	return err == nil && info.Mode().IsRegular()
}

// FullPath возвращает абсолютный путь к blob на диске.
func (fs *FileStore) FullPath(name string) string {
	return filepath.Join(fs.dataDir, name)
}

// DataDir возвращает путь к корню хранилища.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// BlobInfo — blob, найденный при сканировании корня хранилища.
type BlobInfo struct {
	// Name — имя файла {id}.{ext}
	Name string
	// ID — имя без расширения
	ID string
	// Size — размер в байтах
	Size int64
	// ModTime — время последней записи
	ModTime time.Time
	// Staged — временный файл незавершённой загрузки
	Staged bool
}

// Scan возвращает все обычные файлы в корне хранилища (не рекурсивно).
// Временные файлы загрузок помечаются Staged, прочие скрытые файлы пропускаются.
func (fs *FileStore) Scan() ([]BlobInfo, error) {
	entries, err := os.ReadDir(fs.dataDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", fs.dataDir, err)
	}

	var result []BlobInfo
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		staged := strings.HasPrefix(name, stagePrefix) && strings.HasSuffix(name, stageSuffix)
		if strings.HasPrefix(name, ".") && !staged {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Файл мог быть удалён между ReadDir и Info
			continue
		}

		id, _, _ := strings.Cut(name, ".")
		result = append(result, BlobInfo{
			Name:    name,
			ID:      id,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Staged:  staged,
		})
	}

	return result, nil
}

// RemoveStaged удаляет временный файл незавершённой загрузки по имени из Scan.
func (fs *FileStore) RemoveStaged(name string) error {
	if !strings.HasPrefix(name, stagePrefix) || strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	err := os.Remove(filepath.Join(fs.dataDir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ошибка удаления временного файла %s: %w", name, err)
	}
	return nil
}
