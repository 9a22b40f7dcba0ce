// Пакет service — бизнес-логика файлового хостинга: загрузка, удаление,
// фоновая очистка просроченных файлов и сверка индекса с диском.
package service

import (
	"errors"
	"fmt"
)

// Ошибки сервисного слоя. Всё, что не является одной из них, — внутренняя ошибка.
var (
	// ErrValidation — некорректный запрос (нет файла, неверные параметры).
	ErrValidation = errors.New("ошибка валидации")
	// ErrMIMENotAllowed — MIME-тип не разрешён allow-list.
	ErrMIMENotAllowed = fmt.Errorf("%w: MIME-тип не разрешён", ErrValidation)
	// ErrMIMETooLong — MIME-тип длиннее mimepolicy.MaxLength.
	ErrMIMETooLong = fmt.Errorf("%w: слишком длинный MIME-тип", ErrValidation)
	// ErrInvalidRetention — срок хранения не положительное целое число секунд.
	ErrInvalidRetention = fmt.Errorf("%w: некорректный срок хранения", ErrValidation)
	// ErrFileTooLarge — файл превышает FH_MAX_FILE_SIZE.
	ErrFileTooLarge = errors.New("файл превышает допустимый размер")
	// ErrNotFound — запись о файле не найдена.
	ErrNotFound = errors.New("файл не найден")
	// ErrIDExhausted — не удалось выделить уникальный идентификатор.
	ErrIDExhausted = errors.New("исчерпаны попытки выделить уникальный идентификатор")
	// ErrRunInProgress — очистка или сверка уже выполняется.
	ErrRunInProgress = errors.New("операция уже выполняется")
)
