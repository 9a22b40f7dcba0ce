package filestore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// IDBytes — количество случайных байт в идентификаторе.
// 6 байт → 12 hex-символов: короткий URL ценой ненулевой вероятности коллизии,
// которая обрабатывается повтором при commit.
const IDBytes = 6

// IDGenerator — источник идентификаторов blob.
type IDGenerator func() (string, error)

// NewID возвращает случайный hex-идентификатор из crypto/rand.
func NewID() (string, error) {
	buf := make([]byte, IDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ошибка генерации идентификатора: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// IsValidID проверяет формат идентификатора: ровно 12 hex-символов в нижнем регистре.
func IsValidID(id string) bool {
	if len(id) != IDBytes*2 {
		return false
	}
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
