// auth.go — middleware авторизации по общему секрету.
// Секрет принимается из заголовка X-Upload-Secret или Authorization: Bearer <secret>.
// Сравнение выполняется за постоянное время.
// Публичные endpoints (health, metrics, получение файла) — без авторизации.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/novaxmd/B.M.B-TECH-URL/internal/api/errors"
)

// HeaderUploadSecret — заголовок с общим секретом.
const HeaderUploadSecret = "X-Upload-Secret"

// SecretAuth — middleware авторизации по общему секрету.
type SecretAuth struct {
	secret []byte
	logger *slog.Logger
}

// NewSecretAuth создаёт middleware с указанным секретом (FH_UPLOAD_SECRET).
func NewSecretAuth(secret string, logger *slog.Logger) *SecretAuth {
	return &SecretAuth{
		secret: []byte(secret),
		logger: logger.With(slog.String("component", "secret_auth")),
	}
}

// Middleware возвращает HTTP middleware, пропускающий только запросы с верным секретом.
// Отказ происходит до чтения тела запроса.
func (a *SecretAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided, ok := extractSecret(r)
			if !ok {
				apierrors.Unauthorized(w, "Отсутствует секрет")
				return
			}

			if !a.valid(provided) {
				a.logger.Warn("Неверный секрет",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Неверный секрет")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// valid сравнивает секрет за постоянное время.
func (a *SecretAuth) valid(provided string) bool {
	if len(a.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), a.secret) == 1
}

// extractSecret извлекает секрет из X-Upload-Secret или Authorization: Bearer.
func extractSecret(r *http.Request) (string, bool) {
	if s := r.Header.Get(HeaderUploadSecret); s != "" {
		return s, true
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
