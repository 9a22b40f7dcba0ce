// ratelimit.go — ограничение частоты запросов по клиенту (фиксированное окно).
//
// Идентификатор клиента — host из RemoteAddr (после chi RealIP при FH_TRUST_PROXY).
// Счётчики хранятся в памяти процесса в ограниченном LRU с TTL окна:
// при превышении FH_RATE_MAX_CLIENTS вытесняются давно не появлявшиеся клиенты.
package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/novaxmd/B.M.B-TECH-URL/internal/api/errors"
)

// Заголовки ответа ограничителя.
const (
	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRateReset     = "X-RateLimit-Reset"
)

// rateLimitedTotal — запросы, отклонённые ограничителем.
var rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "fh_rate_limited_total",
	Help: "Общее количество запросов, отклонённых ограничителем частоты",
})

// window — состояние окна одного клиента.
type window struct {
	start time.Time
	count int
}

// Decision — результат допуска запроса.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetIn — время до начала следующего окна
	ResetIn time.Duration
}

// RateLimiter — ограничитель частоты запросов с фиксированным окном.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients *expirable.LRU[string, window]
}

// NewRateLimiter создаёт ограничитель: limit запросов за window, не более maxClients клиентов.
func NewRateLimiter(limit int, win time.Duration, maxClients int) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  win,
		now:     time.Now,
		clients: expirable.NewLRU[string, window](maxClients, nil, win),
	}
}

// WithClock подменяет источник времени (для тестов).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	rl.now = now
	return rl
}

// Allow учитывает запрос клиента и возвращает решение о допуске.
// Отклонённые запросы в счётчик не входят.
func (rl *RateLimiter) Allow(client string) Decision {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.clients.Get(client)
	if !ok || now.Sub(w.start) >= rl.window {
		w = window{start: now}
	}

	d := Decision{
		Limit:   rl.limit,
		ResetIn: w.start.Add(rl.window).Sub(now),
	}
	if w.count >= rl.limit {
		d.Remaining = 0
		return d
	}

	w.count++
	rl.clients.Add(client, w)

	d.Allowed = true
	d.Remaining = rl.limit - w.count
	return d
}

// Middleware возвращает HTTP middleware ограничителя.
// При превышении лимита отвечает 429 с Retry-After.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := rl.Allow(ClientID(r))

			resetSec := strconv.Itoa(ceilSeconds(d.ResetIn))
			w.Header().Set(HeaderRateLimit, strconv.Itoa(d.Limit))
			w.Header().Set(HeaderRateRemaining, strconv.Itoa(d.Remaining))
			w.Header().Set(HeaderRateReset, resetSec)

			if !d.Allowed {
				rateLimitedTotal.Inc()
				w.Header().Set("Retry-After", resetSec)
				apierrors.RateLimited(w, "Превышен лимит запросов, повторите через "+resetSec+" с")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientID возвращает идентификатор клиента: host из RemoteAddr.
func ClientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RealIP записывает адрес без порта
		return r.RemoteAddr
	}
	return host
}

// ceilSeconds округляет длительность вверх до целых секунд, минимум 1.
func ceilSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
