// Пакет mimepolicy — allow-list MIME-типов для загрузки.
//
// Правило — либо точный тип ("application/pdf"), либо wildcard подтипа
// ("image/*"). Проверка выполняется до записи хотя бы одного байта
// в хранилище, поэтому отказ не имеет побочных эффектов.
package mimepolicy

import (
	"fmt"
	"strings"
)

// Rule — одно правило allow-list.
type Rule struct {
	// Pattern — исходное правило в нормализованном виде
	Pattern string
	// prefix — "type/" для wildcard-правил, пусто для точных
	prefix string
}

// Wildcard сообщает, является ли правило wildcard подтипа.
func (r Rule) Wildcard() bool {
	return r.prefix != ""
}

// Matches проверяет нормализованный MIME-тип на соответствие правилу.
func (r Rule) Matches(mime string) bool {
	if r.Pattern == "*/*" {
		return true
	}
	if r.prefix != "" {
		return strings.HasPrefix(mime, r.prefix) && len(mime) > len(r.prefix)
	}
	return mime == r.Pattern
}

// Policy — упорядоченный allow-list правил.
type Policy struct {
	rules []Rule
}

// New строит политику из списка правил.
// Возвращает ошибку для синтаксически некорректных правил.
func New(patterns []string) (*Policy, error) {
	p := &Policy{}
	for _, raw := range patterns {
		pattern := Normalize(raw)
		if pattern == "" {
			continue
		}
		rule, err := parseRule(pattern)
		if err != nil {
			return nil, err
		}
		p.rules = append(p.rules, rule)
	}
	if len(p.rules) == 0 {
		return nil, fmt.Errorf("allow-list MIME-типов пуст")
	}
	return p, nil
}

// Parse разбирает allow-list из строки, разделённой запятыми.
func Parse(list string) (*Policy, error) {
	return New(strings.Split(list, ","))
}

func parseRule(pattern string) (Rule, error) {
	typ, sub, ok := strings.Cut(pattern, "/")
	if !ok || typ == "" || sub == "" || strings.Contains(sub, "/") {
		return Rule{}, fmt.Errorf("некорректное правило MIME %q: ожидается type/subtype или type/*", pattern)
	}
	if typ == "*" && sub != "*" {
		return Rule{}, fmt.Errorf("некорректное правило MIME %q: wildcard допустим только для подтипа", pattern)
	}
	if sub == "*" && typ != "*" {
		return Rule{Pattern: pattern, prefix: typ + "/"}, nil
	}
	return Rule{Pattern: pattern}, nil
}

// Allowed проверяет, разрешён ли MIME-тип хотя бы одним правилом.
func (p *Policy) Allowed(mime string) bool {
	mime = Normalize(mime)
	if mime == "" {
		return false
	}
	for _, rule := range p.rules {
		if rule.Matches(mime) {
			return true
		}
	}
	return false
}

// Rules возвращает копию правил в исходном порядке.
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// String возвращает правила через запятую (для логов).
func (p *Policy) String() string {
	patterns := make([]string, 0, len(p.rules))
	for _, r := range p.rules {
		patterns = append(patterns, r.Pattern)
	}
	return strings.Join(patterns, ",")
}

// MaxLength — предельная длина MIME-типа, общая для всех бэкендов индекса.
const MaxLength = 255

// Normalize убирает параметры ("; charset=utf-8"), пробелы и приводит
// MIME-тип к нижнему регистру.
func Normalize(mime string) string {
	if i := strings.IndexByte(mime, ';'); i != -1 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}
