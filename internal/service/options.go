package service

import "time"

// Option — опция конструкторов сервисов.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock подменяет источник текущего времени (используется в тестах).
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
