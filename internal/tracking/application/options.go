package application

import (
	"time"

	"github.com/sirupsen/logrus"
)

type options struct {
	logger logrus.FieldLogger
	now    func() time.Time
}

// Option configures a Tracker or Progress.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: logrus.StandardLogger(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
