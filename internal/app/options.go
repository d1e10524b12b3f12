package app

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Option tunes a service.
type Option func(*options)

type options struct {
	now               func() time.Time
	log               logrus.FieldLogger
	speedRequiresPass bool
	replayTTL         time.Duration
}

func buildOptions(opts []Option) options {
	o := options{
		now:               time.Now,
		log:               logrus.StandardLogger(),
		speedRequiresPass: true,
		replayTTL:         24 * time.Hour,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock replaces time.Now, for deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger services report transitions to.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

// WithSpeedRequiresPass decides whether a failed attempt can earn the speed badge.
func WithSpeedRequiresPass(required bool) Option {
	return func(o *options) { o.speedRequiresPass = required }
}

// WithReplayTTL sets how long submit results stay replayable by idempotency key.
func WithReplayTTL(ttl time.Duration) Option {
	return func(o *options) { o.replayTTL = ttl }
}
