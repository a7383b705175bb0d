package scoped

import "log/slog"

type options struct {
	logger *slog.Logger
	codec  Codec
	sync   bool
}

// Option configures a Store.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		codec: JSONCodec{},
		sync:  true,
	}
}

// WithLogger sets the logger used for parse and write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCodec replaces the default JSON codec.
func WithCodec(c Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithoutSync disables cross-handle synchronization; Start becomes a no-op.
func WithoutSync() Option {
	return func(o *options) {
		o.sync = false
	}
}
