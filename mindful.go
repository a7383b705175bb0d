package mindful

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/mindful/internal/platform"
	"github.com/aretw0/mindful/pkg/core"
	"github.com/aretw0/mindful/pkg/scoped"
	"github.com/aretw0/mindful/pkg/session"
	"github.com/aretw0/mindful/pkg/wellbeing"
)

// Version exposes the version of the library.
// See version.go for the implementation using go:embed.

// --- Types ---

// Store is a public alias for the owner-scoped persistent store.
type Store[T any] = scoped.Store[T]

// Workspace is a public alias for the per-owner set of feature stores.
type Workspace = wellbeing.Workspace

// Config is a public alias for the file and environment configuration.
type Config = platform.Config

// --- Configuration ---

// Option defines a functional option for configuring mindful.
type Option = platform.Option

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithMustExist ensures the storage directory must already exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithStorage allows injecting a custom storage adapter.
func WithStorage(storage core.Storage) Option {
	return platform.WithStorage(storage)
}

// WithAdapter allows specifying the storage adapter to use by name.
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithSystemDir allows specifying the hidden directory name (e.g. ".mindful").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithEventBuffer allows specifying the size of the event broker buffer.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithMaxBytes limits the total size of all slots.
func WithMaxBytes(n int64) Option {
	return platform.WithMaxBytes(n)
}

// WithPollInterval sets how often polling adapters look for changes.
func WithPollInterval(d time.Duration) Option {
	return platform.WithPollInterval(d)
}

// WithReadOnly enables read-only mode.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithDevSafety controls the dev sandbox (see platform.WithDevSafety).
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithWatcherErrorHandler registers a callback for watcher runtime errors.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// --- Factory ---

// New creates a new mindful Service.
func New(uri string, opts ...Option) (*core.Service, error) {
	return platform.New(uri, opts...)
}

// Init initializes a storage explicitly.
func Init(uri string, opts ...Option) (core.Storage, error) {
	return platform.Init(uri, opts...)
}

// LoadConfig reads mindful.yaml under root and MINDFUL_* environment variables.
func LoadConfig(root string) (*Config, error) {
	return platform.LoadConfig(root)
}

// --- Store Factories ---

// NewStore creates a scoped store over an existing storage.
func NewStore[T any](ctx context.Context, storage core.Storage, base string, initial T, owner string, opts ...scoped.Option) (*scoped.Store[T], error) {
	return scoped.New(ctx, storage, base, initial, owner, opts...)
}

// OpenStore simplifies creating a scoped store from a path.
// The store is started, so it follows changes made by other handles until closed.
func OpenStore[T any](ctx context.Context, uri, base string, initial T, owner string, opts ...Option) (*scoped.Store[T], error) {
	storage, err := Init(uri, opts...)
	if err != nil {
		return nil, err
	}
	store, err := scoped.New(ctx, storage, base, initial, owner)
	if err != nil {
		return nil, err
	}
	if err := store.Start(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// OpenWorkspace opens every feature store at uri for the owner of provider.
func OpenWorkspace(ctx context.Context, uri string, provider session.Provider, opts ...Option) (*wellbeing.Workspace, error) {
	storage, err := Init(uri, opts...)
	if err != nil {
		return nil, err
	}
	return wellbeing.Open(ctx, storage, provider)
}

// --- Safety & Utils ---

// ResolvePath determines the actual storage path based on safety rules.
func ResolvePath(userPath string, forceTemp bool) string {
	return platform.ResolvePath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot recursively looks upwards for a data root indicator.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
