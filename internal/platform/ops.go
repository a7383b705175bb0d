package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aretw0/mindful/pkg/adapters/fs"
	"github.com/aretw0/mindful/pkg/adapters/memory"
	"github.com/aretw0/mindful/pkg/adapters/sqlite"
	"github.com/aretw0/mindful/pkg/core"
)

// Init opens and initializes the storage selected by the options.
// The 'uri' argument is adapter-specific.
func Init(uri string, opts ...Option) (core.Storage, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	// 1. Injected storage
	if o.storage != nil {
		if err := o.storage.Initialize(context.Background()); err != nil {
			return nil, err
		}
		return o.storage, nil
	}

	// 2. Adapter
	var (
		storage core.Storage
		err     error
	)
	switch o.adapter {
	case "fs", "":
		storage, err = initFS(uri, o)
	case "sqlite":
		storage, err = initSQLite(uri, o)
	case "memory":
		maxBytes, _ := o.config["max_bytes"].(int64)
		storage = memory.NewOrigin(memory.WithQuota(maxBytes)).Handle("default")
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
	if err != nil {
		return nil, err
	}

	// 3. Initialization
	if err := storage.Initialize(context.Background()); err != nil {
		return nil, err
	}
	return storage, nil
}

// resolvePath applies the dev safety rules to path.
func resolvePath(path string, o *options) string {
	tempDir, _ := o.config["temp_dir"].(bool)
	isReadOnly, _ := o.config["read_only"].(bool)
	devSafety := true
	if val, ok := o.config["dev_safety"].(bool); ok {
		devSafety = val
	}

	// Read-only storage cannot damage anything.
	bypassSafety := isReadOnly || !devSafety
	useTemp := tempDir || (IsDevRun() && !bypassSafety)
	resolved := ResolvePath(path, useTemp)

	if IsDevRun() && o.logger != nil {
		if bypassSafety {
			if isReadOnly {
				o.logger.Debug("running in READ-ONLY mode (bypassing dev sandbox)", "path", resolved)
			} else {
				o.logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", resolved)
			}
		} else {
			o.logger.Debug("running in SAFE mode (dev sandbox enabled)", "path", resolved)
		}
	}
	if o.logger != nil && useTemp && resolved != path {
		o.logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", path, "resolved_path", resolved)
	}
	return resolved
}

// initFS handles the initialization logic for the filesystem adapter.
func initFS(path string, o *options) (core.Storage, error) {
	mustExist, _ := o.config["must_exist"].(bool)
	isReadOnly, _ := o.config["read_only"].(bool)
	systemDir, _ := o.config["system_dir"].(string)
	maxBytes, _ := o.config["max_bytes"].(int64)
	errorHandler, _ := o.config["watcher_error_handler"].(func(error))

	return fs.NewRepository(fs.Config{
		Path:         resolvePath(path, o),
		MustExist:    mustExist,
		ReadOnly:     isReadOnly,
		Logger:       o.logger,
		SystemDir:    systemDir,
		MaxBytes:     maxBytes,
		ErrorHandler: errorHandler,
	}), nil
}

// initSQLite handles the initialization logic for the SQLite adapter.
// A directory URI gets a "mindful.db" file inside it.
func initSQLite(path string, o *options) (core.Storage, error) {
	resolved := resolvePath(path, o)
	if filepath.Ext(resolved) == "" {
		resolved = filepath.Join(resolved, "mindful.db")
	}
	maxBytes, _ := o.config["max_bytes"].(int64)
	pollInterval, _ := o.config["poll_interval"].(time.Duration)

	return sqlite.NewRepository(sqlite.Config{
		Path:         resolved,
		Logger:       o.logger,
		MaxBytes:     maxBytes,
		PollInterval: pollInterval,
	}), nil
}
