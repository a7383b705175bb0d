package platform

import (
	"github.com/aretw0/mindful/pkg/core"
)

// New opens the storage at uri and wraps it in a service.
// The URI argument is adapter-specific (a directory for "fs", a database file for "sqlite").
func New(uri string, opts ...Option) (*core.Service, error) {
	storage, err := Init(uri, opts...)
	if err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	serviceOpts := []core.ServiceOption{}
	if o.logger != nil {
		serviceOpts = append(serviceOpts, core.WithServiceLogger(o.logger))
	}
	if size, ok := o.config["event_buffer"].(int); ok && size > 0 {
		serviceOpts = append(serviceOpts, core.WithEventBuffer(size))
	}

	return core.NewService(storage, serviceOpts...), nil
}
