package storekit

import (
	"sync"
)

// Service is the facade entry point. It owns the configuration and a
// single process-wide client cache, and resolves URIs to backend drivers
// through the scheme registry. Construct one per process and share it;
// the zero-config form New(nil) uses defaults.
type Service struct {
	env *Env

	mu      sync.Mutex
	drivers map[string]Driver
}

// New creates a Service. A nil cfg is replaced with defaults.
func New(cfg *Config) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.withDefaults()
	return &Service{
		env: &Env{
			Config:  cfg,
			Clients: NewClientCache(cfg.CacheTTL()),
		},
		drivers: make(map[string]Driver),
	}
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.env.Config
}

// driver resolves (and memoizes) the driver for a scheme.
func (s *Service) driver(scheme string) (Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.drivers[scheme]; ok {
		return d, nil
	}
	d, err := createDriver(scheme, s.env)
	if err != nil {
		return nil, err
	}
	s.drivers[scheme] = d
	return d, nil
}

// rawFile creates a fresh raw stream for obj.
func (s *Service) rawFile(obj *Object) (RawFile, error) {
	d, err := s.driver(obj.Scheme)
	if err != nil {
		return nil, err
	}
	return d.OpenFile(obj)
}

// rawPrefix creates a fresh raw prefix handle for obj.
func (s *Service) rawPrefix(obj *Object) (RawPrefix, error) {
	d, err := s.driver(obj.Scheme)
	if err != nil {
		return nil, err
	}
	return d.OpenPrefix(obj)
}

// File resolves a URI to a File. No I/O is performed; an unknown
// scheme fails here with ErrUnknownScheme.
func (s *Service) File(uri string) (*File, error) {
	obj, err := ParseObject(uri)
	if err != nil {
		return nil, err
	}
	raw, err := s.rawFile(obj)
	if err != nil {
		return nil, NewPathError("file", uri, err)
	}
	return &File{obj: obj, svc: s, raw: raw}, nil
}

// Folder resolves a URI to a Folder. The path is normalized to end
// with "/".
func (s *Service) Folder(uri string) (*Folder, error) {
	obj, err := ParseObject(uri)
	if err != nil {
		return nil, err
	}
	obj = obj.asFolder()
	raw, err := s.rawPrefix(obj)
	if err != nil {
		return nil, NewPathError("folder", uri, err)
	}
	return &Folder{Prefix: Prefix{obj: obj, svc: s, raw: raw}}, nil
}

// Prefix resolves a URI to the set of objects sharing it as a key prefix.
// Unlike Folder, no trailing slash is added.
func (s *Service) Prefix(uri string) (*Prefix, error) {
	obj, err := ParseObject(uri)
	if err != nil {
		return nil, err
	}
	raw, err := s.rawPrefix(obj)
	if err != nil {
		return nil, NewPathError("prefix", uri, err)
	}
	return &Prefix{obj: obj, svc: s, raw: raw}, nil
}
