package storekit

import (
	"fmt"
	"sync"
)

// DriverFactory is a function that creates a Driver for a scheme.
// The Env carries the loaded configuration and the process-wide client
// cache; factories must obtain expensive SDK clients through the cache.
type DriverFactory func(env *Env) (Driver, error)

// Env is the environment a Service injects into driver factories.
type Env struct {
	Config  *Config
	Clients *ClientCache
}

var (
	driverFactories = make(map[string]DriverFactory)
	factoryMutex    sync.RWMutex
)

// RegisterDriver registers a driver factory for a URI scheme.
// Driver packages call this from init(); importing a driver package is
// what makes its scheme available.
func RegisterDriver(scheme string, factory DriverFactory) {
	factoryMutex.Lock()
	defer factoryMutex.Unlock()
	driverFactories[scheme] = factory
}

// createDriver creates a driver instance for a scheme.
func createDriver(scheme string, env *Env) (Driver, error) {
	factoryMutex.RLock()
	factory, exists := driverFactories[scheme]
	factoryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScheme, scheme)
	}

	return factory(env)
}
