package congestion_ente

import (
	"sort"
	"sync"

	E "github.com/sagernet/sing/common/exceptions"
)

// Factory creates the per-connection state of a strategy.
type Factory func() Strategy

var (
	registryAccess sync.RWMutex
	registry       = make(map[string]Factory)
)

func init() {
	MustRegister(Name, NewState)
	MustRegister(RenoName, NewReno)
}

// Register installs a strategy under name.
func Register(name string, factory Factory) error {
	if name == "" {
		return E.New("register congestion control: empty name")
	}
	if factory == nil {
		return E.New("register congestion control ", name, ": nil factory")
	}
	if factory() == nil {
		return E.New("register congestion control ", name, ": factory returned no state")
	}
	registryAccess.Lock()
	defer registryAccess.Unlock()
	if _, loaded := registry[name]; loaded {
		return E.New("register congestion control ", name, ": already registered")
	}
	registry[name] = factory
	return nil
}

func MustRegister(name string, factory Factory) {
	err := Register(name, factory)
	if err != nil {
		panic(err)
	}
}

// Unregister removes the strategy installed under name.
func Unregister(name string) {
	registryAccess.Lock()
	defer registryAccess.Unlock()
	delete(registry, name)
}

// New creates the state of the strategy installed under name.
func New(name string) (Strategy, error) {
	registryAccess.RLock()
	factory, loaded := registry[name]
	registryAccess.RUnlock()
	if !loaded {
		return nil, E.New("unknown congestion control algorithm: ", name)
	}
	return factory(), nil
}

// Names returns the installed strategy names in sorted order.
func Names() []string {
	registryAccess.RLock()
	defer registryAccess.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
