package providers

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

var ErrUnsupportedSite = errors.New("unsupported site")

type Factory func(opts Options) (Provider, error)

type Site struct {
	Name  string
	Hosts []string
}

var (
	registryMu sync.RWMutex
	byHost     = map[string]Factory{}
	sites      = map[string][]string{}
)

// Register makes a provider available for the given hosts. It panics on a
// duplicate host.
func Register(name string, hosts []string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	for _, h := range hosts {
		h = normalizeHost(h)
		if _, dup := byHost[h]; dup {
			panic("providers: host registered twice: " + h)
		}
		byHost[h] = factory
		sites[name] = append(sites[name], h)
	}
}

// ForURL returns the provider serving u's host.
func ForURL(u *url.URL, opts Options) (Provider, error) {
	registryMu.RLock()
	factory, ok := byHost[normalizeHost(u.Hostname())]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSite, u.Hostname())
	}

	return factory(NewOptions(opts))
}

// Sites lists registered providers sorted by name.
func Sites() []Site {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]Site, 0, len(sites))
	for name, hosts := range sites {
		hs := append([]string(nil), hosts...)
		sort.Strings(hs)
		out = append(out, Site{Name: name, Hosts: hs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.TrimPrefix(h, "www.")
}
