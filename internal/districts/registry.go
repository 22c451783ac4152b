package districts

import (
	"context"
	"log"
	"sort"
	"sync"

	"greenurban-desktop/internal/greenapi"
)

// FallbackNames lists the Semarang districts used when the backend cannot
// supply the list. Fallback districts carry no geometry, so boundary
// rendering and highlighting are unavailable until a reload succeeds.
var FallbackNames = []string{
	"Semarang Tengah",
	"Semarang Utara",
	"Semarang Selatan",
	"Semarang Barat",
	"Semarang Timur",
	"Candisari",
	"Gayamsari",
	"Pedurungan",
	"Genuk",
	"Tembalang",
	"Gunungpati",
	"Mijen",
	"Ngaliyan",
	"Banyumanik",
	"Tugu",
	"Gajahmungkur",
}

// Source supplies the district list, normally the backend client
type Source interface {
	GetDistricts(ctx context.Context) ([]greenapi.District, error)
}

// Registry holds the known districts keyed by exact name
type Registry struct {
	mu        sync.RWMutex
	byName    map[string]greenapi.District
	names     []string
	fromCache bool // true when serving the fallback list
}

// NewRegistry creates an empty registry pre-seeded with the fallback list
func NewRegistry() *Registry {
	r := &Registry{}
	r.useFallback()
	return r
}

func (r *Registry) useFallback() {
	byName := make(map[string]greenapi.District, len(FallbackNames))
	names := make([]string, len(FallbackNames))
	for i, name := range FallbackNames {
		byName[name] = greenapi.District{Name: name}
		names[i] = name
	}
	r.byName = byName
	r.names = names
	r.fromCache = true
}

// Load fetches the district list from the source. On failure the registry
// keeps serving the fallback names and reports no error; callers that
// need to distinguish can check UsingFallback.
func (r *Registry) Load(ctx context.Context, src Source) {
	list, err := src.GetDistricts(ctx)
	if err != nil {
		log.Printf("District list unavailable, using built-in names: %v", err)
		return
	}
	if len(list) == 0 {
		log.Printf("District list empty, keeping built-in names")
		return
	}

	byName := make(map[string]greenapi.District, len(list))
	names := make([]string, 0, len(list))
	for _, d := range list {
		if d.Name == "" {
			continue
		}
		if _, dup := byName[d.Name]; dup {
			continue
		}
		byName[d.Name] = d
		names = append(names, d.Name)
	}
	if len(names) == 0 {
		log.Printf("District list had no usable entries, keeping built-in names")
		return
	}
	sort.Strings(names)

	r.mu.Lock()
	r.byName = byName
	r.names = names
	r.fromCache = false
	r.mu.Unlock()

	log.Printf("Loaded %d districts", len(names))
}

// Names returns the district names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Get looks up a district by exact name
func (r *Registry) Get(name string) (greenapi.District, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// All returns every known district
func (r *Registry) All() []greenapi.District {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]greenapi.District, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}

// UsingFallback reports whether the registry is serving the built-in
// names instead of a backend-supplied list
func (r *Registry) UsingFallback() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fromCache
}
