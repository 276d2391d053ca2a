package osmloc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Descriptor is the static metadata registered once per backend type. Names
// are unique within the registry and matched case-sensitively.
type Descriptor struct {
	// Name is the spec string prefix that selects this backend.
	Name string
	// Description is a one-line summary for discovery output.
	Description string
	// RequiresPath reports whether the spec must carry a file path parameter.
	RequiresPath bool
	// Growable reports whether the backend grows on demand rather than
	// needing to be pre-sized for the full id range.
	Growable bool
	// Persistent reports whether the backend's contents survive a process
	// restart through its backing file.
	Persistent bool
	// Multimap reports whether the backend keeps multiple locations per id.
	Multimap bool
}

// Factory constructs a store from the spec parameters following the
// backend name.
type Factory func(spec string, params []string) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]registryEntry{}
)

type registryEntry struct {
	desc    Descriptor
	factory Factory
}

// Register adds a backend to the registry. Backends call this from init();
// a duplicate name is a programmer error and panics.
func Register(desc Descriptor, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[desc.Name]; exists {
		panic(fmt.Sprintf("osmloc: backend %q registered twice", desc.Name))
	}
	registry[desc.Name] = registryEntry{desc: desc, factory: factory}
}

// List enumerates the compiled-in backends, sorted by name.
func List() []Descriptor {
	registryMu.RLock()
	defer registryMu.RUnlock()
	descs := make([]Descriptor, 0, len(registry))
	for _, e := range registry {
		descs = append(descs, e.desc)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// Create instantiates a store from a spec string of the form
// "name[,param]*". File-backed backends take "name,path[,capacity]";
// in-memory backends take "name[,capacity]". Failures are reported as
// *ConfigError; a failed Create never returns a partially constructed
// store.
func Create(spec string) (Store, error) {
	parts := strings.Split(spec, ",")
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return nil, configErr(spec, "missing backend name", nil)
	}

	registryMu.RLock()
	entry, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, configErr(spec, fmt.Sprintf("unknown backend %q", name), nil)
	}

	params := parts[1:]
	if entry.desc.RequiresPath && (len(params) == 0 || strings.TrimSpace(params[0]) == "") {
		return nil, configErr(spec, fmt.Sprintf("backend %q requires a file path parameter", name), nil)
	}

	return entry.factory(spec, params)
}

// parseCapacity parses an optional numeric capacity parameter.
func parseCapacity(spec, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	capacity, err := strconv.Atoi(raw)
	if err != nil || capacity < 0 {
		return 0, configErr(spec, fmt.Sprintf("malformed capacity %q", raw), err)
	}
	return capacity, nil
}

// memFactory wraps a purely in-memory constructor taking a capacity hint.
func memFactory(build func(capacity int) Store) Factory {
	return func(spec string, params []string) (Store, error) {
		capacity := 0
		switch len(params) {
		case 0:
		case 1:
			c, err := parseCapacity(spec, params[0])
			if err != nil {
				return nil, err
			}
			capacity = c
		default:
			return nil, configErr(spec, "too many parameters", nil)
		}
		return build(capacity), nil
	}
}

// mappedFactory wraps a file-backed constructor taking a path and an
// optional capacity hint.
func mappedFactory(build func(path string, capacity int) (Store, error)) Factory {
	return func(spec string, params []string) (Store, error) {
		path := strings.TrimSpace(params[0])
		capacity := 0
		switch len(params) {
		case 1:
		case 2:
			c, err := parseCapacity(spec, params[1])
			if err != nil {
				return nil, err
			}
			capacity = c
		default:
			return nil, configErr(spec, "too many parameters", nil)
		}
		st, err := build(path, capacity)
		if err != nil {
			return nil, configErr(spec, "cannot open backing file", err)
		}
		return st, nil
	}
}

func init() {
	Register(Descriptor{
		Name:        "dense_mem",
		Description: "direct-indexed in-memory array, O(max id) memory",
		Growable:    true,
	}, memFactory(func(capacity int) Store { return NewDense(capacity) }))

	Register(Descriptor{
		Name:        "sparse_mem",
		Description: "in-memory sorted pairs with binary-search lookup",
		Growable:    true,
	}, memFactory(func(capacity int) Store { return NewSparse(capacity) }))

	Register(Descriptor{
		Name:        "multimap_mem",
		Description: "in-memory sorted pairs keeping every value per id",
		Growable:    true,
		Multimap:    true,
	}, memFactory(func(capacity int) Store { return NewMultimap(capacity) }))

	Register(Descriptor{
		Name:        "flex_mem",
		Description: "paged in-memory array with id membership bitmap",
		Growable:    true,
	}, func(spec string, params []string) (Store, error) {
		if len(params) > 0 {
			return nil, configErr(spec, "too many parameters", nil)
		}
		return NewFlex(), nil
	})

	Register(Descriptor{
		Name:         "mapped_dense",
		Description:  "direct-indexed array in a growable memory-mapped file",
		RequiresPath: true,
		Growable:     true,
		Persistent:   true,
	}, mappedFactory(func(path string, capacity int) (Store, error) {
		return NewMappedDense(path, capacity)
	}))

	Register(Descriptor{
		Name:         "mapped_sparse",
		Description:  "sorted pairs in a growable memory-mapped file",
		RequiresPath: true,
		Growable:     true,
		Persistent:   true,
	}, mappedFactory(func(path string, capacity int) (Store, error) {
		return NewMappedSparse(path, capacity)
	}))

	Register(Descriptor{
		Name:        "none",
		Description: "discards writes, every lookup misses",
		Growable:    true,
	}, func(spec string, params []string) (Store, error) {
		if len(params) > 0 {
			return nil, configErr(spec, "too many parameters", nil)
		}
		return NewNone(), nil
	})
}
