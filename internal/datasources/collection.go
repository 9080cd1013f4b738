package datasources

import (
	"fmt"
)

// SourceConfig is the serializable init description of one source:
// its registered type name plus init arguments. Together with its
// namespace it round-trips a DataSources collection.
type SourceConfig struct {
	Type   string            `yaml:"type" json:"type"`
	URL    string            `yaml:"url,omitempty" json:"url,omitempty"`
	Path   string            `yaml:"path,omitempty" json:"path,omitempty"`
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	// Data holds inline records for static sources.
	Data []map[string]interface{} `yaml:"data,omitempty" json:"data,omitempty"`
}

// NamespaceConfig pairs a namespace with its source config. Collections
// serialize to an ordered list because namespace declaration order is the
// resolution order.
type NamespaceConfig struct {
	Namespace    string `yaml:"namespace" json:"namespace"`
	SourceConfig `yaml:",inline"`
}

// Factory builds a Provider for a namespace from its init config.
type Factory func(ns string, cfg SourceConfig) (Provider, error)

// TypeRegistry maps source type names to factories. It is passed
// explicitly to collection construction; there is no package-global
// registry.
type TypeRegistry struct {
	factories map[string]Factory
}

// NewTypeRegistry returns a registry pre-populated with the built-in
// source types.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{factories: make(map[string]Factory)}
	r.Register("AssociationLZ", func(ns string, cfg SourceConfig) (Provider, error) {
		return NewAssociationSource(ns, cfg), nil
	})
	r.Register("LDLZ", func(ns string, cfg SourceConfig) (Provider, error) {
		return NewLDSource(ns, cfg), nil
	})
	r.Register("GeneLZ", func(ns string, cfg SourceConfig) (Provider, error) {
		return NewGeneSource(ns, cfg), nil
	})
	r.Register("RecombLZ", func(ns string, cfg SourceConfig) (Provider, error) {
		return NewRecombSource(ns, cfg), nil
	})
	r.Register("StaticJSON", NewStaticSource)
	r.Register("TileDBAssoc", NewTileDBSource)
	return r
}

// Register adds or replaces a factory for a type name.
func (r *TypeRegistry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Build instantiates a provider for cfg.Type under a namespace. Unknown
// types are a fatal configuration error.
func (r *TypeRegistry) Build(ns string, cfg SourceConfig) (Provider, error) {
	f, ok := r.factories[cfg.Type]
	if !ok {
		return nil, &ConfigurationError{Detail: fmt.Sprintf("unknown source type %q", cfg.Type)}
	}
	return f(ns, cfg)
}

// DataSources is an ordered collection of namespaced sources. Declaration
// order is significant: the requester resolves namespaces in this order,
// and sources that join against another namespace's rows must be declared
// after it.
type DataSources struct {
	order   []string
	sources map[string]*Source
	configs map[string]SourceConfig
}

// NewDataSources returns an empty collection.
func NewDataSources() *DataSources {
	return &DataSources{
		sources: make(map[string]*Source),
		configs: make(map[string]SourceConfig),
	}
}

// Add registers a source under a namespace, appending it to the
// declaration order. Re-adding a namespace replaces the source but keeps
// its original position.
func (d *DataSources) Add(namespace string, src *Source, cfg SourceConfig) {
	if _, exists := d.sources[namespace]; !exists {
		d.order = append(d.order, namespace)
	}
	d.sources[namespace] = src
	d.configs[namespace] = cfg
}

// Get returns the source for a namespace, or nil.
func (d *DataSources) Get(namespace string) *Source {
	return d.sources[namespace]
}

// Namespaces returns the declaration order.
func (d *DataSources) Namespaces() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Remove deletes a namespace and its cache slot.
func (d *DataSources) Remove(namespace string) {
	if _, ok := d.sources[namespace]; !ok {
		return
	}
	delete(d.sources, namespace)
	delete(d.configs, namespace)
	for i, ns := range d.order {
		if ns == namespace {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// ToConfig serializes the collection to its ordered namespace configs.
func (d *DataSources) ToConfig() []NamespaceConfig {
	out := make([]NamespaceConfig, 0, len(d.order))
	for _, ns := range d.order {
		out = append(out, NamespaceConfig{Namespace: ns, SourceConfig: d.configs[ns]})
	}
	return out
}

// FromConfig reconstructs a collection from serialized namespace configs,
// building each source through the type registry. The result is
// observably identical to the original for the same queries.
func FromConfig(reg *TypeRegistry, cfgs []NamespaceConfig) (*DataSources, error) {
	d := NewDataSources()
	for _, nc := range cfgs {
		if nc.Namespace == "" {
			return nil, &ConfigurationError{Detail: "source entry with empty namespace"}
		}
		provider, err := reg.Build(nc.Namespace, nc.SourceConfig)
		if err != nil {
			return nil, err
		}
		d.Add(nc.Namespace, NewSource(provider), nc.SourceConfig)
	}
	return d, nil
}
