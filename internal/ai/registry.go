package ai

// Factory builds a TextGenerator bound to one model.
type Factory func(model string) TextGenerator

// Registry is a static mapping from provider identifier to its generator
// factory. It is populated once at startup and never mutated afterwards, so
// lookups need no locking.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry(factories map[string]Factory) *Registry {
	m := make(map[string]Factory, len(factories))
	for name, f := range factories {
		m[name] = f
	}
	return &Registry{factories: m}
}

// Generator returns a generator for the provider/model pair.
func (r *Registry) Generator(name, model string) (TextGenerator, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, &NotConfiguredError{Purpose: "provider lookup", Provider: name}
	}
	return f(model), nil
}

// Has reports whether a provider identifier is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}
