// Package components wires the agent's long-lived resources (Redis, storage,
// the language model, the HTTP server) and brings them up in dependency order.
package components

import (
	"context"
	"fmt"
	"log/slog"

	"radar/internal/graph"
)

const (
	RedisComponentName    = "redis"
	StorageComponentName  = "storage"
	PlatformComponentName = "platform"
	ServerComponentName   = "server"
)

type IComponent interface {
	Name() string
	Dependencies() []string
	Validate() error
	Initialize(ctx context.Context) error
	Close(ctx context.Context) error
}

type Registry struct {
	components map[string]IComponent
	order      []string
	logger     *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		components: make(map[string]IComponent),
		order:      make([]string, 0),
		logger:     logger,
	}
}

func (r *Registry) Register(component IComponent) error {
	name := component.Name()
	if _, exists := r.components[name]; exists {
		return fmt.Errorf("component %s already registered", name)
	}
	r.components[name] = component
	return nil
}

// Get panics when name was never registered; lookups are static wiring.
func (r *Registry) Get(name string) IComponent {
	comp, exists := r.components[name]
	if !exists {
		panic(fmt.Sprintf("component %s not found", name))
	}
	return comp
}

func (r *Registry) Has(name string) bool {
	_, exists := r.components[name]
	return exists
}

// InitializeAll validates every component, then initializes them in
// dependency order. Components initialized before a failure are closed.
func (r *Registry) InitializeAll(ctx context.Context) error {
	nodes := make(map[string]*componentNode, len(r.components))
	for name, comp := range r.components {
		nodes[name] = &componentNode{comp: comp}
	}

	order, err := graph.TopologicalSort(nodes)
	if err != nil {
		return fmt.Errorf("invalid component graph: %w", err)
	}

	for _, name := range order {
		if err := r.components[name].Validate(); err != nil {
			return fmt.Errorf("component %s validation failed: %w", name, err)
		}
	}

	for _, name := range order {
		if err := r.components[name].Initialize(ctx); err != nil {
			r.CloseAll(ctx)
			return fmt.Errorf("component %s initialization failed: %w", name, err)
		}
		r.order = append(r.order, name)
		r.logger.Debug("Component initialized", "component", name)
	}

	return nil
}

type componentNode struct {
	comp IComponent
}

func (cn *componentNode) GetName() string {
	return cn.comp.Name()
}

func (cn *componentNode) GetDependencies() []string {
	return cn.comp.Dependencies()
}

// CloseAll closes initialized components in reverse order.
func (r *Registry) CloseAll(ctx context.Context) {
	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		if err := r.components[name].Close(ctx); err != nil {
			r.logger.Error("Error closing component", "component", name, "error", err)
		}
	}
	r.order = r.order[:0]
}
