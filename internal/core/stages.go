package core

import (
	"fmt"
	"sync"

	"radar/internal/graph"
)

type stageNode struct {
	processor Processor
	dependsOn []string
}

func (n *stageNode) GetName() string           { return n.processor.Name() }
func (n *stageNode) GetDependencies() []string { return n.dependsOn }

// StageGraph orders processors by their declared dependencies.
type StageGraph struct {
	nodes map[string]*stageNode
	order []string
	mu    sync.Mutex
}

func NewStageGraph() *StageGraph {
	return &StageGraph{
		nodes: make(map[string]*stageNode),
	}
}

func (g *StageGraph) Add(processor Processor, dependsOn ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes[processor.Name()] = &stageNode{processor: processor, dependsOn: dependsOn}
	g.order = nil
}

// Resolve validates the graph and returns processors in execution order.
func (g *StageGraph) Resolve() ([]Processor, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.order == nil {
		order, err := graph.TopologicalSort(g.nodes)
		if err != nil {
			return nil, fmt.Errorf("invalid stage graph: %w", err)
		}
		g.order = order
	}

	out := make([]Processor, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.nodes[name].processor)
	}
	return out, nil
}
