// Package graph orders named nodes so every node comes after its dependencies.
package graph

import (
	"fmt"
	"maps"
	"slices"
)

type Node interface {
	GetName() string
	GetDependencies() []string
}

// TopologicalSort returns node names in dependency order. Independent nodes
// keep a stable, name-sorted order.
func TopologicalSort[N Node](nodes map[string]N) ([]string, error) {
	if err := ValidateGraph(nodes); err != nil {
		return nil, err
	}

	visited := make(map[string]bool)
	visiting := make(map[string]bool)
	result := make([]string, 0, len(nodes))

	var visit func(string) error
	visit = func(name string) error {
		if visited[name] {
			return nil
		}
		if visiting[name] {
			return fmt.Errorf("cycle detected in dependencies involving %s", name)
		}

		visiting[name] = true
		for _, dep := range nodes[name].GetDependencies() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visiting[name] = false
		visited[name] = true
		result = append(result, name)
		return nil
	}

	for _, name := range slices.Sorted(maps.Keys(nodes)) {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func ValidateGraph[N Node](nodes map[string]N) error {
	for _, name := range slices.Sorted(maps.Keys(nodes)) {
		for _, dep := range nodes[name].GetDependencies() {
			if _, exists := nodes[dep]; !exists {
				return fmt.Errorf("%s depends on %s which does not exist", name, dep)
			}
		}
	}
	return nil
}
