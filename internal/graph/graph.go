package graph

import (
	"fmt"
	"sort"
)

type relKey struct {
	source string
	target string
	typ    RelationshipType
}

// Graph is the in-memory store of nodes and relationships for one build.
// It owns every node; all other references to nodes are hashed-id lookups.
// Graph is not safe for concurrent mutation; builders funnel writes
// through a single goroutine.
type Graph struct {
	env Environment

	nodes  map[string]*Node // hashed id -> node
	byPath map[string]*Node // display path -> node
	// defsByFile indexes CLASS/FUNCTION nodes per file path, for resolving
	// a backend location back to its enclosing definition.
	defsByFile map[string][]*Node

	rels map[relKey]*Relationship

	finalized bool
}

// New creates an empty graph for the given environment.
func New(env Environment) *Graph {
	return &Graph{
		env:        env,
		nodes:      make(map[string]*Node),
		byPath:     make(map[string]*Node),
		defsByFile: make(map[string][]*Node),
		rels:       make(map[relKey]*Relationship),
	}
}

// Env returns the environment this graph was built in.
func (g *Graph) Env() Environment { return g.env }

// AddNode inserts a node and updates the path and id indices.
// Inserting the same structural path twice keeps the first node.
func (g *Graph) AddNode(n *Node) error {
	if g.finalized {
		return fmt.Errorf("graph is finalized")
	}
	hid := n.HashedID()
	if _, ok := g.nodes[hid]; ok {
		return nil
	}
	g.nodes[hid] = n
	g.byPath[n.Path] = n
	if n.IsDefinition() && n.Def != nil {
		file := fileOfPath(n.Path)
		g.defsByFile[file] = append(g.defsByFile[file], n)
	}
	return nil
}

// fileOfPath strips the in-file scope suffix from a definition path.
func fileOfPath(path string) string {
	for i := 0; i < len(path); i++ {
		if path[i] == ':' {
			return path[:i]
		}
	}
	return path
}

// AddRelationship inserts a relationship. Both endpoints must already be
// present in the graph. Duplicate (source, target, type) triples are merged.
func (g *Graph) AddRelationship(r Relationship) error {
	if g.finalized {
		return fmt.Errorf("graph is finalized")
	}
	if _, ok := g.nodes[r.SourceID]; !ok {
		return fmt.Errorf("relationship source %s not in graph", r.SourceID)
	}
	if _, ok := g.nodes[r.TargetID]; !ok {
		return fmt.Errorf("relationship target %s not in graph", r.TargetID)
	}
	key := relKey{r.SourceID, r.TargetID, r.Type}
	if _, ok := g.rels[key]; ok {
		return nil
	}
	rel := r
	g.rels[key] = &rel
	return nil
}

// NodeByID returns the node with the given hashed id.
func (g *Graph) NodeByID(hashedID string) *Node {
	return g.nodes[hashedID]
}

// NodeByPath returns the node at the given display path.
func (g *Graph) NodeByPath(path string) *Node {
	return g.byPath[path]
}

// Nodes returns all nodes sorted by structural path, for deterministic
// iteration in tests and serialization.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StructuralPath < out[j].StructuralPath
	})
	return out
}

// Definitions returns all CLASS and FUNCTION nodes, sorted.
func (g *Graph) Definitions() []*Node {
	var out []*Node
	for _, n := range g.Nodes() {
		if n.IsDefinition() {
			out = append(out, n)
		}
	}
	return out
}

// DefinitionsInFile returns the definitions whose display path is inside
// the given file, sorted by range size ascending so the first node whose
// range contains a position is the innermost enclosing scope.
func (g *Graph) DefinitionsInFile(filePath string) []*Node {
	defs := g.defsByFile[filePath]
	sorted := make([]*Node, len(defs))
	copy(sorted, defs)
	sort.Slice(sorted, func(i, j int) bool {
		si := sorted[i].Def.Range.EndByte - sorted[i].Def.Range.StartByte
		sj := sorted[j].Def.Range.EndByte - sorted[j].Def.Range.StartByte
		if si != sj {
			return si < sj
		}
		return sorted[i].StructuralPath < sorted[j].StructuralPath
	})
	return sorted
}

// Relationships returns all relationships sorted by (source, target, type).
func (g *Graph) Relationships() []Relationship {
	out := make([]Relationship, 0, len(g.rels))
	for _, r := range g.rels {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		if a.TargetID != b.TargetID {
			return a.TargetID < b.TargetID
		}
		return a.Type < b.Type
	})
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// RelationshipCount returns the number of relationships.
func (g *Graph) RelationshipCount() int { return len(g.rels) }

// Finalize freezes the graph. Further mutation fails.
func (g *Graph) Finalize() { g.finalized = true }

// Finalized reports whether the graph has been handed to the caller.
func (g *Graph) Finalized() bool { return g.finalized }

// Validate checks structural invariants: every relationship endpoint
// resolves to a node, and every non-root node's parent chain reaches a node
// with no parent.
func (g *Graph) Validate() error {
	for key := range g.rels {
		if _, ok := g.nodes[key.source]; !ok {
			return fmt.Errorf("dangling relationship source %s", key.source)
		}
		if _, ok := g.nodes[key.target]; !ok {
			return fmt.Errorf("dangling relationship target %s", key.target)
		}
	}
	for _, n := range g.nodes {
		seen := 0
		for cur := n; cur.ParentID != ""; {
			parent := g.nodes[cur.ParentID]
			if parent == nil {
				return fmt.Errorf("node %s: parent %s not in graph", cur.Path, cur.ParentID)
			}
			cur = parent
			if seen++; seen > len(g.nodes) {
				return fmt.Errorf("node %s: parent cycle", n.Path)
			}
		}
	}
	return nil
}
