package graph

import "context"

// NodeObject is the serialized form of a node, as consumed by the external
// graph-database sink.
type NodeObject struct {
	Type        string         `json:"type"`
	ExtraLabels []string       `json:"extra_labels"`
	Attributes  map[string]any `json:"attributes"`
}

// RelationshipObject is the serialized form of a relationship.
type RelationshipObject struct {
	SourceID  string `json:"sourceId"`
	TargetID  string `json:"targetId"`
	Type      string `json:"type"`
	ScopeText string `json:"scopeText"`
}

// Sink receives a finished graph. The engine knows nothing about the
// sink's storage format.
type Sink interface {
	Save(ctx context.Context, nodes []NodeObject, relationships []RelationshipObject) error
}

// Object serializes a single node.
func (n *Node) Object() NodeObject {
	hid := n.HashedID()
	attrs := map[string]any{
		"label":           string(n.Label),
		"path":            n.Path,
		"node_id":         hid,
		"node_path":       n.StructuralPath,
		"name":            n.Name,
		"level":           n.Level,
		"hashed_id":       hid,
		"diff_identifier": n.Env.DiffID,
	}
	if n.Def != nil {
		attrs["start_line"] = n.Def.Range.StartLine
		attrs["end_line"] = n.Def.Range.EndLine
		attrs["text"] = n.Def.RawText
	}
	for k, v := range n.ExtraAttrs {
		attrs[k] = v
	}
	extra := n.ExtraLabels
	if extra == nil {
		extra = []string{}
	}
	return NodeObject{
		Type:        string(n.Label),
		ExtraLabels: extra,
		Attributes:  attrs,
	}
}

// Objects serializes the whole graph for the sink.
func (g *Graph) Objects() ([]NodeObject, []RelationshipObject) {
	nodes := make([]NodeObject, 0, len(g.nodes))
	for _, n := range g.Nodes() {
		nodes = append(nodes, n.Object())
	}
	rels := make([]RelationshipObject, 0, len(g.rels))
	for _, r := range g.Relationships() {
		rels = append(rels, RelationshipObject{
			SourceID:  r.SourceID,
			TargetID:  r.TargetID,
			Type:      string(r.Type),
			ScopeText: r.ScopeText,
		})
	}
	return nodes, rels
}
