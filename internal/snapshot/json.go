package snapshot

import (
	"context"
	"encoding/json"
	"io"

	"github.com/codeatlas-dev/codeatlas/internal/graph"
)

// JSONSink streams the serialized graph to a writer as a single document.
type JSONSink struct {
	W io.Writer
}

var _ graph.Sink = (*JSONSink)(nil)

type jsonDocument struct {
	Nodes         []graph.NodeObject         `json:"nodes"`
	Relationships []graph.RelationshipObject `json:"relationships"`
}

// Save writes the graph as pretty-printed JSON.
func (s *JSONSink) Save(_ context.Context, nodes []graph.NodeObject, relationships []graph.RelationshipObject) error {
	enc := json.NewEncoder(s.W)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonDocument{Nodes: nodes, Relationships: relationships})
}
