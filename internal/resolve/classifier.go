package resolve

import (
	"strings"

	"github.com/codeatlas-dev/codeatlas/internal/extract"
	"github.com/codeatlas-dev/codeatlas/internal/graph"
	"github.com/codeatlas-dev/codeatlas/internal/lang"
)

// Classifier turns raw references into typed relationships using the graph
// and the parse results kept from the hierarchy phase.
type Classifier struct {
	Graph *graph.Graph
	// ASTs maps file rel paths to their extraction results.
	ASTs map[string]*extract.Result
}

// Classify resolves one raw reference against the original definition.
// Returns false when the reference falls outside any tracked definition;
// such references are discarded.
//
// The referencing scope is the innermost definition whose range contains
// the reference position; when scopes overlap (a one-line function inside
// another), the smallest range wins. The emitted relationship points from
// the referencing scope to the original definition.
func (c *Classifier) Classify(def *graph.Node, ref RawReference) (graph.Relationship, bool) {
	res := c.ASTs[ref.RelPath]
	if res == nil {
		return graph.Relationship{}, false
	}

	offset, ok := byteOffset(res.Source, ref.Line, ref.Column)
	if !ok {
		return graph.Relationship{}, false
	}

	scope := c.enclosingScope(ref.RelPath, offset)
	if scope == nil {
		return graph.Relationship{}, false
	}

	relType := graph.RelUses
	spec := lang.ForLanguage(res.Language)
	if spec != nil {
		if t, matched := spec.ClassifyReference(def, ancestryKinds(res, offset)); matched {
			relType = t
		}
	}

	return graph.Relationship{
		SourceID:  scope.HashedID(),
		TargetID:  def.HashedID(),
		Type:      relType,
		ScopeText: lineText(res.Source, ref.Line),
	}, true
}

// enclosingScope returns the innermost definition node containing the byte
// offset. DefinitionsInFile is sorted by range size ascending, so the first
// hit is the most specific scope.
func (c *Classifier) enclosingScope(relPath string, offset uint) *graph.Node {
	for _, n := range c.Graph.DefinitionsInFile(relPath) {
		r := n.Def.Range
		if r.StartByte <= offset && offset < r.EndByte {
			return n
		}
	}
	return nil
}

// ancestryKinds collects AST node kinds from the reference token outwards.
func ancestryKinds(res *extract.Result, offset uint) []string {
	node := res.Tree.RootNode().NamedDescendantForByteRange(offset, offset)
	var kinds []string
	for n := node; n != nil; n = n.Parent() {
		kinds = append(kinds, n.Kind())
	}
	return kinds
}

// byteOffset converts a 1-based line and 0-based column into a byte offset.
func byteOffset(source []byte, line, column int) (uint, bool) {
	if line < 1 {
		return 0, false
	}
	offset := 0
	for l := 1; l < line; l++ {
		next := indexByteFrom(source, offset, '\n')
		if next < 0 {
			return 0, false
		}
		offset = next + 1
	}
	offset += column
	if offset > len(source) {
		return 0, false
	}
	return uint(offset), true
}

func indexByteFrom(b []byte, from int, c byte) int {
	for i := from; i < len(b); i++ {
		if b[i] == c {
			return i
		}
	}
	return -1
}

// lineText returns the trimmed source line, for the relationship's
// diagnostic scope text.
func lineText(source []byte, line int) string {
	start, ok := byteOffset(source, line, 0)
	if !ok {
		return ""
	}
	end := indexByteFrom(source, int(start), '\n')
	if end < 0 {
		end = len(source)
	}
	return strings.TrimSpace(string(source[start:end]))
}
