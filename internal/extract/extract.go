// Package extract turns one file's source text into definition descriptors
// by running its language's declarative tree-sitter query.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeatlas-dev/codeatlas/internal/graph"
	"github.com/codeatlas-dev/codeatlas/internal/lang"
	"github.com/codeatlas-dev/codeatlas/internal/parser"
)

// ErrUnsupportedExtension is returned when no language is registered for a
// file's extension. Non-fatal: callers record an opaque FILE node instead.
var ErrUnsupportedExtension = errors.New("unsupported file extension")

// Kind distinguishes class-like from function-like definitions.
type Kind string

const (
	KindClass    Kind = "class"
	KindFunction Kind = "function"
)

// Definition describes one syntactic definition found in a file.
type Definition struct {
	Kind      Kind
	Name      string
	Range     graph.Range
	Selection graph.Position // position of the defining identifier
	// Level is the nesting depth within the file: 0 for top-level.
	Level int
	// Parent is the index of the enclosing definition in the result slice,
	// or -1 when the file itself is the enclosing scope.
	Parent int
	// Node is the definition's AST node in the parsed tree.
	Node    *tree_sitter.Node
	RawText string
}

// Result is one file's extraction output. The caller owns the tree and must
// Close it when the build no longer needs reference classification.
type Result struct {
	Language    lang.Language
	Tree        *tree_sitter.Tree
	Source      []byte
	Definitions []Definition
}

// Close releases the parsed tree.
func (r *Result) Close() {
	if r.Tree != nil {
		r.Tree.Close()
	}
}

// Extract parses a file and returns its definitions with nesting resolved.
// Returns ErrUnsupportedExtension when the extension has no registered
// language.
func Extract(relPath string, source []byte) (*Result, error) {
	ext := filepath.Ext(relPath)
	spec := lang.ForExtension(ext)
	if spec == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
	}

	tree, err := parser.Parse(spec.Language, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", relPath, err)
	}

	res := &Result{Language: spec.Language, Tree: tree, Source: source}
	defs, err := runQuery(spec.Language, tree.RootNode(), source)
	if err != nil {
		tree.Close()
		return nil, err
	}
	res.Definitions = resolveNesting(defs)
	return res, nil
}

// Within re-runs the language's query against an already-parsed definition
// node and returns the definitions strictly inside it. No re-parse happens;
// the cursor visits only the sub-tree.
func Within(res *Result, def *Definition) ([]Definition, error) {
	defs, err := runQuery(res.Language, def.Node, res.Source)
	if err != nil {
		return nil, err
	}
	inner := defs[:0]
	for _, d := range defs {
		if d.Range.StartByte > def.Range.StartByte && d.Range.EndByte <= def.Range.EndByte {
			inner = append(inner, d)
		}
	}
	return resolveNesting(inner), nil
}

// runQuery executes the compiled definition query over a node and collects
// raw (un-nested) definitions.
func runQuery(l lang.Language, root *tree_sitter.Node, source []byte) ([]Definition, error) {
	query, err := parser.DefinitionQuery(l)
	if err != nil {
		return nil, err
	}

	nameIndex, kinds := captureIndices(query)

	cursor := tree_sitter.NewQueryCursor()
	defer cursor.Close()

	var defs []Definition
	seen := make(map[uint]bool) // dedupe by definition node start byte

	matches := cursor.Matches(query, root, source)
	for match := matches.Next(); match != nil; match = matches.Next() {
		var name string
		var sel graph.Position
		var defNode *tree_sitter.Node
		var kind Kind

		for _, capture := range match.Captures {
			if int(capture.Index) == nameIndex {
				node := capture.Node
				name = node.Utf8Text(source)
				sel = graph.Position{
					Line:   int(node.StartPosition().Row) + 1,
					Column: int(node.StartPosition().Column),
				}
			}
			if k, ok := kinds[capture.Index]; ok {
				node := capture.Node
				defNode = &node
				kind = k
			}
		}

		if name == "" || defNode == nil || seen[defNode.StartByte()] {
			continue
		}
		seen[defNode.StartByte()] = true

		defs = append(defs, Definition{
			Kind:      kind,
			Name:      name,
			Selection: sel,
			Range: graph.Range{
				StartByte: defNode.StartByte(),
				EndByte:   defNode.EndByte(),
				StartLine: int(defNode.StartPosition().Row) + 1,
				EndLine:   int(defNode.EndPosition().Row) + 1,
			},
			Parent:  -1,
			Node:    defNode,
			RawText: parser.NodeText(defNode, source),
		})
	}
	return defs, nil
}

// captureIndices maps the query's capture names to the @name index and the
// @definition.* kind per capture index.
func captureIndices(query *tree_sitter.Query) (nameIndex int, kinds map[uint32]Kind) {
	nameIndex = -1
	kinds = make(map[uint32]Kind)
	for i, captureName := range query.CaptureNames() {
		switch {
		case captureName == "name":
			nameIndex = i
		case strings.HasPrefix(captureName, "definition."):
			switch strings.TrimPrefix(captureName, "definition.") {
			case "class":
				kinds[uint32(i)] = KindClass
			case "function":
				kinds[uint32(i)] = KindFunction
			}
		}
	}
	return nameIndex, kinds
}

// resolveNesting orders definitions by position and assigns Level and
// Parent by byte-range containment.
func resolveNesting(defs []Definition) []Definition {
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Range.StartByte != defs[j].Range.StartByte {
			return defs[i].Range.StartByte < defs[j].Range.StartByte
		}
		return defs[i].Range.EndByte > defs[j].Range.EndByte
	})

	var stack []int // indices of currently open enclosing definitions
	for i := range defs {
		for len(stack) > 0 && defs[stack[len(stack)-1]].Range.EndByte <= defs[i].Range.StartByte {
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 {
			defs[i].Parent = stack[len(stack)-1]
		} else {
			defs[i].Parent = -1
		}
		defs[i].Level = len(stack)
		stack = append(stack, i)
	}
	return defs
}

// ScopePath returns the dotted in-file scope path of a definition, e.g.
// "Outer.Inner" for a method Inner of class Outer.
func ScopePath(defs []Definition, i int) string {
	parts := []string{defs[i].Name}
	for p := defs[i].Parent; p >= 0; p = defs[p].Parent {
		parts = append([]string{defs[p].Name}, parts...)
	}
	return strings.Join(parts, ".")
}
