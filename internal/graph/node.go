package graph

// Label identifies the kind of a graph node.
type Label string

const (
	LabelFolder   Label = "FOLDER"
	LabelFile     Label = "FILE"
	LabelClass    Label = "CLASS"
	LabelFunction Label = "FUNCTION"
	LabelDeleted  Label = "DELETED"
)

// Extra labels attached to nodes in diff mode.
const (
	ExtraAdded    = "ADDED"
	ExtraModified = "MODIFIED"
)

// RelationshipType identifies the kind of a directed edge.
type RelationshipType string

const (
	RelContains        RelationshipType = "CONTAINS"
	RelDefinesFunction RelationshipType = "DEFINES_FUNCTION"
	RelDefinesClass    RelationshipType = "DEFINES_CLASS"
	RelCalls           RelationshipType = "CALLS"
	RelImports         RelationshipType = "IMPORTS"
	RelInherits        RelationshipType = "INHERITS"
	RelUses            RelationshipType = "USES"
	RelModified        RelationshipType = "MODIFIED"
	RelDeleted         RelationshipType = "DELETED"
)

// Environment scopes node identity. Two builds with different environments
// never produce colliding ids.
type Environment struct {
	Name   string // logical environment name (e.g. "main")
	DiffID string // diff-identifier, distinguishes diff builds from base builds
	Root   string // absolute project root path
}

// Range is a definition's span in its source file.
// Lines are 1-based; byte offsets are 0-based.
type Range struct {
	StartByte uint
	EndByte   uint
	StartLine int
	EndLine   int
}

// Position is a point in a source file. Line is 1-based, Column is a
// 0-based byte offset within the line.
type Position struct {
	Line   int
	Column int
}

// DefinitionPayload holds the variant data carried only by FILE, CLASS and
// FUNCTION nodes. Folders and DELETED tombstones have none.
type DefinitionPayload struct {
	Range     Range
	Selection Position // position of the defining identifier
	RawText   string
	// BodyHandle is an opaque reference into the parsed syntax tree,
	// kept for later text substitution. The graph never dereferences it.
	BodyHandle any
	Language   string
}

// Node is a single entity in the code graph. Nodes are created once and are
// immutable afterwards except for ExtraLabels and ExtraAttrs, which the diff
// builder may attach.
type Node struct {
	Label Label
	Name  string
	// Path is the display path: relative file/folder path, with ":<scope>"
	// appended for in-file definitions.
	Path string
	// StructuralPath is the identity path, stable across rebuilds of
	// unchanged code. Equal to Path for the current layout.
	StructuralPath string
	Level          int
	// ParentID is the hashed id of the containing node; empty for the root.
	// It is a lookup key into the Graph, never an owning reference.
	ParentID string
	Env      Environment

	// Def is nil for FOLDER nodes and DELETED tombstones.
	Def *DefinitionPayload

	ExtraLabels []string
	ExtraAttrs  map[string]any
}

// ID returns the deterministic identifier: environment plus structural path.
func (n *Node) ID() string {
	return n.Env.NodeID(n.StructuralPath)
}

// HashedID returns the fixed-length external primary key for this node.
func (n *Node) HashedID() string {
	return HashID(n.ID())
}

// ContentHash returns the content hash of the node's raw text, or "" for
// nodes without a definition payload. Identity never depends on it.
func (n *Node) ContentHash() string {
	if n.Def == nil {
		return ""
	}
	return ContentHash(n.Def.RawText)
}

// FilePath returns the file portion of the node's display path, stripping
// any in-file scope suffix.
func (n *Node) FilePath() string { return fileOfPath(n.Path) }

// IsDefinition reports whether the node is a CLASS or FUNCTION definition.
func (n *Node) IsDefinition() bool {
	return n.Label == LabelClass || n.Label == LabelFunction
}

// HasExtraLabel reports whether a diff tag is attached to the node.
func (n *Node) HasExtraLabel(label string) bool {
	for _, l := range n.ExtraLabels {
		if l == label {
			return true
		}
	}
	return false
}

// AddExtraLabel attaches a diff tag, once.
func (n *Node) AddExtraLabel(label string) {
	if !n.HasExtraLabel(label) {
		n.ExtraLabels = append(n.ExtraLabels, label)
	}
}

// SetAttr records a free-form language-specific fact on the node.
func (n *Node) SetAttr(key string, value any) {
	if n.ExtraAttrs == nil {
		n.ExtraAttrs = make(map[string]any)
	}
	n.ExtraAttrs[key] = value
}

// Relationship is a typed, directed edge between two nodes, keyed by
// (source, target, type). ScopeText is the source snippet the
// classification was based on; it is diagnostic only.
type Relationship struct {
	SourceID  string
	TargetID  string
	Type      RelationshipType
	ScopeText string
}
