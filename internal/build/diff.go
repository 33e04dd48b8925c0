package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/codeatlas-dev/codeatlas/internal/graph"
)

// ErrMalformedPreviousState marks a previous-state entry that cannot be
// used for reconciliation. Malformed entries are skipped, not fatal.
var ErrMalformedPreviousState = errors.New("malformed previous state")

// PreviousState is one node's identity snapshot from an earlier build.
// Enough to decide added/modified/deleted without the earlier graph.
type PreviousState struct {
	StructuralPath string `json:"structural_path"`
	HashedID       string `json:"hashed_id"`
	ContentHash    string `json:"content_hash"`
}

// States extracts the previous-state records from a built graph, one per
// FILE, CLASS and FUNCTION node. Folder nodes carry no content and are
// reconstructed from paths on the next build.
func States(g *graph.Graph) []PreviousState {
	var out []PreviousState
	for _, n := range g.Nodes() {
		if n.Def == nil {
			continue
		}
		out = append(out, PreviousState{
			StructuralPath: n.StructuralPath,
			HashedID:       n.HashedID(),
			ContentHash:    n.ContentHash(),
		})
	}
	return out
}

// DiffBuilder builds a graph for a changed tree and reconciles it against
// the previous build's states, tagging nodes ADDED or MODIFIED and planting
// DELETED tombstones for nodes that disappeared.
type DiffBuilder struct {
	inner    *Builder
	previous []PreviousState
}

// NewDiffBuilder wraps a fresh build with diff reconciliation. The
// environment's DiffID must be set so diff nodes never collide with the
// base build's ids.
func NewDiffBuilder(root string, opts Options, previous []PreviousState) *DiffBuilder {
	if opts.Environment.DiffID == "" {
		opts.Environment.DiffID = "diff"
	}
	return &DiffBuilder{inner: NewBuilder(root, opts), previous: previous}
}

// Warnings returns non-fatal problems from the build and reconciliation.
func (d *DiffBuilder) Warnings() []string { return d.inner.Warnings() }

// Build runs the full pipeline and then reconciles against the previous
// states. Reconciliation happens before finalization so tombstones and
// their edges land in the same graph.
func (d *DiffBuilder) Build(ctx context.Context) (*graph.Graph, error) {
	if err := d.inner.buildHierarchy(ctx); err != nil {
		return nil, err
	}
	if err := d.inner.resolveReferences(ctx); err != nil {
		d.inner.discard()
		return nil, err
	}
	if err := d.reconcile(); err != nil {
		d.inner.discard()
		return nil, err
	}
	return d.inner.finalize()
}

// reconcile walks the previous states against the freshly built graph.
// Matching is by structural path; a node keeps exactly one of the three
// diff states: ADDED (no previous entry), MODIFIED (content hash moved),
// or unchanged.
func (d *DiffBuilder) reconcile() error {
	g := d.inner.g
	prevByPath := make(map[string]PreviousState, len(d.previous))
	for _, st := range d.previous {
		if err := validateState(st); err != nil {
			d.inner.warn(err.Error())
			slog.Warn("diff.state.skip", "path", st.StructuralPath, "err", err)
			continue
		}
		prevByPath[st.StructuralPath] = st
	}

	var added, modified, deleted int
	for _, n := range g.Nodes() {
		if n.Def == nil {
			continue
		}
		prev, ok := prevByPath[n.StructuralPath]
		if !ok {
			n.AddExtraLabel(graph.ExtraAdded)
			added++
			continue
		}
		delete(prevByPath, n.StructuralPath)
		if prev.ContentHash != n.ContentHash() {
			n.AddExtraLabel(graph.ExtraModified)
			if err := g.AddRelationship(graph.Relationship{
				SourceID: n.ParentID,
				TargetID: n.HashedID(),
				Type:     graph.RelModified,
			}); err != nil {
				return err
			}
			modified++
		}
	}

	// Whatever survives in prevByPath no longer exists in the tree.
	// Ancestors are planted first so a deleted nested definition hangs off
	// its enclosing definition's tombstone, not a farther ancestor.
	leftover := make([]PreviousState, 0, len(prevByPath))
	for _, st := range prevByPath {
		leftover = append(leftover, st)
	}
	sort.Slice(leftover, func(i, j int) bool {
		return leftover[i].StructuralPath < leftover[j].StructuralPath
	})
	for _, st := range leftover {
		if err := d.addTombstone(st); err != nil {
			return err
		}
		deleted++
	}

	slog.Info("diff.reconciled", "added", added, "modified", modified, "deleted", deleted)
	return nil
}

// addTombstone plants a DELETED node for a vanished structural path and
// links it from the nearest surviving ancestor.
func (d *DiffBuilder) addTombstone(st PreviousState) error {
	g := d.inner.g
	parent := d.nearestAncestor(st.StructuralPath)
	if parent == nil {
		return fmt.Errorf("tombstone %s: no surviving ancestor", st.StructuralPath)
	}

	node := &graph.Node{
		Label:          graph.LabelDeleted,
		Name:           lastSegment(st.StructuralPath),
		Path:           st.StructuralPath,
		StructuralPath: st.StructuralPath,
		Level:          parent.Level + 1,
		ParentID:       parent.HashedID(),
		Env:            g.Env(),
	}
	node.SetAttr("previous_hashed_id", st.HashedID)
	if err := g.AddNode(node); err != nil {
		return err
	}
	return g.AddRelationship(graph.Relationship{
		SourceID: parent.HashedID(),
		TargetID: node.HashedID(),
		Type:     graph.RelDeleted,
	})
}

// nearestAncestor walks up the structural path until it hits a node that
// exists in the current graph. The root folder always exists.
func (d *DiffBuilder) nearestAncestor(path string) *graph.Node {
	for p := parentPath(path); ; p = parentPath(p) {
		if n := d.inner.g.NodeByPath(p); n != nil {
			return n
		}
		if p == "." {
			return nil
		}
	}
}

// parentPath strips one trailing segment: scope before file, file before
// folder, folder before root.
func parentPath(path string) string {
	if i := strings.LastIndex(path, ":"); i >= 0 {
		scope := path[i+1:]
		if j := strings.LastIndex(scope, "."); j >= 0 {
			return path[:i+1] + scope[:j]
		}
		return path[:i]
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i]
	}
	return "."
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, ":"); i >= 0 {
		scope := path[i+1:]
		if j := strings.LastIndex(scope, "."); j >= 0 {
			return scope[j+1:]
		}
		return scope
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func validateState(st PreviousState) error {
	if st.StructuralPath == "" {
		return fmt.Errorf("%w: empty structural path", ErrMalformedPreviousState)
	}
	if len(st.HashedID) != 32 {
		return fmt.Errorf("%w: %s: hashed id %q", ErrMalformedPreviousState, st.StructuralPath, st.HashedID)
	}
	return nil
}
