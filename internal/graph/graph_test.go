package graph

import "testing"

func testEnv() Environment {
	return Environment{Name: "main", Root: "/tmp/project"}
}

func addTestNode(t *testing.T, g *Graph, label Label, path, parentPath string, def *DefinitionPayload) *Node {
	t.Helper()
	n := &Node{
		Label:          label,
		Name:           path,
		Path:           path,
		StructuralPath: path,
		Env:            g.Env(),
		Def:            def,
	}
	if parentPath != "" {
		parent := g.NodeByPath(parentPath)
		if parent == nil {
			t.Fatalf("parent %q not in graph", parentPath)
		}
		n.ParentID = parent.HashedID()
		n.Level = parent.Level + 1
	}
	if err := g.AddNode(n); err != nil {
		t.Fatalf("AddNode(%s): %v", path, err)
	}
	return n
}

func TestAddNodeIdempotent(t *testing.T) {
	g := New(testEnv())
	first := addTestNode(t, g, LabelFolder, ".", "", nil)

	dup := &Node{Label: LabelFolder, Path: ".", StructuralPath: ".", Env: g.Env()}
	if err := g.AddNode(dup); err != nil {
		t.Fatalf("duplicate AddNode: %v", err)
	}
	if g.NodeCount() != 1 {
		t.Errorf("node count = %d, want 1", g.NodeCount())
	}
	if g.NodeByPath(".") != first {
		t.Error("duplicate insert replaced the original node")
	}
}

func TestAddRelationshipEndpoints(t *testing.T) {
	g := New(testEnv())
	root := addTestNode(t, g, LabelFolder, ".", "", nil)
	file := addTestNode(t, g, LabelFile, "a.go", ".", &DefinitionPayload{})

	rel := Relationship{SourceID: root.HashedID(), TargetID: file.HashedID(), Type: RelContains}
	if err := g.AddRelationship(rel); err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}
	// Duplicate triple merges silently.
	if err := g.AddRelationship(rel); err != nil {
		t.Fatalf("duplicate AddRelationship: %v", err)
	}
	if g.RelationshipCount() != 1 {
		t.Errorf("relationship count = %d, want 1", g.RelationshipCount())
	}

	bad := Relationship{SourceID: root.HashedID(), TargetID: "ffffffffffffffffffffffffffffffff", Type: RelCalls}
	if err := g.AddRelationship(bad); err == nil {
		t.Error("expected error for dangling target")
	}
}

func TestDefinitionsInFileInnermostFirst(t *testing.T) {
	g := New(testEnv())
	addTestNode(t, g, LabelFolder, ".", "", nil)
	addTestNode(t, g, LabelFile, "a.go", ".", &DefinitionPayload{Range: Range{StartByte: 0, EndByte: 500}})
	addTestNode(t, g, LabelFunction, "a.go:Outer", "a.go", &DefinitionPayload{Range: Range{StartByte: 10, EndByte: 400}})
	addTestNode(t, g, LabelFunction, "a.go:Outer.inner", "a.go:Outer", &DefinitionPayload{Range: Range{StartByte: 50, EndByte: 90}})

	defs := g.DefinitionsInFile("a.go")
	if len(defs) != 2 {
		t.Fatalf("definitions in file = %d, want 2 (file node excluded)", len(defs))
	}
	if defs[0].Path != "a.go:Outer.inner" {
		t.Errorf("first definition = %s, want the smallest range", defs[0].Path)
	}
}

func TestNodesSortedDeterministically(t *testing.T) {
	g := New(testEnv())
	addTestNode(t, g, LabelFolder, ".", "", nil)
	addTestNode(t, g, LabelFolder, "b", ".", nil)
	addTestNode(t, g, LabelFolder, "a", ".", nil)

	nodes := g.Nodes()
	for i := 1; i < len(nodes); i++ {
		if nodes[i-1].StructuralPath > nodes[i].StructuralPath {
			t.Fatalf("nodes out of order: %s before %s", nodes[i-1].StructuralPath, nodes[i].StructuralPath)
		}
	}
}

func TestFinalizeBlocksMutation(t *testing.T) {
	g := New(testEnv())
	addTestNode(t, g, LabelFolder, ".", "", nil)
	g.Finalize()

	n := &Node{Label: LabelFolder, Path: "late", StructuralPath: "late", Env: g.Env()}
	if err := g.AddNode(n); err == nil {
		t.Error("AddNode after Finalize should fail")
	}
	if err := g.AddRelationship(Relationship{}); err == nil {
		t.Error("AddRelationship after Finalize should fail")
	}
}

func TestValidate(t *testing.T) {
	g := New(testEnv())
	root := addTestNode(t, g, LabelFolder, ".", "", nil)
	addTestNode(t, g, LabelFile, "a.go", ".", &DefinitionPayload{})
	if err := g.Validate(); err != nil {
		t.Fatalf("valid graph: %v", err)
	}

	// An orphan pointing at a parent hash that is not in the graph.
	orphan := &Node{
		Label:          LabelFile,
		Path:           "b.go",
		StructuralPath: "b.go",
		ParentID:       HashID("main::missing"),
		Env:            g.Env(),
	}
	if err := g.AddNode(orphan); err != nil {
		t.Fatal(err)
	}
	if err := g.Validate(); err == nil {
		t.Error("expected parent-chain validation error")
	}
	_ = root
}
