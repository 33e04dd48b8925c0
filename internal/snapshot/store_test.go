package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/codeatlas-dev/codeatlas/internal/build"
	"github.com/codeatlas-dev/codeatlas/internal/graph"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "atlas.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testObjects() ([]graph.NodeObject, []graph.RelationshipObject) {
	env := graph.Environment{Name: "main"}
	g := graph.New(env)
	root := &graph.Node{Label: graph.LabelFolder, Name: ".", Path: ".", StructuralPath: ".", Env: env}
	file := &graph.Node{
		Label: graph.LabelFile, Name: "a.py", Path: "a.py", StructuralPath: "a.py",
		Level: 1, ParentID: root.HashedID(), Env: env,
		Def: &graph.DefinitionPayload{RawText: "def f():\n    pass\n"},
	}
	_ = g.AddNode(root)
	_ = g.AddNode(file)
	_ = g.AddRelationship(graph.Relationship{
		SourceID: root.HashedID(), TargetID: file.HashedID(), Type: graph.RelContains,
	})
	return g.Objects()
}

func TestSaveIsReplacing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	nodes, rels := testObjects()

	if err := s.Save(ctx, nodes, rels); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// A second save must replace, not accumulate.
	if err := s.Save(ctx, nodes, rels); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	var nodeCount, relCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&nodeCount); err != nil {
		t.Fatal(err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM relationships").Scan(&relCount); err != nil {
		t.Fatal(err)
	}
	if nodeCount != len(nodes) || relCount != len(rels) {
		t.Errorf("stored %d nodes, %d relationships; want %d, %d", nodeCount, relCount, len(nodes), len(rels))
	}
}

func TestSaveRoundTripsAttributes(t *testing.T) {
	s := openTestStore(t)
	nodes, rels := testObjects()
	if err := s.Save(context.Background(), nodes, rels); err != nil {
		t.Fatal(err)
	}

	var raw string
	err := s.db.QueryRow("SELECT attributes FROM nodes WHERE type = 'FILE'").Scan(&raw)
	if err != nil {
		t.Fatal(err)
	}
	var attrs map[string]any
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		t.Fatalf("stored attributes not valid JSON: %v", err)
	}
	if attrs["path"] != "a.py" {
		t.Errorf("path attr = %v", attrs["path"])
	}
}

func TestStatesRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	in := []build.PreviousState{
		{StructuralPath: "a.py", HashedID: "11111111111111111111111111111111", ContentHash: "aaaaaaaaaaaaaaaa"},
		{StructuralPath: "a.py:f", HashedID: "22222222222222222222222222222222", ContentHash: "bbbbbbbbbbbbbbbb"},
	}
	if err := s.SaveStates(ctx, in); err != nil {
		t.Fatalf("SaveStates: %v", err)
	}

	out, err := s.LoadStates(ctx)
	if err != nil {
		t.Fatalf("LoadStates: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("loaded %d states, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("state %d = %+v, want %+v", i, out[i], in[i])
		}
	}

	// Replacement semantics.
	if err := s.SaveStates(ctx, in[:1]); err != nil {
		t.Fatal(err)
	}
	out, err = s.LoadStates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Errorf("after replace: %d states, want 1", len(out))
	}
}

func TestLoadStatesEmpty(t *testing.T) {
	s := openTestStore(t)
	out, err := s.LoadStates(context.Background())
	if err != nil {
		t.Fatalf("LoadStates: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("fresh store has %d states", len(out))
	}
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	nodes, rels := testObjects()
	sink := &JSONSink{W: &buf}
	if err := sink.Save(context.Background(), nodes, rels); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var doc struct {
		Nodes         []graph.NodeObject         `json:"nodes"`
		Relationships []graph.RelationshipObject `json:"relationships"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if len(doc.Nodes) != len(nodes) || len(doc.Relationships) != len(rels) {
		t.Errorf("document has %d nodes, %d relationships", len(doc.Nodes), len(doc.Relationships))
	}
}
