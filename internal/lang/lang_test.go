package lang

import (
	"testing"

	"github.com/codeatlas-dev/codeatlas/internal/graph"
)

func TestForExtension(t *testing.T) {
	tests := []struct {
		ext  string
		lang Language
	}{
		{".go", Go},
		{".py", Python},
		{".js", JavaScript},
		{".mjs", JavaScript},
		{".ts", TypeScript},
		{".tsx", TSX},
		{".java", Java},
		{".rs", Rust},
		{".rb", Ruby},
	}
	for _, tt := range tests {
		spec := ForExtension(tt.ext)
		if spec == nil {
			t.Errorf("ForExtension(%q) = nil, want %s", tt.ext, tt.lang)
			continue
		}
		if spec.Language != tt.lang {
			t.Errorf("ForExtension(%q).Language = %s, want %s", tt.ext, spec.Language, tt.lang)
		}
	}
}

func TestForLanguage(t *testing.T) {
	for _, l := range AllLanguages() {
		spec := ForLanguage(l)
		if spec == nil {
			t.Errorf("ForLanguage(%s) = nil", l)
			continue
		}
		if spec.DefinitionQuery == "" {
			t.Errorf("%s: empty definition query", l)
		}
		if spec.LSPLanguageID == "" {
			t.Errorf("%s: empty LSP language id", l)
		}
		if len(spec.ServerCommand) == 0 {
			t.Errorf("%s: empty server command", l)
		}
	}
}

func TestUnknownExtension(t *testing.T) {
	if spec := ForExtension(".xyz"); spec != nil {
		t.Errorf("ForExtension(.xyz) should be nil, got %v", spec)
	}
	if _, ok := LanguageForExtension(".xyz"); ok {
		t.Error("LanguageForExtension(.xyz) should report false")
	}
}

func TestClassifyReference(t *testing.T) {
	classDef := &graph.Node{Label: graph.LabelClass}
	funcDef := &graph.Node{Label: graph.LabelFunction}

	tests := []struct {
		name    string
		lang    Language
		def     *graph.Node
		kinds   []string // innermost first
		want    graph.RelationshipType
		matched bool
	}{
		{
			name:    "go call",
			lang:    Go,
			def:     funcDef,
			kinds:   []string{"identifier", "call_expression", "block", "function_declaration"},
			want:    graph.RelCalls,
			matched: true,
		},
		{
			name:    "go import",
			lang:    Go,
			def:     funcDef,
			kinds:   []string{"interpreted_string_literal", "import_spec", "import_declaration"},
			want:    graph.RelImports,
			matched: true,
		},
		{
			name:    "go bare identifier falls through",
			lang:    Go,
			def:     funcDef,
			kinds:   []string{"identifier", "expression_statement", "block"},
			matched: false,
		},
		{
			name:    "python call",
			lang:    Python,
			def:     funcDef,
			kinds:   []string{"identifier", "call", "expression_statement"},
			want:    graph.RelCalls,
			matched: true,
		},
		{
			name: "python class bases",
			lang: Python,
			def:  classDef,
			// Bases are an argument_list directly under class_definition,
			// which must not be mistaken for a call's argument_list.
			kinds:   []string{"identifier", "argument_list", "class_definition"},
			want:    graph.RelInherits,
			matched: true,
		},
		{
			name:    "python call argument is a call, not inheritance",
			lang:    Python,
			def:     funcDef,
			kinds:   []string{"identifier", "argument_list", "call", "expression_statement"},
			want:    graph.RelCalls,
			matched: true,
		},
		{
			name: "python inherit position on a function target rejects",
			lang: Python,
			def:  funcDef,
			// Only classes can be inherited from.
			kinds:   []string{"identifier", "argument_list", "class_definition"},
			matched: false,
		},
		{
			name:    "java extends",
			lang:    Java,
			def:     classDef,
			kinds:   []string{"type_identifier", "superclass", "class_declaration"},
			want:    graph.RelInherits,
			matched: true,
		},
		{
			name:    "rust impl trait",
			lang:    Rust,
			def:     classDef,
			kinds:   []string{"type_identifier", "impl_item", "source_file"},
			want:    graph.RelInherits,
			matched: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := ForLanguage(tt.lang)
			if spec == nil {
				t.Fatalf("no spec for %s", tt.lang)
			}
			got, matched := spec.ClassifyReference(tt.def, tt.kinds)
			if matched != tt.matched {
				t.Fatalf("matched = %v, want %v", matched, tt.matched)
			}
			if matched && got != tt.want {
				t.Errorf("type = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGoSpec(t *testing.T) {
	spec := ForLanguage(Go)
	if spec == nil {
		t.Fatal("Go spec not registered")
	}
	calls := toSet(spec.CallNodeTypes)
	if !calls["call_expression"] {
		t.Errorf("Go CallNodeTypes missing call_expression: %v", spec.CallNodeTypes)
	}
	if spec.LSPLanguageID != "go" {
		t.Errorf("Go LSPLanguageID = %q, want go", spec.LSPLanguageID)
	}
}

func TestTSXSharesTypeScriptQuery(t *testing.T) {
	ts, tsx := ForLanguage(TypeScript), ForLanguage(TSX)
	if ts == nil || tsx == nil {
		t.Fatal("typescript specs not registered")
	}
	if ts.DefinitionQuery != tsx.DefinitionQuery {
		t.Error("TSX should share the TypeScript definition query")
	}
	if tsx.LSPLanguageID != "typescriptreact" {
		t.Errorf("TSX LSPLanguageID = %q, want typescriptreact", tsx.LSPLanguageID)
	}
}
