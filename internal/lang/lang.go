package lang

import (
	"strings"

	"github.com/codeatlas-dev/codeatlas/internal/graph"
)

// Language represents a supported programming language.
type Language string

const (
	Go         Language = "go"
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
	Java       Language = "java"
	Rust       Language = "rust"
	Ruby       Language = "ruby"
)

// AllLanguages returns all supported languages.
func AllLanguages() []Language {
	return []Language{Go, Python, JavaScript, TypeScript, TSX, Java, Rust, Ruby}
}

// Spec defines one language: the tree-sitter query that finds its
// definitions, the AST node kinds that classify references, and the
// language-intelligence backend that serves it.
type Spec struct {
	Language       Language
	FileExtensions []string

	// DefinitionQuery is a tree-sitter query whose captures are @name (the
	// defining identifier) and @definition.function / @definition.class
	// (the whole definition node).
	DefinitionQuery string

	// CallNodeTypes lists AST node kinds that make a reference a CALLS.
	CallNodeTypes []string
	// ImportNodeTypes lists AST node kinds that make a reference an IMPORTS.
	ImportNodeTypes []string
	// InheritNodeTypes lists AST node kinds that make a reference an
	// INHERITS. An entry may be a plain kind, or "parent/child" to require
	// a specific direct parent (e.g. Python bases are an argument_list
	// directly under class_definition).
	InheritNodeTypes []string

	// LSPLanguageID is the languageId sent in didOpen notifications.
	LSPLanguageID string
	// ServerCommand launches the language server, argv style.
	ServerCommand []string
}

// ClassifyReference maps the AST node-kind ancestry at a reference site to
// a relationship type. kinds is ordered innermost first, starting at the
// referencing token itself. Returns false when no rule matches; the caller
// then defaults to USES.
func (s *Spec) ClassifyReference(def *graph.Node, kinds []string) (graph.RelationshipType, bool) {
	imports := toSet(s.ImportNodeTypes)
	calls := toSet(s.CallNodeTypes)
	for i, kind := range kinds {
		if imports[kind] {
			return graph.RelImports, true
		}
		if s.matchInherit(kinds, i) {
			if def.Label == graph.LabelClass {
				return graph.RelInherits, true
			}
			return "", false
		}
		if calls[kind] {
			return graph.RelCalls, true
		}
	}
	return "", false
}

func (s *Spec) matchInherit(kinds []string, i int) bool {
	for _, entry := range s.InheritNodeTypes {
		if parent, child, ok := strings.Cut(entry, "/"); ok {
			if kinds[i] == child && i+1 < len(kinds) && kinds[i+1] == parent {
				return true
			}
			continue
		}
		if kinds[i] == entry {
			return true
		}
	}
	return false
}

// registry maps file extensions to language specs.
var registry = map[string]*Spec{}

// Register adds a Spec to the global registry.
func Register(spec *Spec) {
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the Spec for a file extension (e.g. ".go"),
// or nil when the extension is not registered.
func ForExtension(ext string) *Spec {
	return registry[ext]
}

// ForLanguage returns the Spec for a language.
func ForLanguage(lang Language) *Spec {
	for _, spec := range registry {
		if spec.Language == lang {
			return spec
		}
	}
	return nil
}

// LanguageForExtension returns the Language for a file extension.
func LanguageForExtension(ext string) (Language, bool) {
	spec := registry[ext]
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}
