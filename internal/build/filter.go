package build

import (
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// defaultIgnoreDirs are directory names always skipped during traversal.
var defaultIgnoreDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true, ".idea": true, ".vscode": true,
	".cache": true, ".mypy_cache": true, ".pytest_cache": true, ".ruff_cache": true,
	".tox": true, ".venv": true, ".yarn": true, "__pycache__": true,
	"bower_components": true, "build": true, "coverage": true, "dist": true,
	"node_modules": true, "target": true, "vendor": true, "venv": true,
}

// Filter decides whether files and folders are excluded from the build.
// Pure decisions over the skip sets; the optional .gitignore matcher is the
// only loaded state.
type Filter struct {
	skipExtensions map[string]bool
	skipNames      map[string]bool
	gitignore      *ignore.GitIgnore
}

// NewFilter builds a filter from extension and name skip sets, honoring the
// project root's .gitignore when present.
func NewFilter(root string, skipExtensions, skipNames []string) *Filter {
	f := &Filter{
		skipExtensions: make(map[string]bool, len(skipExtensions)),
		skipNames:      make(map[string]bool, len(skipNames)),
	}
	for _, ext := range skipExtensions {
		f.skipExtensions[ext] = true
	}
	for _, name := range skipNames {
		f.skipNames[name] = true
	}
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		f.gitignore = gi
	}
	return f
}

// SkipDir reports whether a directory should be pruned from the walk.
func (f *Filter) SkipDir(name, rel string) bool {
	if defaultIgnoreDirs[name] || f.skipNames[name] {
		return true
	}
	return f.gitignore != nil && f.gitignore.MatchesPath(rel+"/")
}

// SkipFile reports whether a file should be excluded.
func (f *Filter) SkipFile(name, rel string) bool {
	if f.skipNames[name] || f.skipExtensions[filepath.Ext(name)] {
		return true
	}
	return f.gitignore != nil && f.gitignore.MatchesPath(rel)
}
