package build

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/codeatlas-dev/codeatlas/internal/extract"
	"github.com/codeatlas-dev/codeatlas/internal/graph"
)

// fileEntry is one discovered source file.
type fileEntry struct {
	AbsPath string
	RelPath string
}

// parsedFile is the output of one file's parallel parse stage.
type parsedFile struct {
	Entry       fileEntry
	Result      *extract.Result // nil when the file is opaque
	Source      []byte
	Unsupported bool
	Err         error
}

// buildHierarchy walks the project tree and populates the graph with
// FOLDER, FILE, CLASS and FUNCTION nodes plus CONTAINS and DEFINES_*
// relationships. File parsing is parallel and pure; graph insertion is a
// single sequential stage so the indices see one writer.
// Returns the per-file parse results for the relationship phase.
func buildHierarchy(ctx context.Context, root string, env graph.Environment, filter *Filter, workers int) (*graph.Graph, map[string]*extract.Result, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, err
	}
	if info, statErr := os.Stat(root); statErr != nil || !info.IsDir() {
		return nil, nil, fmt.Errorf("project root %s: not a readable directory", root)
	}

	g := graph.New(env)

	rootNode := &graph.Node{
		Label:          graph.LabelFolder,
		Name:           filepath.Base(root),
		Path:           ".",
		StructuralPath: ".",
		Level:          0,
		Env:            env,
	}
	if err := g.AddNode(rootNode); err != nil {
		return nil, nil, err
	}

	var files []fileEntry
	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return filepath.SkipDir
		}
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if info.IsDir() {
			if filter.SkipDir(info.Name(), rel) {
				return filepath.SkipDir
			}
			return addFolder(g, env, rel)
		}

		if filter.SkipFile(info.Name(), rel) {
			return nil
		}
		files = append(files, fileEntry{AbsPath: path, RelPath: rel})
		return nil
	})
	if walkErr != nil {
		return nil, nil, walkErr
	}

	slog.Info("hierarchy.discovered", "files", len(files))

	// Stage 1: parallel pure parsing, bounded by the worker pool.
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(files) && len(files) > 0 {
		workers = len(files)
	}
	results := make([]*parsedFile, len(files))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, entry := range files {
		eg.Go(func() error {
			if egCtx.Err() != nil {
				return egCtx.Err()
			}
			results[i] = parseFile(entry)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		closeResults(results)
		return nil, nil, err
	}

	// Stage 2: sequential graph insertion.
	asts := make(map[string]*extract.Result)
	for _, pf := range results {
		if pf == nil {
			continue
		}
		if pf.Err != nil && !pf.Unsupported {
			slog.Warn("hierarchy.file.err", "path", pf.Entry.RelPath, "err", pf.Err)
		}
		if err := insertFile(g, env, pf); err != nil {
			closeResults(results)
			return nil, nil, err
		}
		if pf.Result != nil {
			asts[pf.Entry.RelPath] = pf.Result
		}
	}
	return g, asts, nil
}

func closeResults(results []*parsedFile) {
	for _, pf := range results {
		if pf != nil && pf.Result != nil {
			pf.Result.Close()
		}
	}
}

// parseFile reads and extracts one file. Pure: no shared state.
func parseFile(entry fileEntry) *parsedFile {
	pf := &parsedFile{Entry: entry}

	source, err := os.ReadFile(entry.AbsPath)
	if err != nil {
		pf.Err = err
		pf.Unsupported = true // degrade to an opaque node
		return pf
	}
	pf.Source = bytes.TrimPrefix(source, []byte{0xEF, 0xBB, 0xBF}) // strip UTF-8 BOM

	res, err := extract.Extract(entry.RelPath, pf.Source)
	if err != nil {
		pf.Err = err
		pf.Unsupported = true
		return pf
	}
	pf.Result = res
	return pf
}

// addFolder creates a FOLDER node and its CONTAINS edge.
func addFolder(g *graph.Graph, env graph.Environment, rel string) error {
	node := &graph.Node{
		Label:          graph.LabelFolder,
		Name:           filepath.Base(rel),
		Path:           rel,
		StructuralPath: rel,
		Level:          pathDepth(rel),
		ParentID:       parentFolderID(env, rel),
		Env:            env,
	}
	if err := g.AddNode(node); err != nil {
		return err
	}
	return g.AddRelationship(graph.Relationship{
		SourceID: node.ParentID,
		TargetID: node.HashedID(),
		Type:     graph.RelContains,
	})
}

// insertFile creates the FILE node and, for supported files, the CLASS and
// FUNCTION nodes with their DEFINES_* and CONTAINS relationships.
func insertFile(g *graph.Graph, env graph.Environment, pf *parsedFile) error {
	rel := pf.Entry.RelPath
	level := pathDepth(rel)

	fileNode := &graph.Node{
		Label:          graph.LabelFile,
		Name:           filepath.Base(rel),
		Path:           rel,
		StructuralPath: rel,
		Level:          level,
		ParentID:       parentFolderID(env, rel),
		Env:            env,
		Def: &graph.DefinitionPayload{
			Range: graph.Range{
				StartByte: 0,
				EndByte:   uint(len(pf.Source)),
				StartLine: 1,
				EndLine:   lineCount(pf.Source),
			},
			RawText: string(pf.Source),
		},
	}
	if pf.Result != nil {
		fileNode.Def.Language = string(pf.Result.Language)
	}
	if err := g.AddNode(fileNode); err != nil {
		return err
	}
	if err := g.AddRelationship(graph.Relationship{
		SourceID: fileNode.ParentID,
		TargetID: fileNode.HashedID(),
		Type:     graph.RelContains,
	}); err != nil {
		return err
	}

	if pf.Result == nil {
		return nil // opaque FILE node, no children
	}

	defs := pf.Result.Definitions
	nodes := make([]*graph.Node, len(defs))
	for i := range defs {
		d := &defs[i]
		label := graph.LabelFunction
		defines := graph.RelDefinesFunction
		if d.Kind == extract.KindClass {
			label = graph.LabelClass
			defines = graph.RelDefinesClass
		}

		parent := fileNode
		if d.Parent >= 0 {
			parent = nodes[d.Parent]
		}

		node := &graph.Node{
			Label:          label,
			Name:           d.Name,
			Path:           rel + ":" + extract.ScopePath(defs, i),
			StructuralPath: rel + ":" + extract.ScopePath(defs, i),
			Level:          parent.Level + 1,
			ParentID:       parent.HashedID(),
			Env:            env,
			Def: &graph.DefinitionPayload{
				Range:      d.Range,
				Selection:  d.Selection,
				RawText:    d.RawText,
				BodyHandle: d.Node,
				Language:   string(pf.Result.Language),
			},
		}
		nodes[i] = node
		if err := g.AddNode(node); err != nil {
			return err
		}
		if err := g.AddRelationship(graph.Relationship{
			SourceID: parent.HashedID(),
			TargetID: node.HashedID(),
			Type:     defines,
		}); err != nil {
			return err
		}
		// CONTAINS mirrors DEFINES_* for display traversal.
		if err := g.AddRelationship(graph.Relationship{
			SourceID: parent.HashedID(),
			TargetID: node.HashedID(),
			Type:     graph.RelContains,
		}); err != nil {
			return err
		}
	}

	if classCount, funcCount := countKinds(defs); classCount+funcCount > 0 {
		fileNode.SetAttr("class_count", classCount)
		fileNode.SetAttr("function_count", funcCount)
	}
	for i := range defs {
		if defs[i].Kind != extract.KindClass {
			continue
		}
		methods := 0
		for j := range defs {
			if defs[j].Parent == i && defs[j].Kind == extract.KindFunction {
				methods++
			}
		}
		if methods > 0 {
			nodes[i].SetAttr("method_count", methods)
		}
	}
	return nil
}

func countKinds(defs []extract.Definition) (classes, functions int) {
	for i := range defs {
		if defs[i].Kind == extract.KindClass {
			classes++
		} else {
			functions++
		}
	}
	return
}

// pathDepth returns the level of a relative path: 1 for "a", 2 for "a/b".
func pathDepth(rel string) int {
	return strings.Count(rel, "/") + 1
}

// parentFolderID returns the hashed id of the folder containing rel.
func parentFolderID(env graph.Environment, rel string) string {
	dir := filepath.ToSlash(filepath.Dir(rel))
	if dir == "." || dir == "" {
		dir = "."
	}
	return graph.HashID(env.NodeID(dir))
}

func lineCount(source []byte) int {
	if len(source) == 0 {
		return 1
	}
	n := bytes.Count(source, []byte{'\n'}) + 1
	if source[len(source)-1] == '\n' {
		n--
	}
	return n
}
