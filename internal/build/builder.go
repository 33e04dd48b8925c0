// Package build orchestrates graph construction: hierarchy traversal,
// reference resolution, and diff reconciliation against prior snapshots.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codeatlas-dev/codeatlas/internal/extract"
	"github.com/codeatlas-dev/codeatlas/internal/graph"
	"github.com/codeatlas-dev/codeatlas/internal/lang"
	"github.com/codeatlas-dev/codeatlas/internal/resolve"
)

// Options configures a build.
type Options struct {
	Environment    graph.Environment
	SkipExtensions []string
	SkipNames      []string
	// Workers bounds the parallel parse stage; 0 means NumCPU.
	Workers int
	// ReferenceTimeout bounds one backend request; 0 means the LSP default.
	ReferenceTimeout time.Duration
	// ServerCommands overrides per-language backend commands.
	ServerCommands map[lang.Language][]string
	// DisableReferences skips the relationship-resolution phase entirely
	// (hierarchy-only builds).
	DisableReferences bool
}

// phase is the builder's state machine position.
type phase int

const (
	phaseIdle phase = iota
	phaseHierarchyBuilt
	phaseRelationshipsResolved
	phaseFinalized
)

// Builder constructs a complete graph for one project root. A Builder is
// single-use: Build may be called once.
type Builder struct {
	root  string
	opts  Options
	phase phase

	g    *graph.Graph
	asts map[string]*extract.Result

	warnMu   sync.Mutex
	warnings []string
}

// NewBuilder creates a builder for the given project root. The root is
// absolutized here so backend locations can be mapped back to
// project-relative paths regardless of how the caller spelled it.
func NewBuilder(root string, opts Options) *Builder {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	if opts.Environment.Name == "" {
		opts.Environment.Name = "main"
	}
	opts.Environment.Root = root
	return &Builder{root: root, opts: opts}
}

// Warnings returns non-fatal problems recorded during the build, such as
// languages whose backend could not be started.
func (b *Builder) Warnings() []string {
	b.warnMu.Lock()
	defer b.warnMu.Unlock()
	return append([]string(nil), b.warnings...)
}

// Build runs the full pipeline and returns the finalized graph.
// On cancellation all sessions are released and no partial graph is
// returned.
func (b *Builder) Build(ctx context.Context) (*graph.Graph, error) {
	if err := b.buildHierarchy(ctx); err != nil {
		return nil, err
	}
	if err := b.resolveReferences(ctx); err != nil {
		b.discard()
		return nil, err
	}
	return b.finalize()
}

// buildHierarchy moves Idle → HierarchyBuilt.
func (b *Builder) buildHierarchy(ctx context.Context) error {
	if b.phase != phaseIdle {
		return fmt.Errorf("build already started")
	}
	slog.Info("build.hierarchy.start", "root", b.root)

	filter := NewFilter(b.root, b.opts.SkipExtensions, b.opts.SkipNames)
	g, asts, err := buildHierarchy(ctx, b.root, b.opts.Environment, filter, b.opts.Workers)
	if err != nil {
		return err
	}
	b.g = g
	b.asts = asts
	b.phase = phaseHierarchyBuilt
	slog.Info("build.hierarchy.done", "nodes", g.NodeCount(), "relationships", g.RelationshipCount())
	return nil
}

// resolveReferences moves HierarchyBuilt → RelationshipsResolved. Languages
// resolve concurrently, one sequential session each; classified
// relationships drain through a channel into the single graph writer.
func (b *Builder) resolveReferences(ctx context.Context) error {
	if b.phase != phaseHierarchyBuilt {
		return fmt.Errorf("hierarchy not built")
	}
	b.phase = phaseRelationshipsResolved
	if b.opts.DisableReferences {
		return nil
	}

	byLang := b.definitionsByLanguage()
	if len(byLang) == 0 {
		return nil
	}

	classifier := &resolve.Classifier{Graph: b.g, ASTs: b.asts}
	resolver := &resolve.Resolver{
		Root:     b.opts.Environment.Root,
		Timeout:  b.opts.ReferenceTimeout,
		Commands: b.opts.ServerCommands,
	}

	rels := make(chan graph.Relationship, 256)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for rel := range rels {
			if err := b.g.AddRelationship(rel); err != nil {
				slog.Warn("build.relationship.err", "err", err)
			}
		}
	}()

	eg, egCtx := errgroup.WithContext(ctx)
	for l, defs := range byLang {
		eg.Go(func() error {
			return b.resolveLanguage(egCtx, resolver, classifier, l, defs, rels)
		})
	}
	err := eg.Wait()
	close(rels)
	<-writerDone

	if err != nil {
		return err
	}
	slog.Info("build.resolve.done", "relationships", b.g.RelationshipCount())
	return nil
}

// resolveLanguage runs one language's session over all its definitions.
// The session is released on every exit path.
func (b *Builder) resolveLanguage(
	ctx context.Context,
	resolver *resolve.Resolver,
	classifier *resolve.Classifier,
	l lang.Language,
	defs []*graph.Node,
	rels chan<- graph.Relationship,
) error {
	session, err := resolver.Start(ctx, l)
	if err != nil {
		if errors.Is(err, resolve.ErrBackendUnavailable) {
			b.warn(fmt.Sprintf("language %s: backend unavailable, no semantic relationships", l))
			slog.Warn("build.backend.unavailable", "language", l, "err", err)
			return nil
		}
		return err
	}
	defer session.Shutdown(context.WithoutCancel(ctx))

	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			return err
		}
		file := def.FilePath()
		res := b.asts[file]
		if res == nil {
			continue
		}
		refs, err := session.FindReferences(ctx, file, string(res.Source), def.Def.Selection)
		if err != nil {
			if errors.Is(err, resolve.ErrBackendCrashed) {
				b.warn(fmt.Sprintf("language %s: backend crashed, remaining definitions skipped", l))
				return nil
			}
			slog.Warn("build.references.err", "path", def.Path, "err", err)
			continue
		}
		for _, ref := range refs {
			if rel, ok := classifier.Classify(def, ref); ok {
				select {
				case rels <- rel:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return nil
}

// finalize moves RelationshipsResolved → Finalized, releases parse trees,
// and validates the graph before handing it to the caller.
func (b *Builder) finalize() (*graph.Graph, error) {
	if b.phase != phaseRelationshipsResolved {
		return nil, fmt.Errorf("relationships not resolved")
	}
	b.releaseASTs()
	if err := b.g.Validate(); err != nil {
		return nil, err
	}
	b.g.Finalize()
	b.phase = phaseFinalized
	return b.g, nil
}

func (b *Builder) discard() {
	b.releaseASTs()
	b.g = nil
}

func (b *Builder) releaseASTs() {
	for _, res := range b.asts {
		res.Close()
	}
	b.asts = nil
}

// warn records a non-fatal problem. Called from the concurrent
// per-language goroutines, so the slice is mutex-guarded.
func (b *Builder) warn(msg string) {
	b.warnMu.Lock()
	defer b.warnMu.Unlock()
	b.warnings = append(b.warnings, msg)
}

// definitionsByLanguage groups CLASS/FUNCTION nodes by their language,
// each group sorted by path for deterministic session traffic.
func (b *Builder) definitionsByLanguage() map[lang.Language][]*graph.Node {
	byLang := make(map[lang.Language][]*graph.Node)
	for _, def := range b.g.Definitions() {
		if def.Def == nil || def.Def.Language == "" {
			continue
		}
		l := lang.Language(def.Def.Language)
		byLang[l] = append(byLang[l], def)
	}
	for _, defs := range byLang {
		sort.Slice(defs, func(i, j int) bool { return defs[i].Path < defs[j].Path })
	}
	return byLang
}
