// Package resolve discovers where definitions are referenced, via one
// language-server session per language, and classifies each reference into
// a typed relationship.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/codeatlas-dev/codeatlas/internal/graph"
	"github.com/codeatlas-dev/codeatlas/internal/lang"
	"github.com/codeatlas-dev/codeatlas/internal/lsp"
)

// ErrBackendUnavailable is returned when a language's server binary cannot
// be started at all. Per-language, non-fatal: the language's code still
// appears in the hierarchy, without semantic relationships.
var ErrBackendUnavailable = errors.New("language backend unavailable")

// ErrBackendCrashed is returned when a session died and its one restart
// attempt failed. The language degrades to empty results.
var ErrBackendCrashed = errors.New("language backend crashed")

// RawReference is a location where a definition is used, mapped back from
// the backend's response. Line is 1-based, Column is 0-based.
type RawReference struct {
	RelPath string
	Line    int
	Column  int
}

// Resolver creates sessions against language-intelligence backends for one
// project root.
type Resolver struct {
	Root    string
	Timeout time.Duration
	// Commands overrides the per-language server command (from config).
	Commands map[lang.Language][]string

	// startClient replaces process spawning in tests; nil means lsp.Start.
	startClient func(command []string, rootPath string) (*lsp.Client, error)
}

// Session wraps one live backend process for one language. A session's
// requests are sequential; concurrent use is serialized by the client.
// Sessions across languages are independent.
type Session struct {
	Language lang.Language

	resolver  *Resolver
	spec      *lang.Spec
	client    *lsp.Client
	restarted bool
	dead      bool
}

func (r *Resolver) command(spec *lang.Spec) []string {
	if cmd, ok := r.Commands[spec.Language]; ok && len(cmd) > 0 {
		return cmd
	}
	return spec.ServerCommand
}

func (r *Resolver) start(command []string) (*lsp.Client, error) {
	if r.startClient != nil {
		return r.startClient(command, r.Root)
	}
	return lsp.Start(command, r.Root)
}

// Start launches and initializes a session for a language.
// Returns ErrBackendUnavailable when the server cannot be started.
func (r *Resolver) Start(ctx context.Context, l lang.Language) (*Session, error) {
	spec := lang.ForLanguage(l)
	if spec == nil || len(r.command(spec)) == 0 {
		return nil, fmt.Errorf("%w: no server for %s", ErrBackendUnavailable, l)
	}

	client, err := r.start(r.command(spec))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if r.Timeout > 0 {
		client.SetTimeout(r.Timeout)
	}
	if err := client.Initialize(ctx); err != nil {
		_ = client.Shutdown(ctx)
		return nil, fmt.Errorf("%w: initialize %s: %v", ErrBackendUnavailable, l, err)
	}

	slog.Info("resolve.session.start", "language", l)
	return &Session{Language: l, resolver: r, spec: spec, client: client}, nil
}

// FindReferences asks the backend where the definition at sel inside
// relPath is used. text is the file's current source, announced to the
// backend on first touch. A timeout yields an empty result and a logged
// warning; a crash triggers one restart, then the session degrades.
func (s *Session) FindReferences(ctx context.Context, relPath, text string, sel graph.Position) ([]RawReference, error) {
	if s.dead {
		return nil, ErrBackendCrashed
	}

	locs, err := s.references(ctx, relPath, text, sel)
	if err == nil {
		return s.mapLocations(locs), nil
	}

	switch {
	case errors.Is(err, lsp.ErrTimeout):
		slog.Warn("resolve.timeout", "language", s.Language, "path", relPath, "line", sel.Line)
		return nil, nil
	case errors.Is(err, lsp.ErrClosed):
		if restartErr := s.restart(ctx); restartErr != nil {
			s.dead = true
			slog.Warn("resolve.session.dead", "language", s.Language, "err", restartErr)
			return nil, ErrBackendCrashed
		}
		locs, err = s.references(ctx, relPath, text, sel)
		if err != nil {
			s.dead = true
			return nil, ErrBackendCrashed
		}
		return s.mapLocations(locs), nil
	default:
		return nil, err
	}
}

func (s *Session) references(ctx context.Context, relPath, text string, sel graph.Position) ([]lsp.Location, error) {
	abs := filepath.Join(s.resolver.Root, filepath.FromSlash(relPath))
	if err := s.client.DidOpen(abs, s.spec.LSPLanguageID, text); err != nil {
		return nil, err
	}
	return s.client.References(ctx, abs, lsp.Position{
		Line:      sel.Line - 1,
		Character: sel.Column,
	})
}

// restart replaces a crashed backend process, once per session.
func (s *Session) restart(ctx context.Context) error {
	if s.restarted {
		return ErrBackendCrashed
	}
	s.restarted = true
	slog.Warn("resolve.session.restart", "language", s.Language)

	_ = s.client.Shutdown(ctx)
	client, err := s.resolver.start(s.resolver.command(s.spec))
	if err != nil {
		return err
	}
	if s.resolver.Timeout > 0 {
		client.SetTimeout(s.resolver.Timeout)
	}
	if err := client.Initialize(ctx); err != nil {
		_ = client.Shutdown(ctx)
		return err
	}
	s.client = client
	return nil
}

// mapLocations converts backend locations into project-relative references.
// Locations outside the project root are dropped.
func (s *Session) mapLocations(locs []lsp.Location) []RawReference {
	refs := make([]RawReference, 0, len(locs))
	for _, loc := range locs {
		path := lsp.URIToPath(loc.URI)
		rel, err := filepath.Rel(s.resolver.Root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		refs = append(refs, RawReference{
			RelPath: filepath.ToSlash(rel),
			Line:    loc.Range.Start.Line + 1,
			Column:  loc.Range.Start.Character,
		})
	}
	return refs
}

// Shutdown releases the session's backend process. Guaranteed safe on all
// exit paths, including after a crash.
func (s *Session) Shutdown(ctx context.Context) {
	if s.client != nil {
		_ = s.client.Shutdown(ctx)
	}
	slog.Info("resolve.session.stop", "language", s.Language)
}
