package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/build"
	"github.com/codeatlas-dev/codeatlas/internal/config"
	"github.com/codeatlas-dev/codeatlas/internal/graph"
	"github.com/codeatlas-dev/codeatlas/internal/lang"
	"github.com/codeatlas-dev/codeatlas/internal/snapshot"
)

type buildFlags struct {
	snapshotPath string
	jsonOut      bool
	noReferences bool
}

func newBuildCommand() *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build [root]",
		Short: "Build the full code graph for a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, rootArg(args), flags)
		},
	}
	addBuildFlags(cmd, &flags)
	return cmd
}

func newDiffCommand() *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "diff [root]",
		Short: "Build an incremental graph against the last snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, rootArg(args), flags)
		},
	}
	addBuildFlags(cmd, &flags)
	return cmd
}

func addBuildFlags(cmd *cobra.Command, flags *buildFlags) {
	cmd.Flags().StringVar(&flags.snapshotPath, "snapshot", ".codeatlas.db", "snapshot database path, relative to the root")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "write the graph as JSON to stdout instead of the snapshot")
	cmd.Flags().BoolVar(&flags.noReferences, "no-references", false, "skip reference resolution (hierarchy only)")
}

func rootArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func runBuild(cmd *cobra.Command, root string, flags buildFlags) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	builder := build.NewBuilder(root, buildOptions(cfg, flags, ""))
	g, err := builder.Build(ctx)
	if err != nil {
		return err
	}
	reportWarnings(cmd, builder.Warnings())
	return saveGraph(ctx, cmd, root, flags, g, true)
}

func runDiff(cmd *cobra.Command, root string, flags buildFlags) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	store, err := openStore(root, flags)
	if err != nil {
		return err
	}
	previous, err := store.LoadStates(ctx)
	store.Close()
	if err != nil {
		return err
	}
	if len(previous) == 0 {
		return fmt.Errorf("no previous snapshot at %s, run build first", flags.snapshotPath)
	}

	builder := build.NewDiffBuilder(root, buildOptions(cfg, flags, "diff"), previous)
	g, err := builder.Build(ctx)
	if err != nil {
		return err
	}
	reportWarnings(cmd, builder.Warnings())
	// A diff build is a view of the change; the stored states stay those of
	// the last full build.
	return saveGraph(ctx, cmd, root, flags, g, false)
}

func buildOptions(cfg config.Config, flags buildFlags, diffID string) build.Options {
	servers := make(map[lang.Language][]string, len(cfg.Servers))
	for id, argv := range cfg.Servers {
		servers[lang.Language(id)] = argv
	}
	return build.Options{
		Environment:       graph.Environment{Name: cfg.Environment, DiffID: diffID},
		SkipExtensions:    cfg.SkipExtensions,
		SkipNames:         cfg.SkipNames,
		Workers:           cfg.Workers,
		ReferenceTimeout:  cfg.ReferenceTimeout(),
		ServerCommands:    servers,
		DisableReferences: flags.noReferences,
	}
}

func saveGraph(ctx context.Context, cmd *cobra.Command, root string, flags buildFlags, g *graph.Graph, saveStates bool) error {
	nodes, rels := g.Objects()

	if flags.jsonOut {
		sink := &snapshot.JSONSink{W: cmd.OutOrStdout()}
		return sink.Save(ctx, nodes, rels)
	}

	store, err := openStore(root, flags)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Save(ctx, nodes, rels); err != nil {
		return err
	}
	if saveStates {
		if err := store.SaveStates(ctx, build.States(g)); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %d nodes, %d relationships\n", len(nodes), len(rels))
	return nil
}

func openStore(root string, flags buildFlags) (*snapshot.Store, error) {
	path := flags.snapshotPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	return snapshot.Open(path)
}

func reportWarnings(cmd *cobra.Command, warnings []string) {
	for _, w := range warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
