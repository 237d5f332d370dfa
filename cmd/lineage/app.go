package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dusk-indust/lineage/internal/config"
	"github.com/dusk-indust/lineage/internal/gateway"
	"github.com/dusk-indust/lineage/internal/gotypes"
	"github.com/dusk-indust/lineage/internal/graph"
	"github.com/dusk-indust/lineage/internal/orchestrator"
	"github.com/dusk-indust/lineage/internal/prompt"
)

// app carries the global flags and the state derived from them.
type app struct {
	project  string
	verbose  bool
	offline  bool
	goTypes  bool
	maxDepth int

	cfg    *config.Config
	logger *slog.Logger
}

// setup loads lineage.yml and installs the logger.
func (a *app) setup(stderr io.Writer) error {
	abs, err := filepath.Abs(a.project)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}
	a.project = abs

	cfg, err := config.Load(abs)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelWarn
	if a.verbose || cfg.Verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) graphPath() string {
	if a.cfg.Index.GraphDir == "" {
		return ""
	}
	return filepath.Join(a.project, a.cfg.Index.GraphDir)
}

// indexOptions merges flag values over lineage.yml.
func (a *app) indexOptions(langs, exclude []string) []graph.IndexOption {
	if len(langs) == 0 {
		langs = a.cfg.Index.Languages
	}
	if len(exclude) == 0 {
		exclude = a.cfg.Index.ExcludeDirs
	}
	opts := []graph.IndexOption{graph.WithIndexLogger(a.logger), graph.WithExcludeDirs(exclude...)}
	if gd := a.cfg.Index.GraphDir; gd != "" {
		// Never index our own database.
		opts = append(opts, graph.WithExcludeDirs(strings.Split(filepath.ToSlash(gd), "/")[0]))
	}
	if len(langs) > 0 {
		ls := make([]graph.Language, len(langs))
		for i, l := range langs {
			ls[i] = graph.Language(strings.ToLower(l))
		}
		opts = append(opts, graph.WithLanguages(ls...))
	}
	return opts
}

// openIndex reopens the persisted graph when one exists and indexes the
// project in memory otherwise.
func (a *app) openIndex(ctx context.Context) (graph.Store, error) {
	if path := a.graphPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			store, err := graph.NewKuzuFileStore(path)
			if err == nil {
				a.logger.Debug("using persisted index", "path", path)
				return store, nil
			}
			a.logger.Warn("cannot open persisted index, reindexing in memory", "path", path, "error", err)
		}
	}

	store := graph.NewMemStore()
	stats, err := graph.NewIndexer(store, graph.NewTreeSitterParser(), a.indexOptions(nil, nil)...).Index(ctx, a.project)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("index %s: %w", a.project, err)
	}
	a.logger.Debug("indexed in memory", "files", stats.FileCount, "routines", stats.RoutineCount)
	return store, nil
}

// locator returns the symbol graph analyses run over and a function
// releasing it.
func (a *app) locator(ctx context.Context) (orchestrator.Locator, func(), error) {
	if a.goTypes {
		g, err := gotypes.Load(ctx, a.project, "./...")
		if err != nil {
			return nil, nil, err
		}
		return g, func() {}, nil
	}
	store, err := a.openIndex(ctx)
	if err != nil {
		return nil, nil, err
	}
	return graph.NewStoreAdapter(store), func() { store.Close() }, nil
}

// gateway builds the configured model gateway and probes it. A nil
// gateway means offline.
func (a *app) gateway(ctx context.Context) (gateway.Gateway, orchestrator.CapabilityLevel, error) {
	if a.offline {
		return nil, orchestrator.CapOffline, nil
	}
	gw, err := gateway.New(a.cfg.Gateway, gateway.WithLogger(a.logger))
	if err != nil {
		return nil, orchestrator.CapOffline, err
	}
	capability, err := orchestrator.NewGatewayDetector(gw, a.logger).Detect(ctx)
	if err != nil {
		return nil, orchestrator.CapOffline, err
	}
	if capability == orchestrator.CapOffline {
		return nil, capability, nil
	}
	return gw, capability, nil
}

func (a *app) assembler() (*prompt.Assembler, error) {
	path := a.cfg.TemplatePath
	if path == "" {
		return nil, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(a.project, path)
	}
	return prompt.NewAssembler(path)
}

// session is a pipeline with the resources it runs over.
type session struct {
	*orchestrator.Pipeline
	release func()
	done    chan struct{}
}

// Close stops the pipeline, waits for progress output and releases the
// symbol graph.
func (s *session) Close() {
	s.Pipeline.Close()
	<-s.done
	s.release()
}

// pipeline wires a pipeline over the project. Progress lines go to
// progress unless it is nil.
func (a *app) pipeline(ctx context.Context, model bool, progress io.Writer, tune func(*orchestrator.Config)) (*session, error) {
	var (
		gw         gateway.Gateway
		capability = orchestrator.CapOffline
	)
	if model {
		var err error
		if gw, capability, err = a.gateway(ctx); err != nil {
			return nil, err
		}
	}
	asm, err := a.assembler()
	if err != nil {
		return nil, err
	}

	loc, release, err := a.locator(ctx)
	if err != nil {
		return nil, err
	}

	cfg := orchestrator.FromProject(a.cfg, capability)
	if a.maxDepth > 0 {
		cfg.MaxDepth = a.maxDepth
	}
	if tune != nil {
		tune(&cfg)
	}

	opts := []orchestrator.Option{orchestrator.WithLogger(a.logger)}
	if asm != nil {
		opts = append(opts, orchestrator.WithAssembler(asm))
	}
	s := &session{
		Pipeline: orchestrator.NewPipeline(cfg, loc, gw, opts...),
		release:  release,
		done:     make(chan struct{}),
	}
	go printProgress(s.Progress(), progress, s.done)
	return s, nil
}

// printProgress writes events to w until the channel closes, heading each
// stage a target starts.
func printProgress(events <-chan orchestrator.ProgressEvent, w io.Writer, done chan<- struct{}) {
	defer close(done)
	started := make(map[string]orchestrator.Stage)
	for ev := range events {
		if w == nil {
			continue
		}
		if ev.Status == orchestrator.ProgressWorking {
			if last, ok := started[ev.Target]; !ok || last != ev.Stage {
				started[ev.Target] = ev.Stage
				fmt.Fprintln(w, orchestrator.FormatStageHeader(ev.Target, ev.Stage))
			}
		}
		fmt.Fprintln(w, orchestrator.FormatProgress(ev))
	}
}

// parseTarget reads "file:line" as a cursor position and anything else as
// a routine name or ID. Absolute files are made relative to the project.
func (a *app) parseTarget(arg string) orchestrator.Target {
	if i := strings.LastIndexByte(arg, ':'); i > 0 {
		if line, err := strconv.Atoi(arg[i+1:]); err == nil && line > 0 {
			file := arg[:i]
			if filepath.IsAbs(file) {
				if rel, err := filepath.Rel(a.project, file); err == nil {
					file = rel
				}
			}
			return orchestrator.Target{File: filepath.ToSlash(file), Line: line}
		}
	}
	return orchestrator.Target{Routine: arg}
}

func (a *app) parseTargets(args []string) []orchestrator.Target {
	targets := make([]orchestrator.Target, len(args))
	for i, arg := range args {
		targets[i] = a.parseTarget(arg)
	}
	return targets
}
