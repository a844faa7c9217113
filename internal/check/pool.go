package check

import (
	"context"
	"fmt"
	"log/slog"

	sitter "github.com/smacker/go-tree-sitter"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/reflguard/internal/analyze"
	"github.com/phobologic/reflguard/internal/csharp"
	"github.com/phobologic/reflguard/internal/graph"
	"github.com/phobologic/reflguard/internal/lang"
	"github.com/phobologic/reflguard/internal/model"
	"github.com/phobologic/reflguard/internal/ranking"
)

// each runs fn for every index in [0, n) on a bounded set of workers. init
// is called once per worker and its result passed to every fn call that
// worker makes, so per-goroutine state such as a parser is never shared.
func each[S any](ctx context.Context, n, workers int, init func() S, fn func(ctx context.Context, state S, i int) error) error {
	work := make(chan int)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(work)
		for i := range n {
			select {
			case work <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range workers {
		g.Go(func() error {
			state := init()
			for i := range work {
				if err := fn(gctx, state, i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// parseConcurrent parses sources with one parser per worker and returns
// the files that parsed, in input order.
func parseConcurrent(ctx context.Context, sources []Source, opts Options) ([]*csharp.File, error) {
	ctx, span := opts.Tracer.Start(ctx, "check.parse")
	defer span.End()

	l := lang.Get(lang.CSharp)
	parsed := make([]*csharp.File, len(sources))
	err := each(ctx, len(sources), opts.workers(len(sources)), l.NewParser,
		func(ctx context.Context, parser *sitter.Parser, i int) error {
			src := sources[i]
			f, err := csharp.Parse(ctx, parser, src.Data, src.Path)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				opts.Logger.Warn("skipping file",
					slog.String("file", src.Path),
					slog.String("error", err.Error()),
				)
				return nil
			}
			parsed[i] = f
			return nil
		})

	var files []*csharp.File
	for _, f := range parsed {
		if f != nil {
			files = append(files, f)
		}
	}
	if err != nil {
		for _, f := range files {
			f.Close()
		}
		return nil, fmt.Errorf("parsing: %w", err)
	}
	span.SetAttributes(attribute.Int("parsed", len(files)))
	return files, nil
}

// analyzeConcurrent extracts and analyzes the call sites of every file that
// is not generated code. Analyzers memoize per call site and are not safe
// for concurrent use, so each file gets its own.
func analyzeConcurrent(ctx context.Context, prog *csharp.Program, opts Options) ([]model.FileReport, error) {
	ctx, span := opts.Tracer.Start(ctx, "check.analyze")
	defer span.End()

	query, err := lang.Get(lang.CSharp).CallQuery()
	if err != nil {
		return nil, fmt.Errorf("compiling call query: %w", err)
	}
	namespaces := prog.Namespaces()

	reports := make([]model.FileReport, len(prog.Files))
	checked := make([]bool, len(prog.Files))
	err = each(ctx, len(prog.Files), opts.workers(len(prog.Files)), func() struct{} { return struct{}{} },
		func(ctx context.Context, _ struct{}, i int) error {
			f := prog.Files[i]
			if opts.Config.IsGenerated(f.Path) {
				opts.Logger.Debug("not checking generated file", slog.String("file", f.Path))
				return nil
			}
			_, fileSpan := opts.Tracer.Start(ctx, "check.analyzeFile")
			defer fileSpan.End()

			sites := prog.CallSites(f, query)
			diags := analyze.New(prog.Catalog, namespaces).Diagnostics(sites)
			diags = opts.Config.Apply(diags)
			reports[i] = model.FileReport{Path: f.Path, CallSites: len(sites), Diagnostics: diags}
			checked[i] = true

			fileSpan.SetAttributes(
				attribute.String("file", f.Path),
				attribute.Int("callsites", len(sites)),
				attribute.Int("diagnostics", len(diags)),
			)
			return ctx.Err()
		})
	if err != nil {
		return nil, fmt.Errorf("analyzing: %w", err)
	}

	var out []model.FileReport
	for i, ok := range checked {
		if ok {
			out = append(out, reports[i])
		}
	}
	return out, nil
}

// rankFiles scores reports by diagnostics, breaking ties by how central a
// file is in the graph of files whose types derive from types in others.
func rankFiles(prog *csharp.Program, reports []model.FileReport) {
	declaredIn := make(map[*model.Type][]string)
	for _, f := range prog.Files {
		for _, d := range f.Decls() {
			if t := d.Type(); t != nil {
				declaredIn[t] = append(declaredIn[t], f.Path)
			}
		}
	}

	g := graph.New()
	for _, f := range prog.Files {
		g.AddNode(f.Path)
		for _, d := range f.Decls() {
			t := d.Type()
			if t == nil {
				continue
			}
			for _, b := range append([]*model.Type{t.Base}, t.Interfaces...) {
				if b == nil {
					continue
				}
				for _, path := range declaredIn[b.Definition()] {
					if path != f.Path {
						g.AddEdge(f.Path, path)
					}
				}
			}
		}
	}
	ranking.Score(reports, g.Rank())
}
