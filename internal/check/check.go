// Package check runs the whole pipeline: discover C# files, parse them
// concurrently, link their declarations into one model, extract and
// analyze reflection call sites, and assemble a ranked report.
package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/phobologic/reflguard/internal/config"
	"github.com/phobologic/reflguard/internal/csharp"
	"github.com/phobologic/reflguard/internal/discover"
	"github.com/phobologic/reflguard/internal/model"
)

// ErrNoFiles is returned when there is nothing to check.
var ErrNoFiles = errors.New("no C# files found")

// Source is one file's contents. Path is repo-relative and is what
// diagnostics report.
type Source struct {
	Path string
	Data []byte
}

// Options configures a run. The zero value uses the default configuration,
// discards logs and traces through the global tracer provider.
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	Tracer trace.Tracer
}

func (o Options) withDefaults() Options {
	if o.Config == nil {
		o.Config = config.Default()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer("github.com/phobologic/reflguard/internal/check")
	}
	return o
}

func (o Options) workers(n int) int {
	w := o.Config.Workers
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	return max(1, min(w, n))
}

// Repo checks the repository at root.
func Repo(ctx context.Context, root string, opts Options) (*model.Report, error) {
	opts = opts.withDefaults()
	ctx, span := opts.Tracer.Start(ctx, "check.Repo", trace.WithAttributes(attribute.String("root", root)))
	defer span.End()

	entries, err := discover.Files(root, discover.Options{Exclude: opts.Config.Exclude})
	if err != nil {
		return nil, fail(span, fmt.Errorf("discovering files: %w", err))
	}
	if len(entries) == 0 {
		return nil, fail(span, ErrNoFiles)
	}
	entries = filterBySize(root, entries, opts.Config.MaxFileSize, opts.Logger)
	if len(entries) == 0 {
		return nil, fail(span, fmt.Errorf("%w (all exceeded size limit)", ErrNoFiles))
	}

	sources := make([]Source, 0, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(root, e.Path))
		if err != nil {
			opts.Logger.Warn("skipping unreadable file",
				slog.String("file", e.Path),
				slog.String("error", err.Error()),
			)
			continue
		}
		sources = append(sources, Source{Path: filepath.ToSlash(e.Path), Data: data})
	}
	span.SetAttributes(attribute.Int("files", len(sources)))

	return Sources(ctx, filepath.Base(root), sources, opts)
}

// Sources checks an in-memory set of files as one program.
func Sources(ctx context.Context, name string, sources []Source, opts Options) (*model.Report, error) {
	opts = opts.withDefaults()
	ctx, span := opts.Tracer.Start(ctx, "check.Sources", trace.WithAttributes(attribute.Int("files", len(sources))))
	defer span.End()

	if len(sources) == 0 {
		return nil, fail(span, ErrNoFiles)
	}

	files, err := parseConcurrent(ctx, sources, opts)
	if err != nil {
		return nil, fail(span, err)
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	if len(files) == 0 {
		return nil, fail(span, errors.New("no files could be parsed"))
	}

	_, linkSpan := opts.Tracer.Start(ctx, "check.link")
	prog := csharp.Link(files)
	linkSpan.SetAttributes(attribute.Int("types", len(prog.Types())))
	linkSpan.End()

	var cycles []model.Cycle
	for _, c := range prog.Cycles {
		opts.Logger.Warn("ignoring inheritance cycle",
			slog.String("type", c.Source),
			slog.String("base", c.Target),
		)
		cycles = append(cycles, model.Cycle{Type: c.Source, Base: c.Target})
	}

	reports, err := analyzeConcurrent(ctx, prog, opts)
	if err != nil {
		return nil, fail(span, err)
	}

	rankFiles(prog, reports)

	report := &model.Report{
		RepoName: name,
		Root:     name,
		Files:    reports,
		Cycles:   cycles,
		Types:    len(prog.Types()),
	}
	for _, f := range reports {
		report.CallSites += f.CallSites
	}
	span.SetAttributes(
		attribute.Int("callsites", report.CallSites),
		attribute.Int("diagnostics", report.Count()),
	)
	opts.Logger.Debug("check finished",
		slog.String("name", name),
		slog.Int("files", len(reports)),
		slog.Int("types", report.Types),
		slog.Int("callsites", report.CallSites),
		slog.Int("diagnostics", report.Count()),
	)
	return report, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func filterBySize(root string, files []discover.FileEntry, maxSize int, logger *slog.Logger) []discover.FileEntry {
	if maxSize <= 0 {
		return files
	}
	var kept []discover.FileEntry
	for _, f := range files {
		fi, err := os.Stat(filepath.Join(root, f.Path))
		if err != nil {
			kept = append(kept, f) // keep if can't stat
			continue
		}
		if fi.Size() > int64(maxSize) {
			logger.Warn("skipping large file",
				slog.String("file", f.Path),
				slog.Int64("size", fi.Size()),
				slog.Int("limit", maxSize),
			)
			continue
		}
		kept = append(kept, f)
	}
	return kept
}
