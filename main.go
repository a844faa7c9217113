// reflguard checks the .NET reflection calls of a C# repository against the
// types the repository declares and reports the ones that cannot succeed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/reflguard/internal/check"
	"github.com/phobologic/reflguard/internal/config"
	"github.com/phobologic/reflguard/internal/discover"
	"github.com/phobologic/reflguard/internal/model"
	"github.com/phobologic/reflguard/internal/ranking"
	"github.com/phobologic/reflguard/internal/toon"
)

var version = "dev"

// errFindings is returned when the report contains error-severity
// diagnostics. It only sets the exit status.
var errFindings = errors.New("error-severity diagnostics reported")

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, errFindings):
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "init" {
		return runInit(args[1:], stdout, stderr)
	}

	fs := flag.NewFlagSet("reflguard", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath  string
		maxFiles    int
		maxFileSize int
		format      string
		rules       string
		severity    string
		fileFilter  string
		cachePath   string
		all         bool
		traceSpans  bool
		verbose     bool
		showVersion bool
	)

	fs.StringVar(&configPath, "config", "", "config file (default <root>/"+config.FileName+")")
	fs.IntVar(&maxFiles, "n", 0, "maximum number of files to report")
	fs.IntVar(&maxFiles, "max-files", 0, "maximum number of files to report")
	fs.IntVar(&maxFileSize, "max-file-size", 0, "skip files larger than this many bytes (default from config)")
	fs.StringVar(&format, "format", "toon", "output format: toon or yaml")
	fs.StringVar(&rules, "rules", "", "comma-separated rule ids to report")
	fs.StringVar(&severity, "severity", "", "report only diagnostics at least this severe: error, warning or info")
	fs.StringVar(&fileFilter, "f", "", "report only files whose path contains this substring")
	fs.StringVar(&fileFilter, "file", "", "report only files whose path contains this substring")
	fs.StringVar(&cachePath, "cache", "", "cache file path")
	fs.BoolVar(&all, "all", false, "list files without diagnostics too")
	fs.BoolVar(&traceSpans, "trace", false, "write trace spans to stderr")
	fs.BoolVar(&verbose, "v", false, "verbose logging")
	fs.BoolVar(&showVersion, "V", false, "show version and exit")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	if showVersion {
		_, _ = fmt.Fprintf(stdout, "reflguard %s\n", version)
		return nil
	}

	if format != "toon" && format != "yaml" {
		return fmt.Errorf("unsupported format %q", format)
	}
	minSeverity := model.Severity(severity)
	if minSeverity != "" && !minSeverity.Valid() {
		return fmt.Errorf("unsupported severity %q", severity)
	}

	root := "."
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", root)
	}

	cfg, err := config.Load(configPath, root)
	if err != nil {
		return err
	}
	if maxFileSize > 0 {
		cfg.MaxFileSize = maxFileSize
	}
	if maxFiles <= 0 {
		maxFiles = cfg.MaxFiles
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := check.Options{
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
	}

	ctx := context.Background()
	if traceSpans {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("creating trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		defer func() { _ = tp.Shutdown(ctx) }()
		opts.Tracer = tp.Tracer("reflguard")
	}

	// The cache holds the unfiltered report of the last full run.
	filtered := rules != "" || severity != "" || fileFilter != "" || all || maxFiles > 0 || format != "toon"
	if cachePath != "" && !filtered && cacheIsFresh(cachePath, root, configPath, cfg) {
		data, err := os.ReadFile(cachePath)
		if err == nil {
			_, _ = stdout.Write(data)
			return cachedStatus(data)
		}
	}

	report, err := check.Repo(ctx, root, opts)
	if err != nil {
		return err
	}

	if rules != "" {
		report = ranking.FilterByRule(report, strings.Split(rules, ","))
	}
	if minSeverity != "" {
		report = ranking.FilterBySeverity(report, minSeverity)
	}
	if fileFilter != "" {
		report = ranking.FilterByFile(report, fileFilter)
	}
	if !all {
		report = ranking.WithDiagnostics(report)
	}
	if maxFiles > 0 {
		report = ranking.SelectFiles(report, maxFiles)
	}

	output, err := encode(report, format)
	if err != nil {
		return err
	}

	if cachePath != "" && !filtered {
		_ = os.WriteFile(cachePath, []byte(output+"\n"), 0o644)
	}

	_, _ = fmt.Fprintln(stdout, output)
	if report.HasSeverity(model.SeverityError) {
		return errFindings
	}
	return nil
}

func encode(report *model.Report, format string) (string, error) {
	if format == "yaml" {
		out, err := yaml.Marshal(report)
		if err != nil {
			return "", fmt.Errorf("encoding report: %w", err)
		}
		return strings.TrimRight(string(out), "\n"), nil
	}
	return toon.Encode(report), nil
}

// cachedStatus recovers the exit status of a cached TOON report.
func cachedStatus(data []byte) error {
	if strings.Contains(string(data), ","+string(model.SeverityError)+",") {
		return errFindings
	}
	return nil
}

// cacheIsFresh reports whether the cache is newer than every source file
// and the config file.
func cacheIsFresh(cachePath, root, configPath string, cfg *config.Config) bool {
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return false
	}
	cacheMtime := cacheInfo.ModTime()

	if configPath == "" {
		configPath = filepath.Join(root, config.FileName)
	}
	if fi, err := os.Stat(configPath); err == nil && !fi.ModTime().Before(cacheMtime) {
		return false
	}

	files, err := discover.Files(root, discover.Options{Exclude: cfg.Exclude})
	if err != nil {
		return false
	}
	for _, f := range files {
		fi, err := os.Stat(filepath.Join(root, f.Path))
		if err != nil {
			return false
		}
		if !fi.ModTime().Before(cacheMtime) {
			return false
		}
	}
	return true
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-n": true, "--n": true,
	"-max-files": true, "--max-files": true,
	"-max-file-size": true, "--max-file-size": true,
	"-config": true, "--config": true,
	"-format": true, "--format": true,
	"-rules": true, "--rules": true,
	"-severity": true, "--severity": true,
	"-f": true, "--f": true,
	"-file": true, "--file": true,
	"-cache": true, "--cache": true,
	"-docs": true, "--docs": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
