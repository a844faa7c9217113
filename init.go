package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/phobologic/reflguard/internal/config"
)

const (
	sentinelStart = "<!-- reflguard:start -->"
	sentinelEnd   = "<!-- reflguard:end -->"
)

// runInit implements the `reflguard init` subcommand. It writes the default
// config file into a repository and, with --docs, a usage section into an
// agent instructions file such as CLAUDE.md.
func runInit(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("reflguard init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		dryRun bool
		force  bool
		docs   string
	)
	fs.BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying any file")
	fs.BoolVar(&force, "force", false, "overwrite an existing "+config.FileName)
	fs.StringVar(&docs, "docs", "", "also write a reflguard usage section to this markdown file")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: reflguard init [flags] [repo-dir]

Write a default %s to repo-dir (default "."). An existing file is left
alone unless --force is given.

With --docs, a reflguard usage section is also written to the given markdown
file. The section is wrapped in sentinel comments so later runs update it in
place without touching surrounding content.

Flags:
`, config.FileName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	path := filepath.Join(dir, config.FileName)

	if dryRun {
		_, _ = fmt.Fprintf(stdout, "# %s\n%s", path, config.DefaultYAML())
	} else if err := writeConfig(path, force, stderr); err != nil {
		return err
	}

	if docs == "" {
		return nil
	}

	existing, _ := os.ReadFile(docs)
	updated := applySection(string(existing), generateSection())

	if dryRun {
		_, _ = fmt.Fprintf(stdout, "# %s\n%s", docs, updated)
		return nil
	}

	if err := os.WriteFile(docs, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", docs, err)
	}
	_, _ = fmt.Fprintf(stderr, "wrote reflguard section to %s\n", docs)
	return nil
}

func writeConfig(path string, force bool, stderr io.Writer) error {
	if _, err := os.Stat(path); err == nil && !force {
		_, _ = fmt.Fprintf(stderr, "%s exists, leaving it unchanged (use --force to overwrite)\n", path)
		return nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	if err := os.WriteFile(path, config.DefaultYAML(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	_, _ = fmt.Fprintf(stderr, "wrote %s\n", path)
	return nil
}

// generateSection returns the full sentinel-wrapped reflguard documentation block.
func generateSection() string {
	body := `## reflguard: Reflection Checks

Run ` + "`reflguard`" + ` via the Bash tool after changing C# code that uses
reflection (` + "`GetMethod`" + `, ` + "`GetProperty`" + `, ` + "`Invoke`" + `,
` + "`MakeGenericType`" + `, ` + "`Activator.CreateInstance`" + `, ` + "`Type.GetType`" + `).
It checks every call site against the types the repository declares and
reports the ones that cannot succeed at run time.

**Availability:** Check with ` + "`reflguard --version`" + ` first; skip gracefully if
not found.

**Run it:**
` + "```" + `bash
reflguard                                    # current directory
reflguard /path/to/repo                      # explicit path
reflguard --severity error                   # errors only
reflguard --rules RG001,RG003                # selected rules
reflguard -f Services/                       # files under a path
reflguard -n 20                              # top 20 files
reflguard --cache .reflguard-cache           # cache output (fast on repeat runs)
` + "```" + `

**Exit status:** 0 when nothing error-severity is reported, 1 when something
is, 2 when the check itself failed.

**Configuration:** rules are enabled, disabled or re-graded in
` + "`" + config.FileName + "`" + `. Run ` + "`reflguard init`" + ` to write the defaults.

**All flags:** ` + "`reflguard --help`" + `

**How to use the output:**

1. **Fix error-severity diagnostics first.** The ` + "`files`" + ` table is sorted
   by score, so the files with the most serious findings come first.

2. **Apply the suggested fix** in the ` + "`fix`" + ` column when one is given, such
   as the intended member name for a misspelled lookup or the binding flags
   that make a lookup succeed.

3. **Prefer ` + "`nameof`" + `** over string literals for member names so renames
   keep reflection call sites correct.`

	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
