// Package discover finds the C# source files of a repository.
package discover

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/reflguard/internal/lang"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path     string // Relative to repo root
	Language string
}

// Options narrows discovery.
type Options struct {
	// Exclude holds gitignore-style patterns matched against repo-relative
	// paths, on top of the repository's own ignore rules.
	Exclude []string
}

var skipDirs = map[string]struct{}{
	"bin":          {},
	"obj":          {},
	"packages":     {},
	"node_modules": {},
	"TestResults":  {},
	"artifacts":    {},
	".git":         {},
	".vs":          {},
	".idea":        {},
}

// Files discovers parseable source files under root, sorted by path. In a
// git repository only files in the index or untracked but not ignored are
// returned; elsewhere the root .gitignore is honoured.
func Files(root string, opts Options) ([]FileEntry, error) {
	tracked := gitFiles(root)
	var gi *ignore.GitIgnore
	if tracked == nil {
		gi = loadGitignore(root)
	}
	var exclude *ignore.GitIgnore
	if len(opts.Exclude) > 0 {
		exclude = ignore.CompileIgnoreLines(opts.Exclude...)
	}

	var results []FileEntry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if rel, err := filepath.Rel(root, path); err == nil && exclude != nil &&
				exclude.MatchesPath(filepath.ToSlash(rel)+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") || d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		langName := lang.ForExtension(filepath.Ext(name))
		if langName == "" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		slashed := filepath.ToSlash(rel)

		if tracked != nil {
			if _, ok := tracked[slashed]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(slashed) {
			return nil
		}
		if exclude != nil && exclude.MatchesPath(slashed) {
			return nil
		}

		results = append(results, FileEntry{Path: rel, Language: langName})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// gitFiles lists the files git would consider part of the repository at
// root: the index plus untracked files its ignore rules let through. It
// returns nil when root is not the top of a readable git repository.
func gitFiles(root string) map[string]struct{} {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil
	}

	idx, err := repo.Storer.Index()
	if err != nil {
		return nil
	}
	files := make(map[string]struct{}, len(idx.Entries))
	for _, e := range idx.Entries {
		files[e.Name] = struct{}{}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return files
	}
	status, err := wt.Status()
	if err != nil {
		return files
	}
	for path, s := range status {
		switch {
		case s.Worktree == git.Untracked:
			files[path] = struct{}{}
		case s.Worktree == git.Deleted:
			delete(files, path)
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
