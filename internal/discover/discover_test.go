package discover

import (
	"os"
	"path/filepath"
	"testing"

	git "github.com/go-git/go-git/v5"
)

func TestDiscoverCSharpFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "Program.cs", "class Program { }")
	writeFile(t, dir, "Lib/Util.cs", "static class Util { }")
	// Non-C# file should be ignored
	writeFile(t, dir, "readme.txt", "hello")
	// Hidden file should be ignored
	writeFile(t, dir, ".hidden.cs", "class Secret { }")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	paths := entryPaths(entries)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(entries), paths)
	}

	// Should be sorted
	if entries[0].Path != filepath.Join("Lib", "Util.cs") {
		t.Errorf("entry 0: got %q", entries[0].Path)
	}
	if entries[1].Path != "Program.cs" {
		t.Errorf("entry 1: got %q", entries[1].Path)
	}

	for _, e := range entries {
		if e.Language != "csharp" {
			t.Errorf("entry %q: language = %q, want csharp", e.Path, e.Language)
		}
	}
}

func TestDiscoverSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "Program.cs", "class P { }")
	writeFile(t, dir, "bin/Debug/Gen.cs", "class G { }")
	writeFile(t, dir, "obj/Debug/AssemblyInfo.cs", "class A { }")
	writeFile(t, dir, "packages/Lib/Lib.cs", "class L { }")
	writeFile(t, dir, ".vs/Cache.cs", "class C { }")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %v", entryPaths(entries))
	}
	if entries[0].Path != "Program.cs" {
		t.Errorf("expected Program.cs, got %q", entries[0].Path)
	}
}

func TestDiscoverExcludePatterns(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		exclude []string
		want    []string
	}{
		{
			name: "none",
			want: []string{filepath.Join("Generated", "Api.g.cs"), filepath.Join("Src", "App.Designer.cs"), filepath.Join("Src", "App.cs")},
		},
		{
			name:    "directory",
			exclude: []string{"Generated/"},
			want:    []string{filepath.Join("Src", "App.Designer.cs"), filepath.Join("Src", "App.cs")},
		},
		{
			name:    "glob",
			exclude: []string{"*.Designer.cs", "*.g.cs"},
			want:    []string{filepath.Join("Src", "App.cs")},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			writeFile(t, dir, "Src/App.cs", "class App { }")
			writeFile(t, dir, "Src/App.Designer.cs", "partial class App { }")
			writeFile(t, dir, "Generated/Api.g.cs", "class Api { }")

			entries, err := Files(dir, Options{Exclude: tc.exclude})
			if err != nil {
				t.Fatalf("Files: %v", err)
			}
			got := entryPaths(entries)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("entry %d = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestDiscoverGitignoreWithoutRepo(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, ".gitignore", "Legacy/\n")
	writeFile(t, dir, "Real.cs", "class Real { }")
	writeFile(t, dir, "Legacy/Old.cs", "class Old { }")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "Real.cs" {
		t.Errorf("expected only Real.cs, got %v", entryPaths(entries))
	}
}

func TestDiscoverGitIndex(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}

	writeFile(t, dir, "Tracked.cs", "class Tracked { }")
	if _, err := wt.Add("Tracked.cs"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	writeFile(t, dir, "New.cs", "class New { }")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	got := entryPaths(entries)
	if len(got) != 2 || got[0] != "New.cs" || got[1] != "Tracked.cs" {
		t.Errorf("expected tracked and untracked files, got %v", got)
	}
}

func TestDiscoverSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "Real.cs", "class Real { }")
	if err := os.Symlink(filepath.Join(dir, "Real.cs"), filepath.Join(dir, "Link.cs")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "Real.cs" {
		t.Errorf("expected only Real.cs, got %v", entryPaths(entries))
	}
}

func entryPaths(entries []FileEntry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return paths
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
