// Package ranking orders report files by how urgently they need attention
// and narrows reports to what was asked for.
package ranking

import (
	"sort"
	"strings"

	"github.com/phobologic/reflguard/internal/model"
)

// Score sets each file's score to the summed severity weight of its
// diagnostics, plus its centrality so that among equally broken files the
// ones others build on come first. Files are then sorted by score
// descending, then path.
func Score(files []model.FileReport, centrality map[string]float64) {
	for i := range files {
		f := &files[i]
		var s float64
		for _, d := range f.Diagnostics {
			s += float64(d.Severity.Weight())
		}
		f.Score = s + centrality[f.Path]
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Score != files[j].Score {
			return files[i].Score > files[j].Score
		}
		return files[i].Path < files[j].Path
	})
}

// SelectFiles returns a new Report with only the top-ranked files.
// If maxFiles is <= 0 or >= len(files), the report is returned unchanged.
func SelectFiles(r *model.Report, maxFiles int) *model.Report {
	if maxFiles <= 0 || maxFiles >= len(r.Files) {
		return r
	}
	out := *r
	out.Files = r.Files[:maxFiles]
	return &out
}

// FilterByRule keeps only diagnostics of the listed rules. Files left
// without diagnostics are dropped.
func FilterByRule(r *model.Report, rules []string) *model.Report {
	if len(rules) == 0 {
		return r
	}
	want := make(map[string]struct{}, len(rules))
	for _, id := range rules {
		want[strings.ToUpper(strings.TrimSpace(id))] = struct{}{}
	}
	return filter(r, func(_ *model.FileReport, d *model.Diagnostic) bool {
		_, ok := want[d.Rule]
		return ok
	})
}

// FilterBySeverity keeps only diagnostics at least as serious as least.
func FilterBySeverity(r *model.Report, least model.Severity) *model.Report {
	if least == "" {
		return r
	}
	return filter(r, func(_ *model.FileReport, d *model.Diagnostic) bool {
		return d.Severity.Weight() >= least.Weight()
	})
}

// FilterByFile keeps only files whose path contains substr
// (case-insensitive).
func FilterByFile(r *model.Report, substr string) *model.Report {
	lower := strings.ToLower(substr)
	return filter(r, func(f *model.FileReport, _ *model.Diagnostic) bool {
		return strings.Contains(strings.ToLower(f.Path), lower)
	})
}

// WithDiagnostics drops files that have nothing to report.
func WithDiagnostics(r *model.Report) *model.Report {
	return filter(r, func(*model.FileReport, *model.Diagnostic) bool { return true })
}

func filter(r *model.Report, keep func(*model.FileReport, *model.Diagnostic) bool) *model.Report {
	out := *r
	out.Files = nil
	for i := range r.Files {
		f := r.Files[i]
		var diags []model.Diagnostic
		for j := range f.Diagnostics {
			if keep(&f, &f.Diagnostics[j]) {
				diags = append(diags, f.Diagnostics[j])
			}
		}
		if len(diags) == 0 {
			continue
		}
		f.Diagnostics = diags
		out.Files = append(out.Files, f)
	}
	return &out
}
