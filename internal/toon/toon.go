// Package toon implements TOON (Token-Oriented Object Notation) encoding of
// check reports.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/reflguard/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a Report into TOON format. Files are listed in report
// order; diagnostics follow their file's position in that order.
func Encode(r *model.Report) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("repo: %s", encodeValue(r.RepoName)))
	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(r.Root)))
	parts = append(parts, fmt.Sprintf("types: %d", r.Types))
	parts = append(parts, fmt.Sprintf("callsites: %d", r.CallSites))

	var fileRows [][]string
	for i := range r.Files {
		f := &r.Files[i]
		fileRows = append(fileRows, []string{
			f.Path,
			strconv.Itoa(f.CallSites),
			strconv.Itoa(len(f.Diagnostics)),
			fmt.Sprintf("%.4f", f.Score),
		})
	}
	parts = append(parts, formatTabular("files", []string{"path", "callsites", "diagnostics", "score"}, fileRows))

	var diagRows [][]string
	for i := range r.Files {
		for _, d := range r.Files[i].Diagnostics {
			diagRows = append(diagRows, []string{
				d.File,
				strconv.Itoa(d.Line),
				strconv.Itoa(d.Column),
				d.Rule,
				string(d.Severity),
				d.Message,
				d.Fix,
			})
		}
	}
	parts = append(parts, formatTabular("diagnostics",
		[]string{"file", "line", "column", "rule", "severity", "message", "fix"}, diagRows))

	if len(r.Cycles) > 0 {
		var cycleRows [][]string
		for _, c := range r.Cycles {
			cycleRows = append(cycleRows, []string{c.Type, c.Base})
		}
		parts = append(parts, formatTabular("cycles", []string{"type", "base"}, cycleRows))
	}

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	switch {
	case value == "":
		return `""`
	case value != strings.TrimSpace(value), strings.ContainsAny(value, "\n\r\t"):
		return quote(value)
	}
	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}
	if looksNumeric.MatchString(value) {
		return value
	}
	if needsQuoting.MatchString(value) || strings.HasPrefix(value, "-") {
		return quote(value)
	}
	return value
}

var quoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

func quote(value string) string {
	return `"` + quoter.Replace(value) + `"`
}
