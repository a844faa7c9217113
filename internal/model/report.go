package model

// Severity ranks how serious a diagnostic is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Weight orders severities for ranking; higher is more serious.
func (s Severity) Weight() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Weight() > 0
}

// Diagnostic is a single finding at a reflection call site.
type Diagnostic struct {
	Rule     string   `yaml:"rule"`
	Severity Severity `yaml:"severity"`
	Message  string   `yaml:"message"`
	File     string   `yaml:"file"`
	Line     int      `yaml:"line"`
	Column   int      `yaml:"column"`
	// Fix is replacement text for the offending expression, if any.
	Fix string `yaml:"fix,omitempty"`
}

// FileReport holds the diagnostics raised in one source file.
type FileReport struct {
	Path        string       `yaml:"path"`
	CallSites   int          `yaml:"callsites"`
	Diagnostics []Diagnostic `yaml:"diagnostics,omitempty"`
	Score       float64      `yaml:"score"`
}

// Cycle is an inheritance edge from a type to one of its bases that made
// the type its own ancestor.
type Cycle struct {
	Type string `yaml:"type"`
	Base string `yaml:"base"`
}

// Report is the complete result of checking a repository, ready for
// serialization.
type Report struct {
	RepoName string       `yaml:"repo"`
	Root     string       `yaml:"root"`
	Files    []FileReport `yaml:"files"`
	// Cycles lists inheritance edges ignored because they closed a cycle.
	Cycles []Cycle `yaml:"cycles,omitempty"`
	// Types and CallSites count what the analysis saw.
	Types     int `yaml:"types"`
	CallSites int `yaml:"callsites"`
}

// Count returns the number of diagnostics across all files.
func (r *Report) Count() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Diagnostics)
	}
	return n
}

// HasSeverity reports whether any diagnostic has severity s.
func (r *Report) HasSeverity(s Severity) bool {
	for _, f := range r.Files {
		for _, d := range f.Diagnostics {
			if d.Severity == s {
				return true
			}
		}
	}
	return false
}
