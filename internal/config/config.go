// Package config loads .reflguard.yaml, the per-repository settings of the
// checker, layered over embedded defaults.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	ignore "github.com/sabhiram/go-gitignore"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/reflguard/internal/analyze"
	"github.com/phobologic/reflguard/internal/model"
)

// FileName is the configuration file looked up at the repository root.
const FileName = ".reflguard.yaml"

//go:embed defaults.yaml
var defaultsYAML []byte

var (
	// ErrInvalidSeverity is returned for a severity other than error,
	// warning or info.
	ErrInvalidSeverity = errors.New("invalid severity")
	// ErrUnknownRule is returned for a rule id the catalog does not have.
	ErrUnknownRule = errors.New("unknown rule")
	// ErrInvalidValue is returned for out-of-range numeric settings.
	ErrInvalidValue = errors.New("invalid value")
)

// Rule overrides one catalog rule.
type Rule struct {
	// Enabled is nil when the file leaves the rule at its default.
	Enabled  *bool          `yaml:"enabled,omitempty"`
	Severity model.Severity `yaml:"severity,omitempty"`
}

// Config holds the checker settings.
//
// Thread Safety: immutable after Load; safe for concurrent use.
type Config struct {
	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int `yaml:"max_file_size"`
	// Workers bounds parse and analysis concurrency; 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
	// MaxFiles limits the report to the top-ranked files; 0 means all.
	MaxFiles int `yaml:"max_files"`

	Exclude   []string        `yaml:"exclude"`
	Generated []string        `yaml:"generated"`
	Rules     map[string]Rule `yaml:"rules"`

	generated *ignore.GitIgnore
}

// Default returns the embedded default configuration.
func Default() *Config {
	c, err := Parse(nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return c
}

// DefaultYAML returns the embedded default configuration file.
func DefaultYAML() []byte {
	return bytes.Clone(defaultsYAML)
}

// Parse decodes data over the defaults and validates the result. Lists in
// data replace the default lists; rules merge by id. Unknown keys are
// rejected.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	if err := decode(defaultsYAML, c); err != nil {
		return nil, err
	}
	if err := decode(data, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.compile()
	return c, nil
}

func decode(data []byte, c *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

// Load reads the configuration at path. An empty path loads FileName from
// root when it exists and the defaults otherwise.
func Load(path, root string) (*Config, error) {
	if path == "" {
		candidate := filepath.Join(root, FileName)
		if _, err := os.Stat(candidate); err != nil {
			return Default(), nil
		}
		path = candidate
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate checks rule ids, severities and numeric ranges.
func (c *Config) Validate() error {
	if c.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size %d: %w", c.MaxFileSize, ErrInvalidValue)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers %d: %w", c.Workers, ErrInvalidValue)
	}
	if c.MaxFiles < 0 {
		return fmt.Errorf("max_files %d: %w", c.MaxFiles, ErrInvalidValue)
	}
	for _, id := range c.ruleIDs() {
		if _, ok := analyze.RuleByID(id); !ok {
			return fmt.Errorf("rules.%s: %w", id, ErrUnknownRule)
		}
		if s := c.Rules[id].Severity; s != "" && !s.Valid() {
			return fmt.Errorf("rules.%s: %w %q", id, ErrInvalidSeverity, s)
		}
	}
	return nil
}

func (c *Config) ruleIDs() []string {
	ids := make([]string, 0, len(c.Rules))
	for id := range c.Rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Config) compile() {
	if len(c.Generated) > 0 {
		c.generated = ignore.CompileIgnoreLines(c.Generated...)
	}
}

// Enabled reports whether rule should be reported.
func (c *Config) Enabled(rule string) bool {
	r, ok := c.Rules[rule]
	return !ok || r.Enabled == nil || *r.Enabled
}

// Severity returns the configured severity of rule.
func (c *Config) Severity(rule string) model.Severity {
	if r, ok := c.Rules[rule]; ok && r.Severity != "" {
		return r.Severity
	}
	def, _ := analyze.RuleByID(rule)
	return def.Severity
}

// Apply drops diagnostics of disabled rules and rewrites severities.
func (c *Config) Apply(diags []model.Diagnostic) []model.Diagnostic {
	out := diags[:0]
	for _, d := range diags {
		if !c.Enabled(d.Rule) {
			continue
		}
		d.Severity = c.Severity(d.Rule)
		out = append(out, d)
	}
	return out
}

// IsGenerated reports whether the repo-relative path matches a generated
// pattern.
func (c *Config) IsGenerated(path string) bool {
	return c.generated != nil && c.generated.MatchesPath(filepath.ToSlash(path))
}
