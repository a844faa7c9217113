// Package lang registers the tree-sitter grammars reflguard parses and the
// embedded queries that locate reflection calls in them.
package lang

import (
	"embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

//go:embed queries/*.scm
var queryFS embed.FS

var spaceRun = regexp.MustCompile(`\s+`)

// Language is a registered grammar with its call query.
type Language struct {
	Name       string
	Extensions []string
	grammar    *sitter.Language

	once     sync.Once
	calls    *sitter.Query
	callsErr error
}

// Grammar returns the tree-sitter grammar.
func (l *Language) Grammar() *sitter.Language {
	return l.grammar
}

// NewParser returns a parser for the language. Parsers are not safe for
// concurrent use; give each goroutine its own.
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.grammar)
	return p
}

// CallQuery returns the compiled query for queries/<name>.scm. The query is
// compiled once and may be shared across goroutines.
func (l *Language) CallQuery() (*sitter.Query, error) {
	l.once.Do(func() {
		data, err := queryFS.ReadFile("queries/" + l.Name + ".scm")
		if err != nil {
			l.callsErr = fmt.Errorf("reading %s query: %w", l.Name, err)
			return
		}
		l.calls, l.callsErr = sitter.NewQuery(data, l.grammar)
		if l.callsErr != nil {
			l.callsErr = fmt.Errorf("compiling %s query: %w", l.Name, l.callsErr)
		}
	})
	return l.calls, l.callsErr
}

var (
	byName = map[string]*Language{}
	byExt  = map[string]*Language{}
)

// Register adds l to the registry. It is meant for package init functions
// and panics on a duplicate name or extension.
func Register(l *Language) {
	if _, dup := byName[l.Name]; dup {
		panic("lang: duplicate language " + l.Name)
	}
	byName[l.Name] = l
	for _, ext := range l.Extensions {
		ext = strings.ToLower(ext)
		if other, dup := byExt[ext]; dup {
			panic("lang: extension " + ext + " claimed by " + other.Name + " and " + l.Name)
		}
		byExt[ext] = l
	}
}

// Get returns the language registered as name, or nil.
func Get(name string) *Language {
	return byName[name]
}

// ForExtension returns the name of the language handling ext, or "" if none
// does. The comparison ignores case.
func ForExtension(ext string) string {
	if l := byExt[strings.ToLower(ext)]; l != nil {
		return l.Name
	}
	return ""
}

// Matches runs query over node and returns the matches that satisfy the
// query's predicates, in document order.
func Matches(query *sitter.Query, node *sitter.Node, source []byte) []*sitter.QueryMatch {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, node)

	var out []*sitter.QueryMatch
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)
		if len(match.Captures) == 0 {
			continue
		}
		out = append(out, match)
	}
	return out
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
