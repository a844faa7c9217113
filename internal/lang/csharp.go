package lang

import (
	"github.com/smacker/go-tree-sitter/csharp"
)

// CSharp is the name C# is registered under.
const CSharp = "csharp"

func init() {
	Register(&Language{
		Name:       CSharp,
		Extensions: []string{".cs"},
		grammar:    csharp.GetLanguage(),
	})
}
