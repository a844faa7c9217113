// Package flags models System.Reflection.BindingFlags: the bit values,
// folding of flag expressions found at call sites, the minimal flags a
// member needs and the verdict on flags a caller supplied.
package flags

import (
	"math/bits"
	"sort"
	"strconv"
	"strings"
)

// Flags is a BindingFlags bit-set using the platform's bit values.
type Flags uint32

const (
	Default              Flags = 0
	IgnoreCase           Flags = 1 << 0
	DeclaredOnly         Flags = 1 << 1
	Instance             Flags = 1 << 2
	Static               Flags = 1 << 3
	Public               Flags = 1 << 4
	NonPublic            Flags = 1 << 5
	FlattenHierarchy     Flags = 1 << 6
	InvokeMethod         Flags = 1 << 8
	CreateInstance       Flags = 1 << 9
	GetField             Flags = 1 << 10
	SetField             Flags = 1 << 11
	GetProperty          Flags = 1 << 12
	SetProperty          Flags = 1 << 13
	PutDispProperty      Flags = 1 << 14
	PutRefDispProperty   Flags = 1 << 15
	ExactBinding         Flags = 1 << 16
	SuppressChangeType   Flags = 1 << 17
	OptionalParamBinding Flags = 1 << 18
	IgnoreReturn         Flags = 1 << 24
	DoNotWrapExceptions  Flags = 1 << 25
)

// Structural is the subset of flags that affects which members a lookup
// selects.
const Structural = Public | NonPublic | Instance | Static | DeclaredOnly | FlattenHierarchy

// Lookups the platform performs when a call passes no flags.
const (
	DefaultLookup            = Public | Instance | Static
	DefaultConstructorLookup = Public | Instance
	DefaultNestedLookup      = Public
)

// TypeName is the simple name of the enum in source.
const TypeName = "BindingFlags"

// names lists every flag in canonical order: visibility, then
// static/instance, then search scope, then the rest by value.
var names = []struct {
	name string
	flag Flags
}{
	{"Public", Public},
	{"NonPublic", NonPublic},
	{"Static", Static},
	{"Instance", Instance},
	{"DeclaredOnly", DeclaredOnly},
	{"FlattenHierarchy", FlattenHierarchy},
	{"IgnoreCase", IgnoreCase},
	{"InvokeMethod", InvokeMethod},
	{"CreateInstance", CreateInstance},
	{"GetField", GetField},
	{"SetField", SetField},
	{"GetProperty", GetProperty},
	{"SetProperty", SetProperty},
	{"PutDispProperty", PutDispProperty},
	{"PutRefDispProperty", PutRefDispProperty},
	{"ExactBinding", ExactBinding},
	{"SuppressChangeType", SuppressChangeType},
	{"OptionalParamBinding", OptionalParamBinding},
	{"IgnoreReturn", IgnoreReturn},
	{"DoNotWrapExceptions", DoNotWrapExceptions},
}

var byName = func() map[string]Flags {
	m := make(map[string]Flags, len(names)+1)
	for _, n := range names {
		m[n.name] = n.flag
	}
	m["Default"] = Default
	return m
}()

// Lookup returns the flag with the given member name of the enum.
func Lookup(name string) (Flags, bool) {
	f, ok := byName[name]
	return f, ok
}

// Has reports whether all bits of x are set.
func (f Flags) Has(x Flags) bool {
	return f&x == x
}

// HasAny reports whether any bit of x is set.
func (f Flags) HasAny(x Flags) bool {
	return f&x != 0
}

// Structural returns the member-selecting bits of f.
func (f Flags) Structural() Flags {
	return f & Structural
}

// Effective fills in the dimensions a caller left out: Public when neither
// Public nor NonPublic is set, Instance when neither Static nor Instance is.
func (f Flags) Effective() Flags {
	if !f.HasAny(Public | NonPublic) {
		f |= Public
	}
	if !f.HasAny(Static | Instance) {
		f |= Instance
	}
	return f
}

// Names returns the names of the set flags in canonical order. Bits with no
// name are rendered as a number.
func (f Flags) Names() []string {
	if f == Default {
		return []string{"Default"}
	}
	var out []string
	rest := f
	for _, n := range names {
		if f.Has(n.flag) {
			out = append(out, n.name)
			rest &^= n.flag
		}
	}
	if rest != 0 {
		out = append(out, strconv.FormatUint(uint64(rest), 10))
	}
	return out
}

// String renders f as a C# expression qualified with BindingFlags.
func (f Flags) String() string {
	return f.Format(false)
}

// Format renders f as a C# expression. With unqualified set the flag names
// are written bare, as under `using static System.Reflection.BindingFlags`.
func (f Flags) Format(unqualified bool) string {
	parts := f.Names()
	for i, p := range parts {
		if _, err := strconv.ParseUint(p, 10, 32); err == nil {
			parts[i] = "(" + TypeName + ")" + p
			continue
		}
		if !unqualified {
			parts[i] = TypeName + "." + p
		}
	}
	return strings.Join(parts, " | ")
}

// Count returns the number of set bits.
func (f Flags) Count() int {
	return bits.OnesCount32(uint32(f))
}

func rank(f Flags) int {
	for i, n := range names {
		if n.flag == f {
			return i
		}
	}
	return len(names)
}

// InCanonicalOrder reports whether the flags, as written left to right,
// follow the canonical order. Default and numeric tokens are ignored.
func InCanonicalOrder(written []Flags) bool {
	ranks := make([]int, 0, len(written))
	for _, f := range written {
		if f.Count() != 1 {
			continue
		}
		ranks = append(ranks, rank(f))
	}
	return sort.IntsAreSorted(ranks)
}
