package model

import (
	"sort"
)

// Metadata names of core library types the engine reasons about.
const (
	ObjectName            = "System.Object"
	ValueTypeName         = "System.ValueType"
	EnumName              = "System.Enum"
	StringName            = "System.String"
	ArrayName             = "System.Array"
	VoidName              = "System.Void"
	NullableName          = "System.Nullable`1"
	DelegateName          = "System.Delegate"
	MulticastDelegateName = "System.MulticastDelegate"
	SystemTypeName        = "System.Type"
	BooleanName           = "System.Boolean"
	CharName              = "System.Char"
	Int32Name             = "System.Int32"
	Int64Name             = "System.Int64"
	DoubleName            = "System.Double"
)

// Keywords maps C# predefined type keywords to metadata names.
var Keywords = map[string]string{
	"object":  ObjectName,
	"string":  StringName,
	"bool":    BooleanName,
	"char":    CharName,
	"sbyte":   "System.SByte",
	"byte":    "System.Byte",
	"short":   "System.Int16",
	"ushort":  "System.UInt16",
	"int":     Int32Name,
	"uint":    "System.UInt32",
	"long":    Int64Name,
	"ulong":   "System.UInt64",
	"float":   "System.Single",
	"double":  DoubleName,
	"decimal": "System.Decimal",
	"nint":    "System.IntPtr",
	"nuint":   "System.UIntPtr",
	"void":    VoidName,
}

// Universe looks up type definitions by metadata name. It is the capability
// the engine needs from a host's semantic model.
type Universe interface {
	Lookup(metadataName string) (*Type, bool)
}

// Catalog is an in-memory Universe. A new catalog already contains the core
// library types.
type Catalog struct {
	types map[string]*Type
	names []string
}

// NewCatalog returns a catalog seeded with the core library.
func NewCatalog() *Catalog {
	c := newEmptyCatalog()
	for _, name := range corlib.names {
		c.Add(corlib.types[name])
	}
	return c
}

func newEmptyCatalog() *Catalog {
	return &Catalog{types: make(map[string]*Type)}
}

// Add registers t under its metadata name. A later type with the same name
// replaces the earlier one.
func (c *Catalog) Add(t *Type) {
	if _, ok := c.types[t.Name]; !ok {
		c.names = append(c.names, t.Name)
	}
	c.types[t.Name] = t
}

// Lookup returns the type definition with the given metadata name.
func (c *Catalog) Lookup(name string) (*Type, bool) {
	t, ok := c.types[name]
	return t, ok
}

// Types returns all registered types in registration order.
func (c *Catalog) Types() []*Type {
	out := make([]*Type, len(c.names))
	for i, n := range c.names {
		out[i] = c.types[n]
	}
	return out
}

// Namespaces returns the sorted set of namespaces with at least one type.
func (c *Catalog) Namespaces() []string {
	seen := make(map[string]struct{})
	for _, t := range c.types {
		seen[t.Namespace()] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) mustLookup(name string) *Type {
	t, ok := c.types[name]
	if !ok {
		panic("model: core library type missing: " + name)
	}
	return t
}

// Builtin returns the core library type with the given metadata name, or nil.
func Builtin(name string) *Type {
	t, _ := corlib.Lookup(name)
	return t
}

var (
	voidType = &Type{Name: VoidName, Kind: Struct, Accessibility: Public, Sealed: true, MetadataOnly: true}
	corlib   = buildCorlib()
)

func buildCorlib() *Catalog {
	c := newEmptyCatalog()
	def := func(name string, kind TypeKind, base *Type, ifaces ...*Type) *Type {
		t := NewType(name, kind)
		t.MetadataOnly = true
		t.Base = base
		t.Interfaces = ifaces
		if kind == Struct || kind == Enum {
			t.Sealed = true
		}
		c.Add(t)
		return t
	}
	generic := func(t *Type, names ...string) []*Type {
		out := make([]*Type, len(names))
		for i, n := range names {
			p := NewGenericParameter(n, i, false)
			t.TypeParams = append(t.TypeParams, p)
			out[i] = p.Type()
		}
		return out
	}

	object := def(ObjectName, Class, nil)
	c.Add(voidType)
	valueType := def(ValueTypeName, Class, object)
	valueType.Abstract = true

	iComparable := def("System.IComparable", Interface, nil)
	iFormattable := def("System.IFormattable", Interface, nil)
	iConvertible := def("System.IConvertible", Interface, nil)
	def("System.IDisposable", Interface, nil)
	iCloneable := def("System.ICloneable", Interface, nil)
	iEnumerable := def("System.Collections.IEnumerable", Interface, nil)
	iCollection := def("System.Collections.ICollection", Interface, nil, iEnumerable)
	iList := def("System.Collections.IList", Interface, nil, iCollection, iEnumerable)

	iComparableT := def("System.IComparable`1", Interface, nil)
	generic(iComparableT, "T")
	iEquatableT := def("System.IEquatable`1", Interface, nil)
	generic(iEquatableT, "T")

	iEnumerableT := def("System.Collections.Generic.IEnumerable`1", Interface, nil)
	generic(iEnumerableT, "T")
	iEnumerableT.Interfaces = []*Type{iEnumerable}
	iCollectionT := def("System.Collections.Generic.ICollection`1", Interface, nil)
	ct := generic(iCollectionT, "T")
	iCollectionT.Interfaces = []*Type{Construct(iEnumerableT, ct[0]), iEnumerable}
	iListT := def("System.Collections.Generic.IList`1", Interface, nil)
	lt := generic(iListT, "T")
	iListT.Interfaces = []*Type{Construct(iCollectionT, lt[0]), Construct(iEnumerableT, lt[0]), iEnumerable}
	iReadOnlyCollectionT := def("System.Collections.Generic.IReadOnlyCollection`1", Interface, nil)
	rct := generic(iReadOnlyCollectionT, "T")
	iReadOnlyCollectionT.Interfaces = []*Type{Construct(iEnumerableT, rct[0]), iEnumerable}
	iReadOnlyListT := def("System.Collections.Generic.IReadOnlyList`1", Interface, nil)
	rlt := generic(iReadOnlyListT, "T")
	iReadOnlyListT.Interfaces = []*Type{Construct(iReadOnlyCollectionT, rlt[0]), Construct(iEnumerableT, rlt[0]), iEnumerable}

	enum := def(EnumName, Class, valueType, iComparable, iFormattable, iConvertible)
	enum.Abstract = true

	primitive := func(name string, formattable bool) *Type {
		t := def(name, Struct, valueType)
		ifaces := []*Type{iComparable}
		if formattable {
			ifaces = append(ifaces, iFormattable)
		}
		ifaces = append(ifaces, iConvertible, Construct(iComparableT, t), Construct(iEquatableT, t))
		t.Interfaces = ifaces
		t.AddMember(NewMethod("ToString", Public, false, nil))
		t.AddMember(NewMethod("GetHashCode", Public, false, nil))
		return t
	}
	boolean := primitive(BooleanName, false)
	char := primitive(CharName, false)
	for _, n := range []string{"System.SByte", "System.Byte", "System.Int16", "System.UInt16",
		"System.UInt32", "System.Int64", "System.UInt64", "System.Single", "System.Double",
		"System.Decimal", "System.IntPtr", "System.UIntPtr"} {
		primitive(n, true)
	}
	int32 := primitive(Int32Name, true)

	str := def(StringName, Class, object, iComparable, iCloneable, iConvertible, iEnumerable)
	str.Sealed = true
	str.Interfaces = append(str.Interfaces,
		Construct(iEnumerableT, char), Construct(iComparableT, str), Construct(iEquatableT, str))

	object.AddMember(NewConstructor(Public))
	object.AddMember(NewMethod("ToString", Public, false, str)).Virtual = true
	object.AddMember(NewMethod("Equals", Public, false, boolean, NewParameter("obj", object))).Virtual = true
	object.AddMember(NewMethod("Equals", Public, true, boolean, NewParameter("objA", object), NewParameter("objB", object)))
	object.AddMember(NewMethod("ReferenceEquals", Public, true, boolean, NewParameter("objA", object), NewParameter("objB", object)))
	object.AddMember(NewMethod("GetHashCode", Public, false, int32)).Virtual = true
	object.AddMember(NewMethod("Finalize", Protected, false, nil)).Virtual = true
	object.AddMember(NewMethod("MemberwiseClone", Protected, false, object))

	// Primitive overrides were declared before String existed.
	for _, t := range c.types {
		if t.Kind != Struct {
			continue
		}
		for _, m := range t.Members {
			switch m.Name {
			case "ToString":
				m.Type, m.Override = str, true
			case "GetHashCode":
				m.Type, m.Override = int32, true
			}
		}
	}

	int32.AddMember(NewField("MaxValue", Public, true, int32))
	int32.AddMember(NewField("MinValue", Public, true, int32))
	int32.AddMember(NewMethod("Parse", Public, true, int32, NewParameter("s", str)))
	int32.AddMember(NewMethod("CompareTo", Public, false, int32, NewParameter("value", object)))
	int32.AddMember(NewMethod("CompareTo", Public, false, int32, NewParameter("value", int32)))
	int32.AddMember(NewMethod("ToString", Public, false, str, NewParameter("format", str)))

	str.AddMember(NewConstructor(Public, NewParameter("value", ArrayOf(char, 1))))
	str.AddMember(NewConstructor(Public, NewParameter("c", char), NewParameter("count", int32)))
	str.AddMember(NewField("Empty", Public, true, str))
	str.AddMember(NewProperty("Length", Public, false, int32, true, false))
	str.AddMember(NewIndexer("Chars", Public, char, true, false, NewParameter("index", int32)))
	str.AddMember(NewMethod("Substring", Public, false, str, NewParameter("startIndex", int32)))
	str.AddMember(NewMethod("Substring", Public, false, str, NewParameter("startIndex", int32), NewParameter("length", int32)))
	str.AddMember(NewMethod("IsNullOrEmpty", Public, true, boolean, NewParameter("value", str)))
	str.AddMember(NewMethod("ToString", Public, false, str)).Override = true

	array := def(ArrayName, Class, object, iCloneable, iList, iCollection, iEnumerable)
	array.Abstract = true
	array.AddMember(NewProperty("Length", Public, false, int32, true, false))
	empty := array.AddMember(NewMethod("Empty", Public, true, nil))
	ep := NewGenericParameter("T", 0, true)
	empty.TypeParams = []*GenericParameter{ep}
	empty.Type = ArrayOf(ep.Type(), 1)

	delegate := def(DelegateName, Class, object, iCloneable)
	delegate.Abstract = true
	multicast := def(MulticastDelegateName, Class, delegate)
	multicast.Abstract = true
	action := def("System.Action", Delegate, multicast)
	action.Sealed = true
	eventHandler := def("System.EventHandler", Delegate, multicast)
	eventHandler.Sealed = true

	systemType := def(SystemTypeName, Class, object)
	systemType.Abstract = true
	systemType.AddMember(NewField("EmptyTypes", Public, true, ArrayOf(systemType, 1)))
	systemType.AddMember(NewField("Missing", Public, true, object))
	systemType.AddMember(NewProperty("IsValueType", Public, false, boolean, true, false))
	object.AddMember(NewMethod("GetType", Public, false, systemType))

	exception := def("System.Exception", Class, object)
	exception.AddMember(NewConstructor(Public))
	exception.AddMember(NewConstructor(Public, NewParameter("message", str)))
	exception.AddMember(NewProperty("Message", Public, false, str, true, false)).Virtual = true
	attribute := def("System.Attribute", Class, object)
	attribute.Abstract = true

	nullable := def(NullableName, Struct, valueType)
	nt := generic(nullable, "T")
	nullable.TypeParams[0].Flags = ValueTypeConstraint
	nullable.AddMember(NewConstructor(Public, NewParameter("value", nt[0])))
	nullable.AddMember(NewProperty("HasValue", Public, false, boolean, true, false))
	nullable.AddMember(NewProperty("Value", Public, false, nt[0], true, false))
	nullable.AddMember(NewMethod("GetValueOrDefault", Public, false, nt[0]))

	list := def("System.Collections.Generic.List`1", Class, object)
	lp := generic(list, "T")
	list.Interfaces = []*Type{
		Construct(iListT, lp[0]), Construct(iCollectionT, lp[0]), Construct(iEnumerableT, lp[0]),
		Construct(iReadOnlyListT, lp[0]), Construct(iReadOnlyCollectionT, lp[0]),
		iList, iCollection, iEnumerable,
	}
	list.AddMember(NewConstructor(Public))
	list.AddMember(NewConstructor(Public, NewParameter("capacity", int32)))
	list.AddMember(NewConstructor(Public, NewParameter("collection", Construct(iEnumerableT, lp[0]))))
	list.AddMember(NewMethod("Add", Public, false, nil, NewParameter("item", lp[0])))
	list.AddMember(NewMethod("Clear", Public, false, nil))
	list.AddMember(NewProperty("Count", Public, false, int32, true, false))
	list.AddMember(NewProperty("Capacity", Public, false, int32, true, true))
	list.AddMember(NewIndexer(DefaultIndexerName, Public, lp[0], true, true, NewParameter("index", int32)))

	dict := def("System.Collections.Generic.Dictionary`2", Class, object)
	dp := generic(dict, "TKey", "TValue")
	dict.Interfaces = []*Type{iCollection, iEnumerable}
	dict.AddMember(NewConstructor(Public))
	dict.AddMember(NewMethod("Add", Public, false, nil, NewParameter("key", dp[0]), NewParameter("value", dp[1])))
	dict.AddMember(NewMethod("TryGetValue", Public, false, boolean,
		NewParameter("key", dp[0]), &Parameter{Name: "value", Type: dp[1], ByRef: true}))
	dict.AddMember(NewMethod("ContainsKey", Public, false, boolean, NewParameter("key", dp[0])))
	dict.AddMember(NewProperty("Count", Public, false, int32, true, false))
	dict.AddMember(NewIndexer(DefaultIndexerName, Public, dp[1], true, true, NewParameter("key", dp[0])))

	return c
}
