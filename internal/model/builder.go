package model

// Constructors for members, used by model producers and tests.

// NewParameter returns a required by-value parameter.
func NewParameter(name string, t *Type) *Parameter {
	return &Parameter{Name: name, Type: t}
}

// NewOptionalParameter returns a parameter with a default value.
func NewOptionalParameter(name string, t *Type) *Parameter {
	return &Parameter{Name: name, Type: t, Optional: true, HasDefault: true}
}

// NewParamsParameter returns a params array parameter of elem.
func NewParamsParameter(name string, elem *Type) *Parameter {
	return &Parameter{Name: name, Type: ArrayOf(elem, 1), IsParams: true}
}

// NewMethod returns a method member. ret may be nil for void.
func NewMethod(name string, acc Accessibility, static bool, ret *Type, params ...*Parameter) *Member {
	if ret == nil {
		ret = voidType
	}
	return &Member{
		Kind:          Method,
		Name:          name,
		Accessibility: acc,
		Static:        static,
		Type:          ret,
		Parameters:    params,
	}
}

// NewConstructor returns an instance constructor.
func NewConstructor(acc Accessibility, params ...*Parameter) *Member {
	return &Member{
		Kind:          Constructor,
		Name:          ConstructorName,
		Accessibility: acc,
		Parameters:    params,
	}
}

// NewStaticConstructor returns a type initializer.
func NewStaticConstructor() *Member {
	return &Member{
		Kind:          Constructor,
		Name:          StaticConstructorName,
		Accessibility: Private,
		Static:        true,
	}
}

// NewField returns a field member.
func NewField(name string, acc Accessibility, static bool, t *Type) *Member {
	return &Member{Kind: Field, Name: name, Accessibility: acc, Static: static, Type: t}
}

// NewProperty returns a property with accessors sharing its accessibility.
// Indexer parameters, if any, are copied onto the accessors.
func NewProperty(name string, acc Accessibility, static bool, t *Type, get, set bool, params ...*Parameter) *Member {
	p := &Member{
		Kind:          Property,
		Name:          name,
		Accessibility: acc,
		Static:        static,
		Type:          t,
		Parameters:    params,
	}
	if get {
		p.Getter = NewMethod("get_"+name, acc, static, t, params...)
	}
	if set {
		setParams := append(append([]*Parameter(nil), params...), NewParameter("value", t))
		p.Setter = NewMethod("set_"+name, acc, static, nil, setParams...)
	}
	return p
}

// NewIndexer returns an indexer property named name (usually "Item").
func NewIndexer(name string, acc Accessibility, t *Type, get, set bool, params ...*Parameter) *Member {
	p := NewProperty(name, acc, false, t, get, set, params...)
	p.Indexer = true
	return p
}

// NewEvent returns an event with add and remove accessors.
func NewEvent(name string, acc Accessibility, static bool, handler *Type) *Member {
	return &Member{
		Kind:          Event,
		Name:          name,
		Accessibility: acc,
		Static:        static,
		Type:          handler,
		Adder:         NewMethod("add_"+name, acc, static, nil, NewParameter("value", handler)),
		Remover:       NewMethod("remove_"+name, acc, static, nil, NewParameter("value", handler)),
	}
}

// NewNestedType returns the member entry for a nested type declaration.
func NewNestedType(nested *Type) *Member {
	return &Member{
		Kind:          NestedType,
		Name:          nested.SimpleNameWithArity(),
		Accessibility: nested.Accessibility,
		Static:        true,
		Nested:        nested,
	}
}

// SimpleNameWithArity returns the last name segment with its `N suffix, as
// GetNestedType expects it.
func (t *Type) SimpleNameWithArity() string {
	name := t.Definition().Name
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' || name[i] == '+' {
			return name[i+1:]
		}
	}
	return name
}
