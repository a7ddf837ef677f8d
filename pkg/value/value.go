// Package value defines the tagged runtime value used throughout loxgo:
// the VM's stack, the compiler's constant pools, and every heap object's
// fields all hold a value.Value.
//
// Representation:
//
// A Value is a small tagged union over four variants: nil, bool, number
// (float64), and object reference. Go has no native sum type, so this is
// modeled as a struct carrying a Kind discriminant plus one field per
// variant; only the field matching Kind is meaningful. This is the
// "tagged value" approach, not NaN-boxing — see DESIGN.md for why.
//
// Object references (the fourth variant) are anything implementing Obj:
// interned strings live in this package (ObjString) to avoid an import
// cycle with pkg/object, which defines the heavier object kinds
// (functions, closures, classes, ...).
package value

import "fmt"

// Kind discriminates which field of a Value is meaningful.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObj
)

// Obj is implemented by every heap-allocated object kind (ObjString here,
// and Function/Native/Closure/Upvalue/Class/Instance/BoundMethod in
// pkg/object). It carries the bookkeeping the garbage collector and the
// intrusive all-objects list need, without this package knowing anything
// about those concrete types.
type Obj interface {
	// ObjKind returns a small tag for debugging/printing; concrete
	// meaning belongs to the defining package.
	ObjKind() string
	// IsMarked/SetMarked track the collector's tri-color state.
	IsMarked() bool
	SetMarked(bool)
	// Next/SetNext thread the intrusive "all objects" list so the sweep
	// phase can walk every live allocation without a separate registry.
	Next() Obj
	SetNext(Obj)
}

// Value is the tagged runtime value. Zero value is KindNil.
type Value struct {
	Kind Kind
	Bool bool
	Num  float64
	Obj  Obj
}

// Nil is the canonical nil value.
var Nil = Value{Kind: KindNil}

// Bool constructs a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Number constructs a numeric Value.
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// NewObj constructs a Value wrapping a heap object reference.
func NewObj(o Obj) Value { return Value{Kind: KindObj, Obj: o} }

func (v Value) IsNil() bool    { return v.Kind == KindNil }
func (v Value) IsBool() bool   { return v.Kind == KindBool }
func (v Value) IsNumber() bool { return v.Kind == KindNumber }
func (v Value) IsObj() bool    { return v.Kind == KindObj }

// IsString reports whether v holds an interned ObjString.
func (v Value) IsString() bool {
	if v.Kind != KindObj {
		return false
	}
	_, ok := v.Obj.(*ObjString)
	return ok
}

// AsString extracts the interned string's bytes. Caller must have checked
// IsString.
func (v Value) AsString() *ObjString { return v.Obj.(*ObjString) }

// IsFalsey reports the language's truthiness law: nil and false are
// falsey, everything else (including 0 and "") is truthy.
func (v Value) IsFalsey() bool {
	switch v.Kind {
	case KindNil:
		return true
	case KindBool:
		return !v.Bool
	default:
		return false
	}
}

// Equal implements values_equal: differing variants are never equal;
// matching variants compare structurally, which for object references
// means reference identity (interning makes that content equality for
// strings, since two equal-content strings are always the same ObjString).
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindNumber:
		return a.Num == b.Num
	case KindObj:
		return a.Obj == b.Obj
	default:
		return false
	}
}

// String renders a Value the way the REPL/print statement does.
func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.Num)
	case KindObj:
		return fmt.Sprintf("%v", v.Obj)
	default:
		return "<invalid value>"
	}
}

func formatNumber(n float64) string {
	// %g avoids trailing zeros for integral doubles ("3" not "3.000000")
	// while still round-tripping fractional values.
	return fmt.Sprintf("%g", n)
}
