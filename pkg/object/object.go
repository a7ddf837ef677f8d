// Package object implements the heap object kinds beyond the interned
// string (which lives in pkg/value to avoid an import cycle): functions,
// native functions, closures, upvalues, classes, instances, and bound
// methods. It also owns the Heap — the intrusive all-objects list, the
// string intern table, and the allocation-pressure counters the garbage
// collector (pkg/vm/gc.go) is driven by.
package object

import (
	"fmt"

	"github.com/kristofer/loxgo/pkg/chunk"
	"github.com/kristofer/loxgo/pkg/table"
	"github.com/kristofer/loxgo/pkg/value"
)

// Function is a compiled function body: arity, upvalue count, its own
// Chunk, and an optional name (nil for the implicit top-level script).
type Function struct {
	value.ObjHeader
	Arity        int
	UpvalueCount int
	Chunk        *chunk.Chunk
	Name         *value.ObjString
}

func (f *Function) ObjKind() string { return "function" }
func (f *Function) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// NativeFn is the signature every native (host) function implements.
type NativeFn func(args []value.Value) (value.Value, error)

// Native wraps a host function so it can be stored in a Value and called
// like any other callable.
type Native struct {
	value.ObjHeader
	Name string
	Fn   NativeFn
}

func (n *Native) ObjKind() string { return "native" }
func (n *Native) String() string  { return fmt.Sprintf("<native fn %s>", n.Name) }

// Upvalue is a reference to a captured variable: open while Location
// still points into a live VM stack slot, closed after the owning frame
// returns and the value has been copied into Closed.
type Upvalue struct {
	value.ObjHeader
	Location *value.Value
	Closed   value.Value
	NextOpen *Upvalue // open-upvalue list link, strictly descending by stack address
}

func (u *Upvalue) ObjKind() string { return "upvalue" }
func (u *Upvalue) String() string  { return "<upvalue>" }

// Closure pairs a Function with the upvalues it captured at creation
// time. Every callable value the VM actually invokes is a Closure (even
// the top-level script is wrapped in one), so the VM never has to
// special-case a bare Function.
type Closure struct {
	value.ObjHeader
	Function *Function
	Upvalues []*Upvalue
}

func (c *Closure) ObjKind() string { return "closure" }
func (c *Closure) String() string  { return c.Function.String() }

// Class is a named bag of methods (String -> *Closure, via pkg/table).
// Single inheritance is realized at OP_INHERIT time by copying the
// superclass's method table into the subclass's: a snapshot, not a
// live link, so a method added to the superclass after a subclass
// already exists is not visible through it.
type Class struct {
	value.ObjHeader
	Name    *value.ObjString
	Methods *table.Table
}

func (c *Class) ObjKind() string { return "class" }
func (c *Class) String() string  { return c.Name.Chars }

// NewClass allocates a class with an empty method table.
func NewClass(name *value.ObjString) *Class {
	return &Class{Name: name, Methods: table.New()}
}

// Instance is a Class reference plus a String -> Value field table.
// Fields are created lazily on first assignment (property set): there is
// no fixed field list, any name can be assigned at any time.
type Instance struct {
	value.ObjHeader
	Class  *Class
	Fields *table.Table
}

func (i *Instance) ObjKind() string { return "instance" }
func (i *Instance) String() string  { return fmt.Sprintf("%s instance", i.Class.Name.Chars) }

// NewInstance allocates an instance of class with an empty field table.
func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, Fields: table.New()}
}

// BoundMethod pairs a receiver with the Closure looked up for it: the
// receiver `this` will refer to inside the method body. Property reads
// that resolve to a method produce one of these; calling it re-installs
// the receiver as slot 0 before invoking the closure.
type BoundMethod struct {
	value.ObjHeader
	Receiver value.Value
	Method   *Closure
}

func (b *BoundMethod) ObjKind() string { return "bound method" }
func (b *BoundMethod) String() string  { return b.Method.String() }
