package object

import (
	"github.com/kristofer/loxgo/pkg/chunk"
	"github.com/kristofer/loxgo/pkg/table"
	"github.com/kristofer/loxgo/pkg/value"
)

// gcHeapGrowFactor governs the collection heuristic: after a collection,
// the next one doesn't trigger again until allocation has roughly doubled.
const gcHeapGrowFactor = 2

// initialNextGC is kept low: these are tiny scripts, not embedding
// workloads, so a low threshold is what actually exercises the
// collector in ordinary test runs instead of letting every example
// finish comfortably under the first GC.
const initialNextGC = 1 << 10

// Collector is the hook the VM installs so the heap can ask for a
// collection when allocation pressure crosses NextGC, without this
// package importing pkg/vm (which imports this package).
type Collector interface {
	CollectGarbage()
}

// GCHost is the narrow slice of VM behavior the compiler needs to keep
// intermediate allocations reachable while it runs: push a
// partially-built value onto the VM stack before letting another
// allocation potentially trigger a collection, pop it once it's safely
// referenced elsewhere, e.g. installed in a constant pool. Defined here
// rather than in pkg/vm so pkg/compiler can depend on it without
// creating a compiler<->vm import cycle.
type GCHost interface {
	Push(value.Value)
	Pop() value.Value
}

// Heap owns every live Obj: the intrusive all-objects list the sweep phase
// walks, the string intern table, and the byte-counting that drives when
// the collector runs.
type Heap struct {
	objects        value.Obj
	strings        *table.Table
	BytesAllocated int
	NextGC         int
	collector      Collector
	stressGC       bool // collect before every allocation; test/debug aid
	LogGC          bool
}

// NewHeap returns an empty heap ready to allocate into.
func NewHeap() *Heap {
	return &Heap{strings: table.New(), NextGC: initialNextGC}
}

// SetCollector wires the heap to the VM that will perform collections.
// Must be called once, before any allocation that could cross NextGC.
func (h *Heap) SetCollector(c Collector) { h.collector = c }

// SetStressGC toggles collecting before every single allocation, useful
// for shaking out marking bugs in tests.
func (h *Heap) SetStressGC(on bool) { h.stressGC = on }

// Strings returns the intern table, so the collector can RemoveWhite it
// during sweep and the VM can look up the distinguished "init" string.
func (h *Heap) Strings() *table.Table { return h.strings }

// Objects returns the head of the intrusive all-objects list.
func (h *Heap) Objects() value.Obj { return h.objects }

// track runs the allocation-pressure accounting every Allocate* call goes
// through: add delta bytes, and if that crosses NextGC (or stress mode is
// on), ask the installed collector to run. Called before the new object is
// linked into the objects list, so a collection triggered by this very
// allocation cannot sweep the object that caused it before the caller has
// stored it anywhere reachable.
func (h *Heap) track(delta int) {
	h.BytesAllocated += delta
	if h.collector == nil {
		return
	}
	if h.stressGC || h.BytesAllocated > h.NextGC {
		h.collector.CollectGarbage()
		h.NextGC = h.BytesAllocated * gcHeapGrowFactor
	}
}

// link pushes obj onto the front of the intrusive all-objects list.
func (h *Heap) link(obj value.Obj) {
	obj.SetNext(h.objects)
	h.objects = obj
}

// sizeOf is a rough, stable-enough-to-compare cost estimate for the
// allocation-pressure counter. Real byte-for-byte struct sizes don't
// matter here, only that bigger objects count for more and the grow-factor
// heuristic behaves sensibly.
func sizeOf(o value.Obj) int {
	switch v := o.(type) {
	case *value.ObjString:
		return 24 + len(v.Chars)
	case *Function:
		return 64
	case *Native:
		return 32
	case *Upvalue:
		return 32
	case *Closure:
		return 32 + 8*len(v.Upvalues)
	case *Class:
		return 48
	case *Instance:
		return 48
	case *BoundMethod:
		return 32
	default:
		return 16
	}
}

// allocate links obj into the heap and charges it against the allocation
// counter, possibly triggering a collection.
func (h *Heap) allocate(obj value.Obj) {
	h.track(sizeOf(obj))
	h.link(obj)
}

// InternString returns the canonical *value.ObjString for s, allocating
// and interning a new one only if this content hasn't been seen before.
// Every string-producing operation (literals, concatenation, field names)
// must go through this so reference equality implies content equality.
func (h *Heap) InternString(s string) *value.ObjString {
	hash := value.HashString(s)
	if existing := h.strings.FindString(s, hash); existing != nil {
		return existing
	}
	str := value.NewObjString(s)
	h.allocate(str)
	h.strings.Set(str, value.Nil)
	return str
}

// NewFunction allocates an unnamed function shell with an empty Chunk; the
// compiler fills in Arity, UpvalueCount, Name, and the chunk's contents as
// compilation of its body proceeds.
func (h *Heap) NewFunction() *Function {
	fn := &Function{Chunk: chunk.New()}
	h.allocate(fn)
	return fn
}

// NewNative wraps fn as a callable native value under name.
func (h *Heap) NewNative(name string, fn NativeFn) *Native {
	n := &Native{Name: name, Fn: fn}
	h.allocate(n)
	return n
}

// NewClosure allocates a closure over fn with upvalueCount empty upvalue
// slots, to be filled in by OP_CLOSURE's capture loop.
func (h *Heap) NewClosure(fn *Function) *Closure {
	c := &Closure{Function: fn, Upvalues: make([]*Upvalue, fn.UpvalueCount)}
	h.allocate(c)
	return c
}

// NewUpvalue allocates an open upvalue pointing at a live stack slot.
func (h *Heap) NewUpvalue(slot *value.Value) *Upvalue {
	u := &Upvalue{Location: slot}
	h.allocate(u)
	return u
}

// NewClass allocates a class named by the given interned string.
func (h *Heap) NewClass(name *value.ObjString) *Class {
	c := NewClass(name)
	h.allocate(c)
	return c
}

// NewInstance allocates an instance of class.
func (h *Heap) NewInstance(class *Class) *Instance {
	i := NewInstance(class)
	h.allocate(i)
	return i
}

// NewBoundMethod allocates a bound method pairing receiver and method.
func (h *Heap) NewBoundMethod(receiver value.Value, method *Closure) *BoundMethod {
	b := &BoundMethod{Receiver: receiver, Method: method}
	h.allocate(b)
	return b
}

// Sweep walks the intrusive object list, unlinking and discarding every
// object whose mark bit is clear, and clears the mark bit on everything
// that survives (ready for the next cycle). Called by the collector after
// tracing; this package doesn't know how to trace, only how to walk and
// unlink.
func (h *Heap) Sweep() {
	var prev value.Obj
	cur := h.objects
	for cur != nil {
		if cur.IsMarked() {
			cur.SetMarked(false)
			prev = cur
			cur = cur.Next()
			continue
		}
		unreached := cur
		cur = cur.Next()
		if prev != nil {
			prev.SetNext(cur)
		} else {
			h.objects = cur
		}
		h.BytesAllocated -= sizeOf(unreached)
	}
}
