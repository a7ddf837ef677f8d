package value

// ObjHeader is embedded by every concrete heap object (ObjString here,
// and Function/Native/Closure/Upvalue/Class/Instance/BoundMethod in
// pkg/object) to satisfy the Obj interface. Go has no common base class,
// so embedding ObjHeader gives every concrete type the mark bit and the
// intrusive-list link for free via method promotion.
type ObjHeader struct {
	marked bool
	next   Obj
}

func (h *ObjHeader) IsMarked() bool  { return h.marked }
func (h *ObjHeader) SetMarked(m bool) { h.marked = m }
func (h *ObjHeader) Next() Obj        { return h.next }
func (h *ObjHeader) SetNext(o Obj)    { h.next = o }

// ObjString is an immutable, content-interned byte sequence with a
// precomputed FNV-1a hash.
type ObjString struct {
	ObjHeader
	Chars string
	Hash  uint32
}

func (s *ObjString) ObjKind() string { return "string" }
func (s *ObjString) String() string  { return s.Chars }

// HashString computes the 32-bit FNV-1a hash used for string interning.
// Written out by hand rather than built on hash/fnv.New32a(): that API
// returns a hash.Hash32 meant for streaming writes to an io.Writer,
// which costs an interface dispatch and a Write() call per invocation
// for what is, here, a single tight loop over bytes already in hand.
func HashString(s string) uint32 {
	var hash uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= 16777619
	}
	return hash
}

// NewObjString constructs an interned-string object. Callers (pkg/object's
// Heap) are responsible for actually interning it — this is a plain
// constructor, not a cache lookup.
func NewObjString(s string) *ObjString {
	return &ObjString{Chars: s, Hash: HashString(s)}
}
