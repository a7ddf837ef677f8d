// Package table implements an open-addressed, linear-probing hash
// table: it backs globals, instance fields, class method tables, and
// (via FindString) the string intern table.
//
// Keys are always *value.ObjString references — identity-keyed, with the
// hash read off the key rather than recomputed. A slot that has never
// been touched is empty; a slot whose key has been cleared but was once
// occupied is a tombstone (entry.isSet distinguishes the two, since a nil
// key alone is ambiguous between them). Load factor is capped at 0.75
// (minimum capacity 8); crossing it doubles capacity and rehashes,
// dropping tombstones.
package table

import "github.com/kristofer/loxgo/pkg/value"

const maxLoad = 0.75
const minCapacity = 8

// entry is one slot: key == nil && !isSet is empty, key == nil && isSet
// is a tombstone, key != nil is occupied.
type entry struct {
	key   *value.ObjString
	val   value.Value
	isSet bool // slot has ever held a live entry (occupied or tombstone)
}

// Table is the hash table itself.
type Table struct {
	count    int // occupied + tombstones
	live     int // occupied only
	entries  []entry
}

// New returns an empty table. Capacity is allocated lazily on first Set.
func New() *Table {
	return &Table{}
}

// Count returns the number of live (non-tombstone) entries.
func (t *Table) Count() int { return t.live }

func (t *Table) capacity() int { return len(t.entries) }

// findEntry probes from hash mod capacity, returning the slot that a get/
// set/delete for key should use: the first occupied match, else the
// first tombstone seen along the way, else the terminating empty slot.
func findEntry(entries []entry, key *value.ObjString) *entry {
	capacity := len(entries)
	index := int(key.Hash) % capacity
	var tombstone *entry

	for {
		e := &entries[index]
		if e.key == nil {
			if !e.isSet {
				// Truly empty: return the tombstone we passed, if any,
				// so a subsequent insert reuses it instead of growing
				// the probe chain.
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			// Tombstone.
			if tombstone == nil {
				tombstone = e
			}
		} else if e.key == key {
			return e
		}

		index = (index + 1) % capacity
	}
}

func (t *Table) adjustCapacity(capacity int) {
	newEntries := make([]entry, capacity)
	t.live = 0
	for i := range t.entries {
		old := &t.entries[i]
		if old.key == nil {
			continue
		}
		dst := findEntry(newEntries, old.key)
		dst.key = old.key
		dst.val = old.val
		dst.isSet = true
		t.live++
	}
	t.entries = newEntries
	t.count = t.live
}

func (t *Table) ensureCapacity() {
	if t.capacity() == 0 {
		t.adjustCapacity(minCapacity)
		return
	}
	if float64(t.count+1) > float64(t.capacity())*maxLoad {
		t.adjustCapacity(t.capacity() * 2)
	}
}

// Get returns the value stored for key and whether it was found.
func (t *Table) Get(key *value.ObjString) (value.Value, bool) {
	if t.capacity() == 0 {
		return value.Nil, false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return value.Nil, false
	}
	return e.val, true
}

// Set inserts or overwrites key's value. Returns true if this created a
// brand-new key (count is incremented only when filling a previously
// empty slot, never a tombstone).
func (t *Table) Set(key *value.ObjString, val value.Value) bool {
	t.ensureCapacity()
	e := findEntry(t.entries, key)
	isNewKey := e.key == nil
	if isNewKey && !e.isSet {
		t.count++
	}
	if isNewKey {
		t.live++
	}
	e.key = key
	e.val = val
	e.isSet = true
	return isNewKey
}

// Delete converts key's entry into a tombstone. Count is not decremented
// (tombstones still occupy a probe slot until the next rehash).
func (t *Table) Delete(key *value.ObjString) bool {
	if t.capacity() == 0 {
		return false
	}
	e := findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.val = value.Nil
	t.live--
	return true
}

// AddAll bulk-copies every entry of src into t (used for a class's
// superclass-methods snapshot on inheritance).
func (t *Table) AddAll(src *Table) {
	for i := range src.entries {
		e := &src.entries[i]
		if e.key != nil {
			t.Set(e.key, e.val)
		}
	}
}

// FindString looks up an interned string by content rather than by
// reference — the one case where the table is probed without already
// holding a key. Used only by the intern table. Compares length, then
// hash, then bytes, in that order (cheapest rejects first).
func (t *Table) FindString(chars string, hash uint32) *value.ObjString {
	if t.capacity() == 0 {
		return nil
	}
	capacity := t.capacity()
	index := int(hash) % capacity
	for {
		e := &t.entries[index]
		if e.key == nil {
			if !e.isSet {
				return nil
			}
		} else if len(e.key.Chars) == len(chars) && e.key.Hash == hash && e.key.Chars == chars {
			return e.key
		}
		index = (index + 1) % capacity
	}
}

// RemoveWhite deletes every entry whose key object is unmarked. Called
// during GC on the intern table so dead-but-interned strings don't
// resurrect.
func (t *Table) RemoveWhite() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && !e.key.IsMarked() {
			t.Delete(e.key)
		}
	}
}

// Mark marks every live key and value in the table via markValue, a
// caller-supplied callback (kept generic so this package doesn't need to
// know how to trace an arbitrary value.Value's object graph — that's the
// collector's job).
func (t *Table) Mark(markValue func(value.Value)) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil {
			markValue(value.NewObj(e.key))
			markValue(e.val)
		}
	}
}

// Each calls fn for every live key/value pair. Used to enumerate globals,
// class methods, and instance fields (e.g. for printing or iteration)
// without exposing the internal entry representation.
func (t *Table) Each(fn func(key *value.ObjString, val value.Value)) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil {
			fn(e.key, e.val)
		}
	}
}
