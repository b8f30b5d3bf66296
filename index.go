package daybreak

import "container/list"

// orderedIndex is the in-memory mapping from key to value, with
// iteration in the order of each live key's most recent Put (spec §3
// "iteration yields keys in the order of their most recent Put", §4.7
// "a delete followed by a new put moves that key to the end").
//
// Grounded on the teacher's internal/store.Store, a plain mutex-guarded
// map with no ordering guarantee at all; this type adds the
// container/list-backed insertion order the teacher's store never
// needed, since a flat KV journal (unlike FlashDB's Redis-style
// commands) has an iteration-order invariant to satisfy.
type orderedIndex struct {
	order *list.List
	byKey map[string]*list.Element
}

type indexEntry struct {
	key   string
	value any
}

func newOrderedIndex() *orderedIndex {
	return &orderedIndex{
		order: list.New(),
		byKey: make(map[string]*list.Element),
	}
}

// set assigns value to key, moving key to the most-recently-put
// position if it already existed.
func (idx *orderedIndex) set(key string, value any) {
	if el, ok := idx.byKey[key]; ok {
		idx.order.MoveToBack(el)
		el.Value.(*indexEntry).value = value
		return
	}
	el := idx.order.PushBack(&indexEntry{key: key, value: value})
	idx.byKey[key] = el
}

// get returns the value stored for key and whether it was present.
func (idx *orderedIndex) get(key string) (any, bool) {
	el, ok := idx.byKey[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*indexEntry).value, true
}

// delete removes key from the index. A no-op if key is absent.
func (idx *orderedIndex) delete(key string) {
	el, ok := idx.byKey[key]
	if !ok {
		return
	}
	idx.order.Remove(el)
	delete(idx.byKey, key)
}

// len reports the count of live keys.
func (idx *orderedIndex) len() int {
	return len(idx.byKey)
}

// each calls fn for every (key, value) pair in insertion order.
func (idx *orderedIndex) each(fn func(key string, value any)) {
	for el := idx.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*indexEntry)
		fn(e.key, e.value)
	}
}

// eachUntil calls fn for every (key, value) pair in insertion order,
// stopping as soon as fn returns false.
func (idx *orderedIndex) eachUntil(fn func(key string, value any) bool) {
	for el := idx.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*indexEntry)
		if !fn(e.key, e.value) {
			return
		}
	}
}

// reset clears the index entirely, used when the journal reader
// detects the file was replaced out from under it (spec §4.4 step 2).
func (idx *orderedIndex) reset() {
	idx.order.Init()
	idx.byKey = make(map[string]*list.Element)
}
