package engine

import (
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/pathstore/internal/pathcodec"
)

// encodeMembers produces the persisted value at the physical key of a
// Collection node from the set of child names currently present;
// decodeMembers reverses it. In storage
// it is just a sorted name list encoded with the path codec's own
// length-prefixed framing (the same {u64 len}{bytes} scheme used for
// path components, here applied to a flat set instead of a path).
func encodeMembers(names map[string]struct{}) []byte {
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)
	return pathcodec.Encode(sorted)
}

func decodeMembers(raw []byte) (map[string]struct{}, error) {
	names, err := pathcodec.Decode(raw)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set, nil
}

// collectionOrdinals is a roaring-bitmap membership index built fresh,
// within a single bumpParentIndex call, from the set persisted at the
// collection's physical key as read in the enclosing transaction. It
// holds no state across calls: persisting anything longer-lived than one
// transaction would let an aborted transaction's edits leak into a later
// one, since a rolled-back kvstore.Update never tells this package to
// undo an in-memory mutation. Names are interned to uint32 ordinals so
// that add/remove against the bitmap is an O(1) set operation regardless
// of collection size.
type collectionOrdinals struct {
	nameToOrd map[string]uint32
	ordToName []string
	nextOrd   uint32
	members   *roaring.Bitmap
}

// newCollectionOrdinals builds an ordinal table over the membership set
// read from storage within the current transaction.
func newCollectionOrdinals(persisted map[string]struct{}) *collectionOrdinals {
	o := &collectionOrdinals{
		nameToOrd: make(map[string]uint32, len(persisted)),
		members:   roaring.New(),
	}
	for name := range persisted {
		ord := o.intern(name)
		o.members.Add(ord)
	}
	return o
}

func (o *collectionOrdinals) intern(name string) uint32 {
	if ord, ok := o.nameToOrd[name]; ok {
		return ord
	}
	ord := o.nextOrd
	o.nextOrd++
	o.nameToOrd[name] = ord
	for uint32(len(o.ordToName)) <= ord {
		o.ordToName = append(o.ordToName, "")
	}
	o.ordToName[ord] = name
	return ord
}

// add marks name present, returning true if it was not already a member.
func (o *collectionOrdinals) add(name string) bool {
	ord := o.intern(name)
	return o.members.CheckedAdd(ord)
}

// remove marks name absent, returning true if it was a member.
func (o *collectionOrdinals) remove(name string) bool {
	ord, ok := o.nameToOrd[name]
	if !ok {
		return false
	}
	return o.members.CheckedRemove(ord)
}

// names returns the current member set.
func (o *collectionOrdinals) names() map[string]struct{} {
	set := make(map[string]struct{}, o.members.GetCardinality())
	it := o.members.Iterator()
	for it.HasNext() {
		ord := it.Next()
		if int(ord) < len(o.ordToName) {
			set[o.ordToName[ord]] = struct{}{}
		}
	}
	return set
}
