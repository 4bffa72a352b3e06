// Package luatable implements the hybrid array/hash table used for
// compile-time test scenarios; the constants table does its deduplication
// through pkg/utils.OrderedMap rather than this type. This package models
// the user-visible semantics the
// code generator must respect when emitting NEWTABLE, SETLIST, and related
// instructions: the array/hash split and the quirky Len() boundary search.
package luatable

import (
	"math"

	"luac51.dev/compiler/pkg/errs"
	"luac51.dev/compiler/pkg/luacode"
)

// maxArraySize bounds which positive integer keys are ever array-eligible,
// mirroring the reference implementation's MAXASIZE: no amount of rehashing
// will grow the array part past this.
const maxArraySize = 1 << 26

// Table is 1-indexed (user-visible) on top of a 0-indexed Go slice for its
// array part, plus a hash map for everything else.
type Table struct {
	array []luacode.Value
	hash  map[luacode.Value]luacode.Value
}

func New() *Table {
	return &Table{hash: map[luacode.Value]luacode.Value{}}
}

// NewFromArray builds a table whose array part is presized exactly to
// len(values), the way the generator's NEWTABLE+SETLIST pair presizes a
// table literal's array part to its field count.
func NewFromArray(values []luacode.Value) *Table {
	arr := make([]luacode.Value, len(values))
	copy(arr, values)
	return &Table{array: arr, hash: map[luacode.Value]luacode.Value{}}
}

func intKey(key luacode.Value) (int, bool) {
	if key.Kind() != luacode.KindNumber {
		return 0, false
	}
	n := key.AsNumber()
	if n != math.Trunc(n) || n < 1 || n > maxArraySize {
		return 0, false
	}
	return int(n), true
}

// Get reads t[k] without creating anything; returns nil for an absent key.
func (t *Table) Get(key luacode.Value) luacode.Value {
	if i, ok := intKey(key); ok && i <= len(t.array) {
		return t.array[i-1]
	}
	if v, ok := t.hash[key]; ok {
		return v
	}
	return luacode.Nil()
}

// GetOrCreate sets t[k] = v. nil and NaN keys are rejected, matching the
// generator's own IndexIsNil/IndexIsNaN error taxonomy (spec §4.6, §7): a
// SETTABLE with those keys must fail the same way at compile time as it
// would fail at VM runtime.
//
// A key that already lives in the array part is updated in place. A new
// integer key triggers a rehash that recomputes the array/hash split from
// scratch (see rehash), the mechanism responsible for the length quirks in
// spec §3/§4.6/§8 property 6: the array part's size tracks a usage
// heuristic, not simply "every integer key seen so far".
func (t *Table) GetOrCreate(key, value luacode.Value) error {
	if key.IsNil() {
		return errs.New(errs.IndexIsNil, errs.Position{}, "table index is nil")
	}
	if key.IsNaN() {
		return errs.New(errs.IndexIsNaN, errs.Position{}, "table index is NaN")
	}

	if i, ok := intKey(key); ok && i <= len(t.array) {
		t.array[i-1] = value
		return nil
	}

	if value.IsNil() {
		delete(t.hash, key)
		return nil
	}

	t.hash[key] = value
	if _, ok := intKey(key); ok {
		t.rehash()
	}
	return nil
}

func ceilLog2(x int) int {
	if x <= 1 {
		return 0
	}
	v := x - 1
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

// rehash recomputes the array/hash split the way the reference compiler's
// ltable.c does: count how many present integer keys fall in each
// power-of-two bucket [2^(i-1)+1, 2^i], then pick the largest power of two
// for which more than half the keys below it are in use (computesizes).
// Keys that no longer fit the chosen array size move to the hash part;
// hash keys that now fit move into the array.
func (t *Table) rehash() {
	type entry struct {
		key int
		val luacode.Value
	}
	var ints []entry
	var others []luacode.Value

	const buckets = 32
	nums := make([]int, buckets)
	nasize := 0
	count := func(k int) {
		if k >= 1 && k <= maxArraySize {
			b := ceilLog2(k)
			if b < buckets {
				nums[b]++
			}
			nasize++
		}
	}

	for i, v := range t.array {
		if v.IsNil() {
			continue
		}
		k := i + 1
		ints = append(ints, entry{k, v})
		count(k)
	}
	for k, v := range t.hash {
		if v.IsNil() {
			continue
		}
		if ik, ok := intKey(k); ok {
			ints = append(ints, entry{ik, v})
			count(ik)
		} else {
			others = append(others, k)
		}
	}

	a, n := 0, 0
	for i, twotoi := 0, 1; twotoi/2 < nasize; i, twotoi = i+1, twotoi*2 {
		if i < buckets && nums[i] > 0 {
			a += nums[i]
			if a > twotoi/2 {
				n = twotoi
			}
		}
		if a == nasize {
			break
		}
	}

	newArray := make([]luacode.Value, n)
	newHash := map[luacode.Value]luacode.Value{}
	for _, e := range ints {
		if e.key <= n {
			newArray[e.key-1] = e.val
		} else {
			newHash[luacode.Number(float64(e.key))] = e.val
		}
	}
	for _, k := range others {
		newHash[k] = t.hash[k]
	}

	t.array = newArray
	t.hash = newHash
}

// Len implements the reference `#` boundary search (spec §3, §4.6, §8
// property 6). A boundary is any n >= 0 with t[n] ~= nil and t[n+1] == nil;
// the result is *a* boundary, not necessarily the largest one.
func (t *Table) Len() int {
	n := len(t.array)

	// Quirk: a non-nil last array slot reports the array's own boundary,
	// extending into the hash part only if the very next key is present.
	if n > 0 && !t.array[n-1].IsNil() {
		return t.searchForward(n)
	}
	if n == 0 {
		return t.searchForward(0)
	}

	lo, hi := 0, n
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if t.array[mid-1].IsNil() {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo
}

// searchForward extends the boundary search past index 'from' by doubling
// until a nil is found, then binary searching that range. If a
// deliberately sparse pattern would otherwise inflate the doubling past
// 2^31-1, it abandons the doubled range entirely and falls back to a
// linear scan from index 1, matching the reference compiler's documented
// anti-DoS escape hatch: a table crafted to make the doubling run forever
// gets a small, cheaply-computed boundary instead of a correct-but-costly
// one.
func (t *Table) searchForward(from int) int {
	if !t.keyPresent(from + 1) {
		return from
	}

	i, j := from+1, (from+1)*2
	for t.keyPresent(j) {
		i = j
		if j > math.MaxInt32/2 {
			k := 0
			for t.keyPresent(k + 1) {
				k++
			}
			return k
		}
		j *= 2
	}

	for j-i > 1 {
		mid := (i + j) / 2
		if t.keyPresent(mid) {
			i = mid
		} else {
			j = mid
		}
	}
	return i
}

func (t *Table) keyPresent(i int) bool {
	if i <= 0 {
		return false
	}
	if i <= len(t.array) {
		return !t.array[i-1].IsNil()
	}
	_, ok := t.hash[luacode.Number(float64(i))]
	return ok
}

// Next implements stateful iteration: array part in ascending index order,
// then the hash part, resumable from an arbitrary prior key. A nil key
// restarts iteration. Hash iteration order is Go's native map order, which
// is unspecified but stable within a single unmutated map, matching the
// "supports resumption" contract without promising a total order across
// mutations (spec §4.6).
func (t *Table) Next(key luacode.Value) (k, v luacode.Value, ok bool, err error) {
	if key.IsNil() {
		if kk, vv, found := t.firstArrayFrom(0); found {
			return kk, vv, true, nil
		}
		return t.firstHash()
	}

	if i, isArr := intKey(key); isArr && i <= len(t.array) {
		if kk, vv, found := t.firstArrayFrom(i); found {
			return kk, vv, true, nil
		}
		return t.firstHash()
	}

	return t.nextHash(key)
}

func (t *Table) firstArrayFrom(i int) (luacode.Value, luacode.Value, bool) {
	for ; i < len(t.array); i++ {
		if !t.array[i].IsNil() {
			return luacode.Number(float64(i + 1)), t.array[i], true
		}
	}
	return luacode.Nil(), luacode.Nil(), false
}

func (t *Table) firstHash() (luacode.Value, luacode.Value, bool, error) {
	for k, v := range t.hash {
		return k, v, true, nil
	}
	return luacode.Nil(), luacode.Nil(), false, nil
}

func (t *Table) nextHash(after luacode.Value) (luacode.Value, luacode.Value, bool, error) {
	found := false
	for k, v := range t.hash {
		if found {
			return k, v, true, nil
		}
		if k.Equal(after) {
			found = true
		}
	}
	if !found {
		return luacode.Nil(), luacode.Nil(), false, errs.New(errs.CompileError, errs.Position{}, "invalid key to 'next'")
	}
	return luacode.Nil(), luacode.Nil(), false, nil
}
