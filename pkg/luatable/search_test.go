package luatable

import (
	"testing"

	"luac51.dev/compiler/pkg/luacode"
)

// A table with presence at every power of two up to 2^30 (and nothing in
// between) makes searchForward's doubling run all the way to the overflow
// guard. Rather than reporting that huge, expensively-found boundary, the
// fallback restarts a linear scan from index 1 and reports whatever small
// boundary it finds there — spec §8 property 6's "length 2" quirk.
func TestSearchForwardFallsBackToLinearScanPastOverflowGuard(t *testing.T) {
	tbl := &Table{hash: map[luacode.Value]luacode.Value{}}
	for p := 0; p <= 30; p++ {
		key := luacode.Number(float64(int64(1) << uint(p)))
		tbl.hash[key] = luacode.Number(1)
	}

	if got := tbl.Len(); got != 2 {
		t.Errorf("expected the anti-DoS fallback to report length 2, got %d", got)
	}
}

// Without the pathological doubling chain, searchForward behaves as an
// ordinary exponential-then-binary search.
func TestSearchForwardOrdinaryCase(t *testing.T) {
	tbl := &Table{hash: map[luacode.Value]luacode.Value{
		luacode.Number(1): luacode.Number(1),
		luacode.Number(2): luacode.Number(1),
		luacode.Number(3): luacode.Number(1),
	}}

	if got := tbl.Len(); got != 3 {
		t.Errorf("expected length 3, got %d", got)
	}
}
