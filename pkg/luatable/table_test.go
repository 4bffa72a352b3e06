package luatable_test

import (
	"testing"

	"luac51.dev/compiler/pkg/errs"
	"luac51.dev/compiler/pkg/luacode"
	"luac51.dev/compiler/pkg/luatable"
)

func numbers(values ...float64) []luacode.Value {
	out := make([]luacode.Value, len(values))
	for i, v := range values {
		out[i] = luacode.Number(v)
	}
	return out
}

// {1,2,3,4,5,6} has length 6; after nulling index 3, length is still 6;
// after additionally nulling index 6, length is 2 (spec §8 property 6).
func TestLenArrayBoundaryQuirk(t *testing.T) {
	tbl := luatable.NewFromArray(numbers(1, 2, 3, 4, 5, 6))
	if got := tbl.Len(); got != 6 {
		t.Fatalf("expected length 6, got %d", got)
	}

	if err := tbl.GetOrCreate(luacode.Number(3), luacode.Nil()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tbl.Len(); got != 6 {
		t.Errorf("expected length still 6 after nulling index 3 (non-nil last slot), got %d", got)
	}

	if err := tbl.GetOrCreate(luacode.Number(6), luacode.Nil()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tbl.Len(); got != 2 {
		t.Errorf("expected length 2 after additionally nulling index 6, got %d", got)
	}
}

// Appending integer keys one past the array part triggers rehash, which
// grows the array to absorb them once more than half of a power-of-two
// bucket is in use (computesizes); Len() tracks the new array size.
func TestLenGrowsArrayAcrossRehash(t *testing.T) {
	tbl := luatable.NewFromArray(numbers(1, 2, 3))
	if got := tbl.Len(); got != 3 {
		t.Fatalf("expected length 3, got %d", got)
	}

	if err := tbl.GetOrCreate(luacode.Number(4), luacode.Number(4)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tbl.Len(); got != 4 {
		t.Errorf("expected length 4 after [4]=4 rehashes the key into the array, got %d", got)
	}

	if err := tbl.GetOrCreate(luacode.Number(5), luacode.Number(5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tbl.Len(); got != 5 {
		t.Errorf("expected length 5 after [5]=5, got %d", got)
	}
}

func TestGetOrCreateRejectsNilAndNaNKeys(t *testing.T) {
	tbl := luatable.New()

	err := tbl.GetOrCreate(luacode.Nil(), luacode.Number(1))
	if e, ok := err.(*errs.Error); !ok || e.Kind != errs.IndexIsNil {
		t.Errorf("expected IndexIsNil for a nil key, got %v", err)
	}

	nan := luacode.Number(nanValue())
	err = tbl.GetOrCreate(nan, luacode.Number(1))
	if e, ok := err.(*errs.Error); !ok || e.Kind != errs.IndexIsNaN {
		t.Errorf("expected IndexIsNaN for a NaN key, got %v", err)
	}
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

func TestGetReturnsNilForAbsentKey(t *testing.T) {
	tbl := luatable.New()
	v := tbl.Get(luacode.String("missing"))
	if !v.IsNil() {
		t.Errorf("expected nil for an absent key, got %v", v)
	}
}

func TestGetOrCreateUpdatesArraySlotInPlace(t *testing.T) {
	tbl := luatable.NewFromArray(numbers(1, 2, 3))
	if err := tbl.GetOrCreate(luacode.Number(2), luacode.String("replaced")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := tbl.Get(luacode.Number(2))
	if got.Kind() != luacode.KindString || got.AsString() != "replaced" {
		t.Errorf("expected t[2] to be updated in place, got %v", got)
	}
}

// Next resumes iteration from an arbitrary prior key, walking the array
// part in ascending order before the hash part; a nil key restarts it
// (spec §4.6).
func TestNextIteratesArrayThenHash(t *testing.T) {
	tbl := luatable.NewFromArray(numbers(10, 20, 30))
	if err := tbl.GetOrCreate(luacode.String("extra"), luacode.Number(99)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	k, v, ok, err := tbl.Next(luacode.Nil())
	if err != nil || !ok {
		t.Fatalf("expected a first entry, got ok=%v err=%v", ok, err)
	}
	if k.AsNumber() != 1 || v.AsNumber() != 10 {
		t.Errorf("expected first entry [1]=10, got [%v]=%v", k, v)
	}

	var seen []luacode.Value
	for ok {
		seen = append(seen, v)
		k, v, ok, err = tbl.Next(k)
		if err != nil {
			t.Fatalf("unexpected error during iteration: %v", err)
		}
	}
	if len(seen) != 4 {
		t.Fatalf("expected to visit all 4 entries, visited %d", len(seen))
	}
}
