package luacode_test

import (
	"math"
	"testing"

	"luac51.dev/compiler/pkg/errs"
	"luac51.dev/compiler/pkg/luacode"
)

func TestConstantsInternDeduplicates(t *testing.T) {
	c := luacode.NewConstants()

	i1, err := c.Intern(luacode.String("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	i2, err := c.Intern(luacode.Number(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	i3, err := c.Intern(luacode.String("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if i1 != i3 {
		t.Errorf("expected repeated intern of an equal constant to reuse its index: %d != %d", i1, i3)
	}
	if i1 == i2 {
		t.Errorf("expected distinct constants to get distinct indices")
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 distinct constants, got %d", c.Len())
	}
}

// Constants are equal iff tags and payloads are equal, byte-exact for
// strings and bit-exact for doubles: 0.0 and -0.0 are distinct, while two
// NaNs with the same bit pattern are the same constant (spec §3).
func TestConstantEqualityIsBitExact(t *testing.T) {
	c := luacode.NewConstants()

	posZero, _ := c.Intern(luacode.Number(0))
	negZero, _ := c.Intern(luacode.Number(math.Copysign(0, -1)))
	if posZero == negZero {
		t.Errorf("expected 0.0 and -0.0 to be distinct constants")
	}

	nan1, _ := c.Intern(luacode.Number(math.NaN()))
	nan2, _ := c.Intern(luacode.Number(math.NaN()))
	if nan1 != nan2 {
		t.Errorf("expected two bit-identical NaN interns to share one constant: %d != %d", nan1, nan2)
	}
}

func TestConstantOverflow(t *testing.T) {
	c := luacode.NewConstants()
	for i := 0; i < 1<<18; i++ {
		if _, err := c.Intern(luacode.Number(float64(i))); err != nil {
			t.Fatalf("unexpected error at constant %d: %v", i, err)
		}
	}

	_, err := c.Intern(luacode.Number(-1))
	if err == nil {
		t.Fatal("expected a ConstantOverflow error once the 18-bit Bx field is exhausted")
	}
	e, ok := err.(*errs.Error)
	if !ok || e.Kind != errs.ConstantOverflow {
		t.Errorf("expected a ConstantOverflow error, got %v", err)
	}
}
