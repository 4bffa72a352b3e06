package luacode

import (
	"math"

	"luac51.dev/compiler/pkg/errs"
	"luac51.dev/compiler/pkg/utils"
)

// Constants is a deduplicating append-only vector of Value literals. It
// backs one FuncState and is never shared between functions. Ordering is
// deterministic: the first call to Intern for a given Value assigns and
// keeps its index forever; every later call for an equal Value returns that
// same index (spec: "first-seen insertion order is preserved").
type Constants struct {
	values utils.OrderedMap[constKey, int]
	list   []Value
}

// constKey is a hashable projection of Value suitable as a Go map key; bits
// (not float64 itself, which breaks map equality for NaN) back the number
// case so Equal's bit-exactness is preserved in lookups too.
type constKey struct {
	kind ValueKind
	bits uint64
	str  string
}

func keyOf(v Value) constKey {
	switch v.Kind() {
	case KindNil:
		return constKey{kind: KindNil}
	case KindBool:
		b := uint64(0)
		if v.AsBool() {
			b = 1
		}
		return constKey{kind: KindBool, bits: b}
	case KindNumber:
		return constKey{kind: KindNumber, bits: math.Float64bits(v.AsNumber())}
	case KindString:
		return constKey{kind: KindString, str: v.AsString()}
	default:
		panic("luacode: unreachable Value kind")
	}
}

func NewConstants() *Constants {
	c := &Constants{values: utils.NewOrderedMap[constKey, int]()}
	return c
}

// Intern returns v's constant-table index, appending v if this is its first
// occurrence. String values are copied (Go strings are already immutable
// byte sequences, so no explicit duplication is needed beyond Go's own copy
// semantics on assignment).
func (c *Constants) Intern(v Value) (int, error) {
	k := keyOf(v)
	if idx, ok := c.values.Get(k); ok {
		return idx, nil
	}

	idx := len(c.list)
	if idx > maxArgBx {
		return 0, errs.New(errs.ConstantOverflow, errs.Position{},
			"constant table overflow: index %d does not fit in an 18-bit Bx field", idx)
	}

	c.values.Set(k, idx)
	c.list = append(c.list, v)
	return idx, nil
}

// Get returns the constant at index i.
func (c *Constants) Get(i int) Value { return c.list[i] }

// Len returns the number of interned constants.
func (c *Constants) Len() int { return len(c.list) }

// List returns the constants in on-wire order. Callers must not mutate it.
func (c *Constants) List() []Value { return c.list }
