package wipe

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(42, 7))
}

func TestPatternTriple(t *testing.T) {
	assert.Equal(t, [3]byte{0x12, 0x31, 0x23}, Pattern(0x123).Triple())
	assert.Equal(t, [3]byte{0x55, 0x55, 0x55}, Pattern(0x555).Triple())
	assert.Equal(t, [3]byte{0x92, 0x49, 0x24}, Pattern(0x924).Triple())
	assert.Equal(t, [3]byte{0xFF, 0xFF, 0xFF}, Pattern(0xFFF).Triple())
	assert.Equal(t, [3]byte{0, 0, 0}, Pattern(0).Triple())
}

func TestTileHandlesRemainders(t *testing.T) {
	for _, size := range []int{1, 2, 3, 4, 10, 4096, 4097} {
		buf := make([]byte, size)
		tile(buf, [3]byte{1, 2, 3})
		for i, b := range buf {
			require.Equal(t, byte(i%3+1), b, "size %d offset %d", size, i)
		}
	}
	tile(nil, [3]byte{1, 2, 3})
}

func TestFillStaysInBounds(t *testing.T) {
	gen := NewGenerator(NewPassPlan(MethodGutmann, 0, false), seeded())
	var sel Selection

	backing := make([]byte, 1024+2)
	backing[0], backing[len(backing)-1] = 0xEE, 0xEE

	for pass := 0; pass < gen.Plan().Total(); pass++ {
		gen.Fill(pass, backing[1:len(backing)-1], &sel)
		require.Equal(t, byte(0xEE), backing[0])
		require.Equal(t, byte(0xEE), backing[len(backing)-1])
	}
}

func TestRandomPassPositions(t *testing.T) {
	count := func(p PassPlan) (n int) {
		for i := 0; i < p.Total(); i++ {
			if p.IsRandom(i) {
				n++
			}
		}
		return n
	}

	gutmann := NewPassPlan(MethodGutmann, 0, false)
	assert.Equal(t, 35, gutmann.Passes)
	assert.Equal(t, 9, count(gutmann))
	for _, i := range []int{0, 3, 17, 31, 34} {
		assert.True(t, gutmann.IsRandom(i), i)
	}
	assert.False(t, gutmann.IsRandom(4))
	assert.False(t, gutmann.IsRandom(30))

	assert.Equal(t, 4, count(NewPassPlan(MethodRandom, 0, false)))
	assert.Equal(t, 5, count(NewPassPlan(MethodSchneier, 0, false)))
	assert.Equal(t, 1, count(NewPassPlan(MethodDoD, 0, false)))

	withZero := NewPassPlan(MethodDoD, 0, true)
	assert.Equal(t, 4, withZero.Total())
	assert.True(t, withZero.IsZero(3))
	assert.False(t, withZero.IsRandom(3))

	assert.Equal(t, 5, NewPassPlan(MethodGutmann, 5, false).Passes)
}

func TestGutmannUsesWholeTableBeforeRepeating(t *testing.T) {
	plan := NewPassPlan(MethodGutmann, 0, false)
	gen := NewGenerator(plan, seeded())
	var sel Selection

	var fixed []Pattern
	for pass := 0; pass < plan.Total(); pass++ {
		p := gen.Next(pass, &sel)
		if !plan.IsRandom(pass) {
			fixed = append(fixed, p)
		}
	}
	require.Len(t, fixed, 26)

	assert.ElementsMatch(t, gutmannTable, fixed[:22])
	// после исчерпания таблица сбрасывается
	assert.Equal(t, 4, sel.Used())
}

func TestRandomMethodAlternatesTable(t *testing.T) {
	plan := NewPassPlan(MethodRandom, 0, false)
	gen := NewGenerator(plan, seeded())
	var sel Selection

	first := gen.Next(1, &sel)
	second := gen.Next(3, &sel)
	assert.ElementsMatch(t, randomTable, []Pattern{first, second})

	third := gen.Next(5, &sel)
	assert.Contains(t, randomTable, third)
	assert.Equal(t, 1, sel.Used())
}

func TestPositionalTables(t *testing.T) {
	var sel Selection
	schneier := NewGenerator(NewPassPlan(MethodSchneier, 0, false), seeded())
	assert.Equal(t, Pattern(0xFFF), schneier.Next(0, &sel))
	assert.Equal(t, Pattern(0x000), schneier.Next(1, &sel))

	sel.Reset()
	dod := NewGenerator(NewPassPlan(MethodDoD, 6, false), seeded())
	assert.Equal(t, Pattern(0x000), dod.Next(0, &sel))
	assert.Equal(t, Pattern(0xFFF), dod.Next(1, &sel))
	assert.Equal(t, Pattern(0x000), dod.Next(3, &sel))
	assert.Equal(t, Pattern(0xFFF), dod.Next(4, &sel))
}

func TestRandomPassesStayWithin12Bits(t *testing.T) {
	gen := NewGenerator(NewPassPlan(MethodSchneier, 40, false), seeded())
	var sel Selection
	for pass := 2; pass < 40; pass++ {
		assert.LessOrEqual(t, uint16(gen.Next(pass, &sel)), uint16(0xFFF))
	}
}

func TestZeroPassFillsZeros(t *testing.T) {
	gen := NewGenerator(NewPassPlan(MethodDoD, 0, true), nil)
	var sel Selection
	buf := []byte{1, 2, 3, 4, 5}
	assert.Equal(t, Pattern(0), gen.Fill(3, buf, &sel))
	assert.Equal(t, []byte{0, 0, 0, 0, 0}, buf)
}

func TestValidateMethod(t *testing.T) {
	m, err := ValidateMethod("schneier")
	require.NoError(t, err)
	assert.Equal(t, MethodSchneier, m)

	_, err = ValidateMethod("zeros")
	assert.Error(t, err)
}
