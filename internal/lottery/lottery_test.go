package lottery

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("uid-%02d", i)
	}
	return out
}

func TestDraw_PartitionsInput(t *testing.T) {
	src := NewSeededSource(1, 2)
	in := ids(10)

	selected, rest := Draw(src, in, 3)

	require.Len(t, selected, 3)
	require.Len(t, rest, 7)

	all := append(append([]string{}, selected...), rest...)
	sort.Strings(all)
	assert.Equal(t, in, all, "every id lands in exactly one side")
	assert.Equal(t, ids(10), in, "input must not be reordered")
}

func TestDraw_SampleLargerThanRoster(t *testing.T) {
	selected, rest := Draw(NewSeededSource(3, 4), ids(2), 5)

	assert.Len(t, selected, 2)
	assert.Empty(t, rest)
}

func TestDraw_EmptyAndNegative(t *testing.T) {
	selected, rest := Draw(NewSeededSource(5, 6), nil, 3)
	assert.Empty(t, selected)
	assert.Empty(t, rest)

	selected, rest = Draw(NewSeededSource(5, 6), ids(4), -1)
	assert.Empty(t, selected)
	assert.Len(t, rest, 4)
}

func TestDraw_DeterministicForSeed(t *testing.T) {
	a, _ := Draw(NewSeededSource(42, 7), ids(20), 5)
	b, _ := Draw(NewSeededSource(42, 7), ids(20), 5)

	assert.Equal(t, a, b)
}

func TestDraw_EveryEntrantCanWin(t *testing.T) {
	src := NewSeededSource(9, 9)
	seen := make(map[string]bool)

	for i := 0; i < 500; i++ {
		selected, _ := Draw(src, ids(5), 1)
		seen[selected[0]] = true
	}
	assert.Len(t, seen, 5)
}

func TestShuffle_IsPermutation(t *testing.T) {
	out := Shuffle(NewSeededSource(11, 12), ids(8))
	sort.Strings(out)

	assert.Equal(t, ids(8), out)
}

func TestNewSource(t *testing.T) {
	src, err := NewSource()
	require.NoError(t, err)

	v := src.IntN(10)
	assert.GreaterOrEqual(t, v, 0)
	assert.Less(t, v, 10)
}
