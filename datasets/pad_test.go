package datasets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadSequence(t *testing.T) {
	seqs := [][]int{{1, 2, 3}, {4}, {5, 6}}

	assert.Equal(t, [][]int{{1, 2, 3}, {4, 0, 0}, {5, 6, 0}}, PadSequence(seqs, true, 0, 0))
	assert.Equal(t, [][]int{{1, 4, 5}, {2, 0, 6}, {3, 0, 0}}, PadSequence(seqs, false, 0, 0))
	assert.Equal(t, [][]int{{1, 2, 3, 9}, {4, 9, 9, 9}, {5, 6, 9, 9}}, PadSequence(seqs, true, 4, 9))
	assert.Equal(t, [][]int{{1, 2}, {4, 0}, {5, 6}}, PadSequence(seqs, true, 2, 0), "longer sequences are truncated")
	assert.Equal(t, [][]int{{1, 2, 3}, {4}, {5, 6}}, seqs, "input must not be modified")
	assert.Empty(t, PadSequence(nil, true, 0, 0))
}

func TestPaddingMask(t *testing.T) {
	padded := PadSequence([][]int{{7, 8}, {9}}, true, 3, 0)
	assert.Equal(t, [][]bool{{false, false, true}, {false, true, true}}, PaddingMask(padded, 0))
}
