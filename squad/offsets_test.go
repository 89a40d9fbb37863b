package squad

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAndMap(t *testing.T) {
	text := "Architecturally, the school has a Catholic character. "
	tokens, offsets := NormalizeAndMap(text)
	assert.Equal(t, []string{"Architecturally,", "the", "school", "has", "a", "Catholic", "character."}, tokens)
	require.Len(t, offsets, utf8.RuneCountInString(text))
	assert.Equal(t, 5, offsets[34]) // "C" of "Catholic".
	assert.Equal(t, 0, offsets[0])
	assert.Equal(t, 0, offsets[16]) // Space after "Architecturally,".
	assert.Equal(t, 1, offsets[17])
	assert.Equal(t, 6, offsets[len(offsets)-1])
}

func TestNormalizeAndMap_Whitespace(t *testing.T) {
	tokens, offsets := NormalizeAndMap("  a \t\n bc d")
	assert.Equal(t, []string{"a", "bc", "d"}, tokens)
	assert.Equal(t, WordOffsets{-1, -1, 0, 0, 0, 0, 0, 1, 1, 1, 2}, offsets)

	tokens, offsets = NormalizeAndMap("")
	assert.Empty(t, tokens)
	assert.Empty(t, offsets)

	tokens, offsets = NormalizeAndMap(" \n ")
	assert.Empty(t, tokens)
	assert.Equal(t, WordOffsets{-1, -1, -1}, offsets)
}

func TestNormalizeAndMap_Runes(t *testing.T) {
	// Offsets are per character, not per byte: "é" and "日本" take one offset per rune.
	text := "Café au 日本 lait"
	tokens, offsets := NormalizeAndMap(text)
	assert.Equal(t, []string{"Café", "au", "日本", "lait"}, tokens)
	require.Len(t, offsets, 15)
	assert.Equal(t, 1, offsets[5])
	assert.Equal(t, 2, offsets[8])
	assert.Equal(t, 3, offsets[11])
}

func TestNormalizeAndMap_Properties(t *testing.T) {
	for _, text := range []string{
		"The leader was John Smith (1895-1943).",
		"   leading and trailing   ",
		"multiple\n\nlines\r\nwith\ttabs",
		"ünïcödé  wörds",
		"x",
	} {
		tokens, offsets := NormalizeAndMap(text)
		require.Len(t, offsets, utf8.RuneCountInString(text), "text=%q", text)
		for ii := 1; ii < len(offsets); ii++ {
			assert.LessOrEqual(t, offsets[ii-1], offsets[ii], "text=%q, position %d", text, ii)
		}
		assert.Equal(t, len(tokens)-1, offsets[len(offsets)-1], "text=%q", text)
	}
}
