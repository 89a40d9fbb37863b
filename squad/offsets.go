package squad

// WordOffsets maps each character (rune) index of a text to the index of the whitespace-delimited word
// it belongs to. Whitespace maps to the preceding word, and leading whitespace to -1.
//
// Its length equals the number of runes in the text, and its values are non-decreasing.
type WordOffsets []int

// isWhitespace follows the SQuAD convention, which includes the narrow no-break space (U+202F).
func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == 0x202F
}

// NormalizeAndMap splits text into whitespace-delimited words (collapsing runs of whitespace) and
// returns, for every character, the index of the word it belongs to.
//
// Since SQuAD's answer_start is a character offset, offsets[answerStart] is the word where the answer
// starts. Example:
//
//	NormalizeAndMap("Architecturally, the school has a Catholic character. ")
//	-> ["Architecturally,", "the", "school", "has", "a", "Catholic", "character."],
//	   [0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 1 1 1 1 2 2 2 2 2 2 2 3 3 3 3 4 4 5 5 5 5 5 5 5 5 5 6 ... 6]
func NormalizeAndMap(text string) (tokens []string, offsets WordOffsets) {
	var current []rune
	prevIsWhitespace := true
	for _, r := range text {
		if isWhitespace(r) {
			prevIsWhitespace = true
		} else {
			if prevIsWhitespace {
				if current != nil {
					tokens = append(tokens, string(current))
				}
				current = []rune{r}
			} else {
				current = append(current, r)
			}
			prevIsWhitespace = false
		}
		// The open word (current) isn't in tokens yet, hence the +1.
		last := len(tokens) - 1
		if current != nil {
			last++
		}
		offsets = append(offsets, last)
	}
	if current != nil {
		tokens = append(tokens, string(current))
	}
	return tokens, offsets
}
