package squad

// ImproveAnswerSpan re-locates an answer after subword tokenization.
//
// SQuAD annotations are character based; they are first projected onto whitespace-delimited words, but
// the subword tokenizer often splits those words further, so a better match can be found. E.g.:
//
//	Context: "The leader was John Smith (1895-1943)."   Answer: "1895"
//	The whitespace word is "(1895-1943).", but after tokenization the context is
//	"the leader was john smith ( 1895 - 1943 ) ." and the answer can be matched exactly:
//	ImproveAnswerSpan(contextTokens, ["1895"], 5, 5) -> (6, 6)
//
// It scans contextTokens from start for the first position where the whole of answerTokens matches
// contiguously, and returns that (inclusive) span. If there is no such position it returns (start, end)
// unchanged.
func ImproveAnswerSpan(contextTokens, answerTokens []string, start, end int) (newStart, newEnd int) {
	if len(answerTokens) == 0 {
		return start, end
	}
	for i := max(start, 0); i < len(contextTokens); i++ {
		if contextTokens[i] != answerTokens[0] {
			continue
		}
		matched := 0
		for j := range answerTokens {
			if i+j >= len(contextTokens) || contextTokens[i+j] != answerTokens[j] {
				break
			}
			newEnd = i + j
			matched++
		}
		if matched == len(answerTokens) {
			return i, newEnd
		}
	}
	return start, end
}
