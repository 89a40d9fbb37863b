package datasets

// PadSequence pads (or truncates) the sequences to a common length.
//
// If maxLen <= 0 the sequences are padded to the longest one, otherwise they are padded or truncated to
// maxLen. The result is laid out [maxLen][batch], or [batch][maxLen] if batchFirst is true.
// The input sequences are not modified.
func PadSequence(seqs [][]int, batchFirst bool, maxLen, padValue int) [][]int {
	if maxLen <= 0 {
		maxLen = 0
		for _, seq := range seqs {
			maxLen = max(maxLen, len(seq))
		}
	}
	padded := make([][]int, len(seqs))
	for ii, seq := range seqs {
		row := make([]int, maxLen)
		n := copy(row, seq)
		for jj := n; jj < maxLen; jj++ {
			row[jj] = padValue
		}
		padded[ii] = row
	}
	if batchFirst {
		return padded
	}
	return transpose(padded, maxLen)
}

// transpose a [batch][length] matrix.
func transpose(m [][]int, length int) [][]int {
	t := make([][]int, length)
	for jj := range t {
		t[jj] = make([]int, len(m))
		for ii := range m {
			t[jj][ii] = m[ii][jj]
		}
	}
	return t
}

// PaddingMask returns true where a batch-first sequence holds padValue.
func PaddingMask(padded [][]int, padValue int) [][]bool {
	mask := make([][]bool, len(padded))
	for ii, seq := range padded {
		mask[ii] = make([]bool, len(seq))
		for jj, id := range seq {
			mask[ii][jj] = id == padValue
		}
	}
	return mask
}
