package datasets

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Item is one processed example of any variant. Only the fields of its variant are set.
//
// Items are cached with encoding/gob, so all fields are exported.
type Item struct {
	// InputIDs and SegmentIDs for the single, pair and SQuAD variants.
	InputIDs   []int
	SegmentIDs []int

	// Label for the single, pair and multiple-choice variants (-1 when the multiple-choice file has none).
	Label int

	// Question ("[CLS] question [SEP]") and the token ids of each choice for the multiple-choice variant.
	Question []int
	Choices  [][]int

	// SQuAD only.
	StartPosition, EndPosition int
	AnswerText, QuestionID     string
}

// Processed is the result of processing one dataset file.
type Processed struct {
	Items []Item

	// MaxLen is the length of the longest sequence.
	MaxLen int
}

// Batch is a batch of items ready to be fed to a model.
type Batch struct {
	Kind Kind

	// BatchFirst tells the layout of InputIDs and SegmentIDs: [batch][maxLen] if true, or [maxLen][batch].
	BatchFirst bool

	InputIDs   [][]int
	SegmentIDs [][]int

	// Labels for the single, pair and multiple-choice variants: [batch].
	Labels []int

	// Positions of the answers for the SQuAD variant: [batch][2] with the start and end positions.
	Positions   [][]int
	QuestionIDs []string

	// Multiple-choice only, all [batch][numChoice][maxLen]. ChoiceMask is true on padding.
	ChoiceInputIDs   [][][]int
	ChoiceSegmentIDs [][][]int
	ChoiceMask       [][][]bool
}

// Size returns the number of examples in the batch.
func (b *Batch) Size() int {
	if b.Kind == KindSQuAD {
		return len(b.Positions)
	}
	return len(b.Labels)
}

// Tensors converts the batch to int64 tensors (the mask of multiple-choice batches is a bool tensor).
//
// Inputs are:
//
//   - single: [input_ids]
//   - pair, SQuAD: [input_ids, segment_ids]
//   - multiple-choice: [input_ids, segment_ids, mask]
//
// Labels are [labels], or [positions] for SQuAD.
func (b *Batch) Tensors() (inputs, labels []*tensors.Tensor, err error) {
	switch b.Kind {
	case KindSingle:
		inputs = []*tensors.Tensor{matrixTensor(b.InputIDs)}
		labels = []*tensors.Tensor{vectorTensor(b.Labels)}
	case KindPair:
		inputs = []*tensors.Tensor{matrixTensor(b.InputIDs), matrixTensor(b.SegmentIDs)}
		labels = []*tensors.Tensor{vectorTensor(b.Labels)}
	case KindSQuAD:
		inputs = []*tensors.Tensor{matrixTensor(b.InputIDs), matrixTensor(b.SegmentIDs)}
		labels = []*tensors.Tensor{matrixTensor(b.Positions)}
	case KindMultipleChoice:
		inputs = []*tensors.Tensor{cubeTensor(b.ChoiceInputIDs), cubeTensor(b.ChoiceSegmentIDs),
			maskTensor(b.ChoiceMask)}
		labels = []*tensors.Tensor{vectorTensor(b.Labels)}
	default:
		err = errors.Errorf("unknown batch kind %q", b.Kind)
	}
	return
}

func vectorTensor(v []int) *tensors.Tensor {
	flat := make([]int64, len(v))
	for ii, x := range v {
		flat[ii] = int64(x)
	}
	return tensors.FromFlatDataAndDimensions(flat, len(v))
}

func matrixTensor(m [][]int) *tensors.Tensor {
	rows, cols := len(m), 0
	if rows > 0 {
		cols = len(m[0])
	}
	flat := make([]int64, 0, rows*cols)
	for _, row := range m {
		for _, x := range row {
			flat = append(flat, int64(x))
		}
	}
	return tensors.FromFlatDataAndDimensions(flat, rows, cols)
}

func cubeTensor(c [][][]int) *tensors.Tensor {
	d0, d1, d2 := len(c), 0, 0
	if d0 > 0 {
		d1 = len(c[0])
		if d1 > 0 {
			d2 = len(c[0][0])
		}
	}
	flat := make([]int64, 0, d0*d1*d2)
	for _, m := range c {
		for _, row := range m {
			for _, x := range row {
				flat = append(flat, int64(x))
			}
		}
	}
	return tensors.FromFlatDataAndDimensions(flat, d0, d1, d2)
}

func maskTensor(c [][][]bool) *tensors.Tensor {
	d0, d1, d2 := len(c), 0, 0
	if d0 > 0 {
		d1 = len(c[0])
		if d1 > 0 {
			d2 = len(c[0][0])
		}
	}
	flat := make([]bool, 0, d0*d1*d2)
	for _, m := range c {
		for _, row := range m {
			flat = append(flat, row...)
		}
	}
	return tensors.FromFlatDataAndDimensions(flat, d0, d1, d2)
}
