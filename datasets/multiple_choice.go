package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// NoLabel is the label of multiple-choice examples from files without a label column (test sets).
const NoLabel = -1

// multipleChoiceVariant implements multiple-choice (e.g.: SWAG), where a question ("startphrase") is paired
// with each of its NumChoice endings.
type multipleChoiceVariant struct {
	baseVariant
}

func (m *multipleChoiceVariant) Kind() Kind { return KindMultipleChoice }

// csvColumns locates the columns used in the header.
func (m *multipleChoiceVariant) csvColumns(header []string) (question int, endings []int, label int, err error) {
	index := make(map[string]int, len(header))
	for ii, name := range header {
		index[strings.TrimSpace(name)] = ii
	}
	var found bool
	if question, found = index["startphrase"]; !found {
		err = errors.New("missing column \"startphrase\"")
		return
	}
	endings = make([]int, m.cfg.NumChoice)
	for ii := range endings {
		name := fmt.Sprintf("ending%d", ii)
		if endings[ii], found = index[name]; !found {
			err = errors.Errorf("missing column %q", name)
			return
		}
	}
	if label, found = index["label"]; !found {
		label = -1
	}
	return
}

// Process reads the CSV file: each row gives the question "[CLS] startphrase [SEP]" and the token ids of
// every ending. The reported MaxLen is the longest question + ending + "[SEP]".
func (m *multipleChoiceVariant) Process(filePath string, _ bool) (*Processed, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dataset file %q", filePath)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read the header of %q", filePath)
	}
	questionCol, endingCols, labelCol, err := m.csvColumns(header)
	if err != nil {
		return nil, errors.WithMessagef(err, "in %q", filePath)
	}

	p := &Processed{}
	for rowNum := 2; ; rowNum++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %q", filePath)
		}
		item := Item{Label: NoLabel}
		question := m.ids(row[questionCol])
		item.Question = make([]int, 0, len(question)+2)
		item.Question = append(item.Question, m.vocab.ClsID)
		item.Question = append(item.Question, question...)
		item.Question = append(item.Question, m.vocab.SepID)
		longestEnding := 0
		for _, col := range endingCols {
			ending := m.ids(row[col])
			item.Choices = append(item.Choices, ending)
			longestEnding = max(longestEnding, len(ending))
		}
		if labelCol >= 0 {
			if item.Label, err = parseLabel(row[labelCol]); err != nil {
				return nil, errors.WithMessagef(err, "%s:%d", filePath, rowNum)
			}
		}
		p.MaxLen = max(p.MaxLen, min(len(item.Question)+longestEnding, m.cfg.MaxPositionEmbeddings-1)+1)
		p.Items = append(p.Items, item)
	}
	klog.Infof("datasets: %q: %d examples with %d choices, longest has %d tokens", filePath, len(p.Items),
		m.cfg.NumChoice, p.MaxLen)
	return p, nil
}

// Batch pairs the question with each choice into "[CLS] question [SEP] choice [SEP]" (segment ids 0 over the
// question and 1 over the choice), and pads all of them to maxLen. It is always batch first:
// [batch][NumChoice][maxLen].
func (m *multipleChoiceVariant) Batch(items []Item, maxLen int) (*Batch, error) {
	numChoice := m.cfg.NumChoice
	b := &Batch{Kind: KindMultipleChoice, BatchFirst: true, Labels: make([]int, len(items))}
	seqs := make([][]int, 0, len(items)*numChoice)
	segs := make([][]int, 0, len(items)*numChoice)
	for ii, item := range items {
		if len(item.Choices) != numChoice {
			return nil, errors.Errorf("item %d has %d choices, expected %d", ii, len(item.Choices), numChoice)
		}
		for _, choice := range item.Choices {
			seq := make([]int, 0, len(item.Question)+len(choice))
			seq = append(seq, item.Question...)
			seq = append(seq, choice...)
			seq = m.truncateAndClose(seq)
			seg := make([]int, len(seq))
			for jj := min(len(item.Question), len(seq)); jj < len(seq); jj++ {
				seg[jj] = 1
			}
			seqs = append(seqs, seq)
			segs = append(segs, seg)
		}
		b.Labels[ii] = item.Label
	}
	paddedSeqs := PadSequence(seqs, true, maxLen, m.cfg.PadIndex)
	paddedSegs := PadSequence(segs, true, maxLen, m.cfg.PadIndex)
	mask := PaddingMask(paddedSeqs, m.cfg.PadIndex)
	for ii := range items {
		from, to := ii*numChoice, (ii+1)*numChoice
		b.ChoiceInputIDs = append(b.ChoiceInputIDs, paddedSeqs[from:to])
		b.ChoiceSegmentIDs = append(b.ChoiceSegmentIDs, paddedSegs[from:to])
		b.ChoiceMask = append(b.ChoiceMask, mask[from:to])
	}
	return b, nil
}
