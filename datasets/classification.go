package datasets

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// maxLineSize of the line-oriented formats.
const maxLineSize = 16 * 1024 * 1024

// readFields calls fn with the fields (split by sep) of every non-empty line of the file, and the
// 1-based line number.
func readFields(filePath, sep string, fn func(lineNum int, fields []string) error) error {
	f, err := os.Open(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to open dataset file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if err := fn(lineNum, strings.Split(line, sep)); err != nil {
			return errors.WithMessagef(err, "%s:%d", filePath, lineNum)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "failed to read dataset file %q", filePath)
	}
	return nil
}

func parseLabel(s string) (int, error) {
	label, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Errorf("invalid label %q", s)
	}
	return label, nil
}

// singleVariant implements single sentence classification.
type singleVariant struct {
	baseVariant
}

func (s *singleVariant) Kind() Kind { return KindSingle }

// Process encodes each line "text<sep>label" as "[CLS] text [SEP]", truncated to MaxPositionEmbeddings.
func (s *singleVariant) Process(filePath string, _ bool) (*Processed, error) {
	p := &Processed{}
	err := readFields(filePath, s.cfg.Sep, func(lineNum int, fields []string) error {
		if len(fields) < 2 {
			return errors.Errorf("expected \"text%slabel\", got %d fields", s.cfg.Sep, len(fields))
		}
		label, err := parseLabel(fields[1])
		if err != nil {
			return err
		}
		ids := append([]int{s.vocab.ClsID}, s.ids(fields[0])...)
		ids = s.truncateAndClose(ids)
		p.MaxLen = max(p.MaxLen, len(ids))
		p.Items = append(p.Items, Item{InputIDs: ids, Label: label})
		return nil
	})
	if err != nil {
		return nil, err
	}
	klog.Infof("datasets: %q: %d examples, longest has %d tokens", filePath, len(p.Items), p.MaxLen)
	return p, nil
}

func (s *singleVariant) Batch(items []Item, maxLen int) (*Batch, error) {
	b := &Batch{Kind: KindSingle, BatchFirst: s.cfg.BatchFirst, Labels: make([]int, len(items))}
	seqs := make([][]int, len(items))
	for ii, item := range items {
		seqs[ii] = item.InputIDs
		b.Labels[ii] = item.Label
	}
	b.InputIDs = s.pad(seqs, maxLen)
	return b, nil
}

// pairVariant implements sentence pair classification.
type pairVariant struct {
	baseVariant
}

func (p *pairVariant) Kind() Kind { return KindPair }

// Process encodes each line "text1<sep>text2<sep>label" as "[CLS] text1 [SEP] text2 [SEP]", truncated to
// MaxPositionEmbeddings. Segment ids are 0 up to the middle "[SEP]", and 1 after it.
func (p *pairVariant) Process(filePath string, _ bool) (*Processed, error) {
	processed := &Processed{}
	err := readFields(filePath, p.cfg.Sep, func(lineNum int, fields []string) error {
		if len(fields) < 3 {
			return errors.Errorf("expected \"text1%stext2%slabel\", got %d fields", p.cfg.Sep, p.cfg.Sep, len(fields))
		}
		label, err := parseLabel(fields[2])
		if err != nil {
			return err
		}
		first, second := p.ids(fields[0]), p.ids(fields[1])
		ids := make([]int, 0, len(first)+len(second)+3)
		ids = append(ids, p.vocab.ClsID)
		ids = append(ids, first...)
		ids = append(ids, p.vocab.SepID)
		ids = append(ids, second...)
		ids = p.truncateAndClose(ids)
		segments := make([]int, len(ids))
		for ii := min(len(first)+2, len(ids)); ii < len(ids); ii++ {
			segments[ii] = 1
		}
		processed.MaxLen = max(processed.MaxLen, len(ids))
		processed.Items = append(processed.Items, Item{InputIDs: ids, SegmentIDs: segments, Label: label})
		return nil
	})
	if err != nil {
		return nil, err
	}
	klog.Infof("datasets: %q: %d examples, longest has %d tokens", filePath, len(processed.Items), processed.MaxLen)
	return processed, nil
}

func (p *pairVariant) Batch(items []Item, maxLen int) (*Batch, error) {
	b := &Batch{Kind: KindPair, BatchFirst: p.cfg.BatchFirst, Labels: make([]int, len(items))}
	seqs := make([][]int, len(items))
	segs := make([][]int, len(items))
	for ii, item := range items {
		seqs[ii] = item.InputIDs
		segs[ii] = item.SegmentIDs
		b.Labels[ii] = item.Label
	}
	b.InputIDs = p.pad(seqs, maxLen)
	b.SegmentIDs = p.pad(segs, maxLen)
	return b, nil
}
