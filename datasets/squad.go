package datasets

import (
	"github.com/gomlx/bertdata/cache"
	"github.com/gomlx/bertdata/squad"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Cache postfixes of the SQuAD variant.
const (
	PostfixSliding   = "sliding"
	PostfixNoSliding = "no_sliding"

	// inferencePostfix is appended for files processed with isTraining=false, which carry no answers.
	inferencePostfix = "_inference"
)

// squadVariant implements extractive question answering.
type squadVariant struct {
	baseVariant
	encoder *squad.Encoder
	store   cache.Store
}

func newSQuADVariant(base baseVariant, store cache.Store) (*squadVariant, error) {
	encoder, err := squad.NewEncoder(base.tokenizer, base.vocab, base.cfg.squadOptions())
	if err != nil {
		return nil, errors.Wrap(ErrConfig, err.Error())
	}
	if store == nil {
		store, err = cache.NewFileStore(base.cfg.CacheDir)
		if err != nil {
			return nil, err
		}
	}
	return &squadVariant{baseVariant: base, encoder: encoder, store: store}, nil
}

func (s *squadVariant) Kind() Kind { return KindSQuAD }

// cacheKey includes every parameter that changes the encoding of the file.
func (s *squadVariant) cacheKey(filePath string, isTraining bool) cache.Key {
	postfix := PostfixNoSliding
	if s.cfg.Sliding() {
		postfix = PostfixSliding
	}
	if !isTraining {
		postfix += inferencePostfix
	}
	return cache.Key{
		Path:           filePath,
		Postfix:        postfix,
		DocStride:      s.cfg.DocStride,
		MaxSenLen:      int(s.cfg.MaxSenLen),
		MaxQueryLength: s.cfg.MaxQueryLength,
	}
}

// Process reads the SQuAD file, builds its examples and encodes them. The result is cached.
func (s *squadVariant) Process(filePath string, isTraining bool) (*Processed, error) {
	return cache.Lookup(s.store, s.cacheKey(filePath, isTraining), func() (*Processed, error) {
		return s.process(filePath, isTraining)
	})
}

func (s *squadVariant) process(filePath string, isTraining bool) (*Processed, error) {
	ds, err := squad.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	examples := squad.BuildExamples(ds, isTraining)
	records, maxLen, err := s.encoder.EncodeAll(examples, isTraining)
	if err != nil {
		return nil, errors.WithMessagef(err, "while encoding %q", filePath)
	}
	p := &Processed{Items: make([]Item, len(records)), MaxLen: maxLen}
	for ii, r := range records {
		p.Items[ii] = Item{
			InputIDs:      r.InputIDs,
			SegmentIDs:    r.SegmentIDs,
			StartPosition: r.StartPosition,
			EndPosition:   r.EndPosition,
			AnswerText:    r.AnswerText,
			QuestionID:    r.QuestionID,
		}
	}
	klog.Infof("datasets: %q: %d questions encoded into %d records, longest has %d tokens", filePath,
		len(examples), len(records), maxLen)
	return p, nil
}

func (s *squadVariant) Batch(items []Item, maxLen int) (*Batch, error) {
	b := &Batch{
		Kind:        KindSQuAD,
		BatchFirst:  s.cfg.BatchFirst,
		Positions:   make([][]int, len(items)),
		QuestionIDs: make([]string, len(items)),
	}
	seqs := make([][]int, len(items))
	segs := make([][]int, len(items))
	for ii, item := range items {
		seqs[ii] = item.InputIDs
		segs[ii] = item.SegmentIDs
		b.Positions[ii] = []int{item.StartPosition, item.EndPosition}
		b.QuestionIDs[ii] = item.QuestionID
	}
	b.InputIDs = s.pad(seqs, maxLen)
	b.SegmentIDs = s.pad(segs, maxLen)
	return b, nil
}
