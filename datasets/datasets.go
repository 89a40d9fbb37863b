// Package datasets turns raw dataset files into padded batches for BERT-like models.
//
// There are four variants, selected by a Kind:
//
//   - KindSingle: single sentence classification, lines "text<sep>label".
//   - KindPair: sentence pair classification, lines "text1<sep>text2<sep>label".
//   - KindMultipleChoice: a CSV file with the columns startphrase, ending0 ... ending{N-1} and optionally label.
//   - KindSQuAD: extractive question answering on SQuAD JSON (or parquet) files, see package squad.
//
// All variants implement Variant, and share one Config. A Loader iterates over the batches of a
// processed file, and LoadTrainValTest creates the loaders of the usual train/validation/test split.
//
// Example:
//
//	tok, v, err := tokenizers.New("~/models/bert-base-uncased")
//	cfg := datasets.Config{MaxSenLen: 384}.WithDefaults()
//	variant, err := datasets.NewVariant(datasets.KindSQuAD, cfg, tok, v)
//	loaders, err := datasets.LoadTrainValTest(variant, cfg, datasets.Files{Train: "train.json", Test: "dev.json"})
//	for {
//		batch, err := loaders.Train.Next()
//		if err == io.EOF {
//			break
//		}
//		...
//	}
package datasets

import (
	"github.com/gomlx/bertdata/cache"
	"github.com/gomlx/bertdata/tokenizers/api"
	"github.com/gomlx/bertdata/vocab"
	"github.com/pkg/errors"
)

// Kind of dataset variant.
type Kind string

const (
	KindSingle         Kind = "single"
	KindPair           Kind = "pair"
	KindMultipleChoice Kind = "multiple_choice"
	KindSQuAD          Kind = "squad"
)

// Kinds lists all the variants.
var Kinds = []Kind{KindSingle, KindPair, KindMultipleChoice, KindSQuAD}

// ParseKind returns the Kind with the given name.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", errors.Wrapf(ErrConfig, "unknown dataset kind %q, valid values are %v", name, Kinds)
}

// Variant processes the files of one kind of dataset, and assembles its items into batches.
type Variant interface {
	Kind() Kind

	// Process reads and encodes the dataset file. isTraining is only used by the SQuAD variant, where
	// inference files carry no answers.
	Process(filePath string, isTraining bool) (*Processed, error)

	// Batch pads the items into a Batch. maxLen is the padding length, or 0 (PadToBatch) to pad to the
	// longest sequence of the batch.
	Batch(items []Item, maxLen int) (*Batch, error)
}

// Option configures NewVariant.
type Option func(o *options)

type options struct {
	store cache.Store
}

// WithCache sets the store used to cache processed SQuAD files.
// By default a cache.FileStore under Config.CacheDir (or next to the dataset files) is used.
// Use cache.NopStore{} to disable caching.
func WithCache(store cache.Store) Option {
	return func(o *options) { o.store = store }
}

// NewVariant creates the Variant for the given kind.
//
// The tokenizer and the vocabulary are only read, and can be shared with other variants.
func NewVariant(kind Kind, cfg Config, tokenizer api.Tokenizer, v *vocab.Vocab, opts ...Option) (Variant, error) {
	if tokenizer == nil || v == nil {
		return nil, errors.Wrap(ErrConfig, "a tokenizer and a vocabulary are required")
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(kind); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	base := baseVariant{cfg: cfg, tokenizer: tokenizer, vocab: v}
	switch kind {
	case KindSingle:
		return &singleVariant{base}, nil
	case KindPair:
		return &pairVariant{base}, nil
	case KindMultipleChoice:
		return &multipleChoiceVariant{base}, nil
	case KindSQuAD:
		return newSQuADVariant(base, o.store)
	}
	return nil, errors.Wrapf(ErrConfig, "unknown dataset kind %q", kind)
}

// baseVariant holds what all variants share.
type baseVariant struct {
	cfg       Config
	tokenizer api.Tokenizer
	vocab     *vocab.Vocab
}

// ids tokenizes the text and maps the tokens to ids.
func (b *baseVariant) ids(text string) []int {
	return b.vocab.IDs(b.tokenizer.Tokenize(text))
}

// truncateAndClose truncates the sequence to MaxPositionEmbeddings-1 and appends "[SEP]".
func (b *baseVariant) truncateAndClose(seq []int) []int {
	if len(seq) > b.cfg.MaxPositionEmbeddings-1 {
		seq = seq[:b.cfg.MaxPositionEmbeddings-1]
	}
	out := make([]int, len(seq), len(seq)+1)
	copy(out, seq)
	return append(out, b.vocab.SepID)
}

// pad calls PadSequence with the configured layout and padding value.
func (b *baseVariant) pad(seqs [][]int, maxLen int) [][]int {
	return PadSequence(seqs, b.cfg.BatchFirst, maxLen, b.cfg.PadIndex)
}
