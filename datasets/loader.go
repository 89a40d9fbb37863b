package datasets

import (
	"io"
	"math"
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Loader iterates over the batches of processed items. It's not safe for concurrent use.
type Loader struct {
	name      string
	variant   Variant
	items     []Item
	batchSize int
	maxLen    int

	shuffle bool
	rng     *rand.Rand
	order   []int
	next    int
}

// NewLoader creates a loader of batches of batchSize items (the last one may be smaller), padded to maxLen
// (or to the longest of each batch if 0, see PadToBatch). If shuffle is true the order of the items is
// shuffled at creation and at every Reset, deterministically from seed.
func NewLoader(name string, variant Variant, items []Item, batchSize, maxLen int, shuffle bool, seed int64) *Loader {
	l := &Loader{
		name:      name,
		variant:   variant,
		items:     items,
		batchSize: max(batchSize, 1),
		maxLen:    maxLen,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
		order:     make([]int, len(items)),
	}
	for ii := range l.order {
		l.order[ii] = ii
	}
	l.Reset()
	return l
}

// Name of the loader, e.g.: "train".
func (l *Loader) Name() string { return l.name }

// NumItems returns the number of items.
func (l *Loader) NumItems() int { return len(l.items) }

// NumBatches returns the number of batches per epoch.
func (l *Loader) NumBatches() int { return (len(l.items) + l.batchSize - 1) / l.batchSize }

// MaxLen is the padding length of the batches, or PadToBatch.
func (l *Loader) MaxLen() int { return l.maxLen }

// Items returns the items in their original order.
func (l *Loader) Items() []Item { return l.items }

// Reset starts a new epoch, reshuffling the items if shuffling is enabled.
func (l *Loader) Reset() {
	l.next = 0
	if l.shuffle {
		l.rng.Shuffle(len(l.order), func(i, j int) { l.order[i], l.order[j] = l.order[j], l.order[i] })
	}
}

// Next returns the next batch, or io.EOF at the end of the epoch.
func (l *Loader) Next() (*Batch, error) {
	if l.next >= len(l.order) {
		return nil, io.EOF
	}
	end := min(l.next+l.batchSize, len(l.order))
	batchItems := make([]Item, 0, end-l.next)
	for _, idx := range l.order[l.next:end] {
		batchItems = append(batchItems, l.items[idx])
	}
	l.next = end
	batch, err := l.variant.Batch(batchItems, l.maxLen)
	if err != nil {
		return nil, errors.WithMessagef(err, "while assembling a batch of %q", l.name)
	}
	return batch, nil
}

// Yield returns the next batch as tensors, see Batch.Tensors. At the end of the epoch it returns io.EOF.
// The spec returned is always nil.
func (l *Loader) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	batch, err := l.Next()
	if err != nil {
		return nil, nil, nil, err
	}
	inputs, labels, err = batch.Tensors()
	return nil, inputs, labels, err
}

// Files to load with LoadTrainValTest.
type Files struct {
	Train, Val, Test string

	// OnlyTest loads only the test file.
	OnlyTest bool
}

// Loaders returned by LoadTrainValTest. Train and Val are nil if only the test set was requested.
type Loaders struct {
	Train, Val, Test *Loader
}

// SQuAD has no separate validation file: the validation set is a fixed random sample of the training records.
const (
	squadValFraction = 0.3
	squadValSeed     = 2021
)

// LoadTrainValTest processes the files and creates their loaders. Only the training loader is shuffled
// (if cfg.Shuffle), and all loaders pad to the same length.
//
// If cfg.MaxSenLen is PadToDataset, the length of the longest training sequence is used (or of the test
// set, if only the test set is loaded).
//
// For KindSQuAD the validation set is a sample of 30% of the training records, and the training set is
// used in full; for the other kinds it's read from files.Val.
func LoadTrainValTest(variant Variant, cfg Config, files Files) (*Loaders, error) {
	cfg = cfg.WithDefaults()
	loaders := &Loaders{}
	test, err := variant.Process(files.Test, false)
	if err != nil {
		return nil, errors.WithMessage(err, "while processing the test set")
	}
	if files.OnlyTest {
		maxLen := int(cfg.MaxSenLen)
		if cfg.MaxSenLen == PadToDataset {
			maxLen = test.MaxLen
		}
		loaders.Test = NewLoader("test", variant, test.Items, cfg.BatchSize, maxLen, false, cfg.Seed)
		klog.Infof("datasets: loaded test set with %d examples", loaders.Test.NumItems())
		return loaders, nil
	}

	train, err := variant.Process(files.Train, true)
	if err != nil {
		return nil, errors.WithMessage(err, "while processing the training set")
	}
	maxLen := int(cfg.MaxSenLen)
	if cfg.MaxSenLen == PadToDataset {
		maxLen = train.MaxLen
	}

	var valItems []Item
	if variant.Kind() == KindSQuAD {
		valItems = sampleItems(train.Items, squadValFraction, squadValSeed)
	} else {
		val, err := variant.Process(files.Val, true)
		if err != nil {
			return nil, errors.WithMessage(err, "while processing the validation set")
		}
		valItems = val.Items
	}

	loaders.Train = NewLoader("train", variant, train.Items, cfg.BatchSize, maxLen, cfg.ShuffleTraining(), cfg.Seed)
	loaders.Val = NewLoader("validation", variant, valItems, cfg.BatchSize, maxLen, false, cfg.Seed)
	loaders.Test = NewLoader("test", variant, test.Items, cfg.BatchSize, maxLen, false, cfg.Seed)
	klog.Infof("datasets: loaded %d training, %d validation and %d test examples, padding to %s",
		loaders.Train.NumItems(), loaders.Val.NumItems(), loaders.Test.NumItems(), SeqLen(maxLen))
	return loaders, nil
}

// sampleItems returns a deterministic random sample of ceil(fraction*len(items)) items.
func sampleItems(items []Item, fraction float64, seed int64) []Item {
	n := int(math.Ceil(fraction * float64(len(items))))
	perm := rand.New(rand.NewSource(seed)).Perm(len(items))
	sample := make([]Item, n)
	for ii := range sample {
		sample[ii] = items[perm[ii]]
	}
	return sample
}
