package datasets

import (
	"io"
	"strings"
	"testing"

	"github.com/gomlx/bertdata/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labeledItems(n int) []Item {
	items := make([]Item, n)
	for ii := range items {
		items[ii] = Item{InputIDs: []int{2, 4 + ii%3, 3}, Label: ii}
	}
	return items
}

// epochLabels drains the loader and returns the labels in the order seen.
func epochLabels(t *testing.T, l *Loader) (labels []int, batchSizes []int) {
	for {
		b, err := l.Next()
		if err == io.EOF {
			return
		}
		require.NoError(t, err)
		labels = append(labels, b.Labels...)
		batchSizes = append(batchSizes, b.Size())
	}
}

func TestLoader(t *testing.T) {
	variant := newTestVariant(t, KindSingle, Config{})
	l := NewLoader("test", variant, labeledItems(10), 4, int(PadToBatch), false, 0)
	assert.Equal(t, "test", l.Name())
	assert.Equal(t, 10, l.NumItems())
	assert.Equal(t, 3, l.NumBatches())

	labels, sizes := epochLabels(t, l)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, labels)
	assert.Equal(t, []int{4, 4, 2}, sizes)

	_, err := l.Next()
	assert.Equal(t, io.EOF, err)
	l.Reset()
	labels, _ = epochLabels(t, l)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, labels)
}

func TestLoader_Shuffle(t *testing.T) {
	variant := newTestVariant(t, KindSingle, Config{})
	l1 := NewLoader("train", variant, labeledItems(20), 8, int(PadToBatch), true, 42)
	l2 := NewLoader("train", variant, labeledItems(20), 8, int(PadToBatch), true, 42)
	epoch1, _ := epochLabels(t, l1)
	same, _ := epochLabels(t, l2)
	assert.Equal(t, epoch1, same, "same seed, same order")
	assert.ElementsMatch(t, labeledLabels(20), epoch1)
	assert.NotEqual(t, labeledLabels(20), epoch1)

	l1.Reset()
	epoch2, _ := epochLabels(t, l1)
	assert.ElementsMatch(t, epoch1, epoch2)
	assert.NotEqual(t, epoch1, epoch2, "reshuffled at every epoch")
}

func labeledLabels(n int) []int {
	labels := make([]int, n)
	for ii := range labels {
		labels[ii] = ii
	}
	return labels
}

func TestLoader_Yield(t *testing.T) {
	variant := newTestVariant(t, KindSingle, Config{})
	l := NewLoader("test", variant, labeledItems(3), 2, 5, false, 0)
	spec, inputs, labels, err := l.Yield()
	require.NoError(t, err)
	assert.Nil(t, spec)
	require.Len(t, inputs, 1)
	assert.Equal(t, []int{5, 2}, inputs[0].Shape().Dimensions)
	assert.Equal(t, []int{2}, labels[0].Shape().Dimensions)
	_, _, _, err = l.Yield()
	require.NoError(t, err)
	_, _, _, err = l.Yield()
	assert.Equal(t, io.EOF, err)
}

func TestLoadTrainValTest(t *testing.T) {
	dir := t.TempDir()
	train := writeFile(t, dir, "train.txt", "good movie\t1\nbad plot is bad\t0\nthe movie\t1\n")
	val := writeFile(t, dir, "val.txt", "good\t1\n")
	test := writeFile(t, dir, "test.txt", "bad\t0\nthe plot\t0\n")
	cfg := Config{MaxSenLen: PadToDataset, BatchSize: 2}
	variant := newTestVariant(t, KindSingle, cfg)

	loaders, err := LoadTrainValTest(variant, cfg, Files{Train: train, Val: val, Test: test})
	require.NoError(t, err)
	assert.Equal(t, 3, loaders.Train.NumItems())
	assert.Equal(t, 1, loaders.Val.NumItems())
	assert.Equal(t, 2, loaders.Test.NumItems())
	// Longest training sequence: "[CLS] bad plot is bad [SEP]".
	for _, l := range []*Loader{loaders.Train, loaders.Val, loaders.Test} {
		assert.Equal(t, 6, l.MaxLen(), l.Name())
	}
	b, err := loaders.Test.Next()
	require.NoError(t, err)
	assert.Len(t, b.InputIDs, 6)

	loaders, err = LoadTrainValTest(variant, cfg, Files{Test: test, OnlyTest: true})
	require.NoError(t, err)
	assert.Nil(t, loaders.Train)
	assert.Nil(t, loaders.Val)
	assert.Equal(t, 4, loaders.Test.MaxLen(), "only test: padded to the longest test sequence")

	_, err = LoadTrainValTest(variant, cfg, Files{Train: train, Val: dir + "/missing.txt", Test: test})
	assert.Error(t, err)
}

func TestLoadTrainValTest_SQuAD(t *testing.T) {
	dir := t.TempDir()
	// 10 questions, each fitting in a single record.
	var qas []string
	for range 10 {
		qas = append(qas, `{"id": "q", "question": "who ?", "answers": [{"answer_start": 15, "text": "john smith"}]}`)
	}
	content := strings.Replace(testSQuADJSON, `"qas": [`, `"qas": [`+strings.Join(qas, ",")+",", 1)
	train := writeFile(t, dir, "train.json", content)
	test := writeFile(t, dir, "dev.json", testSQuADJSON)
	cfg := Config{MaxSenLen: 64, BatchSize: 4}
	variant := newTestVariant(t, KindSQuAD, cfg, WithCache(cache.NopStore{}))

	loaders, err := LoadTrainValTest(variant, cfg, Files{Train: train, Test: test})
	require.NoError(t, err)
	assert.Equal(t, 12, loaders.Train.NumItems(), "training set is used in full")
	assert.Equal(t, 4, loaders.Val.NumItems(), "30% of the training records")
	assert.Equal(t, 3, loaders.Test.NumItems())

	again, err := LoadTrainValTest(variant, cfg, Files{Train: train, Test: test})
	require.NoError(t, err)
	assert.Equal(t, loaders.Val.Items(), again.Val.Items(), "validation split is deterministic")
}
