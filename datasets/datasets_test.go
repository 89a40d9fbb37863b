package datasets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/bertdata/cache"
	"github.com/gomlx/bertdata/squad"
	"github.com/gomlx/bertdata/tokenizers/api"
	"github.com/gomlx/bertdata/vocab"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTokenizer lower-cases and splits on whitespace.
var testTokenizer = api.TokenizerFunc(func(text string) []string {
	return strings.Fields(strings.ToLower(text))
})

var testWords = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]",
	"good", "bad", "movie", "plot", "is", "the", "a", "he", "she", "opens", "door", "eats", "sleeps", "runs",
	"who", "when", "leader", "was", "john", "smith", "born", "in", "1895", "paris", "?",
}

func testVocab(t *testing.T) *vocab.Vocab {
	v, err := vocab.Read(strings.NewReader(strings.Join(testWords, "\n")))
	require.NoError(t, err)
	return v
}

func writeFile(t *testing.T, dir, name, content string) string {
	filePath := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	return filePath
}

func newTestVariant(t *testing.T, kind Kind, cfg Config, opts ...Option) Variant {
	variant, err := NewVariant(kind, cfg, testTokenizer, testVocab(t), opts...)
	require.NoError(t, err)
	require.Equal(t, kind, variant.Kind())
	return variant
}

// ids of the words in the test vocabulary.
func ids(t *testing.T, words string) []int {
	return testVocab(t).IDs(strings.Fields(words))
}

func TestNewVariant_Errors(t *testing.T) {
	_, err := NewVariant(KindSingle, Config{}, nil, testVocab(t))
	assert.True(t, errors.Is(err, ErrConfig))
	_, err = NewVariant(Kind("bogus"), Config{}, testTokenizer, testVocab(t))
	assert.True(t, errors.Is(err, ErrConfig))
	_, err = NewVariant(KindSQuAD, Config{}, testTokenizer, testVocab(t))
	assert.True(t, errors.Is(err, ErrConfig), "sliding window requires max_sen_len")
}

func TestSingleVariant(t *testing.T) {
	dir := t.TempDir()
	filePath := writeFile(t, dir, "train.txt", "Good movie\t1\n\nbad plot is bad\t0\r\nzebra\t1\n")
	variant := newTestVariant(t, KindSingle, Config{MaxPositionEmbeddings: 4})
	p, err := variant.Process(filePath, true)
	require.NoError(t, err)
	require.Len(t, p.Items, 3)
	assert.Equal(t, ids(t, "[CLS] good movie [SEP]"), p.Items[0].InputIDs)
	assert.Equal(t, 1, p.Items[0].Label)
	assert.Equal(t, ids(t, "[CLS] bad plot [SEP]"), p.Items[1].InputIDs, "truncated to max_position_embeddings")
	assert.Equal(t, 0, p.Items[1].Label)
	assert.Equal(t, ids(t, "[CLS] [UNK] [SEP]"), p.Items[2].InputIDs)
	assert.Equal(t, 4, p.MaxLen)

	b, err := variant.Batch(p.Items, int(PadToBatch))
	require.NoError(t, err)
	assert.Equal(t, 3, b.Size())
	assert.Equal(t, []int{1, 0, 1}, b.Labels)
	require.Len(t, b.InputIDs, 4, "[max_len][batch]")
	assert.Equal(t, []int{2, 2, 2}, b.InputIDs[0])
	assert.Equal(t, []int{3, 3, 0}, b.InputIDs[3])

	inputs, labels, err := b.Tensors()
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.Len(t, labels, 1)
	assert.Equal(t, []int{4, 3}, inputs[0].Shape().Dimensions)
	assert.Equal(t, []int{3}, labels[0].Shape().Dimensions)
}

func TestSingleVariant_Malformed(t *testing.T) {
	dir := t.TempDir()
	variant := newTestVariant(t, KindSingle, Config{})

	_, err := variant.Process(writeFile(t, dir, "a.txt", "good\t1\nno label here\n"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.txt:2")

	_, err = variant.Process(writeFile(t, dir, "b.txt", "good\tone\n"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.txt:1")

	_, err = variant.Process(filepath.Join(dir, "missing.txt"), true)
	assert.Error(t, err)
}

func TestPairVariant(t *testing.T) {
	dir := t.TempDir()
	filePath := writeFile(t, dir, "pairs.txt", "he opens the door_!_she sleeps_!_1\n")
	variant := newTestVariant(t, KindPair, Config{Sep: "_!_", BatchFirst: true})
	p, err := variant.Process(filePath, true)
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	item := p.Items[0]
	assert.Equal(t, ids(t, "[CLS] he opens the door [SEP] she sleeps [SEP]"), item.InputIDs)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0, 1, 1, 1}, item.SegmentIDs)
	assert.Equal(t, 1, item.Label)

	b, err := variant.Batch(p.Items, 12)
	require.NoError(t, err)
	require.Len(t, b.InputIDs, 1, "[batch][max_len]")
	assert.Len(t, b.InputIDs[0], 12)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0, 1, 1, 1, 0, 0, 0}, b.SegmentIDs[0])

	_, err = variant.Process(writeFile(t, dir, "bad.txt", "he_!_1\n"), true)
	assert.Error(t, err)
}

func TestPairVariant_Truncation(t *testing.T) {
	dir := t.TempDir()
	filePath := writeFile(t, dir, "pairs.txt", "he opens the door\tshe sleeps\t0\n")
	variant := newTestVariant(t, KindPair, Config{MaxPositionEmbeddings: 5})
	p, err := variant.Process(filePath, true)
	require.NoError(t, err)
	assert.Equal(t, ids(t, "[CLS] he opens the [SEP]"), p.Items[0].InputIDs)
	assert.Equal(t, []int{0, 0, 0, 0, 0}, p.Items[0].SegmentIDs)
}

const testMultipleChoiceCSV = `video-id,startphrase,ending0,ending1,label
v1,He opens,the door,a door,0
v2,"She eats, the","door",plot,1
`

func TestMultipleChoiceVariant(t *testing.T) {
	dir := t.TempDir()
	filePath := writeFile(t, dir, "swag.csv", testMultipleChoiceCSV)
	variant := newTestVariant(t, KindMultipleChoice, Config{NumChoice: 2})
	p, err := variant.Process(filePath, true)
	require.NoError(t, err)
	require.Len(t, p.Items, 2)
	assert.Equal(t, ids(t, "[CLS] he opens [SEP]"), p.Items[0].Question)
	assert.Equal(t, [][]int{ids(t, "the door"), ids(t, "a door")}, p.Items[0].Choices)
	assert.Equal(t, 0, p.Items[0].Label)
	assert.Equal(t, 1, p.Items[1].Label)
	// "[CLS] she eats, the [SEP]" + "door" + "[SEP]"; "eats," is unknown.
	assert.Equal(t, 7, p.MaxLen)

	b, err := variant.Batch(p.Items, 8)
	require.NoError(t, err)
	assert.True(t, b.BatchFirst)
	require.Len(t, b.ChoiceInputIDs, 2)
	require.Len(t, b.ChoiceInputIDs[0], 2)
	assert.Equal(t, append(ids(t, "[CLS] he opens [SEP] the door [SEP]"), 0), b.ChoiceInputIDs[0][0])
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 1, 0}, b.ChoiceSegmentIDs[0][0])
	assert.Equal(t, []bool{false, false, false, false, false, false, false, true}, b.ChoiceMask[0][0])
	assert.Equal(t, []int{0, 1}, b.Labels)

	inputs, labels, err := b.Tensors()
	require.NoError(t, err)
	require.Len(t, inputs, 3)
	assert.Equal(t, []int{2, 2, 8}, inputs[0].Shape().Dimensions)
	assert.Equal(t, []int{2, 2, 8}, inputs[2].Shape().Dimensions)
	assert.Equal(t, []int{2}, labels[0].Shape().Dimensions)
}

func TestMultipleChoiceVariant_NoLabel(t *testing.T) {
	dir := t.TempDir()
	filePath := writeFile(t, dir, "test.csv", "startphrase,ending0,ending1\nhe,runs,sleeps\n")
	variant := newTestVariant(t, KindMultipleChoice, Config{NumChoice: 2})
	p, err := variant.Process(filePath, false)
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, NoLabel, p.Items[0].Label)

	_, err = variant.Process(writeFile(t, dir, "bad.csv", "startphrase,ending0\nhe,runs\n"), false)
	assert.Error(t, err, "missing ending1 column")

	_, err = variant.Process(writeFile(t, dir, "ragged.csv", "startphrase,ending0,ending1\nhe,runs\n"), false)
	assert.Error(t, err)
}

const testSQuADJSON = `{"data": [{"title": "t", "paragraphs": [
  {"context": "the leader was john smith born in 1895 in paris",
   "qas": [
     {"id": "q1", "question": "who was the leader ?", "answers": [{"answer_start": 15, "text": "john smith"}]},
     {"id": "q2", "question": "when was he born ?", "answers": [{"answer_start": 34, "text": "1895"}]},
     {"id": "q3", "question": "who ?", "answers": [{"answer_start": 0, "text": "paris"}]}
   ]}
]}]}`

func TestSQuADVariant(t *testing.T) {
	dir := t.TempDir()
	filePath := writeFile(t, dir, "train.json", testSQuADJSON)
	cfg := Config{MaxSenLen: 12, DocStride: 2, BatchFirst: true}
	variant := newTestVariant(t, KindSQuAD, cfg, WithCache(&cache.FileStore{}))

	p, err := variant.Process(filePath, true)
	require.NoError(t, err)
	// q3 is dropped. Questions take "[CLS] q q q q q [SEP]" (7 tokens), leaving windows of 4 context
	// tokens over 10: [0,4), [2,6), [4,8), [6,10).
	require.Len(t, p.Items, 8)
	assert.Equal(t, 12, p.MaxLen)
	positions := make([][2]int, len(p.Items))
	for ii, item := range p.Items {
		positions[ii] = [2]int{item.StartPosition, item.EndPosition}
	}
	// "john smith" is context tokens 3-4: the containment check of a window includes its end.
	// "1895" is context token 7.
	assert.Equal(t, [][2]int{{10, 11}, {8, 9}, {0, 0}, {0, 0}, {0, 0}, {0, 0}, {10, 10}, {8, 8}}, positions)
	q1 := p.Items[:4]
	assert.Equal(t, "q1", q1[1].QuestionID)
	assert.Equal(t, "john smith", q1[1].AnswerText)

	cacheFile := filepath.Join(dir, "train_sliding_2_12_64.cache")
	assert.FileExists(t, cacheFile)
	cached, err := variant.Process(filePath, true)
	require.NoError(t, err)
	assert.Equal(t, p, cached)

	b, err := variant.Batch(p.Items[:2], int(PadToBatch))
	require.NoError(t, err)
	assert.Equal(t, [][]int{{10, 11}, {8, 9}}, b.Positions)
	assert.Equal(t, []string{"q1", "q1"}, b.QuestionIDs)
	inputs, labels, err := b.Tensors()
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, []int{2, 12}, inputs[0].Shape().Dimensions)
	assert.Equal(t, []int{2, 2}, labels[0].Shape().Dimensions)
}

func TestSQuADVariant_Inference(t *testing.T) {
	dir := t.TempDir()
	filePath := writeFile(t, dir, "dev.json", testSQuADJSON)
	variant := newTestVariant(t, KindSQuAD, Config{WithSliding: boolPtr(false)}, WithCache(cache.NopStore{}))
	p, err := variant.Process(filePath, false)
	require.NoError(t, err)
	require.Len(t, p.Items, 3)
	for _, item := range p.Items {
		assert.Equal(t, squad.NoPosition, item.StartPosition)
		assert.Equal(t, squad.NoPosition, item.EndPosition)
	}
	assert.NoFileExists(t, filepath.Join(dir, "dev_no_sliding_inference_64_0_64.cache"))
}

func TestSQuADVariant_WindowTooSmall(t *testing.T) {
	dir := t.TempDir()
	filePath := writeFile(t, dir, "train.json", testSQuADJSON)
	variant := newTestVariant(t, KindSQuAD, Config{MaxSenLen: 5}, WithCache(cache.NopStore{}))
	_, err := variant.Process(filePath, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, squad.ErrWindowTooSmall))
}
