package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/bertdata/datasets"
	"github.com/gomlx/bertdata/squad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tinySQuAD = `{"version": "1.1", "data": [{"title": "t", "paragraphs": [{"context": "John Smith was born in 1895.",
	"qas": [{"id": "q1", "question": "When was he born?", "answers": [{"answer_start": 23, "text": "1895"}]}]}]}]}`

func TestExpandPatterns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0755))
	for _, name := range []string{"train.json", "a/dev.json", "a/b/test.json", "a/b/notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(tinySQuAD), 0644))
	}
	inputs, err := expandPatterns([]string{dir + "/**/*.json"})
	require.NoError(t, err)
	assert.Len(t, inputs, 3)

	_, err = expandPatterns([]string{dir + "/*.csv"})
	assert.Error(t, err)
	_, err = expandPatterns(nil)
	assert.Error(t, err)
}

// setFlags sets the flag values as if given in the command line, restoring them at the end of the test.
func setFlags(t *testing.T, values map[string]string) {
	for name, value := range values {
		previous := flag.Lookup(name).Value.String()
		require.NoError(t, flag.Set(name, value))
		explicitFlags[name] = true
		t.Cleanup(func() {
			_ = flag.Set(name, previous)
			delete(explicitFlags, name)
		})
	}
}

func TestBuildConfig(t *testing.T) {
	cfg, err := buildConfig(datasets.KindSQuAD)
	require.NoError(t, err)
	assert.Equal(t, datasets.SeqLen(datasets.DefaultSQuADMaxSenLen), cfg.MaxSenLen)
	assert.True(t, cfg.Sliding())

	cfg, err = buildConfig(datasets.KindSingle)
	require.NoError(t, err)
	assert.Equal(t, datasets.PadToBatch, cfg.MaxSenLen)

	setFlags(t, map[string]string{"max_sen_len": "128", "doc_stride": "32"})
	cfg, err = buildConfig(datasets.KindSQuAD)
	require.NoError(t, err)
	assert.Equal(t, datasets.SeqLen(128), cfg.MaxSenLen)
	assert.Equal(t, 32, cfg.DocStride)
}

func TestBuildConfig_SQuADWithoutLength(t *testing.T) {
	setFlags(t, map[string]string{"max_sen_len": ""})
	_, err := buildConfig(datasets.KindSQuAD)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-max_sen_len")

	setFlags(t, map[string]string{"sliding": "false"})
	_, err = buildConfig(datasets.KindSQuAD)
	assert.NoError(t, err, "the length is only required by the sliding window")

	configPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"batch_size": 8}`), 0644))
	setFlags(t, map[string]string{"config": configPath, "sliding": "true", "max_sen_len": "same"})
	_, err = buildConfig(datasets.KindSQuAD)
	assert.Error(t, err)
}

func TestItemLengths(t *testing.T) {
	items := []datasets.Item{
		{InputIDs: []int{2, 4, 3}},
		{Question: []int{2, 5}, Choices: [][]int{{6}, {6, 7, 8}}},
	}
	assert.Equal(t, []float64{3, 4, 6}, []float64(itemLengths(items)))
}

func TestConvertToParquet(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "train-v1.1.json")
	require.NoError(t, os.WriteFile(input, []byte(tinySQuAD), 0644))
	outDir := filepath.Join(dir, "parquet")
	require.NoError(t, convertToParquet([]string{input}, outDir))

	ds, err := squad.ReadFile(filepath.Join(outDir, "train-v1.parquet"))
	require.NoError(t, err)
	require.Equal(t, 1, ds.NumQuestions())
	assert.Equal(t, "1895", ds.Data[0].Paragraphs[0].Qas[0].Answers[0].Text)
}
