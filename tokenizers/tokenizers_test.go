package tokenizers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/bertdata/tokenizers/api"
	"github.com/gomlx/bertdata/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestNew_VocabTxt(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, VocabFile, "[PAD]\n[UNK]\n[CLS]\n[SEP]\nhello\nworld\n##s\n")

	tok, v, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world", "##s", "[UNK]"}, tok.Tokenize("Hello worlds zzz"))
	assert.Equal(t, 2, v.ClsID)
	assert.Equal(t, 7, v.Len())
}

func TestNew_WithConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, VocabFile, "[PAD]\n[UNK]\n[CLS]\n[SEP]\nHello\n")
	writeFile(t, dir, ConfigFile, `{"tokenizer_class": "BertTokenizer", "do_lower_case": false}`)

	config, err := GetConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "BertTokenizer", config.TokenizerClass)
	assert.False(t, config.LowerCase())
	assert.True(t, config.ChineseChars())

	tok, _, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", "[UNK]"}, tok.Tokenize("Hello hello"))
}

func TestNew_ConfigWithoutCasing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, VocabFile, "[PAD]\n[UNK]\n[CLS]\n[SEP]\nhello\n我\n们\n##们\n")
	writeFile(t, dir, ConfigFile, `{"model_max_length": 512}`)

	tok, _, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "我", "们"}, tok.Tokenize("Hello 我们"))

	writeFile(t, dir, ConfigFile, `{"do_lower_case": true, "tokenize_chinese_chars": false}`)
	tok, _, err = New(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "我", "##们"}, tok.Tokenize("Hello 我们"))
}

func TestNew_TokenizerJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, TokenizerJSONFile, `{
		"normalizer": {"type": "BertNormalizer", "lowercase": true},
		"pre_tokenizer": {"type": "BertPreTokenizer"},
		"model": {"type": "WordPiece", "unk_token": "[UNK]",
			"vocab": {"[UNK]": 0, "[CLS]": 1, "[SEP]": 2, "hi": 3}}}`)

	tok, v, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "[UNK]"}, tok.Tokenize("Hi there"))
	assert.Equal(t, 3, v.ID("hi"))
}

func TestNew_RegisteredClass(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFile, `{"tokenizer_class": "TestWhitespaceTokenizer"}`)
	writeFile(t, dir, VocabFile, "[UNK]\n[CLS]\n[SEP]\n")
	RegisterTokenizerClass("TestWhitespaceTokenizer", func(config *api.Config, dir string) (api.Tokenizer, *vocab.Vocab, error) {
		_, v, err := newFromFiles(config, dir)
		return api.TokenizerFunc(func(text string) []string { return []string{text} }), v, err
	})
	tok, _, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a b"}, tok.Tokenize("a b"))
}

func TestNew_Empty(t *testing.T) {
	_, _, err := New(t.TempDir())
	assert.Error(t, err)
}
