// Package tokenizers creates a tokenizer and its vocabulary from a local model directory.
//
// Given a directory holding HuggingFace model files, it uses "tokenizer_config.json" (if present) to pick
// the tokenizer class, and then one of "tokenizer.json", "vocab.txt" or "tokenizer.model" to instantiate
// a Tokenizer and the matching vocab.Vocab.
package tokenizers

import (
	"path/filepath"

	"github.com/gomlx/bertdata/internal/files"
	"github.com/gomlx/bertdata/tokenizers/api"
	"github.com/gomlx/bertdata/tokenizers/hftokenizer"
	"github.com/gomlx/bertdata/tokenizers/sentencepiece"
	"github.com/gomlx/bertdata/vocab"
	"github.com/pkg/errors"
)

// Tokenizer splits text into subword tokens. It's an alias to api.Tokenizer.
type Tokenizer = api.Tokenizer

// Config struct to hold HuggingFace's tokenizer_config.json contents. It's an alias to api.Config.
type Config = api.Config

// Well known file names in a model directory.
const (
	ConfigFile        = "tokenizer_config.json"
	TokenizerJSONFile = "tokenizer.json"
	VocabFile         = "vocab.txt"
)

// TokenizerConstructor is used by Tokenizer implementations to provide implementations for different
// tokenizer classes. The config is never nil.
type TokenizerConstructor func(config *api.Config, dir string) (api.Tokenizer, *vocab.Vocab, error)

// RegisterTokenizerClass registers (or replaces) the constructor for a tokenizer class.
func RegisterTokenizerClass(name string, constructor TokenizerConstructor) {
	registerOfClasses[name] = constructor
}

var (
	registerOfClasses = make(map[string]TokenizerConstructor)
)

func init() {
	for _, className := range []string{
		"BertTokenizer", "BertTokenizerFast", "DistilBertTokenizer", "DistilBertTokenizerFast",
		"ElectraTokenizer", "ElectraTokenizerFast"} {
		RegisterTokenizerClass(className, newFromFiles)
	}
}

// New creates a tokenizer and its vocabulary from the model directory dir.
//
// If "tokenizer_config.json" is missing, it defaults to an uncased BERT configuration, and the tokenizer
// is picked from the files present.
func New(dir string) (Tokenizer, *vocab.Vocab, error) {
	config, err := GetConfig(dir)
	if err != nil {
		return nil, nil, err
	}
	if config.TokenizerClass == "" {
		return newFromFiles(config, dir)
	}
	constructor, found := registerOfClasses[config.TokenizerClass]
	if !found {
		// Unknown classes still work if the directory has files we know how to read.
		return newFromFiles(config, dir)
	}
	return constructor(config, dir)
}

// GetConfig returns the parsed "tokenizer_config.json" of the model directory, or the default BERT
// uncased configuration if there is no such file.
func GetConfig(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFile)
	if !files.Exists(configPath) {
		return &Config{}, nil
	}
	return api.ParseConfigFile(configPath)
}

// newFromFiles picks the tokenizer based on the files in dir, in order of preference:
// tokenizer.json, vocab.txt (BERT WordPiece) and tokenizer.model (SentencePiece, whose pieces are the
// vocabulary).
func newFromFiles(config *api.Config, dir string) (api.Tokenizer, *vocab.Vocab, error) {
	tokenizerJSON := filepath.Join(dir, TokenizerJSONFile)
	vocabPath := filepath.Join(dir, VocabFile)
	spModel := filepath.Join(dir, sentencepiece.ModelFile)

	switch {
	case files.Exists(tokenizerJSON):
		tok, err := hftokenizer.NewFromFile(config, tokenizerJSON)
		if err != nil {
			return nil, nil, err
		}
		v, err := vocab.FromMap(tok.GetVocab())
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "vocabulary of %q", tokenizerJSON)
		}
		return tok, v, nil

	case files.Exists(vocabPath) && !files.Exists(spModel):
		v, err := vocab.Load(vocabPath)
		if err != nil {
			return nil, nil, err
		}
		return hftokenizer.NewWordPiece(v.Map(), config), v, nil

	case files.Exists(spModel):
		tok, err := sentencepiece.New(spModel)
		if err != nil {
			return nil, nil, err
		}
		unkID, err := tok.SpecialTokenID(api.TokUnknown)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "sentencepiece model %q", spModel)
		}
		v, err := vocab.FromTokens(tok.Pieces, unkID)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "vocabulary of %q", spModel)
		}
		return tok, v, nil
	}
	return nil, nil, errors.Errorf("no %s, %s or %s found in %q", TokenizerJSONFile, VocabFile,
		sentencepiece.ModelFile, dir)
}
