// Package api defines the Tokenizer API used by the dataset preprocessing.
// It's kept separate so tokenizer implementations and the `tokenizers` registry can both import it
// without a cyclic dependency.
package api

import "fmt"

// Tokenizer splits text into an ordered sequence of subword tokens (e.g.: "playing" -> "play", "##ing").
//
// Tokenizers are pure: the same text always yields the same tokens, and they hold no per-call state,
// so one instance can be shared by all preprocessing calls.
type Tokenizer interface {
	Tokenize(text string) []string
}

// TokenizerWithVocab is implemented by tokenizers that carry their own vocabulary (e.g.: tokenizer.json),
// which can then be used to build a vocab.Vocab.
type TokenizerWithVocab interface {
	Tokenizer

	// GetVocab returns the full token -> id mapping.
	GetVocab() map[string]int
}

// TokenizerFunc adapts an ordinary function to the Tokenizer interface.
type TokenizerFunc func(text string) []string

// Tokenize implements Tokenizer.
func (fn TokenizerFunc) Tokenize(text string) []string { return fn(text) }

// SpecialToken is an enum of commonly used special tokens.
type SpecialToken int

const (
	TokBeginningOfSentence SpecialToken = iota
	TokEndOfSentence
	TokUnknown
	TokPad
	TokMask
	TokClassification
	TokSeparator
	TokSpecialTokensCount
)

var specialTokenNames = [...]string{
	TokBeginningOfSentence: "beginning_of_sentence",
	TokEndOfSentence:       "end_of_sentence",
	TokUnknown:             "unknown",
	TokPad:                 "pad",
	TokMask:                "mask",
	TokClassification:      "classification",
	TokSeparator:           "separator",
}

// String implements fmt.Stringer.
func (t SpecialToken) String() string {
	if t >= 0 && t < TokSpecialTokensCount {
		return specialTokenNames[t]
	}
	return fmt.Sprintf("SpecialToken(%d)", int(t))
}

// BertSurface returns the BERT surface form of the special token ("[CLS]", "[SEP]", ...), or "" if BERT
// vocabularies don't define one.
//
// These exact strings must exist in the vocab.txt of BERT models.
func (t SpecialToken) BertSurface() string {
	switch t {
	case TokClassification:
		return "[CLS]"
	case TokSeparator:
		return "[SEP]"
	case TokUnknown:
		return "[UNK]"
	case TokPad:
		return "[PAD]"
	case TokMask:
		return "[MASK]"
	}
	return ""
}
