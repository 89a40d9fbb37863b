// Package hftokenizer implements a subword tokenizer for HuggingFace's tokenizer.json format and for
// plain BERT vocab.txt files.
//
// The tokenizer.json format is used by the HuggingFace Tokenizers library (the "fast" tokenizers) and
// supports WordPiece (BERT), BPE (GPT-2, RoBERTa), and Unigram models. Only the pieces needed to split
// text into subword strings are implemented: id lookup is done by the vocab package.
package hftokenizer

import (
	"encoding/json"
	"os"
	"strings"
	"unicode"

	"github.com/gomlx/bertdata/tokenizers/api"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// TokenizerJSON represents the structure of HuggingFace's tokenizer.json file.
type TokenizerJSON struct {
	Version      string        `json:"version"`
	AddedTokens  []AddedToken  `json:"added_tokens"`
	Normalizer   *Normalizer   `json:"normalizer"`
	PreTokenizer *PreTokenizer `json:"pre_tokenizer"`
	Model        Model         `json:"model"`
}

// AddedToken represents a special token added to the vocabulary.
type AddedToken struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
	Special bool   `json:"special"`
}

// Normalizer represents the normalizer configuration.
type Normalizer struct {
	Type               string       `json:"type"`
	Lowercase          bool         `json:"lowercase"`
	StripAccents       *bool        `json:"strip_accents"`
	HandleChineseChars *bool        `json:"handle_chinese_chars"`
	Normalizers        []Normalizer `json:"normalizers"`
}

// PreTokenizer represents the pre-tokenizer configuration.
type PreTokenizer struct {
	Type           string         `json:"type"`
	AddPrefixSpace bool           `json:"add_prefix_space"`
	PreTokenizers  []PreTokenizer `json:"pretokenizers"`
}

// Model represents the tokenizer model (WordPiece, BPE, or Unigram).
type Model struct {
	Type                    string         `json:"type"`
	Vocab                   map[string]int `json:"vocab"`
	Merges                  []string       `json:"merges"`
	UnkToken                string         `json:"unk_token"`
	ContinuingSubwordPrefix string         `json:"continuing_subword_prefix"`
	MaxInputCharsPerWord    int            `json:"max_input_chars_per_word"`
	EndOfWordSuffix         string         `json:"end_of_word_suffix"`
}

// Tokenizer implements api.Tokenizer for HuggingFace tokenizer.json files and BERT vocabularies.
type Tokenizer struct {
	tokenizer   *TokenizerJSON
	mergeRanks  map[string]int // For BPE: maps "token1 token2" to merge priority
	addedTokens map[string]int
}

// Compile time assert that Tokenizer implements api.TokenizerWithVocab interface.
var _ api.TokenizerWithVocab = &Tokenizer{}

// NewFromFile creates a HuggingFace tokenizer from a local tokenizer.json file path.
func NewFromFile(config *api.Config, filePath string) (*Tokenizer, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tokenizer.json file %q", filePath)
	}
	return NewFromContent(config, content)
}

// NewFromContent creates a HuggingFace tokenizer from tokenizer.json content.
//
// The config is optional (it can be nil), and it's only used to fill in an unknown token the
// tokenizer.json may be missing.
func NewFromContent(config *api.Config, content []byte) (*Tokenizer, error) {
	var tj TokenizerJSON
	if err := json.Unmarshal(content, &tj); err != nil {
		return nil, errors.Wrapf(err, "failed to parse tokenizer.json")
	}
	if tj.Model.Type == "" {
		return nil, errors.Errorf("tokenizer.json has no model type")
	}
	if tj.Model.UnkToken == "" && config != nil {
		tj.Model.UnkToken = config.UnkToken
	}
	return newTokenizer(&tj), nil
}

// NewWordPiece creates a BERT tokenizer (basic tokenization followed by WordPiece) over the given
// vocabulary, as loaded from a vocab.txt file.
//
// Options missing from config (or a nil config) behave like "bert-base-uncased": lower-casing, accent
// stripping and splitting of CJK characters.
func NewWordPiece(vocab map[string]int, config *api.Config) *Tokenizer {
	lowercase := config.LowerCase()
	stripAccents := config.ShouldStripAccents()
	handleChinese := config.ChineseChars()
	unk := api.TokUnknown.BertSurface()
	if config != nil && config.UnkToken != "" {
		unk = config.UnkToken
	}
	tj := &TokenizerJSON{
		Normalizer: &Normalizer{
			Type:               "BertNormalizer",
			Lowercase:          lowercase,
			StripAccents:       &stripAccents,
			HandleChineseChars: &handleChinese,
		},
		PreTokenizer: &PreTokenizer{Type: "BertPreTokenizer"},
		Model: Model{
			Type:                    "WordPiece",
			Vocab:                   vocab,
			UnkToken:                unk,
			ContinuingSubwordPrefix: "##",
			MaxInputCharsPerWord:    100,
		},
	}
	for _, tok := range []api.SpecialToken{api.TokClassification, api.TokSeparator, api.TokUnknown,
		api.TokPad, api.TokMask} {
		surface := tok.BertSurface()
		if id, ok := vocab[surface]; ok {
			tj.AddedTokens = append(tj.AddedTokens, AddedToken{ID: id, Content: surface, Special: true})
		}
	}
	return newTokenizer(tj)
}

func newTokenizer(tj *TokenizerJSON) *Tokenizer {
	t := &Tokenizer{
		tokenizer:   tj,
		addedTokens: make(map[string]int),
	}
	for _, at := range tj.AddedTokens {
		t.addedTokens[at.Content] = at.ID
	}
	if tj.Model.Type == "BPE" {
		t.mergeRanks = make(map[string]int, len(tj.Model.Merges))
		for i, merge := range tj.Model.Merges {
			t.mergeRanks[merge] = i
		}
	}
	return t
}

// Tokenize implements api.Tokenizer: it normalizes and pre-tokenizes the text, and then splits each
// word into subword tokens according to the model type.
func (t *Tokenizer) Tokenize(text string) []string {
	normalized := t.normalize(text)
	words := t.preTokenize(normalized)
	var tokens []string
	for _, word := range words {
		tokens = append(tokens, t.tokenizeWord(word)...)
	}
	return tokens
}

// normalize applies the normalizer to the text.
func (t *Tokenizer) normalize(text string) string {
	if t.tokenizer.Normalizer == nil {
		return text
	}
	return applyNormalizer(text, t.tokenizer.Normalizer)
}

func applyNormalizer(text string, n *Normalizer) string {
	switch n.Type {
	case "Lowercase":
		return strings.ToLower(text)
	case "NFD":
		return norm.NFD.String(text)
	case "NFC":
		return norm.NFC.String(text)
	case "NFKC":
		return norm.NFKC.String(text)
	case "NFKD":
		return norm.NFKD.String(text)
	case "StripAccents":
		return removeAccents(norm.NFD.String(text))
	case "BertNormalizer":
		result := cleanText(text)
		if n.HandleChineseChars == nil || *n.HandleChineseChars {
			result = padChineseChars(result)
		}
		if n.Lowercase {
			result = strings.ToLower(result)
		}
		// BERT strips accents by default only when lower-casing.
		if (n.StripAccents == nil && n.Lowercase) || (n.StripAccents != nil && *n.StripAccents) {
			result = removeAccents(norm.NFD.String(result))
		}
		return result
	case "Sequence":
		result := text
		for ii := range n.Normalizers {
			result = applyNormalizer(result, &n.Normalizers[ii])
		}
		return result
	default:
		return text
	}
}

// preTokenize splits text into words using the pre-tokenizer.
func (t *Tokenizer) preTokenize(text string) []string {
	if t.tokenizer.PreTokenizer == nil {
		return strings.Fields(text)
	}
	return applyPreTokenizer(text, t.tokenizer.PreTokenizer)
}

func applyPreTokenizer(text string, pt *PreTokenizer) []string {
	switch pt.Type {
	case "BertPreTokenizer":
		return bertPreTokenize(text)
	case "ByteLevel":
		if pt.AddPrefixSpace && len(text) > 0 && text[0] != ' ' {
			text = " " + text
		}
		return byteLevelPreTokenize(text)
	case "Metaspace":
		return metaspacePreTokenize(text, pt.AddPrefixSpace)
	case "Punctuation":
		return punctuationPreTokenize(text)
	case "Sequence":
		result := []string{text}
		for ii := range pt.PreTokenizers {
			var next []string
			for _, s := range result {
				next = append(next, applyPreTokenizer(s, &pt.PreTokenizers[ii])...)
			}
			result = next
		}
		return result
	default:
		// Whitespace, WhitespaceSplit, Split and unknown types.
		return strings.Fields(text)
	}
}

// tokenizeWord tokenizes a single word according to the model type.
func (t *Tokenizer) tokenizeWord(word string) []string {
	if _, ok := t.addedTokens[word]; ok {
		return []string{word}
	}

	switch t.tokenizer.Model.Type {
	case "WordPiece":
		return t.wordPieceTokenize(word)
	case "BPE":
		return t.bpeTokenize(word)
	case "Unigram":
		return t.unigramTokenize(word)
	default:
		if _, ok := t.tokenizer.Model.Vocab[word]; ok {
			return []string{word}
		}
		return t.unknown()
	}
}

func (t *Tokenizer) unknown() []string {
	if t.tokenizer.Model.UnkToken == "" {
		return nil
	}
	return []string{t.tokenizer.Model.UnkToken}
}

// wordPieceTokenize implements greedy longest-match-first WordPiece tokenization (used by BERT).
// A word that can't be fully covered by vocabulary pieces becomes a single unknown token.
func (t *Tokenizer) wordPieceTokenize(word string) []string {
	if word == "" {
		return nil
	}

	maxChars := t.tokenizer.Model.MaxInputCharsPerWord
	if maxChars == 0 {
		maxChars = 100
	}
	runes := []rune(word)
	if len(runes) > maxChars {
		return t.unknown()
	}

	prefix := t.tokenizer.Model.ContinuingSubwordPrefix
	if prefix == "" {
		prefix = "##"
	}

	var tokens []string
	start := 0
	for start < len(runes) {
		end := len(runes)
		var piece string
		for start < end {
			substr := string(runes[start:end])
			if start > 0 {
				substr = prefix + substr
			}
			if _, ok := t.tokenizer.Model.Vocab[substr]; ok {
				piece = substr
				break
			}
			end--
		}
		if piece == "" {
			return t.unknown()
		}
		tokens = append(tokens, piece)
		start = end
	}
	return tokens
}

// bpeTokenize implements BPE tokenization (used by GPT-2, RoBERTa).
func (t *Tokenizer) bpeTokenize(word string) []string {
	if word == "" {
		return nil
	}
	var symbols []string
	for _, r := range word {
		symbols = append(symbols, string(r))
	}
	if suffix := t.tokenizer.Model.EndOfWordSuffix; suffix != "" {
		symbols[len(symbols)-1] += suffix
	}

	for len(symbols) > 1 {
		bestRank, bestIdx := -1, -1
		for i := 0; i < len(symbols)-1; i++ {
			if rank, ok := t.mergeRanks[symbols[i]+" "+symbols[i+1]]; ok {
				if bestRank == -1 || rank < bestRank {
					bestRank, bestIdx = rank, i
				}
			}
		}
		if bestIdx == -1 {
			break // No more merges possible
		}
		merged := symbols[bestIdx] + symbols[bestIdx+1]
		next := make([]string, 0, len(symbols)-1)
		next = append(next, symbols[:bestIdx]...)
		next = append(next, merged)
		next = append(next, symbols[bestIdx+2:]...)
		symbols = next
	}

	tokens := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if _, ok := t.tokenizer.Model.Vocab[sym]; ok || t.tokenizer.Model.UnkToken == "" {
			tokens = append(tokens, sym)
		} else {
			tokens = append(tokens, t.tokenizer.Model.UnkToken)
		}
	}
	return tokens
}

// unigramTokenize implements a greedy longest-match approximation of Unigram tokenization.
// Full Unigram uses Viterbi over piece scores.
func (t *Tokenizer) unigramTokenize(word string) []string {
	var tokens []string
	runes := []rune(word)
	start := 0
	for start < len(runes) {
		end := len(runes)
		for end > start {
			if _, ok := t.tokenizer.Model.Vocab[string(runes[start:end])]; ok {
				break
			}
			end--
		}
		if end == start {
			tokens = append(tokens, t.unknown()...)
			start++
			continue
		}
		tokens = append(tokens, string(runes[start:end]))
		start = end
	}
	return tokens
}

// GetVocab returns the full vocabulary mapping, including added tokens.
func (t *Tokenizer) GetVocab() map[string]int {
	vocab := make(map[string]int, len(t.tokenizer.Model.Vocab)+len(t.addedTokens))
	for k, v := range t.tokenizer.Model.Vocab {
		vocab[k] = v
	}
	for k, v := range t.addedTokens {
		vocab[k] = v
	}
	return vocab
}

// Helper functions

func cleanText(text string) string {
	var result strings.Builder
	for _, r := range text {
		if r == 0 || r == 0xFFFD || isControl(r) {
			continue
		}
		if isWhitespace(r) {
			result.WriteRune(' ')
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

func isPunctuation(r rune) bool {
	// ASCII non-letter/number characters are all treated as punctuation, as BERT does.
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

// isChineseChar checks the CJK Unified Ideographs blocks, the same ranges used by BERT.
func isChineseChar(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}

func padChineseChars(text string) string {
	var result strings.Builder
	for _, r := range text {
		if isChineseChar(r) {
			result.WriteRune(' ')
			result.WriteRune(r)
			result.WriteRune(' ')
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func removeAccents(text string) string {
	var result strings.Builder
	for _, r := range text {
		if !unicode.Is(unicode.Mn, r) { // Mn = Mark, Nonspacing
			result.WriteRune(r)
		}
	}
	return result.String()
}

func bertPreTokenize(text string) []string {
	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range text {
		switch {
		case isWhitespace(r):
			flush()
		case isPunctuation(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func punctuationPreTokenize(text string) []string {
	var tokens []string
	var current strings.Builder
	for _, r := range text {
		if isPunctuation(r) {
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			tokens = append(tokens, string(r))
		} else {
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// GPT-2 byte-to-unicode mapping used by byte-level BPE.
var byteToUnicode map[byte]rune

func init() {
	byteToUnicode = make(map[byte]rune, 256)
	n := 0
	for b := 0; b < 256; b++ {
		if (b >= '!' && b <= '~') || (b >= 0xa1 && b <= 0xac) || (b >= 0xae && b <= 0xff) {
			byteToUnicode[byte(b)] = rune(b)
		} else {
			byteToUnicode[byte(b)] = rune(256 + n)
			n++
		}
	}
}

// byteLevelPreTokenize splits on spaces, keeping the (mapped) space attached to the following word.
func byteLevelPreTokenize(text string) []string {
	var tokens []string
	var current strings.Builder
	inWord := false
	for _, r := range text {
		if r == ' ' {
			if inWord {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			current.WriteRune(byteToUnicode[' '])
			inWord = false
			continue
		}
		inWord = true
		for _, b := range []byte(string(r)) {
			current.WriteRune(byteToUnicode[b])
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func metaspacePreTokenize(text string, addPrefixSpace bool) []string {
	if addPrefixSpace && len(text) > 0 && text[0] != ' ' {
		text = " " + text
	}
	text = strings.ReplaceAll(text, " ", "▁")

	var tokens []string
	var current strings.Builder
	for _, r := range text {
		if r == '▁' && current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}
