// Package vocab implements the string <-> id vocabulary table of BERT-like models.
//
// A Vocab is loaded once (usually from a vocab.txt file, where the line number is the id) and then shared
// read-only by all preprocessing calls.
package vocab

import (
	"bufio"
	"io"
	"os"
	"slices"

	"github.com/gomlx/bertdata/tokenizers/api"
	"github.com/pkg/errors"
)

// Vocab maps tokens to ids and back. Tokens not in the vocabulary map to the "[UNK]" id.
type Vocab struct {
	stoi map[string]int
	itos []string

	// ClsID, SepID and UnkID are the ids of "[CLS]", "[SEP]" and "[UNK]".
	ClsID, SepID, UnkID int
}

// requiredTokens must be present in every vocabulary.
var requiredTokens = []api.SpecialToken{api.TokClassification, api.TokSeparator, api.TokUnknown}

// Load reads a vocab.txt file: one token per line, the (0-based) line number being its id.
func Load(filePath string) (*Vocab, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open vocabulary file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	v, err := Read(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "while reading vocabulary file %q", filePath)
	}
	return v, nil
}

// Read reads a vocabulary in the vocab.txt format from r.
// Empty lines are kept (they still take an id), and a repeated token takes the id of its last occurrence.
func Read(r io.Reader) (*Vocab, error) {
	v := &Vocab{stoi: make(map[string]int)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		token := scanner.Text()
		v.stoi[token] = len(v.itos)
		v.itos = append(v.itos, token)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan vocabulary")
	}
	if err := v.resolveSpecialTokens(); err != nil {
		return nil, err
	}
	return v, nil
}

// FromMap creates a Vocab from a token -> id mapping, e.g. the one of a tokenizer.json file
// (see api.TokenizerWithVocab). Ids not covered by the mapping reverse-map to "".
func FromMap(tokenToID map[string]int) (*Vocab, error) {
	size := 0
	for token, id := range tokenToID {
		if id < 0 {
			return nil, errors.Errorf("negative id %d for token %q", id, token)
		}
		size = max(size, id+1)
	}
	v := &Vocab{
		stoi: make(map[string]int, len(tokenToID)),
		itos: make([]string, size),
	}
	for token, id := range tokenToID {
		v.stoi[token] = id
		v.itos[id] = token
	}
	if err := v.resolveSpecialTokens(); err != nil {
		return nil, err
	}
	return v, nil
}

// FromTokens creates a Vocab from the tokens in id order, with unkID as the id of unknown tokens instead of
// the id of "[UNK]": SentencePiece models, for instance, name it "<unk>".
// "[CLS]" and "[SEP]" are still required.
func FromTokens(tokens []string, unkID int) (*Vocab, error) {
	if unkID < 0 || unkID >= len(tokens) {
		return nil, errors.Errorf("unknown token id %d out of range for a vocabulary of %d tokens", unkID, len(tokens))
	}
	v := &Vocab{
		stoi: make(map[string]int, len(tokens)),
		itos: slices.Clone(tokens),
	}
	for id, token := range tokens {
		v.stoi[token] = id
	}
	if err := v.resolveSpecialTokens(api.TokClassification, api.TokSeparator); err != nil {
		return nil, err
	}
	v.UnkID = unkID
	return v, nil
}

func (v *Vocab) resolveSpecialTokens(required ...api.SpecialToken) error {
	if len(required) == 0 {
		required = requiredTokens
	}
	for _, tok := range required {
		surface := tok.BertSurface()
		id, found := v.stoi[surface]
		if !found {
			return errors.Errorf("vocabulary is missing the %s token %q", tok, surface)
		}
		switch tok {
		case api.TokClassification:
			v.ClsID = id
		case api.TokSeparator:
			v.SepID = id
		case api.TokUnknown:
			v.UnkID = id
		}
	}
	return nil
}

// Len returns the number of entries in the vocabulary.
func (v *Vocab) Len() int { return len(v.itos) }

// ID returns the id of the token, or UnkID if it is not in the vocabulary.
func (v *Vocab) ID(token string) int {
	if id, found := v.stoi[token]; found {
		return id
	}
	return v.UnkID
}

// Contains returns whether the token is in the vocabulary.
func (v *Vocab) Contains(token string) bool {
	_, found := v.stoi[token]
	return found
}

// IDs maps each token to its id.
func (v *Vocab) IDs(tokens []string) []int {
	ids := make([]int, len(tokens))
	for ii, token := range tokens {
		ids[ii] = v.ID(token)
	}
	return ids
}

// Token is the reverse lookup: it returns the token for the id, or "" if the id is out of range.
func (v *Vocab) Token(id int) string {
	if id < 0 || id >= len(v.itos) {
		return ""
	}
	return v.itos[id]
}

// Tokens maps each id back to its token.
func (v *Vocab) Tokens(ids []int) []string {
	tokens := make([]string, len(ids))
	for ii, id := range ids {
		tokens[ii] = v.Token(id)
	}
	return tokens
}

// Map returns a copy of the token -> id mapping.
func (v *Vocab) Map() map[string]int {
	m := make(map[string]int, len(v.stoi))
	for token, id := range v.stoi {
		m[token] = id
	}
	return m
}
