// Package sentencepiece implements an api.Tokenizer based on the SentencePiece tokenizer.
package sentencepiece

import (
	"bytes"
	"os"

	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/gomlx/bertdata/tokenizers/api"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// ModelFile is the conventional name of the SentencePiece model file in a model directory.
const ModelFile = "tokenizer.model"

// New creates a SentencePiece tokenizer from a "tokenizer.model" file, which must be a
// SentencePiece Model proto.
func New(modelPath string) (*Tokenizer, error) {
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "can't read sentencepiece model %q", modelPath)
	}
	proc, err := esentencepiece.NewProcessor(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "can't create sentencepiece tokenizer from %q", modelPath)
	}
	pieces, err := ReadPieces(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "while reading the pieces of %q", modelPath)
	}
	return &Tokenizer{
		Processor: proc,
		Info:      proc.ModelInfo(),
		Pieces:    pieces,
	}, nil
}

// Tokenizer implements api.Tokenizer based on SentencePiece tokenizer by Google.
type Tokenizer struct {
	*esentencepiece.Processor
	Info *esentencepiece.ModelInfo

	// Pieces of the model indexed by their id: it's the vocabulary of the tokenizer.
	Pieces []string
}

// Compile time assert that sentencepiece.Tokenizer implements api.Tokenizer interface.
var _ api.Tokenizer = &Tokenizer{}

// Tokenize returns the pieces of the text, e.g.: "▁Hello", "▁wor", "ld".
// The pieces keep SentencePiece's "▁" word-boundary marker, so they can be looked up directly in Pieces.
func (p *Tokenizer) Tokenize(text string) []string {
	tokens := p.Processor.Encode(text)
	return sliceMap(tokens, func(t esentencepiece.Token) string { return t.Text })
}

// SpecialTokenID returns the id for the given special token, or an error if not known.
func (p *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	var id int
	switch token {
	case api.TokUnknown:
		id = p.Info.UnknownID
	case api.TokPad:
		id = p.Info.PadID
	case api.TokBeginningOfSentence:
		id = p.Info.BeginningOfSentenceID
	case api.TokEndOfSentence:
		id = p.Info.EndOfSentenceID
	default:
		return 0, errors.Errorf("unknown special token: %s (%d)", token, int(token))
	}
	if id < 0 {
		return 0, errors.Errorf("model has no %s token", token)
	}
	return id, nil
}

// Field numbers in sentencepiece_model.proto.
const (
	modelPiecesField protowire.Number = 1 // ModelProto.pieces
	pieceTextField   protowire.Number = 1 // ModelProto.SentencePiece.piece
)

// ReadPieces returns the text of the pieces of a serialized SentencePiece ModelProto, in id order.
// Other fields are skipped.
func ReadPieces(data []byte) ([]string, error) {
	var pieces []string
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		if num != modelPiecesField || typ != protowire.BytesType {
			return nil
		}
		var piece string
		err := forEachField(value, func(num protowire.Number, typ protowire.Type, value []byte) error {
			if num == pieceTextField && typ == protowire.BytesType {
				piece = string(value)
			}
			return nil
		})
		if err != nil {
			return errors.WithMessagef(err, "piece #%d", len(pieces))
		}
		pieces = append(pieces, piece)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pieces, nil
}

// forEachField calls fn for every field of the serialized message. value is only set for fields of
// protowire.BytesType.
func forEachField(msg []byte, fn func(num protowire.Number, typ protowire.Type, value []byte) error) error {
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "invalid sentencepiece model")
		}
		msg = msg[n:]
		var value []byte
		if typ == protowire.BytesType {
			value, n = protowire.ConsumeBytes(msg)
		} else {
			n = protowire.ConsumeFieldValue(num, typ, msg)
		}
		if n < 0 {
			return errors.Wrapf(protowire.ParseError(n), "invalid sentencepiece model, field %d", num)
		}
		msg = msg[n:]
		if err := fn(num, typ, value); err != nil {
			return err
		}
	}
	return nil
}

// sliceMap executes the given function sequentially for every element on in, and returns a mapped slice.
func sliceMap[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}
