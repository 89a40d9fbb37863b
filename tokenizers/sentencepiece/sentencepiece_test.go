package sentencepiece

import (
	"math"
	"os"
	"strings"
	"testing"

	"github.com/gomlx/bertdata/tokenizers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// modelPath returns the SentencePiece model used for tests, set with $SENTENCEPIECE_MODEL, or skips the test.
func modelPath(t *testing.T) string {
	t.Helper()
	path := os.Getenv("SENTENCEPIECE_MODEL")
	if path == "" {
		t.Skip("$SENTENCEPIECE_MODEL not set")
	}
	return path
}

// appendPiece appends a ModelProto.SentencePiece with the given text, score and type.
func appendPiece(model []byte, text string, score float32, pieceType uint64) []byte {
	var piece []byte
	piece = protowire.AppendTag(piece, 1, protowire.BytesType)
	piece = protowire.AppendString(piece, text)
	piece = protowire.AppendTag(piece, 2, protowire.Fixed32Type)
	piece = protowire.AppendFixed32(piece, math.Float32bits(score))
	piece = protowire.AppendTag(piece, 3, protowire.VarintType)
	piece = protowire.AppendVarint(piece, pieceType)
	model = protowire.AppendTag(model, 1, protowire.BytesType)
	return protowire.AppendBytes(model, piece)
}

func TestReadPieces(t *testing.T) {
	var model []byte
	model = appendPiece(model, "<unk>", 0, 2)
	model = appendPiece(model, "[CLS]", 0, 4)
	// A trainer_spec between pieces is skipped.
	model = protowire.AppendTag(model, 2, protowire.BytesType)
	model = protowire.AppendBytes(model, []byte{0x08, 0x02})
	model = appendPiece(model, "▁hello", -1.5, 1)
	model = appendPiece(model, "ld", -3, 1)

	pieces, err := ReadPieces(model)
	require.NoError(t, err)
	assert.Equal(t, []string{"<unk>", "[CLS]", "▁hello", "ld"}, pieces)

	_, err = ReadPieces(model[:len(model)-1])
	assert.Error(t, err, "truncated model")

	pieces, err = ReadPieces(nil)
	require.NoError(t, err)
	assert.Empty(t, pieces)
}

func TestNew_MissingFile(t *testing.T) {
	_, err := New(t.TempDir() + "/does_not_exist.model")
	require.Error(t, err)
}

// TestTokenize_ReconstructsText verifies that joining the pieces (with "▁" as a space) gives back the text.
func TestTokenize_ReconstructsText(t *testing.T) {
	tok, err := New(modelPath(t))
	require.NoError(t, err)

	inputs := []string{
		"hello",
		"hello world",
		"The quick brown fox jumps over the lazy dog.",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			pieces := tok.Tokenize(input)
			require.NotEmpty(t, pieces)
			joined := strings.ReplaceAll(strings.Join(pieces, ""), "▁", " ")
			assert.Equal(t, input, strings.TrimSpace(joined))
		})
	}
}

func TestTokenize_Empty(t *testing.T) {
	tok, err := New(modelPath(t))
	require.NoError(t, err)
	assert.Empty(t, tok.Tokenize(""))
}

func TestSpecialTokenID(t *testing.T) {
	tok, err := New(modelPath(t))
	require.NoError(t, err)

	unk, err := tok.SpecialTokenID(api.TokUnknown)
	require.NoError(t, err)
	assert.Equal(t, tok.Info.UnknownID, unk)
	assert.Len(t, tok.Pieces, tok.Info.VocabularySize)
	for _, piece := range tok.Tokenize("hello world") {
		assert.Contains(t, tok.Pieces, piece)
	}

	_, err = tok.SpecialTokenID(api.TokMask)
	assert.Error(t, err)
}
