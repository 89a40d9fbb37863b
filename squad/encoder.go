package squad

import (
	"strings"

	"github.com/gomlx/bertdata/tokenizers/api"
	"github.com/gomlx/bertdata/vocab"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// WindowNoAnswer is the answer position reported by training windows that don't contain the answer.
//
// It is indistinguishable from an answer at position 0, which in every record holds "[CLS]".
const WindowNoAnswer = 0

// ErrWindowTooSmall is returned when the question alone (plus its special tokens) doesn't leave room for
// any context in the maximum sequence length. It's a configuration error: no example can be encoded.
var ErrWindowTooSmall = errors.New("maximum sequence length leaves no room for the context")

// Record is one encoded model input: "[CLS] question [SEP] context [SEP]".
type Record struct {
	InputIDs []int

	// SegmentIDs is 0 over "[CLS] question [SEP]", and 1 over the rest.
	SegmentIDs []int

	// StartPosition and EndPosition are the inclusive token positions of the answer in InputIDs.
	// Training windows without the answer hold WindowNoAnswer, and inference records carry the example's
	// positions unchanged (NoPosition).
	StartPosition, EndPosition int

	AnswerText string
	QuestionID string
}

// Options configure the Encoder.
type Options struct {
	// WithSliding enables the sliding window over contexts longer than MaxSenLen.
	// If false, DocStride and MaxSenLen are not used, and sequences are truncated to MaxPositionEmbeddings.
	WithSliding bool

	// DocStride is how much the window moves at each step.
	DocStride int

	// MaxSenLen is the maximum length of a sequence, including the special tokens.
	MaxSenLen int

	// MaxQueryLength truncates the tokens of the question.
	MaxQueryLength int

	// MaxPositionEmbeddings of the model: sequences longer than that are truncated (keeping the final "[SEP]").
	MaxPositionEmbeddings int
}

// Validate checks that the options can encode anything at all.
func (o Options) Validate() error {
	if o.MaxQueryLength <= 0 {
		return errors.Errorf("max_query_length must be positive, got %d", o.MaxQueryLength)
	}
	if o.MaxPositionEmbeddings < 2 {
		return errors.Errorf("max_position_embeddings must be at least 2, got %d", o.MaxPositionEmbeddings)
	}
	if o.WithSliding {
		if o.DocStride <= 0 {
			return errors.Errorf("doc_stride must be positive when using a sliding window, got %d", o.DocStride)
		}
		if o.MaxSenLen <= 0 {
			return errors.Errorf("max_sen_len must be positive when using a sliding window, got %d", o.MaxSenLen)
		}
	}
	return nil
}

// Encoder converts Examples into Records. It holds no mutable state, and can be shared.
type Encoder struct {
	Tokenizer api.Tokenizer
	Vocab     *vocab.Vocab
	Options
}

// NewEncoder validates the options and returns an Encoder.
func NewEncoder(tokenizer api.Tokenizer, v *vocab.Vocab, opts Options) (*Encoder, error) {
	if tokenizer == nil || v == nil {
		return nil, errors.New("squad encoder requires a tokenizer and a vocabulary")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Encoder{Tokenizer: tokenizer, Vocab: v, Options: opts}, nil
}

// Window is a [Start, End) range of context token positions. End may go past the end of the context for
// the last window.
type Window struct {
	Start, End int
}

// Windows returns the sliding windows of the given width over a context of contextLen tokens, moving
// stride tokens each step. The first window starts at 0 and the last is the first one whose End reaches
// contextLen, so together they cover the whole context.
//
// If the context fits (contextLen <= width), it returns a single window. With stride > width the windows
// leave gaps, and a window may start past the end of the context.
func Windows(contextLen, width, stride int) []Window {
	if contextLen <= width || stride <= 0 {
		return []Window{{0, width}}
	}
	windows := make([]Window, 0, (contextLen-width+stride-1)/stride+1)
	for s, e := 0, width; ; s, e = s+stride, e+stride {
		windows = append(windows, Window{s, e})
		if e >= contextLen {
			break
		}
	}
	return windows
}

// EncodeAll encodes all examples, and returns the records along with the length of the longest one.
// Only configuration errors are returned, and they abort the whole encoding.
func (e *Encoder) EncodeAll(examples []Example, isTraining bool) (records []Record, maxLen int, err error) {
	records = make([]Record, 0, len(examples))
	for ii := range examples {
		exRecords, err := e.Encode(examples[ii], isTraining)
		if err != nil {
			return nil, 0, err
		}
		for _, r := range exRecords {
			maxLen = max(maxLen, len(r.InputIDs))
		}
		records = append(records, exRecords...)
	}
	return records, maxLen, nil
}

// Encode tokenizes the question and the context of the example and returns its records: one, or several
// if the sliding window is enabled and the context doesn't fit.
//
// For training, the word-level answer is first re-located at subword level with ImproveAnswerSpan, and
// then shifted to token positions in each record.
func (e *Encoder) Encode(ex Example, isTraining bool) ([]Record, error) {
	if isTraining && !ex.HasAnswer {
		return nil, errors.Errorf("training example %q has no answer", ex.QuestionID)
	}
	questionTokens := e.Tokenizer.Tokenize(ex.QuestionText)
	if len(questionTokens) > e.MaxQueryLength {
		questionTokens = questionTokens[:e.MaxQueryLength]
	}
	questionIDs := make([]int, 0, len(questionTokens)+2)
	questionIDs = append(questionIDs, e.Vocab.ClsID)
	questionIDs = append(questionIDs, e.Vocab.IDs(questionTokens)...)
	questionIDs = append(questionIDs, e.Vocab.SepID)

	contextTokens := e.Tokenizer.Tokenize(ex.ContextText)
	contextIDs := e.Vocab.IDs(contextTokens)

	start, end, answerText := NoPosition, NoPosition, ""
	if isTraining {
		start, end = ImproveAnswerSpan(contextTokens, e.Tokenizer.Tokenize(ex.AnswerText),
			ex.StartPosition, ex.EndPosition)
		answerText = ex.AnswerText
	}
	if klog.V(2).Enabled() {
		klog.Infof("squad: question %q (training=%v): %q", ex.QuestionID, isTraining, ex.QuestionText)
	}

	if !e.WithSliding {
		return []Record{e.encodeTruncated(ex, questionIDs, contextIDs, start, end, answerText, isTraining)}, nil
	}
	return e.encodeSliding(ex, questionIDs, contextIDs, start, end, answerText, isTraining)
}

// encodeTruncated builds a single record, truncating it to MaxPositionEmbeddings.
func (e *Encoder) encodeTruncated(ex Example, questionIDs, contextIDs []int, start, end int, answerText string,
	isTraining bool) Record {
	inputIDs := make([]int, 0, len(questionIDs)+len(contextIDs)+1)
	inputIDs = append(inputIDs, questionIDs...)
	inputIDs = append(inputIDs, contextIDs...)
	if len(inputIDs) > e.MaxPositionEmbeddings-1 {
		inputIDs = inputIDs[:e.MaxPositionEmbeddings-1]
	}
	inputIDs = append(inputIDs, e.Vocab.SepID)
	if isTraining {
		start += len(questionIDs)
		end += len(questionIDs)
	}
	r := Record{
		InputIDs:      inputIDs,
		SegmentIDs:    segmentIDs(len(inputIDs), len(questionIDs)),
		StartPosition: start,
		EndPosition:   end,
		AnswerText:    answerText,
		QuestionID:    ex.QuestionID,
	}
	e.logRecord(&r)
	return r
}

// encodeSliding builds one record per window over the context.
func (e *Encoder) encodeSliding(ex Example, questionIDs, contextIDs []int, start, end int, answerText string,
	isTraining bool) ([]Record, error) {
	restLen := e.MaxSenLen - len(questionIDs) - 1
	if restLen <= 0 {
		return nil, errors.Wrapf(ErrWindowTooSmall, "max_sen_len=%d, question %q takes %d tokens",
			e.MaxSenLen, ex.QuestionID, len(questionIDs))
	}
	contextLen := len(contextIDs)
	if contextLen <= restLen {
		// Fits: same as without sliding window, no truncation needed.
		return []Record{e.encodeTruncated(ex, questionIDs, contextIDs, start, end, answerText, isTraining)}, nil
	}

	windows := Windows(contextLen, restLen, e.DocStride)
	klog.V(2).Infof("squad: question %q: context of %d tokens split in %d windows of %d tokens",
		ex.QuestionID, contextLen, len(windows), restLen)
	records := make([]Record, 0, len(windows))
	for _, w := range windows {
		windowIDs := contextIDs[min(w.Start, contextLen):min(w.End, contextLen)]
		inputIDs := make([]int, 0, len(questionIDs)+len(windowIDs)+1)
		inputIDs = append(inputIDs, questionIDs...)
		inputIDs = append(inputIDs, windowIDs...)
		inputIDs = append(inputIDs, e.Vocab.SepID)
		r := Record{
			InputIDs:      inputIDs,
			SegmentIDs:    segmentIDs(len(inputIDs), len(questionIDs)),
			StartPosition: start,
			EndPosition:   end,
			AnswerText:    answerText,
			QuestionID:    ex.QuestionID,
		}
		if isTraining {
			r.StartPosition, r.EndPosition = WindowNoAnswer, WindowNoAnswer
			if start >= w.Start && end <= w.End {
				r.StartPosition = start - w.Start + len(questionIDs)
				r.EndPosition = r.StartPosition + (end - start)
			}
		}
		e.logRecord(&r)
		records = append(records, r)
	}
	return records, nil
}

// segmentIDs returns 0 for the first questionLen positions and 1 for the remaining.
func segmentIDs(length, questionLen int) []int {
	seg := make([]int, length)
	for ii := questionLen; ii < length; ii++ {
		seg[ii] = 1
	}
	return seg
}

// logRecord reconstructs the tokens of the record (reverse vocabulary lookup) for debugging.
func (e *Encoder) logRecord(r *Record) {
	if !klog.V(2).Enabled() {
		return
	}
	tokens := e.Vocab.Tokens(r.InputIDs)
	klog.Infof("squad: input tokens: %s", strings.Join(tokens, " "))
	if r.StartPosition > 0 && r.EndPosition < len(tokens) && r.StartPosition <= r.EndPosition {
		klog.Infof("squad: answer %q <===> %q (positions %d..%d)", r.AnswerText,
			strings.Join(tokens[r.StartPosition:r.EndPosition+1], " "), r.StartPosition, r.EndPosition)
	}
}
