// Package squad prepares SQuAD-style extractive question-answering datasets for BERT-like models.
//
// The pipeline is:
//
//   - Read a raw dataset (ReadJSONFile or ReadParquetFile).
//   - BuildExamples: flatten it into one Example per question, with the answer located at word level
//     (whitespace-delimited tokens of the context) through NormalizeAndMap.
//   - Encoder.Encode: tokenize question and context into subwords, re-locate the answer at subword level
//     (ImproveAnswerSpan), and emit one Record, or several overlapping Records (sliding window) when the
//     context doesn't fit the maximum sequence length.
//
// Everything is synchronous and free of shared mutable state: the tokenizer and the vocabulary are
// passed explicitly to the Encoder.
package squad

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Dataset mirrors the SQuAD JSON schema (v1.1 and v2.0).
type Dataset struct {
	Version string    `json:"version"`
	Data    []Article `json:"data"`
}

// Article groups the paragraphs of one title.
type Article struct {
	Title      string      `json:"title"`
	Paragraphs []Paragraph `json:"paragraphs"`
}

// Paragraph is one context and the questions asked about it.
type Paragraph struct {
	Context string `json:"context"`
	Qas     []QA   `json:"qas"`
}

// QA is a question, and for training sets, its answers.
type QA struct {
	ID               string   `json:"id"`
	Question         string   `json:"question"`
	Answers          []Answer `json:"answers"`
	IsImpossible     bool     `json:"is_impossible,omitempty"`
	PlausibleAnswers []Answer `json:"plausible_answers,omitempty"`
}

// Answer gives the answer text and the offset (in characters, not bytes) of its start in the context.
type Answer struct {
	AnswerStart int    `json:"answer_start"`
	Text        string `json:"text"`
}

// NumQuestions returns the total number of questions in the dataset.
func (ds *Dataset) NumQuestions() int {
	n := 0
	for _, article := range ds.Data {
		for _, paragraph := range article.Paragraphs {
			n += len(paragraph.Qas)
		}
	}
	return n
}

// ReadJSON parses a SQuAD JSON document.
func ReadJSON(r io.Reader) (*Dataset, error) {
	ds := &Dataset{}
	if err := json.NewDecoder(r).Decode(ds); err != nil {
		return nil, errors.Wrap(err, "failed to parse SQuAD json")
	}
	return ds, nil
}

// ReadJSONFile parses the SQuAD JSON file at filePath.
func ReadJSONFile(filePath string) (*Dataset, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open SQuAD file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	ds, err := ReadJSON(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "while reading %q", filePath)
	}
	return ds, nil
}

// ReadFile reads a dataset either from a SQuAD JSON file or, if it has a ".parquet" extension, from a
// HuggingFace parquet export (see ReadParquetFile).
func ReadFile(filePath string) (*Dataset, error) {
	if strings.EqualFold(filepath.Ext(filePath), ".parquet") {
		return ReadParquetFile(filePath)
	}
	return ReadJSONFile(filePath)
}
