package squad

import (
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
)

// ParquetRow is one question of a SQuAD dataset exported to parquet, as done by HuggingFace datasets:
// one row per question, with the context repeated.
type ParquetRow struct {
	ID       string         `parquet:"id"`
	Title    string         `parquet:"title"`
	Context  string         `parquet:"context"`
	Question string         `parquet:"question"`
	Answers  ParquetAnswers `parquet:"answers"`
}

// ParquetAnswers holds the answers of a ParquetRow as parallel lists.
type ParquetAnswers struct {
	Text        []string `parquet:"text,list"`
	AnswerStart []int32  `parquet:"answer_start,list"`
}

// ReadParquetFile reads a SQuAD dataset from a parquet file with ParquetRow rows, and groups the rows
// back into articles (by title) and paragraphs (by context), preserving their order.
func ReadParquetFile(filePath string) (*Dataset, error) {
	rows, err := parquet.ReadFile[ParquetRow](filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read SQuAD parquet file %q", filePath)
	}
	ds, err := FromParquetRows(rows)
	if err != nil {
		return nil, errors.WithMessagef(err, "while reading %q", filePath)
	}
	return ds, nil
}

// FromParquetRows groups rows into a Dataset.
func FromParquetRows(rows []ParquetRow) (*Dataset, error) {
	ds := &Dataset{}
	type paragraphKey struct{ title, context string }
	articleIdx := make(map[string]int)
	paragraphIdx := make(map[paragraphKey]int)
	for ii, row := range rows {
		if len(row.Answers.Text) != len(row.Answers.AnswerStart) {
			return nil, errors.Errorf("row %d (id %q) has %d answer texts but %d answer starts",
				ii, row.ID, len(row.Answers.Text), len(row.Answers.AnswerStart))
		}
		aIdx, found := articleIdx[row.Title]
		if !found {
			aIdx = len(ds.Data)
			articleIdx[row.Title] = aIdx
			ds.Data = append(ds.Data, Article{Title: row.Title})
		}
		article := &ds.Data[aIdx]
		key := paragraphKey{row.Title, row.Context}
		pIdx, found := paragraphIdx[key]
		if !found {
			pIdx = len(article.Paragraphs)
			paragraphIdx[key] = pIdx
			article.Paragraphs = append(article.Paragraphs, Paragraph{Context: row.Context})
		}
		qa := QA{ID: row.ID, Question: row.Question}
		for jj, text := range row.Answers.Text {
			qa.Answers = append(qa.Answers, Answer{AnswerStart: int(row.Answers.AnswerStart[jj]), Text: text})
		}
		article.Paragraphs[pIdx].Qas = append(article.Paragraphs[pIdx].Qas, qa)
	}
	return ds, nil
}

// ToParquetRows flattens the dataset into one row per question.
func (ds *Dataset) ToParquetRows() []ParquetRow {
	rows := make([]ParquetRow, 0, ds.NumQuestions())
	for _, article := range ds.Data {
		for _, paragraph := range article.Paragraphs {
			for _, qa := range paragraph.Qas {
				row := ParquetRow{
					ID:       qa.ID,
					Title:    article.Title,
					Context:  paragraph.Context,
					Question: qa.Question,
					Answers: ParquetAnswers{
						Text:        make([]string, 0, len(qa.Answers)),
						AnswerStart: make([]int32, 0, len(qa.Answers)),
					},
				}
				for _, answer := range qa.Answers {
					row.Answers.Text = append(row.Answers.Text, answer.Text)
					row.Answers.AnswerStart = append(row.Answers.AnswerStart, int32(answer.AnswerStart))
				}
				rows = append(rows, row)
			}
		}
	}
	return rows
}

// WriteParquetFile writes the dataset in the format read by ReadParquetFile.
func WriteParquetFile(filePath string, ds *Dataset) error {
	if err := parquet.WriteFile(filePath, ds.ToParquetRows()); err != nil {
		return errors.Wrapf(err, "failed to write SQuAD parquet file %q", filePath)
	}
	return nil
}
