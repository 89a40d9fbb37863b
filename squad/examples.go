package squad

import (
	"strings"
	"unicode/utf8"

	"k8s.io/klog/v2"
)

// NoPosition marks the answer positions of examples and records that carry no answer (inference).
const NoPosition = -1

// Example is one question with its (whitespace-normalized) context, and for training examples, the
// answer located at word level.
type Example struct {
	QuestionID   string
	QuestionText string

	// ContextText is the context with whitespace normalized: words joined by a single space.
	ContextText string

	// AnswerText is the original answer text; empty for inference examples.
	AnswerText string

	// StartPosition and EndPosition are the inclusive word-level positions of the answer in ContextText,
	// or NoPosition if HasAnswer is false.
	StartPosition, EndPosition int
	HasAnswer                  bool
}

// BuildExamples flattens the dataset into one Example per question.
//
// For training (isTraining=true) the first answer of each question is located at word level: its
// character offset is mapped to a word with NormalizeAndMap, and the words it spans must contain the
// (whitespace-normalized) answer text. Questions whose answer can't be found that way (corrupt offsets,
// or no answers at all) are dropped with a warning: they never abort the build.
//
// For inference no answer is read nor verified.
func BuildExamples(ds *Dataset, isTraining bool) []Example {
	examples := make([]Example, 0, ds.NumQuestions())
	var dropped int
	for _, article := range ds.Data {
		for _, paragraph := range article.Paragraphs {
			contextTokens, offsets := NormalizeAndMap(paragraph.Context)
			contextText := strings.Join(contextTokens, " ")
			for _, qa := range paragraph.Qas {
				ex := Example{
					QuestionID:    qa.ID,
					QuestionText:  qa.Question,
					ContextText:   contextText,
					StartPosition: NoPosition,
					EndPosition:   NoPosition,
				}
				if isTraining {
					if !locateAnswer(&ex, qa, contextTokens, offsets) {
						dropped++
						continue
					}
				}
				examples = append(examples, ex)
			}
		}
	}
	if dropped > 0 {
		klog.Warningf("squad: dropped %d of %d questions whose answer could not be located", dropped,
			dropped+len(examples))
	}
	return examples
}

// locateAnswer fills in the word-level answer of ex from the first answer of qa.
// It returns false, after logging the reason, if the answer can't be located.
func locateAnswer(ex *Example, qa QA, contextTokens []string, offsets WordOffsets) bool {
	if len(qa.Answers) == 0 {
		klog.Warningf("squad: question %q has no answers", qa.ID)
		return false
	}
	answer := qa.Answers[0]
	answerLength := utf8.RuneCountInString(answer.Text)
	lastChar := answer.AnswerStart + answerLength - 1
	if answerLength == 0 || answer.AnswerStart < 0 || lastChar >= len(offsets) {
		klog.Warningf("squad: question %q: answer %q at offset %d is out of the context range (%d characters)",
			qa.ID, answer.Text, answer.AnswerStart, len(offsets))
		return false
	}
	start, end := offsets[answer.AnswerStart], offsets[lastChar]
	if start < 0 {
		klog.Warningf("squad: question %q: answer offset %d points to leading whitespace", qa.ID, answer.AnswerStart)
		return false
	}

	actualText := strings.Join(contextTokens[start:end+1], " ")
	cleanedAnswerText := strings.Join(strings.Fields(answer.Text), " ")
	if !strings.Contains(actualText, cleanedAnswerText) {
		klog.Warningf("Could not find answer: %q vs. %q", actualText, cleanedAnswerText)
		return false
	}
	ex.AnswerText = answer.Text
	ex.StartPosition, ex.EndPosition = start, end
	ex.HasAnswer = true
	return true
}
