// Package bertdata prepares text datasets for fine-tuning BERT-like models.
//
// The data flows through a few packages:
//
//   - tokenizers and vocab: load the tokenizer and vocabulary of a model directory.
//   - squad: reads SQuAD files and converts them to model-ready records, with a sliding window over long contexts.
//   - datasets: the single sentence, sentence pair, multiple-choice and SQuAD variants, and batch loaders.
//   - cache: persists preprocessed datasets, as files next to the dataset or in a bbolt database.
//
// The command cmd/bertprep preprocesses and summarizes dataset files from the command line.
package bertdata

// Version of the library.
const Version = "v0.1.0"
