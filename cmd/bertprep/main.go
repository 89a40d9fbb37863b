// bertprep preprocesses dataset files for BERT-like models, and prints a summary of the result.
//
// Usage:
//
//	bertprep -model ~/models/bert-base-uncased -kind squad -max_sen_len 384 'data/squad/**/*.json'
//	bertprep -model ~/models/bert-base-chinese -kind single -train train.txt -val val.txt -test test.txt
//
// With -plot it also saves a histogram of the sequence lengths, and with -to_parquet it converts SQuAD JSON
// files to parquet.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/bertdata"
	"github.com/gomlx/bertdata/cache"
	"github.com/gomlx/bertdata/datasets"
	"github.com/gomlx/bertdata/internal/files"
	"github.com/gomlx/bertdata/squad"
	"github.com/gomlx/bertdata/tokenizers"
	"github.com/pkg/errors"
	"github.com/yargevad/filepathx"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"k8s.io/klog/v2"
)

var (
	flagModel     = flag.String("model", "", "directory with the tokenizer files (tokenizer.json, vocab.txt or tokenizer.model)")
	flagKind      = flag.String("kind", string(datasets.KindSQuAD), "dataset kind: single, pair, multiple_choice or squad")
	flagConfig    = flag.String("config", "", "optional JSON file with the dataset configuration; flags explicitly set override it")
	flagTraining  = flag.Bool("training", true, "process the input files as training files (SQuAD inference files carry no answers)")
	flagTrain     = flag.String("train", "", "training file: if set, the train/validation/test loaders are created")
	flagVal       = flag.String("val", "", "validation file (not used by squad, where it's sampled from the training set)")
	flagTest      = flag.String("test", "", "test file, required with -train")
	flagMaxSenLen = flag.String("max_sen_len", "", "padding length: a number, \"same\" (longest training sequence) or empty (longest of each batch); for squad without -config it defaults to 384")
	flagDocStride = flag.Int("doc_stride", datasets.DefaultDocStride, "sliding window stride (squad)")
	flagMaxQuery  = flag.Int("max_query_length", datasets.DefaultMaxQueryLength, "maximum question length in tokens (squad)")
	flagSliding   = flag.Bool("sliding", true, "use a sliding window over long contexts (squad)")
	flagBatchSize = flag.Int("batch_size", datasets.DefaultBatchSize, "batch size")
	flagSep       = flag.String("sep", datasets.DefaultSep, "field separator of the single and pair formats")
	flagNumChoice = flag.Int("num_choice", datasets.DefaultNumChoice, "number of choices (multiple_choice)")
	flagCacheDir  = flag.String("cache_dir", "", "directory for the squad cache files: by default they are written next to the dataset files")
	flagBolt      = flag.String("bolt", "", "if set, cache into this bbolt database file instead of individual files")
	flagNoCache   = flag.Bool("no_cache", false, "disable the squad cache")
	flagPlot      = flag.String("plot", "", "if set, save a histogram of the sequence lengths to this PNG file")
	flagToParquet = flag.String("to_parquet", "", "if set, convert the SQuAD input files to parquet files in this directory and exit")
	flagPlotBins  = flag.Int("plot_bins", 50, "number of bins of the -plot histogram")
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle    = lipgloss.NewStyle().Bold(true)
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	explicitFlags = map[string]bool{}
)

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "bertprep %s\n\nUsage: %s [flags] <glob patterns of input files>...\n\n",
			bertdata.Version, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	defer klog.Flush()
	flag.Visit(func(f *flag.Flag) { explicitFlags[f.Name] = true })

	if err := run(flag.Args()); err != nil {
		klog.Errorf("Failed: %+v", err)
		klog.Flush()
		os.Exit(1)
	}
}

func run(patterns []string) error {
	if *flagToParquet != "" {
		inputs, err := expandPatterns(patterns)
		if err != nil {
			return err
		}
		return convertToParquet(inputs, *flagToParquet)
	}
	if *flagModel == "" {
		return errors.New("-model is required")
	}
	kind, err := datasets.ParseKind(*flagKind)
	if err != nil {
		return err
	}
	cfg, err := buildConfig(kind)
	if err != nil {
		return err
	}
	modelDir, err := files.ReplaceTildeInDir(*flagModel)
	if err != nil {
		return err
	}
	tok, v, err := tokenizers.New(modelDir)
	if err != nil {
		return err
	}
	klog.V(1).Infof("Tokenizer from %q, vocabulary of %s tokens", modelDir, humanize.Comma(int64(v.Len())))

	var opts []datasets.Option
	switch {
	case *flagNoCache:
		opts = append(opts, datasets.WithCache(cache.NopStore{}))
	case *flagBolt != "":
		store, err := cache.OpenBoltStore(*flagBolt)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		opts = append(opts, datasets.WithCache(store))
	}
	variant, err := datasets.NewVariant(kind, cfg, tok, v, opts...)
	if err != nil {
		return err
	}

	if *flagTrain != "" {
		return loadSplits(variant, cfg)
	}
	inputs, err := expandPatterns(patterns)
	if err != nil {
		return err
	}
	var lengths plotter.Values
	for _, input := range inputs {
		p, err := variant.Process(input, *flagTraining)
		if err != nil {
			return err
		}
		printSummary(input, kind, p)
		lengths = append(lengths, itemLengths(p.Items)...)
	}
	if *flagPlot != "" {
		return plotLengths(lengths, *flagPlot)
	}
	return nil
}

// buildConfig reads -config, if given, and overrides it with the flags explicitly set.
// Without -config the flags' defaults are used, except for squad where -max_sen_len defaults to
// datasets.DefaultSQuADMaxSenLen.
func buildConfig(kind datasets.Kind) (datasets.Config, error) {
	var cfg datasets.Config
	if *flagConfig != "" {
		parsed, err := datasets.ParseConfigFile(*flagConfig)
		if err != nil {
			return cfg, err
		}
		cfg = *parsed
	} else if kind == datasets.KindSQuAD {
		cfg.MaxSenLen = datasets.DefaultSQuADMaxSenLen
	}
	isSet := func(name string) bool { return *flagConfig == "" || explicitFlags[name] }
	if explicitFlags["max_sen_len"] {
		switch *flagMaxSenLen {
		case "":
			cfg.MaxSenLen = datasets.PadToBatch
		case "same":
			cfg.MaxSenLen = datasets.PadToDataset
		default:
			n, err := strconv.Atoi(*flagMaxSenLen)
			if err != nil {
				return cfg, errors.Wrapf(datasets.ErrConfig, "invalid -max_sen_len=%q", *flagMaxSenLen)
			}
			cfg.MaxSenLen = datasets.SeqLen(n)
		}
	}
	if isSet("doc_stride") {
		cfg.DocStride = *flagDocStride
	}
	if isSet("max_query_length") {
		cfg.MaxQueryLength = *flagMaxQuery
	}
	if isSet("sliding") {
		sliding := *flagSliding
		cfg.WithSliding = &sliding
	}
	if isSet("batch_size") {
		cfg.BatchSize = *flagBatchSize
	}
	if isSet("sep") {
		cfg.Sep = *flagSep
	}
	if isSet("num_choice") {
		cfg.NumChoice = *flagNumChoice
	}
	if isSet("cache_dir") {
		cfg.CacheDir = *flagCacheDir
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(kind); err != nil {
		return cfg, errors.WithMessagef(err, "invalid configuration for -kind=%s, check -max_sen_len and -doc_stride", kind)
	}
	return cfg, nil
}

// expandPatterns expands the glob patterns, which may include "**" to match any number of directories.
func expandPatterns(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, errors.New("no input files given")
	}
	var inputs []string
	for _, pattern := range patterns {
		pattern, err := files.ReplaceTildeInDir(pattern)
		if err != nil {
			return nil, err
		}
		matches, err := filepathx.Glob(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid pattern %q", pattern)
		}
		if len(matches) == 0 {
			return nil, errors.Errorf("no files match %q", pattern)
		}
		inputs = append(inputs, matches...)
	}
	return inputs, nil
}

func loadSplits(variant datasets.Variant, cfg datasets.Config) error {
	if *flagTest == "" {
		return errors.New("-test is required with -train")
	}
	loaders, err := datasets.LoadTrainValTest(variant, cfg, datasets.Files{Train: *flagTrain, Val: *flagVal, Test: *flagTest})
	if err != nil {
		return err
	}
	var lines []string
	lines = append(lines, titleStyle.Render(fmt.Sprintf("%s dataset", variant.Kind())))
	for _, l := range []*datasets.Loader{loaders.Train, loaders.Val, loaders.Test} {
		lines = append(lines, fmt.Sprintf("%s %s examples in %s batches",
			labelStyle.Render(fmt.Sprintf("%-10s", l.Name()+":")),
			valueStyle.Render(humanize.Comma(int64(l.NumItems()))),
			valueStyle.Render(humanize.Comma(int64(l.NumBatches())))))
	}
	lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render("padding:"),
		valueStyle.Render(datasets.SeqLen(loaders.Train.MaxLen()).String())))
	fmt.Println(boxStyle.Render(strings.Join(lines, "\n")))
	return nil
}

func printSummary(input string, kind datasets.Kind, p *datasets.Processed) {
	var size string
	if info, err := os.Stat(input); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	lines := []string{
		titleStyle.Render(filepath.Base(input)),
		fmt.Sprintf("%s %s (%s)", labelStyle.Render("file:"), input, size),
		fmt.Sprintf("%s %s", labelStyle.Render("kind:"), kind),
		fmt.Sprintf("%s %s", labelStyle.Render("items:"), valueStyle.Render(humanize.Comma(int64(len(p.Items))))),
		fmt.Sprintf("%s %s", labelStyle.Render("longest:"), valueStyle.Render(humanize.Comma(int64(p.MaxLen)))),
	}
	if kind == datasets.KindSQuAD {
		questions := make(map[string]bool)
		var noAnswer int
		for _, item := range p.Items {
			questions[item.QuestionID] = true
			if item.StartPosition == squad.WindowNoAnswer && item.EndPosition == squad.WindowNoAnswer {
				noAnswer++
			}
		}
		lines = append(lines,
			fmt.Sprintf("%s %s", labelStyle.Render("questions:"), valueStyle.Render(humanize.Comma(int64(len(questions))))),
			fmt.Sprintf("%s %s", labelStyle.Render("windows without answer:"), valueStyle.Render(humanize.Comma(int64(noAnswer)))))
	}
	fmt.Println(boxStyle.Render(strings.Join(lines, "\n")))
}

// itemLengths returns the length of every sequence: one per choice for multiple-choice items.
func itemLengths(items []datasets.Item) plotter.Values {
	var lengths plotter.Values
	for _, item := range items {
		if len(item.Choices) > 0 {
			for _, choice := range item.Choices {
				lengths = append(lengths, float64(len(item.Question)+len(choice)+1))
			}
			continue
		}
		lengths = append(lengths, float64(len(item.InputIDs)))
	}
	return lengths
}

// plotLengths saves a histogram of the sequence lengths.
func plotLengths(lengths plotter.Values, outPath string) error {
	if len(lengths) == 0 {
		return errors.New("no sequences to plot")
	}
	p := plot.New()
	p.Title.Text = "Sequence lengths"
	p.X.Label.Text = "tokens"
	p.Y.Label.Text = "sequences"
	hist, err := plotter.NewHist(lengths, *flagPlotBins)
	if err != nil {
		return errors.Wrap(err, "failed to create histogram")
	}
	p.Add(hist)
	p.Add(plotter.NewGrid())
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %q", outPath)
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, outPath); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", outPath)
	}
	klog.Infof("Histogram of %s sequence lengths saved to %q", humanize.Comma(int64(len(lengths))), outPath)
	return nil
}

// convertToParquet writes each SQuAD input file as "<outDir>/<name>.parquet".
func convertToParquet(inputs []string, outDir string) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create %q", outDir)
	}
	for _, input := range inputs {
		ds, err := squad.ReadFile(input)
		if err != nil {
			return err
		}
		outPath := filepath.Join(outDir, filepath.Base(files.TrimExt(input))+".parquet")
		if err := squad.WriteParquetFile(outPath, ds); err != nil {
			return err
		}
		var size string
		if info, err := os.Stat(outPath); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		fmt.Printf("%s %s questions -> %s (%s)\n", titleStyle.Render(filepath.Base(input)),
			humanize.Comma(int64(ds.NumQuestions())), outPath, size)
	}
	return nil
}
