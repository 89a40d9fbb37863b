package datasets

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/gomlx/bertdata/squad"
	"github.com/pkg/errors"
)

// ErrConfig is wrapped by all configuration errors, which abort the processing.
var ErrConfig = errors.New("invalid dataset configuration")

// Special values of Config.MaxSenLen.
const (
	// PadToBatch pads every batch to its longest sequence.
	PadToBatch SeqLen = 0

	// PadToDataset pads every batch to the longest sequence of the training set. It's written "same" in
	// the JSON configuration.
	PadToDataset SeqLen = -1
)

// SeqLen is a sequence length that can also be one of PadToBatch or PadToDataset.
// In JSON it's either a number, null (PadToBatch) or "same" (PadToDataset).
type SeqLen int

// UnmarshalJSON implements json.Unmarshaler.
func (l *SeqLen) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "null":
		*l = PadToBatch
		return nil
	case `"same"`:
		*l = PadToDataset
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Errorf("max_sen_len must be a number, null or \"same\", got %s", data)
	}
	*l = SeqLen(n)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l SeqLen) MarshalJSON() ([]byte, error) {
	switch l {
	case PadToBatch:
		return []byte("null"), nil
	case PadToDataset:
		return []byte(`"same"`), nil
	}
	return []byte(strconv.Itoa(int(l))), nil
}

// String implements fmt.Stringer.
func (l SeqLen) String() string {
	switch l {
	case PadToBatch:
		return "batch"
	case PadToDataset:
		return "same"
	}
	return strconv.Itoa(int(l))
}

// Config is shared by all dataset variants; each variant uses the fields relevant to it.
//
// Zero values are replaced by the defaults in WithDefaults, so a Config can be partially filled.
type Config struct {
	// ConfigFile is the path of the file the config was read from, if any.
	ConfigFile string `json:"-"`

	BatchSize int `json:"batch_size"`

	// MaxSenLen is the length batches are padded (or truncated) to. See PadToBatch and PadToDataset.
	// For the SQuAD variant with sliding window it's also the maximum length of a window, and must be a
	// positive number.
	MaxSenLen SeqLen `json:"max_sen_len"`

	// Sep separates the fields of the line-oriented formats.
	Sep string `json:"split_sep"`

	// MaxPositionEmbeddings of the model: longer sequences are truncated, keeping the final "[SEP]".
	MaxPositionEmbeddings int `json:"max_position_embeddings"`

	PadIndex int `json:"pad_index"`

	// Shuffle the training set at every epoch. Validation and test sets are never shuffled.
	Shuffle *bool `json:"is_sample_shuffle"`

	// Seed for the shuffling.
	Seed int64 `json:"seed"`

	// BatchFirst lays out batches as [batch][max_len] instead of [max_len][batch].
	// Multiple-choice batches are always batch first.
	BatchFirst bool `json:"batch_first"`

	// SQuAD only.
	DocStride      int   `json:"doc_stride"`
	WithSliding    *bool `json:"with_sliding"`
	MaxQueryLength int   `json:"max_query_length"`

	// CacheDir holds the SQuAD cache files. If empty, they are written next to the dataset files.
	CacheDir string `json:"cache_dir"`

	// Multiple-choice only.
	NumChoice int `json:"num_choice"`
}

// Default values used by WithDefaults.
const (
	DefaultBatchSize             = 32
	DefaultSep                   = "\t"
	DefaultMaxPositionEmbeddings = 512
	DefaultDocStride             = 64
	DefaultMaxQueryLength        = 64
	DefaultNumChoice             = 4

	// DefaultSQuADMaxSenLen is not applied by WithDefaults, since MaxSenLen's zero value is PadToBatch.
	// It's the length commonly used for fine-tuning on SQuAD.
	DefaultSQuADMaxSenLen = 384
)

// ParseConfigFile parses the given JSON file into a Config, with defaults filled in.
func ParseConfigFile(filePath string) (*Config, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read file %q", filePath)
	}
	config, err := ParseConfigContent(content)
	if err != nil {
		return nil, errors.WithMessagef(err, "read from file %q", filePath)
	}
	config.ConfigFile = filePath
	return config, nil
}

// ParseConfigContent parses the given JSON content into a Config, with defaults filled in.
func ParseConfigContent(jsonContent []byte) (*Config, error) {
	config := &Config{}
	if err := json.Unmarshal(jsonContent, config); err != nil {
		return nil, errors.Wrapf(err, "failed to parse dataset config json content")
	}
	*config = config.WithDefaults()
	return config, nil
}

// WithDefaults returns a copy of the config with unset fields filled with the defaults, and MaxSenLen
// limited to MaxPositionEmbeddings.
func (c Config) WithDefaults() Config {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Sep == "" {
		c.Sep = DefaultSep
	}
	if c.MaxPositionEmbeddings == 0 {
		c.MaxPositionEmbeddings = DefaultMaxPositionEmbeddings
	}
	if c.Shuffle == nil {
		c.Shuffle = boolPtr(true)
	}
	if c.DocStride == 0 {
		c.DocStride = DefaultDocStride
	}
	if c.WithSliding == nil {
		c.WithSliding = boolPtr(true)
	}
	if c.MaxQueryLength == 0 {
		c.MaxQueryLength = DefaultMaxQueryLength
	}
	if c.NumChoice == 0 {
		c.NumChoice = DefaultNumChoice
	}
	if int(c.MaxSenLen) > c.MaxPositionEmbeddings {
		c.MaxSenLen = SeqLen(c.MaxPositionEmbeddings)
	}
	return c
}

func boolPtr(v bool) *bool { return &v }

// ShuffleTraining returns whether to shuffle the training set: defaults to true.
func (c *Config) ShuffleTraining() bool {
	return c.Shuffle == nil || *c.Shuffle
}

// Sliding returns whether SQuAD contexts are split with a sliding window: defaults to true.
func (c *Config) Sliding() bool {
	return c.WithSliding == nil || *c.WithSliding
}

// Validate checks the config for the given variant. Errors wrap ErrConfig.
func (c *Config) Validate(kind Kind) error {
	if c.BatchSize <= 0 {
		return errors.Wrapf(ErrConfig, "batch_size must be positive, got %d", c.BatchSize)
	}
	if c.MaxPositionEmbeddings < 2 {
		return errors.Wrapf(ErrConfig, "max_position_embeddings must be at least 2, got %d", c.MaxPositionEmbeddings)
	}
	if c.MaxSenLen < PadToDataset {
		return errors.Wrapf(ErrConfig, "invalid max_sen_len %d", c.MaxSenLen)
	}
	switch kind {
	case KindSingle, KindPair:
		if c.Sep == "" {
			return errors.Wrapf(ErrConfig, "split_sep can't be empty")
		}
	case KindMultipleChoice:
		if c.NumChoice <= 0 {
			return errors.Wrapf(ErrConfig, "num_choice must be positive, got %d", c.NumChoice)
		}
	case KindSQuAD:
		if err := c.squadOptions().Validate(); err != nil {
			return errors.Wrap(ErrConfig, err.Error())
		}
	default:
		return errors.Wrapf(ErrConfig, "unknown dataset kind %q", kind)
	}
	return nil
}

// squadOptions returns the encoder options configured.
func (c *Config) squadOptions() squad.Options {
	return squad.Options{
		WithSliding:           c.Sliding(),
		DocStride:             c.DocStride,
		MaxSenLen:             int(c.MaxSenLen),
		MaxQueryLength:        c.MaxQueryLength,
		MaxPositionEmbeddings: c.MaxPositionEmbeddings,
	}
}
