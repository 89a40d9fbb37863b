package api

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Config struct to hold HuggingFace's tokenizer_config.json contents.
// There is no formal schema for this file, only the fields used to pick and configure a tokenizer
// are kept.
//
// The extra field ConfigFile holds the path to the file with the full config.
type Config struct {
	ConfigFile     string `json:"-"`
	TokenizerClass string `json:"tokenizer_class"`

	ModelMaxLength float64 `json:"model_max_length"`

	ClsToken  string `json:"cls_token"`
	UnkToken  string `json:"unk_token"`
	SepToken  string `json:"sep_token"`
	MaskToken string `json:"mask_token"`
	PadToken  string `json:"pad_token"`

	// DoLowerCase and TokenizeChineseChars default to true when missing, as in BERT's tokenizer.
	DoLowerCase          *bool `json:"do_lower_case"`
	TokenizeChineseChars *bool `json:"tokenize_chinese_chars"`
	StripAccents         any   `json:"strip_accents"`
}

// LowerCase returns whether the text is lower-cased: do_lower_case, or true if not set.
func (c *Config) LowerCase() bool {
	return c == nil || c.DoLowerCase == nil || *c.DoLowerCase
}

// ChineseChars returns whether CJK characters are split into individual tokens: tokenize_chinese_chars,
// or true if not set.
func (c *Config) ChineseChars() bool {
	return c == nil || c.TokenizeChineseChars == nil || *c.TokenizeChineseChars
}

// ShouldStripAccents follows BERT's convention: unless strip_accents is explicitly set, accents are
// stripped whenever the text is lower-cased.
func (c *Config) ShouldStripAccents() bool {
	if c != nil {
		if v, ok := c.StripAccents.(bool); ok {
			return v
		}
	}
	return c.LowerCase()
}

// ParseConfigFile parses the given file (holding a tokenizer_config.json file) into a Config structure.
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

// ParseConfigContent parses the given json content (of a tokenizer_config.json file) into a Config structure.
func ParseConfigContent(jsonContent []byte) (*Config, error) {
	config := &Config{}
	err := json.Unmarshal(jsonContent, config)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse tokenizer_config json content")
	}
	return config, nil
}
