package dictionary

import (
	"strings"
	"unicode"
)

// Entry is a dictionary lookup result.
type Entry struct {
	Word          string       `json:"word" yaml:"word" mapstructure:"word" validate:"required"`
	Pronunciation string       `json:"pronunciation,omitempty" yaml:"pronunciation" mapstructure:"pronunciation"`
	Definitions   []Definition `json:"definitions" yaml:"definitions" mapstructure:"definitions" validate:"min=1,dive"`
	Synonyms      []string     `json:"synonyms,omitempty" yaml:"synonyms" mapstructure:"synonyms"`
	Etymology     string       `json:"etymology,omitempty" yaml:"etymology" mapstructure:"etymology"`
}

// Definition is one sense of a word.
type Definition struct {
	PartOfSpeech string   `json:"part_of_speech" yaml:"part_of_speech" mapstructure:"part_of_speech" validate:"required"`
	Meaning      string   `json:"meaning" yaml:"meaning" mapstructure:"meaning" validate:"required"`
	Examples     []string `json:"examples,omitempty" yaml:"examples" mapstructure:"examples"`
}

// Normalize folds a word to its lookup key: trimmed, lower case, inner
// whitespace collapsed.
func Normalize(word string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(word), unicode.IsSpace), " ")
}
