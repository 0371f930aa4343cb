package sentiment

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon_fr.yaml
var defaultLexicon []byte

type Valence string

const (
	ValencePositive Valence = "positive"
	ValenceNeutral  Valence = "neutral"
	ValenceNegative Valence = "negative"
)

// Lexicon maps tokens to a valence class. Tokens absent from the table are
// scored as negative.
type Lexicon struct {
	Version   int                `yaml:"version"`
	Language  string             `yaml:"language"`
	Valence   map[string]Valence `yaml:"valence"`
	Stopwords []string           `yaml:"stopwords"`

	stop map[string]struct{}
}

func DefaultLexicon() *Lexicon {
	lex, err := ParseLexicon(defaultLexicon)
	if err != nil {
		panic(fmt.Sprintf("embedded sentiment lexicon: %v", err))
	}
	return lex
}

// LoadLexicon reads a lexicon file, or returns the embedded French one when
// path is empty.
func LoadLexicon(path string) (*Lexicon, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultLexicon(), nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sentiment lexicon: %w", err)
	}
	return ParseLexicon(blob)
}

func ParseLexicon(blob []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(blob, &lex); err != nil {
		return nil, fmt.Errorf("parse sentiment lexicon: %w", err)
	}

	valence := make(map[string]Valence, len(lex.Valence))
	for token, v := range lex.Valence {
		v = Valence(strings.ToLower(string(v)))
		switch v {
		case ValencePositive, ValenceNeutral, ValenceNegative:
		default:
			return nil, fmt.Errorf("sentiment lexicon: token %q has unknown valence %q", token, v)
		}
		valence[strings.ToLower(token)] = v
	}
	lex.Valence = valence

	lex.stop = make(map[string]struct{}, len(lex.Stopwords))
	for _, w := range lex.Stopwords {
		lex.stop[strings.ToLower(w)] = struct{}{}
	}
	return &lex, nil
}

func (l *Lexicon) IsStopword(token string) bool {
	_, ok := l.stop[token]
	return ok
}

func (l *Lexicon) Lookup(token string) (Valence, bool) {
	v, ok := l.Valence[token]
	return v, ok
}
