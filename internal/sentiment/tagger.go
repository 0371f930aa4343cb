package sentiment

import (
	"regexp"
	"strings"
	"unicode"

	"donorprep/internal"
)

var reToken = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*|[^\s\p{L}\p{N}]`)

const (
	positiveWeight = 2
	neutralWeight  = 0
	otherWeight    = -1
)

type Tagger struct {
	lexicon *Lexicon
}

func NewTagger(lexicon *Lexicon) *Tagger {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	return &Tagger{lexicon: lexicon}
}

// Tokenize splits text into word and punctuation tokens. Apostrophes inside
// a word keep it whole.
func Tokenize(text string) []string {
	return reToken.FindAllString(text, -1)
}

func (t *Tagger) Score(text string) int {
	score := 0
	for _, token := range Tokenize(text) {
		if !isAlnum(token) {
			continue
		}
		word := strings.ToLower(token)
		if t.lexicon.IsStopword(word) {
			continue
		}
		v, ok := t.lexicon.Lookup(word)
		switch {
		case ok && v == ValencePositive:
			score += positiveWeight
		case ok && v == ValenceNeutral:
			score += neutralWeight
		default:
			score += otherWeight
		}
	}
	return score
}

func (t *Tagger) Tag(text string) internal.Sentiment {
	score := t.Score(text)
	switch {
	case score > 0:
		return internal.SentimentPositive
	case score < 0:
		return internal.SentimentNegative
	default:
		return internal.SentimentNeutral
	}
}

func isAlnum(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
