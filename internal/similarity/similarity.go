// Package similarity scores how likely a set of product names from different
// vendors describe the same physical product.
package similarity

import (
	"errors"
	"regexp"
	"slices"
	"strings"
)

var (
	// ErrNoNames is returned when there is nothing to compare.
	ErrNoNames = errors.New("similarity: at least one name required")
	// ErrEmptyName is returned when the names carry no words after normalisation.
	ErrEmptyName = errors.New("similarity: names have no words after normalisation")
)

// Numeric tokens (sizes, concentrations, counts) are weighted above plain words.
const (
	wordWeight    = 0.4
	numericWeight = 0.6
)

var (
	numericPattern = regexp.MustCompile(`[\p{L}\p{N}_]*\p{Nd}+[\p{L}\p{N}_]*`)
	wordPattern    = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

// DefaultStopWords are dropped from the word sets before comparison.
var DefaultStopWords = map[string]struct{}{
	"of":   {},
	"and":  {},
	"with": {},
}

type tokenSet map[string]struct{}

// Tokens splits a name into its lower-cased word and numeric token sets.
func Tokens(name string, stop map[string]struct{}) (words, numerics []string) {
	w, n := tokenize(name, stop)
	return w.sorted(), n.sorted()
}

// Score compares names with the default stop words.
func Score(names []string) (float64, error) {
	return ScoreWithStopWords(names, DefaultStopWords)
}

// ScoreWithStopWords returns a value in [0, 1]. Matched tokens are the
// intersection across every name and totals are the union, computed separately
// for words and numeric tokens.
func ScoreWithStopWords(names []string, stop map[string]struct{}) (float64, error) {
	if len(names) == 0 {
		return 0, ErrNoNames
	}

	var matchedWords, matchedNumerics tokenSet
	totalWords := tokenSet{}
	totalNumerics := tokenSet{}
	for i, name := range names {
		words, numerics := tokenize(name, stop)
		totalWords.addAll(words)
		totalNumerics.addAll(numerics)
		if i == 0 {
			matchedWords = words
			matchedNumerics = numerics
			continue
		}
		matchedWords = matchedWords.intersect(words)
		matchedNumerics = matchedNumerics.intersect(numerics)
	}

	if len(totalWords) == 0 {
		return 0, ErrEmptyName
	}
	wordRatio := float64(len(matchedWords)) / float64(len(totalWords))
	if len(totalNumerics) == 0 {
		return wordRatio, nil
	}
	numericRatio := float64(len(matchedNumerics)) / float64(len(totalNumerics))
	return wordWeight*wordRatio + numericWeight*numericRatio, nil
}

func tokenize(name string, stop map[string]struct{}) (tokenSet, tokenSet) {
	lowered := strings.ToLower(name)
	numerics := tokenSet{}
	for _, tok := range numericPattern.FindAllString(lowered, -1) {
		numerics[tok] = struct{}{}
	}
	words := tokenSet{}
	for _, tok := range wordPattern.FindAllString(lowered, -1) {
		if _, ok := numerics[tok]; ok {
			continue
		}
		if _, ok := stop[tok]; ok {
			continue
		}
		words[tok] = struct{}{}
	}
	return words, numerics
}

func (s tokenSet) addAll(other tokenSet) {
	for tok := range other {
		s[tok] = struct{}{}
	}
}

func (s tokenSet) intersect(other tokenSet) tokenSet {
	out := tokenSet{}
	for tok := range s {
		if _, ok := other[tok]; ok {
			out[tok] = struct{}{}
		}
	}
	return out
}

func (s tokenSet) sorted() []string {
	out := make([]string, 0, len(s))
	for tok := range s {
		out = append(out, tok)
	}
	slices.Sort(out)
	return out
}
