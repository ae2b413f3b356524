package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// stopWords are common words excluded from keyword matching.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true, "could": true,
	"should": true, "may": true, "might": true, "must": true, "can": true,
	"this": true, "that": true, "these": true, "those": true, "it": true, "its": true,
	"i": true, "we": true, "you": true, "they": true, "them": true, "our": true,
	"my": true, "me": true, "us": true, "all": true, "some": true, "no": true,
	"not": true, "so": true, "too": true, "very": true, "just": true, "also": true,
}

// Truncate returns a truncated string with "..." if it exceeds maxLen.
// This function is Unicode-safe, counting runes instead of bytes.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// Fold case-folds and trims s for comparisons and hashing.
func Fold(s string) string {
	return strings.Join(strings.Fields(folder.String(s)), " ")
}

// Tokenize case-folds s, splits it on anything that is not a letter or
// digit, drops stop words and reduces each word to a crude stem.
func Tokenize(s string) []string {
	words := strings.FieldsFunc(folder.String(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if stopWords[w] {
			continue
		}
		tokens = append(tokens, Stem(w))
	}
	return tokens
}

// Stem strips a handful of English suffixes. It only needs to make
// "mockups" match "mockup", "testing" match "test" and "planning" match
// "plan".
func Stem(w string) string {
	if len(w) <= 4 {
		return strings.TrimSuffix(w, "s")
	}
	for _, suffix := range []string{"ing", "ies", "ed", "es", "s"} {
		if strings.HasSuffix(w, suffix) && len(w)-len(suffix) >= 3 {
			stem := strings.TrimSuffix(w, suffix)
			if suffix == "ies" {
				stem += "y"
			}
			if suffix == "ing" || suffix == "ed" {
				stem = undouble(stem)
			}
			if suffix == "es" && !strings.HasSuffix(stem, "s") && !strings.HasSuffix(stem, "x") && !strings.HasSuffix(stem, "ch") && !strings.HasSuffix(stem, "sh") {
				stem += "e"
			}
			return stem
		}
	}
	return w
}

// undouble drops the doubled final consonant left by "planned" or
// "shipping". l, s and z stay doubled ("install", "pass", "buzz").
func undouble(stem string) string {
	n := len(stem)
	if n < 4 || stem[n-1] != stem[n-2] {
		return stem
	}
	if strings.IndexByte("aeioulsz", stem[n-1]) >= 0 {
		return stem
	}
	return stem[:n-1]
}

// ContainsPhrase reports whether the token sequence phrase occurs in tokens.
func ContainsPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		for j, p := range phrase {
			if tokens[i+j] != p {
				continue outer
			}
		}
		return true
	}
	return false
}

// Jaccard returns the token-set overlap of a and b.
func Jaccard(a, b string) float64 {
	setA := toSet(Tokenize(a))
	setB := toSet(Tokenize(b))
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}
	inter := 0
	for w := range setA {
		if setB[w] {
			inter++
		}
	}
	return float64(inter) / float64(len(setA)+len(setB)-inter)
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
