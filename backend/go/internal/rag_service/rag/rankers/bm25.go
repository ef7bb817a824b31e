// Package rankers scores retrieval candidates lexically and by entity
// overlap; the fusion of these with the dense score happens in the
// retrieval pipeline.
package rankers

import (
	"math"
	"strings"
	"unicode"

	"EdgeRAG/backend/go/internal/models"
)

// Okapi BM25 parameters.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// Tokenize splits text into scoring tokens. Non-Arabic text is case-folded
// and stripped of punctuation; Arabic text keeps its original form since
// the script has no case.
func Tokenize(text string, lang models.Language) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if lang == models.LanguageArabic {
		return fields
	}
	tokens := make([]string, len(fields))
	for i, f := range fields {
		tokens[i] = strings.ToLower(f)
	}
	return tokens
}

// BM25Scores computes Okapi BM25 scores of every document in corpus against
// the query. Statistics (document frequency, average length) are taken from
// the corpus itself, so scores are only comparable within one call.
func BM25Scores(query []string, corpus [][]string) []float64 {
	scores := make([]float64, len(corpus))
	if len(corpus) == 0 || len(query) == 0 {
		return scores
	}

	df := make(map[string]int)
	var totalLen float64
	for _, doc := range corpus {
		totalLen += float64(len(doc))
		seen := make(map[string]bool, len(doc))
		for _, tok := range doc {
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}
	avgLen := totalLen / float64(len(corpus))
	if avgLen == 0 {
		return scores
	}

	n := float64(len(corpus))
	for i, doc := range corpus {
		tf := make(map[string]int, len(doc))
		for _, tok := range doc {
			tf[tok]++
		}
		docLen := float64(len(doc))
		var score float64
		for _, term := range query {
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[term])+0.5)/(float64(df[term])+0.5))
			score += idf * f * (bm25K1 + 1) / (f + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
		}
		scores[i] = score
	}
	return scores
}
