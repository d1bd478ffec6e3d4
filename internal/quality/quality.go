// Package quality scores recognised text so users can tell a clean OCR pass
// from noise. It never alters the text it inspects.
package quality

import (
	"math"
	"strings"
	"unicode"
)

// DefaultMinWords is the word count below which a result is penalised.
const DefaultMinWords = 3

type Report struct {
	Quality       float64  `json:"quality"`
	WordCount     int      `json:"wordCount"`
	Empty         bool     `json:"empty"`
	LowConfidence bool     `json:"lowConfidence"`
	Reasons       []string `json:"reasons,omitempty"`
}

func CountWords(s string) int {
	return len(strings.Fields(s))
}

// Assess scores OCR output in [0,1]. Empty output is reported but not flagged
// as low confidence: a blank image legitimately has no text.
func Assess(text string, minWords int) Report {
	if minWords <= 0 {
		minWords = DefaultMinWords
	}

	clean := strings.TrimSpace(text)
	wc := CountWords(clean)
	total := float64(len([]rune(clean)))
	if total == 0 {
		return Report{Empty: true, Reasons: []string{"empty_text"}}
	}

	alphaRatio := safeDiv(float64(countIf(clean, unicode.IsLetter)), total)
	digitRatio := safeDiv(float64(countIf(clean, unicode.IsDigit)), total)
	punctRatio := safeDiv(float64(countIf(clean, unicode.IsPunct)+countIf(clean, unicode.IsSymbol)), total)
	garbageRatio := safeDiv(float64(countGarbage(clean)), total)

	score := 1.0
	var reasons []string

	if wc < minWords {
		score -= 0.20
		reasons = append(reasons, "low_word_count")
	}

	// Tables and receipts are digit heavy, so only penalise when letters are
	// rare and digits do not make up for them.
	if alphaRatio < 0.30 && digitRatio < 0.20 {
		score -= 0.35
		reasons = append(reasons, "low_alpha_ratio")
	}

	if garbageRatio > 0.01 {
		score -= math.Min(0.50, garbageRatio*50)
		reasons = append(reasons, "garbage_chars")
	}

	if punctRatio > 0.40 {
		score -= 0.25
		reasons = append(reasons, "excessive_punctuation")
	}

	if hasRepeatedCharPatterns(clean) {
		score -= 0.15
		reasons = append(reasons, "repeated_patterns")
	}

	if wc >= 4 && scrambledRatio(clean) > 0.40 {
		score -= 0.25
		reasons = append(reasons, "scrambled_text")
	}

	if wc > 50 && uniqueWordRatio(clean) < 0.20 {
		score -= 0.15
		reasons = append(reasons, "low_unique_words")
	}

	score = clamp(score, 0, 1)
	return Report{
		Quality:       score,
		WordCount:     wc,
		LowConfidence: score < 0.50,
		Reasons:       reasons,
	}
}

func uniqueWordRatio(s string) float64 {
	ws := strings.Fields(strings.ToLower(s))
	if len(ws) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(ws))
	for _, w := range ws {
		set[w] = struct{}{}
	}
	return float64(len(set)) / float64(len(ws))
}

// hasRepeatedCharPatterns detects runs like "....." or "|||||" that OCR
// produces from rules, borders and dotted leaders.
func hasRepeatedCharPatterns(s string) bool {
	run := 0
	var last rune
	for _, r := range s {
		if r == last && !unicode.IsSpace(r) {
			run++
			if run >= 5 {
				return true
			}
			continue
		}
		run = 1
		last = r
	}
	return false
}

// scrambledRatio is the share of single-character words, typical of OCR run
// over noise or photographs.
func scrambledRatio(s string) float64 {
	words := strings.Fields(s)
	if len(words) == 0 {
		return 0
	}
	single := 0
	for _, w := range words {
		if len([]rune(w)) == 1 {
			single++
		}
	}
	return float64(single) / float64(len(words))
}

func countIf(s string, pred func(rune) bool) int {
	n := 0
	for _, r := range s {
		if pred(r) {
			n++
		}
	}
	return n
}

func countGarbage(s string) int {
	n := 0
	for _, r := range s {
		if r == '�' || (unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' && r != '\f') {
			n++
		}
	}
	return n
}

func safeDiv(a, b float64) float64 {
	if b <= 0 {
		return 0
	}
	return a / b
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
