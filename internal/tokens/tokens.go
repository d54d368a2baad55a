// Package tokens provides the normalization helpers shared by the filter,
// collection and trade packages: energy token parsing and ranking, label
// mapping, search string normalization and count sanitizing.
package tokens

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/samber/lo"
)

// FallbackEnergyRank is the rank given to energy codes that are neither
// numeric nor start with a letter.
const FallbackEnergyRank = 999

var (
	bracketPattern    = regexp.MustCompile(`\[([^\]]+)\]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeEnergyToken trims and uppercases a single energy token.
// Returns "" for blank input.
func NormalizeEnergyToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

// ParseEnergyTokens splits a comma separated energy list into normalized
// tokens, dropping blanks and duplicates while keeping first-seen order.
func ParseEnergyTokens(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := lo.Map(strings.Split(csv, ","), func(part string, _ int) string {
		return NormalizeEnergyToken(part)
	})
	return lo.Uniq(lo.Compact(parts))
}

// SplitTokens splits a comma separated token list, trimming each entry and
// dropping blanks. Duplicates are kept.
func SplitTokens(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// EnergyCodeRank ranks an energy code for vocabulary ordering. Numeric codes
// rank by value, codes starting with A-Z rank 10 + letter offset, anything
// else ranks FallbackEnergyRank.
func EnergyCodeRank(code string) float64 {
	norm := strings.ToUpper(strings.TrimSpace(code))
	if norm == "" {
		return FallbackEnergyRank
	}
	if n, err := strconv.ParseFloat(norm, 64); err == nil && !math.IsNaN(n) {
		return n
	}
	if c := norm[0]; c >= 'A' && c <= 'Z' {
		return float64(10 + int(c-'A'))
	}
	return FallbackEnergyRank
}

// GenderLabel maps the stored gender code to its display label. Unknown
// non-blank values pass through unchanged.
func GenderLabel(code string) string {
	s := strings.TrimSpace(code)
	switch s {
	case "0":
		return "Male"
	case "1":
		return "Female"
	case "2":
		return "Other"
	default:
		return s
	}
}

// IsBasicAction reports whether a type name denotes a Basic Action card.
func IsBasicAction(typeName string) bool {
	return strings.Contains(strings.ToLower(typeName), "basic action")
}

// NormalizeSearchValue lowercases a value, unwraps bracketed words
// ("[Fist]" becomes " fist ") and collapses whitespace.
func NormalizeSearchValue(value string) string {
	if value == "" {
		return ""
	}
	expanded := bracketPattern.ReplaceAllString(strings.ToLower(value), " $1 ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(expanded, " "))
}

// RoundCount rounds half up and clamps the result at zero.
func RoundCount(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	r := math.Floor(v + 0.5)
	if r < 0 {
		return 0
	}
	return int(r)
}

// ParseCount parses a textual count. Blank, non-numeric and negative values
// read as zero.
func ParseCount(raw string) int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || n < 0 {
		return 0
	}
	return RoundCount(n)
}

// SanitizeCount parses an optional textual count. ok is false for blank or
// non-numeric input, meaning "leave unchanged".
func SanitizeCount(raw string) (count int, ok bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return RoundCount(n), true
}

// CompareFold compares two strings case-insensitively, falling back to a
// byte comparison so the order is total.
func CompareFold(a, b string) int {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	switch {
	case la < lb:
		return -1
	case la > lb:
		return 1
	}
	return strings.Compare(a, b)
}

// NaturalCompare compares strings so that embedded digit runs order by
// numeric value ("2" < "10"). Non-digit runs compare case-insensitively.
func NaturalCompare(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	i, j := 0, 0
	for i < len(ra) && j < len(rb) {
		if unicode.IsDigit(ra[i]) && unicode.IsDigit(rb[j]) {
			si := i
			for i < len(ra) && unicode.IsDigit(ra[i]) {
				i++
			}
			sj := j
			for j < len(rb) && unicode.IsDigit(rb[j]) {
				j++
			}
			if c := compareDigits(string(ra[si:i]), string(rb[sj:j])); c != 0 {
				return c
			}
			continue
		}
		ca, cb := unicode.ToLower(ra[i]), unicode.ToLower(rb[j])
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
		i++
		j++
	}
	switch {
	case len(ra)-i < len(rb)-j:
		return -1
	case len(ra)-i > len(rb)-j:
		return 1
	}
	return strings.Compare(a, b)
}

func compareDigits(a, b string) int {
	ta := strings.TrimLeft(a, "0")
	tb := strings.TrimLeft(b, "0")
	if len(ta) != len(tb) {
		if len(ta) < len(tb) {
			return -1
		}
		return 1
	}
	return strings.Compare(ta, tb)
}
