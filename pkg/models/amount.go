package models

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// ParseAmount coerces an extracted numeric value into a decimal.
//
// Accepted: JSON numbers, numeric strings, and currency-formatted strings
// such as "$1,250.00", "USD 1250", "1 250.50 EUR" or "(100.00)" (accounting
// negative). Absent, null and blank values yield zero with ok=true. Anything
// else yields zero with ok=false.
func ParseAmount(raw json.RawMessage) (decimal.Decimal, bool) {
	if isNull(raw) {
		return decimal.Zero, true
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return decimal.Zero, false
	}
	return ParseAmountString(s)
}

// ParseAmountString is the string half of ParseAmount. Currency symbols
// and three-letter codes may lead or trail the number; anything else inside
// it (letters, a dash between digits, ambiguous grouping such as "1.234,56")
// is rejected with ok=false.
func ParseAmountString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, true
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d, true
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	core, signs := stripAffixes(s)
	if signs > 1 || !amountPattern.MatchString(core) {
		return decimal.Zero, false
	}
	if signs == 1 {
		negative = !negative
	}

	d, err := decimal.NewFromString(groupSeparators.Replace(core))
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// Plain digits, or 1-3 digits followed by groups of exactly three.
var amountPattern = regexp.MustCompile(`^(?:\d+|\d{1,3}(?:[,_ \x{00a0}]\d{3})+)(?:\.\d+)?$|^\.\d+$`)

var groupSeparators = strings.NewReplacer(",", "", "_", "", " ", "", "\u00a0", "")

const currencySymbols = "$€£¥₹"

// stripAffixes removes leading and trailing currency markers and counts the
// minus signs found among them.
func stripAffixes(s string) (string, int) {
	signs := 0
	for {
		s = strings.TrimSpace(s)
		before := s
		r, size := utf8.DecodeRuneInString(s)
		switch {
		case r == '-':
			signs++
			s = s[size:]
		case r == '+':
			s = s[size:]
		case strings.ContainsRune(currencySymbols, r):
			s = s[size:]
		case isCurrencyCode(s):
			s = s[3:]
		}
		r, size = utf8.DecodeLastRuneInString(s)
		switch {
		case strings.ContainsRune(currencySymbols, r):
			s = s[:len(s)-size]
		case len(s) >= 3 && isCurrencyCode(s[len(s)-3:]) && (len(s) == 3 || !isLetter(rune(s[len(s)-4]))):
			s = s[:len(s)-3]
		}
		if s == before {
			return s, signs
		}
	}
}

// isCurrencyCode reports whether s starts with exactly three ASCII letters.
func isCurrencyCode(s string) bool {
	if len(s) < 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if !isLetter(rune(s[i])) {
			return false
		}
	}
	return len(s) == 3 || !isLetter(rune(s[3]))
}

func isLetter(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}
