package ingest

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var errBadAmount = errors.New("unparsable amount")

// currency symbols stripped before numeric parsing
const currencyRunes = "$€£¥₹R"

// ParseAmountCents turns a raw CSV amount into integer minor currency
// units. Currency symbols and thousands separators are stripped; both
// "1,234.56" and "1.234,56" styles are accepted. A single separator
// followed by a three-digit group is read as a thousands separator.
func ParseAmountCents(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errBadAmount
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(currencyRunes, r) || r == ' ' || r == ' ' {
			return -1
		}
		return r
	}, s)

	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}
	if strings.ContainsAny(s, "-+") {
		return 0, errBadAmount
	}

	s = normalizeSeparators(s)
	if s == "" {
		return 0, errBadAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errBadAmount
	}

	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, errBadAmount
	}

	v := cents.IntPart()
	if negative {
		v = -v
	}
	return v, nil
}

// normalizeSeparators rewrites s so that '.' is the only decimal
// separator and no grouping separators remain. When both ',' and '.'
// occur, the rightmost is the decimal separator.
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = resolveSingleSeparator(s, ",")
	case lastDot >= 0:
		s = resolveSingleSeparator(s, ".")
	}
	return s
}

// resolveSingleSeparator decides whether sep is decimal or grouping when
// it is the only separator kind present. More than one occurrence, or a
// trailing three-digit group, means grouping.
func resolveSingleSeparator(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, "")
	}
	idx := strings.LastIndex(s, sep)
	if len(s)-idx-1 == 3 {
		return strings.ReplaceAll(s, sep, "")
	}
	if sep == "," {
		return strings.Replace(s, ",", ".", 1)
	}
	return s
}
