package matching

import (
	"strings"
	"time"
	"unicode"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// normalizeText lowercases s and turns every punctuation run into a single
// space, so "INV-001, Payment" and "inv 001 payment" compare equal.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// compactText strips everything but letters and digits.
func compactText(s string) string {
	return strings.ReplaceAll(normalizeText(s), " ", "")
}

// invoiceNumberScore is all-or-nothing: the punctuation-normalized invoice
// number either occurs inside the bank reference or it does not.
func invoiceNumberScore(bankReference, invoiceNumber string) float64 {
	num := compactText(invoiceNumber)
	if num == "" {
		return 0
	}
	if strings.Contains(compactText(bankReference), num) {
		return 1
	}
	return 0
}

// exactAmountScore is 1 at a perfect outstanding match and decays linearly
// to 0 as the difference approaches tolerancePct of the invoice amount.
func exactAmountScore(txCents, outstandingCents, invoiceCents int64, tolerancePct float64) float64 {
	diff := txCents - outstandingCents
	if diff < 0 {
		diff = -diff
	}
	if diff == 0 {
		return 1
	}
	band := tolerancePct * float64(invoiceCents)
	if band <= 0 {
		return 0
	}
	return clamp01(1 - float64(diff)/band)
}

// dateProximityScore is 1 inside the invoice's issue->due window and decays
// linearly to 0 over graceDays on either side.
func dateProximityScore(paidAt, issuedAt, dueAt time.Time, graceDays int) float64 {
	if !paidAt.Before(issuedAt) && !paidAt.After(dueAt) {
		return 1
	}
	var outside time.Duration
	if paidAt.Before(issuedAt) {
		outside = issuedAt.Sub(paidAt)
	} else {
		outside = paidAt.Sub(dueAt)
	}
	if graceDays <= 0 {
		return 0
	}
	days := outside.Hours() / 24
	return clamp01(1 - days/float64(graceDays))
}

// referenceSimilarityScore measures how well the invoice's client name is
// echoed in the bank reference: each client-name token takes its best
// edit-distance similarity against the reference tokens, averaged.
func referenceSimilarityScore(bankReference, clientName string) float64 {
	refTokens := strings.Fields(normalizeText(bankReference))
	nameTokens := strings.Fields(normalizeText(clientName))
	if len(nameTokens) == 0 || len(refTokens) == 0 {
		return 0
	}

	total := 0.0
	for _, nt := range nameTokens {
		best := 0.0
		for _, rt := range refTokens {
			dist := levenshtein.DistanceForStrings([]rune(nt), []rune(rt), levenshtein.DefaultOptions)
			maxLen := len([]rune(nt))
			if l := len([]rune(rt)); l > maxLen {
				maxLen = l
			}
			if maxLen == 0 {
				continue
			}
			sim := 1 - float64(dist)/float64(maxLen)
			if sim > best {
				best = sim
			}
		}
		total += best
	}
	return clamp01(total / float64(len(nameTokens)))
}

// partialPaymentScore fires only when the transaction covers part of the
// outstanding amount and the part is big enough to be deliberate. An
// over-payment is never a partial-payment signal.
func partialPaymentScore(txCents, outstandingCents int64, minRatio float64) float64 {
	if txCents <= 0 || outstandingCents <= 0 || txCents >= outstandingCents {
		return 0
	}
	if float64(txCents)/float64(outstandingCents) > minRatio {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
