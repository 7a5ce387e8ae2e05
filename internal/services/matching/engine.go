package matching

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"invoice-reconciliation-backend/internal/models"
)

// Candidate is one scored (transaction, invoice) pair. Candidates are
// ephemeral; the reconciliation service persists the top ones as
// suggestions.
type Candidate struct {
	TransactionID uuid.UUID
	InvoiceID     uuid.UUID
	RuleScores    models.RuleScores
	Confidence    float64

	// kept for tie-breaking
	amountDiff   int64
	dateDistance time.Duration
}

// Engine scores open invoices against bank transactions. It holds no
// mutable state; one Engine value is safe to share across workers.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Match scores every candidate invoice against tx and returns the full
// ranked list, best first. Invoices from another tenant or with nothing
// outstanding are skipped. A pair with no plausible signal simply scores
// low; Match never fails.
func (e *Engine) Match(tx models.Transaction, invoices []models.Invoice) []Candidate {
	candidates := make([]Candidate, 0, len(invoices))

	for i := range invoices {
		inv := &invoices[i]
		if inv.TenantID != tx.TenantID || inv.OutstandingCents <= 0 {
			continue
		}
		candidates = append(candidates, e.score(tx, inv))
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.Confidence != cb.Confidence {
			return ca.Confidence > cb.Confidence
		}
		if ca.amountDiff != cb.amountDiff {
			return ca.amountDiff < cb.amountDiff
		}
		return ca.dateDistance < cb.dateDistance
	})

	return candidates
}

func (e *Engine) score(tx models.Transaction, inv *models.Invoice) Candidate {
	scores := models.RuleScores{
		InvoiceNumberMatch:  invoiceNumberScore(tx.BankReference, inv.InvoiceNumber),
		ExactAmountMatch:    exactAmountScore(tx.AmountCents, inv.OutstandingCents, inv.AmountCents, e.cfg.AmountTolerancePct),
		DateProximity:       dateProximityScore(tx.PaidAt, inv.IssuedAt, inv.DueAt, e.cfg.DateGraceDays),
		ReferenceSimilarity: referenceSimilarityScore(tx.BankReference, inv.ClientName),
		PartialPayment:      partialPaymentScore(tx.AmountCents, inv.OutstandingCents, e.cfg.MinPartialRatio),
	}

	w := e.cfg.Weights
	confidence := clamp01(
		w.InvoiceNumberMatch*scores.InvoiceNumberMatch +
			w.ExactAmountMatch*scores.ExactAmountMatch +
			w.DateProximity*scores.DateProximity +
			w.ReferenceSimilarity*scores.ReferenceSimilarity +
			w.PartialPayment*scores.PartialPayment)

	diff := tx.AmountCents - inv.OutstandingCents
	if diff < 0 {
		diff = -diff
	}

	return Candidate{
		TransactionID: tx.ID,
		InvoiceID:     inv.ID,
		RuleScores:    scores,
		Confidence:    confidence,
		amountDiff:    diff,
		dateDistance:  dateDistance(tx.PaidAt, inv.IssuedAt, inv.DueAt),
	}
}

// dateDistance is zero inside the issue->due window, otherwise the gap to
// the nearest edge.
func dateDistance(paidAt, issuedAt, dueAt time.Time) time.Duration {
	if !paidAt.Before(issuedAt) && !paidAt.After(dueAt) {
		return 0
	}
	if paidAt.Before(issuedAt) {
		return issuedAt.Sub(paidAt)
	}
	return paidAt.Sub(dueAt)
}
